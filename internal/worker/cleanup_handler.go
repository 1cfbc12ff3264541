package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/Ramchandra100/file-share-app/internal/service"
)

// CleanupHandler 处理周期性的过期文件清理任务。
// 扫描逻辑都在 CleanupService 里，这里只是 asynq 的接线。
type CleanupHandler struct {
	cleanupService *service.CleanupService
}

// NewCleanupHandler 创建 Handler 实例
func NewCleanupHandler(cleanupService *service.CleanupService) *CleanupHandler {
	if cleanupService == nil {
		panic("CleanupService cannot be nil for CleanupHandler")
	}
	return &CleanupHandler{cleanupService: cleanupService}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *CleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())
	logCtx.Info("Processing cleanup sweep task...")

	if err := h.cleanupService.RunSweep(ctx); err != nil {
		// 扫描层面的失败 (如房间列表读不出来) 交给 asynq 重试，
		// 单个房间的失败在 Service 里已经被隔离
		logCtx.WithError(err).Error("Cleanup sweep failed")
		return err
	}
	logCtx.Info("Cleanup sweep task processed successfully")
	return nil
}
