package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ramchandra100/file-share-app/internal/domain"
	"github.com/Ramchandra100/file-share-app/internal/repository"
)

// CleanupService 按保留时长清理过期文件。
// 扫描是尽力而为的：单个房间的失败只记日志，下一轮自愈。
type CleanupService struct {
	roomRepo  repository.RoomRepository
	blobs     repository.BlobStore
	notifier  Notifier
	retention time.Duration
}

// NewCleanupService 创建 CleanupService 实例。
func NewCleanupService(roomRepo repository.RoomRepository, blobs repository.BlobStore, notifier Notifier, retention time.Duration) *CleanupService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for CleanupService")
	}
	if blobs == nil {
		panic("BlobStore cannot be nil for CleanupService")
	}
	if notifier == nil {
		panic("Notifier cannot be nil for CleanupService")
	}
	if retention <= 0 {
		panic("retention must be positive for CleanupService")
	}
	return &CleanupService{roomRepo: roomRepo, blobs: blobs, notifier: notifier, retention: retention}
}

// RunSweep 执行一轮清理：
// 跳过豁免房间，按 UploadTime 划分过期文件，删对象、删记录、推送刷新事件。
func (s *CleanupService) RunSweep(ctx context.Context) error {
	log := logrus.WithField("component", "cleanup")
	rooms, err := s.roomRepo.FindAll(ctx)
	if err != nil {
		log.WithError(err).Error("Sweep aborted: cannot list rooms")
		return err
	}

	now := time.Now()
	totalRemoved := 0
	for _, room := range rooms {
		if domain.Classify(room.RoomCode).ExemptFromCleanup() {
			continue
		}
		removed := s.sweepRoom(ctx, &room, now)
		totalRemoved += removed
	}
	if totalRemoved > 0 {
		log.WithField("removed", totalRemoved).Info("Sweep finished")
	}
	return nil
}

// sweepRoom 清理单个房间，返回删除的记录数。房间内的失败不向上传播。
func (s *CleanupService) sweepRoom(ctx context.Context, room *domain.Room, now time.Time) int {
	logCtx := logrus.WithFields(logrus.Fields{"component": "cleanup", "room_code": room.RoomCode})

	var expiredKeys []string
	for _, f := range room.Files {
		if now.Sub(f.UploadTime) < s.retention {
			continue
		}
		err := s.blobs.Delete(ctx, f.StorageKey)
		switch {
		case err == nil, errors.Is(err, repository.ErrBlobNotFound):
			if errors.Is(err, repository.ErrBlobNotFound) {
				// 记录指向的对象已经不存在：不一致状态，照常清掉记录
				logCtx.WithField("storage_key", f.StorageKey).Warn("Expired record had no blob")
			}
			expiredKeys = append(expiredKeys, f.StorageKey)
		default:
			// 对象删除真正失败：保留记录，下一轮重试
			logCtx.WithError(err).WithField("storage_key", f.StorageKey).Error("Blob delete failed during sweep")
		}
	}
	if len(expiredKeys) == 0 {
		return 0
	}

	if err := s.roomRepo.RemoveFilesByKeys(ctx, room.ID, expiredKeys); err != nil {
		logCtx.WithError(err).Error("Persisting kept file list failed, continuing with next room")
		return 0
	}

	s.notifier.BroadcastToRoom(room.RoomCode, EventFilesExpired, map[string]interface{}{
		"storage_keys": expiredKeys,
	}, "")
	logCtx.WithField("expired", len(expiredKeys)).Info("Expired files removed")
	return len(expiredKeys)
}
