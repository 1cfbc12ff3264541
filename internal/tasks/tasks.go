// Package tasks 定义后台任务的类型名和载荷结构。
package tasks

// 任务类型常量
const (
	// TypeCleanupSweep 周期性的过期文件清理任务
	TypeCleanupSweep = "cleanup:sweep"
)

// 清理任务不携带参数：每轮扫描自己读取全量房间，
// 保留时长等策略在 CleanupService 构造时注入。
