package repository

import (
	"context"

	"github.com/Ramchandra100/file-share-app/internal/domain"
)

// RoomRepository 定义了房间数据的存储和检索操作。
// 房间数据是文件归属关系的唯一权威来源，Hub 的内存成员表只用于实时推送。
type RoomRepository interface {
	// FindByCode 根据房间码查找房间 (含文件索引与文字记录)。
	// 房间不存在时返回 ErrRoomNotFound。
	FindByCode(ctx context.Context, code string) (*domain.Room, error)

	// FindOrCreate 查找房间，不存在则创建。
	// 必须对并发首次加入安全：创建撞上唯一约束时，输掉竞争的一方
	// 重新读取赢家的记录返回，而不是把错误抛给调用方。
	FindOrCreate(ctx context.Context, code string) (*domain.Room, error)

	// FindAll 返回所有房间 (含文件索引)，供清理任务和聚合视图使用。
	FindAll(ctx context.Context) ([]domain.Room, error)

	// AppendFile 向房间的文件索引追加一条记录。
	AppendFile(ctx context.Context, code string, record *domain.FileRecord) error

	// RemoveFile 按存储 key 从房间的文件索引中删除记录。
	// 记录不存在时返回 ErrFileNotFound。
	RemoveFile(ctx context.Context, code string, storageKey string) error

	// FindFileByKey 按存储 key 查找文件记录及其归属房间。
	// storage_key 带唯一索引，最多命中一条。
	FindFileByKey(ctx context.Context, storageKey string) (*domain.FileRecord, *domain.Room, error)

	// RemoveFilesByKeys 批量删除一个房间的若干文件记录 (清理任务用)。
	RemoveFilesByKeys(ctx context.Context, roomID uint, storageKeys []string) error

	// AppendText 向房间的文字日志追加一条记录。
	AppendText(ctx context.Context, code string, revision *domain.TextRevision) error

	// ClearAllFiles 清空所有房间的文件索引，文字日志不受影响。
	// 仅由全局清空操作调用。
	ClearAllFiles(ctx context.Context) error
}
