package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/Ramchandra100/file-share-app/internal/domain"
	"github.com/Ramchandra100/file-share-app/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// isDuplicateEntry 判断是否违反了 MySQL 唯一约束 (errno 1062)
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

// FindByCode 实现根据房间码查找房间，附带文件索引与文字日志
func (r *GormRoomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).
		Preload("Files").
		Preload("Texts", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("room_code = ?", code).
		First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by code '%s': %w", code, err)
	}
	return &room, nil
}

// FindOrCreate 实现竞争安全的查找或创建。
// 并发首次加入时，创建方可能撞上 room_code 的唯一约束，
// 此时重新读取赢家的记录返回，调用方不会看到错误。
func (r *GormRoomRepository) FindOrCreate(ctx context.Context, code string) (*domain.Room, error) {
	room, err := r.FindByCode(ctx, code)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, repository.ErrRoomNotFound) {
		return nil, err
	}

	created := &domain.Room{RoomCode: code}
	if err := r.db.WithContext(ctx).Create(created).Error; err != nil {
		if isDuplicateEntry(err) {
			// 输掉了创建竞争，读取赢家的记录
			return r.FindByCode(ctx, code)
		}
		return nil, fmt.Errorf("gorm: create room '%s': %w", code, err)
	}
	return created, nil
}

// FindAll 实现读取所有房间 (附带文件索引)
func (r *GormRoomRepository) FindAll(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).Preload("Files").Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find all rooms: %w", err)
	}
	return rooms, nil
}

// AppendFile 实现向房间文件索引追加记录
func (r *GormRoomRepository) AppendFile(ctx context.Context, code string, record *domain.FileRecord) error {
	roomID, err := r.roomIDByCode(ctx, code)
	if err != nil {
		return err
	}
	record.RoomID = roomID
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: append file record (room: %s, key: %s): %w", code, record.StorageKey, err)
	}
	return nil
}

// RemoveFile 实现按存储 key 删除房间内的文件记录
func (r *GormRoomRepository) RemoveFile(ctx context.Context, code string, storageKey string) error {
	roomID, err := r.roomIDByCode(ctx, code)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Where("room_id = ? AND storage_key = ?", roomID, storageKey).
		Delete(&domain.FileRecord{})
	if result.Error != nil {
		return fmt.Errorf("gorm: remove file record (room: %s, key: %s): %w", code, storageKey, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrFileNotFound
	}
	return nil
}

// FindFileByKey 实现按存储 key 定位记录及其归属房间。
// storage_key 有唯一索引，最多命中一条。
func (r *GormRoomRepository) FindFileByKey(ctx context.Context, storageKey string) (*domain.FileRecord, *domain.Room, error) {
	var record domain.FileRecord
	err := r.db.WithContext(ctx).Where("storage_key = ?", storageKey).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, repository.ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("gorm: find file by key '%s': %w", storageKey, err)
	}
	var room domain.Room
	if err := r.db.WithContext(ctx).First(&room, record.RoomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 记录指向不存在的房间，视为不一致状态，按未找到处理
			return nil, nil, repository.ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("gorm: find owning room %d for key '%s': %w", record.RoomID, storageKey, err)
	}
	return &record, &room, nil
}

// RemoveFilesByKeys 实现批量删除房间内的文件记录 (清理任务用)
func (r *GormRoomRepository) RemoveFilesByKeys(ctx context.Context, roomID uint, storageKeys []string) error {
	if len(storageKeys) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND storage_key IN ?", roomID, storageKeys).
		Delete(&domain.FileRecord{}).Error
	if err != nil {
		return fmt.Errorf("gorm: remove %d file records for room %d: %w", len(storageKeys), roomID, err)
	}
	return nil
}

// AppendText 实现向房间文字日志追加记录
func (r *GormRoomRepository) AppendText(ctx context.Context, code string, revision *domain.TextRevision) error {
	roomID, err := r.roomIDByCode(ctx, code)
	if err != nil {
		return err
	}
	revision.RoomID = roomID
	if err := r.db.WithContext(ctx).Create(revision).Error; err != nil {
		return fmt.Errorf("gorm: append text revision (room: %s): %w", code, err)
	}
	return nil
}

// ClearAllFiles 实现清空所有房间的文件索引，文字日志不动
func (r *GormRoomRepository) ClearAllFiles(ctx context.Context) error {
	err := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&domain.FileRecord{}).Error
	if err != nil {
		return fmt.Errorf("gorm: clear all file records: %w", err)
	}
	return nil
}

func (r *GormRoomRepository) roomIDByCode(ctx context.Context, code string) (uint, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Select("id").Where("room_code = ?", code).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, repository.ErrRoomNotFound
		}
		return 0, fmt.Errorf("gorm: resolve room id for code '%s': %w", code, err)
	}
	return room.ID, nil
}
