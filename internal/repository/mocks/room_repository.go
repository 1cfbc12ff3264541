package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Ramchandra100/file-share-app/internal/domain"
)

// RoomRepository 是 repository.RoomRepository 的 Mock 实现，供单元测试使用。
type RoomRepository struct {
	mock.Mock
}

func (m *RoomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	args := m.Called(ctx, code)
	var room *domain.Room
	if args.Get(0) != nil {
		room = args.Get(0).(*domain.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepository) FindOrCreate(ctx context.Context, code string) (*domain.Room, error) {
	args := m.Called(ctx, code)
	var room *domain.Room
	if args.Get(0) != nil {
		room = args.Get(0).(*domain.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepository) FindAll(ctx context.Context) ([]domain.Room, error) {
	args := m.Called(ctx)
	var rooms []domain.Room
	if args.Get(0) != nil {
		rooms = args.Get(0).([]domain.Room)
	}
	return rooms, args.Error(1)
}

func (m *RoomRepository) AppendFile(ctx context.Context, code string, record *domain.FileRecord) error {
	args := m.Called(ctx, code, record)
	return args.Error(0)
}

func (m *RoomRepository) RemoveFile(ctx context.Context, code string, storageKey string) error {
	args := m.Called(ctx, code, storageKey)
	return args.Error(0)
}

func (m *RoomRepository) FindFileByKey(ctx context.Context, storageKey string) (*domain.FileRecord, *domain.Room, error) {
	args := m.Called(ctx, storageKey)
	var record *domain.FileRecord
	if args.Get(0) != nil {
		record = args.Get(0).(*domain.FileRecord)
	}
	var room *domain.Room
	if args.Get(1) != nil {
		room = args.Get(1).(*domain.Room)
	}
	return record, room, args.Error(2)
}

func (m *RoomRepository) RemoveFilesByKeys(ctx context.Context, roomID uint, storageKeys []string) error {
	args := m.Called(ctx, roomID, storageKeys)
	return args.Error(0)
}

func (m *RoomRepository) AppendText(ctx context.Context, code string, revision *domain.TextRevision) error {
	args := m.Called(ctx, code, revision)
	return args.Error(0)
}

func (m *RoomRepository) ClearAllFiles(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
