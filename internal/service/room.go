package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ramchandra100/file-share-app/internal/domain"
	"github.com/Ramchandra100/file-share-app/internal/repository"
)

// RoomView 是对外返回的房间视图。
// 管理员聚合房间的 Files 是所有房间文件的并集，IsAdminView 为 true。
type RoomView struct {
	RoomCode    string              `json:"room_code"`
	CreatedAt   time.Time           `json:"created_at"`
	Files       []domain.FileRecord `json:"files"`
	Text        string              `json:"text"`
	IsAdminView bool                `json:"is_admin_view"`
}

// RoomService 负责房间的创建、加入、读取和共享文字更新。
type RoomService struct {
	roomRepo repository.RoomRepository
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(roomRepo repository.RoomRepository) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	return &RoomService{roomRepo: roomRepo}
}

// CreateOrJoin 按房间码加入房间，不存在则创建。
// 并发首次加入由存储层的唯一约束保证只产生一个房间。
func (s *RoomService) CreateOrJoin(ctx context.Context, code string) (*RoomView, error) {
	code = domain.NormalizeRoomCode(code)
	if !domain.ValidateRoomCode(code) {
		return nil, ErrInvalidRoomCode
	}
	logCtx := logrus.WithField("room_code", code)

	room, err := s.roomRepo.FindOrCreate(ctx, code)
	if err != nil {
		logCtx.WithError(err).Error("Failed to find or create room")
		return nil, ErrInternalServer
	}
	logCtx.Info("Room joined")
	return s.buildView(ctx, room)
}

// GetRoom 读取房间视图。房间不存在时返回 ErrRoomNotFound。
func (s *RoomService) GetRoom(ctx context.Context, code string) (*RoomView, error) {
	code = domain.NormalizeRoomCode(code)
	if !domain.ValidateRoomCode(code) {
		return nil, ErrInvalidRoomCode
	}

	room, err := s.roomRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("room_code", code).Error("Failed to load room")
		return nil, ErrInternalServer
	}
	return s.buildView(ctx, room)
}

// RoomExists 只校验房间是否存在 (WebSocket 升级前的轻量检查)。
func (s *RoomService) RoomExists(ctx context.Context, code string) error {
	code = domain.NormalizeRoomCode(code)
	if !domain.ValidateRoomCode(code) {
		return ErrInvalidRoomCode
	}
	if _, err := s.roomRepo.FindByCode(ctx, code); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return ErrInternalServer
	}
	return nil
}

// UpdateText 追加一条文字记录。广播由调用方 (Hub) 负责，
// 以便把作者连接排除在推送之外。
func (s *RoomService) UpdateText(ctx context.Context, code, content, authorID string) (*domain.TextRevision, error) {
	code = domain.NormalizeRoomCode(code)
	if !domain.ValidateRoomCode(code) {
		return nil, ErrInvalidRoomCode
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "conn_id": authorID})

	revision := &domain.TextRevision{
		Content: content,
		AddedBy: authorID,
		AddedAt: time.Now(),
	}
	if err := s.roomRepo.AppendText(ctx, code, revision); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Failed to append text revision")
		return nil, ErrInternalServer
	}
	logCtx.WithField("size", len(content)).Debug("Text revision appended")
	return revision, nil
}

// buildView 把房间记录转成对外视图。
// 管理员聚合房间额外拉取所有房间，返回文件并集。
func (s *RoomService) buildView(ctx context.Context, room *domain.Room) (*RoomView, error) {
	view := &RoomView{
		RoomCode:  room.RoomCode,
		CreatedAt: room.CreatedAt,
		Files:     room.Files,
		Text:      room.CurrentText(),
	}
	if view.Files == nil {
		view.Files = []domain.FileRecord{}
	}

	if domain.Classify(room.RoomCode) != domain.ClassAdminAggregator {
		return view, nil
	}

	rooms, err := s.roomRepo.FindAll(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to aggregate files for admin view")
		return nil, ErrInternalServer
	}
	union := make([]domain.FileRecord, 0)
	for _, r := range rooms {
		union = append(union, r.Files...)
	}
	view.Files = union
	view.IsAdminView = true
	return view, nil
}
