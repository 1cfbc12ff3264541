package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Ramchandra100/file-share-app/internal/domain"
	"github.com/Ramchandra100/file-share-app/internal/repository"
)

// UploadInput 是一个待上传文件。Size 为调用方声明的大小，未知时为负数。
type UploadInput struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// UploadFailure 记录批量上传中单个文件的失败原因。
type UploadFailure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// UploadResult 是批量上传的结果：失败按文件隔离，不会中止整个请求。
type UploadResult struct {
	Committed []domain.FileRecord `json:"committed"`
	Failed    []UploadFailure     `json:"failed"`
}

// DownloadResult 是一次下载的流式结果。调用方负责 Close。
type DownloadResult struct {
	Reader   io.ReadCloser
	Filename string
	Size     int64
}

// TransferService 协调 Blob 存储和房间存储完成文件的上传、下载和删除，
// 并通过 Notifier 把变更推送给房间成员。
type TransferService struct {
	roomRepo repository.RoomRepository
	blobs    repository.BlobStore
	notifier Notifier
	maxSize  int64
}

// NewTransferService 创建 TransferService 实例。
func NewTransferService(roomRepo repository.RoomRepository, blobs repository.BlobStore, notifier Notifier, maxSize int64) *TransferService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for TransferService")
	}
	if blobs == nil {
		panic("BlobStore cannot be nil for TransferService")
	}
	if notifier == nil {
		panic("Notifier cannot be nil for TransferService")
	}
	if maxSize <= 0 {
		panic("maxSize must be positive for TransferService")
	}
	return &TransferService{roomRepo: roomRepo, blobs: blobs, notifier: notifier, maxSize: maxSize}
}

// UploadFiles 批量上传文件到房间。
// 单个文件的失败只影响它自己；声明大小超限的文件在触碰 Blob 存储之前就被拒绝。
// 所有文件都因超限失败时整个操作返回 ErrPayloadTooLarge。
func (s *TransferService) UploadFiles(ctx context.Context, code string, inputs []UploadInput) (*UploadResult, error) {
	code = domain.NormalizeRoomCode(code)
	if !domain.ValidateRoomCode(code) {
		return nil, ErrInvalidRoomCode
	}
	logCtx := logrus.WithField("room_code", code)

	if _, err := s.roomRepo.FindByCode(ctx, code); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Failed to load room for upload")
		return nil, ErrInternalServer
	}

	result := &UploadResult{
		Committed: []domain.FileRecord{},
		Failed:    []UploadFailure{},
	}
	tooLarge := 0

	for _, input := range inputs {
		fileCtx := logCtx.WithField("file_name", input.Name)

		if input.Size > s.maxSize {
			fileCtx.WithField("size", input.Size).Warn("Upload rejected: declared size over limit")
			result.Failed = append(result.Failed, UploadFailure{Name: input.Name, Reason: ErrPayloadTooLarge.Error()})
			tooLarge++
			continue
		}

		key := generateStorageKey(input.Name)
		written, err := s.blobs.Put(ctx, key, input.Reader, domain.BlobMetadata{
			OriginalName: input.Name,
			RoomCode:     code,
		})
		if err != nil {
			if errors.Is(err, repository.ErrBlobTooLarge) {
				fileCtx.Warn("Upload rejected: stream exceeded size limit")
				result.Failed = append(result.Failed, UploadFailure{Name: input.Name, Reason: ErrPayloadTooLarge.Error()})
				tooLarge++
			} else {
				fileCtx.WithError(err).Error("Blob write failed, skipping file")
				result.Failed = append(result.Failed, UploadFailure{Name: input.Name, Reason: ErrStorageFailure.Error()})
			}
			continue
		}

		record := domain.FileRecord{
			StorageKey:   key,
			OriginalName: input.Name,
			FileSize:     written,
			UploadTime:   time.Now(),
		}
		if err := s.roomRepo.AppendFile(ctx, code, &record); err != nil {
			// Blob 已写入但记录失败：留下孤儿对象，由人工或后续清理兜底
			fileCtx.WithError(err).WithField("storage_key", key).Error("File record write failed, blob orphaned")
			result.Failed = append(result.Failed, UploadFailure{Name: input.Name, Reason: ErrStorageFailure.Error()})
			continue
		}
		result.Committed = append(result.Committed, record)
		fileCtx.WithFields(logrus.Fields{"storage_key": key, "size": written}).Info("File uploaded")
	}

	if len(result.Committed) > 0 {
		s.notifier.BroadcastToRoom(code, EventNewFiles, result.Committed, "")
	}
	if len(result.Committed) == 0 && tooLarge > 0 && tooLarge == len(result.Failed) {
		return nil, ErrPayloadTooLarge
	}
	return result, nil
}

// Download 按存储 key 打开下载流。
// 找不到归属记录但对象存在时，退回用原始 key 当文件名提供下载；
// 对象也不存在时返回 ErrFileNotFound。
func (s *TransferService) Download(ctx context.Context, storageKey string) (*DownloadResult, error) {
	logCtx := logrus.WithField("storage_key", storageKey)

	filename := storageKey
	record, _, err := s.roomRepo.FindFileByKey(ctx, storageKey)
	switch {
	case err == nil:
		filename = record.OriginalName
	case errors.Is(err, repository.ErrFileNotFound):
		logCtx.Debug("No owning record for storage key, trying raw blob")
	default:
		logCtx.WithError(err).Error("Record lookup failed for download")
		return nil, ErrInternalServer
	}

	reader, size, err := s.blobs.Get(ctx, storageKey)
	if err != nil {
		if errors.Is(err, repository.ErrBlobNotFound) {
			if record != nil {
				// 记录存在但对象丢失：不一致状态，单独记日志，对外按未找到处理
				logCtx.Warn("Inconsistent state: file record without blob")
			}
			return nil, ErrFileNotFound
		}
		logCtx.WithError(err).Error("Blob read failed")
		return nil, ErrStorageFailure
	}
	return &DownloadResult{Reader: reader, Filename: filename, Size: size}, nil
}

// DeleteFile 删除房间内的一个文件：先删对象再删记录。
// 对象删除失败时保留记录并报错，避免留下指向空对象的记录。
func (s *TransferService) DeleteFile(ctx context.Context, code, storageKey string) error {
	code = domain.NormalizeRoomCode(code)
	if !domain.ValidateRoomCode(code) {
		return ErrInvalidRoomCode
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "storage_key": storageKey})

	if err := s.blobs.Delete(ctx, storageKey); err != nil {
		if errors.Is(err, repository.ErrBlobNotFound) {
			// 对象已经不在，记录还在就继续把记录清掉
			logCtx.Warn("Inconsistent state: blob already missing on delete")
		} else {
			logCtx.WithError(err).Error("Blob delete failed, keeping file record")
			return ErrStorageFailure
		}
	}

	if err := s.roomRepo.RemoveFile(ctx, code, storageKey); err != nil {
		switch {
		case errors.Is(err, repository.ErrRoomNotFound):
			return ErrRoomNotFound
		case errors.Is(err, repository.ErrFileNotFound):
			return ErrFileNotFound
		default:
			logCtx.WithError(err).Error("File record removal failed")
			return ErrInternalServer
		}
	}

	s.notifier.BroadcastToRoom(code, EventFileDeleted, map[string]string{"storage_key": storageKey}, "")
	logCtx.Info("File deleted")
	return nil
}

// BulkClear 全局清空：删除整个 Blob 存储并清空所有房间的文件索引。
// 只有管理员聚合房间码有权限，文字日志不受影响。
func (s *TransferService) BulkClear(ctx context.Context, requestingCode string) error {
	requestingCode = domain.NormalizeRoomCode(requestingCode)
	if domain.Classify(requestingCode) != domain.ClassAdminAggregator {
		logrus.WithField("room_code", requestingCode).Warn("Bulk clear rejected: not the admin room")
		return ErrUnauthorized
	}
	logCtx := logrus.WithField("room_code", requestingCode)

	if err := s.blobs.DropAll(ctx); err != nil {
		logCtx.WithError(err).Error("Blob store drop-all failed")
		return ErrStorageFailure
	}
	if err := s.roomRepo.ClearAllFiles(ctx); err != nil {
		logCtx.WithError(err).Error("Clearing file records failed after blob drop")
		return ErrInternalServer
	}

	s.notifier.BroadcastGlobal(EventAllFilesCleared, nil)
	logCtx.Info("All files cleared")
	return nil
}

// generateStorageKey 生成全局唯一的存储 key：
// 单调时间分量 + 随机分量 + 清洗后的原始文件名，碰撞概率可以忽略。
func generateStorageKey(name string) string {
	return fmt.Sprintf("%d-%s-%s", time.Now().UnixNano(), uuid.New().String(), sanitizeName(name))
}

// sanitizeName 把原始文件名压成适合做 key 片段的形式。
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
		if b.Len() >= 64 {
			break
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}
