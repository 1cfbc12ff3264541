// Package disk 提供基于本地文件系统的 BlobStore 实现。
// 对象按存储 key 平铺在一个基础目录下，元数据保存在 .meta/ 子目录的同名旁路文件中，
// 与对象命名空间隔离，任何合法 key 都不会与旁路文件冲突。
package disk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Ramchandra100/file-share-app/internal/domain"
	"github.com/Ramchandra100/file-share-app/internal/repository"
)

// 旁路元数据的子目录名。对象 key 不允许以 "." 开头，
// 所以点号命名空间 (元数据目录、临时文件) 永远不会和对象撞名。
const metaDir = ".meta"

// Store 把对象存储在本地磁盘上。
// 写入先进同目录下的临时文件，写完再 rename 到最终路径，
// 保证失败的 Put 不会留下可读取的半成品。
type Store struct {
	basePath string
	maxSize  int64 // 单个对象的大小上限 (字节)
}

// NewStore 创建 Store 实例，基础目录不存在时自动创建。
func NewStore(basePath string, maxSize int64) (*Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("disk: base path must not be empty")
	}
	if maxSize <= 0 {
		return nil, fmt.Errorf("disk: max size must be positive")
	}
	if err := os.MkdirAll(filepath.Join(basePath, metaDir), 0o755); err != nil {
		return nil, fmt.Errorf("disk: create base dir %s: %w", basePath, err)
	}
	return &Store{basePath: basePath, maxSize: maxSize}, nil
}

// Put 从 r 流式写入对象，超过大小上限时中止并清理临时文件。
func (s *Store) Put(ctx context.Context, key string, r io.Reader, meta domain.BlobMetadata) (int64, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(s.basePath, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("disk: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		if err := os.Remove(tmpName); err != nil && !os.IsNotExist(err) {
			logrus.WithError(err).WithField("path", tmpName).Warn("disk: failed to remove temp file")
		}
	}

	// 多拷贝一个字节来探测越界，避免整块缓冲
	written, err := io.Copy(tmp, io.LimitReader(r, s.maxSize+1))
	if err != nil {
		cleanup()
		return 0, fmt.Errorf("disk: stream blob '%s': %w", key, err)
	}
	if written > s.maxSize {
		cleanup()
		return 0, repository.ErrBlobTooLarge
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return 0, fmt.Errorf("disk: close temp file for '%s': %w", key, err)
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		cleanup()
		return 0, fmt.Errorf("disk: marshal metadata for '%s': %w", key, err)
	}
	if err := os.WriteFile(s.metaPath(key), metaBytes, 0o644); err != nil {
		cleanup()
		return 0, fmt.Errorf("disk: write metadata for '%s': %w", key, err)
	}

	// rename 之后对象才对读取可见
	if err := os.Rename(tmpName, s.blobPath(key)); err != nil {
		cleanup()
		if rmErr := os.Remove(s.metaPath(key)); rmErr != nil && !os.IsNotExist(rmErr) {
			logrus.WithError(rmErr).WithField("key", key).Warn("disk: failed to remove orphaned metadata")
		}
		return 0, fmt.Errorf("disk: commit blob '%s': %w", key, err)
	}
	return written, nil
}

// Get 返回对象内容的读取流及其大小。
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	if err := validateKey(key); err != nil {
		return nil, 0, err
	}
	f, err := os.Open(s.blobPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, repository.ErrBlobNotFound
		}
		return nil, 0, fmt.Errorf("disk: open blob '%s': %w", key, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("disk: stat blob '%s': %w", key, err)
	}
	return f, info.Size(), nil
}

// Delete 删除对象及其元数据文件。
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.blobPath(key)); err != nil {
		if os.IsNotExist(err) {
			return repository.ErrBlobNotFound
		}
		return fmt.Errorf("disk: delete blob '%s': %w", key, err)
	}
	if err := os.Remove(s.metaPath(key)); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).WithField("key", key).Warn("disk: failed to remove metadata file")
	}
	return nil
}

// DropAll 清空整个存储并重建空的基础目录。
func (s *Store) DropAll(ctx context.Context) error {
	if err := os.RemoveAll(s.basePath); err != nil {
		return fmt.Errorf("disk: drop all blobs: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(s.basePath, metaDir), 0o755); err != nil {
		return fmt.Errorf("disk: recreate base dir: %w", err)
	}
	return nil
}

func (s *Store) blobPath(key string) string {
	return filepath.Join(s.basePath, key)
}

func (s *Store) metaPath(key string) string {
	return filepath.Join(s.basePath, metaDir, key+".json")
}

// validateKey 拒绝可能逃出基础目录或落入点号命名空间的 key。
// key 由服务端生成 (以 unix-nano 数字开头)，这里只是兜底校验。
func validateKey(key string) error {
	if key == "" ||
		strings.ContainsAny(key, `/\`) ||
		strings.Contains(key, "..") ||
		strings.HasPrefix(key, ".") {
		return fmt.Errorf("disk: invalid storage key %q", key)
	}
	return nil
}
