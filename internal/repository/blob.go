package repository

import (
	"context"
	"io"

	"github.com/Ramchandra100/file-share-app/internal/domain"
)

// BlobStore 定义了文件内容的流式存取接口。
// 实现必须流式处理：不要求整个对象驻留内存，写入超过大小上限时中止并返回
// ErrBlobTooLarge。Put 对调用方必须是原子的：失败的写入不能留下可读取的半成品。
type BlobStore interface {
	// Put 从 r 流式写入对象。成功返回写入的字节数。
	Put(ctx context.Context, key string, r io.Reader, meta domain.BlobMetadata) (int64, error)

	// Get 返回对象内容的惰性读取流及其大小，适合直接透传给远端消费者。
	// 对象不存在时返回 ErrBlobNotFound。调用方负责 Close。
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)

	// Delete 删除对象。对象不存在时返回 ErrBlobNotFound。
	Delete(ctx context.Context, key string) error

	// DropAll 清空整个存储，仅由全局清空操作调用。
	DropAll(ctx context.Context) error
}
