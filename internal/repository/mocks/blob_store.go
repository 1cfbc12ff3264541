package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/Ramchandra100/file-share-app/internal/domain"
)

// BlobStore 是 repository.BlobStore 的 Mock 实现，供单元测试使用。
type BlobStore struct {
	mock.Mock
}

func (m *BlobStore) Put(ctx context.Context, key string, r io.Reader, meta domain.BlobMetadata) (int64, error) {
	args := m.Called(ctx, key, r, meta)
	return args.Get(0).(int64), args.Error(1)
}

func (m *BlobStore) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	args := m.Called(ctx, key)
	var rc io.ReadCloser
	if args.Get(0) != nil {
		rc = args.Get(0).(io.ReadCloser)
	}
	return rc, args.Get(1).(int64), args.Error(2)
}

func (m *BlobStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *BlobStore) DropAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
