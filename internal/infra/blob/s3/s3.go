// Package s3 提供基于 S3 兼容对象存储 (AWS S3 / MinIO) 的 BlobStore 实现。
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"github.com/Ramchandra100/file-share-app/internal/domain"
	"github.com/Ramchandra100/file-share-app/internal/repository"
)

// Config 是 S3 后端的连接参数。BaseEndpoint 非空时指向 MinIO 等自建服务。
type Config struct {
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
}

// Store 把对象存入一个 S3 bucket。上传走 manager.Uploader 的分片流式通道，
// 不要求对象整体驻留内存；S3 端的对象提交本身是原子的。
type Store struct {
	client   *awss3.Client
	uploader *manager.Uploader
	bucket   string
	maxSize  int64
}

// NewStore 构建 S3 客户端并返回 Store 实例。
func NewStore(ctx context.Context, cfg Config, maxSize int64) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket must not be empty")
	}
	if maxSize <= 0 {
		return nil, fmt.Errorf("s3: max size must be positive")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true // MinIO 需要 path-style 访问
		}
	})

	return &Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		maxSize:  maxSize,
	}, nil
}

// Put 流式上传对象。读取超过大小上限时 ceilingReader 报错，
// uploader 中止分片上传，bucket 里不会留下该 key。
func (s *Store) Put(ctx context.Context, key string, r io.Reader, meta domain.BlobMetadata) (int64, error) {
	cr := &ceilingReader{r: r, remaining: s.maxSize}
	_, err := s.uploader.Upload(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   cr,
		Metadata: map[string]string{
			"original-name": meta.OriginalName,
			"room-code":     meta.RoomCode,
		},
	})
	if err != nil {
		if errors.Is(err, repository.ErrBlobTooLarge) {
			return 0, repository.ErrBlobTooLarge
		}
		return 0, fmt.Errorf("s3: upload blob '%s': %w", key, err)
	}
	return cr.read, nil
}

// Get 返回对象内容的读取流及其大小。
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, 0, repository.ErrBlobNotFound
		}
		return nil, 0, fmt.Errorf("s3: get blob '%s': %w", key, err)
	}
	return out.Body, aws.ToInt64(out.ContentLength), nil
}

// Delete 删除对象。S3 对不存在的 key 也返回成功，
// 所以先 Head 探测以保持 NotFound 语义。
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return repository.ErrBlobNotFound
		}
		return fmt.Errorf("s3: head blob '%s': %w", key, err)
	}
	if _, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("s3: delete blob '%s': %w", key, err)
	}
	return nil
}

// DropAll 分页列举 bucket 内全部对象并批量删除。
func (s *Store) DropAll(ctx context.Context) error {
	log := logrus.WithField("component", "blob_s3")
	paginator := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("s3: list blobs: %w", err)
		}
		if len(page.Contents) == 0 {
			continue
		}
		identifiers := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			identifiers = append(identifiers, types.ObjectIdentifier{Key: obj.Key})
		}
		out, err := s.client.DeleteObjects(ctx, &awss3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: identifiers, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("s3: batch delete blobs: %w", err)
		}
		for _, derr := range out.Errors {
			log.WithFields(logrus.Fields{
				"key":     aws.ToString(derr.Key),
				"message": aws.ToString(derr.Message),
			}).Warn("s3: failed to delete object during drop-all")
		}
	}
	return nil
}

// ceilingReader 在读取超过 remaining 字节时返回 ErrBlobTooLarge。
type ceilingReader struct {
	r         io.Reader
	remaining int64
	read      int64
}

func (c *ceilingReader) Read(p []byte) (int, error) {
	if c.remaining < 0 {
		return 0, repository.ErrBlobTooLarge
	}
	// 最多多读一个字节用于探测越界
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.read += int64(n)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, repository.ErrBlobTooLarge
	}
	return n, err
}
