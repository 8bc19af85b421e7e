package data

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/minio"
)

// BlobStore MinIO 对象存储实现
type BlobStore struct {
	client *minio.Client
}

// NewBlobStore 创建对象存储
func NewBlobStore(client *minio.Client) *BlobStore {
	return &BlobStore{client: client}
}

// Put 写入 blob
func (s *BlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	info, err := s.client.PutObject(ctx, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put blob: %w", err)
	}

	if info.Size != int64(len(data)) {
		return fmt.Errorf("blob size mismatch: wrote %d bytes, expected %d", info.Size, len(data))
	}
	return nil
}

// Get 读取 blob
func (s *BlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := s.client.GetObject(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}
	return reader, nil
}

// Delete 删除 blob，对象不存在时静默成功
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, key)
	if err != nil {
		if minio.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// Bucket 返回配置的 bucket 名称
func (s *BlobStore) Bucket() string {
	return s.client.Bucket()
}
