package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/errors"
	"github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/logger"
)

// FileRecord 文件记录模型
type FileRecord struct {
	ID               string
	StorageBucket    string // 存储 bucket 名称
	StorageKey       string // 基于 hash 的物理路径: files/{hash[:2]}/{hash}
	OriginalFilename string // 首次上传时的文件名，仅展示用
	ContentType      string
	SizeBytes        int64
	ContentHash      string // 文件SHA256哈希（去重用）
	ReferenceCount   int64  // 引用计数，始终 >= 1
	DownloadCount    int64
	LastAccessedAt   *time.Time
	UploadedAt       time.Time
	Metadata         map[string]interface{} // 创建时快照，之后不再重算
}

// StorageSaved 去重节省的字节数，读取时计算，不落库
func (r *FileRecord) StorageSaved() int64 {
	return (r.ReferenceCount - 1) * r.SizeBytes
}

// IngestInput 上传入参
type IngestInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Ordering 规范化后的排序
type Ordering struct {
	Key  string // uploaded_at, size, original_filename
	Desc bool
}

// SearchFilter 检索过滤条件，零值字段不参与过滤
type SearchFilter struct {
	NameContains string // 文件名或类型的子串匹配（不区分大小写）
	TypeEquals   string // 类型精确匹配（不区分大小写）
	SizeMin      *int64 // 闭区间下界
	SizeMax      *int64 // 闭区间上界
	Ordering     Ordering
}

// FileRepo 文件仓储接口
type FileRepo interface {
	Create(ctx context.Context, record *FileRecord) error
	GetByID(ctx context.Context, id string) (*FileRecord, error)
	// GetByHash 未命中时返回 (nil, nil)
	GetByHash(ctx context.Context, contentHash string) (*FileRecord, error)
	IncrementReference(ctx context.Context, id string) error
	DecrementReference(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	// TouchAccess 单条 UPDATE 完成 download_count+1 与 last_accessed_at 刷新，返回更新后的记录
	TouchAccess(ctx context.Context, id string) (*FileRecord, error)
	Search(ctx context.Context, filter *SearchFilter) ([]*FileRecord, error)
}

// BlobStore 对象存储接口（MinIO）
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete 幂等，对象不存在时不报错
	Delete(ctx context.Context, key string) error
	// Bucket 返回对象所在的 bucket 名称
	Bucket() string
}

// FileUseCase 文件用例
type FileUseCase struct {
	repo   FileRepo
	store  BlobStore
	hashMu *keyMutex
	logger *logger.Logger
}

// NewFileUseCase 创建文件用例
func NewFileUseCase(repo FileRepo, store BlobStore, log *logger.Logger) *FileUseCase {
	return &FileUseCase{
		repo:   repo,
		store:  store,
		hashMu: newKeyMutex(),
		logger: log,
	}
}

// Ingest 上传文件。内容已存在时原子递增引用计数，不写 blob、不改元数据；
// 新内容写入 blob 后插入记录，插入失败时回收 blob。
// 返回的 isNew 区分新建与去重命中。
func (uc *FileUseCase) Ingest(ctx context.Context, input *IngestInput) (*FileRecord, bool, error) {
	if len(input.Data) == 0 {
		return nil, false, apperrors.New(apperrors.ErrFileEmptyPayload, input.Filename)
	}

	contentType := input.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// hash 计算不持锁，避免大文件阻塞其他内容的上传
	sum := sha256.Sum256(input.Data)
	contentHash := hex.EncodeToString(sum[:])

	// 同一 hash 的 lookup-then-mutate 临界区
	uc.hashMu.Lock(contentHash)
	defer uc.hashMu.Unlock(contentHash)

	existing, err := uc.repo.GetByHash(ctx, contentHash)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check file existence: %w", err)
	}

	if existing != nil {
		// 去重命中，只递增引用计数
		if err := uc.repo.IncrementReference(ctx, existing.ID); err != nil {
			return nil, false, fmt.Errorf("failed to increment reference: %w", err)
		}

		record, err := uc.repo.GetByID(ctx, existing.ID)
		if err != nil {
			// 递增已提交，重读失败不能向调用方报错；用预读记录回填计数
			uc.logger.Warn("failed to reload file record after increment",
				zap.String("file_id", existing.ID),
				zap.Error(err),
			)
			record = existing
			record.ReferenceCount++
		}

		uc.logger.Info("duplicate content deduplicated",
			zap.String("file_id", record.ID),
			zap.String("content_hash", contentHash),
			zap.Int64("reference_count", record.ReferenceCount),
		)
		return record, false, nil
	}

	// 新内容，基于 hash 生成存储路径
	storageKey := fmt.Sprintf("files/%s/%s", contentHash[:2], contentHash)

	if err := uc.store.Put(ctx, storageKey, input.Data, contentType); err != nil {
		return nil, false, apperrors.Wrap(err, apperrors.ErrFileStorageFailed, "blob write failed")
	}

	now := time.Now().UTC()
	record := &FileRecord{
		ID:               uuid.New().String(),
		StorageBucket:    uc.store.Bucket(),
		StorageKey:       storageKey,
		OriginalFilename: input.Filename,
		ContentType:      contentType,
		SizeBytes:        int64(len(input.Data)),
		ContentHash:      contentHash,
		ReferenceCount:   1,
		DownloadCount:    0,
		UploadedAt:       now,
		Metadata: map[string]interface{}{
			"filename":     input.Filename,
			"content_type": contentType,
			"size":         int64(len(input.Data)),
			"upload_date":  now.Format(time.RFC3339),
			"extension":    strings.ToLower(filepath.Ext(input.Filename)),
		},
	}

	if err := uc.repo.Create(ctx, record); err != nil {
		// 回收已写入的 blob，避免孤儿对象。
		// 请求 context 可能已取消（插入失败的常见原因），清理必须脱离它执行
		cleanupCtx := context.WithoutCancel(ctx)
		if delErr := uc.store.Delete(cleanupCtx, storageKey); delErr != nil {
			uc.logger.Error("failed to clean up blob after insert failure",
				zap.String("storage_key", storageKey),
				zap.Error(delErr),
			)
		}
		return nil, false, fmt.Errorf("failed to create file record: %w", err)
	}

	uc.logger.Info("new content ingested",
		zap.String("file_id", record.ID),
		zap.String("content_hash", contentHash),
		zap.Int64("size_bytes", record.SizeBytes),
	)
	return record, true, nil
}

// Retrieve 按 id 获取记录，并原子更新访问统计（download_count+1, last_accessed_at=now）
func (uc *FileUseCase) Retrieve(ctx context.Context, id string) (*FileRecord, error) {
	record, err := uc.repo.TouchAccess(ctx, id)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Open 获取记录与 blob 读取句柄，访问统计与 Retrieve 一致
func (uc *FileUseCase) Open(ctx context.Context, id string) (*FileRecord, io.ReadCloser, error) {
	record, err := uc.Retrieve(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	reader, err := uc.store.Get(ctx, record.StorageKey)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrFileStorageFailed, "blob read failed")
	}

	return record, reader, nil
}

// Release 释放一次引用。引用计数 >1 时仅递减；
// 降到 0 时删除记录并回收 blob（blob 缺失容忍，不影响删除结果）。
func (uc *FileUseCase) Release(ctx context.Context, id string) error {
	record, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	uc.hashMu.Lock(record.ContentHash)
	defer uc.hashMu.Unlock(record.ContentHash)

	// 持锁后重读，防止并发 release/ingest 间的状态漂移
	record, err = uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if record.ReferenceCount > 1 {
		if err := uc.repo.DecrementReference(ctx, id); err != nil {
			return fmt.Errorf("failed to decrement reference: %w", err)
		}

		uc.logger.Info("file reference released",
			zap.String("file_id", id),
			zap.Int64("reference_count", record.ReferenceCount-1),
		)
		return nil
	}

	// 最后一个引用：先删记录，再回收 blob
	if err := uc.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	if err := uc.store.Delete(ctx, record.StorageKey); err != nil {
		uc.logger.Error("failed to delete blob",
			zap.String("file_id", id),
			zap.String("storage_key", record.StorageKey),
			zap.Error(err),
		)
		return apperrors.Wrap(err, apperrors.ErrFileStorageFailed, "blob delete failed")
	}

	uc.logger.Info("file removed",
		zap.String("file_id", id),
		zap.String("storage_key", record.StorageKey),
	)
	return nil
}

// Search 按过滤条件检索文件记录
func (uc *FileUseCase) Search(ctx context.Context, filter *SearchFilter) ([]*FileRecord, error) {
	if filter == nil {
		filter = &SearchFilter{}
	}
	if filter.SizeMin != nil && filter.SizeMax != nil && *filter.SizeMin > *filter.SizeMax {
		return []*FileRecord{}, nil
	}

	records, err := uc.repo.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search files: %w", err)
	}
	return records, nil
}

// List 按排序列出全部文件记录
func (uc *FileUseCase) List(ctx context.Context, ordering Ordering) ([]*FileRecord, error) {
	return uc.Search(ctx, &SearchFilter{Ordering: ordering})
}

// orderingKeys 允许的排序键
var orderingKeys = map[string]bool{
	"uploaded_at":       true,
	"size":              true,
	"original_filename": true,
}

// DefaultOrdering 默认排序：上传时间倒序
func DefaultOrdering() Ordering {
	return Ordering{Key: "uploaded_at", Desc: true}
}

// ParseOrdering 解析排序参数，`-` 前缀表示倒序，未知键回退到默认排序
func ParseOrdering(raw string) Ordering {
	if raw == "" {
		return DefaultOrdering()
	}

	desc := false
	key := raw
	if strings.HasPrefix(raw, "-") {
		desc = true
		key = raw[1:]
	}

	if !orderingKeys[key] {
		return DefaultOrdering()
	}
	return Ordering{Key: key, Desc: desc}
}
