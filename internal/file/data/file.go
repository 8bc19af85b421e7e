package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shaibinkb16/File-Vault-CI-CD/internal/file/biz"
	"github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/database"
	apperrors "github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/errors"
)

// FilePO 文件数据库模型
type FilePO struct {
	ID               string     `gorm:"type:uuid;primarykey"`
	StorageBucket    string     `gorm:"column:storage_bucket;size:100;not null"`
	StorageKey       string     `gorm:"column:storage_key;size:500;not null"`
	OriginalFilename string     `gorm:"column:original_filename;size:255;not null"`
	ContentType      string     `gorm:"column:content_type;size:100;not null;index:idx_files_content_type"`
	SizeBytes        int64      `gorm:"column:size_bytes;not null"`
	ContentHash      string     `gorm:"column:content_hash;size:64;not null;uniqueIndex:idx_files_content_hash"`
	ReferenceCount   int64      `gorm:"column:reference_count;not null;default:1"`
	DownloadCount    int64      `gorm:"column:download_count;not null;default:0"`
	LastAccessedAt   *time.Time `gorm:"column:last_accessed_at"`
	UploadedAt       time.Time  `gorm:"column:uploaded_at;not null;default:CURRENT_TIMESTAMP"`
	Metadata         string     `gorm:"column:metadata;type:jsonb"`
}

func (FilePO) TableName() string {
	return "files"
}

// FileRepo 文件仓储实现
type FileRepo struct {
	db *database.DB
}

// NewFileRepo 创建文件仓储
func NewFileRepo(db *database.DB) *FileRepo {
	return &FileRepo{db: db}
}

// Create 创建文件记录
func (r *FileRepo) Create(ctx context.Context, record *biz.FileRecord) error {
	po, err := toPO(record)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).GetDB().Create(po).Error; err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取文件记录
func (r *FileRepo) GetByID(ctx context.Context, id string) (*biz.FileRecord, error) {
	var po FilePO
	err := r.db.WithContext(ctx).GetDB().Where("id = ?", id).First(&po).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, apperrors.New(apperrors.ErrFileNotFound, id)
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return toDomain(&po)
}

// GetByHash 根据内容哈希获取文件记录，未命中时返回 (nil, nil)
func (r *FileRepo) GetByHash(ctx context.Context, contentHash string) (*biz.FileRecord, error) {
	var po FilePO
	err := r.db.WithContext(ctx).GetDB().Where("content_hash = ?", contentHash).First(&po).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get file by hash: %w", err)
	}
	return toDomain(&po)
}

// IncrementReference 原子递增引用计数
func (r *FileRepo) IncrementReference(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).GetDB().Model(&FilePO{}).
		Where("id = ?", id).
		Update("reference_count", gorm.Expr("reference_count + 1"))
	if result.Error != nil {
		return fmt.Errorf("failed to increment reference: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrFileNotFound, id)
	}
	return nil
}

// DecrementReference 原子递减引用计数
func (r *FileRepo) DecrementReference(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).GetDB().Model(&FilePO{}).
		Where("id = ? AND reference_count > 1", id).
		Update("reference_count", gorm.Expr("reference_count - 1"))
	if result.Error != nil {
		return fmt.Errorf("failed to decrement reference: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrFileNotFound, id)
	}
	return nil
}

// Delete 删除文件记录
func (r *FileRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).GetDB().Where("id = ?", id).Delete(&FilePO{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete file: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrFileNotFound, id)
	}
	return nil
}

// TouchAccess 单条 UPDATE 刷新访问统计并返回更新后的记录
func (r *FileRepo) TouchAccess(ctx context.Context, id string) (*biz.FileRecord, error) {
	var po FilePO
	result := r.db.WithContext(ctx).GetDB().Model(&po).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"download_count":   gorm.Expr("download_count + 1"),
			"last_accessed_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update access stats: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.New(apperrors.ErrFileNotFound, id)
	}
	return toDomain(&po)
}

// Search 按过滤条件检索文件记录
func (r *FileRepo) Search(ctx context.Context, filter *biz.SearchFilter) ([]*biz.FileRecord, error) {
	query := r.db.WithContext(ctx).GetDB().Model(&FilePO{})

	if filter.NameContains != "" {
		pattern := "%" + filter.NameContains + "%"
		query = query.Where("original_filename ILIKE ? OR content_type ILIKE ?", pattern, pattern)
	}
	if filter.TypeEquals != "" {
		query = query.Where("LOWER(content_type) = LOWER(?)", filter.TypeEquals)
	}
	if filter.SizeMin != nil {
		query = query.Where("size_bytes >= ?", *filter.SizeMin)
	}
	if filter.SizeMax != nil {
		query = query.Where("size_bytes <= ?", *filter.SizeMax)
	}

	var pos []FilePO
	if err := query.Order(orderClause(filter.Ordering)).Find(&pos).Error; err != nil {
		return nil, fmt.Errorf("failed to search files: %w", err)
	}

	records := make([]*biz.FileRecord, len(pos))
	for i := range pos {
		record, err := toDomain(&pos[i])
		if err != nil {
			return nil, err
		}
		records[i] = record
	}
	return records, nil
}

// orderColumns 排序键到列名的映射
var orderColumns = map[string]string{
	"uploaded_at":       "uploaded_at",
	"size":              "size_bytes",
	"original_filename": "original_filename",
}

func orderClause(ordering biz.Ordering) string {
	column, ok := orderColumns[ordering.Key]
	if !ok {
		return "uploaded_at DESC"
	}
	if ordering.Desc {
		return column + " DESC"
	}
	return column + " ASC"
}

func toPO(record *biz.FileRecord) (*FilePO, error) {
	metadataJSON := "{}"
	if len(record.Metadata) > 0 {
		raw, err := json.Marshal(record.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadataJSON = string(raw)
	}

	return &FilePO{
		ID:               record.ID,
		StorageBucket:    record.StorageBucket,
		StorageKey:       record.StorageKey,
		OriginalFilename: record.OriginalFilename,
		ContentType:      record.ContentType,
		SizeBytes:        record.SizeBytes,
		ContentHash:      record.ContentHash,
		ReferenceCount:   record.ReferenceCount,
		DownloadCount:    record.DownloadCount,
		LastAccessedAt:   record.LastAccessedAt,
		UploadedAt:       record.UploadedAt,
		Metadata:         metadataJSON,
	}, nil
}

func toDomain(po *FilePO) (*biz.FileRecord, error) {
	var metadata map[string]interface{}
	if po.Metadata != "" {
		if err := json.Unmarshal([]byte(po.Metadata), &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &biz.FileRecord{
		ID:               po.ID,
		StorageBucket:    po.StorageBucket,
		StorageKey:       po.StorageKey,
		OriginalFilename: po.OriginalFilename,
		ContentType:      po.ContentType,
		SizeBytes:        po.SizeBytes,
		ContentHash:      po.ContentHash,
		ReferenceCount:   po.ReferenceCount,
		DownloadCount:    po.DownloadCount,
		LastAccessedAt:   po.LastAccessedAt,
		UploadedAt:       po.UploadedAt,
		Metadata:         metadata,
	}, nil
}
