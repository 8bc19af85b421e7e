package service

import (
	"time"

	"github.com/shaibinkb16/File-Vault-CI-CD/internal/file/biz"
)

// 上传结果状态
const (
	StatusNew       = "new"
	StatusDuplicate = "duplicate"
	StatusError     = "error"
)

// FileResponse 文件记录的对外表示
type FileResponse struct {
	ID                 string                 `json:"id"`
	OriginalFilename   string                 `json:"original_filename"`
	ContentType        string                 `json:"content_type"`
	DisplayContentType string                 `json:"display_content_type"`
	SizeBytes          int64                  `json:"size_bytes"`
	UploadedAt         time.Time              `json:"uploaded_at"`
	ReferenceCount     int64                  `json:"reference_count"`
	StorageSaved       int64                  `json:"storage_saved"`
	DownloadCount      int64                  `json:"download_count"`
	LastAccessedAt     *time.Time             `json:"last_accessed_at"`
	Metadata           map[string]interface{} `json:"metadata"`
}

// UploadOutcome 批量上传中单个文件的结果
type UploadOutcome struct {
	Filename string        `json:"filename"`
	Status   string        `json:"status"` // new, duplicate, error
	Error    string        `json:"error,omitempty"`
	File     *FileResponse `json:"file,omitempty"`
}

func toFileResponse(record *biz.FileRecord) *FileResponse {
	return &FileResponse{
		ID:                 record.ID,
		OriginalFilename:   record.OriginalFilename,
		ContentType:        record.ContentType,
		DisplayContentType: biz.DisplayContentType(record.ContentType),
		SizeBytes:          record.SizeBytes,
		UploadedAt:         record.UploadedAt,
		ReferenceCount:     record.ReferenceCount,
		StorageSaved:       record.StorageSaved(),
		DownloadCount:      record.DownloadCount,
		LastAccessedAt:     record.LastAccessedAt,
		Metadata:           record.Metadata,
	}
}

func uploadStatus(isNew bool) string {
	if isNew {
		return StatusNew
	}
	return StatusDuplicate
}
