package service

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shaibinkb16/File-Vault-CI-CD/internal/conf"
	"github.com/shaibinkb16/File-Vault-CI-CD/internal/file/biz"
	apperrors "github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/errors"
	"github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/logger"
	"github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/response"
	"github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/workerpool"
)

type FileService struct {
	fileUseCase *biz.FileUseCase
	uploadPool  *workerpool.Pool
	uploadConf  *conf.UploadConfig
	logger      *logger.Logger
}

func NewFileService(
	fileUseCase *biz.FileUseCase,
	uploadPool *workerpool.Pool,
	uploadConf *conf.UploadConfig,
	log *logger.Logger,
) *FileService {
	return &FileService{
		fileUseCase: fileUseCase,
		uploadPool:  uploadPool,
		uploadConf:  uploadConf,
		logger:      log,
	}
}

// RegisterRoutes 注册路由
func (s *FileService) RegisterRoutes(r *gin.RouterGroup) {
	files := r.Group("/files")
	{
		files.POST("", s.Upload)
		files.GET("", s.List)
		files.GET("/search", s.Search)
		files.GET("/:id", s.Get)
		files.GET("/:id/download", s.Download)
		files.DELETE("/:id", s.Delete)
	}
}

// Upload 上传文件。单个 file 字段返回单个结果，
// files 字段（或多个字段）返回按序的逐文件结果数组。
func (s *FileService) Upload(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(s.uploadConf.MaxFileSize); err != nil {
		response.ErrorWithCode(c, apperrors.ErrFileEmptyPayload, "failed to parse multipart form")
		return
	}

	form := c.Request.MultipartForm
	if form == nil || form.File == nil {
		response.ErrorWithCode(c, apperrors.ErrFileEmptyPayload, "no file uploaded")
		return
	}

	// 收集所有文件，优先使用 "files" 字段，其次 "file"，最后收集全部字段
	var headers []*multipart.FileHeader
	batch := false
	if fhs, ok := form.File["files"]; ok && len(fhs) > 0 {
		headers = fhs
		batch = true
	} else if fhs, ok := form.File["file"]; ok && len(fhs) > 0 {
		headers = fhs
		batch = len(fhs) > 1
	} else {
		for _, fhs := range form.File {
			headers = append(headers, fhs...)
		}
		batch = len(headers) > 1
	}

	if len(headers) == 0 {
		response.ErrorWithCode(c, apperrors.ErrFileEmptyPayload, "no file uploaded")
		return
	}

	if len(headers) > s.uploadConf.MaxBatchFiles {
		response.ErrorWithCode(c, apperrors.ErrFileBatchTooLarge,
			fmt.Sprintf("maximum %d files per batch", s.uploadConf.MaxBatchFiles))
		return
	}

	s.logger.Info("upload request",
		zap.Int("file_count", len(headers)),
		zap.Bool("batch", batch),
	)

	if !batch {
		s.uploadSingle(c, headers[0])
		return
	}

	s.uploadBatch(c, headers)
}

func (s *FileService) uploadSingle(c *gin.Context, header *multipart.FileHeader) {
	input, err := s.readUpload(header)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	record, isNew, err := s.fileUseCase.Ingest(c.Request.Context(), input)
	if err != nil {
		s.logger.Error("failed to ingest file",
			zap.String("filename", header.Filename),
			zap.Error(err),
		)
		response.HandleError(c, err)
		return
	}

	response.Created(c, gin.H{
		"status": uploadStatus(isNew),
		"file":   toFileResponse(record),
	})
}

func (s *FileService) uploadBatch(c *gin.Context, headers []*multipart.FileHeader) {
	ctx := c.Request.Context()
	outcomes := make([]UploadOutcome, len(headers))

	// 逐文件隔离：每个文件独立 ingest，单个失败不影响其他文件
	err := s.uploadPool.Map(len(headers), func(i int) {
		header := headers[i]
		outcomes[i].Filename = header.Filename

		input, err := s.readUpload(header)
		if err == nil {
			var record *biz.FileRecord
			var isNew bool
			record, isNew, err = s.fileUseCase.Ingest(ctx, input)
			if err == nil {
				outcomes[i].Status = uploadStatus(isNew)
				outcomes[i].File = toFileResponse(record)
				return
			}
		}

		s.logger.Warn("batch upload item failed",
			zap.String("filename", header.Filename),
			zap.Error(err),
		)
		outcomes[i].Status = StatusError
		outcomes[i].Error = apperrors.FormatError(apperrors.ExtractCode(err), apperrors.GetDetails(err))
	})
	if err != nil {
		s.logger.Error("batch upload dispatch failed", zap.Error(err))
		response.ErrorWithCode(c, apperrors.ErrInternalServer)
		return
	}

	response.Created(c, outcomes)
}

// readUpload 读取单个上传文件的内容
func (s *FileService) readUpload(header *multipart.FileHeader) (*biz.IngestInput, error) {
	if header.Size > s.uploadConf.MaxFileSize {
		return nil, apperrors.New(apperrors.ErrFileTooLarge, header.Filename)
	}

	file, err := header.Open()
	if err != nil {
		return nil, apperrors.New(apperrors.ErrFileEmptyPayload, header.Filename)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrFileStorageFailed, "failed to read upload")
	}

	return &biz.IngestInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// Get 获取文件详情，同时刷新访问统计
func (s *FileService) Get(c *gin.Context) {
	id := c.Param("id")

	record, err := s.fileUseCase.Retrieve(c.Request.Context(), id)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, toFileResponse(record))
}

// Download 下载文件内容，同时刷新访问统计
func (s *FileService) Download(c *gin.Context) {
	id := c.Param("id")

	record, reader, err := s.fileUseCase.Open(c.Request.Context(), id)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	defer reader.Close()

	extraHeaders := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", record.OriginalFilename),
	}
	c.DataFromReader(http.StatusOK, record.SizeBytes, record.ContentType, reader, extraHeaders)
}

// Delete 释放一次文件引用
func (s *FileService) Delete(c *gin.Context) {
	id := c.Param("id")

	if err := s.fileUseCase.Release(c.Request.Context(), id); err != nil {
		response.HandleError(c, err)
		return
	}

	response.NoContent(c)
}

// Search 按元数据检索文件
func (s *FileService) Search(c *gin.Context) {
	filter, err := parseSearchFilter(c)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	records, err := s.fileUseCase.Search(c.Request.Context(), filter)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, toFileResponses(records))
}

// List 列出全部文件
func (s *FileService) List(c *gin.Context) {
	ordering := biz.ParseOrdering(c.Query("ordering"))

	records, err := s.fileUseCase.List(c.Request.Context(), ordering)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, toFileResponses(records))
}

func toFileResponses(records []*biz.FileRecord) []*FileResponse {
	items := make([]*FileResponse, 0, len(records))
	for _, record := range records {
		items = append(items, toFileResponse(record))
	}
	return items
}

// parseSearchFilter 解析检索参数，非法 size 边界直接报 400，不产生副作用
func parseSearchFilter(c *gin.Context) (*biz.SearchFilter, error) {
	filter := &biz.SearchFilter{
		NameContains: c.Query("name"),
		TypeEquals:   c.Query("type"),
		Ordering:     biz.ParseOrdering(c.Query("ordering")),
	}

	if raw := c.Query("size_min"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrFileInvalidFilter, "size_min must be an integer")
		}
		filter.SizeMin = &v
	}

	if raw := c.Query("size_max"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrFileInvalidFilter, "size_max must be an integer")
		}
		filter.SizeMax = &v
	}

	return filter, nil
}
