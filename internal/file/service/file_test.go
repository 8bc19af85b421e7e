package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaibinkb16/File-Vault-CI-CD/internal/conf"
	"github.com/shaibinkb16/File-Vault-CI-CD/internal/file/biz"
	apperrors "github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/errors"
	"github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/logger"
	"github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/workerpool"
)

// fakeRepo 实现过滤与排序语义的内存仓储
type fakeRepo struct {
	mu      sync.Mutex
	records map[string]*biz.FileRecord
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]*biz.FileRecord)}
}

func clone(r *biz.FileRecord) *biz.FileRecord {
	c := *r
	if r.LastAccessedAt != nil {
		t := *r.LastAccessedAt
		c.LastAccessedAt = &t
	}
	return &c
}

func (f *fakeRepo) Create(ctx context.Context, record *biz.FileRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ContentHash == record.ContentHash {
			return fmt.Errorf("unique constraint violation on content_hash")
		}
	}
	f.records[record.ID] = clone(record)
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id string) (*biz.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrFileNotFound, id)
	}
	return clone(r), nil
}

func (f *fakeRepo) GetByHash(ctx context.Context, contentHash string) (*biz.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ContentHash == contentHash {
			return clone(r), nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) IncrementReference(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return apperrors.New(apperrors.ErrFileNotFound, id)
	}
	r.ReferenceCount++
	return nil
}

func (f *fakeRepo) DecrementReference(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return apperrors.New(apperrors.ErrFileNotFound, id)
	}
	r.ReferenceCount--
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return apperrors.New(apperrors.ErrFileNotFound, id)
	}
	delete(f.records, id)
	return nil
}

func (f *fakeRepo) TouchAccess(ctx context.Context, id string) (*biz.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrFileNotFound, id)
	}
	now := time.Now().UTC()
	r.DownloadCount++
	r.LastAccessedAt = &now
	return clone(r), nil
}

func (f *fakeRepo) Search(ctx context.Context, filter *biz.SearchFilter) ([]*biz.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*biz.FileRecord, 0)
	for _, r := range f.records {
		if filter.NameContains != "" {
			needle := strings.ToLower(filter.NameContains)
			if !strings.Contains(strings.ToLower(r.OriginalFilename), needle) &&
				!strings.Contains(strings.ToLower(r.ContentType), needle) {
				continue
			}
		}
		if filter.TypeEquals != "" && !strings.EqualFold(r.ContentType, filter.TypeEquals) {
			continue
		}
		if filter.SizeMin != nil && r.SizeBytes < *filter.SizeMin {
			continue
		}
		if filter.SizeMax != nil && r.SizeBytes > *filter.SizeMax {
			continue
		}
		out = append(out, clone(r))
	}

	sort.Slice(out, func(i, j int) bool {
		var less bool
		switch filter.Ordering.Key {
		case "size":
			less = out[i].SizeBytes < out[j].SizeBytes
		case "original_filename":
			less = out[i].OriginalFilename < out[j].OriginalFilename
		default:
			less = out[i].UploadedAt.Before(out[j].UploadedAt)
		}
		if filter.Ordering.Desc {
			return !less
		}
		return less
	})
	return out, nil
}

// fakeStore 内存 blob 存储
type fakeStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{blobs: make(map[string][]byte)}
}

func (f *fakeStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob not found: %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, key)
	return nil
}

func (f *fakeStore) Bucket() string {
	return "test-bucket"
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.New(logger.DefaultConfig())
	require.NoError(t, err)

	pool, err := workerpool.New(&workerpool.Config{Workers: 4}, log.Logger)
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	uc := biz.NewFileUseCase(newFakeRepo(), newFakeStore(), log)
	svc := NewFileService(uc, pool, &conf.UploadConfig{
		MaxFileSize:   10 << 20,
		MaxBatchFiles: 10,
		Workers:       4,
	}, log)

	router := gin.New()
	svc.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func multipartBody(t *testing.T, field string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	// map 遍历无序，按文件名排序保证批量结果可断言
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
		if strings.HasSuffix(name, ".txt") {
			header.Set("Content-Type", "text/plain")
		} else {
			header.Set("Content-Type", "application/octet-stream")
		}
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func doUpload(t *testing.T, router *gin.Engine, field, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, field, map[string][]byte{filename: data})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeUpload(t *testing.T, w *httptest.ResponseRecorder) (string, *FileResponse) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))

	var data struct {
		Status string        `json:"status"`
		File   *FileResponse `json:"file"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.Status, data.File
}

func TestUploadNewThenDuplicate(t *testing.T) {
	router := setupRouter(t)

	w := doUpload(t, router, "file", "a.txt", []byte("hello"))
	require.Equal(t, http.StatusCreated, w.Code)
	status, file := decodeUpload(t, w)
	assert.Equal(t, StatusNew, status)
	assert.Equal(t, "a.txt", file.OriginalFilename)
	assert.Equal(t, int64(1), file.ReferenceCount)
	assert.Equal(t, int64(0), file.StorageSaved)

	// 相同内容不同文件名：去重命中，保留首次上传的文件名
	w = doUpload(t, router, "file", "b.txt", []byte("hello"))
	require.Equal(t, http.StatusCreated, w.Code)
	status, file = decodeUpload(t, w)
	assert.Equal(t, StatusDuplicate, status)
	assert.Equal(t, "a.txt", file.OriginalFilename)
	assert.Equal(t, int64(2), file.ReferenceCount)
	assert.Equal(t, int64(5), file.StorageSaved)
}

func TestUploadMissingPayload(t *testing.T) {
	router := setupRouter(t)

	body, contentType := multipartBody(t, "file", map[string][]byte{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadEmptyFile(t *testing.T) {
	router := setupRouter(t)

	w := doUpload(t, router, "file", "empty.txt", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchUploadIsolatesFailures(t *testing.T) {
	router := setupRouter(t)

	body, contentType := multipartBody(t, "files", map[string][]byte{
		"1-first.txt":  []byte("first"),
		"2-broken.txt": nil,
		"3-third.txt":  []byte("third"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var outcomes []UploadOutcome
	require.NoError(t, json.Unmarshal(env.Data, &outcomes))

	require.Len(t, outcomes, 3)
	assert.Equal(t, "1-first.txt", outcomes[0].Filename)
	assert.Equal(t, StatusNew, outcomes[0].Status)
	assert.Equal(t, "2-broken.txt", outcomes[1].Filename)
	assert.Equal(t, StatusError, outcomes[1].Status)
	assert.NotEmpty(t, outcomes[1].Error)
	assert.Nil(t, outcomes[1].File)
	assert.Equal(t, StatusNew, outcomes[2].Status)

	// 失败项不影响其余文件的持久化
	req = httptest.NewRequest(http.MethodGet, "/api/v1/files", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var listed []FileResponse
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	assert.Len(t, listed, 2)
}

func TestBatchTooManyFiles(t *testing.T) {
	router := setupRouter(t)

	files := make(map[string][]byte)
	for i := 0; i < 11; i++ {
		files[fmt.Sprintf("f-%02d.txt", i)] = []byte(fmt.Sprintf("content-%d", i))
	}

	body, contentType := multipartBody(t, "files", files)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTracksAccess(t *testing.T) {
	router := setupRouter(t)

	w := doUpload(t, router, "file", "a.txt", []byte("hello"))
	_, created := decodeUpload(t, w)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/files/"+created.ID, nil)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	require.Equal(t, http.StatusOK, w2.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &env))
	var got FileResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))

	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, int64(1), got.DownloadCount)
	assert.NotNil(t, got.LastAccessedAt)
	assert.Equal(t, "Text File", got.DisplayContentType)
}

func TestGetNotFound(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/files/unknown-id", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadStreamsBlob(t *testing.T) {
	router := setupRouter(t)

	w := doUpload(t, router, "file", "a.txt", []byte("hello world"))
	_, created := decodeUpload(t, w)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/files/"+created.ID+"/download", nil)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)

	require.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, "hello world", w2.Body.String())
	assert.Contains(t, w2.Header().Get("Content-Disposition"), `"a.txt"`)
}

func TestDeleteDecrementsThenRemoves(t *testing.T) {
	router := setupRouter(t)

	w := doUpload(t, router, "file", "a.txt", []byte("shared"))
	_, created := decodeUpload(t, w)
	doUpload(t, router, "file", "b.txt", []byte("shared"))

	// 第一次删除仅递减引用
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/files/"+created.ID, nil)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	require.Equal(t, http.StatusNoContent, w2.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/files/"+created.ID, nil)
	w2 = httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	require.Equal(t, http.StatusOK, w2.Code)

	// 第二次删除移除记录
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/files/"+created.ID, nil)
	w2 = httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	require.Equal(t, http.StatusNoContent, w2.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/files/"+created.ID, nil)
	w2 = httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusNotFound, w2.Code)
}

func TestDeleteNotFound(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/files/unknown-id", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearchSizeBoundsInclusive(t *testing.T) {
	router := setupRouter(t)

	doUpload(t, router, "file", "small.txt", bytes.Repeat([]byte("a"), 100))
	doUpload(t, router, "file", "medium.txt", bytes.Repeat([]byte("b"), 150))
	doUpload(t, router, "file", "large.txt", bytes.Repeat([]byte("c"), 250))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/files/search?size_min=100&size_max=150&ordering=size", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var results []FileResponse
	require.NoError(t, json.Unmarshal(env.Data, &results))

	require.Len(t, results, 2)
	assert.Equal(t, "small.txt", results[0].OriginalFilename)
	assert.Equal(t, "medium.txt", results[1].OriginalFilename)
}

func TestSearchEmptyResult(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/files/search?name=nothing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "[]", strings.TrimSpace(string(env.Data)))
}

func TestSearchInvalidSizeBound(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/files/search?size_min=abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchByNameMatchesContentType(t *testing.T) {
	router := setupRouter(t)

	doUpload(t, router, "file", "notes.txt", []byte("notes"))

	// name 过滤同时匹配 content_type
	req := httptest.NewRequest(http.MethodGet, "/api/v1/files/search?name=TEXT/PLAIN", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var results []FileResponse
	require.NoError(t, json.Unmarshal(env.Data, &results))
	require.Len(t, results, 1)
	assert.Equal(t, "notes.txt", results[0].OriginalFilename)
}

func TestListOrdering(t *testing.T) {
	router := setupRouter(t)

	doUpload(t, router, "file", "bbb.txt", []byte("1"))
	doUpload(t, router, "file", "aaa.txt", []byte("22"))
	doUpload(t, router, "file", "ccc.txt", []byte("333"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/files?ordering=original_filename", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var results []FileResponse
	require.NoError(t, json.Unmarshal(env.Data, &results))

	require.Len(t, results, 3)
	assert.Equal(t, "aaa.txt", results[0].OriginalFilename)
	assert.Equal(t, "bbb.txt", results[1].OriginalFilename)
	assert.Equal(t, "ccc.txt", results[2].OriginalFilename)
}
