package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"mooshihub/internal/microservices/http-api/dto"
	"mooshihub/internal/microservices/http-api/middleware"
	"mooshihub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCDNService mocks the CDNService interface
type MockCDNService struct {
	mock.Mock
}

func (m *MockCDNService) Upload(ctx context.Context, owner, contentType string, r io.Reader) (*service.StoredFile, error) {
	data, _ := io.ReadAll(r)
	args := m.Called(ctx, owner, contentType, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StoredFile), args.Error(1)
}

func (m *MockCDNService) List(ctx context.Context, owner string) ([]service.StoredFile, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.StoredFile), args.Error(1)
}

func (m *MockCDNService) Delete(ctx context.Context, owner, name string) error {
	args := m.Called(ctx, owner, name)
	return args.Error(0)
}

func (m *MockCDNService) Root() string {
	return m.Called().String(0)
}

func setupCDNRouter(m *MockCDNService) *gin.Engine {
	handler := NewCDNHandler(m)
	router := setupRouter()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextOwner, "alice")
		c.Next()
	})
	router.POST("/cdn/upload", handler.Upload)
	router.GET("/cdn/files", handler.List)
	router.DELETE("/cdn/files/:name", handler.Delete)
	return router
}

func multipartBody(t *testing.T, field, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="cover.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestCDNUpload_Success(t *testing.T) {
	m := new(MockCDNService)
	stored := &service.StoredFile{Name: "x.png", URL: "http://cdn/alice/x.png", Size: 3}
	m.On("Upload", mock.Anything, "alice", "image/png", []byte("png")).Return(stored, nil)

	body, ct := multipartBody(t, "file", "image/png", []byte("png"))
	req, _ := http.NewRequest("POST", "/cdn/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	setupCDNRouter(m).ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp dto.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "File uploaded to http://cdn/alice/x.png", resp.Message)
	assert.Equal(t, "x.png", resp.File.Name)
	m.AssertExpectations(t)
}

func TestCDNUpload_Errors(t *testing.T) {
	m := new(MockCDNService)
	m.On("Upload", mock.Anything, "alice", "image/gif", mock.Anything).Return(nil, service.ErrUnsupportedFileType)
	m.On("Upload", mock.Anything, "alice", "image/png", mock.Anything).Return(nil, service.ErrFileTooLarge)
	router := setupCDNRouter(m)

	body, ct := multipartBody(t, "file", "image/gif", []byte("gif"))
	req, _ := http.NewRequest("POST", "/cdn/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid file type", w.Body.String())

	body, ct = multipartBody(t, "file", "image/png", []byte("big"))
	req, _ = http.NewRequest("POST", "/cdn/upload", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	body, ct = multipartBody(t, "other", "image/png", []byte("png"))
	req, _ = http.NewRequest("POST", "/cdn/upload", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCDNListAndDelete(t *testing.T) {
	m := new(MockCDNService)
	m.On("List", mock.Anything, "alice").Return([]service.StoredFile{{Name: "a.png"}, {Name: "b.jpg"}}, nil)
	m.On("Delete", mock.Anything, "alice", "a.png").Return(nil)
	m.On("Delete", mock.Anything, "alice", "gone.png").Return(service.ErrFileNotFound)
	router := setupCDNRouter(m)

	req, _ := http.NewRequest("GET", "/cdn/files", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var list dto.FileListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, "alice", list.Owner)
	assert.Equal(t, 2, list.Total)

	req, _ = http.NewRequest("DELETE", "/cdn/files/a.png", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req, _ = http.NewRequest("DELETE", "/cdn/files/gone.png", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	m.AssertExpectations(t)
}
