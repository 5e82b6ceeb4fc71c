package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mooshihub/internal/microservices/http-api/dto"
	"mooshihub/internal/microservices/http-api/models"
	"mooshihub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockKeyService mocks the KeyService interface
type MockKeyService struct {
	mock.Mock
}

func (m *MockKeyService) Authorize(ctx context.Context, credential string) error {
	args := m.Called(ctx, credential)
	return args.Error(0)
}

func (m *MockKeyService) NewKey(ctx context.Context, owner string) (*models.APIKey, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.APIKey), args.Error(1)
}

func (m *MockKeyService) Invalidate(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockKeyService) Owner(ctx context.Context, credential string) (string, error) {
	args := m.Called(ctx, credential)
	return args.String(0), args.Error(1)
}

func (m *MockKeyService) VerifyMaster(master string) bool {
	args := m.Called(master)
	return args.Bool(0)
}

func (m *MockKeyService) Count() int {
	args := m.Called()
	return args.Int(0)
}

// MockAdminTokenService mocks the AdminTokenService interface
type MockAdminTokenService struct {
	mock.Mock
}

func (m *MockAdminTokenService) Issue() (string, time.Time, error) {
	args := m.Called()
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockAdminTokenService) Validate(tokenString string) (*service.AdminClaims, error) {
	args := m.Called(tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AdminClaims), args.Error(1)
}

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestNewKey_Success(t *testing.T) {
	mockKeys := new(MockKeyService)
	handler := NewKeyHandler(mockKeys, new(MockAdminTokenService))
	router := setupRouter()
	router.GET("/v1/new_key", handler.NewKey)

	mockKeys.On("NewKey", mock.Anything, "alice").Return(&models.APIKey{Key: "abc123", Owner: "alice"}, nil)

	req, _ := http.NewRequest("GET", "/v1/new_key?owner=alice", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc123", w.Body.String())
	mockKeys.AssertExpectations(t)
}

func TestNewKey_Failure(t *testing.T) {
	mockKeys := new(MockKeyService)
	handler := NewKeyHandler(mockKeys, new(MockAdminTokenService))
	router := setupRouter()
	router.GET("/v1/new_key", handler.NewKey)

	mockKeys.On("NewKey", mock.Anything, "").Return(nil, errors.New("db down"))

	req, _ := http.NewRequest("GET", "/v1/new_key", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestInvalidate(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		setup      func(m *MockKeyService)
		wantStatus int
		wantBody   string
	}{
		{
			name:  "invalidated",
			query: "?key=abc",
			setup: func(m *MockKeyService) {
				m.On("Invalidate", mock.Anything, "abc").Return(nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   "API key invalidated",
		},
		{
			name:  "unknown key",
			query: "?key=nope",
			setup: func(m *MockKeyService) {
				m.On("Invalidate", mock.Anything, "nope").Return(service.ErrKeyNotFound)
			},
			wantStatus: http.StatusNotFound,
			wantBody:   "Key not found",
		},
		{
			name:       "missing key",
			query:      "",
			setup:      func(m *MockKeyService) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockKeys := new(MockKeyService)
			tt.setup(mockKeys)
			handler := NewKeyHandler(mockKeys, new(MockAdminTokenService))
			router := setupRouter()
			router.POST("/v1/invalidate", handler.Invalidate)

			req, _ := http.NewRequest("POST", "/v1/invalidate"+tt.query, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
			mockKeys.AssertExpectations(t)
		})
	}
}

func TestAdminToken(t *testing.T) {
	mockKeys := new(MockKeyService)
	mockTokens := new(MockAdminTokenService)
	handler := NewKeyHandler(mockKeys, mockTokens)
	router := setupRouter()
	router.GET("/v1/admin/token", handler.AdminToken)

	expiresAt := time.Now().Add(time.Hour)
	mockKeys.On("VerifyMaster", "master").Return(true)
	mockKeys.On("VerifyMaster", "wrong").Return(false)
	mockTokens.On("Issue").Return("signed.jwt.token", expiresAt, nil)

	req, _ := http.NewRequest("GET", "/v1/admin/token?master=master", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.AdminTokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "signed.jwt.token", resp.Token)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.InDelta(t, 3600, resp.ExpiresIn, 5)

	req, _ = http.NewRequest("GET", "/v1/admin/token?master=wrong", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockTokens.AssertNumberOfCalls(t, "Issue", 1)
}
