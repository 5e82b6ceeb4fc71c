package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"mooshihub/internal/microservices/http-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockMessageLogRepository mocks the MessageLogRepository interface
type MockMessageLogRepository struct {
	mock.Mock
}

func (m *MockMessageLogRepository) Create(ctx context.Context, entry *models.MessageLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockMessageLogRepository) Recent(ctx context.Context, limit int) ([]models.MessageLog, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MessageLog), args.Error(1)
}

func TestMessageLogHandler(t *testing.T) {
	repo := new(MockMessageLogRepository)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(e *models.MessageLog) bool {
		return e.DisplayName == "alice" && e.Payload == `{"text":"hi"}`
	})).Return(nil).Once()

	handler := MessageLogHandler(repo, discardLogger())
	err := handler(context.Background(), json.RawMessage(`{"text":"hi"}`), "alice")
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestMessageLogHandler_StoreError(t *testing.T) {
	repo := new(MockMessageLogRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed"))

	handler := MessageLogHandler(repo, discardLogger())
	err := handler(context.Background(), json.RawMessage(`"hi"`), "")
	assert.EqualError(t, err, "insert failed")
}
