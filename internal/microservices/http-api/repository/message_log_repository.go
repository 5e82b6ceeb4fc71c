package repository

import (
	"context"

	"mooshihub/internal/microservices/http-api/models"

	"gorm.io/gorm"
)

// MessageLogRepository persists inbound websocket messages.
type MessageLogRepository interface {
	Create(ctx context.Context, entry *models.MessageLog) error
	Recent(ctx context.Context, limit int) ([]models.MessageLog, error)
}

type messageLogRepository struct {
	db *gorm.DB
}

func NewMessageLogRepository(db *gorm.DB) MessageLogRepository {
	return &messageLogRepository{db: db}
}

func (r *messageLogRepository) Create(ctx context.Context, entry *models.MessageLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// Recent returns the newest entries first.
func (r *messageLogRepository) Recent(ctx context.Context, limit int) ([]models.MessageLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var entries []models.MessageLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
