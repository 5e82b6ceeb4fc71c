package repository

import (
	"context"
	"errors"

	"mooshihub/internal/microservices/http-api/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrAPIKeyNotFound  = errors.New("api key not found")
	ErrAPIKeyDuplicate = errors.New("api key already exists")
)

// postgres unique_violation
const uniqueViolation = "23505"

// APIKeyRepository stores the API keys issued at runtime. Keys configured
// through API_KEYS never reach the database.
type APIKeyRepository interface {
	Create(ctx context.Context, key *models.APIKey) error
	FindByKey(ctx context.Context, key string) (*models.APIKey, error)
	List(ctx context.Context) ([]models.APIKey, error)
	DeleteByKey(ctx context.Context, key string) error
}

// apiKeyRepository is the GORM implementation of APIKeyRepository
type apiKeyRepository struct {
	db *gorm.DB
}

func NewAPIKeyRepository(db *gorm.DB) APIKeyRepository {
	return &apiKeyRepository{db: db}
}

func (r *apiKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	if err := r.db.WithContext(ctx).Create(key).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAPIKeyDuplicate
		}
		return err
	}
	return nil
}

func (r *apiKeyRepository) FindByKey(ctx context.Context, key string) (*models.APIKey, error) {
	var apiKey models.APIKey
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&apiKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, err
	}
	return &apiKey, nil
}

func (r *apiKeyRepository) List(ctx context.Context) ([]models.APIKey, error) {
	var keys []models.APIKey
	if err := r.db.WithContext(ctx).Order("created_at").Find(&keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *apiKeyRepository) DeleteByKey(ctx context.Context, key string) error {
	result := r.db.WithContext(ctx).Where("key = ?", key).Delete(&models.APIKey{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}
