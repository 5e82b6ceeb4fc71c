package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// APIKey is a credential accepted on the websocket handshake and the CDN routes.
type APIKey struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	Key       string    `gorm:"uniqueIndex;not null" json:"key"`
	Owner     string    `gorm:"not null;default:'default'" json:"owner"` // CDN folder for uploads made with this key
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate hook to set UUID before creating an APIKey
func (k *APIKey) BeforeCreate(tx *gorm.DB) (err error) {
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	return
}

func (APIKey) TableName() string {
	return "api_keys"
}
