package dto

import "time"

// AdminTokenResponse: response payload for GET /v1/admin/token
type AdminTokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"` // always "Bearer"
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int64     `json:"expires_in"` // seconds
}
