package dto

import (
	"encoding/json"
	"time"
)

// ClientListResponse: ids of the currently connected websocket clients
type ClientListResponse struct {
	Clients []int64 `json:"clients"`
	Total   int     `json:"total"`
}

// PushRequest: payload for send and broadcast, forwarded as SEND_MESSAGE.message
type PushRequest struct {
	Message json.RawMessage `json:"message" binding:"required"`
}

// BroadcastResponse: how many sessions the broadcast was written to
type BroadcastResponse struct {
	Delivered int `json:"delivered"`
}

// RequestRequest: payload for a correlated request to one client. The client
// answers with a MESSAGE whose "message" object carries the same request_id.
type RequestRequest struct {
	Message   json.RawMessage `json:"message" binding:"required"`
	RequestID string          `json:"request_id"`
	TimeoutMs int64           `json:"timeout_ms" binding:"omitempty,min=1,max=60000"`
}

// RequestResponse: the client's reply to a correlated request
type RequestResponse struct {
	RequestID string          `json:"request_id"`
	Reply     json.RawMessage `json:"reply"`
}

// MessageLogEntry: one stored inbound websocket message
type MessageLogEntry struct {
	ID          int64           `json:"id"`
	DisplayName string          `json:"display_name"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
}

// HealthResponse: result of GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Clients int               `json:"clients"`
	Checks  map[string]string `json:"checks"`
	Uptime  string            `json:"uptime"`
}
