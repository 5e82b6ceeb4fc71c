package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"mooshihub/internal/microservices/http-api/dto"
	"mooshihub/internal/microservices/http-api/repository"
	"mooshihub/internal/microservices/websocket"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultRequestTimeout = 10 * time.Second

// ClientHub is the part of the websocket hub exposed over the admin routes.
type ClientHub interface {
	Sessions() []websocket.ClientID
	Get(id websocket.ClientID) (websocket.Transport, bool)
	Send(id websocket.ClientID, message any) error
	Broadcast(message any) int
	Unregister(id websocket.ClientID) bool
	Request(ctx context.Context, id websocket.ClientID, message any, match websocket.MatchFunc, timeout time.Duration) (json.RawMessage, error)
	Count() int
}

type HubHandler struct {
	hub      ClientHub
	messages repository.MessageLogRepository // nil without a database
}

func NewHubHandler(hub ClientHub, messages repository.MessageLogRepository) *HubHandler {
	return &HubHandler{hub: hub, messages: messages}
}

func (h *HubHandler) ListClients(c *gin.Context) {
	ids := h.hub.Sessions()
	clients := make([]int64, len(ids))
	for i, id := range ids {
		clients[i] = int64(id)
	}
	c.JSON(http.StatusOK, dto.ClientListResponse{Clients: clients, Total: len(clients)})
}

func (h *HubHandler) Send(c *gin.Context) {
	id, ok := clientIDParam(c)
	if !ok {
		return
	}

	var req dto.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, ok := h.hub.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "client not connected"})
		return
	}
	if err := h.hub.Send(id, req.Message); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *HubHandler) Broadcast(c *gin.Context) {
	var req dto.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.BroadcastResponse{Delivered: h.hub.Broadcast(req.Message)})
}

// Request pushes {"request_id", "data"} to one client and blocks until that
// client answers with a MESSAGE carrying the same request_id.
func (h *HubHandler) Request(c *gin.Context) {
	id, ok := clientIDParam(c)
	if !ok {
		return
	}

	var req dto.RequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	timeout := defaultRequestTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	outbound := map[string]any{"request_id": req.RequestID, "data": req.Message}
	reply, err := h.hub.Request(c.Request.Context(), id, outbound, matchRequestID(req.RequestID), timeout)
	switch {
	case err == nil:
	case errors.Is(err, websocket.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "client not connected"})
		return
	case errors.Is(err, websocket.ErrWaitTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		return
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.RequestResponse{RequestID: req.RequestID, Reply: reply})
}

func (h *HubHandler) Disconnect(c *gin.Context) {
	id, ok := clientIDParam(c)
	if !ok {
		return
	}
	if !h.hub.Unregister(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "client not connected"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HubHandler) RecentMessages(c *gin.Context) {
	if h.messages == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "message log requires a database"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
		return
	}

	logs, err := h.messages.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	entries := make([]dto.MessageLogEntry, len(logs))
	for i, l := range logs {
		entries[i] = dto.MessageLogEntry{
			ID:          l.ID,
			DisplayName: l.DisplayName,
			Payload:     json.RawMessage(l.Payload),
			CreatedAt:   l.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"messages": entries, "total": len(entries)})
}

func clientIDParam(c *gin.Context) (websocket.ClientID, bool) {
	id, err := strconv.ParseInt(c.Param("client_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "client_id must be an integer"})
		return 0, false
	}
	return websocket.ClientID(id), true
}

// matchRequestID accepts inbound payloads of the form {"request_id": id, ...}.
func matchRequestID(id string) websocket.MatchFunc {
	return func(payload json.RawMessage) bool {
		var reply struct {
			RequestID string `json:"request_id"`
		}
		if err := json.Unmarshal(payload, &reply); err != nil {
			return false
		}
		return reply.RequestID == id
	}
}
