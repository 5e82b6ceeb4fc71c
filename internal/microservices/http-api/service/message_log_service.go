package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"mooshihub/internal/microservices/http-api/models"
	"mooshihub/internal/microservices/http-api/repository"
	"mooshihub/internal/microservices/websocket"
)

// MessageLogHandler returns an on_message subscriber that records every inbound
// payload. Failures are returned to the bus, which logs them.
func MessageLogHandler(repo repository.MessageLogRepository, logger *slog.Logger) websocket.Handler {
	return func(ctx context.Context, payload json.RawMessage, displayName string) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		entry := &models.MessageLog{
			DisplayName: displayName,
			Payload:     string(payload),
		}
		if err := repo.Create(ctx, entry); err != nil {
			return err
		}
		logger.Debug("message_logged", "id", entry.ID, "display_name", displayName)
		return nil
	}
}
