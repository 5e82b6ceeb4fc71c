package websocket

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// HTTP upgrade handler to WebSocket connections

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// allow all origins; access is controlled by the Authorization header
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Authorizer checks the credential presented on the handshake against the
// accepted set. It must return an error wrapping ErrUnauthorized on rejection.
type Authorizer interface {
	Authorize(ctx context.Context, credential string) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, credential string) error

func (f AuthorizerFunc) Authorize(ctx context.Context, credential string) error {
	return f(ctx, credential)
}

type reasonCloser interface {
	CloseWithReason(code int, reason string) error
}

// WSHandler: GET /ws/:client_id. The optional "name" query parameter becomes
// the session's display name.
func WSHandler(hub *Hub, auth Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("client_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "client_id must be an integer"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// the upgrader has already written an HTTP error response
			hub.logger.Warn("websocket_upgrade_failed",
				"client_id", id,
				"error", err.Error(),
			)
			return
		}
		t := NewTransport(conn)

		if err := authorize(c.Request.Context(), auth, c.GetHeader("Authorization")); err != nil {
			hub.logger.Warn("handshake_rejected",
				"client_id", id,
				"remote_addr", t.RemoteAddr(),
				"error", err.Error(),
			)
			_ = WriteEnvelope(t, &Close{})
			if rc, ok := t.(reasonCloser); ok {
				_ = rc.CloseWithReason(CloseUnauthorized, "unauthorized")
			} else {
				_ = t.Close()
			}
			return
		}

		if err := hub.Serve(c.Request.Context(), t, ClientID(id), c.Query("name")); err != nil &&
			!errors.Is(err, context.Canceled) {
			hub.logger.Warn("session_ended_with_error",
				"client_id", id,
				"error", err.Error(),
			)
		}
	}
}

func authorize(ctx context.Context, auth Authorizer, credential string) error {
	if credential == "" {
		return ErrUnauthorized
	}
	if auth == nil {
		return nil
	}
	if err := auth.Authorize(ctx, credential); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		return errors.Join(ErrUnauthorized, err)
	}
	return nil
}
