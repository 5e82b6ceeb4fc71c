package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"mooshihub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

const (
	msgClientOffline = "Client is not connected to the websocket server. Please try again in 5 minutes! If the issue persists, contact a server administrator."
	msgClientGone    = "Client not connected. Please contact a server admin."
)

type SpotifyHandler struct {
	oauthService service.OAuthService
}

func NewSpotifyHandler(oauthService service.OAuthService) *SpotifyHandler {
	return &SpotifyHandler{oauthService: oauthService}
}

// Authorize sends the browser to Spotify's consent page. The websocket client
// named by client_id must be connected so the token can be delivered later.
func (h *SpotifyHandler) Authorize(c *gin.Context) {
	state, err := strconv.ParseInt(c.Query("state"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state must be an integer"})
		return
	}
	clientID, err := strconv.ParseInt(c.Query("client_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "client_id must be an integer"})
		return
	}

	url, err := h.oauthService.AuthorizeURL(c.Request.Context(), state, c.Query("playlist_name"), clientID)
	if errors.Is(err, service.ErrClientNotConnected) {
		c.String(http.StatusBadRequest, msgClientOffline)
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start authorization"})
		return
	}
	c.Redirect(http.StatusSeeOther, url)
}

// Authorized is Spotify's redirect target.
func (h *SpotifyHandler) Authorized(c *gin.Context) {
	if reason := c.Query("error"); reason != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": reason})
		return
	}

	state, err := strconv.ParseInt(c.Query("state"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid state")
		return
	}

	pending, err := h.oauthService.Complete(c.Request.Context(), c.Query("code"), state)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrUnknownState):
		c.String(http.StatusBadRequest, "Invalid state")
		return
	case errors.Is(err, service.ErrClientNotConnected):
		c.String(http.StatusBadRequest, msgClientGone)
		return
	case errors.Is(err, service.ErrTokenExchange):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to complete authorization"})
		return
	}

	c.String(http.StatusOK, fmt.Sprintf(
		"Authorized, you can close this tab now.\nPlease wait about 10 seconds before running '/playlist load %s'.",
		pending.PlaylistName,
	))
}
