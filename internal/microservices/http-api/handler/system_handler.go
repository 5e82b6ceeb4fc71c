package handler

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"mooshihub/internal/microservices/http-api/dto"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports whether one backing service is reachable.
type HealthCheck func(ctx context.Context) error

// routes left out of the /routes listing
var hiddenRoutes = map[string]bool{
	"/":                     true,
	"/ws/:client_id":        true,
	"/cdn/static/*filepath": true,
}

type SystemHandler struct {
	hub     ClientHub
	checks  map[string]HealthCheck
	started time.Time
}

func NewSystemHandler(hub ClientHub, checks map[string]HealthCheck) *SystemHandler {
	return &SystemHandler{hub: hub, checks: checks, started: time.Now()}
}

func (h *SystemHandler) Index(c *gin.Context) {
	c.String(http.StatusOK, "Hello World")
}

// Health runs every registered check with a shared deadline. Any failure
// turns the response into a 503.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	resp := dto.HealthResponse{
		Status:  "ok",
		Clients: h.hub.Count(),
		Checks:  make(map[string]string, len(h.checks)),
		Uptime:  time.Since(h.started).Round(time.Second).String(),
	}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// Routes lists the public routes of engine as a plain-text bullet list.
func (h *SystemHandler) Routes(engine *gin.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var lines []string
		for _, r := range engine.Routes() {
			if hiddenRoutes[r.Path] {
				continue
			}
			lines = append(lines, r.Method+" "+r.Path)
		}
		slices.SortFunc(lines, func(a, b string) int {
			if n := strings.Compare(routePath(a), routePath(b)); n != 0 {
				return n
			}
			return strings.Compare(a, b)
		})
		c.String(http.StatusOK, "• "+strings.Join(lines, "\n• "))
	}
}

func routePath(line string) string {
	_, path, _ := strings.Cut(line, " ")
	return path
}
