package health

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for health endpoints.
type Handlers struct {
	health *Service
}

// NewHandlers creates new health handlers.
func NewHandlers(health *Service) *Handlers {
	return &Handlers{health: health}
}

// RegisterRoutes registers health routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetAll)
	g.GET("/:id", h.GetItem)
}

// GetAll returns every collaborator's status. The response is 200 even when
// degraded so that liveness probes do not restart the daemon over an outage
// elsewhere.
// GET /api/v1/health
func (h *Handlers) GetAll(c echo.Context) error {
	return c.JSON(http.StatusOK, h.health.Response())
}

// GetItem returns one collaborator's status.
// GET /api/v1/health/:id
func (h *Handlers) GetItem(c echo.Context) error {
	item := h.health.GetItem(c.Param("id"))
	if item == nil {
		return echo.NewHTTPError(http.StatusNotFound, "unknown component")
	}
	return c.JSON(http.StatusOK, item)
}
