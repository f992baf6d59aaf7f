package history

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for run history.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new history handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers history routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("", h.Clear)
}

// List returns paginated runs.
// GET /api/v1/runs
func (h *Handlers) List(c echo.Context) error {
	opts := ListOptions{
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "pageSize"),
	}

	result, err := h.service.List(c.Request().Context(), opts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, result)
}

// Get returns one run with its actions.
// GET /api/v1/runs/:id
func (h *Handlers) Get(c echo.Context) error {
	run, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrRunNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, run)
}

// Clear deletes all stored runs.
// DELETE /api/v1/runs
func (h *Handlers) Clear(c echo.Context) error {
	if err := h.service.DeleteAll(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func queryInt(c echo.Context, name string) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return v
}
