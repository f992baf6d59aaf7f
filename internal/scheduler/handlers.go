package scheduler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers exposes scheduled tasks over HTTP.
type Handlers struct {
	scheduler *Scheduler
}

// NewHandlers creates scheduler handlers.
func NewHandlers(s *Scheduler) *Handlers {
	return &Handlers{scheduler: s}
}

// RegisterRoutes registers task routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/run", h.Run)
}

// List returns every registered task.
// GET /api/v1/scheduler/tasks
func (h *Handlers) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.scheduler.ListTasks())
}

// Get returns one task.
// GET /api/v1/scheduler/tasks/:id
func (h *Handlers) Get(c echo.Context) error {
	task, err := h.scheduler.GetTask(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, task)
}

// Run starts a task now unless it is already running.
// POST /api/v1/scheduler/tasks/:id/run
func (h *Handlers) Run(c echo.Context) error {
	id := c.Param("id")
	if err := h.scheduler.RunNow(id); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrTaskNotFound):
			status = http.StatusNotFound
		case errors.Is(err, ErrTaskRunning):
			status = http.StatusConflict
		}
		return echo.NewHTTPError(status, err.Error())
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "Task started",
		"taskId":  id,
	})
}
