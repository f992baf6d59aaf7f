package api

import (
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/cachegrab/cachegrab/internal/logger"
)

// LogsHandlers handles log-related HTTP endpoints.
type LogsHandlers struct {
	recent  *logger.Recent
	logPath string
}

// NewLogsHandlers creates a new logs handlers instance.
func NewLogsHandlers(recent *logger.Recent, logPath string) *LogsHandlers {
	return &LogsHandlers{recent: recent, logPath: logPath}
}

// RegisterRoutes registers log routes on the given group.
func (h *LogsHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetRecentLogs)
	g.GET("/download", h.DownloadLogFile)
}

// GetRecentLogs returns recent log entries, oldest first.
// GET /api/v1/logs?limit=N
func (h *LogsHandlers) GetRecentLogs(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return c.JSON(http.StatusOK, h.recent.Entries(limit))
}

// DownloadLogFile serves the current log file for download.
func (h *LogsHandlers) DownloadLogFile(c echo.Context) error {
	if h.logPath == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no log file configured")
	}

	if _, err := os.Stat(h.logPath); os.IsNotExist(err) {
		return echo.NewHTTPError(http.StatusNotFound, "log file not found")
	}

	return c.Attachment(h.logPath, logger.LogFileName)
}
