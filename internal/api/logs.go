package api

import (
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/relayarr/relayarr/internal/logger"
)

// GET /api/v1/logs returns recent log entries from the ring buffer.
func (s *Server) getRecentLogs(c echo.Context) error {
	if s.deps.Logs == nil {
		return c.JSON(http.StatusOK, []logger.LogEntry{})
	}
	entries := s.deps.Logs.Recent()
	if entries == nil {
		entries = []logger.LogEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// GET /api/v1/logs/download serves the current log file.
func (s *Server) downloadLogFile(c echo.Context) error {
	if s.deps.LogFile == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no log file configured")
	}
	if _, err := os.Stat(s.deps.LogFile); os.IsNotExist(err) {
		return echo.NewHTTPError(http.StatusNotFound, "log file not found")
	}
	return c.Attachment(s.deps.LogFile, "relayarr.log")
}
