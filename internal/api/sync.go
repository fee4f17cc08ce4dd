package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// POST /api/v1/sync/statuses runs a full status and junction sync in
// the background and returns immediately.
func (s *Server) triggerStatusSync(c echo.Context) error {
	if s.deps.Status == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "sync is not configured")
	}

	go func() {
		counts, err := s.deps.Status.SyncAllStatuses(context.Background())
		if err != nil {
			s.logger.Error().Err(err).Msg("status sync failed")
			return
		}
		s.logger.Info().Int("movies", counts.Movies).Int("shows", counts.Shows).
			Msg("status sync complete")
	}()

	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}

// POST /api/v1/sync/instances runs a fleet reconciliation of every
// non-default instance in the background.
func (s *Server) triggerInstanceSync(c echo.Context) error {
	if s.deps.Status == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "sync is not configured")
	}

	go func() {
		results, err := s.deps.Status.SyncAllConfiguredInstances(context.Background())
		if err != nil {
			s.logger.Error().Err(err).Msg("instance sync failed")
			return
		}
		s.logger.Info().Int("instances", len(results)).Msg("instance sync complete")
	}()

	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}

// GET /api/v1/scheduler/tasks
func (s *Server) listTasks(c echo.Context) error {
	if s.deps.Scheduler == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "scheduler is not configured")
	}
	return c.JSON(http.StatusOK, s.deps.Scheduler.ListTasks())
}

// GET /api/v1/scheduler/tasks/:id
func (s *Server) getTask(c echo.Context) error {
	if s.deps.Scheduler == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "scheduler is not configured")
	}
	task, err := s.deps.Scheduler.GetTask(c.Param("id"))
	if err != nil {
		return errJSON(c, http.StatusNotFound, err)
	}
	return c.JSON(http.StatusOK, task)
}

// POST /api/v1/scheduler/tasks/:id/run
func (s *Server) runTask(c echo.Context) error {
	if s.deps.Scheduler == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "scheduler is not configured")
	}
	taskID := c.Param("id")
	if err := s.deps.Scheduler.RunNow(taskID); err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "task started",
		"taskId":  taskID,
	})
}
