package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/relayarr/relayarr/internal/arr"
)

// instanceManager is the per-service slice of the arr managers the
// instance handlers need. Both RadarrManager and SonarrManager satisfy
// it through their embedded manager.
type instanceManager interface {
	Instance(ctx context.Context, id int64) (*arr.Instance, error)
	CreateInstance(ctx context.Context, inst arr.Instance) (*arr.Instance, error)
	UpdateInstance(ctx context.Context, inst arr.Instance) error
	RemoveInstance(ctx context.Context, id int64) error
	Client(id int64) (*arr.Client, error)
}

func (s *Server) managerFor(c echo.Context) (instanceManager, arr.ServiceType, error) {
	switch c.Param("service") {
	case string(arr.ServiceRadarr):
		return s.deps.Radarr, arr.ServiceRadarr, nil
	case string(arr.ServiceSonarr):
		return s.deps.Sonarr, arr.ServiceSonarr, nil
	default:
		return nil, "", echo.NewHTTPError(http.StatusBadRequest, "unknown service")
	}
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// GET /api/v1/instances/:service
func (s *Server) listInstances(c echo.Context) error {
	_, service, err := s.managerFor(c)
	if err != nil {
		return err
	}

	instances, err := s.deps.Store.AllInstances(c.Request().Context(), service)
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}
	if instances == nil {
		instances = []arr.Instance{}
	}
	return c.JSON(http.StatusOK, instances)
}

// GET /api/v1/instances/:service/:id
func (s *Server) getInstance(c echo.Context) error {
	mgr, _, err := s.managerFor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	inst, err := mgr.Instance(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "instance not found")
	}
	return c.JSON(http.StatusOK, inst)
}

// POST /api/v1/instances/:service
func (s *Server) createInstance(c echo.Context) error {
	mgr, service, err := s.managerFor(c)
	if err != nil {
		return err
	}

	var inst arr.Instance
	if err := c.Bind(&inst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	inst.Service = service

	created, err := mgr.CreateInstance(c.Request().Context(), inst)
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// PUT /api/v1/instances/:service/:id
func (s *Server) updateInstance(c echo.Context) error {
	mgr, service, err := s.managerFor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var inst arr.Instance
	if err := c.Bind(&inst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	inst.ID = id
	inst.Service = service

	if err := mgr.UpdateInstance(c.Request().Context(), inst); err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	return c.JSON(http.StatusOK, inst)
}

// DELETE /api/v1/instances/:service/:id
func (s *Server) deleteInstance(c echo.Context) error {
	mgr, _, err := s.managerFor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	if err := mgr.RemoveInstance(c.Request().Context(), id); err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// POST /api/v1/instances/:service/:id/test validates connectivity and
// credentials against the live instance.
func (s *Server) testInstance(c echo.Context) error {
	mgr, _, err := s.managerFor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	client, err := mgr.Client(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "instance not initialized")
	}
	if err := client.Validate(c.Request().Context()); err != nil {
		return c.JSON(http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

// GET /api/v1/instances/:service/:id/profiles
func (s *Server) instanceProfiles(c echo.Context) error {
	client, err := s.clientFor(c)
	if err != nil {
		return err
	}
	profiles, err := client.QualityProfiles(c.Request().Context())
	if err != nil {
		return errJSON(c, http.StatusBadGateway, err)
	}
	return c.JSON(http.StatusOK, profiles)
}

// GET /api/v1/instances/:service/:id/rootfolders
func (s *Server) instanceRootFolders(c echo.Context) error {
	client, err := s.clientFor(c)
	if err != nil {
		return err
	}
	folders, err := client.RootFolders(c.Request().Context())
	if err != nil {
		return errJSON(c, http.StatusBadGateway, err)
	}
	return c.JSON(http.StatusOK, folders)
}

func (s *Server) clientFor(c echo.Context) (*arr.Client, error) {
	mgr, _, err := s.managerFor(c)
	if err != nil {
		return nil, err
	}
	id, err := pathID(c)
	if err != nil {
		return nil, err
	}
	client, err := mgr.Client(id)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "instance not initialized")
	}
	return client, nil
}
