package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/relayarr/relayarr/internal/arr"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

type statusResponse struct {
	Version         string `json:"version"`
	Uptime          string `json:"uptime"`
	RadarrInstances int    `json:"radarrInstances"`
	SonarrInstances int    `json:"sonarrInstances"`
	WatchlistMovies int    `json:"watchlistMovies"`
	WatchlistShows  int    `json:"watchlistShows"`
	WSClients       int    `json:"wsClients"`
}

// GET /api/v1/status
func (s *Server) getStatus(c echo.Context) error {
	ctx := c.Request().Context()
	resp := statusResponse{
		Version: Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}

	if radarr, err := s.deps.Store.AllInstances(ctx, arr.ServiceRadarr); err == nil {
		resp.RadarrInstances = len(radarr)
	}
	if sonarr, err := s.deps.Store.AllInstances(ctx, arr.ServiceSonarr); err == nil {
		resp.SonarrInstances = len(sonarr)
	}
	if movies, err := s.deps.Store.GetAllMovieWatchlistItems(ctx); err == nil {
		resp.WatchlistMovies = len(movies)
	}
	if shows, err := s.deps.Store.GetAllShowWatchlistItems(ctx); err == nil {
		resp.WatchlistShows = len(shows)
	}
	if s.deps.Hub != nil {
		resp.WSClients = s.deps.Hub.ClientCount()
	}

	return c.JSON(http.StatusOK, resp)
}
