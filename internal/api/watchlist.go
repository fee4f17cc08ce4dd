package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/relayarr/relayarr/internal/database"
	"github.com/relayarr/relayarr/internal/dispatch"
	"github.com/relayarr/relayarr/internal/routing"
)

// GET /api/v1/watchlist/movies
func (s *Server) listMovieItems(c echo.Context) error {
	items, err := s.deps.Store.GetAllMovieWatchlistItems(c.Request().Context())
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}
	if items == nil {
		items = []database.WatchlistItem{}
	}
	return c.JSON(http.StatusOK, items)
}

// GET /api/v1/watchlist/shows
func (s *Server) listShowItems(c echo.Context) error {
	items, err := s.deps.Store.GetAllShowWatchlistItems(c.Request().Context())
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}
	if items == nil {
		items = []database.WatchlistItem{}
	}
	return c.JSON(http.StatusOK, items)
}

// POST /api/v1/watchlist/:id/route pushes one stored item through the
// router. Used to retry items that were skipped or to route a manually
// inserted row.
func (s *Server) routeItem(c echo.Context) error {
	if s.deps.Dispatcher == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "routing is not configured")
	}

	id, err := pathID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	row, err := s.deps.Store.WatchlistItemByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrItemNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "watchlist item not found")
		}
		return errJSON(c, http.StatusInternalServerError, err)
	}

	mediaType := routing.MediaTypeShow
	if row.Type == "movie" {
		mediaType = routing.MediaTypeMovie
	}

	item := routing.ContentItem{
		Title:  row.Title,
		Type:   mediaType,
		Guids:  row.Guids,
		Genres: row.Genres,
	}
	rctx := routing.Context{
		UserID:      row.UserID,
		UserName:    c.QueryParam("user"),
		ItemKey:     row.Key,
		ContentType: mediaType,
	}
	opts := dispatch.Options{
		CheckPlex:   s.cfg.Plex.CheckExistence,
		PrimaryUser: row.UserID == 0,
		SearchOnAdd: s.cfg.Arr.SearchOnAdd,
	}

	var result dispatch.Result
	if mediaType == routing.MediaTypeMovie {
		result, err = s.deps.Dispatcher.RouteMovie(ctx, item, rctx, opts)
	} else {
		result, err = s.deps.Dispatcher.RouteShow(ctx, item, rctx, opts)
	}
	if err != nil {
		return errJSON(c, http.StatusBadGateway, err)
	}
	return c.JSON(http.StatusOK, result)
}
