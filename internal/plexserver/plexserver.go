// Package plexserver checks whether content is already available on any
// of the user's accessible Plex servers. Used by dispatch as an
// optional short-circuit before adding to a Radarr/Sonarr instance.
package plexserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/relayarr/relayarr/internal/routing"
)

// Server is one reachable Plex server.
type Server struct {
	Name    string `json:"name"`
	BaseURL string `json:"baseUrl"`
	// Shared servers are visible to secondary users; owned servers
	// only to the primary account.
	Shared bool `json:"shared"`
}

// Service queries the configured Plex servers.
type Service struct {
	token      string
	servers    []Server
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewService creates a Plex server checker.
func NewService(token string, servers []Server, timeout time.Duration, logger zerolog.Logger) *Service {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Service{
		token:      token,
		servers:    servers,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "plexserver").Logger(),
	}
}

// mediaContainer is the JSON shape of a /library/all response.
type mediaContainer struct {
	MediaContainer struct {
		Size int `json:"size"`
	} `json:"MediaContainer"`
}

// CheckExistenceAcrossServers reports whether the item is present on
// any server the requesting user can see. Per-server failures are
// logged and skipped; an error is only returned when no server could
// be consulted at all.
func (s *Service) CheckExistenceAcrossServers(ctx context.Context, itemKey string, contentType routing.MediaType, primaryUser bool) (bool, error) {
	visible := s.visibleServers(primaryUser)
	if len(visible) == 0 {
		return false, nil
	}

	checked := 0
	for _, server := range visible {
		found, err := s.checkServer(ctx, server, itemKey, contentType)
		if err != nil {
			s.logger.Warn().Err(err).Str("server", server.Name).Str("itemKey", itemKey).
				Msg("plex server check failed")
			continue
		}
		checked++
		if found {
			return true, nil
		}
	}

	if checked == 0 {
		return false, fmt.Errorf("no plex server could be checked for %q", itemKey)
	}
	return false, nil
}

func (s *Service) visibleServers(primaryUser bool) []Server {
	if primaryUser {
		return s.servers
	}
	var shared []Server
	for _, server := range s.servers {
		if server.Shared {
			shared = append(shared, server)
		}
	}
	return shared
}

func (s *Service) checkServer(ctx context.Context, server Server, itemKey string, contentType routing.MediaType) (bool, error) {
	libraryType := "1" // movie
	if contentType == routing.MediaTypeShow {
		libraryType = "2"
	}

	endpoint := fmt.Sprintf("%s/library/all?type=%s&guid=%s",
		server.BaseURL, libraryType, url.QueryEscape("plex://"+itemKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Token", s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("plex server returned status %d", resp.StatusCode)
	}

	var container mediaContainer
	if err := json.NewDecoder(resp.Body).Decode(&container); err != nil {
		return false, fmt.Errorf("failed to decode plex response: %w", err)
	}
	return container.MediaContainer.Size > 0, nil
}
