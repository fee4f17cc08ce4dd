// Package arr provides Radarr and Sonarr API clients and the instance
// managers that own one live client per configured instance.
package arr

import (
	"errors"
	"fmt"
)

// ServiceType identifies the target application type.
type ServiceType string

const (
	ServiceRadarr ServiceType = "radarr"
	ServiceSonarr ServiceType = "sonarr"
)

// ErrServiceNotInitialized is returned when a client is requested for an
// instance whose startup initialization failed or never ran.
var ErrServiceNotInitialized = errors.New("arr: service not initialized")

// ErrInstanceNotFound is returned for an unknown instance id. This is a
// programmer error at call sites, not an expected runtime condition.
var ErrInstanceNotFound = errors.New("arr: instance not found")

// Instance is a configured Radarr or Sonarr target.
type Instance struct {
	ID              int64       `json:"id"`
	Name            string      `json:"name"`
	BaseURL         string      `json:"baseUrl"`
	APIKey          string      `json:"apiKey"`
	Service         ServiceType `json:"service"`
	IsDefault       bool        `json:"isDefault"`
	SyncedInstances []int64     `json:"syncedInstances"`
	QualityProfile  string      `json:"qualityProfile"`
	RootFolder      string      `json:"rootFolder"`
}

// ExistsResult reports the outcome of a single-instance existence check.
// Checked=false means the instance could not be consulted at all; callers
// must not interpret it as "absent".
type ExistsResult struct {
	Checked bool
	Found   bool
	Err     error
}

// Movie is a Radarr library entry, tagged with the owning instance id
// when fetched through a manager.
type Movie struct {
	ID               int64    `json:"id"`
	Title            string   `json:"title"`
	Year             int      `json:"year"`
	TmdbID           int64    `json:"tmdbId"`
	ImdbID           string   `json:"imdbId"`
	Status           string   `json:"status"`
	HasFile          bool     `json:"hasFile"`
	IsAvailable      bool     `json:"isAvailable"`
	Monitored        bool     `json:"monitored"`
	Certification    string   `json:"certification"`
	OriginalLanguage Language `json:"originalLanguage"`
	Genres           []string `json:"genres"`
	QualityProfileID int64    `json:"qualityProfileId"`
	RootFolderPath   string   `json:"rootFolderPath"`

	InstanceID int64 `json:"-"`
}

// Guids returns the movie's external identifiers in scheme-prefixed form.
func (m Movie) Guids() []string {
	var guids []string
	if m.TmdbID > 0 {
		guids = append(guids, fmt.Sprintf("tmdb:%d", m.TmdbID))
	}
	if m.ImdbID != "" {
		guids = append(guids, "imdb:"+m.ImdbID)
	}
	return guids
}

// Series is a Sonarr library entry, tagged with the owning instance id
// when fetched through a manager.
type Series struct {
	ID               int64    `json:"id"`
	Title            string   `json:"title"`
	Year             int      `json:"year"`
	TvdbID           int64    `json:"tvdbId"`
	TmdbID           int64    `json:"tmdbId"`
	ImdbID           string   `json:"imdbId"`
	Status           string   `json:"status"`
	Ended            bool     `json:"ended"`
	Monitored        bool     `json:"monitored"`
	Certification    string   `json:"certification"`
	OriginalLanguage Language `json:"originalLanguage"`
	Genres           []string `json:"genres"`
	QualityProfileID int64    `json:"qualityProfileId"`
	RootFolderPath   string   `json:"rootFolderPath"`

	Statistics SeriesStatistics `json:"statistics"`

	InstanceID int64 `json:"-"`
}

// SeriesStatistics is the on-disk summary Sonarr attaches to a series.
type SeriesStatistics struct {
	EpisodeFileCount  int `json:"episodeFileCount"`
	EpisodeCount      int `json:"episodeCount"`
	TotalEpisodeCount int `json:"totalEpisodeCount"`
}

// Guids returns the series' external identifiers in scheme-prefixed form.
func (s Series) Guids() []string {
	var guids []string
	if s.TvdbID > 0 {
		guids = append(guids, fmt.Sprintf("tvdb:%d", s.TvdbID))
	}
	if s.TmdbID > 0 {
		guids = append(guids, fmt.Sprintf("tmdb:%d", s.TmdbID))
	}
	if s.ImdbID != "" {
		guids = append(guids, "imdb:"+s.ImdbID)
	}
	return guids
}

// Language is the arr API language object ({"id":1,"name":"English"}).
type Language struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RootFolder is an instance root folder.
type RootFolder struct {
	ID   int64  `json:"id"`
	Path string `json:"path"`
}

// QualityProfile is an instance quality profile.
type QualityProfile struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AddMovieInput describes a movie to add to a Radarr instance. Empty
// RootFolderPath or QualityProfileID fall back to the instance
// defaults; QualityProfileName, when set, is resolved against the
// instance's profiles before the defaults apply.
type AddMovieInput struct {
	Title              string
	TmdbID             int64
	QualityProfileID   int64
	QualityProfileName string
	RootFolderPath     string
	SearchOnAdd        bool
}

// AddSeriesInput describes a series to add to a Sonarr instance.
type AddSeriesInput struct {
	Title              string
	TvdbID             int64
	QualityProfileID   int64
	QualityProfileName string
	RootFolderPath     string
	SearchOnAdd        bool
}
