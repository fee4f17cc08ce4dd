// Package routing decides which Radarr/Sonarr instances should acquire a
// content item. Pluggable evaluators (genre, year, language,
// certification, user, conditional) produce weighted decisions which the
// router aggregates, falling back to the default instance and its synced
// instances when no rule matches.
package routing

import (
	"github.com/relayarr/relayarr/internal/arr"
)

// MediaType is the content type being routed.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeShow  MediaType = "show"
)

// Service maps a media type to the target service type.
func (m MediaType) Service() arr.ServiceType {
	if m == MediaTypeMovie {
		return arr.ServiceRadarr
	}
	return arr.ServiceSonarr
}

// MetadataSource identifies which provider shape a metadata payload
// carries. The union is closed: a Metadata value holds exactly one of
// the provider payloads, selected by Source.
type MetadataSource string

const (
	MetadataRadarr MetadataSource = "radarr"
	MetadataSonarr MetadataSource = "sonarr"
)

// Metadata is the raw provider payload attached to a content item.
type Metadata struct {
	Source MetadataSource
	Radarr *arr.Movie
	Sonarr *arr.Series
}

// Year returns the release year, if the payload carries one.
func (m *Metadata) Year() (int, bool) {
	if m == nil {
		return 0, false
	}
	switch m.Source {
	case MetadataRadarr:
		if m.Radarr != nil && m.Radarr.Year > 0 {
			return m.Radarr.Year, true
		}
	case MetadataSonarr:
		if m.Sonarr != nil && m.Sonarr.Year > 0 {
			return m.Sonarr.Year, true
		}
	}
	return 0, false
}

// Language returns the original language name, if present.
func (m *Metadata) Language() (string, bool) {
	if m == nil {
		return "", false
	}
	switch m.Source {
	case MetadataRadarr:
		if m.Radarr != nil && m.Radarr.OriginalLanguage.Name != "" {
			return m.Radarr.OriginalLanguage.Name, true
		}
	case MetadataSonarr:
		if m.Sonarr != nil && m.Sonarr.OriginalLanguage.Name != "" {
			return m.Sonarr.OriginalLanguage.Name, true
		}
	}
	return "", false
}

// Certification returns the content rating, if present.
func (m *Metadata) Certification() (string, bool) {
	if m == nil {
		return "", false
	}
	switch m.Source {
	case MetadataRadarr:
		if m.Radarr != nil && m.Radarr.Certification != "" {
			return m.Radarr.Certification, true
		}
	case MetadataSonarr:
		if m.Sonarr != nil && m.Sonarr.Certification != "" {
			return m.Sonarr.Certification, true
		}
	}
	return "", false
}

// ContentItem is the normalized view of a watchlist entry being routed.
// Constructed per routing call, never persisted as-is.
type ContentItem struct {
	Title    string
	Type     MediaType
	Guids    []string
	Genres   []string
	Metadata *Metadata
}

// Context carries the request context for one routing call. Syncing
// distinguishes bulk reconciliation passes from live webhook-triggered
// routing.
type Context struct {
	UserID      int64
	UserName    string
	ItemKey     string
	ContentType MediaType
	Syncing     bool
}

// Decision is one evaluator's proposed target. Priority is the
// evaluator's static priority; RuleOrder breaks ties between decisions
// of equal priority (smaller wins).
type Decision struct {
	InstanceID     int64
	QualityProfile *string
	RootFolder     *string
	Priority       int
	RuleOrder      int
}

// RuleType enumerates the closed set of router rule types.
type RuleType string

const (
	RuleGenre         RuleType = "genre"
	RuleYear          RuleType = "year"
	RuleLanguage      RuleType = "language"
	RuleCertification RuleType = "certification"
	RuleUser          RuleType = "user"
	RuleConditional   RuleType = "conditional"
)

// RuleTypes lists every valid rule type.
func RuleTypes() []RuleType {
	return []RuleType{RuleGenre, RuleYear, RuleLanguage, RuleCertification, RuleUser, RuleConditional}
}

// RouterRule is a persisted routing rule. Criteria always carries the
// canonical condition envelope; legacy flat criteria are translated at
// the persistence boundary.
type RouterRule struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Type             RuleType        `json:"type"`
	Criteria         Condition       `json:"criteria"`
	TargetType       arr.ServiceType `json:"targetType"`
	TargetInstanceID int64           `json:"targetInstanceId"`
	QualityProfile   *string         `json:"qualityProfile,omitempty"`
	RootFolder       *string         `json:"rootFolder,omitempty"`
	Order            int             `json:"order"`
	Enabled          bool            `json:"enabled"`
}
