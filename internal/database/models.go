package database

import "time"

// Watchlist item status values as they progress through acquisition.
const (
	StatusPending   = "pending"
	StatusRequested = "requested"
	StatusGrabbed   = "grabbed"
	StatusNotified  = "notified"
)

// Sync status values for a watchlist row.
const (
	SyncPending    = "pending"
	SyncProcessing = "processing"
	SyncSynced     = "synced"
)

// WatchlistItem is a persisted watchlist row. Logical identity is
// (UserID, Key). The single RadarrInstanceID/SonarrInstanceID columns
// record the primary owning instance; junction rows separately record
// presence across every instance holding the item.
type WatchlistItem struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"userId"`
	Key              string    `json:"key"`
	Title            string    `json:"title"`
	Type             string    `json:"type"`
	Guids            []string  `json:"guids"`
	Genres           []string  `json:"genres"`
	Status           string    `json:"status"`
	MovieStatus      *string   `json:"movieStatus,omitempty"`
	SeriesStatus     *string   `json:"seriesStatus,omitempty"`
	SyncStatus       string    `json:"syncStatus"`
	RadarrInstanceID *int64    `json:"radarrInstanceId,omitempty"`
	SonarrInstanceID *int64    `json:"sonarrInstanceId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ItemPatch is a partial update to a watchlist row; nil fields are left
// untouched.
type ItemPatch struct {
	Title            *string
	Status           *string
	MovieStatus      *string
	SeriesStatus     *string
	SyncStatus       *string
	RadarrInstanceID *int64
	SonarrInstanceID *int64
}

// Empty reports whether the patch changes nothing.
func (p ItemPatch) Empty() bool {
	return p.Title == nil && p.Status == nil && p.MovieStatus == nil &&
		p.SeriesStatus == nil && p.SyncStatus == nil &&
		p.RadarrInstanceID == nil && p.SonarrInstanceID == nil
}

// BulkUpdate is one row's patch inside a bulk write.
type BulkUpdate struct {
	ID    int64
	Patch ItemPatch
}

// JunctionRow links a watchlist item to one instance that holds it.
type JunctionRow struct {
	WatchlistID int64
	InstanceID  int64
}

// AuthUser is an admin API account.
type AuthUser struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
