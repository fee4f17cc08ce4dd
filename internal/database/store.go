package database

import (
	"database/sql"
	"encoding/json"

	"github.com/rs/zerolog"
)

// Store is the hand-written query layer over the SQLite connection. It
// implements the narrow persistence interfaces the routing, dispatch,
// sync, and manager components consume.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore creates a store over an open connection.
func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// encodeJSON marshals a value for a TEXT column, defaulting to the
// empty array on failure so reads stay well-formed.
func encodeJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeStrings(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		// Legacy rows stored a single GUID as a bare string.
		return []string{raw}
	}
	return out
}

func decodeInt64s(raw string) []int64 {
	if raw == "" {
		return nil
	}
	var out []int64
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
