// Package guid parses and compares scheme-prefixed external identifiers
// (tmdb:603, tvdb:121361, imdb:tt0111161, plex:...). Identity across
// sources is always decided by GUID overlap, never by title equality.
package guid

import (
	"strconv"
	"strings"
)

// Scheme prefixes recognized for scoring. Unknown schemes still match
// exactly but carry the lowest weight.
const (
	SchemeTmdb = "tmdb"
	SchemeTvdb = "tvdb"
	SchemeImdb = "imdb"
	SchemePlex = "plex"
)

// schemeWeight ranks identifier schemes by reliability. Provider-native
// numeric ids outrank imdb, which outranks plex rating keys.
var schemeWeight = map[string]int{
	SchemeTmdb: 3,
	SchemeTvdb: 3,
	SchemeImdb: 2,
	SchemePlex: 1,
}

// Parse normalizes raw GUID storage into an ordered, deduplicated list.
// It accepts a slice or a single scheme-prefixed string; legacy rows stored
// one GUID as a bare string. Entries without a scheme separator are dropped.
func Parse(raw any) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return normalize([]string{v})
	case []string:
		return normalize(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return normalize(out)
	default:
		return nil
	}
}

func normalize(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, g := range in {
		g = strings.TrimSpace(g)
		scheme, id, ok := strings.Cut(g, ":")
		if !ok || scheme == "" || id == "" {
			continue
		}
		g = strings.ToLower(scheme) + ":" + id
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}

// TmdbID returns the numeric tmdb id from a GUID list, or 0 when absent
// or non-numeric. Callers must treat <=0 as "required identifier missing"
// and never issue a lookup with it.
func TmdbID(guids []string) int64 {
	return numericID(guids, SchemeTmdb)
}

// TvdbID returns the numeric tvdb id from a GUID list, or 0 when absent
// or non-numeric.
func TvdbID(guids []string) int64 {
	return numericID(guids, SchemeTvdb)
}

func numericID(guids []string, scheme string) int64 {
	prefix := scheme + ":"
	for _, g := range guids {
		if !strings.HasPrefix(g, prefix) {
			continue
		}
		id, err := strconv.ParseInt(g[len(prefix):], 10, 64)
		if err != nil || id <= 0 {
			return 0
		}
		return id
	}
	return 0
}

// MatchScore scores the identifier overlap between two GUID lists.
// 0 means no shared identifier; positive values rank candidates by the
// count and scheme weight of overlapping GUIDs. Used to pick the best
// candidate when bulk-matching content without per-item API lookups.
func MatchScore(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(b))
	for _, g := range normalize(b) {
		set[g] = struct{}{}
	}
	score := 0
	for _, g := range normalize(a) {
		if _, ok := set[g]; !ok {
			continue
		}
		scheme, _, _ := strings.Cut(g, ":")
		if w, known := schemeWeight[scheme]; known {
			score += w
		} else {
			score++
		}
	}
	return score
}
