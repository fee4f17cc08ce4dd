package statussync

import (
	"github.com/relayarr/relayarr/internal/arr"
	"github.com/relayarr/relayarr/internal/guid"
)

// Item is the service-neutral view of one library entry fetched from an
// instance. The status and junction passes share one diff algorithm
// over this shape; the per-service configs supply the adapters.
type Item struct {
	InstanceID int64
	Title      string
	Guids      []string
	// Available means the content is actually on disk (movie file
	// present, or at least one episode file for a series).
	Available bool
	// Ended is only meaningful for series.
	Ended bool
	// Detail carries the provider's own status string ("released",
	// "continuing", ...).
	Detail string
}

func fromMovie(m arr.Movie) Item {
	return Item{
		InstanceID: m.InstanceID,
		Title:      m.Title,
		Guids:      m.Guids(),
		Available:  m.HasFile,
		Detail:     m.Status,
	}
}

func fromMovies(movies []arr.Movie) []Item {
	out := make([]Item, 0, len(movies))
	for _, m := range movies {
		out = append(out, fromMovie(m))
	}
	return out
}

func fromSeries(s arr.Series) Item {
	return Item{
		InstanceID: s.InstanceID,
		Title:      s.Title,
		Guids:      s.Guids(),
		Available:  s.Statistics.EpisodeFileCount > 0,
		Ended:      s.Ended,
		Detail:     s.Status,
	}
}

func fromAllSeries(series []arr.Series) []Item {
	out := make([]Item, 0, len(series))
	for _, s := range series {
		out = append(out, fromSeries(s))
	}
	return out
}

// bestMatch finds the fetched item with the highest identifier overlap
// against a set of GUIDs. A zero score is no match.
func bestMatch(guids []string, items []Item) (Item, bool) {
	var (
		best      Item
		bestScore int
	)
	for _, item := range items {
		score := guid.MatchScore(guids, item.Guids)
		if score > bestScore {
			best, bestScore = item, score
		}
	}
	return best, bestScore > 0
}
