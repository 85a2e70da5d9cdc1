package ratings

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Placeholder marks an episode that is listed but has no rating yet.
const Placeholder = -1.0

// FreshnessWindow is how long a fetched RatingRecord may be served.
const FreshnessWindow = 24 * time.Hour

type ShowIdentity struct {
	ID    string
	Title string
}

type SeasonRatings struct {
	Season  string
	Ratings []float64
}

func (s SeasonRatings) Clone() SeasonRatings {
	return SeasonRatings{
		Season:  s.Season,
		Ratings: slices.Clone(s.Ratings),
	}
}

// RatingRecord is every season of one show. It is only ever built whole.
type RatingRecord struct {
	ShowTitle string
	Ratings   map[string]SeasonRatings
}

func (r RatingRecord) Clone() RatingRecord {
	out := RatingRecord{ShowTitle: r.ShowTitle}
	if r.Ratings == nil {
		return out
	}
	out.Ratings = make(map[string]SeasonRatings, len(r.Ratings))
	for k, v := range r.Ratings {
		out.Ratings[k] = v.Clone()
	}
	return out
}

// Seasons returns the season labels in CompareSeasons order.
func (r RatingRecord) Seasons() []string {
	labels := slices.Collect(maps.Keys(r.Ratings))
	SortSeasons(labels)
	return labels
}

func (r RatingRecord) EpisodeCount() int {
	total := 0
	for _, s := range r.Ratings {
		total += len(s.Ratings)
	}
	return total
}

type CacheEntry struct {
	FetchedAt time.Time
	Data      RatingRecord
}

// FreshAt is true while strictly less than window has passed since FetchedAt.
func (e CacheEntry) FreshAt(now time.Time, window time.Duration) bool {
	return now.Sub(e.FetchedAt) < window
}

// TrimPlaceholders drops the maximal trailing run of Placeholder values,
// leading and interior placeholders are kept.
func TrimPlaceholders(values []float64) []float64 {
	end := len(values)
	for end > 0 && values[end-1] == Placeholder {
		end--
	}
	return values[:end]
}

func seasonNumber(label string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(label), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// CompareSeasons orders numeric labels numerically and before any
// non-numeric label, the rest compare lexically.
func CompareSeasons(a, b string) int {
	an, aok := seasonNumber(a)
	bn, bok := seasonNumber(b)
	switch {
	case aok && bok:
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
		return strings.Compare(a, b)
	case aok:
		return -1
	case bok:
		return 1
	}
	return strings.Compare(a, b)
}

func SortSeasons(labels []string) {
	slices.SortFunc(labels, CompareSeasons)
}
