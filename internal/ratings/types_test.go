package ratings

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestTrimPlaceholders(t *testing.T) {
	table := []struct {
		name     string
		input    []float64
		expected []float64
	}{
		{
			name:     "trailing run",
			input:    []float64{8.5, -1, 9.0, -1, -1},
			expected: []float64{8.5, -1, 9.0},
		},
		{
			name:     "leading kept",
			input:    []float64{-1, 7.1, 7.2},
			expected: []float64{-1, 7.1, 7.2},
		},
		{
			name:     "all placeholders",
			input:    []float64{-1, -1},
			expected: []float64{},
		},
		{
			name:     "nothing to trim",
			input:    []float64{9.1},
			expected: []float64{9.1},
		},
		{
			name:     "empty",
			input:    []float64{},
			expected: []float64{},
		},
	}

	for _, test := range table {
		t.Run(test.name, func(t *testing.T) {
			diff := cmp.Diff(test.expected, TrimPlaceholders(test.input))
			if diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestSortSeasons(t *testing.T) {
	labels := []string{"10", "Unknown", "2", "1", "Specials", "3"}
	SortSeasons(labels)
	require.Equal(t, []string{"1", "2", "3", "10", "Specials", "Unknown"}, labels)

	require.Equal(t, 0, CompareSeasons("4", "4"))
	require.Equal(t, -1, CompareSeasons("9", "10"))
	require.Equal(t, 1, CompareSeasons("x", "100"))
}

func TestRecordClone(t *testing.T) {
	original := RatingRecord{
		ShowTitle: "Breaking Bad",
		Ratings: map[string]SeasonRatings{
			"1": {Season: "1", Ratings: []float64{9.0, 8.6}},
		},
	}
	clone := original.Clone()
	clone.Ratings["1"].Ratings[0] = 1
	clone.Ratings["2"] = SeasonRatings{Season: "2"}

	require.Equal(t, 9.0, original.Ratings["1"].Ratings[0])
	require.Len(t, original.Ratings, 1)
	require.Nil(t, RatingRecord{}.Clone().Ratings)
}

func TestRecordSeasons(t *testing.T) {
	record := RatingRecord{Ratings: map[string]SeasonRatings{
		"2":  {Ratings: []float64{1, 2}},
		"10": {Ratings: []float64{3}},
		"1":  {Ratings: []float64{4, 5, 6}},
	}}
	require.Equal(t, []string{"1", "2", "10"}, record.Seasons())
	require.Equal(t, 6, record.EpisodeCount())
}

func TestFreshAt(t *testing.T) {
	fetched := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	entry := CacheEntry{FetchedAt: fetched}

	require.True(t, entry.FreshAt(fetched.Add(23*time.Hour+59*time.Minute), FreshnessWindow))
	require.False(t, entry.FreshAt(fetched.Add(24*time.Hour), FreshnessWindow))
	require.False(t, entry.FreshAt(fetched.Add(24*time.Hour+time.Second), FreshnessWindow))
}
