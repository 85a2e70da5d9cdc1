package ratings

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"imrs-backend/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	seasons   []string
	listErr   error
	fetch     func(ctx context.Context, season string) (SeasonRatings, error)
	listCalls atomic.Int32
}

func (f *fakeSource) ListSeasons(ctx context.Context, id string) ([]string, error) {
	f.listCalls.Add(1)
	return f.seasons, f.listErr
}

func (f *fakeSource) FetchSeason(ctx context.Context, id, season string) (SeasonRatings, error) {
	return f.fetch(ctx, season)
}

func TestAggregate(t *testing.T) {
	data := map[string][]float64{
		"1": {9.0, 8.6, 8.7},
		"2": {8.6, 9.3},
	}

	var mutex sync.Mutex
	fetched := []string{}
	source := &fakeSource{
		seasons: []string{"1", "2"},
		fetch: func(ctx context.Context, season string) (SeasonRatings, error) {
			mutex.Lock()
			fetched = append(fetched, season)
			mutex.Unlock()
			return SeasonRatings{Ratings: data[season]}, nil
		},
	}

	agg := NewAggregator(source, AggregatorOptions{SeasonTimeout: time.Second}, &telemetry.Recorder{})
	record, err := agg.Aggregate(context.Background(), "tt0903747", "Breaking Bad")
	require.NoError(t, err)

	require.Equal(t, RatingRecord{
		ShowTitle: "Breaking Bad",
		Ratings: map[string]SeasonRatings{
			"1": {Season: "1", Ratings: []float64{9.0, 8.6, 8.7}},
			"2": {Season: "2", Ratings: []float64{8.6, 9.3}},
		},
	}, record)
	require.ElementsMatch(t, []string{"1", "2"}, fetched)
	require.Equal(t, int32(1), source.listCalls.Load())
}

func TestAggregateNoSeasons(t *testing.T) {
	source := &fakeSource{
		fetch: func(ctx context.Context, season string) (SeasonRatings, error) {
			t.Fatal("no season should be fetched")
			return SeasonRatings{}, nil
		},
	}
	agg := NewAggregator(source, AggregatorOptions{}, &telemetry.Recorder{})
	record, err := agg.Aggregate(context.Background(), "tt1", "Special")
	require.NoError(t, err)
	require.Equal(t, "Special", record.ShowTitle)
	require.Empty(t, record.Ratings)
}

func TestAggregateListError(t *testing.T) {
	source := &fakeSource{listErr: ErrTransport}
	agg := NewAggregator(source, AggregatorOptions{}, &telemetry.Recorder{})
	_, err := agg.Aggregate(context.Background(), "tt1", "x")
	require.ErrorIs(t, err, ErrTransport)
}

func TestAggregateFirstErrorCancelsOthers(t *testing.T) {
	var cancelled atomic.Int32
	source := &fakeSource{
		seasons: []string{"1", "2", "3", "4"},
		fetch: func(ctx context.Context, season string) (SeasonRatings, error) {
			if season == "3" {
				return SeasonRatings{}, ErrParse
			}
			select {
			case <-ctx.Done():
				cancelled.Add(1)
				return SeasonRatings{}, ctx.Err()
			case <-time.After(5 * time.Second):
				return SeasonRatings{Ratings: []float64{5}}, nil
			}
		},
	}

	rec := &telemetry.Recorder{}
	agg := NewAggregator(source, AggregatorOptions{}, rec)

	start := time.Now()
	record, err := agg.Aggregate(context.Background(), "tt1", "x")
	require.ErrorIs(t, err, ErrParse)
	require.Nil(t, record.Ratings)
	require.Less(t, time.Since(start), 4*time.Second)
	require.Equal(t, int32(3), cancelled.Load())
	require.Len(t, rec.Reports("warning"), 1)
}

func TestAggregateSeasonTimeout(t *testing.T) {
	source := &fakeSource{
		seasons: []string{"1", "2"},
		fetch: func(ctx context.Context, season string) (SeasonRatings, error) {
			if season == "1" {
				return SeasonRatings{Ratings: []float64{8}}, nil
			}
			<-ctx.Done()
			return SeasonRatings{}, ctx.Err()
		},
	}

	agg := NewAggregator(source, AggregatorOptions{SeasonTimeout: 20 * time.Millisecond}, &telemetry.Recorder{})
	record, err := agg.Aggregate(context.Background(), "tt1", "x")
	require.ErrorIs(t, err, ErrTimeout)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.Nil(t, record.Ratings)
}

func TestAggregateMaxConcurrency(t *testing.T) {
	var inflight, peak atomic.Int32
	source := &fakeSource{
		seasons: []string{"1", "2", "3", "4", "5", "6"},
		fetch: func(ctx context.Context, season string) (SeasonRatings, error) {
			n := inflight.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inflight.Add(-1)
			return SeasonRatings{Ratings: []float64{7}}, nil
		},
	}

	agg := NewAggregator(source, AggregatorOptions{MaxConcurrency: 2}, &telemetry.Recorder{})
	record, err := agg.Aggregate(context.Background(), "tt1", "x")
	require.NoError(t, err)
	require.Len(t, record.Ratings, 6)
	require.LessOrEqual(t, peak.Load(), int32(2))
}
