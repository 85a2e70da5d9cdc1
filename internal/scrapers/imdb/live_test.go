package imdb

import (
	"context"
	"testing"
	"time"

	"imrs-backend/internal/components/telemetry"
	"imrs-backend/internal/components/testutil"
	"imrs-backend/internal/ratings"

	"github.com/stretchr/testify/require"
)

// TestLiveImdb scrapes the real site, run it with IMRS_LIVE_IMDB=1.
func TestLiveImdb(t *testing.T) {
	testutil.RequireEnv(t, "IMRS_LIVE_IMDB")

	client, err := NewClient(ClientOptions{}, telemetry.SlogAPI{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	identity, err := client.Resolve(ctx, "Breaking Bad")
	require.NoError(t, err)
	require.Equal(t, "tt0903747", identity.ID)

	seasons, err := client.ListSeasons(ctx, identity.ID)
	require.NoError(t, err)
	require.NotEmpty(t, seasons)

	season, err := client.FetchSeason(ctx, identity.ID, seasons[0])
	require.NoError(t, err)
	require.NotEmpty(t, season.Ratings)
	for _, v := range season.Ratings {
		require.True(t, v == ratings.Placeholder || (v >= 0 && v <= 10), "rating %v out of range", v)
	}
}
