package imdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"imrs-backend/internal/components/telemetry"
	"imrs-backend/internal/ratings"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func serveFixture(t testing.TB, w http.ResponseWriter, name string) {
	contents, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Error(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("content-type", "text/html; charset=utf-8")
	w.Write(contents)
}

// fixtureServer imitates the handful of IMDb pages the client reads.
func fixtureServer(t testing.TB) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Accept-Language"), "en") {
			t.Errorf("unexpected accept-language %q", r.Header.Get("Accept-Language"))
		}

		query := r.URL.Query()
		switch r.URL.Path {
		case "/find/":
			if query.Get("s") != "tt" || query.Get("ttype") != "tv" {
				t.Errorf("unexpected search query %s", r.URL.RawQuery)
			}
			switch query.Get("q") {
			case "breaking bad":
				serveFixture(t, w, "search.html")
			case "game of thrones":
				serveFixture(t, w, "search_legacy.html")
			default:
				serveFixture(t, w, "search_empty.html")
			}
		case "/title/tt0903747/episodes/":
			switch query.Get("season") {
			case "":
				serveFixture(t, w, "episodes.html")
			case "1":
				serveFixture(t, w, "season_1.html")
			case "2":
				serveFixture(t, w, "season_2.html")
			case "3":
				serveFixture(t, w, "season_broken.html")
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		case "/title/tt9999999/episodes/":
			serveFixture(t, w, "episodes_none.html")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestClient(t testing.TB, baseUrl string, rec *telemetry.Recorder) *Client {
	client, err := NewClient(ClientOptions{
		BaseUrl:       baseUrl,
		Timeout:       time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}, rec)
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestResolve(t *testing.T) {
	srv := fixtureServer(t)
	defer srv.Close()
	client := newTestClient(t, srv.URL, &telemetry.Recorder{})
	ctx := context.Background()

	identity, err := client.Resolve(ctx, "breaking bad")
	require.NoError(t, err)
	require.Equal(t, ratings.ShowIdentity{ID: "tt0903747", Title: "Breaking Bad"}, identity)

	again, err := client.Resolve(ctx, "breaking bad")
	require.NoError(t, err)
	require.Equal(t, identity, again)

	identity, err = client.Resolve(ctx, "game of thrones")
	require.NoError(t, err)
	require.Equal(t, ratings.ShowIdentity{ID: "tt0944947", Title: "Game of Thrones"}, identity)

	_, err = client.Resolve(ctx, "qwertyuiop")
	require.ErrorIs(t, err, ratings.ErrNotFound)
}

func TestParseSearchMalformed(t *testing.T) {
	table := []struct {
		name string
		page string
	}{
		{
			name: "missing href",
			page: `<div class="find-title-result"><a>Breaking Bad</a></div>`,
		},
		{
			name: "unexpected link shape",
			page: `<div class="find-title-result"><a href="/name/nm0186505/">Bryan Cranston</a></div>`,
		},
	}

	for _, test := range table {
		t.Run(test.name, func(t *testing.T) {
			_, err := parseSearch(context.Background(), parseDoc(t, test.page))
			require.ErrorIs(t, err, ratings.ErrParse)
		})
	}
}

func TestListSeasons(t *testing.T) {
	srv := fixtureServer(t)
	defer srv.Close()
	client := newTestClient(t, srv.URL, &telemetry.Recorder{})

	seasons, err := client.ListSeasons(context.Background(), "tt0903747")
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2", "3"}, seasons)

	seasons, err = client.ListSeasons(context.Background(), "tt9999999")
	require.NoError(t, err)
	require.Empty(t, seasons)
}

func TestFetchSeason(t *testing.T) {
	srv := fixtureServer(t)
	defer srv.Close()
	rec := &telemetry.Recorder{}
	client := newTestClient(t, srv.URL, rec)
	ctx := context.Background()

	table := []struct {
		season   string
		expected []float64
	}{
		{season: "1", expected: []float64{9.0, 8.6, 8.7}},
		{season: "2", expected: []float64{8.6, ratings.Placeholder, 9.3}},
	}
	for _, test := range table {
		res, err := client.FetchSeason(ctx, "tt0903747", test.season)
		require.NoError(t, err)
		require.Equal(t, test.season, res.Season)
		diff := cmp.Diff(test.expected, res.Ratings)
		if diff != "" {
			t.Fatal(diff)
		}
	}

	_, err := client.FetchSeason(ctx, "tt0903747", "3")
	require.ErrorIs(t, err, ratings.ErrParse)
	require.Len(t, rec.Reports("broken"), 1)

	_, err = client.FetchSeason(ctx, "tt0903747", "4")
	require.ErrorIs(t, err, ratings.ErrNotFound)
}

func TestRetryTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		serveFixture(t, w, "episodes.html")
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, &telemetry.Recorder{})
	seasons, err := client.ListSeasons(context.Background(), "tt0903747")
	require.NoError(t, err)
	require.Len(t, seasons, 3)
	require.Equal(t, int32(3), calls.Load())
}

func TestRetryGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, &telemetry.Recorder{})
	_, err := client.ListSeasons(context.Background(), "tt0903747")
	require.ErrorIs(t, err, ratings.ErrTransport)
	require.Equal(t, int32(3), calls.Load())
}

func TestNoRetryOnParseError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		serveFixture(t, w, "season_broken.html")
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, &telemetry.Recorder{})
	_, err := client.FetchSeason(context.Background(), "tt1", "1")
	require.ErrorIs(t, err, ratings.ErrParse)
	require.Equal(t, int32(1), calls.Load())
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := newTestClient(t, srv.URL, &telemetry.Recorder{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.FetchSeason(ctx, "tt1", "1")
	require.ErrorIs(t, err, ratings.ErrTimeout)
}

func TestDumpOutput(t *testing.T) {
	srv := fixtureServer(t)
	defer srv.Close()

	dir := t.TempDir()
	output, err := telemetry.NewFilesystemOutput(dir)
	require.NoError(t, err)

	client, err := NewClient(ClientOptions{BaseUrl: srv.URL, DumpOutput: output}, &telemetry.Recorder{})
	require.NoError(t, err)
	_, err = client.ListSeasons(context.Background(), "tt0903747")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
