package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"imrs-backend/internal/components/telemetry"
	"imrs-backend/internal/ratings"

	"github.com/stretchr/testify/require"
)

func TestImageUrl(t *testing.T) {
	require.Equal(
		t,
		"http://localhost:8080/api/image?name=breaking+bad%26co",
		ImageUrl("http://localhost:8080/", "breaking bad&co"),
	)
}

func TestErrorMessageHidesDetail(t *testing.T) {
	detail := "GET https://www.imdb.com/title/tt0903747/episodes/?season=2: status 503"
	table := []struct {
		err      error
		expected string
	}{
		{err: ratings.ErrNotFound, expected: `Could not find a TV show called "breaking bad".`},
		{err: ratings.ErrTimeout, expected: `IMDb took too long to answer for "breaking bad", try again later.`},
		{err: ratings.ErrTransport, expected: `Could not reach IMDb for "breaking bad", try again later.`},
		{err: ratings.ErrParse, expected: `Could not read the IMDb ratings of "breaking bad".`},
		{err: errors.New("boom"), expected: `Something went wrong getting ratings for "breaking bad".`},
	}
	for _, row := range table {
		msg := ErrorMessage("breaking bad", fmt.Errorf("%s: %w", detail, row.err))
		require.Equal(t, ResponseInChannel, msg.ResponseType)
		require.Equal(t, row.expected, msg.Text)
		require.NotContains(t, msg.Text, "imdb.com")
		require.NotContains(t, msg.Text, "503")
	}
}

func TestRespond(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		var body map[string]any
		err := json.NewDecoder(r.Body).Decode(&body)
		if err != nil {
			t.Error(err)
		}
		received <- body
	}))
	defer srv.Close()

	slack := NewSlack(time.Second, &telemetry.Recorder{})
	err := slack.Respond(
		context.Background(),
		srv.URL+"/commands/123",
		ChartMessage("https://imrs.example", "breaking bad", "Breaking Bad"),
	)
	require.NoError(t, err)

	body := <-received
	require.Equal(t, "in_channel", body["response_type"])
	require.Equal(t, "Breaking Bad", body["text"])
	require.Equal(t, []any{
		map[string]any{"image_url": "https://imrs.example/api/image?name=breaking+bad"},
	}, body["attachments"])
}

func TestRespondFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	rec := &telemetry.Recorder{}
	slack := NewSlack(time.Second, rec)
	err := slack.Respond(context.Background(), srv.URL, LoadingMessage())
	require.True(t, errors.Is(err, ratings.ErrTransport))
	require.Len(t, rec.Reports("warning"), 1)

	err = slack.Respond(context.Background(), "ftp://nope", LoadingMessage())
	require.Error(t, err)
}
