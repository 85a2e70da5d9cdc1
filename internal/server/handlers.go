package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"imrs-backend/internal/notify"
	"imrs-backend/internal/plot"
	"imrs-backend/internal/ratingcache"
	"imrs-backend/internal/ratings"

	"github.com/antzucaro/matchr"
)

func (s *Server) Hello(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Hello, world!"))
}

func writeJson(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(value)
}

// dimension reads an optional size override, clamped to what plot accepts.
func dimension(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", plot.ErrInvalidSize, key, raw)
	}
	return min(max(n, lo), hi), nil
}

func (s *Server) Image(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}
	width, err := dimension(r, "w", s.options.Width, plot.MinWidth, plot.MaxWidth)
	if err != nil {
		writeError(w, err)
		return
	}
	height, err := dimension(r, "h", s.options.Height, plot.MinHeight, plot.MaxHeight)
	if err != nil {
		writeError(w, err)
		return
	}

	png, err := s.chart(ctx, name, width, height)
	if err != nil {
		s.tel.ReportDebug(report_server_image, name, err)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Write(png)
}

// chart returns the encoded chart for name, reusing a previous encoding of
// the same cache entry when there is one.
func (s *Server) chart(ctx context.Context, name string, width, height int) ([]byte, error) {
	identity, err := s.shows.LookupIdentity(ctx, name)
	if err != nil {
		return nil, err
	}
	entry, err := s.shows.GetOrRefreshEntry(ctx, identity)
	if err != nil {
		return nil, err
	}

	key := imageKey(identity.ID, entry, width, height)
	if cached, hit := s.images.Get(key); hit {
		return cached, nil
	}

	img, err := plot.Render(entry.Data.ShowTitle, entry.Data.Ratings, width, height)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = plot.EncodePNG(&buf, img)
	if err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	encoded := buf.Bytes()
	s.images.Add(key, encoded)
	return encoded, nil
}

// imageKey names one encoding of one cache entry, a refreshed entry gets a
// new key.
func imageKey(id string, entry ratings.CacheEntry, width, height int) string {
	return fmt.Sprintf("%s@%d:%dx%d", id, entry.FetchedAt.UnixNano(), width, height)
}

// Slack answers a slash command right away and posts the chart to the
// command's response_url once it is ready.
func (s *Server) Slack(w http.ResponseWriter, r *http.Request) {
	err := r.ParseForm()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(r.FormValue("text"))
	responseUrl := strings.TrimSpace(r.FormValue("response_url"))
	if name == "" || responseUrl == "" {
		http.Error(w, "missing text or response_url", http.StatusBadRequest)
		return
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		s.respondSlack(name, responseUrl)
	}()

	writeJson(w, http.StatusOK, notify.LoadingMessage())
}

func (s *Server) respondSlack(name, responseUrl string) {
	ctx, cancel := context.WithTimeout(s.ctx, s.options.BackgroundTimeout)
	defer cancel()

	msg, err := s.slackMessage(ctx, name)
	if err != nil {
		s.tel.ReportWarning(report_server_slack, name, err)
		msg = notify.ErrorMessage(name, err)
	}

	err = s.notifier.Respond(ctx, responseUrl, msg)
	if err != nil {
		s.tel.ReportWarning(report_server_slack, responseUrl, err)
	}
}

func (s *Server) slackMessage(ctx context.Context, name string) (notify.Message, error) {
	identity, err := s.shows.LookupIdentity(ctx, name)
	if err != nil {
		return notify.Message{}, err
	}
	// warm the cache so the image request from slack is served immediately
	_, err = s.shows.GetOrRefreshEntry(ctx, identity)
	if err != nil {
		return notify.Message{}, err
	}
	return notify.ChartMessage(s.options.UrlPrefix, name, identity.Title), nil
}

func (s *Server) Names(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, s.shows.Names())
}

const maxSuggestions = 10

type suggestion struct {
	name  string
	score float64
}

// Suggest ranks the names resolved so far by similarity to q.
func (s *Server) Suggest(w http.ResponseWriter, r *http.Request) {
	query := ratingcache.NormalizeName(r.URL.Query().Get("q"))
	names := s.shows.Names()
	if query == "" {
		writeJson(w, http.StatusOK, names[:min(len(names), maxSuggestions)])
		return
	}

	ranked := make([]suggestion, 0, len(names))
	for _, name := range names {
		key := ratingcache.NormalizeName(name)
		score := matchr.JaroWinkler(query, key, false)
		if strings.Contains(key, query) {
			score += 1
		}
		if score > 0 {
			ranked = append(ranked, suggestion{name: name, score: score})
		}
	}
	slices.SortStableFunc(ranked, func(a, b suggestion) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return strings.Compare(a.name, b.name)
	})

	out := make([]string, 0, min(len(ranked), maxSuggestions))
	for _, sug := range ranked[:min(len(ranked), maxSuggestions)] {
		out = append(out, sug.name)
	}
	writeJson(w, http.StatusOK, out)
}
