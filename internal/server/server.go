// Package server exposes the rating charts over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"imrs-backend/internal/components/assert"
	"imrs-backend/internal/components/telemetry"
	"imrs-backend/internal/notify"
	"imrs-backend/internal/plot"
	"imrs-backend/internal/ratings"

	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	report_server_request = "server.request"
	report_server_image   = "server.image"
	report_server_slack   = "server.slack"
)

// ShowCache is everything the handlers need from the rating cache.
//
// note: fault injection point
type ShowCache interface {
	LookupIdentity(ctx context.Context, name string) (ratings.ShowIdentity, error)
	GetOrRefreshEntry(ctx context.Context, identity ratings.ShowIdentity) (ratings.CacheEntry, error)
	Names() []string
}

type Notifier interface {
	Respond(ctx context.Context, responseUrl string, msg notify.Message) error
}

type Options struct {
	// Width and Height are the default chart size.
	Width  int
	Height int
	// UrlPrefix is the public base address used in chat responses.
	UrlPrefix string
	// StaticDir holds the web UI, it is served for every unknown path.
	StaticDir string
	// BackgroundTimeout bounds the work done after a slash command returns.
	BackgroundTimeout time.Duration
}

type Server struct {
	ctx      context.Context
	shows    ShowCache
	notifier Notifier
	options  Options
	tel      telemetry.API

	// encoded charts keyed by id, fetch time and size
	images *expirable.LRU[string, []byte]

	background sync.WaitGroup
}

// NewServer creates a Server, ctx bounds the lifetime of background work.
func NewServer(ctx context.Context, shows ShowCache, notifier Notifier, options Options, tel telemetry.API) *Server {
	assert.NotNil(ctx, "ctx")
	assert.NotNil(shows, "shows")
	assert.NotNil(notifier, "notifier")
	assert.NotNil(tel, "tel")

	if options.Width == 0 {
		options.Width = 1200
	}
	if options.Height == 0 {
		options.Height = 400
	}
	if options.BackgroundTimeout <= 0 {
		options.BackgroundTimeout = 2 * time.Minute
	}

	return &Server{
		ctx:      ctx,
		shows:    shows,
		notifier: notifier,
		options:  options,
		tel:      telemetry.NewScopedAPI("server", tel),
		images:   expirable.NewLRU[string, []byte](256, nil, ratings.FreshnessWindow),
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/hello", s.Hello).Methods(http.MethodGet)
	api.HandleFunc("/image", s.Image).Methods(http.MethodGet)
	api.HandleFunc("/slack", s.Slack).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/names", s.Names).Methods(http.MethodGet)
	api.HandleFunc("/suggest", s.Suggest).Methods(http.MethodGet)

	r.PathPrefix("/").Handler(spaHandler{dir: s.options.StaticDir})
	return r
}

// Wait blocks until every background task has finished.
func (s *Server) Wait() {
	s.background.Wait()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.tel.ReportDebug(report_server_request, r.Method, r.URL.Path, time.Since(start).String())
	})
}

// statusOf maps an error to the status code the client sees.
func statusOf(err error) int {
	switch {
	case errors.Is(err, ratings.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, plot.ErrInvalidSize):
		return http.StatusBadRequest
	case errors.Is(err, ratings.ErrParse):
		return http.StatusBadGateway
	case errors.Is(err, ratings.ErrTransport), errors.Is(err, ratings.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusOf(err))
}
