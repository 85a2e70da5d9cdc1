// Package ratingcache keeps resolved show identities and the last rating
// record fetched for each show.
package ratingcache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"imrs-backend/internal/components/assert"
	"imrs-backend/internal/components/chrono"
	"imrs-backend/internal/components/telemetry"
	"imrs-backend/internal/ratings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var (
	tracer = otel.Tracer("imrs.internal.ratingcache")
	meter  = otel.Meter("imrs.internal.ratingcache")
)

const (
	report_cache_lookup_identity = "cache.lookup-identity"
	report_cache_refresh         = "cache.refresh"
	report_cache_metrics         = "cache.metrics"
	report_cache_size            = "cache.size"
)

// Resolver turns a free-text name into a show identity.
type Resolver interface {
	Resolve(ctx context.Context, name string) (ratings.ShowIdentity, error)
}

// Aggregator builds a complete rating record for a show.
type Aggregator interface {
	Aggregate(ctx context.Context, id, title string) (ratings.RatingRecord, error)
}

type Options struct {
	// Window is how long an entry stays fresh, defaults to ratings.FreshnessWindow.
	Window time.Duration
	// RefreshTimeout bounds a refresh independently of whoever started it.
	RefreshTimeout time.Duration
}

// namedIdentity keeps the name as it was typed next to its resolution.
type namedIdentity struct {
	name     string
	identity ratings.ShowIdentity
}

type Cache struct {
	resolver   Resolver
	aggregator Aggregator
	time       chrono.API
	tel        telemetry.API
	options    Options

	mutex      sync.RWMutex
	identities map[string]namedIdentity
	entries    map[string]ratings.CacheEntry

	flight singleflight.Group

	hits      metric.Int64Counter
	misses    metric.Int64Counter
	refreshes metric.Int64Counter
	failures  metric.Int64Counter
}

func NewCache(
	resolver Resolver,
	aggregator Aggregator,
	clock chrono.API,
	tel telemetry.API,
	options Options,
) *Cache {
	assert.NotNil(resolver, "resolver")
	assert.NotNil(aggregator, "aggregator")
	assert.NotNil(clock, "clock")
	assert.NotNil(tel, "tel")

	if options.Window == 0 {
		options.Window = ratings.FreshnessWindow
	}
	if options.RefreshTimeout == 0 {
		options.RefreshTimeout = 2 * time.Minute
	}
	assert.Positive(options.Window, "window")
	assert.Positive(options.RefreshTimeout, "refresh timeout")

	c := &Cache{
		resolver:   resolver,
		aggregator: aggregator,
		time:       clock,
		tel:        telemetry.NewScopedAPI("ratingcache", tel),
		options:    options,
		identities: make(map[string]namedIdentity),
		entries:    make(map[string]ratings.CacheEntry),
	}
	c.hits = c.counter("ratingcache.hits", "Rating lookups served from a fresh entry.")
	c.misses = c.counter("ratingcache.misses", "Rating lookups that found no fresh entry.")
	c.refreshes = c.counter("ratingcache.refreshes", "Successful rating refreshes.")
	c.failures = c.counter("ratingcache.refresh_failures", "Failed rating refreshes.")
	return c
}

func (c *Cache) counter(name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		c.tel.ReportWarning(report_cache_metrics, name, err)
		counter, _ = noop.NewMeterProvider().Meter("").Int64Counter(name)
	}
	return counter
}

// NormalizeName is the key a show name is cached under.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// LookupIdentity returns the cached identity for name or resolves and
// stores it. Concurrent first lookups of one name each resolve, the last
// write wins.
func (c *Cache) LookupIdentity(ctx context.Context, name string) (ratings.ShowIdentity, error) {
	key := NormalizeName(name)
	if key == "" {
		return ratings.ShowIdentity{}, fmt.Errorf("%w: empty show name", ratings.ErrNotFound)
	}

	c.mutex.RLock()
	cached, ok := c.identities[key]
	c.mutex.RUnlock()
	if ok {
		return cached.identity, nil
	}

	name = strings.TrimSpace(name)
	identity, err := c.resolver.Resolve(ctx, name)
	if err != nil {
		c.tel.ReportDebug(report_cache_lookup_identity, key, err)
		return ratings.ShowIdentity{}, err
	}

	c.mutex.Lock()
	c.identities[key] = namedIdentity{name: name, identity: identity}
	c.mutex.Unlock()

	return identity, nil
}

func (c *Cache) fresh(id string) (ratings.CacheEntry, bool) {
	c.mutex.RLock()
	entry, ok := c.entries[id]
	c.mutex.RUnlock()
	if !ok || !entry.FreshAt(c.time.Now(), c.options.Window) {
		return ratings.CacheEntry{}, false
	}
	return entry, true
}

// GetOrRefresh returns a snapshot of the ratings of identity, refreshing
// them first when the cached entry is missing or stale. Concurrent refreshes
// of the same id share one aggregation. A failed refresh leaves the cache
// as it was.
func (c *Cache) GetOrRefresh(ctx context.Context, identity ratings.ShowIdentity) (ratings.RatingRecord, error) {
	entry, err := c.GetOrRefreshEntry(ctx, identity)
	if err != nil {
		return ratings.RatingRecord{}, err
	}
	return entry.Data, nil
}

// GetOrRefreshEntry is GetOrRefresh that also returns when the snapshot was
// fetched.
func (c *Cache) GetOrRefreshEntry(ctx context.Context, identity ratings.ShowIdentity) (ratings.CacheEntry, error) {
	ctx, span := tracer.Start(ctx, "GetOrRefresh", trace.WithAttributes(
		attribute.String("id", identity.ID),
	))
	defer span.End()

	if entry, ok := c.fresh(identity.ID); ok {
		c.hits.Add(ctx, 1)
		span.SetAttributes(attribute.Bool("hit", true))
		return snapshot(entry), nil
	}
	c.misses.Add(ctx, 1)
	span.SetAttributes(attribute.Bool("hit", false))

	result := c.flight.DoChan(identity.ID, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx), identity)
	})

	select {
	case res := <-result:
		if res.Err != nil {
			return ratings.CacheEntry{}, res.Err
		}
		return snapshot(res.Val.(ratings.CacheEntry)), nil
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ratings.ErrTimeout, err)
		}
		return ratings.CacheEntry{}, fmt.Errorf("wait for refresh of %s: %w", identity.ID, err)
	}
}

// refresh runs without holding any lock, only the install is exclusive.
func (c *Cache) refresh(ctx context.Context, identity ratings.ShowIdentity) (ratings.CacheEntry, error) {
	// another flight may have landed between the caller's check and now
	if entry, ok := c.fresh(identity.ID); ok {
		return entry, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.options.RefreshTimeout)
	defer cancel()

	record, err := c.aggregator.Aggregate(ctx, identity.ID, identity.Title)
	if err != nil {
		c.failures.Add(ctx, 1)
		c.tel.ReportWarning(report_cache_refresh, identity.ID, err)
		return ratings.CacheEntry{}, fmt.Errorf("refresh %s: %w", identity.ID, err)
	}

	entry := ratings.CacheEntry{
		FetchedAt: c.time.Now(),
		Data:      record,
	}

	c.mutex.Lock()
	c.entries[identity.ID] = entry
	size := len(c.entries)
	c.mutex.Unlock()

	c.refreshes.Add(ctx, 1)
	c.tel.ReportCount(report_cache_size, int64(size))
	return entry, nil
}

// Entry returns a snapshot of the cached entry for id regardless of freshness.
func (c *Cache) Entry(id string) (ratings.CacheEntry, bool) {
	c.mutex.RLock()
	entry, ok := c.entries[id]
	c.mutex.RUnlock()
	if !ok {
		return ratings.CacheEntry{}, false
	}
	return snapshot(entry), true
}

func snapshot(entry ratings.CacheEntry) ratings.CacheEntry {
	return ratings.CacheEntry{
		FetchedAt: entry.FetchedAt,
		Data:      entry.Data.Clone(),
	}
}

// Names lists every name that has been resolved as it was typed, sorted.
// Names that normalize to the same key are listed once.
func (c *Cache) Names() []string {
	c.mutex.RLock()
	names := make([]string, 0, len(c.identities))
	for _, cached := range c.identities {
		names = append(names, cached.name)
	}
	c.mutex.RUnlock()
	slices.Sort(names)
	return names
}
