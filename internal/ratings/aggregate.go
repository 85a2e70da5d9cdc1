package ratings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"imrs-backend/internal/components/assert"
	"imrs-backend/internal/components/telemetry"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("imrs.internal.ratings")

const (
	report_aggregator_list_seasons = "aggregator.list-seasons"
	report_aggregator_fetch_season = "aggregator.fetch-season"
)

// SeasonSource is where the Aggregator gets its data from.
//
// note: fault injection point
type SeasonSource interface {
	ListSeasons(ctx context.Context, id string) ([]string, error)
	FetchSeason(ctx context.Context, id, season string) (SeasonRatings, error)
}

type AggregatorOptions struct {
	// SeasonTimeout bounds every season task, zero means no extra deadline.
	SeasonTimeout time.Duration
	// MaxConcurrency caps the number of seasons fetched at once, zero is unbounded.
	MaxConcurrency int
}

// Aggregator fans out one task per season and joins them into a RatingRecord.
type Aggregator struct {
	source  SeasonSource
	options AggregatorOptions
	tel     telemetry.API
}

func NewAggregator(source SeasonSource, options AggregatorOptions, tel telemetry.API) Aggregator {
	assert.NotNil(source, "source")
	assert.NotNil(tel, "tel")
	return Aggregator{
		source:  source,
		options: options,
		tel:     telemetry.NewScopedAPI("ratings", tel),
	}
}

// Aggregate lists the seasons of id once and fetches all of them
// concurrently. The first failing season cancels the others and fails the
// whole call, no partial record is ever returned.
func (a Aggregator) Aggregate(ctx context.Context, id, title string) (RatingRecord, error) {
	ctx, span := tracer.Start(ctx, "Aggregate", trace.WithAttributes(
		attribute.String("id", id),
	))
	defer span.End()

	seasons, err := a.source.ListSeasons(ctx, id)
	if err != nil {
		a.tel.ReportWarning(report_aggregator_list_seasons, id, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "list seasons")
		return RatingRecord{}, fmt.Errorf("list seasons of %s: %w", id, err)
	}
	span.SetAttributes(attribute.Int("seasons", len(seasons)))

	p := pool.NewWithResults[SeasonRatings]().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	if a.options.MaxConcurrency > 0 {
		p = p.WithMaxGoroutines(a.options.MaxConcurrency)
	}

	for _, season := range seasons {
		p.Go(func(ctx context.Context) (SeasonRatings, error) {
			return a.fetchSeason(ctx, id, season)
		})
	}

	results, err := p.Wait()
	if err != nil {
		a.tel.ReportWarning(report_aggregator_fetch_season, id, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch season")
		return RatingRecord{}, err
	}

	record := RatingRecord{
		ShowTitle: title,
		Ratings:   make(map[string]SeasonRatings, len(results)),
	}
	for _, r := range results {
		record.Ratings[r.Season] = r
	}
	return record, nil
}

func (a Aggregator) fetchSeason(ctx context.Context, id, season string) (SeasonRatings, error) {
	if a.options.SeasonTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.options.SeasonTimeout)
		defer cancel()
	}

	res, err := a.source.FetchSeason(ctx, id, season)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
			err = fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return SeasonRatings{}, fmt.Errorf("season %s of %s: %w", season, id, err)
	}
	res.Season = season
	return res, nil
}
