package cmd

import (
	"imrs-backend/internal/components/chrono"
	"imrs-backend/internal/components/telemetry"
	"imrs-backend/internal/ratingcache"
	"imrs-backend/internal/ratings"
	"imrs-backend/internal/scrapers/imdb"
)

// newRatingCache wires the scraper, aggregator and cache together.
// dump may be nil.
func newRatingCache(cfg Config, tel telemetry.API, dump telemetry.MessageOutput) (*ratingcache.Cache, error) {
	client, err := imdb.NewClient(imdb.ClientOptions{
		BaseUrl:       cfg.Imdb.BaseUrl,
		Timeout:       cfg.Imdb.timeout(),
		RetryAttempts: uint(max(cfg.Imdb.RetryAttempts, 0)),
		RetryDelay:    cfg.Imdb.retryDelay(),
		DumpOutput:    dump,
	}, tel)
	if err != nil {
		return nil, err
	}

	aggregator := ratings.NewAggregator(client, ratings.AggregatorOptions{
		SeasonTimeout:  cfg.Imdb.seasonTimeout(),
		MaxConcurrency: cfg.Imdb.MaxConcurrency,
	}, tel)

	return ratingcache.NewCache(
		client,
		aggregator,
		chrono.NewStandardImpl(),
		tel,
		ratingcache.Options{},
	), nil
}

func dumpOutput(dir string) (telemetry.MessageOutput, error) {
	if dir == "" {
		return nil, nil
	}
	output, err := telemetry.NewFilesystemOutput(dir)
	if err != nil {
		return nil, err
	}
	return output, nil
}
