// Package imdb scrapes show identities, season listings and per-episode
// ratings from IMDb's HTML pages.
package imdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"imrs-backend/internal/components/assert"
	"imrs-backend/internal/components/telemetry"
	"imrs-backend/internal/ratings"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/avast/retry-go/v4"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("imrs.internal.scrapers.imdb")

const DefaultBaseUrl = "https://www.imdb.com"

const (
	report_client_resolve      = "client.resolve"
	report_client_list_seasons = "client.list-seasons"
	report_client_fetch_season = "client.fetch-season"
	report_client_retry        = "client.retry"
)

type ClientOptions struct {
	BaseUrl string
	// Timeout bounds a single HTTP request.
	Timeout time.Duration
	// RetryAttempts is the total number of tries for transient failures.
	RetryAttempts uint
	// RetryDelay is the base of the exponential backoff.
	RetryDelay time.Duration
	// DumpOutput receives every HTTP exchange when set.
	DumpOutput telemetry.MessageOutput
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.BaseUrl == "" {
		o.BaseUrl = DefaultBaseUrl
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.RetryAttempts == 0 {
		o.RetryAttempts = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 250 * time.Millisecond
	}
	return o
}

type Client struct {
	http    *resty.Client
	options ClientOptions
	tel     telemetry.API
}

func NewClient(options ClientOptions, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel, "tel")

	tel = telemetry.NewScopedAPI("imdb_scraper", tel)
	options = options.withDefaults()
	assert.NotEmptyStr(options.BaseUrl, "base url")

	_, err := url.Parse(options.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(options.BaseUrl)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	httpClient.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	httpClient.SetHeader("accept-language", "en")
	httpClient.SetTimeout(options.Timeout)

	telemetry.InstrumentResty(httpClient, tel, options.DumpOutput)

	return &Client{
		http:    httpClient,
		options: options,
		tel:     tel,
	}, nil
}

// classify tags err with the error kind the rest of the system matches on.
func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ratings.ErrTimeout),
		errors.Is(err, ratings.ErrTransport),
		errors.Is(err, ratings.ErrNotFound),
		errors.Is(err, ratings.ErrParse):
		return err
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ratings.ErrTimeout, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ratings.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ratings.ErrTransport, err)
}

// get fetches path and parses the body into a document, transient
// failures are retried with exponential backoff.
func (c *Client) get(ctx context.Context, path string, query url.Values) (*goquery.Document, error) {
	doc, err := retry.DoWithData(
		func() (*goquery.Document, error) {
			res, err := c.http.R().
				SetContext(ctx).
				SetQueryParamsFromValues(query).
				Get(path)
			if err != nil {
				return nil, classify(ctx, err)
			}
			switch {
			case res.StatusCode() == http.StatusNotFound:
				return nil, fmt.Errorf("%w: %s", ratings.ErrNotFound, res.Request.URL)
			case res.IsError():
				return nil, fmt.Errorf("%w: %s: status %d", ratings.ErrTransport, res.Request.URL, res.StatusCode())
			}

			doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
			if err != nil {
				return nil, fmt.Errorf("%w: read document: %w", ratings.ErrParse, err)
			}
			return doc, nil
		},
		retry.Context(ctx),
		retry.Attempts(c.options.RetryAttempts),
		retry.Delay(c.options.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(ratings.Retryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.tel.ReportDebug(report_client_retry, path, n, err)
		}),
	)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return doc, nil
}
