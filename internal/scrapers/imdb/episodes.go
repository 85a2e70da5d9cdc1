package imdb

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"imrs-backend/internal/ratings"
	"imrs-backend/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

const ratingGroupSelector = `[data-testid="ratingGroup--container"]`

// ratings are shown as plain decimals, this keeps strconv from accepting
// "NaN", "Inf" or hex floats.
var ratingPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

func parseRating(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if !ratingPattern.MatchString(text) {
		return 0, fmt.Errorf("rating %q is not a decimal number", text)
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, err
	}
	if value > 10 {
		return 0, fmt.Errorf("rating %v is out of range", value)
	}
	return value, nil
}

// FetchSeason returns the episode ratings of one season in episode order.
// Episodes without a rating become ratings.Placeholder and trailing
// placeholders are dropped.
func (c *Client) FetchSeason(ctx context.Context, id, season string) (ratings.SeasonRatings, error) {
	ctx, span := tracer.Start(ctx, "FetchSeason", trace.WithAttributes(
		attribute.String("id", id),
		attribute.String("season", season),
	))
	defer span.End()

	query := url.Values{}
	query.Add("season", season)

	doc, err := c.get(ctx, episodesPath(id), query)
	if err != nil {
		c.tel.ReportWarning(report_client_fetch_season, id, season, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch season page")
		return ratings.SeasonRatings{}, fmt.Errorf("fetch season: %w", err)
	}

	values, err := parseEpisodeRatings(doc)
	if err != nil {
		// markup changed underneath us
		c.tel.ReportBroken(report_client_fetch_season, id, season, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse season page")
		return ratings.SeasonRatings{}, fmt.Errorf("fetch season: %w", err)
	}

	span.SetAttributes(attribute.Int("episodes", len(values)))
	return ratings.SeasonRatings{
		Season:  season,
		Ratings: values,
	}, nil
}

// ratingText follows container -> first child -> first child -> next sibling.
func ratingText(container *html.Node) (string, bool) {
	first := container.FirstChild
	if first == nil || first.FirstChild == nil {
		return "", false
	}
	node := first.FirstChild.NextSibling
	if node == nil {
		return "", false
	}
	if node.Type == html.TextNode {
		return node.Data, true
	}
	return htmlutil.GetText(node), true
}

func parseEpisodeRatings(doc *goquery.Document) ([]float64, error) {
	values := []float64{}
	for i, n := range doc.Find(ratingGroupSelector).Nodes {
		if htmlutil.IsBlank(n) {
			values = append(values, ratings.Placeholder)
			continue
		}

		text, ok := ratingText(n)
		if !ok {
			return nil, fmt.Errorf("%w: episode %d: rating text missing", ratings.ErrParse, i+1)
		}
		value, err := parseRating(text)
		if err != nil {
			return nil, fmt.Errorf("%w: episode %d: %w", ratings.ErrParse, i+1, err)
		}
		values = append(values, value)
	}
	return ratings.TrimPlaceholders(values), nil
}
