package imdb

import (
	"context"
	"fmt"
	"net/url"

	"imrs-backend/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const seasonEntrySelector = `[data-testid="tab-season-entry"]`

func episodesPath(id string) string {
	return fmt.Sprintf("/title/%s/episodes/", url.PathEscape(id))
}

// ListSeasons returns the season labels of a show in page order. A show
// without a season selector yields an empty list.
func (c *Client) ListSeasons(ctx context.Context, id string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "ListSeasons", trace.WithAttributes(
		attribute.String("id", id),
	))
	defer span.End()

	doc, err := c.get(ctx, episodesPath(id), nil)
	if err != nil {
		c.tel.ReportWarning(report_client_list_seasons, id, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch episodes page")
		return nil, fmt.Errorf("list seasons: %w", err)
	}

	seasons := parseSeasons(doc)
	span.SetAttributes(attribute.Int("count", len(seasons)))
	return seasons, nil
}

func parseSeasons(doc *goquery.Document) []string {
	seasons := []string{}
	for _, n := range doc.Find(seasonEntrySelector).Nodes {
		seasons = append(seasons, htmlutil.CleanText(htmlutil.GetText(n)))
	}
	return seasons
}
