package imdb

import (
	"context"
	"fmt"
	"net/url"
	"regexp"

	"imrs-backend/internal/ratings"
	"imrs-backend/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const searchResultSelector = ".findResult .result_text a, .find-title-result a"

var titleIdRegex = regexp.MustCompile(`/title/([^/?#]+)/`)

// Resolve searches for name and returns the identity of the first TV result.
func (c *Client) Resolve(ctx context.Context, name string) (ratings.ShowIdentity, error) {
	ctx, span := tracer.Start(ctx, "Resolve", trace.WithAttributes(
		attribute.String("name", name),
	))
	defer span.End()

	query := url.Values{}
	query.Add("q", name)
	query.Add("s", "tt")
	query.Add("ttype", "tv")

	doc, err := c.get(ctx, "/find/", query)
	if err != nil {
		c.tel.ReportWarning(report_client_resolve, name, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch search page")
		return ratings.ShowIdentity{}, fmt.Errorf("resolve %q: %w", name, err)
	}

	identity, err := parseSearch(ctx, doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse search page")
		return ratings.ShowIdentity{}, fmt.Errorf("resolve %q: %w", name, err)
	}
	span.SetAttributes(attribute.String("id", identity.ID))
	return identity, nil
}

func parseSearch(ctx context.Context, doc *goquery.Document) (ratings.ShowIdentity, error) {
	anchors := htmlutil.GetAnchors(ctx, doc.Find(searchResultSelector).First())
	if len(anchors) == 0 {
		return ratings.ShowIdentity{}, ratings.ErrNotFound
	}

	first := anchors[0]
	if !first.HasHref {
		return ratings.ShowIdentity{}, fmt.Errorf("%w: search result has no link", ratings.ErrParse)
	}
	groups := titleIdRegex.FindStringSubmatch(first.Href)
	if len(groups) < 2 {
		return ratings.ShowIdentity{}, fmt.Errorf("%w: unexpected result link %q", ratings.ErrParse, first.Href)
	}

	return ratings.ShowIdentity{
		ID:    groups[1],
		Title: first.Name,
	}, nil
}
