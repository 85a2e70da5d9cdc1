// Package notify posts delayed responses to Slack slash commands.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"imrs-backend/internal/components/assert"
	"imrs-backend/internal/components/telemetry"
	"imrs-backend/internal/ratings"

	"github.com/go-resty/resty/v2"
)

const report_slack_respond = "slack.respond"

const ResponseInChannel = "in_channel"

type Attachment struct {
	ImageUrl string `json:"image_url"`
}

// Message is the body of a slash command response.
type Message struct {
	ResponseType string       `json:"response_type"`
	Text         string       `json:"text"`
	Attachments  []Attachment `json:"attachments,omitempty"`
}

func LoadingMessage() Message {
	return Message{ResponseType: ResponseInChannel, Text: "Loading..."}
}

// ErrorMessage is a channel-safe description of err. The error itself may
// carry upstream urls and statuses and belongs in telemetry only.
func ErrorMessage(name string, err error) Message {
	var text string
	switch {
	case errors.Is(err, ratings.ErrNotFound):
		text = fmt.Sprintf("Could not find a TV show called %q.", name)
	case errors.Is(err, ratings.ErrTimeout):
		text = fmt.Sprintf("IMDb took too long to answer for %q, try again later.", name)
	case errors.Is(err, ratings.ErrTransport):
		text = fmt.Sprintf("Could not reach IMDb for %q, try again later.", name)
	case errors.Is(err, ratings.ErrParse):
		text = fmt.Sprintf("Could not read the IMDb ratings of %q.", name)
	default:
		text = fmt.Sprintf("Something went wrong getting ratings for %q.", name)
	}
	return Message{ResponseType: ResponseInChannel, Text: text}
}

// ImageUrl is the public address of the chart for name.
func ImageUrl(prefix, name string) string {
	return fmt.Sprintf("%s/api/image?name=%s", strings.TrimRight(prefix, "/"), url.QueryEscape(name))
}

func ChartMessage(prefix, name, title string) Message {
	return Message{
		ResponseType: ResponseInChannel,
		Text:         title,
		Attachments: []Attachment{
			{ImageUrl: ImageUrl(prefix, name)},
		},
	}
}

type Slack struct {
	http *resty.Client
	tel  telemetry.API
}

func NewSlack(timeout time.Duration, tel telemetry.API) *Slack {
	assert.NotNil(tel, "tel")
	tel = telemetry.NewScopedAPI("notify", tel)

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("content-type", "application/json")
	telemetry.InstrumentResty(client, tel, nil)

	return &Slack{http: client, tel: tel}
}

// Respond posts msg to a slash command's response_url.
func (s *Slack) Respond(ctx context.Context, responseUrl string, msg Message) error {
	parsed, err := url.Parse(responseUrl)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("invalid response url %q", responseUrl)
	}

	res, err := s.http.R().
		SetContext(ctx).
		SetBody(msg).
		Post(responseUrl)
	if err != nil {
		s.tel.ReportWarning(report_slack_respond, err)
		return fmt.Errorf("%w: respond: %w", ratings.ErrTransport, err)
	}
	if res.IsError() {
		err = fmt.Errorf("%w: respond: status %d", ratings.ErrTransport, res.StatusCode())
		s.tel.ReportWarning(report_slack_respond, err)
		return err
	}
	return nil
}
