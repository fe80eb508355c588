// Package discord posts messages to a Discord channel webhook.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// MaxContentLength is Discord's limit for the content field.
const MaxContentLength = 2000

// StatusError is returned when the webhook answers with a status other than
// the accepted one.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("discord webhook returned %d: %s", e.StatusCode, e.Body)
}

// Payload is the JSON body of a webhook execution.
type Payload struct {
	Content   string `json:"content"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Config holds webhook settings.
type Config struct {
	URL            string
	Username       string
	AvatarURL      string
	AcceptedStatus int
	Timeout        time.Duration
}

// Webhook implements publish.Sink for a Discord webhook URL.
type Webhook struct {
	client   *resty.Client
	url      string
	username string
	avatar   string
	accepted int
}

// NewWebhook creates a webhook sink. Discord answers 204 No Content when a
// message is accepted, which is the default AcceptedStatus.
func NewWebhook(cfg Config) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, errors.New("discord webhook URL is required")
	}
	if cfg.AcceptedStatus == 0 {
		cfg.AcceptedStatus = http.StatusNoContent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Webhook{
		client: resty.New().
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json"),
		url:      cfg.URL,
		username: cfg.Username,
		avatar:   cfg.AvatarURL,
		accepted: cfg.AcceptedStatus,
	}, nil
}

// Emit posts text as one message. There is no retry: a failed post is final
// for that message.
func (w *Webhook) Emit(ctx context.Context, text string) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(Payload{Content: text, Username: w.username, AvatarURL: w.avatar}).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("discord webhook post failed: %w", err)
	}

	if resp.StatusCode() != w.accepted {
		return &StatusError{
			StatusCode: resp.StatusCode(),
			Body:       strings.TrimSpace(resp.String()),
		}
	}

	log.Debug().
		Int("status", resp.StatusCode()).
		Int("length", len([]rune(text))).
		Msg("Discord message accepted")

	return nil
}
