// Package publish delivers long texts to length-limited chat sinks.
//
// A message is decorated with a header, split into chunks under the sink's
// limit at line boundaries where possible, and emitted one chunk at a time
// with a pause between emissions. A failed chunk never stops the others.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DefaultLimit                = 1900
	DefaultHeaderTemplate       = "🚀 **{title}**\n\n"
	DefaultContinuationTemplate = "**({part})**\n"
	DefaultInterMessageDelay    = time.Second
)

// Sink accepts one message at a time.
type Sink interface {
	Emit(ctx context.Context, text string) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, text string) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, text string) error {
	return f(ctx, text)
}

// Config controls decoration, splitting and pacing.
// Templates may use the {title} and {part} placeholders.
type Config struct {
	Limit                int           `validate:"gt=0"`
	HeaderTemplate       string        `validate:"-"`
	ContinuationTemplate string        `validate:"-"`
	InterMessageDelay    time.Duration `validate:"gte=0"`
}

// DefaultConfig returns settings sized for a Discord webhook.
func DefaultConfig() Config {
	return Config{
		Limit:                DefaultLimit,
		HeaderTemplate:       DefaultHeaderTemplate,
		ContinuationTemplate: DefaultContinuationTemplate,
		InterMessageDelay:    DefaultInterMessageDelay,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid publish config: %w", err)
	}
	return nil
}

// Publisher emits chunked messages to a single sink. Pacing applies across
// calls, so consecutive messages to the sink are spaced as well.
// Calls to Publish on the same Publisher must be serialized by the caller.
type Publisher struct {
	sink    Sink
	cfg     Config
	limiter *rate.Limiter
}

// NewPublisher creates a Publisher for sink.
func NewPublisher(sink Sink, cfg Config) (*Publisher, error) {
	if sink == nil {
		return nil, errors.New("publish: nil sink")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Publisher{
		sink:    sink,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.InterMessageDelay), 1),
	}, nil
}

// Config returns the publisher configuration.
func (p *Publisher) Config() Config {
	return p.cfg
}

// Result is the delivery outcome of one chunk.
type Result struct {
	Chunk Chunk
	Err   error
}

// OK reports whether the chunk was accepted by the sink.
func (r Result) OK() bool {
	return r.Err == nil
}

// Report lists the per-chunk outcomes of one Publish call, in emission order.
type Report struct {
	Title   string
	Results []Result
}

// Delivered returns the number of chunks the sink accepted.
func (r *Report) Delivered() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

// Failed returns the chunks that were not delivered.
func (r *Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.OK() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Err joins the per-chunk errors, or returns nil when every chunk was delivered.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, fmt.Errorf("part %d/%d: %w", res.Chunk.Part, len(r.Results), res.Err))
	}
	return errors.Join(errs...)
}

// Publish splits body and emits every chunk in order.
//
// The returned error is non-nil only when the message cannot be split; delivery
// failures are reported per chunk in the Report. A cancelled context marks the
// chunks not yet emitted as failed with the context error.
func (p *Publisher) Publish(ctx context.Context, title, body string) (*Report, error) {
	chunks, err := p.cfg.Split(title, body)
	if err != nil {
		return nil, err
	}

	report := &Report{Title: title, Results: make([]Result, 0, len(chunks))}

	log.Debug().
		Str("title", title).
		Int("chunks", len(chunks)).
		Int("limit", p.cfg.Limit).
		Msg("Publishing message")

	for i, chunk := range chunks {
		if err := p.limiter.Wait(ctx); err != nil {
			log.Warn().Err(err).Int("remaining", len(chunks)-i).Msg("Publishing interrupted")
			for _, rest := range chunks[i:] {
				report.Results = append(report.Results, Result{Chunk: rest, Err: err})
			}
			break
		}

		res := Result{Chunk: chunk}
		if err := p.sink.Emit(ctx, chunk.Text()); err != nil {
			log.Error().
				Err(err).
				Str("title", title).
				Int("part", chunk.Part).
				Int("of", len(chunks)).
				Msg("Failed to emit chunk")
			res.Err = err
		} else {
			log.Debug().
				Int("part", chunk.Part).
				Int("of", len(chunks)).
				Int("length", chunk.Len()).
				Msg("Chunk emitted")
		}
		report.Results = append(report.Results, res)
	}

	log.Info().
		Str("title", title).
		Int("delivered", report.Delivered()).
		Int("chunks", len(chunks)).
		Msg("Message published")

	return report, nil
}
