// Package marketdata retrieves weekly price moves for a watchlist.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNoData is returned when a source has no bars for the requested range.
var ErrNoData = errors.New("no price data in range")

// Quote summarizes one symbol over a date range.
type Quote struct {
	Symbol        string
	From          time.Time
	To            time.Time
	Open          float64
	Close         float64
	PercentChange float64
}

// Source returns a Quote for symbol between from and to, inclusive.
type Source interface {
	WeeklyQuote(ctx context.Context, symbol string, from, to time.Time) (*Quote, error)
}

// Result is the outcome for one symbol: either Quote or Err is set.
type Result struct {
	Symbol string
	Quote  *Quote
	Err    error
}

// OK reports whether the quote was retrieved.
func (r Result) OK() bool {
	return r.Err == nil && r.Quote != nil
}

// Results holds per-symbol outcomes in request order.
type Results []Result

// Succeeded returns the results that carry a quote.
func (rs Results) Succeeded() Results {
	var out Results
	for _, r := range rs {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Failed returns the results that carry an error.
func (rs Results) Failed() Results {
	var out Results
	for _, r := range rs {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// FetchAll queries every symbol in order. A failing symbol is recorded with
// its error and does not stop the remaining symbols.
func FetchAll(ctx context.Context, src Source, symbols []string, from, to time.Time) Results {
	results := make(Results, 0, len(symbols))

	for _, symbol := range symbols {
		q, err := src.WeeklyQuote(ctx, symbol, from, to)
		if err == nil && q == nil {
			err = ErrNoData
		}
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to fetch quote")
			results = append(results, Result{Symbol: symbol, Err: fmt.Errorf("%s: %w", symbol, err)})
			continue
		}
		results = append(results, Result{Symbol: symbol, Quote: q})
	}

	log.Info().
		Int("symbols", len(symbols)).
		Int("failed", len(results.Failed())).
		Str("from", from.Format(time.DateOnly)).
		Str("to", to.Format(time.DateOnly)).
		Msg("Market data fetched")

	return results
}

// NewQuote builds a Quote and computes the percent change from open to close.
func NewQuote(symbol string, from, to time.Time, openPrice, closePrice float64) *Quote {
	q := &Quote{Symbol: symbol, From: from, To: to, Open: openPrice, Close: closePrice}
	if openPrice != 0 {
		q.PercentChange = (closePrice - openPrice) / openPrice * 100
	}
	return q
}
