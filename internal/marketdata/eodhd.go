package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// EODHDBaseURL is the base URL for the EODHD API.
	EODHDBaseURL = "https://eodhd.com/api"

	// DefaultRateLimit is requests per second against EODHD.
	DefaultRateLimit = 10
)

// APIError is a non-200 response from the market-data API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Bar is one end-of-day price record.
type Bar struct {
	Date          string  `json:"date"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	AdjustedClose float64 `json:"adjusted_close"`
	Volume        int64   `json:"volume"`
}

// EODHDClient reads daily bars from the EODHD end-of-day API.
type EODHDClient struct {
	client   *resty.Client
	apiKey   string
	exchange string
	limiter  *rate.Limiter
}

// EODHDOption configures the client.
type EODHDOption func(*EODHDClient)

// WithBaseURL points the client at another endpoint.
func WithBaseURL(url string) EODHDOption {
	return func(c *EODHDClient) {
		c.client.SetBaseURL(url)
	}
}

// WithDefaultExchange sets the suffix added to symbols without one (e.g. "US").
func WithDefaultExchange(exchange string) EODHDOption {
	return func(c *EODHDClient) {
		c.exchange = exchange
	}
}

// WithRateLimit sets a custom rate limit in requests per second. Values
// below one keep the default limit.
func WithRateLimit(requestsPerSecond int) EODHDOption {
	return func(c *EODHDClient) {
		if requestsPerSecond <= 0 {
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewEODHDClient creates a client authenticated with apiKey.
func NewEODHDClient(apiKey string, opts ...EODHDOption) *EODHDClient {
	c := &EODHDClient{
		client: resty.New().
			SetBaseURL(EODHDBaseURL).
			SetTimeout(30 * time.Second),
		apiKey:   apiKey,
		exchange: "US",
		limiter:  rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Bars returns daily bars for symbol between from and to, oldest first.
func (c *EODHDClient) Bars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	ticker := c.qualify(symbol)
	endpoint := "/eod/" + ticker

	log.Debug().
		Str("symbol", ticker).
		Str("from", from.Format(time.DateOnly)).
		Str("to", to.Format(time.DateOnly)).
		Msg("EODHD request")

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"api_token": c.apiKey,
			"fmt":       "json",
			"period":    "d",
			"order":     "a",
			"from":      from.Format(time.DateOnly),
			"to":        to.Format(time.DateOnly),
		}).
		Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("eodhd request failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode(),
			Message:    strings.TrimSpace(resp.String()),
			Endpoint:   endpoint,
		}
	}

	var bars []Bar
	if err := json.Unmarshal(resp.Body(), &bars); err != nil {
		return nil, fmt.Errorf("failed to parse eodhd response: %w", err)
	}

	return bars, nil
}

// WeeklyQuote implements Source using the first open and last close in range.
func (c *EODHDClient) WeeklyQuote(ctx context.Context, symbol string, from, to time.Time) (*Quote, error) {
	bars, err := c.Bars(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}

	first, last := bars[0], bars[len(bars)-1]
	return NewQuote(symbol, from, to, first.Open, last.Close), nil
}

// qualify appends the default exchange to bare tickers; indices such as
// "GSPC.INDX" are passed through.
func (c *EODHDClient) qualify(symbol string) string {
	if strings.Contains(symbol, ".") || c.exchange == "" {
		return symbol
	}
	return symbol + "." + c.exchange
}
