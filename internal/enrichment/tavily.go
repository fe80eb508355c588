package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	TavilyAPIURL = "https://api.tavily.com"
)

// TavilyClient provides news search via the Tavily API.
type TavilyClient struct {
	client *resty.Client
	apiKey string
}

// TavilySearchRequest represents a search request.
type TavilySearchRequest struct {
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth,omitempty"` // "basic" or "advanced"
	Topic          string   `json:"topic,omitempty"`        // "general", "news" or "finance"
	MaxResults     int      `json:"max_results,omitempty"`
	IncludeAnswer  bool     `json:"include_answer,omitempty"`
	StartDate      string   `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate        string   `json:"end_date,omitempty"`
	IncludeDomains []string `json:"include_domains,omitempty"`
}

// TavilySearchResponse represents a search response.
type TavilySearchResponse struct {
	Query   string         `json:"query"`
	Answer  string         `json:"answer,omitempty"`
	Results []TavilyResult `json:"results"`
}

// TavilyResult represents a single search result.
type TavilyResult struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Content   string  `json:"content"`
	Score     float64 `json:"score"`
	Published string  `json:"published_date,omitempty"`
}

// NewTavilyClient creates a new Tavily client.
func NewTavilyClient(apiKey string) *TavilyClient {
	return &TavilyClient{
		client: resty.New().
			SetBaseURL(TavilyAPIURL).
			SetTimeout(30 * time.Second),
		apiKey: apiKey,
	}
}

// SetBaseURL overrides the API endpoint.
func (c *TavilyClient) SetBaseURL(url string) *TavilyClient {
	c.client.SetBaseURL(url)
	return c
}

// SearchNews searches financial news published between from and to.
func (c *TavilyClient) SearchNews(ctx context.Context, query string, from, to time.Time, maxResults int) (*TavilySearchResponse, error) {
	return c.Search(ctx, TavilySearchRequest{
		Query:         query,
		SearchDepth:   "basic",
		Topic:         "news",
		MaxResults:    maxResults,
		IncludeAnswer: true,
		StartDate:     from.Format(time.DateOnly),
		EndDate:       to.Format(time.DateOnly),
		IncludeDomains: []string{
			"reuters.com",
			"bloomberg.com",
			"cnbc.com",
			"wsj.com",
			"ft.com",
			"marketwatch.com",
			"finance.yahoo.com",
			"apnews.com",
		},
	})
}

// Search performs a search with custom parameters.
func (c *TavilyClient) Search(ctx context.Context, req TavilySearchRequest) (*TavilySearchResponse, error) {
	log.Debug().
		Str("query", req.Query).
		Int("max_results", req.MaxResults).
		Msg("Tavily search")

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(c.apiKey).
		SetBody(req).
		Post("/search")

	if err != nil {
		return nil, fmt.Errorf("tavily search failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("tavily API returned %d: %s", resp.StatusCode(), resp.String())
	}

	var result TavilySearchResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse tavily response: %w", err)
	}

	log.Debug().
		Int("results", len(result.Results)).
		Bool("has_answer", result.Answer != "").
		Msg("Tavily search complete")

	return &result, nil
}
