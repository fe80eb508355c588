// Package enrichment gathers news context for the symbols covered by a report.
package enrichment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// NewsSearcher finds news published between from and to.
type NewsSearcher interface {
	SearchNews(ctx context.Context, query string, from, to time.Time, maxResults int) (*TavilySearchResponse, error)
}

// EnrichmentConfig holds configuration for the enricher.
type EnrichmentConfig struct {
	MaxNewsResults int
	// QueryTemplate builds the search query; %s is replaced by the symbol.
	QueryTemplate string
}

// Enricher collects weekly news per symbol.
type Enricher struct {
	search NewsSearcher
	config EnrichmentConfig
}

// NewsArticle represents a news article.
type NewsArticle struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Content   string  `json:"content"`
	Published string  `json:"published,omitempty"`
	Source    string  `json:"source"`
	Relevance float64 `json:"relevance"`
}

// SymbolNews is the news found for one symbol, or the error that prevented it.
type SymbolNews struct {
	Symbol   string
	Answer   string
	Articles []NewsArticle
	Err      error
}

// EnrichedContext is the combined news context for a reporting window.
type EnrichedContext struct {
	From    time.Time
	To      time.Time
	Symbols []SymbolNews
	Summary string
}

// NewEnricher creates a new Enricher.
func NewEnricher(search NewsSearcher, config EnrichmentConfig) *Enricher {
	if config.MaxNewsResults <= 0 {
		config.MaxNewsResults = 5
	}
	if config.QueryTemplate == "" {
		config.QueryTemplate = "%s stock news"
	}
	return &Enricher{search: search, config: config}
}

// Enrich searches news for every symbol concurrently. A failing symbol is
// recorded in its SymbolNews and left out of the summary.
func (e *Enricher) Enrich(ctx context.Context, symbols []string, from, to time.Time) *EnrichedContext {
	log.Info().
		Strs("symbols", symbols).
		Str("from", from.Format(time.DateOnly)).
		Str("to", to.Format(time.DateOnly)).
		Msg("Starting enrichment")

	result := &EnrichedContext{
		From:    from,
		To:      to,
		Symbols: make([]SymbolNews, len(symbols)),
	}

	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			result.Symbols[i] = e.enrichSymbol(ctx, symbol, from, to)
		}(i, symbol)
	}
	wg.Wait()

	result.Summary = e.generateSummary(result)

	failed := 0
	for _, s := range result.Symbols {
		if s.Err != nil {
			failed++
		}
	}
	log.Info().
		Int("symbols", len(symbols)).
		Int("failed", failed).
		Msg("Enrichment complete")

	return result
}

func (e *Enricher) enrichSymbol(ctx context.Context, symbol string, from, to time.Time) SymbolNews {
	query := fmt.Sprintf(e.config.QueryTemplate, symbol)

	resp, err := e.search.SearchNews(ctx, query, from, to, e.config.MaxNewsResults)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("News search failed")
		return SymbolNews{Symbol: symbol, Err: err}
	}

	news := SymbolNews{
		Symbol:   symbol,
		Answer:   resp.Answer,
		Articles: make([]NewsArticle, 0, len(resp.Results)),
	}
	for _, r := range resp.Results {
		news.Articles = append(news.Articles, NewsArticle{
			Title:     r.Title,
			URL:       r.URL,
			Content:   r.Content,
			Published: r.Published,
			Source:    extractDomain(r.URL),
			Relevance: r.Score,
		})
	}
	return news
}

// generateSummary creates a combined summary for LLM consumption.
func (e *Enricher) generateSummary(enriched *EnrichedContext) string {
	var sb strings.Builder

	for _, s := range enriched.Symbols {
		if s.Err != nil || (len(s.Articles) == 0 && s.Answer == "") {
			continue
		}

		sb.WriteString(fmt.Sprintf("## %s\n", s.Symbol))
		if s.Answer != "" {
			sb.WriteString(TruncateString(s.Answer, 500))
			sb.WriteString("\n")
		}
		for i, article := range s.Articles {
			sb.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, article.Title, article.Source))
			if article.Content != "" {
				sb.WriteString(fmt.Sprintf("   %s\n", TruncateString(article.Content, 300)))
			}
		}
		sb.WriteString("\n")
	}

	return strings.TrimSpace(sb.String())
}

// Helper functions

func extractDomain(url string) string {
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimPrefix(url, "www.")
	parts := strings.Split(url, "/")
	if len(parts) > 0 {
		return parts[0]
	}
	return url
}

// TruncateString cuts s to maxLen runes and marks the cut with "...".
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
