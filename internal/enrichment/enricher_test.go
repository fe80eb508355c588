package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	from = time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2025, 11, 7, 0, 0, 0, 0, time.UTC)
)

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	fail    map[string]error
}

func (f *fakeSearcher) SearchNews(_ context.Context, query string, _, _ time.Time, max int) (*TavilySearchResponse, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()

	for sym, err := range f.fail {
		if strings.HasPrefix(query, sym+" ") {
			return nil, err
		}
	}
	return &TavilySearchResponse{
		Query:  query,
		Answer: "answer for " + query,
		Results: []TavilyResult{
			{Title: "Headline " + query, URL: "https://www.reuters.com/markets/x", Content: "body", Score: 0.9},
		},
	}, nil
}

func TestEnrichIsolatesFailures(t *testing.T) {
	search := &fakeSearcher{fail: map[string]error{"SOFI": errors.New("quota")}}
	e := NewEnricher(search, EnrichmentConfig{})

	ctx := e.Enrich(context.Background(), []string{"TSLA", "SOFI", "PLTR"}, from, to)

	require.Len(t, ctx.Symbols, 3)
	assert.Equal(t, "TSLA", ctx.Symbols[0].Symbol)
	assert.Equal(t, "SOFI", ctx.Symbols[1].Symbol)
	assert.Error(t, ctx.Symbols[1].Err)
	assert.Equal(t, "PLTR", ctx.Symbols[2].Symbol)
	assert.Equal(t, "reuters.com", ctx.Symbols[2].Articles[0].Source)

	assert.Contains(t, ctx.Summary, "## TSLA")
	assert.Contains(t, ctx.Summary, "## PLTR")
	assert.NotContains(t, ctx.Summary, "## SOFI")
	assert.Len(t, search.queries, 3)
	assert.Contains(t, search.queries, "TSLA stock news")
}

func TestTavilySearchNews(t *testing.T) {
	var got TavilySearchRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"query":"q","answer":"a","results":[{"title":"t","url":"https://cnbc.com/a","content":"c","score":0.5}]}`))
	}))
	defer server.Close()

	client := NewTavilyClient("tvly-key").SetBaseURL(server.URL)
	resp, err := client.SearchNews(context.Background(), "TSLA stock news", from, to, 3)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tvly-key", auth)
	assert.Equal(t, "news", got.Topic)
	assert.Equal(t, "2025-11-03", got.StartDate)
	assert.Equal(t, "2025-11-07", got.EndDate)
	assert.Equal(t, 3, got.MaxResults)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "t", resp.Results[0].Title)
}

func TestTavilyErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := NewTavilyClient("bad").SetBaseURL(server.URL).SearchNews(context.Background(), "q", from, to, 1)
	assert.ErrorContains(t, err, "tavily API returned 401")
}

func TestTruncateStringKeepsRunes(t *testing.T) {
	assert.Equal(t, "日本...", TruncateString("日本語", 2))
	assert.Equal(t, "abc", TruncateString("abc", 5))
}
