package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leeaandrob/weeklyreport/internal/config"
	"github.com/leeaandrob/weeklyreport/internal/enrichment"
	"github.com/leeaandrob/weeklyreport/internal/marketdata"
	"github.com/leeaandrob/weeklyreport/internal/models"
	"github.com/leeaandrob/weeklyreport/internal/publish"
	"github.com/leeaandrob/weeklyreport/internal/storage"
	"github.com/leeaandrob/weeklyreport/internal/week"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wednesday = time.Date(2025, 11, 12, 9, 30, 0, 0, time.UTC)

type fakeGenerator struct {
	mu      sync.Mutex
	systems []string
	users   []string
	// failOn fails the section whose prompt contains the key.
	failOn map[string]error
	text   func(user string) string
}

func (g *fakeGenerator) Generate(_ context.Context, system, user string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.systems = append(g.systems, system)
	g.users = append(g.users, user)
	for key, err := range g.failOn {
		if strings.Contains(user, key) {
			return "", err
		}
	}
	if g.text != nil {
		return g.text(user), nil
	}
	return "レポート本文", nil
}

type fakeMarket struct{}

func (fakeMarket) WeeklyQuote(_ context.Context, symbol string, from, to time.Time) (*marketdata.Quote, error) {
	if symbol == "SOFI" {
		return nil, errors.New("upstream timeout")
	}
	return marketdata.NewQuote(symbol, from, to, 100, 110), nil
}

type fakeNews struct {
	calls int
}

func (n *fakeNews) Enrich(_ context.Context, symbols []string, from, to time.Time) *enrichment.EnrichedContext {
	n.calls++
	return &enrichment.EnrichedContext{From: from, To: to, Summary: "## TSLA\n1. Deliveries beat (reuters.com)"}
}

type messageLog struct {
	mu       sync.Mutex
	messages []string
	calls    int
	fail     func(n int, text string) error
}

func (m *messageLog) Emit(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.fail != nil {
		if err := m.fail(m.calls, text); err != nil {
			return err
		}
	}
	m.messages = append(m.messages, text)
	return nil
}

func newTestRunner(t *testing.T, gen *fakeGenerator, sink publish.Sink, mutate func(*Options)) *Runner {
	t.Helper()

	cfg := publish.DefaultConfig()
	cfg.InterMessageDelay = 0
	pub, err := publish.NewPublisher(sink, cfg)
	require.NoError(t, err)

	opts := Options{
		Definition: config.DefaultReport(),
		Policy:     week.StrictPriorWeek(),
		Location:   time.UTC,
		Generator:  gen,
		Publisher:  pub,
		Market:     fakeMarket{},
		News:       &fakeNews{},
		Now:        func() time.Time { return wednesday },
	}
	if mutate != nil {
		mutate(&opts)
	}

	r, err := NewRunner(opts)
	require.NoError(t, err)
	return r
}

func TestRunDeliversEverySection(t *testing.T) {
	gen := &fakeGenerator{}
	sink := &messageLog{}
	store := storage.NewMemoryStore()
	r := newTestRunner(t, gen, sink, func(o *Options) { o.Store = store })

	result, err := r.Run(context.Background(), "test")
	require.NoError(t, err)

	assert.Equal(t, "2025-11-03", result.Week.Key())
	assert.Equal(t, "週間米国株レポート (2025年11月03日〜)", result.Title)
	assert.Equal(t, models.RunStatusDelivered, result.Status())
	require.Len(t, result.Sections, 4)
	for _, s := range result.Sections {
		assert.True(t, s.Delivered(), s.Name)
	}

	require.Len(t, sink.messages, 4)
	assert.Equal(t, "🚀 **週間米国株レポート (2025年11月03日〜)｜市場全体のパフォーマンスとトレンド**\n\nレポート本文", sink.messages[0])
	assert.Contains(t, sink.messages[3], "主要投資対象銘柄の週次まとめ")

	require.Len(t, gen.systems, 4)
	assert.Contains(t, gen.systems[0], "TSLA, PLTR, SOFI, CELH")
	assert.Contains(t, gen.systems[0], "2025年11月03日から11月07日")
	assert.Contains(t, gen.systems[0], "2025年10月27日から10月31日")

	market := gen.users[0]
	assert.Contains(t, market, "### 前週 (2025-11-03〜2025-11-07)")
	assert.Contains(t, market, "### 前々週 (2025-10-27〜2025-10-31)")
	assert.Contains(t, market, "- TSLA: 始値 100.00 / 終値 110.00 (+10.00%)")
	assert.Contains(t, market, "- SOFI: 取得失敗")
	assert.NotContains(t, market, "関連ニュース")
	assert.Contains(t, gen.users[3], "## 関連ニュース\n## TSLA")

	assert.Equal(t, 2, result.Market.Failed())
	assert.Equal(t, 16, result.Market.Fetched())

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, result.ID, runs[0].RunID)
	assert.Equal(t, "2025-11-03", runs[0].WeekKey)
	assert.Equal(t, "strict", runs[0].Policy)
	assert.Equal(t, 4, runs[0].ChunksSent)
	assert.Equal(t, 2, runs[0].SymbolsFailed)
}

func TestRunIsolatesFailedSection(t *testing.T) {
	gen := &fakeGenerator{failOn: map[string]error{"テクニカル指標": errors.New("quota exceeded")}}
	sink := &messageLog{}
	r := newTestRunner(t, gen, sink, func(o *Options) { o.NotifyFailures = true })

	result, err := r.Run(context.Background(), "test")
	require.Error(t, err)
	assert.ErrorContains(t, err, "section technical")
	assert.ErrorContains(t, err, "quota exceeded")

	assert.Equal(t, models.RunStatusPartial, result.Status())
	failed := result.FailedSections()
	require.Len(t, failed, 1)
	assert.Equal(t, "technical", failed[0].Name)
	assert.False(t, failed[0].Generated())

	// three sections plus the notice
	require.Len(t, sink.messages, 4)
	notice := sink.messages[3]
	assert.True(t, strings.HasPrefix(notice, "🚀 **週間米国株レポート (2025年11月03日〜)**"))
	assert.Contains(t, notice, "- テクニカル指標と市場の健康度: generate: quota exceeded")
	require.NotNil(t, result.Notice)
	assert.Equal(t, 1, result.Notice.Delivered())
}

func TestRunEverySectionFailedIsFailedDespiteNotice(t *testing.T) {
	gen := &fakeGenerator{failOn: map[string]error{"#": errors.New("quota")}}
	sink := &messageLog{}
	r := newTestRunner(t, gen, sink, func(o *Options) { o.NotifyFailures = true })

	result, err := r.Run(context.Background(), "test")
	require.Error(t, err)

	assert.Len(t, result.FailedSections(), 4)
	require.Len(t, sink.messages, 1)
	require.NotNil(t, result.Notice)
	assert.Equal(t, 1, result.Notice.Delivered())

	assert.Equal(t, models.RunStatusFailed, result.Status())
	rec := result.Record()
	assert.Equal(t, models.RunStatusFailed, rec.Status)
	assert.Equal(t, 1, rec.ChunksSent)
	assert.Zero(t, rec.ChunksFailed)
}

func TestRunWithoutNoticeByDefault(t *testing.T) {
	gen := &fakeGenerator{failOn: map[string]error{"金融政策": errors.New("boom")}}
	sink := &messageLog{}
	r := newTestRunner(t, gen, sink, nil)

	result, err := r.Run(context.Background(), "test")
	require.Error(t, err)
	assert.Nil(t, result.Notice)
	assert.Len(t, sink.messages, 3)
}

func TestRunSplitsLongSections(t *testing.T) {
	line := strings.Repeat("a", 49) + "\n"
	gen := &fakeGenerator{text: func(string) string { return strings.Repeat(line, 100) }}
	sink := &messageLog{}
	r := newTestRunner(t, gen, sink, func(o *Options) {
		def := config.DefaultReport()
		def.Sections = def.Sections[:1]
		o.Definition = def
	})

	result, err := r.Run(context.Background(), "test")
	require.NoError(t, err)

	require.Len(t, result.Sections, 1)
	delivery := result.Sections[0].Delivery
	require.NotNil(t, delivery)
	assert.Equal(t, 3, len(delivery.Results))
	assert.Len(t, sink.messages, 3)
	for _, m := range sink.messages {
		assert.LessOrEqual(t, len([]rune(m)), publish.DefaultLimit)
	}
	assert.True(t, strings.HasPrefix(sink.messages[1], "**(2)**\n"))
}

func TestRunSinkFailures(t *testing.T) {
	gen := &fakeGenerator{}
	sink := &messageLog{fail: func(n int, _ string) error {
		if n == 2 {
			return fmt.Errorf("discord returned 500")
		}
		return nil
	}}
	r := newTestRunner(t, gen, sink, nil)

	result, err := r.Run(context.Background(), "test")
	require.Error(t, err)
	assert.ErrorContains(t, err, "section technical")
	assert.Equal(t, models.RunStatusPartial, result.Status())
	assert.Equal(t, 3, result.ChunksSent())
	assert.Equal(t, 1, result.ChunksFailed())
	assert.True(t, result.Sections[1].Generated())
	assert.False(t, result.Sections[1].Delivered())

	rec := result.Record()
	assert.Equal(t, "1/1件の送信に失敗", rec.Sections[1].Error)
	assert.Empty(t, rec.Sections[0].Error)
}

func TestRunAllChunksFailed(t *testing.T) {
	sink := publish.SinkFunc(func(context.Context, string) error { return errors.New("down") })
	r := newTestRunner(t, &fakeGenerator{}, sink, nil)

	result, err := r.Run(context.Background(), "test")
	require.Error(t, err)
	assert.Equal(t, models.RunStatusFailed, result.Status())
	assert.Equal(t, 0, result.ChunksSent())
}

func TestRunSkipsDeliveredWeek(t *testing.T) {
	gen := &fakeGenerator{}
	sink := &messageLog{}
	store := storage.NewMemoryStore()
	r := newTestRunner(t, gen, sink, func(o *Options) {
		o.Store = store
		o.SkipIfDelivered = true
	})

	first, err := r.Run(context.Background(), "schedule")
	require.NoError(t, err)
	assert.False(t, first.Skipped)

	second, err := r.Run(context.Background(), "schedule")
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, models.RunStatusSkipped, second.Status())
	assert.Len(t, sink.messages, 4)
	assert.Len(t, gen.users, 4)

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunWithoutOptionalSources(t *testing.T) {
	gen := &fakeGenerator{}
	r := newTestRunner(t, gen, &messageLog{}, func(o *Options) {
		o.Market = nil
		o.News = nil
	})

	result, err := r.Run(context.Background(), "test")
	require.NoError(t, err)
	assert.True(t, result.Market.Empty())
	assert.NotContains(t, gen.users[0], "市場データ")
}

func TestRunSkipsNewsWhenNoSectionWantsIt(t *testing.T) {
	news := &fakeNews{}
	r := newTestRunner(t, &fakeGenerator{}, &messageLog{}, func(o *Options) {
		def := config.DefaultReport()
		def.Sections = def.Sections[:2]
		o.Definition = def
		o.News = news
	})

	_, err := r.Run(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, 0, news.calls)
}

func TestRunnerWeekUsesPolicyAndLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	r := newTestRunner(t, &fakeGenerator{}, &messageLog{}, func(o *Options) {
		o.Location = tokyo
		o.Policy = week.CurrentOrPriorWithCutoff(time.Tuesday)
	})

	// Monday 20:00 UTC is already Tuesday in Tokyo.
	dc := r.Week(time.Date(2025, 11, 10, 20, 0, 0, 0, time.UTC))
	assert.Equal(t, "2025-11-03", dc.Key())

	// Wednesday is past the cutoff.
	dc = r.Week(time.Date(2025, 11, 12, 3, 0, 0, 0, time.UTC))
	assert.Equal(t, "2025-11-10", dc.Key())
}

func TestNewRunnerValidates(t *testing.T) {
	pub, err := publish.NewPublisher(&messageLog{}, publish.DefaultConfig())
	require.NoError(t, err)

	_, err = NewRunner(Options{Generator: &fakeGenerator{}, Publisher: pub})
	assert.Error(t, err)

	_, err = NewRunner(Options{Definition: config.DefaultReport(), Publisher: pub})
	assert.Error(t, err)

	_, err = NewRunner(Options{Definition: config.DefaultReport(), Generator: &fakeGenerator{}})
	assert.Error(t, err)

	_, err = NewRunner(Options{Definition: &config.ReportDefinition{}, Generator: &fakeGenerator{}, Publisher: pub})
	assert.Error(t, err)
}

func TestRecordTruncatesSectionErrors(t *testing.T) {
	result := &RunResult{
		Sections: []SectionResult{{Name: "macro", Err: errors.New(strings.Repeat("失", 300))}},
	}

	rec := result.Record()
	require.Len(t, rec.Sections, 1)
	assert.Equal(t, strings.Repeat("失", 200)+"...", rec.Sections[0].Error)
	assert.Equal(t, models.RunStatusFailed, rec.Status)
}
