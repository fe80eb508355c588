package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leeaandrob/weeklyreport/internal/discord"
	"github.com/leeaandrob/weeklyreport/internal/week"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("XAI_API_KEY", "xai-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, "xai-key", cfg.LLMAPIKey)
	assert.Equal(t, 1900, cfg.MessageLimit)
	assert.Equal(t, time.Second, cfg.MessageDelay)
	assert.Equal(t, "0 10 * * 1", cfg.Schedule)
	require.NotNil(t, cfg.Report)
	assert.Equal(t, []string{"TSLA", "PLTR", "SOFI", "CELH"}, cfg.Report.Symbols)
	require.NoError(t, cfg.Validate())

	p, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, week.StrictPriorWeek(), p)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("LLM_API_KEY", "sk-ant")
	t.Setenv("WEEK_POLICY", "cutoff:tuesday")
	t.Setenv("MESSAGE_LIMIT", "1500")
	t.Setenv("MESSAGE_DELAY", "250ms")
	t.Setenv("NOTIFY_FAILURES", "true")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sk-ant", cfg.LLMAPIKey)
	assert.Equal(t, 1500, cfg.MessageLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.MessageDelay)
	assert.True(t, cfg.NotifyFailures)

	p, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, week.CurrentOrPriorWithCutoff(time.Tuesday), p)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"provider", func(c *Config) { c.LLMProvider = "cohere" }},
		{"limit over discord max", func(c *Config) { c.MessageLimit = 2500 }},
		{"zero limit", func(c *Config) { c.MessageLimit = 0 }},
		{"policy", func(c *Config) { c.WeekPolicy = "someday" }},
		{"timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"webhook url", func(c *Config) { c.DiscordWebhookURL = "not a url" }},
		{"empty report", func(c *Config) { c.Report = &ReportDefinition{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				LLMProvider:  "openai",
				WeekPolicy:   "strict",
				Timezone:     "UTC",
				MessageLimit: 1900,
				Schedule:     "0 10 * * 1",
				Report:       DefaultReport(),
			}
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMessageLimitBoundedByDiscord(t *testing.T) {
	cfg := &Config{
		LLMProvider:  "openai",
		WeekPolicy:   "strict",
		Timezone:     "UTC",
		MessageLimit: discord.MaxContentLength,
		Schedule:     "0 10 * * 1",
		Report:       DefaultReport(),
	}
	require.NoError(t, cfg.Validate())

	cfg.MessageLimit = discord.MaxContentLength + 1
	assert.ErrorContains(t, cfg.Validate(), "exceeds the discord limit")
}

func TestParseReport(t *testing.T) {
	data := []byte(`
title = "Weekly {week_start_iso}"
symbols = ["NVDA", "AMD"]

[messages]
header = "**{title}**\n"

[[sections]]
name = "chips"
title = "Semiconductors"
prompt = "Summarize {symbols}."
news = true
`)

	def, err := ParseReport(data)
	require.NoError(t, err)

	assert.Equal(t, "Weekly {week_start_iso}", def.Title)
	assert.Equal(t, []string{"NVDA", "AMD"}, def.Symbols)
	assert.Equal(t, "**{title}**\n", def.Messages.Header)
	assert.Equal(t, DefaultReport().Indices, def.Indices)
	assert.Equal(t, "2006年01月02日", def.Format.Long)
	require.Len(t, def.Sections, 1)
	assert.True(t, def.Sections[0].News)
}

func TestParseReportKeepsDefaultSections(t *testing.T) {
	def, err := ParseReport([]byte(`symbols = ["AAPL"]`))
	require.NoError(t, err)
	assert.Len(t, def.Sections, len(DefaultReport().Sections))
}

func TestParseReportInvalid(t *testing.T) {
	_, err := ParseReport([]byte(`title = `))
	assert.ErrorContains(t, err, "failed to parse report file")

	_, err = ParseReport([]byte(`
[[sections]]
name = "a"
title = "A"
prompt = "x"

[[sections]]
name = "a"
title = "B"
prompt = "y"
`))
	assert.ErrorContains(t, err, "invalid report definition")

	_, err = ParseReport([]byte(`symbols = []`))
	assert.Error(t, err)
}

func TestLoadReportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.toml")
	require.NoError(t, os.WriteFile(path, []byte(`title = "From file"`), 0o600))

	t.Chdir(t.TempDir())
	t.Setenv("REPORT_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "From file", cfg.Report.Title)

	t.Setenv("REPORT_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	_, err = Load()
	assert.ErrorContains(t, err, "failed to read report file")
}
