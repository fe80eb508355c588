package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leeaandrob/weeklyreport/internal/api"
	"github.com/leeaandrob/weeklyreport/internal/config"
	"github.com/leeaandrob/weeklyreport/internal/discord"
	"github.com/leeaandrob/weeklyreport/internal/enrichment"
	"github.com/leeaandrob/weeklyreport/internal/llm"
	"github.com/leeaandrob/weeklyreport/internal/marketdata"
	"github.com/leeaandrob/weeklyreport/internal/publish"
	"github.com/leeaandrob/weeklyreport/internal/report"
	"github.com/leeaandrob/weeklyreport/internal/storage"
	"github.com/rs/zerolog/log"
)

// ledger is satisfied by both the MongoDB and the in-memory store.
type ledger interface {
	report.RunStore
	api.RunLister
}

// app wires the report pipeline from configuration.
type app struct {
	runner *report.Runner
	ledger ledger
	close  func()
}

// newApp builds the runner around sink. A nil sink selects the Discord
// webhook. The ledger is skipped when useLedger is false.
func newApp(ctx context.Context, cfg *config.Config, sink publish.Sink, useLedger bool) (*app, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	// Initialize LLM client
	gen, err := llm.NewGenerator(ctx, llm.Config{
		Provider:    cfg.LLMProvider,
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModel,
		Temperature: float32(cfg.LLMTemperature),
		MaxTokens:   cfg.LLMMaxTokens,
		Timeout:     cfg.LLMTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	log.Info().Str("provider", cfg.LLMProvider).Str("model", cfg.LLMModel).Msg("LLM client initialized")

	if sink == nil {
		if cfg.DiscordWebhookURL == "" {
			return nil, errors.New("DISCORD_WEB_HOOK is required (use --dry-run to print instead)")
		}
		hook, err := discord.NewWebhook(discord.Config{
			URL:      cfg.DiscordWebhookURL,
			Username: cfg.DiscordUsername,
		})
		if err != nil {
			return nil, err
		}
		sink = hook
	}

	publisher, err := publish.NewPublisher(sink, publisherConfig(cfg))
	if err != nil {
		return nil, err
	}

	opts := report.Options{
		Definition:      cfg.Report,
		Policy:          policy,
		Location:        loc,
		Generator:       gen,
		Publisher:       publisher,
		NotifyFailures:  cfg.NotifyFailures,
		SkipIfDelivered: cfg.SkipIfDelivered,
	}

	// Initialize market data
	if cfg.EODHDAPIKey != "" {
		opts.Market = marketdata.NewEODHDClient(cfg.EODHDAPIKey)
		log.Info().Msg("EODHD market data initialized")
	}

	// Initialize enrichment pipeline
	if cfg.EnableEnrichment && cfg.TavilyAPIKey != "" {
		opts.News = enrichment.NewEnricher(enrichment.NewTavilyClient(cfg.TavilyAPIKey), enrichment.EnrichmentConfig{})
		log.Info().Msg("Enrichment pipeline initialized")
	}

	a := &app{close: func() {}}

	if useLedger {
		if cfg.MongoURI != "" {
			store, err := storage.NewStore(ctx, cfg.MongoURI, cfg.MongoDB)
			if err != nil {
				return nil, err
			}
			a.ledger = store
			a.close = func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := store.Close(closeCtx); err != nil {
					log.Warn().Err(err).Msg("Failed to close MongoDB connection")
				}
			}
		} else {
			log.Info().Msg("MONGO_URI not set, keeping run ledger in memory")
			a.ledger = storage.NewMemoryStore()
		}
		opts.Store = a.ledger
	}

	a.runner, err = report.NewRunner(opts)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func publisherConfig(cfg *config.Config) publish.Config {
	pc := publish.DefaultConfig()
	pc.Limit = cfg.MessageLimit
	pc.InterMessageDelay = cfg.MessageDelay
	if cfg.Report != nil {
		if h := cfg.Report.Messages.Header; h != "" {
			pc.HeaderTemplate = h
		}
		if c := cfg.Report.Messages.Continuation; c != "" {
			pc.ContinuationTemplate = c
		}
	}
	return pc
}
