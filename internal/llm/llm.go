// Package llm provides the text-generation clients used to write reports.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"

	// XAIEndpoint is the OpenAI-compatible endpoint for Grok models.
	XAIEndpoint = "https://api.x.ai/v1"

	DefaultOpenAIModel    = "grok-2-1212"
	DefaultAnthropicModel = "claude-sonnet-4-5"
	DefaultGeminiModel    = "gemini-2.5-flash"

	DefaultTimeout = 3 * time.Minute
)

// TextGenerator turns a system and a user instruction into generated text.
type TextGenerator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// GeneratorFunc adapts a function to a TextGenerator.
type GeneratorFunc func(ctx context.Context, system, user string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// Config selects and configures a provider.
type Config struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// NewGenerator creates the TextGenerator for cfg.Provider.
func NewGenerator(ctx context.Context, cfg Config) (TextGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", cfg.Provider)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	var (
		gen TextGenerator
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI, "":
		gen = NewOpenAIClient(cfg)
	case ProviderAnthropic:
		gen = NewAnthropicClient(cfg)
	case ProviderGemini:
		gen, err = NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return &timeoutGenerator{next: gen, timeout: cfg.Timeout}, nil
}

// timeoutGenerator bounds every call with a deadline.
type timeoutGenerator struct {
	next    TextGenerator
	timeout time.Duration
}

func (g *timeoutGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.next.Generate(ctx, system, user)
	if err != nil {
		return "", err
	}

	log.Debug().
		Dur("elapsed", time.Since(start)).
		Int("chars", len([]rune(text))).
		Msg("Text generated")

	return text, nil
}
