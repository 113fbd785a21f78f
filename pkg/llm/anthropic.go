package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pvaezi/sql-gpt/pkg/conversation"
)

const (
	defaultAnthropicModel     = anthropic.ModelClaudeHaiku4_5_20251001
	defaultAnthropicMaxTokens = 4096
)

// AnthropicConfig is decoded from the --llm-config JSON for the anthropic
// provider. The API key falls back to ANTHROPIC_API_KEY via the SDK.
type AnthropicConfig struct {
	Model       string   `json:"model"`
	MaxTokens   int64    `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
	APIKey      string   `json:"api_key"`
	BaseURL     string   `json:"base_url"`
}

func (cfg *AnthropicConfig) Validate() error {
	if cfg.Model == "" {
		cfg.Model = string(defaultAnthropicModel)
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultAnthropicMaxTokens
	}
	if cfg.MaxTokens < 0 {
		return errors.New("max_tokens must be greater than 0")
	}
	if cfg.Temperature != nil && (*cfg.Temperature < 0 || *cfg.Temperature > 1) {
		return errors.New("temperature must be between 0 and 1")
	}
	return nil
}

// Anthropic implements Client using the Anthropic Messages API.
type Anthropic struct {
	log    *slog.Logger
	client anthropic.Client
	cfg    AnthropicConfig
}

func NewAnthropic(log *slog.Logger, cfg AnthropicConfig) (*Anthropic, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid anthropic config: %w", err)
	}
	// The SDK retries internally by default; retries at this boundary are
	// configured explicitly through WithRetry instead.
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Anthropic{
		log:    log,
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
	}, nil
}

// Invoke sends the turns to Claude and returns the first text block of the reply.
func (a *Anthropic) Invoke(ctx context.Context, turns []conversation.Turn) (conversation.Turn, error) {
	system, msgs := normalize(turns)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.cfg.Model),
		MaxTokens: a.cfg.MaxTokens,
		Messages:  toAnthropicMessages(msgs),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if a.cfg.Temperature != nil {
		params.Temperature = anthropic.Float(*a.cfg.Temperature)
	}

	start := time.Now()
	a.log.Debug("llm: anthropic call starting", "model", a.cfg.Model, "messages", len(msgs), "systemLen", len(system))
	msg, err := a.client.Messages.New(ctx, params)
	duration := time.Since(start)
	if err != nil {
		a.log.Error("llm: anthropic call failed", "duration", duration, "error", err)
		return conversation.Turn{}, fmt.Errorf("anthropic API error: %w", err)
	}
	a.log.Debug("llm: anthropic call completed", "duration", duration, "stopReason", msg.StopReason)

	for _, block := range msg.Content {
		if block.Type == "text" {
			return conversation.Assistant(block.Text), nil
		}
	}
	return conversation.Turn{}, errors.New("no text content in anthropic response")
}

func toAnthropicMessages(msgs []chatMessage) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == conversation.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}
