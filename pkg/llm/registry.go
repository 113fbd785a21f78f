package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/pvaezi/sql-gpt/pkg/conversation"
	"github.com/pvaezi/sql-gpt/pkg/metrics"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

var ErrUnknownProvider = errors.New("unknown llm provider")

type factory func(log *slog.Logger, raw []byte) (Client, error)

var providers = map[string]factory{
	ProviderAnthropic: func(log *slog.Logger, raw []byte) (Client, error) {
		var cfg AnthropicConfig
		if err := DecodeConfig(raw, &cfg); err != nil {
			return nil, err
		}
		return NewAnthropic(log, cfg)
	},
	ProviderOllama: func(log *slog.Logger, raw []byte) (Client, error) {
		var cfg OllamaConfig
		if err := DecodeConfig(raw, &cfg); err != nil {
			return nil, err
		}
		return NewOllama(log, cfg)
	},
}

// Providers returns the registered provider names in sorted order.
func Providers() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New builds the named provider from its raw JSON configuration. The returned
// client records request metrics under the provider name.
func New(log *slog.Logger, name string, rawConfig []byte) (Client, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	f, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownProvider, name, strings.Join(Providers(), ", "))
	}
	client, err := f(log, rawConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", name, err)
	}
	return Instrument(name, client), nil
}

// Instrument counts invocations of client by status.
func Instrument(provider string, client Client) Client {
	return ClientFunc(func(ctx context.Context, turns []conversation.Turn) (conversation.Turn, error) {
		turn, err := client.Invoke(ctx, turns)
		metrics.LLMRequests.WithLabelValues(provider, metrics.Status(err)).Inc()
		return turn, err
	})
}

// DecodeConfig strictly decodes a JSON object into cfg. Empty input leaves
// cfg at its zero value.
func DecodeConfig(raw []byte, cfg any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}
