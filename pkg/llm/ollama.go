package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pvaezi/sql-gpt/pkg/conversation"
)

const (
	defaultOllamaModel     = "llama3.1"
	defaultOllamaURL       = "http://localhost:11434"
	defaultOllamaMaxTokens = 4096
)

// OllamaConfig is decoded from the --llm-config JSON for the ollama provider.
type OllamaConfig struct {
	Model       string   `json:"model"`
	BaseURL     string   `json:"base_url"`
	MaxTokens   int64    `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
}

func (cfg *OllamaConfig) Validate() error {
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OLLAMA_URL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultOllamaMaxTokens
	}
	if cfg.MaxTokens < 0 {
		return errors.New("max_tokens must be greater than 0")
	}
	return nil
}

// Ollama implements Client against a local Ollama server's chat endpoint.
type Ollama struct {
	log        *slog.Logger
	httpClient *http.Client
	cfg        OllamaConfig
}

func NewOllama(log *slog.Logger, cfg OllamaConfig) (*Ollama, error) {
	return NewOllamaWithHTTPClient(log, cfg, nil)
}

func NewOllamaWithHTTPClient(log *slog.Logger, cfg OllamaConfig, httpClient *http.Client) (*Ollama, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ollama config: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 0} // No timeout; the model decides how long it takes.
	}
	return &Ollama{
		log:        log,
		httpClient: httpClient,
		cfg:        cfg,
	}, nil
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// Invoke sends the turns to Ollama. System turns are passed through with
// their role since Ollama accepts them anywhere in the sequence.
func (o *Ollama) Invoke(ctx context.Context, turns []conversation.Turn) (conversation.Turn, error) {
	msgs := make([]ollamaMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, ollamaMessage{Role: string(t.Role()), Content: t.Content()})
	}

	options := map[string]any{"num_predict": o.cfg.MaxTokens}
	if o.cfg.Temperature != nil {
		options["temperature"] = *o.cfg.Temperature
	}

	start := time.Now()
	o.log.Debug("llm: ollama call starting", "model", o.cfg.Model, "messages", len(msgs))
	resp, err := o.chat(ctx, ollamaChatRequest{
		Model:    o.cfg.Model,
		Messages: msgs,
		Stream:   false,
		Options:  options,
	})
	duration := time.Since(start)
	if err != nil {
		o.log.Error("llm: ollama call failed", "duration", duration, "error", err)
		return conversation.Turn{}, fmt.Errorf("ollama API error: %w", err)
	}
	o.log.Debug("llm: ollama call completed", "duration", duration)

	return conversation.Assistant(resp.Message.Content), nil
}

// chat performs the HTTP request to Ollama's chat endpoint.
func (o *Ollama) chat(ctx context.Context, req ollamaChatRequest) (ollamaChatResponse, error) {
	var out ollamaChatResponse

	b, err := json.Marshal(req)
	if err != nil {
		return out, fmt.Errorf("json marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/api/chat", bytes.NewReader(b))
	if err != nil {
		return out, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return out, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return out, fmt.Errorf("ollama chat http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// Ollama may send newline-delimited chunks even when stream=false.
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return out, fmt.Errorf("stream decode: %w (line=%q)", err, string(line))
		}
		if chunk.Error != "" {
			return out, fmt.Errorf("ollama error: %s", chunk.Error)
		}
		out.Message.Content += chunk.Message.Content
		if chunk.Message.Role != "" {
			out.Message.Role = chunk.Message.Role
		}
		if chunk.Model != "" {
			out.Model = chunk.Model
		}
		out.Done = chunk.Done
		if chunk.Done {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("scan: %w", err)
	}

	return out, nil
}
