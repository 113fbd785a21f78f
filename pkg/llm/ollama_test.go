package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pvaezi/sql-gpt/pkg/conversation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOllama_Invoke(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = io.WriteString(w, `{"model":"m","message":{"role":"assistant","content":"SELECT "},"done":false}`+"\n")
		_, _ = io.WriteString(w, `{"model":"m","message":{"role":"assistant","content":"1;"},"done":true}`+"\n")
	}))
	defer srv.Close()

	temp := 0.2
	client, err := NewOllama(testLogger(), OllamaConfig{Model: "m", BaseURL: srv.URL + "/", Temperature: &temp})
	require.NoError(t, err)

	turn, err := client.Invoke(context.Background(), []conversation.Turn{
		conversation.System("instruction"),
		conversation.User("question"),
	})
	require.NoError(t, err)
	require.Equal(t, conversation.RoleAssistant, turn.Role())
	require.Equal(t, "SELECT 1;", turn.Content())

	require.Equal(t, "m", got.Model)
	require.False(t, got.Stream)
	require.Equal(t, []ollamaMessage{
		{Role: "system", Content: "instruction"},
		{Role: "user", Content: "question"},
	}, got.Messages)
	require.InDelta(t, 0.2, got.Options["temperature"], 1e-9)
}

func TestOllama_Invoke_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewOllama(testLogger(), OllamaConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), []conversation.Turn{conversation.User("q")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
	require.Contains(t, err.Error(), "model not found")
}

func TestOllama_Invoke_StreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"error":"out of memory"}`+"\n")
	}))
	defer srv.Close()

	client, err := NewOllama(testLogger(), OllamaConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), []conversation.Turn{conversation.User("q")})
	require.ErrorContains(t, err, "out of memory")
}

func TestOllamaConfig_Defaults(t *testing.T) {
	t.Setenv("OLLAMA_URL", "")
	cfg := OllamaConfig{}
	require.NoError(t, cfg.Validate())
	require.Equal(t, defaultOllamaModel, cfg.Model)
	require.Equal(t, defaultOllamaURL, cfg.BaseURL)
	require.EqualValues(t, defaultOllamaMaxTokens, cfg.MaxTokens)

	t.Setenv("OLLAMA_URL", "http://ollama:11434")
	cfg = OllamaConfig{}
	require.NoError(t, cfg.Validate())
	require.Equal(t, "http://ollama:11434", cfg.BaseURL)

	cfg = OllamaConfig{MaxTokens: -1}
	require.Error(t, cfg.Validate())
}
