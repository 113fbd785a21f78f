package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvaezi/sql-gpt/internal/agent"
	"github.com/pvaezi/sql-gpt/internal/console"
	"github.com/pvaezi/sql-gpt/pkg/logger"
)

func parse(t *testing.T, args ...string) (*options, error) {
	t.Helper()
	var got *options
	cmd := newRootCmd(BuildInfo{Version: "test"}, func(ctx context.Context, o *options) error {
		got = o
		return nil
	})
	cmd.SetArgs(append(args, "--env-file", ""))
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return got, err
}

func TestRootCmd_Flags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		o, err := parse(t, "--llm", "ollama", "--engine", "duckdb")
		require.NoError(t, err)
		assert.Equal(t, "ollama", o.llm)
		assert.Equal(t, "duckdb", o.engine)
		assert.Equal(t, agent.DefaultMaxRetry, o.maxRetry)
		assert.Equal(t, agent.DefaultStepLimit, o.stepLimit)
		assert.Equal(t, agent.DefaultRowLimit, o.rowLimit)
		assert.Zero(t, o.llmRetries)
		assert.Empty(t, o.metricsAddr)
	})

	t.Run("short flags and configs", func(t *testing.T) {
		o, err := parse(t, "-l", "anthropic", "--llm-config", `{"model":"claude-sonnet-4-5"}`,
			"-e", "duckdb", "--engine-config", `{"path":"my.db"}`, "--max-retry", "1", "--llm-retries", "2", "-v")
		require.NoError(t, err)
		assert.Equal(t, `{"model":"claude-sonnet-4-5"}`, o.llmConfig)
		assert.Equal(t, `{"path":"my.db"}`, o.engineConfig)
		assert.Equal(t, 1, o.maxRetry)
		assert.Equal(t, uint(2), o.llmRetries)
		assert.True(t, o.verbose)
	})

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing llm", []string{"-e", "duckdb"}, "--llm is required"},
		{"missing engine", []string{"-l", "ollama"}, "--engine is required"},
		{"bad llm json", []string{"-l", "ollama", "-e", "duckdb", "--llm-config", "{model"}, "--llm-config is not valid JSON"},
		{"bad engine json", []string{"-l", "ollama", "-e", "duckdb", "--engine-config", "nope"}, "--engine-config is not valid JSON"},
		{"negative retry", []string{"-l", "ollama", "-e", "duckdb", "--max-retry", "-1"}, "--max-retry"},
		{"zero step limit", []string{"-l", "ollama", "-e", "duckdb", "--step-limit", "0"}, "--step-limit"},
		{"positional args", []string{"-l", "ollama", "-e", "duckdb", "extra"}, "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.args...)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("missing default file is ignored", func(t *testing.T) {
		require.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), ".env"), false))
	})

	t.Run("missing explicit file fails", func(t *testing.T) {
		require.Error(t, loadEnvFile(filepath.Join(t.TempDir(), ".env"), true))
	})

	t.Run("loads variables", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("SQLGPT_TEST_VAR=hello\n"), 0o644))
		t.Cleanup(func() { os.Unsetenv("SQLGPT_TEST_VAR") })

		require.NoError(t, loadEnvFile(path, true))
		assert.Equal(t, "hello", os.Getenv("SQLGPT_TEST_VAR"))
	})
}

// fakeOllama answers chat requests with scripted replies in order.
type fakeOllama struct {
	mu       sync.Mutex
	replies  []string
	requests []map[string]any
}

func (f *fakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var req map[string]any
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.requests = append(f.requests, req)
	if len(f.replies) == 0 {
		http.Error(w, "no scripted reply", http.StatusInternalServerError)
		return
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	_ = json.NewEncoder(w).Encode(map[string]any{
		"model":   "test",
		"message": map[string]string{"role": "assistant", "content": reply},
		"done":    true,
	})
}

func TestRunSession_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	sales := filepath.Join(dir, "sales.csv")
	schema := filepath.Join(dir, "schema.txt")
	require.NoError(t, os.WriteFile(sales, []byte("id,amount\n1,400.0\n2,600.0\n"), 0o644))
	require.NoError(t, os.WriteFile(schema, []byte("id:int, amount:float"), 0o644))

	model := &fakeOllama{replies: []string{
		"```sql\nSELECT SUM(amount) AS total FROM df1;\n```",
		"Total sales are 1000.0.",
	}}
	srv := httptest.NewServer(model)
	defer srv.Close()

	input := strings.Join([]string{
		"/load " + sales + " " + schema,
		"total sales?",
		"/q",
	}, "\n") + "\n"
	var out bytes.Buffer
	con := console.New(console.Config{In: strings.NewReader(input), Out: &out, Prompt: "> "})

	o := &options{
		llm:       "ollama",
		llmConfig: `{"model":"test","base_url":"` + srv.URL + `"}`,
		engine:    "duckdb",
		maxRetry:  agent.DefaultMaxRetry,
		stepLimit: agent.DefaultStepLimit,
		rowLimit:  agent.DefaultRowLimit,
	}
	require.NoError(t, runSession(context.Background(), logger.New(false), o, con))

	transcript := out.String()
	assert.Contains(t, transcript, "Welcome to SQL GPT.")
	assert.Contains(t, transcript, "Table 'df1' loaded with metadata:\nTable: df1\nid:int, amount:float\n")
	assert.Contains(t, transcript, "Total sales are 1000.0.")
	require.Len(t, model.requests, 2)
}

func TestRunSession_UnknownProvider(t *testing.T) {
	o := &options{llm: "gpt", engine: "duckdb", stepLimit: 1, rowLimit: 1}
	err := runSession(context.Background(), logger.New(false), o, console.New(console.Config{In: strings.NewReader(""), Out: io.Discard}))
	require.ErrorContains(t, err, "unknown llm provider")
}
