package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/pvaezi/sql-gpt/pkg/conversation"
	"github.com/pvaezi/sql-gpt/pkg/engine"
	"github.com/pvaezi/sql-gpt/pkg/logger"
)

// mockLLM replays scripted responses and records every request.
type mockLLM struct {
	responses []string
	err       error
	calls     [][]conversation.Turn
}

func (m *mockLLM) Invoke(ctx context.Context, turns []conversation.Turn) (conversation.Turn, error) {
	m.calls = append(m.calls, turns)
	if m.err != nil {
		return conversation.Turn{}, m.err
	}
	if len(m.calls) > len(m.responses) {
		return conversation.Turn{}, errors.New("mockLLM: no more scripted responses")
	}
	return conversation.Assistant(m.responses[len(m.calls)-1]), nil
}

type execOutcome struct {
	result *engine.Result
	err    error
}

// mockEngine registers sources as df1, df2, ... unless the source is listed
// in failRegister, and replays scripted execution outcomes. Once the script
// is exhausted the last outcome repeats.
type mockEngine struct {
	failRegister map[string]error
	outcomes     []execOutcome
	queries      []string
	next         int
}

func (m *mockEngine) Register(ctx context.Context, source string) (string, error) {
	if err, ok := m.failRegister[source]; ok {
		return "", err
	}
	m.next++
	return fmt.Sprintf("df%d", m.next), nil
}

func (m *mockEngine) Execute(ctx context.Context, query string) (*engine.Result, error) {
	m.queries = append(m.queries, query)
	if len(m.outcomes) == 0 {
		return nil, errors.New("mockEngine: no scripted outcome")
	}
	i := min(len(m.queries), len(m.outcomes)) - 1
	return m.outcomes[i].result, m.outcomes[i].err
}

func (m *mockEngine) Close() error { return nil }

type mockDescriber map[string]string

func (m mockDescriber) Read(ctx context.Context, ref string) (string, error) {
	desc, ok := m[ref]
	if !ok {
		return "", errors.New("open " + ref + ": no such file or directory")
	}
	return desc, nil
}

// mockConsole feeds lines in order and returns io.EOF afterwards.
type mockConsole struct {
	lines []string
	shown []conversation.Turn
}

func (m *mockConsole) Show(turn conversation.Turn) error {
	m.shown = append(m.shown, turn)
	return nil
}

func (m *mockConsole) ReadLine(ctx context.Context) (string, error) {
	if len(m.lines) == 0 {
		return "", io.EOF
	}
	line := m.lines[0]
	m.lines = m.lines[1:]
	return line, nil
}

type fixture struct {
	agent    *Agent
	llm      *mockLLM
	engine   *mockEngine
	console  *mockConsole
	describe mockDescriber
	clock    *clockwork.FakeClock
}

func newFixture(t *testing.T, maxRetry int) *fixture {
	t.Helper()
	f := &fixture{
		llm:      &mockLLM{},
		engine:   &mockEngine{},
		console:  &mockConsole{},
		describe: mockDescriber{"schema.txt": "id:int, amount:float"},
		clock:    clockwork.NewFakeClock(),
	}
	a, err := New(Config{
		Logger:    logger.New(false),
		LLM:       f.llm,
		Engine:    f.engine,
		Describer: f.describe,
		Console:   f.console,
		Clock:     f.clock,
		MaxRetry:  maxRetry,
	})
	require.NoError(t, err)
	f.agent = a
	return f
}

// step runs exactly one router step.
func (f *fixture) step(t *testing.T, s *State) Step {
	t.Helper()
	require.NoError(t, f.agent.step(context.Background(), f.agent.log, s))
	return s.Next
}

// loaded returns a state with one source already registered.
func loadedState() *State {
	s := NewState()
	s.SchemaNotes = "Table: df1\nid:int, amount:float\n"
	return s
}

func lastContent(t *testing.T, s *State) string {
	t.Helper()
	last, ok := s.Transcript.Last()
	require.True(t, ok)
	return last.Content()
}
