// Package console implements the interactive terminal used by the agent's
// Prompt step.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/pvaezi/sql-gpt/pkg/conversation"
)

const DefaultPrompt = ">>> User prompt (/q to quit, /load to load data): "

// Renderer turns markdown into terminal output.
type Renderer func(markdown string) (string, error)

type Config struct {
	In     io.Reader
	Out    io.Writer
	Prompt string
	// Renderer is applied to assistant turns. Nil prints content as is.
	Renderer Renderer
}

type Console struct {
	in       *bufio.Reader
	out      io.Writer
	prompt   string
	renderer Renderer
}

func New(cfg Config) *Console {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	return &Console{
		in:       bufio.NewReader(cfg.In),
		out:      cfg.Out,
		prompt:   cfg.Prompt,
		renderer: cfg.Renderer,
	}
}

// NewTerminal returns a console on stdin/stdout that renders markdown with
// glamour when stdout is a terminal.
func NewTerminal() (*Console, error) {
	cfg := Config{In: os.Stdin, Out: os.Stdout}
	if IsTTY() {
		r, err := NewMarkdownRenderer()
		if err != nil {
			return nil, err
		}
		cfg.Renderer = r
	}
	return New(cfg), nil
}

func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func NewMarkdownRenderer() (Renderer, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return r.Render, nil
}

func (c *Console) Show(turn conversation.Turn) error {
	content := turn.Content()
	// Tables and SQL are preformatted; only free text goes through markdown.
	if c.renderer != nil && turn.Role() == conversation.RoleAssistant && !preformatted(content) {
		rendered, err := c.renderer(content)
		if err == nil {
			_, err = io.WriteString(c.out, rendered)
			return err
		}
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	_, err := io.WriteString(c.out, content)
	return err
}

func preformatted(content string) bool {
	return strings.HasPrefix(content, "SQL results are:") ||
		strings.HasPrefix(strings.ToUpper(strings.TrimSpace(content)), "SELECT") ||
		strings.HasPrefix(strings.ToUpper(strings.TrimSpace(content)), "WITH")
}

type readResult struct {
	line string
	err  error
}

// ReadLine prints the prompt and reads one line. Trailing newlines are
// stripped. A final line without a newline is returned before io.EOF.
//
// When ctx is done first, ReadLine returns ctx.Err() but the pending read
// keeps its goroutine blocked on the input. The console must not be used
// after that.
func (c *Console) ReadLine(ctx context.Context) (string, error) {
	if _, err := io.WriteString(c.out, c.prompt); err != nil {
		return "", err
	}

	ch := make(chan readResult, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		ch <- readResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil && !(r.err == io.EOF && r.line != "") {
			return "", r.err
		}
		return strings.TrimRight(r.line, "\r\n"), nil
	}
}
