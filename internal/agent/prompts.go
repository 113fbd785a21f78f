package agent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pvaezi/sql-gpt/internal/agent/prompts"
)

// Prompts holds the system instructions loaded from embedded files.
type Prompts struct {
	BuildQuery string
	Interpret  string
}

func LoadPrompts() (*Prompts, error) {
	p := &Prompts{}
	var err error
	if p.BuildQuery, err = loadPrompt("BUILD_QUERY.md"); err != nil {
		return nil, fmt.Errorf("failed to load BUILD_QUERY: %w", err)
	}
	if p.Interpret, err = loadPrompt("INTERPRET.md"); err != nil {
		return nil, fmt.Errorf("failed to load INTERPRET: %w", err)
	}
	return p, nil
}

func loadPrompt(path string) (string, error) {
	data, err := prompts.PromptsFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// buildQueryInstruction renders the generation instruction for the current
// catalogue. A failed previous attempt is quoted so the model can correct it.
func (p *Prompts) buildQueryInstruction(schemaNotes string, rowLimit int, turn TurnRecord) string {
	var sb strings.Builder
	sb.WriteString(strings.ReplaceAll(p.BuildQuery, "{{ROW_LIMIT}}", strconv.Itoa(rowLimit)))
	if turn.Err != nil {
		fmt.Fprintf(&sb, "\n\nThe previous query failed.\nQuery:\n%s\nError:\n%s", turn.QueryText, turn.Err)
	}
	sb.WriteString("\n\nTable schemas: ")
	sb.WriteString(schemaNotes)
	return sb.String()
}

func (p *Prompts) interpretInstruction(schemaNotes string) string {
	return p.Interpret + " \nTable Schemas: " + schemaNotes
}
