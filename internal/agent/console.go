package agent

import (
	"context"

	"github.com/pvaezi/sql-gpt/pkg/conversation"
)

// Console is the user-facing side of the Prompt step.
type Console interface {
	// Show displays a transcript turn.
	Show(turn conversation.Turn) error

	// ReadLine blocks for one line of input. It returns io.EOF when input
	// is exhausted.
	ReadLine(ctx context.Context) (string, error)
}
