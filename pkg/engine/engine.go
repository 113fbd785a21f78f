// Package engine adapts SQL engines to the query-execution capability used by
// the agent: register a named source as a table, then execute query text
// against everything registered so far.
package engine

import (
	"context"
	"errors"
)

// Engine is the query-execution capability.
type Engine interface {
	// Register makes source queryable and returns the canonical identifier
	// queries should use for it. The identifier may differ from source, for
	// example when source is a file path.
	Register(ctx context.Context, source string) (string, error)

	// Execute runs query text and returns the resulting rows. Failures carry
	// the engine's native error text.
	Execute(ctx context.Context, query string) (*Result, error)

	Close() error
}

var (
	ErrUnknownEngine = errors.New("unknown query engine")
	ErrEmptySource   = errors.New("source name is required")
	ErrEmptyQuery    = errors.New("query text is required")
)

// Result is an ordered set of rows returned by a query.
type Result struct {
	Columns []string
	Rows    [][]any
}

func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}
