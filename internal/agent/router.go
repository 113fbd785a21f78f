package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

var (
	ErrUnknownStep       = errors.New("unknown step")
	ErrInvalidTransition = errors.New("invalid transition")
)

// stepFunc mutates the state and sets state.Next.
type stepFunc func(ctx context.Context, s *State) error

// edges is the closed transition table. Terminate has no outgoing edges.
var edges = map[Step][]Step{
	StepPrompt:       {StepPrompt, StepLoadSource, StepBuildQuery, StepTerminate},
	StepLoadSource:   {StepPrompt},
	StepBuildQuery:   {StepPrompt, StepExecuteQuery},
	StepExecuteQuery: {StepBuildQuery, StepInterpret, StepPrompt},
	StepInterpret:    {StepPrompt},
	StepTerminate:    {},
}

func (s Step) Valid() bool {
	_, ok := edges[s]
	return ok
}

type router struct {
	steps map[Step]stepFunc
}

func (r *router) route(step Step) (stepFunc, error) {
	fn, ok := r.steps[step]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}
	return fn, nil
}

func (r *router) checkTransition(from, to Step) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStep, to)
	}
	if !slices.Contains(edges[from], to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
