// Package agent drives a conversation that turns questions into SQL, runs it,
// and summarizes the results. A Run loops over a flat state machine: the
// router dispatches State.Next to one step, checks the edge the step chose,
// and repeats until Terminate.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pvaezi/sql-gpt/pkg/metrics"
)

var ErrStepLimitExceeded = errors.New("step limit exceeded")

type Agent struct {
	cfg     Config
	log     *slog.Logger
	prompts *Prompts
	router  *router
}

func New(cfg Config) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent config: %w", err)
	}
	p, err := LoadPrompts()
	if err != nil {
		return nil, err
	}
	a := &Agent{
		cfg:     cfg,
		log:     cfg.Logger,
		prompts: p,
	}
	a.router = &router{steps: map[Step]stepFunc{
		StepPrompt:       a.prompt,
		StepLoadSource:   a.loadSource,
		StepBuildQuery:   a.buildQuery,
		StepExecuteQuery: a.executeQuery,
		StepInterpret:    a.interpret,
	}}
	return a, nil
}

// Run drives s until it reaches Terminate. It returns an error when a step
// fails fatally, the router rejects a transition, ctx is done, or the step
// limit is reached first.
func (a *Agent) Run(ctx context.Context, s *State) error {
	log := a.log.With("session", s.ID)
	log.Info("agent: session started")

	for steps := 0; s.Next != StepTerminate; steps++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if steps >= a.cfg.StepLimit {
			return fmt.Errorf("%w: %d", ErrStepLimitExceeded, a.cfg.StepLimit)
		}
		if err := a.step(ctx, log, s); err != nil {
			return err
		}
	}

	log.Info("agent: session finished", "turns", s.Transcript.Len())
	return nil
}

// step runs the handler for s.Next and validates the transition it took.
func (a *Agent) step(ctx context.Context, log *slog.Logger, s *State) error {
	from := s.Next
	fn, err := a.router.route(from)
	if err != nil {
		return err
	}

	start := a.cfg.Clock.Now()
	err = fn(ctx, s)
	elapsed := a.cfg.Clock.Since(start)
	metrics.AgentStepDuration.WithLabelValues(string(from)).Observe(elapsed.Seconds())
	if err != nil {
		log.Error("agent: step failed", "step", from, "error", err)
		return fmt.Errorf("%s: %w", from, err)
	}
	log.Debug("agent: step finished", "step", from, "next", s.Next, "duration", elapsed)

	if err := a.router.checkTransition(from, s.Next); err != nil {
		return err
	}
	metrics.AgentTransitions.WithLabelValues(string(from), string(s.Next)).Inc()
	return nil
}
