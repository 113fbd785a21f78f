package agent

import (
	"errors"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/pvaezi/sql-gpt/pkg/describe"
	"github.com/pvaezi/sql-gpt/pkg/engine"
	"github.com/pvaezi/sql-gpt/pkg/llm"
)

const (
	DefaultMaxRetry  = 3
	DefaultStepLimit = 1000
	DefaultRowLimit  = 100
)

type Config struct {
	Logger    *slog.Logger
	LLM       llm.Client
	Engine    engine.Engine
	Describer describe.Reader
	Console   Console
	Clock     clockwork.Clock

	// MaxRetry is the number of regenerations allowed after the first failed
	// execution of a question.
	MaxRetry int
	// StepLimit bounds the number of steps a single Run may take.
	StepLimit int
	// RowLimit is advertised to the model as the maximum result size.
	RowLimit int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.LLM == nil {
		return errors.New("llm client is required")
	}
	if cfg.Engine == nil {
		return errors.New("engine is required")
	}
	if cfg.Describer == nil {
		return errors.New("describer is required")
	}
	if cfg.Console == nil {
		return errors.New("console is required")
	}
	if cfg.MaxRetry < 0 {
		return errors.New("max retry must be >= 0")
	}
	if cfg.StepLimit < 0 {
		return errors.New("step limit must be >= 0")
	}
	if cfg.RowLimit < 0 {
		return errors.New("row limit must be >= 0")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.StepLimit == 0 {
		cfg.StepLimit = DefaultStepLimit
	}
	if cfg.RowLimit == 0 {
		cfg.RowLimit = DefaultRowLimit
	}
	return nil
}
