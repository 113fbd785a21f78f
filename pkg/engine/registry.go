package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/pvaezi/sql-gpt/pkg/metrics"
)

const (
	EngineDuckDB     = "duckdb"
	EngineClickHouse = "clickhouse"
	EnginePostgres   = "postgres"
)

type factory func(ctx context.Context, log *slog.Logger, raw []byte) (Engine, error)

var engines = map[string]factory{
	EngineDuckDB: func(ctx context.Context, log *slog.Logger, raw []byte) (Engine, error) {
		var cfg DuckDBConfig
		if err := decodeConfig(raw, &cfg); err != nil {
			return nil, err
		}
		return NewDuckDB(ctx, log, cfg)
	},
	EngineClickHouse: func(ctx context.Context, log *slog.Logger, raw []byte) (Engine, error) {
		var cfg ClickHouseConfig
		if err := decodeConfig(raw, &cfg); err != nil {
			return nil, err
		}
		return NewClickHouse(ctx, log, cfg)
	},
	EnginePostgres: func(ctx context.Context, log *slog.Logger, raw []byte) (Engine, error) {
		var cfg PostgresConfig
		if err := decodeConfig(raw, &cfg); err != nil {
			return nil, err
		}
		return NewPostgres(ctx, log, cfg)
	},
}

// Engines returns the registered engine names in sorted order.
func Engines() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New opens the named engine from its raw JSON configuration.
func New(ctx context.Context, log *slog.Logger, name string, rawConfig []byte) (Engine, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	f, ok := engines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownEngine, name, strings.Join(Engines(), ", "))
	}
	e, err := f(ctx, log, rawConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s engine: %w", name, err)
	}
	return Instrument(name, e), nil
}

type instrumented struct {
	Engine
	name string
}

// Instrument counts Execute calls on e by status.
func Instrument(name string, e Engine) Engine {
	return &instrumented{Engine: e, name: name}
}

func (i *instrumented) Execute(ctx context.Context, query string) (*Result, error) {
	res, err := i.Engine.Execute(ctx, query)
	metrics.EngineQueries.WithLabelValues(i.name, metrics.Status(err)).Inc()
	return res, err
}

func decodeConfig(raw []byte, cfg any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}
