package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

func (cfg *PostgresConfig) Validate() error {
	if cfg.DSN == "" {
		return errors.New("dsn is required")
	}
	return nil
}

// Postgres executes queries against existing tables in a PostgreSQL database.
type Postgres struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, log *slog.Logger, cfg PostgresConfig) (*Postgres, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	poolConfig.MaxConns = 4
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	log.Info("engine: postgres connected", "host", poolConfig.ConnConfig.Host, "database", poolConfig.ConnConfig.Database)
	return &Postgres{log: log, pool: pool}, nil
}

// Register resolves source to its schema-qualified table name.
func (p *Postgres) Register(ctx context.Context, source string) (string, error) {
	name := strings.TrimSpace(source)
	if name == "" {
		return "", ErrEmptySource
	}
	var qualified *string
	err := p.pool.QueryRow(ctx, "SELECT to_regclass($1)::text", name).Scan(&qualified)
	if err != nil {
		return "", err
	}
	if qualified == nil {
		return "", fmt.Errorf("relation %q does not exist", name)
	}
	return *qualified, nil
}

func (p *Postgres) Execute(ctx context.Context, query string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	result := &Result{Columns: make([]string, len(fields)), Rows: [][]any{}}
	for i, f := range fields {
		result.Columns[i] = f.Name
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
