package engine

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

type ClickHouseConfig struct {
	Addr     string `json:"addr"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (cfg *ClickHouseConfig) Validate() error {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:9000"
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}
	return nil
}

// ClickHouse executes queries against tables that already exist in a
// ClickHouse database. Register only checks that the table is present.
type ClickHouse struct {
	log  *slog.Logger
	conn driver.Conn
}

func NewClickHouse(ctx context.Context, log *slog.Logger, cfg ClickHouseConfig) (*ClickHouse, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid clickhouse config: %w", err)
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	log.Info("engine: clickhouse connected", "addr", cfg.Addr, "database", cfg.Database)
	return &ClickHouse{log: log, conn: conn}, nil
}

func (c *ClickHouse) Register(ctx context.Context, source string) (string, error) {
	name := strings.TrimSpace(source)
	if name == "" {
		return "", ErrEmptySource
	}
	var exists uint8
	if err := c.conn.QueryRow(ctx, "EXISTS TABLE "+name).Scan(&exists); err != nil {
		return "", err
	}
	if exists == 0 {
		return "", fmt.Errorf("table %s does not exist", name)
	}
	return name, nil
}

func (c *ClickHouse) Execute(ctx context.Context, query string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	rows, err := c.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columnTypes := rows.ColumnTypes()
	result := &Result{Columns: rows.Columns(), Rows: [][]any{}}
	for rows.Next() {
		// clickhouse-go scans into typed destinations only.
		ptrs := make([]any, len(columnTypes))
		for i, ct := range columnTypes {
			ptrs[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		values := make([]any, len(ptrs))
		for i, p := range ptrs {
			values[i] = derefValue(reflect.ValueOf(p).Elem())
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *ClickHouse) Close() error {
	return c.conn.Close()
}

// derefValue unwraps pointer values produced for Nullable columns.
func derefValue(v reflect.Value) any {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	return v.Interface()
}

