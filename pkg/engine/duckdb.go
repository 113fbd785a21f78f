package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DuckDBConfig is decoded from the --engine-config JSON for the duckdb engine.
type DuckDBConfig struct {
	// Path is the database file. Empty means an in-memory database.
	Path    string `json:"path"`
	Threads int    `json:"threads"`
}

func (cfg *DuckDBConfig) Validate() error {
	if cfg.Threads < 0 {
		return errors.New("threads must be >= 0")
	}
	return nil
}

func (cfg *DuckDBConfig) dsn() string {
	if cfg.Threads == 0 {
		return cfg.Path
	}
	params := url.Values{}
	params.Set("threads", strconv.Itoa(cfg.Threads))
	return cfg.Path + "?" + params.Encode()
}

// DuckDB queries tabular files (CSV, Parquet, JSON, s3:// objects) by loading
// each registered file into its own table named df1, df2, ...
type DuckDB struct {
	log     *slog.Logger
	db      *sql.DB
	next    int
	s3Ready bool
	s3Env   func() (*S3Config, error)
}

func NewDuckDB(ctx context.Context, log *slog.Logger, cfg DuckDBConfig) (*DuckDB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid duckdb config: %w", err)
	}
	db, err := sql.Open("duckdb", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Debug("engine: duckdb opened", "path", cfg.Path, "threads", cfg.Threads)
	return &DuckDB{
		log:   log,
		db:    db,
		next:  1,
		s3Env: LoadS3ConfigFromEnv,
	}, nil
}

// Register loads the file at source into a new table and returns its alias.
// The alias counter only advances when the load succeeds.
func (d *DuckDB) Register(ctx context.Context, source string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", ErrEmptySource
	}
	if strings.HasPrefix(source, "s3://") {
		if err := d.ensureS3(ctx); err != nil {
			return "", err
		}
	}

	alias := fmt.Sprintf("df%d", d.next)
	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM '%s'", alias, escapeLiteral(source))
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return "", err
	}
	d.next++
	d.log.Debug("engine: duckdb table loaded", "table", alias, "source", source)
	return alias, nil
}

// ensureS3 loads httpfs and creates an S3 secret from the environment the
// first time an s3:// source is registered.
func (d *DuckDB) ensureS3(ctx context.Context) error {
	if d.s3Ready {
		return nil
	}
	cfg, err := d.s3Env()
	if err != nil {
		return fmt.Errorf("failed to load S3 configuration: %w", err)
	}

	extensions := []string{"httpfs"}
	if !cfg.HasStaticCredentials() {
		extensions = append(extensions, "aws")
	}
	for _, ext := range extensions {
		if _, err := d.db.ExecContext(ctx, fmt.Sprintf("INSTALL '%s'", ext)); err != nil {
			return fmt.Errorf("failed to install extension %s: %w", ext, err)
		}
		if _, err := d.db.ExecContext(ctx, fmt.Sprintf("LOAD '%s'", ext)); err != nil {
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}
	if _, err := d.db.ExecContext(ctx, cfg.secretSQL("sqlgpt_s3")); err != nil {
		return fmt.Errorf("failed to create S3 secret: %w", err)
	}

	d.log.Info("engine: configured S3 access", "endpoint", cfg.Endpoint, "region", cfg.Region)
	d.s3Ready = true
	return nil
}

func (d *DuckDB) Execute(ctx context.Context, query string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSQLRows(rows)
}

func (d *DuckDB) Close() error {
	return d.db.Close()
}

// scanSQLRows reads every row of a database/sql result set.
func scanSQLRows(rows *sql.Rows) (*Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	result := &Result{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
