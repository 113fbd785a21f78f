package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pvaezi/sql-gpt/internal/agent"
	"github.com/pvaezi/sql-gpt/internal/console"
	"github.com/pvaezi/sql-gpt/pkg/describe"
	"github.com/pvaezi/sql-gpt/pkg/engine"
	"github.com/pvaezi/sql-gpt/pkg/llm"
	"github.com/pvaezi/sql-gpt/pkg/logger"
	"github.com/pvaezi/sql-gpt/pkg/metrics"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

type options struct {
	llm          string
	llmConfig    string
	llmRetries   uint
	engine       string
	engineConfig string
	maxRetry     int
	stepLimit    int
	rowLimit     int
	metricsAddr  string
	envFile      string
	verbose      bool
}

func bindFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVarP(&o.llm, "llm", "l", "", fmt.Sprintf("language model provider (%s)", strings.Join(llm.Providers(), ", ")))
	fs.StringVar(&o.llmConfig, "llm-config", "", `JSON configuration for the language model, e.g. '{"model":"llama3.1"}'`)
	fs.UintVar(&o.llmRetries, "llm-retries", 0, "retry an unreachable language model this many times with backoff (0 = fail immediately)")
	fs.StringVarP(&o.engine, "engine", "e", "", fmt.Sprintf("query engine (%s)", strings.Join(engine.Engines(), ", ")))
	fs.StringVar(&o.engineConfig, "engine-config", "", `JSON configuration for the query engine, e.g. '{"path":"my.db"}'`)
	fs.IntVar(&o.maxRetry, "max-retry", agent.DefaultMaxRetry, "regenerations allowed after a failed query before the question is dropped")
	fs.IntVar(&o.stepLimit, "step-limit", agent.DefaultStepLimit, "maximum number of agent steps per session")
	fs.IntVar(&o.rowLimit, "row-limit", agent.DefaultRowLimit, "maximum rows the generated queries should return")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "address to serve prometheus metrics on (disabled when empty)")
	fs.StringVar(&o.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "set debug logging level")
}

func (o *options) validate() error {
	if o.llm == "" {
		return errors.New("--llm is required")
	}
	if o.engine == "" {
		return errors.New("--engine is required")
	}
	if o.llmConfig != "" && !json.Valid([]byte(o.llmConfig)) {
		return errors.New("--llm-config is not valid JSON")
	}
	if o.engineConfig != "" && !json.Valid([]byte(o.engineConfig)) {
		return errors.New("--engine-config is not valid JSON")
	}
	if o.maxRetry < 0 {
		return errors.New("--max-retry must be >= 0")
	}
	if o.stepLimit <= 0 {
		return errors.New("--step-limit must be > 0")
	}
	if o.rowLimit <= 0 {
		return errors.New("--row-limit must be > 0")
	}
	return nil
}

type runFunc func(ctx context.Context, o *options) error

func newRootCmd(build BuildInfo, run runFunc) *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:           "sql-gpt",
		Short:         "Ask questions about your data in natural language.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", build.Version, build.Commit, build.Date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(o.envFile, cmd.Flags().Changed("env-file")); err != nil {
				return err
			}
			if err := o.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), o)
		},
	}
	bindFlags(cmd.Flags(), o)
	return cmd
}

// loadEnvFile loads a dotenv file. A missing default file is not an error.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func Run(build BuildInfo) ExitCode {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(build, func(ctx context.Context, o *options) error {
		log := logger.New(o.verbose)
		metrics.BuildInfo.WithLabelValues(build.Version, build.Commit, build.Date).Set(1)

		con, err := console.NewTerminal()
		if err != nil {
			return err
		}
		return runSession(ctx, log, o, con)
	})
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCodeError
	}
	return exitCodeSuccess
}

// runSession wires the capabilities selected by o and runs one session.
func runSession(ctx context.Context, log *slog.Logger, o *options, con agent.Console) error {
	if o.metricsAddr != "" {
		listener, err := net.Listen("tcp", o.metricsAddr)
		if err != nil {
			return fmt.Errorf("failed to start metrics listener: %w", err)
		}
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.Serve(metricsCtx, log, listener); err != nil {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	client, err := llm.New(log, o.llm, []byte(o.llmConfig))
	if err != nil {
		return err
	}
	client = llm.WithRetry(client, llm.RetryConfig{Logger: log, MaxRetries: o.llmRetries})

	eng, err := engine.New(ctx, log, o.engine, []byte(o.engineConfig))
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.Warn("failed to close engine", "error", err)
		}
	}()

	a, err := agent.New(agent.Config{
		Logger:    log,
		LLM:       client,
		Engine:    eng,
		Describer: describe.New(log, nil),
		Console:   con,
		MaxRetry:  o.maxRetry,
		StepLimit: o.stepLimit,
		RowLimit:  o.rowLimit,
	})
	if err != nil {
		return err
	}
	return a.Run(ctx, agent.NewState())
}
