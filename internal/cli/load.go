package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/genesis/internal/engine"
	"github.com/roach88/genesis/internal/genesis"
	"github.com/roach88/genesis/internal/metrics"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	DB DBOptions

	Concurrency     int
	Timeout         time.Duration
	MetricsTextfile string

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load [genesis.json|-]",
		Short: "Load a genesis document into the seed tables",
		Long: `Load the genesis document into the seed tables.

Missing tables are created first. For each entity only rows whose primary key
is not stored yet are written, so re-running a load is safe. Entities run
concurrently in dependency order; the first failure stops scheduling and the
remaining entities are reported as skipped.

The document is read from the given file, or from stdin when the argument is
"-" or omitted.

Example:
  genesis load --dsn "host=localhost dbname=indexer" genesis.json
  genesis load --driver sqlite3 --dsn ./seed.db --entities balances genesis.json
  curl -s $GENESIS_URL | genesis load -`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			source := "-"
			if len(args) == 1 {
				source = args[0]
			}
			return runLoad(opts, source, cmd)
		},
	}

	addDBFlags(cmd, &opts.DB)
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", engine.DefaultConcurrency, "entities loaded at the same time")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Minute, "abort the load after this long (0 disables)")
	cmd.Flags().StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file when done")

	return cmd
}

func runLoad(opts *LoadOptions, source string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	cfg, err := resolveConfig(cmd, opts.RootOptions, &opts.DB)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	flags := cmd.Flags()
	if flags.Changed("concurrency") {
		cfg.Load.Concurrency = opts.Concurrency
	}
	if flags.Changed("timeout") {
		cfg.Load.Timeout = opts.Timeout
	}
	if flags.Changed("metrics-textfile") {
		cfg.Metrics.Textfile = opts.MetricsTextfile
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger, err := newLogger(cfg, formatter.Diagnostics())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	defer logger.Sync()

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	doc, err := readDocument(source, cmd.InOrStdin())
	if err != nil {
		if genesis.IsMalformed(err) {
			_ = formatter.Error(string(engine.ErrCodeMalformedInput), err.Error(), nil)
			return WrapExitError(ExitFailure, "malformed genesis document", err)
		}
		return WrapExitError(ExitCommandError, "failed to read genesis document", err)
	}
	formatter.VerboseLog("Read genesis document for chain %s (%s)", doc.ChainID(), doc.Digest())

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	if cfg.Load.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Load.Timeout)
		defer cancel()
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", zap.Error(closeErr))
		}
	}()

	m := metrics.New(cfg.Metrics.Textfile != "")
	loaderOpts := []engine.Option{
		engine.WithRegistry(registry),
		engine.WithLogger(logger),
		engine.WithMetrics(m),
		engine.WithConcurrency(cfg.Load.Concurrency),
		engine.WithSchema(cfg.Database.Schema),
	}
	if opts.RunIDs != nil {
		loaderOpts = append(loaderOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}

	report, loadErr := engine.New(st, loaderOpts...).Load(ctx, doc)

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Error("failed to write metrics textfile", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}

	if loadErr != nil {
		return outputLoadFailure(formatter, report, loadErr)
	}
	return outputLoadSuccess(formatter, report)
}

// readDocument decodes the genesis document from a file or, for "-", r.
func readDocument(source string, r io.Reader) (*genesis.Document, error) {
	if source == "-" {
		return genesis.Decode(r)
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return genesis.Decode(f)
}

// signalContext cancels on SIGINT/SIGTERM so an interrupted load rolls back
// its open batches.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func outputLoadSuccess(formatter *OutputFormatter, report *engine.Report) error {
	if formatter.Format == "json" {
		return formatter.Success(report)
	}
	writeReport(formatter.Writer, report)
	fmt.Fprintf(formatter.Writer, "✓ Loaded chain %s: %d new rows written\n", report.ChainID, report.Written())
	return nil
}

func outputLoadFailure(formatter *OutputFormatter, report *engine.Report, err error) error {
	code, message := errorCode(err)

	if formatter.Format == "json" {
		_ = formatter.Error(code, message, report)
	} else {
		writeReport(formatter.Writer, report)
		fmt.Fprintf(formatter.Writer, "✗ Load %s\n", report.State)
		_ = formatter.Error(code, message, nil)
	}

	if code == string(engine.ErrCodeSchemaFailed) {
		return WrapExitError(ExitCommandError, "load failed", err)
	}
	return WrapExitError(ExitFailure, "load failed", err)
}

func writeReport(w io.Writer, report *engine.Report) {
	fmt.Fprintf(w, "run %s\n", report.RunID)
	for _, o := range report.Entities {
		fmt.Fprintf(w, "  %-12s %s\n", o.Entity, o.Message())
	}
}
