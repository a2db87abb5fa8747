package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/genesis/internal/engine"
	"github.com/roach88/genesis/internal/entity"
	"github.com/roach88/genesis/internal/schema"
)

// TablesOptions holds flags for the tables command.
type TablesOptions struct {
	*RootOptions
	DB    DBOptions
	Check bool
}

// TableStatus is one line of the tables, index and reset output.
type TableStatus struct {
	Entity  string   `json:"entity"`
	Table   string   `json:"table"`
	Exists  bool     `json:"exists"`
	Created bool     `json:"created,omitempty"`
	Dropped bool     `json:"dropped,omitempty"`
	Indexes []string `json:"indexes,omitempty"`
}

// NewTablesCommand creates the tables command.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TablesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Create missing seed tables",
		Long: `Create the seed tables of every entity that do not exist yet.
With --check, only report which tables exist.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSchema(cmd, opts.RootOptions, &opts.DB, func(ctx context.Context, m *schema.Manager, def entity.Definition) (TableStatus, error) {
				status := TableStatus{Entity: def.Name, Table: def.Table.Name}
				exists, err := m.TableExists(ctx, def.Table)
				if err != nil {
					return status, err
				}
				status.Exists = exists
				if exists || opts.Check {
					return status, nil
				}
				if err := m.EnsureTable(ctx, def.Table); err != nil {
					return status, err
				}
				status.Exists, status.Created = true, true
				return status, nil
			})
		},
	}

	addDBFlags(cmd, &opts.DB)
	cmd.Flags().BoolVar(&opts.Check, "check", false, "report table existence without creating anything")
	return cmd
}

// NewIndexCommand creates the index command.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TablesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Create the secondary indexes of the seed tables",
		Long: `Create the indexes declared by each entity on its seed table.

Indexes are not part of the load path. On Postgres they are built with
CREATE INDEX CONCURRENTLY, so run this after the load while the indexer is
already reading the tables. Missing tables are reported, not created.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSchema(cmd, opts.RootOptions, &opts.DB, func(ctx context.Context, m *schema.Manager, def entity.Definition) (TableStatus, error) {
				status := TableStatus{Entity: def.Name, Table: def.Table.Name}
				exists, err := m.TableExists(ctx, def.Table)
				if err != nil || !exists {
					return status, err
				}
				status.Exists = true
				if err := m.CreateIndexes(ctx, def.Table); err != nil {
					return status, err
				}
				for _, col := range def.Table.Indexes {
					status.Indexes = append(status.Indexes, schema.IndexName(def.Table, col))
				}
				return status, nil
			})
		},
	}

	addDBFlags(cmd, &opts.DB)
	return cmd
}

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	DB      DBOptions
	Cascade bool
	Yes     bool
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop the seed tables",
		Long: `Drop the seed tables of the selected entities, dependents first.
The next load recreates them. Requires --yes.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.Yes {
				return NewExitError(ExitCommandError, "reset drops tables and their data: pass --yes to confirm")
			}
			return withSchema(cmd, opts.RootOptions, &opts.DB, func(ctx context.Context, m *schema.Manager, def entity.Definition) (TableStatus, error) {
				status := TableStatus{Entity: def.Name, Table: def.Table.Name}
				if err := m.DropTable(ctx, def.Table, opts.Cascade); err != nil {
					return status, err
				}
				status.Dropped = true
				return status, nil
			}, reverse)
		},
	}

	addDBFlags(cmd, &opts.DB)
	cmd.Flags().BoolVar(&opts.Cascade, "cascade", false, "also drop objects that depend on the tables (postgres)")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "confirm dropping the tables")
	return cmd
}

type tableFunc func(ctx context.Context, m *schema.Manager, def entity.Definition) (TableStatus, error)

func reverse(defs []entity.Definition) []entity.Definition {
	out := make([]entity.Definition, len(defs))
	for i, d := range defs {
		out[len(defs)-1-i] = d
	}
	return out
}

// withSchema resolves the configuration, opens the store and applies fn to
// the table of every selected entity, in declaration order unless reordered.
func withSchema(cmd *cobra.Command, root *RootOptions, db *DBOptions, fn tableFunc, reorder ...func([]entity.Definition) []entity.Definition) error {
	formatter := newFormatter(cmd, root)

	cfg, err := resolveConfig(cmd, root, db)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
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

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	defs := engine.New(st, engine.WithRegistry(registry), engine.WithSchema(cfg.Database.Schema)).Tables()
	for _, r := range reorder {
		defs = r(defs)
	}
	m := schema.New(st, schema.WithLogger(logger))

	statuses := make([]TableStatus, 0, len(defs))
	for _, def := range defs {
		status, err := fn(ctx, m, def)
		if err != nil {
			_ = formatter.Error("SCHEMA_FAILED", err.Error(), nil)
			return WrapExitError(ExitFailure, fmt.Sprintf("%s failed", cmd.Name()), err)
		}
		logger.Debug("table processed", zap.String("entity", def.Name), zap.String("table", def.Table.Name))
		statuses = append(statuses, status)
	}

	if formatter.Format == "json" {
		return formatter.Success(statuses)
	}
	for _, s := range statuses {
		fmt.Fprintf(formatter.Writer, "%-12s %-20s %s\n", s.Entity, s.Table, describe(s))
	}
	return nil
}

func describe(s TableStatus) string {
	switch {
	case s.Dropped:
		return "dropped"
	case s.Created:
		return "created"
	case len(s.Indexes) > 0:
		return fmt.Sprintf("indexed (%d)", len(s.Indexes))
	case s.Exists:
		return "exists"
	default:
		return "missing"
	}
}
