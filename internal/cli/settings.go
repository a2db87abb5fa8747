package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/genesis/internal/compiler"
	"github.com/roach88/genesis/internal/config"
	"github.com/roach88/genesis/internal/entity"
	"github.com/roach88/genesis/internal/store"
)

// DBOptions holds the database flags shared by commands that touch tables.
type DBOptions struct {
	Driver   string
	DSN      string
	Schema   string
	Specs    string
	Entities []string
}

func addDBFlags(cmd *cobra.Command, o *DBOptions) {
	cmd.Flags().StringVar(&o.Driver, "driver", config.DefaultDriver, fmt.Sprintf("database driver %v", store.Dialects))
	cmd.Flags().StringVar(&o.DSN, "dsn", "", "data source name (file path for sqlite3); used instead of the DB_HOST/DB_PORT/DB_USER/DB_PASS/DB_NAME parts")
	cmd.Flags().StringVar(&o.Schema, "schema", config.DefaultSchema, "schema holding the seed tables (DB_SCHEMA overrides)")
	cmd.Flags().StringVar(&o.Specs, "specs", "", "directory of CUE entity declarations to load in addition to the built-ins")
	cmd.Flags().StringSliceVar(&o.Entities, "entities", nil, "only these entities (and their dependencies)")
}

// resolveConfig layers defaults, the config file, the flags the user
// actually set and finally the DB_* variables, which override flags.
func resolveConfig(cmd *cobra.Command, root *RootOptions, db *DBOptions) (config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("driver") {
		cfg.Database.Driver = db.Driver
	}
	if flags.Changed("dsn") {
		cfg.Database.DSN = db.DSN
	}
	if flags.Changed("schema") {
		cfg.Database.Schema = db.Schema
	}
	if flags.Changed("specs") {
		cfg.Load.Specs = db.Specs
	}
	if flags.Changed("entities") {
		cfg.Load.Entities = db.Entities
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return config.Config{}, err
	}
	if root.Verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// openStore connects to the configured database.
func openStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	s, err := store.Open(ctx, cfg.Store())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return s, nil
}

// buildRegistry returns the built-in entities, extended with the CUE
// declarations in cfg.Load.Specs and narrowed to cfg.Load.Entities.
func buildRegistry(cfg config.Config) (*entity.Registry, error) {
	reg := entity.DefaultRegistry()

	if cfg.Load.Specs != "" {
		result, errs := compiler.LoadEntities(cfg.Load.Specs, compiler.LoadModeFailFast)
		if len(errs) > 0 {
			return nil, WrapExitError(ExitCommandError, "failed to load entity specs", errors.Join(errs...))
		}
		extended, err := reg.With(result.Entities...)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid entity specs", err)
		}
		reg = extended
	}

	if len(cfg.Load.Entities) > 0 {
		selected, err := reg.Select(cfg.Load.Entities...)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid --entities", err)
		}
		reg = selected
	}
	return reg, nil
}
