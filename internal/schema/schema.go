package schema

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/genesis/internal/ir"
	"github.com/roach88/genesis/internal/store"
)

//go:embed enum.sql
var enumSQL string

// InterfaceKinds lists the values of the contract interface enum in
// declaration order. "Uncertain" is the placeholder used at genesis time.
var InterfaceKinds = []string{"Uncertain", "CW20", "LegacyBridgeSwap", "MicroAgentAlmanac"}

// Manager creates, inspects and drops seed tables.
type Manager struct {
	store  *store.Store
	logger *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// New creates a Manager on top of an open store.
func New(s *store.Store, opts ...Option) *Manager {
	m := &Manager{store: s, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureTable creates t if it does not exist. On Postgres it also creates
// the table's schema and, when t has an interface column, the enum type.
func (m *Manager) EnsureTable(ctx context.Context, t ir.Table) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("ensure table: %w", err)
	}
	d := m.store.Dialect()

	if d.Namespaces() {
		if t.Schema != "" {
			if err := m.store.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+d.QuoteIdent(t.Schema)); err != nil {
				return fmt.Errorf("ensure schema %s: %w", t.Schema, err)
			}
		}
		if hasInterface(t) {
			if err := m.store.Exec(ctx, enumSQL); err != nil {
				return fmt.Errorf("ensure enum %s: %w", store.EnumTypeName, err)
			}
		}
	}

	if err := m.store.Exec(ctx, CreateTableSQL(d, t)); err != nil {
		return fmt.Errorf("ensure table %s: %w", t.Name, err)
	}

	m.logger.Debug("table ensured", zap.String("table", t.Name), zap.String("schema", t.Schema))
	return nil
}

// EnsureTables ensures each table in order, stopping at the first error.
func (m *Manager) EnsureTables(ctx context.Context, tables ...ir.Table) error {
	for _, t := range tables {
		if err := m.EnsureTable(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// DropTable drops t if it exists. cascade also drops dependent objects;
// it is ignored by dialects that do not support it.
func (m *Manager) DropTable(ctx context.Context, t ir.Table, cascade bool) error {
	d := m.store.Dialect()
	q := "DROP TABLE IF EXISTS " + d.TableName(t)
	if cascade && d.Cascade() {
		q += " CASCADE"
	}
	if err := m.store.Exec(ctx, q); err != nil {
		return fmt.Errorf("drop table %s: %w", t.Name, err)
	}

	m.logger.Info("table dropped", zap.String("table", t.Name), zap.Bool("cascade", cascade))
	return nil
}

// TableExists reports whether t is present in the catalog.
func (m *Manager) TableExists(ctx context.Context, t ir.Table) (bool, error) {
	q, args := m.store.Dialect().TableExistsQuery(t)
	exists, err := m.store.QueryBool(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", t.Name, err)
	}
	return exists, nil
}

// CreateIndexes creates one index per entry of t.Indexes, skipping indexes
// that already exist. Not part of the load path.
func (m *Manager) CreateIndexes(ctx context.Context, t ir.Table) error {
	d := m.store.Dialect()
	for _, col := range t.Indexes {
		if err := m.store.Exec(ctx, CreateIndexSQL(d, t, col)); err != nil {
			return fmt.Errorf("create index on %s(%s): %w", t.Name, col, err)
		}
		m.logger.Info("index created", zap.String("table", t.Name), zap.String("column", col))
	}
	return nil
}

// CreateTableSQL renders the idempotent CREATE TABLE statement for t.
// The key column is the primary key.
func CreateTableSQL(d store.Dialect, t ir.Table) string {
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		defs = append(defs, d.QuoteIdent(c.Name)+" "+d.ColumnType(c.Type))
	}
	defs = append(defs, "PRIMARY KEY ("+d.QuoteIdent(t.Key)+")")
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.TableName(t), strings.Join(defs, ", "))
}

// CreateIndexSQL renders the idempotent CREATE INDEX statement for one column.
func CreateIndexSQL(d store.Dialect, t ir.Table, column string) string {
	concurrently := ""
	if d.ConcurrentIndexes() {
		concurrently = "CONCURRENTLY "
	}
	return fmt.Sprintf("CREATE INDEX %sIF NOT EXISTS %s ON %s (%s)",
		concurrently, d.QuoteIdent(IndexName(t, column)), d.TableName(t), d.QuoteIdent(column))
}

// IndexName is the deterministic name of the index on t(column).
func IndexName(t ir.Table, column string) string {
	return t.Name + "_" + column + "_idx"
}

func hasInterface(t ir.Table) bool {
	for _, c := range t.Columns {
		if c.Type == ir.TypeInterface {
			return true
		}
	}
	return false
}
