package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/genesis/internal/compiler"
	"github.com/roach88/genesis/internal/engine"
	"github.com/roach88/genesis/internal/entity"
	"github.com/roach88/genesis/internal/genesis"
	"github.com/roach88/genesis/internal/ir"
	"github.com/roach88/genesis/internal/schema"
	"github.com/roach88/genesis/internal/store"
	"github.com/roach88/genesis/internal/testutil"
)

// Harness executes one scenario against one database.
type Harness struct {
	store    *store.Store
	registry *entity.Registry
	runIDs   *testutil.SequenceGenerator
	logger   *zap.Logger
}

// Option configures a harness run.
type Option func(*Harness)

// WithLogger routes loader logs to logger. Default: discarded.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Build the entity registry (built-ins, specs, selection)
// 3. Store the seed rows
// 4. Execute the runs, checking each report against its expectation
// 5. Dump every entity table and evaluate assertions
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(ctx, store.Config{Driver: store.DialectSQLite, DSN: ":memory:"})
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	registry, err := buildRegistry(scenario)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		store:    st,
		registry: registry,
		runIDs:   testutil.NewSequenceGenerator("run"),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}

	if err := h.seed(ctx, scenario.Seed); err != nil {
		return nil, fmt.Errorf("failed to seed tables: %w", err)
	}

	result := NewResult()
	loader := engine.New(st,
		engine.WithRegistry(registry),
		engine.WithRunIDGenerator(h.runIDs),
		engine.WithLogger(h.logger),
		engine.WithConcurrency(1),
	)

	for i, run := range scenario.Runs {
		doc, err := runDocument(scenario, run)
		if err != nil {
			return nil, fmt.Errorf("runs[%d]: %w", i, err)
		}

		report, loadErr := loader.Load(ctx, doc)
		rr := RunResult{Report: report}
		var le *engine.LoadError
		if errors.As(loadErr, &le) {
			rr.Code = le.Code
		} else if loadErr != nil {
			return nil, fmt.Errorf("runs[%d]: %w", i, loadErr)
		}
		result.Runs = append(result.Runs, rr)

		for _, msg := range checkRun(i, rr, run.Expect) {
			result.AddError(msg)
		}
	}

	if err := h.dump(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to read tables: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func buildRegistry(s *Scenario) (*entity.Registry, error) {
	reg := entity.DefaultRegistry()
	for _, dir := range s.Specs {
		loaded, errs := compiler.LoadEntities(dir, compiler.LoadModeFailFast)
		if len(errs) > 0 {
			return nil, fmt.Errorf("failed to load specs %s: %w", dir, errors.Join(errs...))
		}
		var err error
		if reg, err = reg.With(loaded.Entities...); err != nil {
			return nil, err
		}
	}
	if len(s.Entities) > 0 {
		return reg.Select(s.Entities...)
	}
	return reg, nil
}

// runDocument parses the document of one run. Documents that fail to parse
// are returned as nil so the loader reports them as malformed input.
func runDocument(s *Scenario, run RunStep) (*genesis.Document, error) {
	raw, file := run.Genesis, run.GenesisFile
	if raw == "" && file == "" {
		raw, file = s.Genesis, s.GenesisFile
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		raw = string(data)
	}

	doc, err := genesis.Parse([]byte(raw))
	if genesis.IsMalformed(err) {
		return nil, nil
	}
	return doc, err
}

// seed stores the seed rows through the bulk writer, one batch per table.
func (h *Harness) seed(ctx context.Context, seed map[string][]map[string]any) error {
	tables := make([]string, 0, len(seed))
	for name := range seed {
		tables = append(tables, name)
	}
	slices.Sort(tables)

	m := schema.New(h.store)
	for _, name := range tables {
		t, ok := h.table(name)
		if !ok {
			return fmt.Errorf("seed: unknown table %q", name)
		}
		if err := m.EnsureTable(ctx, t); err != nil {
			return err
		}

		rows := make([]ir.Row, 0, len(seed[name]))
		for i, values := range seed[name] {
			row, err := seedRow(t, values)
			if err != nil {
				return fmt.Errorf("seed.%s[%d]: %w", name, i, err)
			}
			rows = append(rows, row)
		}

		if _, err := h.store.WithWriter(ctx, t, func(w *store.Writer) error {
			for _, row := range rows {
				if err := w.Write(ctx, row); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// seedRow maps column values onto t's column order. Missing columns and
// explicit nulls become NULL.
func seedRow(t ir.Table, values map[string]any) (ir.Row, error) {
	cols := t.ColumnNames()
	for name := range values {
		if !slices.Contains(cols, name) {
			return nil, fmt.Errorf("unknown column %q (columns: %s)", name, strings.Join(cols, ", "))
		}
	}

	row := make(ir.Row, len(cols))
	for i, col := range cols {
		v, ok := values[col]
		if !ok || v == nil {
			row[i] = ir.Null
			continue
		}
		s, err := ir.Stringify(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		row[i] = ir.Text(ir.NormalizeKey(s))
	}
	return row, nil
}

// table finds the table of a registered entity by table name.
func (h *Harness) table(name string) (ir.Table, bool) {
	for _, d := range h.registry.Definitions() {
		if d.Table.Name == name {
			return d.Table, true
		}
	}
	return ir.Table{}, false
}

// dump reads every entity table that exists into result.Tables.
func (h *Harness) dump(ctx context.Context, result *Result) error {
	m := schema.New(h.store)
	for _, d := range h.registry.Definitions() {
		exists, err := m.TableExists(ctx, d.Table)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		rows, err := h.store.ReadRows(ctx, d.Table)
		if err != nil {
			return err
		}
		result.Tables[d.Table.Name] = TableDump{Columns: d.Table.ColumnNames(), Rows: rows}
	}
	return nil
}

// checkRun compares one run report with its expectation.
func checkRun(index int, rr RunResult, expect *RunExpect) []string {
	if expect == nil {
		expect = &RunExpect{State: engine.StateAllDone}
	}

	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("runs[%d]: ", index)+fmt.Sprintf(format, args...))
	}

	report := rr.Report
	if report.State != expect.State {
		fail("expected state %s, got %s (%s)", expect.State, report.State, report.Reason)
	}
	if expect.Code != "" && rr.Code != expect.Code {
		fail("expected error code %s, got %q", expect.Code, rr.Code)
	}

	for _, name := range sortedKeys(expect.Written) {
		out, ok := report.Outcome(name)
		if !ok {
			fail("entity %s was not part of the run", name)
			continue
		}
		if out.Written != expect.Written[name] {
			fail("entity %s: expected %d rows written, got %d", name, expect.Written[name], out.Written)
		}
	}
	for _, name := range sortedKeys(expect.Skipped) {
		out, ok := report.Outcome(name)
		if !ok {
			fail("entity %s was not part of the run", name)
			continue
		}
		if out.Skipped != expect.Skipped[name] {
			fail("entity %s: expected %d rows skipped, got %d", name, expect.Skipped[name], out.Skipped)
		}
	}
	for _, name := range sortedKeys(expect.Entities) {
		out, ok := report.Outcome(name)
		if !ok {
			fail("entity %s was not part of the run", name)
			continue
		}
		if out.State != expect.Entities[name] {
			fail("entity %s: expected state %s, got %s", name, expect.Entities[name], out.State)
		}
	}
	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
