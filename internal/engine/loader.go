package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/genesis/internal/entity"
	"github.com/roach88/genesis/internal/genesis"
	"github.com/roach88/genesis/internal/ir"
	"github.com/roach88/genesis/internal/metrics"
	"github.com/roach88/genesis/internal/reconcile"
	"github.com/roach88/genesis/internal/schema"
	"github.com/roach88/genesis/internal/store"
)

// DefaultConcurrency is the default number of entities loaded at once.
const DefaultConcurrency = 3

// Loader runs genesis load jobs against one store.
//
// Thread-safety: a Loader holds no per-job state; concurrent Load calls are
// safe for the Loader itself but must not target the same tables, since the
// existing-key snapshot is not locked.
type Loader struct {
	store       *store.Store
	registry    *entity.Registry
	schema      *schema.Manager
	reconciler  *reconcile.Reconciler
	runIDs      RunIDGenerator
	logger      *zap.Logger
	metrics     *metrics.Metrics
	concurrency int
	tableSchema string
}

// Option allows configuration of loader parameters.
type Option func(*Loader)

// WithRegistry sets the entities to load. Default: entity.DefaultRegistry().
func WithRegistry(r *entity.Registry) Option {
	return func(l *Loader) {
		l.registry = r
	}
}

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithMetrics sets the metrics sink. Default: disabled.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loader) {
		l.metrics = m
	}
}

// WithConcurrency bounds how many entities of one wave run at once.
//
// Default: 3 (DefaultConcurrency). Values below 1 are treated as 1.
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		l.concurrency = max(n, 1)
	}
}

// WithSchema places tables without an explicit schema in the given
// namespace. Ignored by dialects without namespaces.
func WithSchema(schema string) Option {
	return func(l *Loader) {
		l.tableSchema = schema
	}
}

// WithRunIDGenerator sets the run id generator. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(l *Loader) {
		l.runIDs = g
	}
}

// New creates a Loader on top of an open store.
func New(s *store.Store, opts ...Option) *Loader {
	l := &Loader{
		store:       s,
		registry:    entity.DefaultRegistry(),
		runIDs:      UUIDv7Generator{},
		logger:      zap.NewNop(),
		metrics:     metrics.New(false),
		concurrency: DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(l)
	}

	l.schema = schema.New(s, schema.WithLogger(l.logger))
	l.reconciler = reconcile.New(s)
	return l
}

// Registry returns the registry the loader runs.
func (l *Loader) Registry() *entity.Registry {
	return l.registry
}

// Tables returns the target table of every registered entity, with the
// loader's schema applied, in declaration order.
func (l *Loader) Tables() []entity.Definition {
	defs := l.registry.Definitions()
	for i := range defs {
		defs[i] = defs[i].InSchema(l.tableSchema)
	}
	return defs
}

// Load runs every registered entity against doc.
//
// The returned report is never nil. The error is nil iff the report state
// is AllDone; otherwise it is a *LoadError.
func (l *Loader) Load(ctx context.Context, doc *genesis.Document) (*Report, error) {
	runID := l.runIDs.Generate()
	log := l.logger.With(zap.String("run_id", runID))
	start := time.Now()

	defs := l.Tables()
	report := &Report{
		RunID:    runID,
		State:    StateStart,
		Entities: make([]Outcome, len(defs)),
	}
	index := make(map[string]int, len(defs))
	for i, d := range defs {
		index[d.Name] = i
		report.Entities[i] = Outcome{Entity: d.Name, Table: d.Table.Name, State: StatePending}
	}

	if doc == nil {
		err := &genesis.MalformedError{Reason: "no document"}
		skipAll(report, "no document")
		return l.finish(log, report, StateAborted, &LoadError{
			Code: ErrCodeMalformedInput, Message: err.Error(), RunID: runID, Err: err,
		})
	}
	report.ChainID = doc.ChainID()
	report.Digest = doc.Digest()
	log = log.With(zap.String("chain_id", report.ChainID))
	log.Info("load started", zap.Int("entities", len(defs)), zap.String("digest", report.Digest))

	if err := ctx.Err(); err != nil {
		skipAll(report, "canceled before start")
		return l.finish(log, report, StateAborted, &LoadError{
			Code: ErrCodeCanceled, Message: err.Error(), RunID: runID, Err: err,
		})
	}

	env := entity.Env{ChainID: doc.ChainID()}
	candidates, ee := l.extractAll(log, doc, defs, env, report)
	if ee != nil {
		code := ErrCodeEntityFailed
		state := StateFailed
		if genesis.IsMalformed(ee.err) {
			code, state = ErrCodeMalformedInput, StateAborted
		}
		return l.finish(log, report, state, &LoadError{
			Code: code, Message: ee.err.Error(), RunID: runID, Entity: ee.entity, Err: ee.err,
		})
	}

	if err := l.ensureTables(ctx, defs); err != nil {
		skipAll(report, "table setup failed")
		return l.finish(log, report, StateFailed, &LoadError{
			Code: ErrCodeSchemaFailed, Message: err.Error(), RunID: runID, Err: err,
		})
	}

	var (
		failed   atomic.Bool
		firstErr atomic.Pointer[entityError]
	)

	for wave, members := range l.registry.Waves() {
		if failed.Load() {
			break
		}
		log.Debug("wave started", zap.Int("wave", wave), zap.Int("entities", len(members)))

		g := new(errgroup.Group)
		g.SetLimit(l.concurrency)
		for _, member := range members {
			i := index[member.Name]
			def := defs[i]
			g.Go(func() error {
				if failed.Load() {
					return nil
				}
				out, err := l.runEntity(ctx, log, def, candidates[i])
				report.Entities[i] = out
				if err != nil {
					failed.Store(true)
					firstErr.CompareAndSwap(nil, &entityError{entity: def.Name, err: err})
				}
				return nil
			})
		}
		g.Wait()
	}

	for i := range report.Entities {
		if report.Entities[i].State == StatePending {
			report.Entities[i].State = StateSkipped
			report.Entities[i].Reason = "not scheduled after an earlier failure"
		}
	}

	fe := firstErr.Load()
	switch {
	case fe == nil:
		log.Info("load finished", zap.Int64("written", report.Written()), zap.Duration("duration", time.Since(start)))
		return l.finish(log, report, StateAllDone, nil)
	case errors.Is(fe.err, context.Canceled) || errors.Is(fe.err, context.DeadlineExceeded):
		return l.finish(log, report, StateAborted, &LoadError{
			Code: ErrCodeCanceled, Message: fe.err.Error(), RunID: runID, Entity: fe.entity, Err: fe.err,
		})
	default:
		return l.finish(log, report, StateFailed, &LoadError{
			Code: ErrCodeEntityFailed, Message: fe.err.Error(), RunID: runID, Entity: fe.entity, Err: fe.err,
		})
	}
}

type entityError struct {
	entity string
	err    error
}

// LoadEntity runs a single entity against doc. Dependencies of the entity
// are not loaded.
func (l *Loader) LoadEntity(ctx context.Context, doc *genesis.Document, name string) (Outcome, error) {
	def, ok := l.registry.Get(name)
	if !ok {
		return Outcome{}, fmt.Errorf("unknown entity %q: must be one of %v", name, l.registry.Names())
	}
	if doc == nil {
		return Outcome{}, &genesis.MalformedError{Reason: "no document"}
	}
	def = def.InSchema(l.tableSchema)

	log := l.logger.With(zap.String("run_id", l.runIDs.Generate()), zap.String("chain_id", doc.ChainID()))
	candidates, err := l.extract(log, doc, def, entity.Env{ChainID: doc.ChainID()})
	if err != nil {
		return Outcome{Entity: def.Name, Table: def.Table.Name, State: StateFailed, Reason: err.Error()}, err
	}
	if err := l.ensureTables(ctx, []entity.Definition{def}); err != nil {
		return Outcome{Entity: def.Name, Table: def.Table.Name, State: StateFailed, Reason: err.Error()}, err
	}
	return l.runEntity(ctx, log, def, candidates)
}

// runEntity moves one entity through Extracting, Reconciling and Writing.
func (l *Loader) runEntity(ctx context.Context, log *zap.Logger, def entity.Definition, candidates []ir.Candidate) (Outcome, error) {
	start := time.Now()
	out := Outcome{Entity: def.Name, Table: def.Table.Name}
	log = log.With(zap.String("entity", def.Name), zap.String("table", def.Table.Name))

	fail := func(err error) (Outcome, error) {
		out.State = StateFailed
		out.Reason = err.Error()
		out.Duration = time.Since(start)
		l.metrics.RecordFailure(def.Name, failureReason(err))
		log.Error("entity failed", zap.Error(err))
		return out, err
	}

	out.Candidates = len(candidates)
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	out.State = StateReconciling
	log.Debug("reconciling", zap.Int("candidates", len(candidates)))
	plan, err := l.reconciler.Plan(ctx, def.Table, candidates)
	if err != nil {
		return fail(err)
	}
	out.Skipped = plan.Skipped()

	out.State = StateWriting
	log.Debug("writing", zap.Int("rows", len(plan.Fresh)), zap.Int("skipped", out.Skipped))
	written, err := l.reconciler.Apply(ctx, plan)
	if err != nil {
		return fail(err)
	}

	out.State = StateDone
	out.Written = written
	out.Duration = time.Since(start)
	l.metrics.RecordEntity(def.Name, out.Candidates, out.Skipped, written, out.Duration)
	log.Info(out.Message(), zap.Int("candidates", out.Candidates), zap.Int("skipped", out.Skipped))
	return out, nil
}

func (l *Loader) ensureTables(ctx context.Context, defs []entity.Definition) error {
	for _, d := range defs {
		if err := l.schema.EnsureTable(ctx, d.Table); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) finish(log *zap.Logger, report *Report, state State, err error) (*Report, error) {
	report.State = state
	l.metrics.RecordLoad(string(state))
	if err == nil {
		return report, nil
	}
	report.Reason = err.Error()
	log.Error("load "+string(state), zap.Error(err))
	return report, err
}

// extractAll derives the candidates of every entity before anything touches
// the database. When any extraction fails, the failing entities are marked
// failed, the others skipped, and the first failure in registry order is
// returned.
func (l *Loader) extractAll(log *zap.Logger, doc *genesis.Document, defs []entity.Definition, env entity.Env, report *Report) ([][]ir.Candidate, *entityError) {
	all := make([][]ir.Candidate, len(defs))
	var first *entityError
	for i, def := range defs {
		report.Entities[i].State = StateExtracting
		candidates, err := l.extract(log, doc, def, env)
		if err != nil {
			report.Entities[i].State = StateFailed
			report.Entities[i].Reason = err.Error()
			if first == nil {
				first = &entityError{entity: def.Name, err: err}
			}
			continue
		}
		report.Entities[i].State = StatePending
		report.Entities[i].Candidates = len(candidates)
		all[i] = candidates
	}
	if first == nil {
		return all, nil
	}

	for i := range report.Entities {
		if report.Entities[i].State == StatePending {
			report.Entities[i].State = StateSkipped
			report.Entities[i].Reason = "document rejected before writing"
		}
	}
	return nil, first
}

func (l *Loader) extract(log *zap.Logger, doc *genesis.Document, def entity.Definition, env entity.Env) ([]ir.Candidate, error) {
	log.Debug("extracting", zap.String("entity", def.Name), zap.String("path", def.Path.String()))
	candidates, err := entity.Extract(doc, def, env)
	if err != nil {
		l.metrics.RecordFailure(def.Name, failureReason(err))
		log.Error("entity failed", zap.String("entity", def.Name), zap.Error(err))
	}
	return candidates, err
}

func skipAll(report *Report, reason string) {
	for i := range report.Entities {
		report.Entities[i].State = StateSkipped
		report.Entities[i].Reason = reason
	}
}

func failureReason(err error) string {
	switch {
	case genesis.IsMalformed(err):
		return "malformed"
	case store.IsDuplicateKey(err):
		return "duplicate_key"
	case errors.Is(err, entity.ErrArity):
		return "arity"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
