// Package pipeline drives one run from source documents to a ranked,
// evidence-backed result and answers follow-up questions about it.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/beryl/internal/extract"
	"github.com/sells-group/beryl/internal/model"
	"github.com/sells-group/beryl/internal/store"
)

// State is a step of the run state machine.
type State string

const (
	StateIdle            State = "idle"
	StateSegmenting      State = "segmenting"
	StateIndexing        State = "indexing"
	StateSchemaDiscovery State = "schema_discovery"
	StateEntityDiscovery State = "entity_discovery"
	StateAnalyzing       State = "analyzing"
	StateDone            State = "done"
	StateAborted         State = "aborted"
)

var runStatusByState = map[State]model.RunStatus{
	StateSegmenting:      model.RunStatusSegmenting,
	StateIndexing:        model.RunStatusIndexing,
	StateSchemaDiscovery: model.RunStatusSchemaDiscovery,
	StateEntityDiscovery: model.RunStatusEntityDiscovery,
	StateAnalyzing:       model.RunStatusAnalyzing,
	StateAborted:         model.RunStatusAborted,
}

var (
	// ErrAlreadyRan is returned when Run is called twice on one Coordinator.
	ErrAlreadyRan = eris.New("pipeline: coordinator already ran")
	// ErrIndexing is returned when the retrieval index cannot be built.
	ErrIndexing = eris.New("pipeline: indexing failed")
)

// User-facing terminal messages.
const (
	MessageNoEntities = "no entities found — try a different query"
	MessageNoContent  = "no content to analyze"
)

// OutcomeKind distinguishes how a run ended.
type OutcomeKind string

const (
	OutcomeComplete   OutcomeKind = "complete"
	OutcomeNoEntities OutcomeKind = "no_entities"
	OutcomeNoContent  OutcomeKind = "no_content"
)

// Outcome is the terminal result of Run. Result is never nil; it holds an
// empty product list when the run aborted.
type Outcome struct {
	Kind    OutcomeKind      `json:"kind"`
	Message string           `json:"message"`
	Result  *model.RunResult `json:"result"`
}

// Segmenter splits documents into retrieval units.
type Segmenter interface {
	Segment(docs []model.Document) []model.ContentUnit
}

// Index is the run-scoped retrieval index.
type Index interface {
	extract.Retriever
	Build(ctx context.Context, units []model.ContentUnit) error
	Reset()
}

// Deps are the collaborators of a Coordinator. Store, Pacer and Observer are
// optional.
type Deps struct {
	Segmenter Segmenter
	Index     Index
	Generator extract.Generator
	Store     store.Store
	Pacer     Pacer
	Observer  Observer
}

// Options tunes retrieval depth and evidence handling.
type Options struct {
	DiscoveryTopK int
	Analyzer      extract.AnalyzerOptions
}

// Coordinator runs the stages of one run in order and keeps its result for
// follow-ups. Follow-up methods are safe for concurrent use.
type Coordinator struct {
	deps Deps
	opts Options

	mu     sync.RWMutex
	state  State
	ran    bool
	runID  string
	schema model.Schema
	result *model.RunResult
}

// New creates an idle Coordinator.
func New(deps Deps, opts Options) *Coordinator {
	if deps.Pacer == nil {
		deps.Pacer = NoPacer{}
	}
	if opts.DiscoveryTopK <= 0 {
		opts.DiscoveryTopK = extract.DefaultDiscoveryTopK
	}
	return &Coordinator{deps: deps, opts: opts, state: StateIdle}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Busy reports whether a run is in progress.
func (c *Coordinator) Busy() bool {
	switch c.State() {
	case StateIdle, StateDone, StateAborted:
		return false
	default:
		return true
	}
}

// Result returns the finished result, or nil before the run is done.
func (c *Coordinator) Result() *model.RunResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.result
}

// Schema returns the dimensions chosen for the run.
func (c *Coordinator) Schema() model.Schema {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.schema
}

// RunID returns the persisted run id, empty when no store is configured.
func (c *Coordinator) RunID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runID
}

// Close releases the run's indexed units and vectors.
func (c *Coordinator) Close() {
	c.deps.Index.Reset()
}

// Run executes the full run for query over docs. It may be called once.
func (c *Coordinator) Run(ctx context.Context, query, category string, docs []model.Document) (*Outcome, error) {
	c.mu.Lock()
	if c.ran {
		c.mu.Unlock()
		return nil, ErrAlreadyRan
	}
	c.ran = true
	c.mu.Unlock()

	log := zap.L().With(zap.String("query", query), zap.String("category", category))
	log.Info("pipeline: starting run", zap.Int("documents", len(docs)))
	c.startRun(ctx, query, category)

	// ===== Segmenting =====
	c.transition(ctx, StateSegmenting, "splitting documents into passages")
	var units []model.ContentUnit
	c.trackPhase(ctx, string(StateSegmenting), func() (*model.PhaseResult, error) {
		units = c.deps.Segmenter.Segment(docs)
		return &model.PhaseResult{Metadata: map[string]any{
			"documents": len(docs),
			"units":     len(units),
		}}, nil
	})

	// ===== Indexing =====
	c.transition(ctx, StateIndexing, fmt.Sprintf("indexing %d passages", len(units)))
	if len(units) == 0 {
		log.Info("pipeline: no units produced, aborting")
		return c.abort(ctx, OutcomeNoContent, MessageNoContent, query), nil
	}
	buildErr := c.trackPhase(ctx, string(StateIndexing), func() (*model.PhaseResult, error) {
		return &model.PhaseResult{Metadata: map[string]any{"units": len(units)}},
			c.deps.Index.Build(ctx, units)
	})
	if buildErr != nil {
		log.Error("pipeline: index build failed", zap.Error(buildErr))
		c.setState(StateAborted)
		c.updateRunStatus(ctx, model.RunStatusFailed)
		c.emit(ProgressEvent{Stage: StateAborted, Message: "indexing failed"})
		return nil, eris.Wrapf(ErrIndexing, "build index over %d units", len(units))
	}

	// ===== Schema discovery =====
	c.transition(ctx, StateSchemaDiscovery, "choosing comparison features")
	var schema model.Schema
	c.trackPhase(ctx, string(StateSchemaDiscovery), func() (*model.PhaseResult, error) {
		schema = extract.DiscoverSchema(ctx, c.deps.Generator, query, category)
		return &model.PhaseResult{Metadata: map[string]any{"dimensions": schema.Keys()}}, nil
	})
	c.mu.Lock()
	c.schema = schema
	c.mu.Unlock()

	// ===== Entity discovery =====
	c.transition(ctx, StateEntityDiscovery, "finding products")
	var entities []string
	c.trackPhase(ctx, string(StateEntityDiscovery), func() (*model.PhaseResult, error) {
		entities = extract.DiscoverEntities(ctx, c.deps.Generator, c.deps.Index, query, c.opts.DiscoveryTopK)
		return &model.PhaseResult{Metadata: map[string]any{"entities": len(entities)}}, nil
	})
	if len(entities) == 0 {
		log.Info("pipeline: no entities discovered, aborting")
		return c.abort(ctx, OutcomeNoEntities, MessageNoEntities, query), nil
	}

	// ===== Analyzing =====
	c.transition(ctx, StateAnalyzing, fmt.Sprintf("analyzing %d products", len(entities)))
	var products []model.EntityAnalysis
	err := c.trackPhase(ctx, string(StateAnalyzing), func() (*model.PhaseResult, error) {
		var err error
		products, err = c.analyze(ctx, entities, schema)
		return &model.PhaseResult{Metadata: map[string]any{
			"entities": len(entities),
			"ranked":   len(products),
		}}, err
	})
	if err != nil {
		c.setState(StateAborted)
		c.updateRunStatus(ctx, model.RunStatusFailed)
		return nil, err
	}

	result := &model.RunResult{Query: query, Products: products}
	c.mu.Lock()
	c.result = result
	c.state = StateDone
	c.mu.Unlock()

	c.saveResult(ctx, result)
	msg := fmt.Sprintf("analysis complete with %d entities", len(products))
	c.emit(ProgressEvent{Stage: StateDone, Message: msg, Total: len(products)})
	log.Info("pipeline: run complete", zap.Strings("ranked", result.Names()))

	return &Outcome{Kind: OutcomeComplete, Message: msg, Result: result}, nil
}

// analyze scores entities one at a time, pacing between calls, and returns
// those with a positive overall score ranked best first.
func (c *Coordinator) analyze(ctx context.Context, entities []string, schema model.Schema) ([]model.EntityAnalysis, error) {
	analyzer := extract.NewAnalyzer(c.deps.Generator, c.deps.Index, c.opts.Analyzer)

	products := make([]model.EntityAnalysis, 0, len(entities))
	for i, name := range entities {
		if i > 0 {
			if err := c.deps.Pacer.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "pipeline: pace analysis")
			}
		}
		c.emit(ProgressEvent{
			Stage:   StateAnalyzing,
			Message: fmt.Sprintf("analyzing %s", name),
			Entity:  name,
			Index:   i + 1,
			Total:   len(entities),
		})

		a := analyzer.Analyze(ctx, name, schema)
		if a == nil || a.Overall() <= 0 {
			continue
		}
		products = append(products, *a)
	}

	sort.SliceStable(products, func(i, j int) bool {
		return products[i].Overall() > products[j].Overall()
	})
	return products, nil
}

func (c *Coordinator) abort(ctx context.Context, kind OutcomeKind, message, query string) *Outcome {
	c.setState(StateAborted)
	c.updateRunStatus(ctx, model.RunStatusAborted)
	c.emit(ProgressEvent{Stage: StateAborted, Message: message})
	return &Outcome{
		Kind:    kind,
		Message: message,
		Result:  &model.RunResult{Query: query, Products: []model.EntityAnalysis{}},
	}
}

func (c *Coordinator) transition(ctx context.Context, to State, message string) {
	c.setState(to)
	if status, ok := runStatusByState[to]; ok {
		c.updateRunStatus(ctx, status)
	}
	c.emit(ProgressEvent{Stage: to, Message: message})
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Coordinator) emit(ev ProgressEvent) {
	if c.deps.Observer != nil {
		c.deps.Observer.OnProgress(ev)
	}
}

// --- persistence ---
// Store failures are logged and never change the outcome of a run.

func (c *Coordinator) startRun(ctx context.Context, query, category string) {
	if c.deps.Store == nil {
		return
	}
	run, err := c.deps.Store.CreateRun(ctx, query, category)
	if err != nil {
		zap.L().Warn("pipeline: failed to create run record", zap.Error(err))
		return
	}
	c.mu.Lock()
	c.runID = run.ID
	c.mu.Unlock()
}

func (c *Coordinator) updateRunStatus(ctx context.Context, status model.RunStatus) {
	runID := c.RunID()
	if c.deps.Store == nil || runID == "" {
		return
	}
	if err := c.deps.Store.UpdateRunStatus(ctx, runID, status); err != nil {
		zap.L().Warn("pipeline: failed to update run status",
			zap.String("run_id", runID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

func (c *Coordinator) saveResult(ctx context.Context, result *model.RunResult) {
	runID := c.RunID()
	if c.deps.Store == nil || runID == "" {
		return
	}
	if err := c.deps.Store.UpdateRunResult(ctx, runID, result); err != nil {
		zap.L().Warn("pipeline: failed to save run result", zap.String("run_id", runID), zap.Error(err))
	}
}

// trackPhase runs fn and records it as a phase of the current run. The error
// from fn is returned unchanged.
func (c *Coordinator) trackPhase(ctx context.Context, name string, fn func() (*model.PhaseResult, error)) error {
	log := zap.L().With(zap.String("phase", name))
	runID := c.RunID()

	var phase *model.RunPhase
	if c.deps.Store != nil && runID != "" {
		p, err := c.deps.Store.CreatePhase(ctx, runID, name)
		if err != nil {
			log.Warn("pipeline: failed to create phase", zap.Error(err))
		}
		phase = p
	}

	start := time.Now()
	pr, fnErr := fn()
	if pr == nil {
		pr = &model.PhaseResult{}
	}
	pr.Name = name
	pr.Duration = time.Since(start).Milliseconds()

	if fnErr != nil {
		pr.Status = model.PhaseStatusFailed
		pr.Error = fnErr.Error()
		log.Error("pipeline: phase failed", zap.Int64("duration_ms", pr.Duration), zap.Error(fnErr))
	} else {
		pr.Status = model.PhaseStatusComplete
		log.Info("pipeline: phase complete", zap.Int64("duration_ms", pr.Duration))
	}

	if phase != nil {
		if err := c.deps.Store.CompletePhase(ctx, phase.ID, pr); err != nil {
			log.Warn("pipeline: failed to complete phase", zap.Error(err))
		}
	}
	return fnErr
}
