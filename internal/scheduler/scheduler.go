// Package scheduler runs the bounded worker pool over discovered Call
// Paths: the Path Enumerator (internal/pathenum) is the producer, each
// Constraint Engine invocation (internal/constraint) the unit of work, with
// a per-path wall-clock budget and a global run budget layered on top.
// Grounded on the teacher's Prewarm pool in internal/callgraph/builder.go
// (a jobs-channel plus fixed goroutine fan-out drained by a
// sync.WaitGroup), generalized from "lift one method" units of work to
// "evaluate one call path, then resolve its string-parameter and
// supporting-event results" units — the two pools share the same shape:
// independent, CPU-bound work items whose outcomes are collected rather
// than merged into shared state.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/callgraph"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/config"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/constraint"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/dependency"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/emit"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/entrypoint"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/ir"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/pathenum"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/strparam"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/taint"
)

// EventKind tags a per-path outcome that never became an emitted Event
// Chain.
type EventKind string

const (
	EventTimeout EventKind = "timeout"
	EventError   EventKind = "error"
	EventUnsat   EventKind = "unsat"
)

// Notice records one such outcome: a timeout, an internal error, or a
// dropped infeasible path. Every Notice is sibling-isolated — one path's
// Notice never affects another's evaluation, matching the policy of
// converting exceptions to structured events at the worker boundary rather
// than letting them bubble to the driver.
type Notice struct {
	Kind EventKind
	Path pathenum.CallPath
	Err  error
}

// Scheduler evaluates every Call Path the Path Enumerator discovers against
// the Constraint Engine, bounding worker concurrency and per-path
// wall-clock time, and resolves each surviving path's string-parameter
// classification and supporting-event chain before handing it to an
// internal/emit.Emitter.
type Scheduler struct {
	enumerator *pathenum.Enumerator
	engine     *constraint.Engine
	oracle     constraint.SatOracle
	dependency *dependency.Resolver
	emitter    *emit.Emitter
	pkg        string
	cfg        config.Config
	components map[string]entrypoint.Call
	eventSeq   atomic.Int64
}

// New builds a Scheduler. roots pairs every call-graph root with the
// synthesized entry-point Call that produced it (internal/entrypoint.
// Synthesize's return value), so an emitted Event can report its owning
// component and kind without re-deriving them from a bare method FQN.
func New(graph *callgraph.Graph, cache *callgraph.MethodIRCache, engine *constraint.Engine, oracle constraint.SatOracle, emitter *emit.Emitter, pkg string, cfg config.Config, roots []entrypoint.Call) *Scheduler {
	components := make(map[string]entrypoint.Call, len(roots))
	for _, c := range roots {
		components[c.FullSignature()] = c
	}

	depth := cfg.MaxDependencyDepth
	if depth <= 0 {
		depth = dependency.DefaultMaxDepth
	}

	return &Scheduler{
		enumerator: pathenum.New(graph, cache, cfg.FilterUIEntryPoints),
		engine:     engine,
		oracle:     oracle,
		dependency: dependency.NewResolver(graph, cache, engine, oracle, cfg.ExprSetCap, depth),
		emitter:    emitter,
		pkg:        pkg,
		cfg:        cfg,
		components: components,
	}
}

// Run enumerates every path reaching one of targets and evaluates each
// through the constraint/strparam/dependency pipeline, writing one Chain's
// artifacts per path whose root constraint did not classify TriviallyFalse,
// and collecting a Notice for every path that timed out, errored, or was
// dropped as unsat. Run itself never returns an error: ctx's deadline
// (layered with cfg.GlobalTimeout) is the only form of cancellation. Once it
// fires, a path already being evaluated yields a timeout Notice without
// waiting for its engine run, and paths still queued are skipped with no
// Notice.
func (s *Scheduler) Run(ctx context.Context, targets []string) ([]emit.Chain, []Notice) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.GlobalTimeout)
	defer cancel()

	pathsCh := make(chan pathenum.CallPath, 64)
	collector := &streamingCollector{targets: targetSet(targets), ctx: ctx, out: pathsCh}

	go func() {
		defer close(pathsCh)
		s.enumerator.Enumerate(ctx, collector)
	}()

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = callgraph.OptimalWorkerCount()
	}

	resultsCh := make(chan workerResult, 64)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for path := range pathsCh {
				if ctx.Err() != nil {
					continue
				}
				resultsCh <- s.evaluate(ctx, path)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	var chains []emit.Chain
	var notices []Notice
	chainID := 0
	for res := range resultsCh {
		if res.notice != nil {
			notices = append(notices, *res.notice)
			continue
		}
		chainID++
		res.chain.ID = chainID
		chains = append(chains, *res.chain)
	}

	return chains, notices
}

type workerResult struct {
	chain  *emit.Chain
	notice *Notice
}

// evaluate runs one Call Path through the Constraint Engine under a
// per-path timeout. internal/constraint.Engine.Run carries no cancellation
// hook of its own (its only bound is flow.maxBlockVisits), so the budget is
// enforced by racing the engine goroutine against time.After rather than by
// signaling it to stop: a path that times out is abandoned from the
// scheduler's perspective, with its goroutine left to finish or block on
// its own. This never corrupts shared state since a Call Path's Arena and
// Data Maps are already thread-local to its own Engine.Run call (see
// DESIGN.md's cooperative-cancellation entry for the full reasoning).
func (s *Scheduler) evaluate(ctx context.Context, path pathenum.CallPath) workerResult {
	type outcome struct {
		result *constraint.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic evaluating path: %v", r)}
			}
		}()
		result, err := s.engine.Run(path, s.oracle)
		done <- outcome{result: result, err: err}
	}()

	timeout := s.cfg.PathTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	select {
	case <-ctx.Done():
		return workerResult{notice: &Notice{Kind: EventTimeout, Path: path, Err: ctx.Err()}}
	case <-time.After(timeout):
		return workerResult{notice: &Notice{Kind: EventTimeout, Path: path}}
	case out := <-done:
		if out.err != nil {
			return workerResult{notice: &Notice{Kind: EventError, Path: path, Err: out.err}}
		}
		return s.toChain(ctx, path, out.result)
	}
}

// toChain classifies the root result, resolves its sink's primary
// String-Parameter Constraint and its heap supporting events, and emits the
// resulting Chain's on-disk artifacts. A TriviallyFalse root is silently
// dropped ("Constraint UNSAT: path silently dropped"); Undecided is kept
// with its predicate as-is, same as Sat.
func (s *Scheduler) toChain(ctx context.Context, path pathenum.CallPath, result *constraint.Result) workerResult {
	if result.Feasibility == constraint.TriviallyFalse {
		return workerResult{notice: &Notice{Kind: EventUnsat, Path: path}}
	}

	rootEvent, err := s.emitOne(path.Root, path, result)
	if err != nil {
		return workerResult{notice: &Notice{Kind: EventError, Path: path, Err: err}}
	}

	chain := &emit.Chain{Events: []emit.Event{rootEvent}}
	for _, sup := range s.dependency.Resolve(ctx, result) {
		s.appendSupporters(chain, sup)
	}
	return workerResult{chain: chain}
}

func (s *Scheduler) appendSupporters(chain *emit.Chain, sup dependency.Supporter) {
	ev, err := s.emitOne(sup.Path.Root, sup.Path, sup.Result)
	if err == nil {
		chain.Events = append(chain.Events, ev)
	}
	for _, nested := range sup.Supporters {
		s.appendSupporters(chain, nested)
	}
}

// emitOne resolves the sink's primary String-Parameter Constraint and hands
// path's artifacts to the Emitter. rootFQN is the entry method a path's
// Root names, used to look up its owning component and kind.
func (s *Scheduler) emitOne(rootFQN string, path pathenum.CallPath, result *constraint.Result) (emit.Event, error) {
	tracker := taint.NewTracker(result.Arena, nil, nil)
	resolver := strparam.NewResolver(result.Arena, tracker)

	var primary *strparam.Constraint
	if len(result.SinkArgs) > 0 {
		c := resolver.Resolve(result.SinkArgs[0].Index, result.SinkArgs[0].Set)
		primary = &c
	}

	entryType, component := s.entryInfo(rootFQN)
	eventID := fmt.Sprintf("event-%d", s.eventSeq.Add(1))
	return s.emitter.EmitEvent(s.pkg, eventID, entryType, component, path, result, primary)
}

func (s *Scheduler) entryInfo(rootFQN string) (entryType, component string) {
	if call, ok := s.components[rootFQN]; ok {
		return string(call.Component.Kind), call.Component.Name
	}
	return "supporting", rootFQN
}

// streamingCollector is the pathenum.Plugin that feeds discovered Call
// Paths onto a channel for the worker pool to drain, rather than
// accumulating them in a slice the way internal/pathenum.TargetCollector
// does — Enumerate's DFS is otherwise synchronous, so this is the seam that
// turns it into a producer for the worker pool above. ctx cancellation is
// also checked here so a global timeout stops feeding new work even if the
// DFS itself is mid-walk deep inside a large method.
type streamingCollector struct {
	targets map[string]bool
	ctx     context.Context
	out     chan<- pathenum.CallPath
}

func (c *streamingCollector) IsTarget(stmt *ir.Statement) bool {
	return stmt.Kind == ir.StmtInvoke && c.targets[stmt.CallTarget]
}

func (c *streamingCollector) OnPath(path pathenum.CallPath) {
	if c.ctx.Err() != nil {
		return
	}
	select {
	case c.out <- path:
	case <-c.ctx.Done():
	}
}

func targetSet(targets []string) map[string]bool {
	m := make(map[string]bool, len(targets))
	for _, t := range targets {
		m[t] = true
	}
	return m
}
