// Package callgraph builds the directed multigraph spec.md §4.3 calls for:
// nodes are methods, edges are (source-node, call-site-unit, target-node,
// kind), constructed over the synthetic root with ICC edges merged in. The
// points-to pass proper is assumed external by spec.md; Builder's direct-call
// resolution is the bounded concrete default described in DESIGN.md (prefix
// match on declared methods, no virtual-dispatch inference), grounded on the
// teacher's graph/callgraph/builder/builder.go three-pass shape, trimmed to
// one pass since this IR has no separate import/module-registry phase.
package callgraph

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"sync"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/config"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/entrypoint"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/icc"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/ir"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/manifest"
)

// OptimalWorkerCount mirrors the teacher's CPU-share heuristic
// (graph/callgraph/builder/builder.go's getOptimalWorkerCount): 75% of
// available cores, clamped to [2, 16], overridable via an env var.
func OptimalWorkerCount() int {
	if env := os.Getenv("PATHSENTINEL_MAX_WORKERS"); env != "" {
		if n, err := strconv.Atoi(env); err == nil && n > 0 {
			if n > 32 {
				n = 32
			}
			return n
		}
	}

	cpu := runtime.NumCPU()
	workers := int(float64(cpu) * 0.75)
	if workers < 2 {
		workers = 2
	}
	if workers > 16 {
		workers = 16
	}
	return workers
}

// Kind tags an Edge's origin.
type Kind string

const (
	KindDirect Kind = "direct"
	KindICC    Kind = "icc"
)

// Edge is one call-graph edge. Target is empty when Imprecise (an ICC site
// whose component could not be narrowed, per spec.md §4.2's imprecision
// policy — "the resulting paths are retained but flagged").
type Edge struct {
	Source    string
	CallSite  string
	Target    string
	Kind      Kind
	ICCKind   icc.Kind
	Imprecise bool
}

// Graph is the traversal structure internal/pathenum walks.
type Graph struct {
	mu    sync.Mutex
	roots []string
	edges map[string][]Edge
}

func newGraph() *Graph {
	return &Graph{edges: map[string][]Edge{}}
}

func (g *Graph) addEdge(e Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges[e.Source] = append(g.edges[e.Source], e)
}

// Roots returns the synthetic entry-point method FQNs.
func (g *Graph) Roots() []string { return g.roots }

// Edges returns the outgoing edges of methodFQN.
func (g *Graph) Edges(methodFQN string) []Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.edges[methodFQN]
}

// Builder constructs a Graph by traversing from synthesized entry points.
type Builder struct {
	cache *MethodIRCache
	inv   *manifest.Inventory
	cfg   config.Config
}

// NewBuilder constructs a Builder over cache, resolving ICC targets against inv.
func NewBuilder(cache *MethodIRCache, inv *manifest.Inventory, cfg config.Config) *Builder {
	return &Builder{cache: cache, inv: inv, cfg: cfg}
}

// Prewarm concurrently lifts each of methodFQNs into cache, using a bounded
// worker pool sized per OptimalWorkerCount (or cfg.Workers if set). This is
// the one genuinely parallel phase: per-method lifting is independent and
// I/O/CPU bound, unlike the traversal itself, which mutates a shared graph
// and stays sequential.
func Prewarm(ctx context.Context, cache *MethodIRCache, methodFQNs []string, workers int) {
	if workers <= 0 {
		workers = OptimalWorkerCount()
	}
	if workers > len(methodFQNs) {
		workers = len(methodFQNs)
	}
	if workers == 0 {
		return
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for fqn := range jobs {
				if ctx.Err() != nil {
					continue
				}
				_, _, _ = cache.CFG(fqn) // errors/misses surface again during traversal
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, fqn := range methodFQNs {
			select {
			case jobs <- fqn:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
}

// Build performs a simple-path-suppressing BFS over calls (the entry points
// internal/entrypoint.Synthesize produced), merging direct-call edges with
// ICC edges from internal/icc.Resolve. Traversal itself is sequential (the
// graph is shared mutable state); the expensive per-method lift is
// pre-warmed in parallel beforehand via Prewarm.
func (b *Builder) Build(ctx context.Context, roots []entrypoint.Call) *Graph {
	g := newGraph()
	rootFQNs := make([]string, len(roots))
	for i, c := range roots {
		rootFQNs[i] = c.FullSignature()
	}
	g.roots = rootFQNs

	workers := b.cfg.Workers
	Prewarm(ctx, b.cache, rootFQNs, workers)

	visited := map[string]bool{}
	queue := append([]string{}, rootFQNs...)
	for len(queue) > 0 {
		if ctx.Err() != nil {
			break
		}
		fqn := queue[0]
		queue = queue[1:]
		if visited[fqn] {
			continue
		}
		visited[fqn] = true
		queue = append(queue, b.process(fqn, g)...)
	}

	return g
}

func (b *Builder) process(fqn string, g *Graph) []string {
	cfg, ok, err := b.cache.CFG(fqn)
	if err != nil || !ok {
		return nil
	}

	var next []string
	for _, blk := range cfg.Blocks {
		for _, stmt := range blk.Statements {
			if stmt.Kind != ir.StmtInvoke || stmt.Unresolved {
				continue
			}
			target, ok := b.cache.Resolve(stmt.CallTarget)
			if !ok {
				continue
			}
			g.addEdge(Edge{Source: fqn, CallSite: stmt.ID, Target: target, Kind: KindDirect})
			next = append(next, target)
		}
	}

	for _, e := range icc.Resolve(cfg, b.inv) {
		if e.Imprecise {
			g.addEdge(Edge{Source: fqn, CallSite: e.StatementID, Kind: KindICC, ICCKind: e.Kind, Imprecise: true})
			continue
		}
		target, ok := b.cache.ResolveEntryMethod(e.TargetComponent, e.TargetMethod)
		if !ok {
			g.addEdge(Edge{Source: fqn, CallSite: e.StatementID, Kind: KindICC, ICCKind: e.Kind, Imprecise: true})
			continue
		}
		g.addEdge(Edge{Source: fqn, CallSite: e.StatementID, Target: target, Kind: KindICC, ICCKind: e.Kind})
		next = append(next, target)
	}

	return next
}
