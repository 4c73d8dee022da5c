// Package pathenum performs the plugin-driven depth-first traversal spec.md
// §4.3 describes: from each synthesized root, walk the call graph, let a
// plugin decide which statements are targets, and report one Call Path per
// distinct acyclic method sequence reaching a target. Grounded on the
// visitor/plugin shape of the teacher's
// graph/callgraph/builder/integration.go (an external-registry-driven pass
// over already-built call-graph data), adapted from whole-graph visitation
// to root-to-sink path discovery.
package pathenum

import (
	"context"
	"strings"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/callgraph"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/ir"
)

// Step is one hop of a discovered path: the method the hop departs from and
// the invoke statement taken.
type Step struct {
	Method   string
	CallSite *ir.Statement
}

// CallPath is one root-to-sink acyclic method sequence (spec.md §4.3
// "Output").
type CallPath struct {
	Root       string
	Steps      []Step
	SinkMethod string
	Sink       *ir.Statement
}

// Plugin observes each statement visited during traversal. It may declare a
// statement a target and is called back on every path discovered to one
// (spec.md §4.3: "a plugin observes each statement and may ... declare the
// statement a target ... and receive a callback on every discovered target
// path").
type Plugin interface {
	IsTarget(stmt *ir.Statement) bool
	OnPath(path CallPath)
}

// TargetCollector is the default Plugin: a statement is a target when its
// resolved call signature is in the configured sink set; every discovered
// path is appended to Paths.
type TargetCollector struct {
	Targets map[string]bool
	Paths   []CallPath
}

// NewTargetCollector builds a TargetCollector from the configured sink
// signature list (spec.md §6's target file, `internal/config.LoadTargets`).
func NewTargetCollector(targets []string) *TargetCollector {
	m := make(map[string]bool, len(targets))
	for _, t := range targets {
		m[t] = true
	}
	return &TargetCollector{Targets: m}
}

func (t *TargetCollector) IsTarget(stmt *ir.Statement) bool {
	return stmt.Kind == ir.StmtInvoke && t.Targets[stmt.CallTarget]
}

func (t *TargetCollector) OnPath(path CallPath) {
	t.Paths = append(t.Paths, path)
}

// Enumerator walks a built call graph from its roots.
type Enumerator struct {
	graph    *callgraph.Graph
	cache    *callgraph.MethodIRCache
	filterUI bool
}

// New builds an Enumerator. filterUI implements spec.md §4.3's "Filtering":
// "Paths whose entry class name indicates a UI click handler are discarded
// by policy (configurable)."
func New(graph *callgraph.Graph, cache *callgraph.MethodIRCache, filterUI bool) *Enumerator {
	return &Enumerator{graph: graph, cache: cache, filterUI: filterUI}
}

// Enumerate runs the DFS from every root, feeding plugin.
func (e *Enumerator) Enumerate(ctx context.Context, plugin Plugin) {
	for _, root := range e.graph.Roots() {
		if e.filterUI && looksLikeUIClickHandler(root) {
			continue
		}
		e.walk(ctx, root, root, nil, map[string]bool{root: true}, plugin)
	}
}

// walk visits method's statements in control-flow order. Cycles are
// suppressed by requiring the node sequence on the current path to stay
// simple: onPath is mutated on entry to a hop and restored on return, so it
// always reflects exactly the methods on the active DFS branch.
func (e *Enumerator) walk(ctx context.Context, root, method string, trail []Step, onPath map[string]bool, plugin Plugin) {
	if ctx.Err() != nil {
		return
	}
	cfg, ok, err := e.cache.CFG(method)
	if err != nil || !ok {
		return
	}

	for _, b := range cfg.BlocksInOrder() {
		for _, stmt := range b.Statements {
			// A target needn't be an Invoke (internal/dependency targets
			// FieldWrite statements); only Invoke statements carry outgoing
			// call-graph edges, so recursion below still only fires for them.
			if plugin.IsTarget(stmt) {
				plugin.OnPath(CallPath{
					Root:       root,
					Steps:      append([]Step{}, trail...),
					SinkMethod: method,
					Sink:       stmt,
				})
			}

			if stmt.Kind != ir.StmtInvoke {
				continue
			}

			for _, edge := range e.graph.Edges(method) {
				if edge.CallSite != stmt.ID || edge.Imprecise || edge.Target == "" {
					continue
				}
				if onPath[edge.Target] {
					continue
				}
				onPath[edge.Target] = true
				e.walk(ctx, root, edge.Target, append(trail, Step{Method: method, CallSite: stmt}), onPath, plugin)
				delete(onPath, edge.Target)
			}
		}
	}
}

// looksLikeUIClickHandler is the configurable heuristic spec.md §4.3 leaves
// unspecified beyond "indicates a UI click handler".
func looksLikeUIClickHandler(methodFQN string) bool {
	lower := strings.ToLower(methodFQN)
	return strings.Contains(lower, "onclick") || strings.Contains(lower, "clicklistener")
}
