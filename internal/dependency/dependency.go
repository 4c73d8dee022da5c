// Package dependency implements the recursive Supporting-Event search
// spec.md §4.7 describes: for a Heap variable referenced in a root (or
// supporting) event's final constraint, search the call graph — via
// internal/pathenum reused with a field-write-targeting plugin rather than
// its default sink-targeting one — for other paths that write a matching
// heap field, run each candidate through internal/constraint to obtain its
// dependence constraint, and keep the ones that remain feasible. Supporting
// events recurse into their own Heap dependencies up to a configurable
// depth.
package dependency

import (
	"context"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/callgraph"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/constraint"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/ir"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/pathenum"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/predicate"
)

// DefaultMaxDepth bounds recursive supporter resolution (spec.md §4.7
// "recursion is bounded by a configurable depth").
const DefaultMaxDepth = 3

// Supporter is one Supporting Event (spec.md §3 "Event Chain"): a Call Path
// whose dependence constraint asserts that executing it establishes the
// heap value its consumer reads, plus any further supporters it itself
// depends on.
type Supporter struct {
	Path                 pathenum.CallPath
	Result               *constraint.Result
	DependenceConstraint *predicate.Predicate
	Field                string
	Supporters           []Supporter
}

// Resolver searches for Supporting Events over the same call graph the Path
// Enumerator already walked for root events.
//
// Cross-path SAT note: spec.md §3 states a chain is satisfiable when "the
// conjunction of all constraints and dependence constraints is SAT under
// the oracle". Each internal/constraint.Engine.Run call builds its own
// Arena (Data Maps and Expressions are explicitly thread-local to a path,
// per spec.md §5), so a root's PathConstraint and a supporter's dependence
// constraint reference two disjoint Arenas and cannot be combined into one
// predicate.Predicate tree via And — their ExprIDs are only meaningful
// within their own Arena. Resolver therefore checks joint satisfiability by
// requiring every constraint in the chain to independently classify as Sat
// or Undecided (never TriviallyFalse) rather than building a merged
// formula; this is a conservative reading of the spec's SAT requirement
// given the architecture's per-path Arena isolation (see DESIGN.md).
type Resolver struct {
	enumerator *pathenum.Enumerator
	engine     *constraint.Engine
	oracle     constraint.SatOracle
	exprSetCap int
	maxDepth   int
}

// NewResolver builds a Resolver. graph and cache are the same call graph
// and CFG cache the root Path Enumerator used; engine runs each candidate
// supporter path; oracle may be nil (every non-trivial constraint is then
// kept Undecided rather than guessed, matching internal/constraint).
func NewResolver(graph *callgraph.Graph, cache *callgraph.MethodIRCache, engine *constraint.Engine, oracle constraint.SatOracle, exprSetCap, maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Resolver{
		enumerator: pathenum.New(graph, cache, false),
		engine:     engine,
		oracle:     oracle,
		exprSetCap: exprSetCap,
		maxDepth:   maxDepth,
	}
}

// Resolve finds supporters for every Heap variable that occurs in result's
// PathConstraint or in one of its SinkArgs' Expression-Sets (spec.md §3
// invariant: "A Heap dependency appears in an Event only if its symbolic
// value occurs in the Event's final constraint"), recursing into each
// supporter's own dependencies up to the configured depth.
func (r *Resolver) Resolve(ctx context.Context, result *constraint.Result) []Supporter {
	return r.resolve(ctx, result, 0)
}

func (r *Resolver) resolve(ctx context.Context, result *constraint.Result, depth int) []Supporter {
	if depth >= r.maxDepth || ctx.Err() != nil {
		return nil
	}

	// A Heap dependency is tracked whether it occurs in the branch predicate
	// or in a sink argument's Expression-Set — spec.md §4.5's FieldRead rule
	// adds a Heap variable to the path's heap-dependency set whenever it is
	// "used subsequently by the emitted constraint", and a sink argument's
	// String-Parameter Constraint (spec.md §4.6) is as much a part of the
	// Event's emitted constraint as its ControlFlowConstraint.
	fields := heapFieldsIn(result.Arena, result.PathConstraint)
	for _, arg := range result.SinkArgs {
		for field := range heapFieldsInSet(result.Arena, arg.Set) {
			fields[field] = true
		}
	}
	if len(fields) == 0 {
		return nil
	}

	collector := &fieldWriteCollector{fields: fields}
	r.enumerator.Enumerate(ctx, collector)

	var out []Supporter
	for _, path := range collector.paths {
		if ctx.Err() != nil {
			break
		}

		supResult, err := r.engine.Run(path, r.oracle)
		if err != nil || supResult == nil || supResult.Feasibility == constraint.TriviallyFalse {
			continue
		}

		stmt := path.Sink
		valueSet := constraint.ResolveOperand(supResult.Arena, supResult.SinkDataMap, stmt.Value, r.exprSetCap)
		if valueSet.Empty() {
			continue
		}

		sup := Supporter{
			Path:                 path,
			Result:               supResult,
			DependenceConstraint: supResult.PathConstraint,
			Field:                stmt.FieldOwnerType + "." + stmt.FieldName,
		}
		sup.Supporters = r.resolve(ctx, supResult, depth+1)
		out = append(out, sup)
	}
	return out
}

// fieldWriteCollector is the specialized pathenum.Plugin spec.md §4.7 calls
// for: it targets FieldWrite statements whose (declaring type, field name)
// matches one of the heap fields being searched for, rather than invoke
// statements against a sink signature set.
type fieldWriteCollector struct {
	fields map[string]bool
	paths  []pathenum.CallPath
}

func (c *fieldWriteCollector) IsTarget(stmt *ir.Statement) bool {
	return stmt.Kind == ir.StmtFieldWrite && c.fields[stmt.FieldOwnerType+"."+stmt.FieldName]
}

func (c *fieldWriteCollector) OnPath(path pathenum.CallPath) {
	c.paths = append(c.paths, path)
}

// heapFieldsIn collects the declaring-type-qualified field name of every
// Heap variable referenced as an atom anywhere in p.
func heapFieldsIn(arena *predicate.Arena, p *predicate.Predicate) map[string]bool {
	fields := map[string]bool{}
	var walk func(p *predicate.Predicate)
	walk = func(p *predicate.Predicate) {
		if p == nil {
			return
		}
		switch p.Kind {
		case predicate.KindAtom:
			for _, v := range arena.Vars(p.Atom) {
				variable := arena.Variable(v)
				if variable.Kind == predicate.VarHeap {
					fields[variable.HeapField] = true
				}
			}
		case predicate.KindNot:
			walk(p.Operand)
		case predicate.KindAnd, predicate.KindOr:
			for _, o := range p.Operands {
				walk(o)
			}
		}
	}
	walk(p)
	return fields
}

// heapFieldsInSet collects the same thing as heapFieldsIn but over every
// expression currently tracked in an Expression-Set (e.g. a sink argument's
// String-Parameter Constraint set).
func heapFieldsInSet(arena *predicate.Arena, set *predicate.ExprSet) map[string]bool {
	fields := map[string]bool{}
	for _, e := range set.Items() {
		for _, v := range arena.Vars(e) {
			variable := arena.Variable(v)
			if variable.Kind == predicate.VarHeap {
				fields[variable.HeapField] = true
			}
		}
	}
	return fields
}
