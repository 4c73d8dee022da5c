// Package constraint runs the per-path intraprocedural dataflow spec.md §4.5
// describes: starting from fresh Input variables at a Call Path's root,
// thread a Data Map through each hop's control-flow graph, strengthen the
// running path constraint with each hop's branch conditions, hand actuals
// off to the next method's locals at the call site, and assemble the final
// path constraint at the sink. Built on internal/predicate's Arena/DataMap/
// ExprSet/Predicate algebra and internal/ir's Statement/CFG shape; grounded
// on the same forward, block-ordered traversal internal/icc and
// internal/pathenum already share via ir.CFG.BlocksInOrder.
package constraint

import (
	"fmt"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/ir"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/pathenum"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/predicate"
)

// Feasibility is the path constraint's disposition after minimization and
// (if available) an oracle query (spec.md §4.5 "Path-constraint assembly").
type Feasibility int

const (
	// Undecided means minimization left a non-trivial predicate and no
	// oracle was available, or the oracle itself could not decide it.
	Undecided Feasibility = iota
	// Sat means the path constraint is satisfiable: the path is reachable.
	Sat
	// TriviallyFalse means the path is infeasible and should be dropped.
	TriviallyFalse
)

func (f Feasibility) String() string {
	switch f {
	case Sat:
		return "sat"
	case TriviallyFalse:
		return "trivially_false"
	default:
		return "undecided"
	}
}

// SinkArg is one argument of the sink invocation paired with its resolved
// Expression-Set, immediately before the sink statement executes.
type SinkArg struct {
	Index int
	Set   *predicate.ExprSet
}

// Result is the per-path outcome downstream consumers (internal/strparam,
// internal/dependency, internal/emit) work from.
type Result struct {
	Arena          *predicate.Arena
	PathConstraint *predicate.Predicate
	Feasibility    Feasibility
	SinkDataMap    *predicate.DataMap
	SinkArgs       []SinkArg
}

// SatOracle decides satisfiability of a minimized predicate over the
// arena's expressions. internal/oracle supplies the concrete
// bounded-enumeration default; a nil oracle leaves every non-trivial
// predicate Undecided rather than guessing.
type SatOracle interface {
	Query(arena *predicate.Arena, p *predicate.Predicate) (sat bool, decided bool)
}

// CFGProvider supplies a method's lifted CFG. internal/callgraph.MethodIRCache
// satisfies this directly.
type CFGProvider interface {
	CFG(methodFQN string) (*ir.CFG, bool, error)
}

// Engine runs one path's dataflow chain. A fresh Engine and Arena are used
// per Call Path: Data Maps and Expressions are thread-local to a path
// (spec.md §5), never shared across the worker pool that evaluates paths
// concurrently.
type Engine struct {
	cache      CFGProvider
	exprSetCap int
}

// NewEngine builds an Engine backed by cache, bounding Expression-Sets at
// exprSetCap entries (0 selects predicate.DefaultExprSetCap).
func NewEngine(cache CFGProvider, exprSetCap int) *Engine {
	return &Engine{cache: cache, exprSetCap: exprSetCap}
}

// Run executes the edge-handoff chain of spec.md §4.5 over path and
// assembles the final path constraint at the sink. oracle may be nil.
func (e *Engine) Run(path pathenum.CallPath, oracle SatOracle) (*Result, error) {
	arena := predicate.NewArena()
	pathID := path.Root

	curMethod := path.Root
	cfg, ok, err := e.cache.CFG(curMethod)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("constraint: no CFG for root method %s", curMethod)
	}

	dm := initialDataMap(arena, cfg, pathID, e.exprSetCap)
	pathConstraint := predicate.True()

	for i, step := range path.Steps {
		flow := newMethodFlow(arena, cfg, e.exprSetCap)
		before := flow.run(dm, step.CallSite.ID)
		if before == nil {
			return nil, fmt.Errorf("constraint: call site %s unreachable in %s", step.CallSite.ID, curMethod)
		}
		pathConstraint = predicate.And(pathConstraint, before.ControlFlowConstraint)

		nextMethod := path.SinkMethod
		if i+1 < len(path.Steps) {
			nextMethod = path.Steps[i+1].Method
		}
		nextCFG, ok, err := e.cache.CFG(nextMethod)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("constraint: no CFG for %s", nextMethod)
		}

		dm = handoff(arena, before, step.CallSite, nextCFG, e.exprSetCap)
		cfg = nextCFG
		curMethod = nextMethod
	}

	flow := newMethodFlow(arena, cfg, e.exprSetCap)
	sinkBefore := flow.run(dm, path.Sink.ID)
	if sinkBefore == nil {
		return nil, fmt.Errorf("constraint: sink statement %s unreachable in %s", path.Sink.ID, curMethod)
	}
	pathConstraint = predicate.And(pathConstraint, sinkBefore.ControlFlowConstraint)

	sinkArgs := make([]SinkArg, 0, len(path.Sink.Args))
	for idx, arg := range path.Sink.Args {
		sinkArgs = append(sinkArgs, SinkArg{Index: idx, Set: operandSet(arena, sinkBefore, arg, e.exprSetCap)})
	}

	minimized := arena.Minimize(pathConstraint)
	feasibility := classify(arena, minimized, oracle)

	return &Result{
		Arena:          arena,
		PathConstraint: minimized,
		Feasibility:    feasibility,
		SinkDataMap:    sinkBefore,
		SinkArgs:       sinkArgs,
	}, nil
}

func classify(arena *predicate.Arena, p *predicate.Predicate, oracle SatOracle) Feasibility {
	switch p.Kind {
	case predicate.KindFalse:
		return TriviallyFalse
	case predicate.KindTrue:
		return Sat
	}
	if oracle == nil {
		return Undecided
	}
	if sat, decided := oracle.Query(arena, p); decided {
		if sat {
			return Sat
		}
		return TriviallyFalse
	}
	return Undecided
}

// initialDataMap builds the per-path entry Data Map (spec.md §4.5 "Per-path
// entry"): a fresh Input variable for the receiver (slot -1, if the entry
// method is an instance method) and for each formal parameter.
func initialDataMap(arena *predicate.Arena, cfg *ir.CFG, pathID string, exprSetCap int) *predicate.DataMap {
	dm := predicate.NewDataMap(exprSetCap)
	if !cfg.IsStatic {
		v := arena.NewInputVariable(pathID, -1, cfg.ReceiverType)
		dm.SetLocal("this", arena.VarRef(v))
	}
	for _, p := range cfg.Params {
		v := arena.NewInputVariable(pathID, p.SlotIndex, p.Type)
		dm.SetLocal(p.Name, arena.VarRef(v))
	}
	return dm
}

// handoff builds the callee's initial Data Map from the caller's Data Map
// immediately before the call site, copying Expression-Sets for local
// actuals and synthesizing Constant Expression-Sets for literal actuals
// (spec.md §4.5 "Edge handoff"). internal/ir keeps an invoke's receiver in
// its own Statement field rather than folding it into Args, so Args and the
// callee's Params always align positionally regardless of static/instance
// dispatch — the "shift argument indices by one" case spec.md §4.5
// describes for combined-array IRs does not arise here.
func handoff(arena *predicate.Arena, callerDM *predicate.DataMap, callSite *ir.Statement, calleeCFG *ir.CFG, exprSetCap int) *predicate.DataMap {
	dm := predicate.NewDataMap(exprSetCap)
	if callSite.HasReceiver && !calleeCFG.IsStatic {
		dm.LocalMap["this"] = operandSet(arena, callerDM, callSite.Receiver, exprSetCap)
	}
	for i, p := range calleeCFG.Params {
		if i < len(callSite.Args) {
			dm.LocalMap[p.Name] = operandSet(arena, callerDM, callSite.Args[i], exprSetCap)
		}
	}
	return dm
}

// ResolveOperand exposes operandSet's resolution to other packages (notably
// internal/dependency, which targets FieldWrite statements rather than
// Invoke sinks and so needs the written value's Expression-Set directly
// from a Result's SinkDataMap instead of via Result.SinkArgs).
func ResolveOperand(arena *predicate.Arena, dm *predicate.DataMap, op ir.Operand, exprSetCap int) *predicate.ExprSet {
	return operandSet(arena, dm, op, exprSetCap)
}

// operandSet resolves an ir.Operand against dm: a local actual copies its
// existing Expression-Set, a literal actual synthesizes a singleton
// Constant set.
func operandSet(arena *predicate.Arena, dm *predicate.DataMap, op ir.Operand, exprSetCap int) *predicate.ExprSet {
	if op.IsLiteral {
		v := arena.NewConstant(op.Type, op.Literal)
		return predicate.Singleton(exprSetCap, arena.VarRef(v))
	}
	return dm.Local(op.Local).Clone()
}
