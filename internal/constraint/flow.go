package constraint

import (
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/ir"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/predicate"
)

// maxBlockVisits bounds how many times the worklist revisits a single basic
// block. It is the explicit termination device for loops: Predicate trees
// are not interned (two Merge calls over an unchanged branch fact build two
// distinct-but-equal trees), so comparing Data Maps for a bit-exact
// fixpoint would need structural Predicate equality on every iteration.
// Capping visits per block, on top of the Expression-Set cap's
// widening-by-replacement, guarantees termination deterministically instead.
const maxBlockVisits = 3

// methodFlow computes, for one method's CFG, the Data Map immediately
// before every statement, via a forward worklist over basic blocks
// (spec.md §3 "the standard monotone fixpoint" with §4.5's Expression-Set
// cap as the widening operator).
type methodFlow struct {
	arena *predicate.Arena
	cfg   *ir.CFG
	cap   int

	in     map[string]*predicate.DataMap
	visits map[string]int
}

func newMethodFlow(arena *predicate.Arena, cfg *ir.CFG, cap int) *methodFlow {
	return &methodFlow{
		arena:  arena,
		cfg:    cfg,
		cap:    cap,
		in:     map[string]*predicate.DataMap{},
		visits: map[string]int{},
	}
}

// run seeds the entry block with entryDM and drains the worklist, returning
// the Data Map observed immediately before the statement identified by
// haltStatementID (nil if that statement is never reached).
func (f *methodFlow) run(entryDM *predicate.DataMap, haltStatementID string) *predicate.DataMap {
	f.in[f.cfg.Entry] = entryDM
	queue := []string{f.cfg.Entry}
	queued := map[string]bool{f.cfg.Entry: true}

	var haltDM *predicate.DataMap

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		queued[id] = false

		if f.visits[id] >= maxBlockVisits {
			continue
		}
		f.visits[id]++

		block := f.cfg.Block(id)
		dm := f.in[id]
		if block == nil || dm == nil {
			continue
		}

		cur := dm.Clone()
		terminal := false
		for _, stmt := range block.Statements {
			if stmt.ID == haltStatementID {
				haltDM = cur
			}
			switch stmt.Kind {
			case ir.StmtConditionalBranch:
				f.propagateConditional(stmt, cur, &queue, queued)
				terminal = true
			case ir.StmtReturn:
				for _, succ := range block.Successors {
					f.propagate(succ, cur, &queue, queued)
				}
				terminal = true
			default:
				cur = f.transfer(cur, stmt)
			}
			if terminal {
				break
			}
		}
		if !terminal {
			for _, succ := range block.Successors {
				f.propagate(succ, cur, &queue, queued)
			}
		}
	}

	return haltDM
}

func (f *methodFlow) propagate(succID string, fact *predicate.DataMap, queue *[]string, queued map[string]bool) {
	if succID == "" {
		return
	}
	f.in[succID] = predicate.Merge(f.in[succID], fact)
	if !queued[succID] {
		queued[succID] = true
		*queue = append(*queue, succID)
	}
}

// propagateConditional strengthens true/false successor Data Maps with the
// branch condition and its negation (spec.md §4.5 "ConditionalBranch").
// Since the condition local's Expression-Set may hold several candidate
// expressions after an earlier join, the branch atom disjoins AtomP over
// each: "this branch was taken because at least one of these held".
func (f *methodFlow) propagateConditional(stmt *ir.Statement, cur *predicate.DataMap, queue *[]string, queued map[string]bool) {
	condSet := operandSet(f.arena, cur, stmt.Condition, f.cap)

	var atom *predicate.Predicate
	items := condSet.Items()
	if len(items) == 0 {
		// No tracked expression for the condition: imprecision, left
		// unconstrained rather than guessed.
		atom = predicate.True()
	} else {
		disjuncts := make([]*predicate.Predicate, len(items))
		for i, e := range items {
			disjuncts[i] = predicate.AtomP(e)
		}
		atom = predicate.Or(disjuncts...)
	}

	trueDM := cur.Clone()
	trueDM.Strengthen(atom)
	f.propagate(stmt.TrueBlock, trueDM, queue, queued)

	falseDM := cur.Clone()
	falseDM.Strengthen(predicate.Not(atom))
	f.propagate(stmt.FalseBlock, falseDM, queue, queued)
}

// transfer applies one statement's effect to dm, returning a new Data Map
// (dm itself is left untouched so a caller holding it as a "before"
// snapshot stays valid). Implements spec.md §4.5's per-kind transfer rules.
func (f *methodFlow) transfer(dm *predicate.DataMap, stmt *ir.Statement) *predicate.DataMap {
	out := dm.Clone()

	switch stmt.Kind {
	case ir.StmtCopy, ir.StmtLiteral:
		out.LocalMap[stmt.Def] = operandSet(f.arena, dm, stmt.A, f.cap)

	case ir.StmtUnary:
		aSet := operandSet(f.arena, dm, stmt.A, f.cap)
		newSet := predicate.NewExprSet(f.cap)
		for _, a := range aSet.Items() {
			newSet.Add(f.arena.Arith(stmt.Op, a, 0))
		}
		out.LocalMap[stmt.Def] = newSet

	case ir.StmtBinary, ir.StmtStringConcat:
		aSet := operandSet(f.arena, dm, stmt.A, f.cap)
		bSet := operandSet(f.arena, dm, stmt.B, f.cap)
		newSet := predicate.NewExprSet(f.cap)
		for _, a := range aSet.Items() {
			for _, b := range bSet.Items() {
				if stmt.Kind == ir.StmtStringConcat {
					newSet.Add(f.arena.StringConcat(a, b))
				} else {
					newSet.Add(f.arena.Arith(stmt.Op, a, b))
				}
			}
		}
		out.LocalMap[stmt.Def] = newSet

	case ir.StmtInvoke:
		var receiverVar predicate.VariableID
		hasReceiver := false
		if stmt.HasReceiver {
			if rv, ok := singleVariable(f.arena, dm, stmt.Receiver, f.cap); ok {
				receiverVar, hasReceiver = rv, true
			}
		}
		var literalArgs []string
		argExprs := make([]predicate.ExprID, len(stmt.Args))
		for i, a := range stmt.Args {
			if a.IsLiteral {
				if s, ok := a.Literal.(string); ok {
					literalArgs = append(literalArgs, s)
				}
			}
			if items := operandSet(f.arena, dm, a, f.cap).Items(); len(items) > 0 {
				argExprs[i] = items[0]
			}
		}
		mcv := f.arena.NewMethodCall(stmt.ID, stmt.CallTarget, receiverVar, hasReceiver, literalArgs, stmt.ReturnType, argExprs...)
		if stmt.Def != "" {
			out.LocalMap[stmt.Def] = predicate.Singleton(f.cap, f.arena.VarRef(mcv))
		}

	case ir.StmtFieldRead:
		key := f.heapKey(dm, stmt.FieldOwner, stmt.FieldOwnerType, stmt.FieldName)
		set := dm.Heap(key)
		if set == nil || set.Empty() {
			hv := f.arena.NewHeap(key.Receiver, key.Field, "")
			set = predicate.Singleton(f.cap, f.arena.VarRef(hv))
			out.SetHeap(key, set)
		}
		if stmt.Def != "" {
			out.LocalMap[stmt.Def] = set.Clone()
		}

	case ir.StmtFieldWrite:
		key := f.heapKey(dm, stmt.FieldOwner, stmt.FieldOwnerType, stmt.FieldName)
		out.SetHeap(key, operandSet(f.arena, dm, stmt.Value, f.cap))
	}

	return out
}

// heapKey resolves a field owner operand to a HeapKey, falling back to the
// zero VariableID (receiver-less) for static fields.
func (f *methodFlow) heapKey(dm *predicate.DataMap, owner ir.Operand, ownerType, field string) predicate.HeapKey {
	var recv predicate.VariableID
	if !owner.IsLiteral {
		if rv, ok := singleVariable(f.arena, dm, owner, f.cap); ok {
			recv = rv
		}
	}
	return predicate.HeapKey{Receiver: recv, Field: ownerType + "." + field}
}

// singleVariable extracts a single underlying VariableID for an operand
// known to denote an object reference (a receiver or field owner). Such
// operands are, in practice, always bound to a VarRef expression (objects
// come from Input/MethodCall/FieldAccess/Heap variables, never from
// Arith/StringConcat composites), so the first tracked expression's
// variable is representative.
func singleVariable(arena *predicate.Arena, dm *predicate.DataMap, op ir.Operand, cap int) (predicate.VariableID, bool) {
	set := operandSet(arena, dm, op, cap)
	items := set.Items()
	if len(items) == 0 {
		return 0, false
	}
	e := arena.Expr(items[0])
	if e.Kind != predicate.ExprVarRef {
		return 0, false
	}
	return e.Var, true
}
