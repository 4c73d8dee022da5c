// Package oracle supplies the in-tree default internal/constraint.SatOracle.
// The SMT backend is treated as an external collaborator, reachable only
// through the satisfiability interface; this package stands in for it with
// a bounded-enumeration decision procedure rather than shelling out to a
// standalone solver. Every atom that does not resolve to a Constant via
// arena.Literal is treated as a free boolean variable — internal/predicate.
// Minimize has already folded away any complementary-atom conflicts and
// constant atoms within a single conjunction, so the remaining question is
// pure propositional satisfiability over the free-atom set, which a
// truth-table walk decides exactly. A Constant atom that reaches this
// oracle unfolded (queried directly, or nested somewhere Minimize's
// fixpoint did not simplify) is still folded to its literal truth value
// here rather than enumerated, so a literal `if (false)` guard is never
// misreported as satisfiable. github.com/expr-lang/expr (already used for
// DSL-style expression evaluation in the sibling sourcecode-parser module)
// compiles the predicate's boolean skeleton once and re-runs it per
// assignment.
package oracle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/predicate"
)

// DefaultMaxAtoms bounds truth-table enumeration. 20 atoms is already a
// million assignments; beyond that the oracle reports Undecided rather than
// stall the path worker pool.
const DefaultMaxAtoms = 20

// BoundedEnumeration is the default SatOracle: it exhaustively tries every
// boolean assignment of a predicate's atoms up to MaxAtoms, short-circuiting
// on the first assignment it finds satisfying.
type BoundedEnumeration struct {
	MaxAtoms int
}

// New builds a BoundedEnumeration oracle with DefaultMaxAtoms.
func New() *BoundedEnumeration {
	return &BoundedEnumeration{MaxAtoms: DefaultMaxAtoms}
}

// Query implements internal/constraint.SatOracle.
func (o *BoundedEnumeration) Query(arena *predicate.Arena, p *predicate.Predicate) (sat bool, decided bool) {
	switch p.Kind {
	case predicate.KindTrue:
		return true, true
	case predicate.KindFalse:
		return false, true
	}

	atoms := collectAtoms(arena, p)
	maxAtoms := o.MaxAtoms
	if maxAtoms <= 0 {
		maxAtoms = DefaultMaxAtoms
	}
	if len(atoms) > maxAtoms {
		return false, false
	}

	expression := renderExpr(arena, p, atoms)
	env := make(map[string]bool, len(atoms))
	for _, id := range atoms {
		env[varName(id)] = false
	}

	program, err := expr.Compile(expression, expr.Env(env))
	if err != nil {
		return false, false
	}

	n := len(atoms)
	for mask := 0; mask < (1 << uint(n)); mask++ {
		for i, id := range atoms {
			env[varName(id)] = mask&(1<<uint(i)) != 0
		}
		out, err := expr.Run(program, env)
		if err != nil {
			continue
		}
		if b, ok := out.(bool); ok && b {
			return true, true
		}
	}
	return false, true
}

// collectAtoms walks p and returns the distinct atom ExprIDs that denote a
// genuinely free boolean variable, sorted so variable naming is
// deterministic across calls on the same predicate. An atom whose
// expression resolves to a Constant via arena.Literal is constant-folded by
// renderExpr instead of being enumerated as a variable — this oracle must
// decide scenarios like an `if (false)` branch correctly even when it is
// queried directly, ahead of (or instead of) internal/predicate.Minimize's
// own constant-folding pass.
func collectAtoms(arena *predicate.Arena, p *predicate.Predicate) []predicate.ExprID {
	seen := map[predicate.ExprID]bool{}
	var walk func(p *predicate.Predicate)
	walk = func(p *predicate.Predicate) {
		if p == nil {
			return
		}
		switch p.Kind {
		case predicate.KindAtom:
			if _, ok := arena.Literal(p.Atom); !ok {
				seen[p.Atom] = true
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

	atoms := make([]predicate.ExprID, 0, len(seen))
	for id := range seen {
		atoms = append(atoms, id)
	}
	sort.Slice(atoms, func(i, j int) bool { return atoms[i] < atoms[j] })
	return atoms
}

func varName(id predicate.ExprID) string {
	return fmt.Sprintf("v%d", int(id))
}

// renderExpr lowers p to an expr-lang boolean expression over one free
// variable per atom in atoms, folding any atom that arena.Literal resolves
// to "true"/"false" directly to the matching literal rather than a
// variable reference.
func renderExpr(arena *predicate.Arena, p *predicate.Predicate, atoms []predicate.ExprID) string {
	switch p.Kind {
	case predicate.KindTrue:
		return "true"
	case predicate.KindFalse:
		return "false"
	case predicate.KindAtom:
		if lit, ok := arena.Literal(p.Atom); ok {
			switch lit {
			case "true":
				return "true"
			case "false":
				return "false"
			}
		}
		return varName(p.Atom)
	case predicate.KindNot:
		return "(!" + renderExpr(arena, p.Operand, atoms) + ")"
	case predicate.KindAnd, predicate.KindOr:
		parts := make([]string, len(p.Operands))
		for i, o := range p.Operands {
			parts[i] = renderExpr(arena, o, atoms)
		}
		joiner := " && "
		if p.Kind == predicate.KindOr {
			joiner = " || "
		}
		return "(" + strings.Join(parts, joiner) + ")"
	default:
		return "true"
	}
}
