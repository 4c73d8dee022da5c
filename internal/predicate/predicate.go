package predicate

import (
	"sort"
	"strings"
)

// Kind is the disjoint variant tag for a Predicate.
type Kind int

const (
	KindTrue Kind = iota
	KindFalse
	KindAtom
	KindNot
	KindAnd
	KindOr
)

// Predicate is a boolean formula over expressions (spec.md §3). Predicates
// are immutable trees; And/Or construction flattens nested same-kind
// operands so structural equality modulo commutativity/associativity is a
// matter of sorting operand signatures.
type Predicate struct {
	Kind     Kind
	Atom     ExprID // valid when Kind == KindAtom: non-zero/non-null/true interpretation of Atom
	Operand  *Predicate
	Operands []*Predicate
}

// True is the vacuous predicate.
func True() *Predicate { return &Predicate{Kind: KindTrue} }

// False is the unsatisfiable predicate.
func False() *Predicate { return &Predicate{Kind: KindFalse} }

// AtomP wraps a scalar expression in its boolean interpretation.
func AtomP(e ExprID) *Predicate { return &Predicate{Kind: KindAtom, Atom: e} }

// Not negates p, collapsing double negation immediately.
func Not(p *Predicate) *Predicate {
	if p == nil {
		return nil
	}
	if p.Kind == KindNot {
		return p.Operand
	}
	if p.Kind == KindTrue {
		return False()
	}
	if p.Kind == KindFalse {
		return True()
	}
	return &Predicate{Kind: KindNot, Operand: p}
}

// And conjoins ps, flattening nested Ands and short-circuiting on False/True.
func And(ps ...*Predicate) *Predicate {
	return nAry(KindAnd, ps)
}

// Or disjoins ps, flattening nested Ors and short-circuiting on True/False.
func Or(ps ...*Predicate) *Predicate {
	return nAry(KindOr, ps)
}

func nAry(kind Kind, ps []*Predicate) *Predicate {
	zero, absorbing := KindTrue, KindFalse
	if kind == KindOr {
		zero, absorbing = KindFalse, KindTrue
	}
	var operands []*Predicate
	for _, p := range ps {
		if p == nil || p.Kind == zero {
			continue
		}
		if p.Kind == absorbing {
			if absorbing == KindFalse {
				return False()
			}
			return True()
		}
		if p.Kind == kind {
			operands = append(operands, p.Operands...)
		} else {
			operands = append(operands, p)
		}
	}
	switch len(operands) {
	case 0:
		if zero == KindTrue {
			return True()
		}
		return False()
	case 1:
		return operands[0]
	default:
		return &Predicate{Kind: kind, Operands: operands}
	}
}

// Combine applies op (And or Or) to p and q, treating a nil predicate as
// the identity element (spec.md §3 "combine(op, P, Q) with None acting as
// identity").
func Combine(kind Kind, p, q *Predicate) *Predicate {
	switch {
	case p == nil:
		return q
	case q == nil:
		return p
	case kind == KindAnd:
		return And(p, q)
	case kind == KindOr:
		return Or(p, q)
	default:
		return p
	}
}

// ContainsExpression reports whether e occurs as an atom anywhere in p.
func (p *Predicate) ContainsExpression(e ExprID) bool {
	if p == nil {
		return false
	}
	switch p.Kind {
	case KindAtom:
		return p.Atom == e
	case KindNot:
		return p.Operand.ContainsExpression(e)
	case KindAnd, KindOr:
		for _, o := range p.Operands {
			if o.ContainsExpression(e) {
				return true
			}
		}
	}
	return false
}

// signature renders a canonical string for p, sorting And/Or operand
// signatures so commutative/associative equivalents compare equal.
func (a *Arena) signature(p *Predicate) string {
	if p == nil {
		return "true"
	}
	switch p.Kind {
	case KindTrue:
		return "true"
	case KindFalse:
		return "false"
	case KindAtom:
		return "atom(" + a.String(p.Atom) + ")"
	case KindNot:
		return "not(" + a.signature(p.Operand) + ")"
	case KindAnd, KindOr:
		sigs := make([]string, len(p.Operands))
		for i, o := range p.Operands {
			sigs[i] = a.signature(o)
		}
		sort.Strings(sigs)
		op := "and"
		if p.Kind == KindOr {
			op = "or"
		}
		return op + "(" + strings.Join(sigs, ",") + ")"
	default:
		return "?"
	}
}

// Equal reports structural equality of p and q modulo commutativity and
// associativity of And/Or (spec.md §3 testable invariant).
func (a *Arena) Equal(p, q *Predicate) bool {
	return a.signature(p) == a.signature(q)
}
