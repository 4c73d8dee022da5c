package oracle

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/predicate"
)

// atom builds an Atom over a genuinely free boolean variable (an Input
// slot, the way `if (flag)` over a method parameter lowers), distinct from
// a Constant atom, which the oracle now folds away rather than enumerates.
func atom(arena *predicate.Arena) *predicate.Predicate {
	v := arena.NewInputVariable("p", 0, "boolean")
	return predicate.AtomP(arena.VarRef(v))
}

func constBoolAtom(arena *predicate.Arena, b bool) *predicate.Predicate {
	v := arena.NewConstant("boolean", b)
	return predicate.AtomP(arena.VarRef(v))
}

func TestQueryTrivialTrueFalse(t *testing.T) {
	arena := predicate.NewArena()
	o := New()

	sat, decided := o.Query(arena, predicate.True())
	require.True(t, decided)
	require.True(t, sat)

	sat, decided = o.Query(arena, predicate.False())
	require.True(t, decided)
	require.False(t, sat)
}

func TestQuerySatisfiesOrOfAtomAndNegation(t *testing.T) {
	arena := predicate.NewArena()
	o := New()

	a := atom(arena)
	p := predicate.Or(a, predicate.Not(a))

	sat, decided := o.Query(arena, p)
	require.True(t, decided)
	require.True(t, sat)
}

func TestQueryUnsatisfiesAndOfAtomAndNegation(t *testing.T) {
	arena := predicate.NewArena()
	o := New()

	a := atom(arena)
	p := predicate.And(a, predicate.Not(a))

	sat, decided := o.Query(arena, p)
	require.True(t, decided)
	require.False(t, sat)
}

func TestQuerySatisfiesConjunctionOfDistinctAtoms(t *testing.T) {
	arena := predicate.NewArena()
	o := New()

	a := atom(arena)
	b := atom(arena)
	p := predicate.And(a, b)

	sat, decided := o.Query(arena, p)
	require.True(t, decided)
	require.True(t, sat)
}

func TestQueryFoldsConstantFalseAtomToUnsat(t *testing.T) {
	arena := predicate.NewArena()
	o := New()

	p := constBoolAtom(arena, false)

	sat, decided := o.Query(arena, p)
	require.True(t, decided)
	require.False(t, sat)
}

func TestQueryFoldsConstantTrueAtomToSat(t *testing.T) {
	arena := predicate.NewArena()
	o := New()

	p := constBoolAtom(arena, true)

	sat, decided := o.Query(arena, p)
	require.True(t, decided)
	require.True(t, sat)
}

func TestQueryConstantFalseAtomDoesNotCountTowardMaxAtoms(t *testing.T) {
	arena := predicate.NewArena()
	o := &BoundedEnumeration{MaxAtoms: 1}

	a := atom(arena)
	p := predicate.And(constBoolAtom(arena, false), a)

	sat, decided := o.Query(arena, p)
	require.True(t, decided)
	require.False(t, sat)
}

func TestQueryGivesUpBeyondMaxAtoms(t *testing.T) {
	arena := predicate.NewArena()
	o := &BoundedEnumeration{MaxAtoms: 1}

	a := atom(arena)
	b := atom(arena)
	p := predicate.And(a, b)

	sat, decided := o.Query(arena, p)
	require.False(t, decided)
	require.False(t, sat)
}
