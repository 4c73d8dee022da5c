package predicate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMinimizeIdempotent(t *testing.T) {
	a := NewArena()
	v := a.NewInputVariable("p1", 0, "java.lang.String")
	e := a.VarRef(v)
	atom := AtomP(e)

	p := And(atom, Or(atom, AtomP(a.VarRef(a.NewConstant("boolean", true)))))
	once := a.Minimize(p)
	twice := a.Minimize(once)

	require.True(t, a.Equal(once, twice), "minimize(minimize(P)) must equal minimize(P)")
}

func TestMinimizeAbsorption(t *testing.T) {
	a := NewArena()
	v := a.NewInputVariable("p1", 0, "boolean")
	atomA := AtomP(a.VarRef(v))
	atomB := AtomP(a.VarRef(a.NewConstant("boolean", false)))

	p := And(atomA, Or(atomA, atomB))
	min := a.Minimize(p)

	require.True(t, a.Equal(min, atomA))
}

func TestMinimizeComplement(t *testing.T) {
	a := NewArena()
	v := a.NewInputVariable("p1", 0, "boolean")
	atom := AtomP(a.VarRef(v))

	p := And(atom, Not(atom))
	require.True(t, a.Equal(a.Minimize(p), False()))

	q := Or(atom, Not(atom))
	require.True(t, a.Equal(a.Minimize(q), True()))
}

func TestMinimizeFoldsConstantFalseAtomToFalse(t *testing.T) {
	a := NewArena()
	atomFalse := AtomP(a.VarRef(a.NewConstant("boolean", false)))

	require.True(t, a.Equal(a.Minimize(atomFalse), False()))
}

func TestMinimizeFoldsConstantTrueAtomToTrue(t *testing.T) {
	a := NewArena()
	atomTrue := AtomP(a.VarRef(a.NewConstant("boolean", true)))

	require.True(t, a.Equal(a.Minimize(atomTrue), True()))
}

func TestMinimizeFoldsConstantFalseInsideConjunction(t *testing.T) {
	a := NewArena()
	v := a.NewInputVariable("p1", 0, "boolean")
	atom := AtomP(a.VarRef(v))
	atomFalse := AtomP(a.VarRef(a.NewConstant("boolean", false)))

	p := And(atom, atomFalse)
	require.True(t, a.Equal(a.Minimize(p), False()))
}

func TestMinimizeDoesNotFoldNonConstantAtom(t *testing.T) {
	a := NewArena()
	v := a.NewInputVariable("p1", 0, "boolean")
	atom := AtomP(a.VarRef(v))

	min := a.Minimize(atom)
	require.Equal(t, KindAtom, min.Kind)
}

func TestMinimizeDoubleNegation(t *testing.T) {
	a := NewArena()
	v := a.NewInputVariable("p1", 0, "boolean")
	atom := AtomP(a.VarRef(v))

	p := Not(Not(atom))
	require.True(t, a.Equal(a.Minimize(p), atom))
}

func TestPredicateEqualModuloCommutativity(t *testing.T) {
	a := NewArena()
	x := AtomP(a.VarRef(a.NewInputVariable("p", 0, "boolean")))
	y := AtomP(a.VarRef(a.NewInputVariable("p", 1, "boolean")))

	require.True(t, a.Equal(And(x, y), And(y, x)))
	require.True(t, a.Equal(Or(x, Or(y, x)), Or(y, x)))
}

func TestCombineIdentity(t *testing.T) {
	x := AtomP(ExprID(1))
	require.Equal(t, x, Combine(KindAnd, nil, x))
	require.Equal(t, x, Combine(KindAnd, x, nil))
}

func TestContainsExpression(t *testing.T) {
	a := NewArena()
	e1 := a.VarRef(a.NewInputVariable("p", 0, "java.lang.String"))
	e2 := a.VarRef(a.NewConstant("java.lang.String", "x"))
	p := And(AtomP(e1), Not(AtomP(e2)))

	require.True(t, p.ContainsExpression(e1))
	require.True(t, p.ContainsExpression(e2))
	require.False(t, p.ContainsExpression(ExprID(999)))
}

func TestExprSetWideningDropsOldest(t *testing.T) {
	s := NewExprSet(2)
	s.Add(1)
	s.Add(2)
	s.Add(3) // should drop 1

	require.False(t, s.Contains(1))
	require.True(t, s.Contains(2))
	require.True(t, s.Contains(3))
}

func TestUnionPointwise(t *testing.T) {
	a := Singleton(4, 1)
	b := Singleton(4, 2)
	u := Union(a, b)

	require.True(t, u.Contains(1))
	require.True(t, u.Contains(2))
}

func TestMergeDataMapOrsConstraints(t *testing.T) {
	ar := NewArena()
	e := ar.VarRef(ar.NewInputVariable("p", 0, "boolean"))

	a := NewDataMap(4)
	a.Strengthen(AtomP(e))
	b := NewDataMap(4)
	b.Strengthen(Not(AtomP(e)))

	merged := Merge(a, b)
	require.Equal(t, KindOr, merged.ControlFlowConstraint.Kind)
}

func TestLiteralConcatResolution(t *testing.T) {
	a := NewArena()
	l := a.VarRef(a.NewConstant("java.lang.String", "/data/"))
	r := a.VarRef(a.NewConstant("java.lang.String", "hijack1.txt"))
	concat := a.StringConcat(l, r)

	lit, ok := a.Literal(concat)
	require.True(t, ok)
	require.Equal(t, "/data/hijack1.txt", lit)
}

func TestArenaInterningDeduplicates(t *testing.T) {
	a := NewArena()
	v := a.NewInputVariable("p", 0, "int")
	e1 := a.VarRef(v)
	e2 := a.VarRef(v)
	require.Equal(t, e1, e2, "VarRef should be interned per variable")
}
