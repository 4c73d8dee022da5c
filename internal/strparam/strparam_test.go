package strparam

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/predicate"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/taint"
)

func TestResolveHardCodedLiteral(t *testing.T) {
	arena := predicate.NewArena()
	tracker := taint.NewTracker(arena, nil, nil)
	r := NewResolver(arena, tracker)

	c := arena.NewConstant("java.lang.String", "/data/hijack.txt")
	set := predicate.Singleton(predicate.DefaultExprSetCap, arena.VarRef(c))

	got := r.Resolve(0, set)
	require.Equal(t, HardCoded, got.PathType)
	require.True(t, got.HasLiteral)
	require.Equal(t, "/data/hijack.txt", got.Literal)
	require.Equal(t, "hijacking", got.PathType.VulnerabilityType())
}

func TestResolvePartiallyControlledPrefix(t *testing.T) {
	arena := predicate.NewArena()
	tracker := taint.NewTracker(arena, nil, nil)
	r := NewResolver(arena, tracker)

	prefix := arena.NewConstant("java.lang.String", "/data/")
	extra := arena.NewMethodCall("cs1", "android.content.Intent.getStringExtra(java.lang.String)", 0, false, []string{"path"}, "java.lang.String")
	concat := arena.StringConcat(arena.VarRef(prefix), arena.VarRef(extra))
	set := predicate.Singleton(predicate.DefaultExprSetCap, concat)

	got := r.Resolve(0, set)
	require.Equal(t, PartiallyControlled, got.PathType)
	require.True(t, got.HasPrefix)
	require.Equal(t, "/data/", got.Prefix)
	require.NotEmpty(t, got.Sources)
	require.Equal(t, "intent_extra", got.Sources[0].Kind)
	require.Equal(t, "traversal_partial", got.PathType.VulnerabilityType())
}

func TestResolveFullyControlled(t *testing.T) {
	arena := predicate.NewArena()
	tracker := taint.NewTracker(arena, nil, nil)
	r := NewResolver(arena, tracker)

	extra := arena.NewMethodCall("cs1", "android.content.Intent.getStringExtra(java.lang.String)", 0, false, []string{"path"}, "java.lang.String")
	set := predicate.Singleton(predicate.DefaultExprSetCap, arena.VarRef(extra))

	got := r.Resolve(0, set)
	require.Equal(t, FullyControlled, got.PathType)
	require.False(t, got.HasLiteral)
	require.False(t, got.HasPrefix)
	require.Equal(t, "traversal_full", got.PathType.VulnerabilityType())
}

func TestResolveExecutionOnlyOnEmptySet(t *testing.T) {
	arena := predicate.NewArena()
	tracker := taint.NewTracker(arena, nil, nil)
	r := NewResolver(arena, tracker)

	set := predicate.NewExprSet(predicate.DefaultExprSetCap)

	got := r.Resolve(0, set)
	require.Equal(t, ExecutionOnly, got.PathType)
	require.Equal(t, "execution_only", got.PathType.VulnerabilityType())
}

func TestResolveFileConstructorNestedWellKnownDirectory(t *testing.T) {
	arena := predicate.NewArena()
	tracker := taint.NewTracker(arena, nil, nil)
	r := NewResolver(arena, tracker)

	filesDir := arena.NewMethodCall("cs1", "android.content.Context.getFilesDir", 0, true, nil, "java.io.File")
	child := arena.NewConstant("java.lang.String", "data.txt")
	fileCtor := arena.NewMethodCall("cs2", "File.<init>", 0, false, nil, "java.io.File",
		arena.VarRef(filesDir), arena.VarRef(child))

	path, ok := r.ResolveFileConstructor(fileCtor)
	require.True(t, ok)
	require.Equal(t, "/data/data/<package>/files/data.txt", path)
}

func TestResolveBuilderChainAppendsInOrder(t *testing.T) {
	arena := predicate.NewArena()
	tracker := taint.NewTracker(arena, nil, nil)
	r := NewResolver(arena, tracker)

	ctor := arena.NewMethodCall("cs1", "StringBuilder.<init>", 0, false, nil, "java.lang.StringBuilder",
		arena.VarRef(arena.NewConstant("java.lang.String", "/data/")))
	append1 := arena.NewMethodCall("cs2", "StringBuilder.append", ctor, true, nil, "java.lang.StringBuilder",
		arena.VarRef(arena.NewConstant("java.lang.String", "sub")))
	toStr := arena.NewMethodCall("cs3", "StringBuilder.toString", append1, true, nil, "java.lang.String")

	got, ok := r.ResolveBuilderChain(toStr)
	require.True(t, ok)
	require.Equal(t, "/data/sub", got)
}

func TestResolveBuilderChainFailsWhenAppendedOperandUnresolved(t *testing.T) {
	arena := predicate.NewArena()
	tracker := taint.NewTracker(arena, nil, nil)
	r := NewResolver(arena, tracker)

	extra := arena.NewMethodCall("cs1", "android.content.Intent.getStringExtra(java.lang.String)", 0, false, nil, "java.lang.String")
	ctor := arena.NewMethodCall("cs2", "StringBuilder.<init>", 0, false, nil, "java.lang.StringBuilder")
	append1 := arena.NewMethodCall("cs3", "StringBuilder.append", ctor, true, nil, "java.lang.StringBuilder",
		arena.VarRef(extra))
	toStr := arena.NewMethodCall("cs4", "StringBuilder.toString", append1, true, nil, "java.lang.String")

	_, ok := r.ResolveBuilderChain(toStr)
	require.False(t, ok)
}

func TestResolveMergesMultipleCandidatesToRiskiest(t *testing.T) {
	arena := predicate.NewArena()
	tracker := taint.NewTracker(arena, nil, nil)
	r := NewResolver(arena, tracker)

	literal := arena.NewConstant("java.lang.String", "/data/a.txt")
	extra := arena.NewMethodCall("cs1", "android.content.Intent.getStringExtra(java.lang.String)", 0, false, nil, "java.lang.String")

	set := predicate.NewExprSet(predicate.DefaultExprSetCap)
	set.Add(arena.VarRef(literal))
	set.Add(arena.VarRef(extra))

	got := r.Resolve(0, set)
	require.Equal(t, FullyControlled, got.PathType)
	require.False(t, got.HasLiteral)
}
