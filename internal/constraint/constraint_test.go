package constraint

import (
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/stretchr/testify/require"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/ir"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/oracle"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/pathenum"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/predicate"
)

func liftMethod(t *testing.T, methodFQN, receiverType string, isStatic bool, params []ir.Param, src string) *ir.CFG {
	t.Helper()
	source := []byte("class T { void m" + src + " }")
	root := sitter.Parse(source, java.GetLanguage())
	require.NotNil(t, root)

	var find func(n *sitter.Node) *sitter.Node
	find = func(n *sitter.Node) *sitter.Node {
		if n == nil {
			return nil
		}
		if n.Type() == "method_declaration" {
			return n.ChildByFieldName("body")
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if found := find(n.Child(i)); found != nil {
				return found
			}
		}
		return nil
	}
	body := find(root)
	require.NotNil(t, body)

	l := ir.NewLifter(methodFQN, isStatic, receiverType, params)
	cfg, err := l.Lift(body, source)
	require.NoError(t, err)
	return cfg
}

func findInvoke(t *testing.T, cfg *ir.CFG, suffix string) *ir.Statement {
	t.Helper()
	for _, b := range cfg.BlocksInOrder() {
		for _, stmt := range b.Statements {
			if stmt.Kind == ir.StmtInvoke && len(stmt.CallTarget) >= len(suffix) && stmt.CallTarget[len(stmt.CallTarget)-len(suffix):] == suffix {
				return stmt
			}
		}
	}
	t.Fatalf("no invoke statement ending in %q", suffix)
	return nil
}

type staticProvider map[string]*ir.CFG

func (s staticProvider) CFG(methodFQN string) (*ir.CFG, bool, error) {
	cfg, ok := s[methodFQN]
	return cfg, ok, nil
}

func TestRunResolvesLiteralSinkArg(t *testing.T) {
	cfg := liftMethod(t, "com.example.app.MainActivity.onCreate()", "com.example.app.MainActivity", false, nil, `() {
		java.io.FileOutputStream fos = new java.io.FileOutputStream("/data/hijack.txt");
	}`)
	sink := findInvoke(t, cfg, "FileOutputStream.<init>")

	engine := NewEngine(staticProvider{cfg.MethodFQN: cfg}, predicate.DefaultExprSetCap)
	path := pathenum.CallPath{Root: cfg.MethodFQN, SinkMethod: cfg.MethodFQN, Sink: sink}

	result, err := engine.Run(path, nil)
	require.NoError(t, err)
	require.Equal(t, Sat, result.Feasibility)
	require.Len(t, result.SinkArgs, 1)

	items := result.SinkArgs[0].Set.Items()
	require.Len(t, items, 1)
	lit, ok := result.Arena.Literal(items[0])
	require.True(t, ok)
	require.Equal(t, "/data/hijack.txt", lit)
}

func TestRunStrengthensConditionalBranch(t *testing.T) {
	cfg := liftMethod(t, "com.example.app.MainActivity.m(boolean)", "com.example.app.MainActivity", false,
		[]ir.Param{{Name: "flag", Type: "boolean", SlotIndex: 0}}, `(boolean flag) {
			if (flag) {
				java.io.FileOutputStream fos = new java.io.FileOutputStream("/data/a.txt");
			}
		}`)
	sink := findInvoke(t, cfg, "FileOutputStream.<init>")

	engine := NewEngine(staticProvider{cfg.MethodFQN: cfg}, predicate.DefaultExprSetCap)
	path := pathenum.CallPath{Root: cfg.MethodFQN, SinkMethod: cfg.MethodFQN, Sink: sink}

	result, err := engine.Run(path, nil)
	require.NoError(t, err)
	require.Equal(t, Undecided, result.Feasibility)
	require.NotEqual(t, predicate.KindTrue, result.PathConstraint.Kind)
	require.NotEqual(t, predicate.KindFalse, result.PathConstraint.Kind)
}

func TestRunHandsOffActualsAcrossCallSite(t *testing.T) {
	caller := liftMethod(t, "com.example.app.MainActivity.onCreate()", "com.example.app.MainActivity", false, nil, `() {
		writeFile("/data/hijack.txt");
	}`)
	callee := liftMethod(t, "com.example.app.MainActivity.writeFile(java.lang.String)", "com.example.app.MainActivity", false,
		[]ir.Param{{Name: "path", Type: "java.lang.String", SlotIndex: 0}}, `(java.lang.String path) {
			java.io.FileOutputStream fos = new java.io.FileOutputStream(path);
		}`)
	callSite := findInvoke(t, caller, "writeFile")
	sink := findInvoke(t, callee, "FileOutputStream.<init>")

	provider := staticProvider{caller.MethodFQN: caller, callee.MethodFQN: callee}
	engine := NewEngine(provider, predicate.DefaultExprSetCap)
	path := pathenum.CallPath{
		Root:       caller.MethodFQN,
		Steps:      []pathenum.Step{{Method: caller.MethodFQN, CallSite: callSite}},
		SinkMethod: callee.MethodFQN,
		Sink:       sink,
	}

	result, err := engine.Run(path, nil)
	require.NoError(t, err)
	require.Equal(t, Sat, result.Feasibility)
	require.Len(t, result.SinkArgs, 1)

	items := result.SinkArgs[0].Set.Items()
	require.Len(t, items, 1)
	lit, ok := result.Arena.Literal(items[0])
	require.True(t, ok)
	require.Equal(t, "/data/hijack.txt", lit)
}

type stubOracle struct {
	sat     bool
	decided bool
}

func (s stubOracle) Query(arena *predicate.Arena, p *predicate.Predicate) (bool, bool) {
	return s.sat, s.decided
}

func TestRunUsesOracleWhenProvided(t *testing.T) {
	cfg := liftMethod(t, "com.example.app.MainActivity.m(boolean)", "com.example.app.MainActivity", false,
		[]ir.Param{{Name: "flag", Type: "boolean", SlotIndex: 0}}, `(boolean flag) {
			if (flag) {
				java.io.FileOutputStream fos = new java.io.FileOutputStream("/data/a.txt");
			}
		}`)
	sink := findInvoke(t, cfg, "FileOutputStream.<init>")

	engine := NewEngine(staticProvider{cfg.MethodFQN: cfg}, predicate.DefaultExprSetCap)
	path := pathenum.CallPath{Root: cfg.MethodFQN, SinkMethod: cfg.MethodFQN, Sink: sink}

	result, err := engine.Run(path, stubOracle{sat: false, decided: true})
	require.NoError(t, err)
	require.Equal(t, TriviallyFalse, result.Feasibility)
}

func TestRunDropsDeadBranchUnderRealOracle(t *testing.T) {
	cfg := liftMethod(t, "com.example.app.MainActivity.onCreate()", "com.example.app.MainActivity", false, nil, `() {
		if (false) {
			java.io.FileOutputStream fos = new java.io.FileOutputStream("/data/unreachable.txt");
		}
	}`)
	sink := findInvoke(t, cfg, "FileOutputStream.<init>")

	engine := NewEngine(staticProvider{cfg.MethodFQN: cfg}, predicate.DefaultExprSetCap)
	path := pathenum.CallPath{Root: cfg.MethodFQN, SinkMethod: cfg.MethodFQN, Sink: sink}

	result, err := engine.Run(path, oracle.New())
	require.NoError(t, err)
	require.Equal(t, TriviallyFalse, result.Feasibility)
}
