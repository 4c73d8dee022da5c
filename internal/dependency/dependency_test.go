package dependency

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/stretchr/testify/require"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/callgraph"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/config"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/constraint"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/entrypoint"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/ir"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/manifest"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/pathenum"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/predicate"
)

func liftSnippet(t *testing.T, methodFQN, receiverType, src string) *ir.CFG {
	t.Helper()
	source := []byte("class T { void m() " + src + " }")
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

	l := ir.NewLifter(methodFQN, false, receiverType, nil)
	cfg, err := l.Lift(body, source)
	require.NoError(t, err)
	return cfg
}

func buildGraph(t *testing.T, cfgs map[string]*ir.CFG, calls []entrypoint.Call, targets []string) (*callgraph.Graph, *callgraph.MethodIRCache) {
	t.Helper()
	source := callgraph.NewStaticSource(cfgs)
	cache, err := callgraph.NewMethodIRCache(source, 16)
	require.NoError(t, err)

	inv := &manifest.Inventory{Package: "com.example.app"}
	cfg := config.New("", "", "com.example.app", targets)
	builder := callgraph.NewBuilder(cache, inv, cfg)
	graph := builder.Build(context.Background(), calls)
	return graph, cache
}

func TestResolveFindsFieldWriteSupporter(t *testing.T) {
	onCreate := liftSnippet(t, "com.example.app.MainActivity.onCreate(android.os.Bundle)", "com.example.app.MainActivity", `{
		java.io.FileOutputStream fos = new java.io.FileOutputStream(this.cachedPath);
	}`)
	onResume := liftSnippet(t, "com.example.app.MainActivity.onResume()", "com.example.app.MainActivity", `{
		this.cachedPath = "/data/seed.txt";
	}`)

	calls := []entrypoint.Call{
		{
			Component: manifest.Component{Name: "com.example.app.MainActivity", Kind: manifest.Activity},
			Method:    entrypoint.Method{Name: "onCreate", Params: []entrypoint.Param{{Type: "android.os.Bundle"}}, Required: true},
		},
		{
			Component: manifest.Component{Name: "com.example.app.MainActivity", Kind: manifest.Activity},
			Method:    entrypoint.Method{Name: "onResume"},
		},
	}
	graph, cache := buildGraph(t, map[string]*ir.CFG{
		onCreate.MethodFQN: onCreate,
		onResume.MethodFQN: onResume,
	}, calls, []string{"java.io.FileOutputStream.<init>"})

	engine := constraint.NewEngine(cache, predicate.DefaultExprSetCap)

	rootEnum := pathenum.New(graph, cache, false)
	rootCollector := pathenum.NewTargetCollector([]string{"java.io.FileOutputStream.<init>"})
	rootEnum.Enumerate(context.Background(), rootCollector)
	require.Len(t, rootCollector.Paths, 1)

	rootResult, err := engine.Run(rootCollector.Paths[0], nil)
	require.NoError(t, err)
	require.Equal(t, constraint.Sat, rootResult.Feasibility)

	resolver := NewResolver(graph, cache, engine, nil, predicate.DefaultExprSetCap, DefaultMaxDepth)
	supporters := resolver.Resolve(context.Background(), rootResult)

	require.Len(t, supporters, 1)
	require.Equal(t, "com.example.app.MainActivity.cachedPath", supporters[0].Field)
	require.Equal(t, onResume.MethodFQN, supporters[0].Path.SinkMethod)

	written := constraint.ResolveOperand(supporters[0].Result.Arena, supporters[0].Result.SinkDataMap, supporters[0].Path.Sink.Value, predicate.DefaultExprSetCap)
	items := written.Items()
	require.Len(t, items, 1)
	lit, ok := supporters[0].Result.Arena.Literal(items[0])
	require.True(t, ok)
	require.Equal(t, "/data/seed.txt", lit)
}

func TestResolveReturnsNoSupportersWithoutHeapDependency(t *testing.T) {
	onCreate := liftSnippet(t, "com.example.app.MainActivity.onCreate(android.os.Bundle)", "com.example.app.MainActivity", `{
		java.io.FileOutputStream fos = new java.io.FileOutputStream("/data/hijack.txt");
	}`)

	calls := []entrypoint.Call{
		{
			Component: manifest.Component{Name: "com.example.app.MainActivity", Kind: manifest.Activity},
			Method:    entrypoint.Method{Name: "onCreate", Params: []entrypoint.Param{{Type: "android.os.Bundle"}}, Required: true},
		},
	}
	graph, cache := buildGraph(t, map[string]*ir.CFG{onCreate.MethodFQN: onCreate}, calls, []string{"java.io.FileOutputStream.<init>"})

	engine := constraint.NewEngine(cache, predicate.DefaultExprSetCap)

	rootEnum := pathenum.New(graph, cache, false)
	rootCollector := pathenum.NewTargetCollector([]string{"java.io.FileOutputStream.<init>"})
	rootEnum.Enumerate(context.Background(), rootCollector)
	require.Len(t, rootCollector.Paths, 1)

	rootResult, err := engine.Run(rootCollector.Paths[0], nil)
	require.NoError(t, err)

	resolver := NewResolver(graph, cache, engine, nil, predicate.DefaultExprSetCap, DefaultMaxDepth)
	supporters := resolver.Resolve(context.Background(), rootResult)
	require.Empty(t, supporters)
}
