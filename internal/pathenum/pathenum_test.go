package pathenum

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/stretchr/testify/require"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/callgraph"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/config"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/entrypoint"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/ir"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/manifest"
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

func buildGraph(t *testing.T, cfgs map[string]*ir.CFG, rootCall entrypoint.Call, targets []string) (*callgraph.Graph, *callgraph.MethodIRCache) {
	t.Helper()
	source := callgraph.NewStaticSource(cfgs)
	cache, err := callgraph.NewMethodIRCache(source, 16)
	require.NoError(t, err)

	inv := &manifest.Inventory{Package: "com.example.app"}
	cfg := config.New("", "", "com.example.app", targets)
	builder := callgraph.NewBuilder(cache, inv, cfg)
	graph := builder.Build(context.Background(), []entrypoint.Call{rootCall})
	return graph, cache
}

func TestEnumerateFindsDirectSink(t *testing.T) {
	onCreate := liftSnippet(t, "com.example.app.MainActivity.onCreate(android.os.Bundle)", "com.example.app.MainActivity", `{
		java.io.FileOutputStream fos = new java.io.FileOutputStream("/data/hijack.txt");
	}`)

	root := entrypoint.Call{
		Component: manifest.Component{Name: "com.example.app.MainActivity", Kind: manifest.Activity},
		Method:    entrypoint.Method{Name: "onCreate", Params: []entrypoint.Param{{Type: "android.os.Bundle"}}, Required: true},
	}
	graph, cache := buildGraph(t, map[string]*ir.CFG{onCreate.MethodFQN: onCreate}, root, []string{"java.io.FileOutputStream.<init>"})

	enum := New(graph, cache, true)
	collector := NewTargetCollector([]string{"java.io.FileOutputStream.<init>"})
	enum.Enumerate(context.Background(), collector)

	require.Len(t, collector.Paths, 1)
	require.Equal(t, "com.example.app.MainActivity.onCreate(android.os.Bundle)", collector.Paths[0].SinkMethod)
	require.Empty(t, collector.Paths[0].Steps)
}

func TestEnumerateCrossesCallGraphEdge(t *testing.T) {
	onCreate := liftSnippet(t, "com.example.app.MainActivity.onCreate(android.os.Bundle)", "com.example.app.MainActivity", `{
		writeFile();
	}`)
	writeFile := liftSnippet(t, "com.example.app.MainActivity.writeFile()", "com.example.app.MainActivity", `{
		java.io.FileOutputStream fos = new java.io.FileOutputStream("/data/hijack.txt");
	}`)

	root := entrypoint.Call{
		Component: manifest.Component{Name: "com.example.app.MainActivity", Kind: manifest.Activity},
		Method:    entrypoint.Method{Name: "onCreate", Params: []entrypoint.Param{{Type: "android.os.Bundle"}}, Required: true},
	}
	graph, cache := buildGraph(t, map[string]*ir.CFG{
		onCreate.MethodFQN:  onCreate,
		writeFile.MethodFQN: writeFile,
	}, root, []string{"java.io.FileOutputStream.<init>"})

	enum := New(graph, cache, true)
	collector := NewTargetCollector([]string{"java.io.FileOutputStream.<init>"})
	enum.Enumerate(context.Background(), collector)

	require.Len(t, collector.Paths, 1)
	path := collector.Paths[0]
	require.Equal(t, "com.example.app.MainActivity.writeFile()", path.SinkMethod)
	require.Len(t, path.Steps, 1)
	require.Equal(t, "com.example.app.MainActivity.onCreate(android.os.Bundle)", path.Steps[0].Method)
}

func TestEnumerateFiltersUIClickHandlerRoots(t *testing.T) {
	onClick := liftSnippet(t, "com.example.app.MainActivity.onClick(android.view.View)", "com.example.app.MainActivity", `{
		java.io.FileOutputStream fos = new java.io.FileOutputStream("/data/hijack.txt");
	}`)

	root := entrypoint.Call{
		Component: manifest.Component{Name: "com.example.app.MainActivity", Kind: manifest.Activity},
		Method:    entrypoint.Method{Name: "onClick", Params: []entrypoint.Param{{Type: "android.view.View"}}, Required: true},
	}
	graph, cache := buildGraph(t, map[string]*ir.CFG{onClick.MethodFQN: onClick}, root, []string{"java.io.FileOutputStream.<init>"})

	enum := New(graph, cache, true)
	collector := NewTargetCollector([]string{"java.io.FileOutputStream.<init>"})
	enum.Enumerate(context.Background(), collector)

	require.Empty(t, collector.Paths)
}

func TestEnumerateSuppressesCycles(t *testing.T) {
	methodA := liftSnippet(t, "com.example.app.Worker.a()", "com.example.app.Worker", `{
		b();
	}`)
	methodB := liftSnippet(t, "com.example.app.Worker.b()", "com.example.app.Worker", `{
		a();
		java.io.FileOutputStream fos = new java.io.FileOutputStream("/data/hijack.txt");
	}`)

	root := entrypoint.Call{
		Component: manifest.Component{Name: "com.example.app.Worker", Kind: manifest.Activity},
		Method:    entrypoint.Method{Name: "a", Required: true},
	}
	graph, cache := buildGraph(t, map[string]*ir.CFG{
		methodA.MethodFQN: methodA,
		methodB.MethodFQN: methodB,
	}, root, []string{"java.io.FileOutputStream.<init>"})

	enum := New(graph, cache, false)
	collector := NewTargetCollector([]string{"java.io.FileOutputStream.<init>"})
	enum.Enumerate(context.Background(), collector)

	require.Len(t, collector.Paths, 1)
}
