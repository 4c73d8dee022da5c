package ir

import (
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/stretchr/testify/require"
)

// parseMethodBody parses src as a standalone Java method and returns its body block node.
func parseMethodBody(t *testing.T, src string) (*sitter.Node, []byte) {
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
	return body, source
}

func TestLiftHardcodedHijack(t *testing.T) {
	body, src := parseMethodBody(t, `{
		java.io.FileOutputStream fos = new java.io.FileOutputStream("/data/hijack1.txt");
	}`)

	l := NewLifter("com.example.MainActivity.onCreate(android.os.Bundle)", false, "com.example.MainActivity", nil)
	cfg, err := l.Lift(body, src)
	require.NoError(t, err)

	entry := cfg.EntryBlock()
	require.NotEmpty(t, entry.Statements)

	var invoke *Statement
	for _, s := range entry.Statements {
		if s.Kind == StmtInvoke && s.CallTarget == "java.io.FileOutputStream.<init>" {
			invoke = s
		}
	}
	require.NotNil(t, invoke, "expected a FileOutputStream constructor invoke statement")
	require.Len(t, invoke.Args, 1)
	require.True(t, invoke.Args[0].IsLiteral)
	require.Equal(t, "/data/hijack1.txt", invoke.Args[0].Literal)
}

func TestLiftIfStatementBranches(t *testing.T) {
	body, src := parseMethodBody(t, `{
		if (userInput != null) {
			java.io.FileOutputStream fos = new java.io.FileOutputStream(userInput);
		}
	}`)

	l := NewLifter("com.example.MainActivity.onCreate(android.os.Bundle)", false, "com.example.MainActivity", nil)
	cfg, err := l.Lift(body, src)
	require.NoError(t, err)

	entry := cfg.EntryBlock()
	require.Equal(t, BlockConditional, entry.Type)
	require.Len(t, entry.Successors, 2)

	var branch *Statement
	for _, s := range entry.Statements {
		if s.Kind == StmtConditionalBranch {
			branch = s
		}
	}
	require.NotNil(t, branch)
	require.NotEmpty(t, branch.TrueBlock)
	require.NotEmpty(t, branch.FalseBlock)
}

func TestLiftStringConcatClassifiesAsConcat(t *testing.T) {
	body, src := parseMethodBody(t, `{
		String path = "/data/user/" + userInput;
	}`)

	l := NewLifter("com.example.MainActivity.onCreate(android.os.Bundle)", false, "com.example.MainActivity", nil)
	cfg, err := l.Lift(body, src)
	require.NoError(t, err)

	var concat *Statement
	for _, s := range cfg.EntryBlock().Statements {
		if s.Kind == StmtStringConcat {
			concat = s
		}
	}
	require.NotNil(t, concat)
}

func TestLiftReturnTerminatesBlock(t *testing.T) {
	body, src := parseMethodBody(t, `{
		return;
	}`)
	l := NewLifter("com.example.MainActivity.onCreate(android.os.Bundle)", false, "com.example.MainActivity", nil)
	cfg, err := l.Lift(body, src)
	require.NoError(t, err)

	entry := cfg.EntryBlock()
	require.Contains(t, entry.Successors, cfg.Exit)
}
