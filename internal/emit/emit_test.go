package emit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/constraint"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/ir"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/pathenum"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/predicate"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/strparam"
)

func hijackingPath() pathenum.CallPath {
	return pathenum.CallPath{
		Root:       "com.example.app.MainActivity.onCreate(android.os.Bundle)",
		SinkMethod: "com.example.app.MainActivity.onCreate(android.os.Bundle)",
		Sink: &ir.Statement{
			ID:         "s1",
			Kind:       ir.StmtInvoke,
			LineNumber: 10,
			CallTarget: "java.io.FileOutputStream.write(byte[])",
		},
	}
}

func TestEmitEventHijackingHardCoded(t *testing.T) {
	dir := t.TempDir()
	e := New(dir)

	arena := predicate.NewArena()
	result := &constraint.Result{
		Arena:          arena,
		PathConstraint: predicate.True(),
		Feasibility:    constraint.Sat,
		SinkDataMap:    predicate.NewDataMap(8),
	}
	primary := &strparam.Constraint{
		ArgIndex:   0,
		PathType:   strparam.HardCoded,
		Literal:    "/data/hijack1.txt",
		HasLiteral: true,
	}

	ev, err := e.EmitEvent("com.example.app", "1", "activity", "com.example.app.MainActivity", hijackingPath(), result, primary)
	require.NoError(t, err)
	require.Equal(t, "hijacking", ev.VulnerabilityType)
	require.Equal(t, "HARD_CODED", ev.PathType)
	require.Equal(t, "execution.py", ev.ExecutionConstraintFile)
	require.Equal(t, "path.txt", ev.PathConstraintFile)
	require.Equal(t, "metadata.json", ev.MetadataFile)

	eventDir := filepath.Join(dir, "com.example.app", "hijacking", "constraints", "1")
	pathTxt, err := os.ReadFile(filepath.Join(eventDir, "path.txt"))
	require.NoError(t, err)
	require.Contains(t, string(pathTxt), "path = /data/hijack1.txt")

	metaBytes, err := os.ReadFile(filepath.Join(eventDir, "metadata.json"))
	require.NoError(t, err)
	var meta Metadata
	require.NoError(t, json.Unmarshal(metaBytes, &meta))
	require.Equal(t, "hijacking", meta.VulnerabilityType)
	require.Equal(t, "/data/hijack1.txt", meta.PathInfo.Literal)
	require.Equal(t, "literal", meta.PathInfo.ConstructionPattern)

	execPy, err := os.ReadFile(filepath.Join(eventDir, "execution.py"))
	require.NoError(t, err)
	require.Contains(t, string(execPy), "# entry: com.example.app.MainActivity.onCreate(android.os.Bundle)")
}

func TestEmitEventExecutionOnlyOmitsPathFile(t *testing.T) {
	dir := t.TempDir()
	e := New(dir)

	arena := predicate.NewArena()
	result := &constraint.Result{Arena: arena, PathConstraint: predicate.True(), Feasibility: constraint.Sat}

	ev, err := e.EmitEvent("com.example.app", "2", "activity", "com.example.app.MainActivity", hijackingPath(), result, nil)
	require.NoError(t, err)
	require.Equal(t, "execution_only", ev.VulnerabilityType)
	require.Equal(t, "EXECUTION_ONLY", ev.PathType)
	require.Empty(t, ev.PathConstraintFile)

	eventDir := filepath.Join(dir, "com.example.app", "execution_only", "constraints", "2")
	_, err = os.Stat(filepath.Join(eventDir, "path.txt"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(eventDir, "path.py"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(eventDir, "execution.py"))
	require.NoError(t, err)
}

func TestEmitEventPartialTraversalUsesTraversalSubdir(t *testing.T) {
	dir := t.TempDir()
	e := New(dir)

	arena := predicate.NewArena()
	result := &constraint.Result{Arena: arena, PathConstraint: predicate.True(), Feasibility: constraint.Sat}
	primary := &strparam.Constraint{
		ArgIndex:  0,
		PathType:  strparam.PartiallyControlled,
		Prefix:    "/data/user/",
		HasPrefix: true,
		Sources:   nil,
	}

	ev, err := e.EmitEvent("com.example.app", "3", "activity", "com.example.app.MainActivity", hijackingPath(), result, primary)
	require.NoError(t, err)
	require.Equal(t, "traversal_partial", ev.VulnerabilityType)
	require.Equal(t, "path.py", ev.PathConstraintFile)

	eventDir := filepath.Join(dir, "com.example.app", "traversal", "partial", "constraints", "3")
	pathPy, err := os.ReadFile(filepath.Join(eventDir, "path.py"))
	require.NoError(t, err)
	require.Contains(t, string(pathPy), `PrefixOf(StringVal("/data/user/"), file_path)`)
}

func TestWriteAppInfoAndSARIF(t *testing.T) {
	dir := t.TempDir()
	e := New(dir)

	chains := []Chain{
		{ID: 1, Events: []Event{{Type: "activity", Component: "com.example.app.MainActivity", VulnerabilityType: "hijacking", PathType: "HARD_CODED"}}},
	}

	require.NoError(t, e.WriteAppInfo("com.example.app", chains, nil))
	data, err := os.ReadFile(filepath.Join(dir, "com.example.app", "appInfo.json"))
	require.NoError(t, err)
	var info AppInfo
	require.NoError(t, json.Unmarshal(data, &info))
	require.Equal(t, "com.example.app", info.Package)
	require.Len(t, info.EventChains, 1)

	require.NoError(t, e.WriteSARIF("com.example.app", chains))
	_, err = os.Stat(filepath.Join(dir, "com.example.app", "appInfo.sarif.json"))
	require.NoError(t, err)
}
