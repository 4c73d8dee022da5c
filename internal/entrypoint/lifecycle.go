// Package entrypoint synthesizes the call-graph roots the rest of the
// pipeline walks forward from: spec.md §4.1's "single synthetic root method"
// that allocates each declared component and invokes its lifecycle methods.
// This package stops short of building one literal combined method body —
// the call-graph builder (internal/callgraph) treats each returned Call as
// an independent root, which is observationally equivalent to inlining them
// all into one synthetic method and is simpler to cache and parallelize.
package entrypoint

import (
	"fmt"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/manifest"
)

// Param describes one formal parameter of a lifecycle method, carrying the
// default value the synthesizer passes for it (spec.md §4.1(c)): null for
// reference types, zero for primitives.
type Param struct {
	Type string
}

// IsPrimitive reports whether the Java type is a primitive the synthesizer
// fills with a numeric/boolean zero value rather than null.
func (p Param) IsPrimitive() bool {
	switch p.Type {
	case "int", "long", "short", "byte", "char", "boolean", "float", "double":
		return true
	default:
		return false
	}
}

// Method is one entry in a component kind's lifecycle table.
type Method struct {
	Name     string
	Params   []Param
	Required bool
}

// Signature renders the method's canonical "name(paramTypes)" form.
func (m Method) Signature() string {
	types := ""
	for i, p := range m.Params {
		if i > 0 {
			types += ","
		}
		types += p.Type
	}
	return fmt.Sprintf("%s(%s)", m.Name, types)
}

// LifecycleTable is the fixed per-kind method table spec.md §4.1 calls for:
// "the synthesizer consults a fixed table of lifecycle method signatures."
var LifecycleTable = map[manifest.Kind][]Method{
	manifest.Activity: {
		{Name: "onCreate", Params: []Param{{"android.os.Bundle"}}, Required: true},
		{Name: "onStart"},
		{Name: "onResume"},
		{Name: "onPause"},
		{Name: "onStop"},
		{Name: "onDestroy"},
		{Name: "onActivityResult", Params: []Param{{"int"}, {"int"}, {"android.content.Intent"}}},
		{Name: "onNewIntent", Params: []Param{{"android.content.Intent"}}},
	},
	manifest.Service: {
		{Name: "onCreate", Required: true},
		{Name: "onStartCommand", Params: []Param{{"android.content.Intent"}, {"int"}, {"int"}}},
		{Name: "onBind", Params: []Param{{"android.content.Intent"}}},
		{Name: "onDestroy"},
	},
	manifest.Receiver: {
		{Name: "onReceive", Params: []Param{{"android.content.Context"}, {"android.content.Intent"}}, Required: true},
	},
	manifest.Provider: {
		{Name: "onCreate", Required: true},
		{Name: "query", Params: []Param{{"android.net.Uri"}, {"java.lang.String[]"}, {"java.lang.String"}, {"java.lang.String[]"}, {"java.lang.String"}}},
		{Name: "insert", Params: []Param{{"android.net.Uri"}, {"android.content.ContentValues"}}},
		{Name: "update", Params: []Param{{"android.net.Uri"}, {"android.content.ContentValues"}, {"java.lang.String"}, {"java.lang.String[]"}}},
		{Name: "delete", Params: []Param{{"android.net.Uri"}, {"java.lang.String"}, {"java.lang.String[]"}}},
	},
}
