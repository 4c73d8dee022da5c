package entrypoint

import (
	"fmt"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/config"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/manifest"
)

// ClassResolver answers whether a component's class is available in the
// analyzed archive and whether it declares a given lifecycle method. The
// call-graph builder's source index (internal/callgraph) is the concrete
// implementation; this package depends only on the interface so it can be
// unit-tested without a real decompiled tree.
type ClassResolver interface {
	HasClass(className string) bool
	HasMethod(className, signature string) bool
}

// Call is one invocation the synthetic root performs: "allocate one
// instance of each declared component class ... invoke its required
// lifecycle method and every optional lifecycle method it declares"
// (spec.md §4.1).
type Call struct {
	Component manifest.Component
	Method    Method
}

// FullSignature renders the call's fully-qualified method signature, the
// same shape internal/ir.Lifter and internal/callgraph key methods by.
func (c Call) FullSignature() string {
	return fmt.Sprintf("%s.%s", c.Component.Name, c.Method.Signature())
}

// Warning is a non-fatal synthesis diagnostic (spec.md §4.1 "Failure
// semantics": missing required lifecycle is warned, not fatal).
type Warning struct {
	Component string
	Message   string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Component, w.Message)
}

// Synthesize builds the entry-point call list for every component in inv
// filtered to cfg.PackagePrefix, per the contract in spec.md §4.1.
//
// A component whose class is unavailable is skipped entirely. A missing
// required lifecycle method produces a Warning but does not stop synthesis
// for that component's other (optional) methods.
func Synthesize(inv *manifest.Inventory, resolver ClassResolver, cfg config.Config) ([]Call, []Warning) {
	var calls []Call
	var warnings []Warning

	for _, comp := range inv.FilterByPackagePrefix(cfg.PackagePrefix) {
		if !resolver.HasClass(comp.Name) {
			warnings = append(warnings, Warning{comp.Name, "class unavailable, component skipped"})
			continue
		}

		table := LifecycleTable[comp.Kind]
		for _, m := range table {
			if !resolver.HasMethod(comp.Name, m.Signature()) {
				if m.Required {
					warnings = append(warnings, Warning{comp.Name, fmt.Sprintf("required lifecycle method %s missing", m.Signature())})
				}
				continue
			}
			calls = append(calls, Call{Component: comp, Method: m})
		}
	}

	return calls, warnings
}
