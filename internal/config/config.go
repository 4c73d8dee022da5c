// Package config carries the single immutable configuration record the
// rest of the analyzer is threaded through (spec.md §9 design note: "pass
// an immutable configuration record through the driver; no process-wide
// singletons"). The CLI boundary (cmd/) constructs exactly one Config and
// passes it down by value. Two places read process state directly:
// callgraph.OptimalWorkerCount consults the PATHSENTINEL_MAX_WORKERS
// environment variable, and the analytics package keeps its settings in
// package-level variables and reads the "uuid" environment variable.
package config

import "time"

// Config is constructed once by the CLI layer (cmd/scan.go) and passed
// down explicitly; callers must treat it as read-only.
type Config struct {
	// APKPath is the compiled application archive to analyze.
	APKPath string
	// OutDir is the root of the on-disk output layout (spec.md §6).
	OutDir string
	// PackagePrefix filters manifest components to those belonging to the
	// application under analysis (spec.md §4.1).
	PackagePrefix string

	// Targets is the configuration-supplied sink method signature list
	// (spec.md §6). Each entry is compared verbatim against an invoke's
	// internal/ir CallTarget ("Owner.method", no parameter types); LoadTargets
	// reduces canonical "<declaringClass: returnType name(paramTypes)>" lines
	// to that form.
	Targets []string

	// Workers bounds the path-worker pool (spec.md §5).
	Workers int
	// PathTimeout is the per-path wall-clock budget.
	PathTimeout time.Duration
	// GlobalTimeout is the whole-run wall-clock budget.
	GlobalTimeout time.Duration

	// ExprSetCap bounds Expression-Set size (spec.md §4.5 termination/widening).
	ExprSetCap int
	// MaxDependencyDepth bounds supporting-event recursion (spec.md §4.7).
	MaxDependencyDepth int
	// FilterUIEntryPoints discards paths whose entry class looks like a UI
	// click handler (spec.md §4.3 "Filtering").
	FilterUIEntryPoints bool

	// PromotePublicMethods records the --promote-public-methods flag
	// (default false). No component reads it: internal/entrypoint never
	// promotes public non-lifecycle/non-accessor methods of application
	// components to entry points, whatever its value — see DESIGN.md.
	PromotePublicMethods bool

	Verbose        bool
	Debug          bool
	NoBanner       bool
	DisableMetrics bool
	SARIF          bool
}

// DefaultExprSetCap mirrors predicate.DefaultExprSetCap without importing
// the predicate package, so config stays a leaf dependency.
const DefaultExprSetCap = 8

// DefaultMaxDependencyDepth bounds recursive supporting-event resolution.
const DefaultMaxDependencyDepth = 3

// New constructs a Config, filling in the package defaults for any zero-valued
// tunable, then returns it as a value the caller should not mutate further.
func New(apkPath, outDir, packagePrefix string, targets []string) Config {
	return Config{
		APKPath:              apkPath,
		OutDir:               outDir,
		PackagePrefix:        packagePrefix,
		Targets:              targets,
		Workers:              4,
		PathTimeout:          30 * time.Second,
		GlobalTimeout:        10 * time.Minute,
		ExprSetCap:           DefaultExprSetCap,
		MaxDependencyDepth:   DefaultMaxDependencyDepth,
		FilterUIEntryPoints:  true,
		PromotePublicMethods: false,
	}
}
