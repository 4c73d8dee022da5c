// Package strparam classifies a sink's string arguments as HARD_CODED,
// PARTIALLY_CONTROLLED, or FULLY_CONTROLLED (spec.md §4.6), recovering the
// hard-coded literal or fixed clean prefix where resolvable, and resolves
// file-path-constructor and StringBuilder-style construction chains back to
// their component literals. Operates entirely over one path's
// internal/predicate.Arena and internal/taint.Tracker, the same pair
// internal/constraint assembled the path constraint from.
package strparam

import (
	"strings"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/predicate"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/taint"
)

// PathType is the classification spec.md §3 defines for a String-Parameter
// Constraint, plus ExecutionOnly for an empty Expression-Set (spec.md §4.5/
// §6 "Boundary behavior": "a path whose Expression-Set for a sink string
// argument is empty is classified execution_only").
type PathType string

const (
	HardCoded           PathType = "HARD_CODED"
	PartiallyControlled PathType = "PARTIALLY_CONTROLLED"
	FullyControlled     PathType = "FULLY_CONTROLLED"
	ExecutionOnly       PathType = "EXECUTION_ONLY"
)

// VulnerabilityType maps a PathType to the on-disk category spec.md §6 uses
// ("hijacking", "traversal_partial", "traversal_full", "execution_only").
func (p PathType) VulnerabilityType() string {
	switch p {
	case HardCoded:
		return "hijacking"
	case PartiallyControlled:
		return "traversal_partial"
	case FullyControlled:
		return "traversal_full"
	default:
		return "execution_only"
	}
}

func rank(p PathType) int {
	switch p {
	case HardCoded:
		return 0
	case PartiallyControlled:
		return 1
	case FullyControlled:
		return 2
	default:
		return -1
	}
}

// Constraint is one String-Parameter Constraint (spec.md §3).
type Constraint struct {
	ArgIndex   int
	Set        *predicate.ExprSet
	PathType   PathType
	Literal    string
	HasLiteral bool
	Prefix     string
	HasPrefix  bool
	Sources    []taint.Provenance
}

// wellKnownDirectoryByMethod maps well-known-directory accessor method names
// to their canonical literal path (spec.md §4.6). Matched by bare method
// name rather than declaring type, since internal/ir's CallTarget owner
// segment falls back to the receiver's local variable name when the static
// type is unknown.
var wellKnownDirectoryByMethod = map[string]string{
	"getFilesDir":                 "/data/data/<package>/files",
	"getCacheDir":                 "/data/data/<package>/cache",
	"getExternalFilesDir":         "/sdcard/Android/data/<package>/files",
	"getExternalCacheDir":         "/sdcard/Android/data/<package>/cache",
	"getExternalStorageDirectory": "/sdcard",
}

// fileConstructorTypeNames are the (parent, child) file-opening constructors
// spec.md §4.6 names.
var fileConstructorTypeNames = []string{"File", "FileOutputStream", "FileInputStream", "RandomAccessFile"}

// Resolver classifies Expression-Sets against one path's Arena and Tracker.
type Resolver struct {
	arena   *predicate.Arena
	tracker *taint.Tracker
}

// NewResolver builds a Resolver. arena and tracker must belong to the same
// Call Path as the Expression-Sets passed to Resolve.
func NewResolver(arena *predicate.Arena, tracker *taint.Tracker) *Resolver {
	return &Resolver{arena: arena, tracker: tracker}
}

// Resolve classifies the Expression-Set bound to a sink's argIndex-th
// argument, immediately before the sink fires (spec.md §4.6).
func (r *Resolver) Resolve(argIndex int, set *predicate.ExprSet) Constraint {
	if set.Empty() {
		return Constraint{ArgIndex: argIndex, Set: set, PathType: ExecutionOnly}
	}

	items := set.Items()
	candidates := make([]Constraint, len(items))
	for i, item := range items {
		candidates[i] = r.resolveOne(item)
	}

	c := mergeCandidates(candidates)
	c.ArgIndex = argIndex
	c.Set = set
	return c
}

// resolveOne classifies a single candidate expression: it flattens the
// expression's string-concatenation tree into its left-to-right component
// operands, classifies each via internal/taint, and applies spec.md §4.6's
// three-way rule.
func (r *Resolver) resolveOne(item predicate.ExprID) Constraint {
	leaves := r.flattenConcat(item)
	results := make([]taint.Result, len(leaves))
	for i, leaf := range leaves {
		results[i] = r.tracker.ClassifyExpr(leaf)
	}

	allClean, anyClean, allFull := true, false, true
	for _, res := range results {
		if res.Class == taint.Clean {
			anyClean = true
		} else {
			allClean = false
		}
		if res.Class != taint.Full {
			allFull = false
		}
	}

	var c Constraint
	switch {
	case allClean:
		c.PathType = HardCoded
		c.Literal, c.HasLiteral = r.concatLiterals(leaves)
	case allFull:
		c.PathType = FullyControlled
	case anyClean:
		c.PathType = PartiallyControlled
		c.Prefix, c.HasPrefix = r.leadingCleanPrefix(leaves, results)
	default:
		// Neither CLEAN nor uniformly FULL (a PARTIAL operand mixed in, with
		// no CLEAN prefix to anchor on): no stable literal portion exists to
		// report, so this is FULLY_CONTROLLED rather than a degenerate
		// PARTIALLY_CONTROLLED with an empty prefix.
		c.PathType = FullyControlled
	}
	c.Sources = sourcesOf(results)
	return c
}

// mergeCandidates folds multiple alternative candidate expressions reaching
// the same sink argument (possible when the Data Map merged at a CFG join
// upstream of the sink) into one Constraint: the riskiest PathType wins,
// and a literal/prefix is only kept when every candidate agrees on it —
// "prefix" has no coherent meaning across alternative whole values, only
// across the operands of one concatenation, so the multi-candidate case
// never reports one.
func mergeCandidates(candidates []Constraint) Constraint {
	if len(candidates) == 1 {
		return candidates[0]
	}

	riskiest := HardCoded
	sameLiteral := true
	literal := ""
	first := true
	var sources []taint.Provenance
	seen := map[taint.Provenance]bool{}

	for _, c := range candidates {
		if rank(c.PathType) > rank(riskiest) {
			riskiest = c.PathType
		}
		if c.PathType != HardCoded || !c.HasLiteral {
			sameLiteral = false
		} else if first {
			literal, first = c.Literal, false
		} else if literal != c.Literal {
			sameLiteral = false
		}
		for _, s := range c.Sources {
			if !seen[s] {
				seen[s] = true
				sources = append(sources, s)
			}
		}
	}

	out := Constraint{PathType: riskiest, Sources: sources}
	if riskiest == HardCoded && sameLiteral {
		out.Literal, out.HasLiteral = literal, true
	}
	return out
}

// flattenConcat decomposes id's StringConcat tree into its leaf operands in
// left-to-right order; a non-concat expression is its own single leaf.
func (r *Resolver) flattenConcat(id predicate.ExprID) []predicate.ExprID {
	e := r.arena.Expr(id)
	if e.Kind == predicate.ExprStringConcat {
		return append(r.flattenConcat(e.L), r.flattenConcat(e.R)...)
	}
	return []predicate.ExprID{id}
}

func (r *Resolver) concatLiterals(leaves []predicate.ExprID) (string, bool) {
	var sb strings.Builder
	for _, leaf := range leaves {
		s, ok := r.resolveComponent(leaf)
		if !ok {
			return "", false
		}
		sb.WriteString(s)
	}
	return sb.String(), true
}

func (r *Resolver) leadingCleanPrefix(leaves []predicate.ExprID, results []taint.Result) (string, bool) {
	var sb strings.Builder
	any := false
	for i, leaf := range leaves {
		if results[i].Class != taint.Clean {
			break
		}
		s, ok := r.resolveComponent(leaf)
		if !ok {
			break
		}
		sb.WriteString(s)
		any = true
	}
	return sb.String(), any
}

// resolveComponent resolves a single component expression to its literal
// text: a plain constant/concat/ADD tree via Arena.Literal, or (when the
// component is itself a Method-Call) a file-path-constructor or
// StringBuilder chain, or a well-known-directory accessor.
func (r *Resolver) resolveComponent(e predicate.ExprID) (string, bool) {
	if lit, ok := r.arena.Literal(e); ok {
		return lit, true
	}
	expr := r.arena.Expr(e)
	if expr.Kind != predicate.ExprVarRef {
		return "", false
	}
	v := r.arena.Variable(expr.Var)
	if v.Kind != predicate.VarMethodCall {
		return "", false
	}
	if s, ok := r.ResolveFileConstructor(expr.Var); ok {
		return s, true
	}
	return r.ResolveBuilderChain(expr.Var)
}

// ResolveFileConstructor recursively resolves a file-opening constructor's
// (parent, child) arguments to a single literal path, descending through
// nested file-constructor or well-known-directory-accessor Method-Call
// variables and collapsing duplicate path separators (spec.md §4.6
// "File-path constructor resolution").
func (r *Resolver) ResolveFileConstructor(id predicate.VariableID) (string, bool) {
	v := r.arena.Variable(id)
	if v.Kind != predicate.VarMethodCall {
		return "", false
	}
	if dir, ok := wellKnownDirectoryByMethod[bareMethodName(v.Signature)]; ok {
		return dir, true
	}
	if !isFileConstructor(v.Signature) || len(v.Args) != 2 {
		return "", false
	}

	child, childOK := r.resolveComponent(v.Args[1])
	if !childOK {
		return "", false
	}
	parent, parentOK := r.resolveComponent(v.Args[0])
	if !parentOK || parent == "" {
		return child, true
	}
	return strings.TrimRight(parent, "/") + "/" + strings.TrimLeft(child, "/"), true
}

// ResolveBuilderChain recursively resolves a StringBuilder/StringBuffer
// toString() call back through its chain of append() calls to a single
// literal, provided every appended operand itself resolves (spec.md §4.6
// "Builder resolution").
func (r *Resolver) ResolveBuilderChain(id predicate.VariableID) (string, bool) {
	v := r.arena.Variable(id)
	if v.Kind != predicate.VarMethodCall || bareMethodName(v.Signature) != "toString" || !v.HasReceiver {
		return "", false
	}
	parts, ok := r.collectAppends(v.Receiver)
	if !ok {
		return "", false
	}
	return strings.Join(parts, ""), true
}

// collectAppends walks backward through a chain of append() calls to the
// builder's constructor (which may itself carry an initial literal
// argument), returning the appended components in call order.
func (r *Resolver) collectAppends(id predicate.VariableID) ([]string, bool) {
	v := r.arena.Variable(id)
	if v.Kind != predicate.VarMethodCall {
		return nil, false
	}
	switch bareMethodName(v.Signature) {
	case "<init>":
		if len(v.Args) == 0 {
			return nil, true
		}
		s, ok := r.resolveComponent(v.Args[0])
		if !ok {
			return nil, false
		}
		return []string{s}, true
	case "append":
		if !v.HasReceiver || len(v.Args) == 0 {
			return nil, false
		}
		prefix, ok := r.collectAppends(v.Receiver)
		if !ok {
			return nil, false
		}
		s, ok := r.resolveComponent(v.Args[0])
		if !ok {
			return nil, false
		}
		return append(prefix, s), true
	default:
		return nil, false
	}
}

func bareMethodName(callTarget string) string {
	if i := strings.LastIndex(callTarget, "."); i >= 0 {
		return callTarget[i+1:]
	}
	return callTarget
}

func isFileConstructor(callTarget string) bool {
	if !strings.HasSuffix(callTarget, ".<init>") {
		return false
	}
	owner := strings.TrimSuffix(callTarget, ".<init>")
	for _, name := range fileConstructorTypeNames {
		if owner == name || strings.HasSuffix(owner, "."+name) {
			return true
		}
	}
	return false
}

func sourcesOf(results []taint.Result) []taint.Provenance {
	seen := map[taint.Provenance]bool{}
	var out []taint.Provenance
	for _, res := range results {
		for _, p := range res.Provenance {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}
