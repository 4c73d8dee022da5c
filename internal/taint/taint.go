// Package taint classifies symbolic variables as CLEAN, PARTIAL, or FULL
// external-input taint with an attached provenance set (spec.md §4.4).
//
// The classification rules mirror the forward taint dataflow idiom of the
// teacher's graph/callgraph/analysis/taint package (a map-based variable
// state updated statement-by-statement), generalized from the teacher's
// binary tainted/untainted model to the three-valued lattice spec.md §4.4
// requires, and rebased on predicate.Variable instead of a bare string name.
package taint

import (
	"strings"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/predicate"
)

// Class is the three-valued taint classification.
type Class int

const (
	Clean Class = iota
	Partial
	Full
)

func (c Class) String() string {
	switch c {
	case Clean:
		return "CLEAN"
	case Partial:
		return "PARTIAL"
	case Full:
		return "FULL"
	default:
		return "UNKNOWN"
	}
}

// Provenance names one external-input source contributing to a FULL or
// PARTIAL classification.
type Provenance struct {
	Kind     string // "intent_extra", "uri_query", "bundle", "content_values", "preference", "input_parameter", "field", "parameter", "unresolved_call"
	Accessor string // the method signature or field reference
	Key      string // first string literal argument, when known (e.g. the extra's key)
}

// Result is a variable's classification plus the provenance set that
// justifies it.
type Result struct {
	Class      Class
	Provenance []Provenance
}

// Combine implements spec.md §4.4's binary combination table:
// CLEAN+CLEAN -> CLEAN, FULL+FULL -> FULL, any mixture -> PARTIAL.
// Provenances are unioned.
func Combine(a, b Result) Result {
	var class Class
	switch {
	case a.Class == Clean && b.Class == Clean:
		class = Clean
	case a.Class == Full && b.Class == Full:
		class = Full
	default:
		class = Partial
	}
	return Result{Class: class, Provenance: unionProvenance(a.Provenance, b.Provenance)}
}

func unionProvenance(a, b []Provenance) []Provenance {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	seen := make(map[Provenance]bool, len(a)+len(b))
	out := make([]Provenance, 0, len(a)+len(b))
	for _, p := range append(append([]Provenance(nil), a...), b...) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// Tracker classifies Variables within one Arena, memoizing results per
// variable (spec.md §8 "classify(v) = classify(v)" purity invariant).
type Tracker struct {
	arena *predicate.Arena

	// externalAccessors lists method signatures (or substrings thereof)
	// that return externally-controlled data: intent extras, URI getters,
	// bundle getters, content-values getters, preferences.
	externalAccessors []AccessorRule

	// stringOps lists signatures of string-manipulation methods whose
	// result inherits the receiver's classification (toString, substring,
	// trim, toLowerCase, toUpperCase, ...).
	stringOps []string

	cache map[predicate.VariableID]Result
}

// AccessorRule matches an external-input accessor by signature substring
// and records which external-input Kind it represents.
type AccessorRule struct {
	Kind      string
	Signature string // matched as a substring of Variable.Signature
}

// DefaultExternalAccessors is the fixed list spec.md §4.4 refers to for
// Android-style external-input accessors. Callers may extend it with
// entries loaded from a rule pack (internal/config).
func DefaultExternalAccessors() []AccessorRule {
	return []AccessorRule{
		{Kind: "intent_extra", Signature: "Intent.getStringExtra"},
		{Kind: "intent_extra", Signature: "Intent.getExtras"},
		{Kind: "intent_extra", Signature: "Bundle.getString"},
		{Kind: "bundle", Signature: "Bundle.get"},
		{Kind: "uri_query", Signature: "Uri.getQueryParameter"},
		{Kind: "uri_query", Signature: "Uri.getPath"},
		{Kind: "uri_query", Signature: "Uri.getLastPathSegment"},
		{Kind: "content_values", Signature: "ContentValues.getAsString"},
		{Kind: "preference", Signature: "SharedPreferences.getString"},
		{Kind: "input_parameter", Signature: "Cursor.getString"},
	}
}

// DefaultStringOps is the fixed list of pass-through string-manipulation
// methods spec.md §4.4 names.
func DefaultStringOps() []string {
	return []string{"toString", "substring", "trim", "toLowerCase", "toUpperCase"}
}

// NewTracker creates a Tracker over arena with the given accessor/string-op
// rule sets. Pass nil for either to use the package defaults.
func NewTracker(arena *predicate.Arena, accessors []AccessorRule, stringOps []string) *Tracker {
	if accessors == nil {
		accessors = DefaultExternalAccessors()
	}
	if stringOps == nil {
		stringOps = DefaultStringOps()
	}
	return &Tracker{
		arena:             arena,
		externalAccessors: accessors,
		stringOps:         stringOps,
		cache:             make(map[predicate.VariableID]Result),
	}
}

// Classify returns the taint classification for variable id, per spec.md §4.4.
func (t *Tracker) Classify(id predicate.VariableID) Result {
	if r, ok := t.cache[id]; ok {
		return r
	}
	// Guard against accidental re-entrancy before the value is memoized so
	// a self-referential lookup (shouldn't occur given acyclic variables)
	// degrades to Full rather than looping.
	t.cache[id] = Result{Class: Full}

	v := t.arena.Variable(id)
	var r Result
	switch v.Kind {
	case predicate.VarConstant:
		if _, isString := v.Literal.(string); isString || v.Literal == nil {
			r = Result{Class: Clean}
		} else {
			r = Result{Class: Clean}
		}
	case predicate.VarInput:
		r = Result{Class: Full, Provenance: []Provenance{{Kind: "parameter", Accessor: v.Type}}}
	case predicate.VarMethodCall:
		r = t.classifyMethodCall(v)
	case predicate.VarFieldAccess:
		r = Result{Class: Full, Provenance: []Provenance{{Kind: "field", Accessor: v.DeclaringType + "." + v.FieldName}}}
	case predicate.VarHeap:
		r = Result{Class: Full, Provenance: []Provenance{{Kind: "field", Accessor: v.HeapField}}}
	default:
		r = Result{Class: Full}
	}
	t.cache[id] = r
	return r
}

func (t *Tracker) classifyMethodCall(v predicate.Variable) Result {
	if rule, ok := t.matchAccessor(v.Signature); ok {
		key := ""
		if len(v.LiteralArgs) > 0 {
			key = v.LiteralArgs[0]
		}
		return Result{Class: Full, Provenance: []Provenance{{Kind: rule.Kind, Accessor: v.Signature, Key: key}}}
	}
	if t.isStringOp(v.Signature) && v.HasReceiver {
		return t.Classify(v.Receiver)
	}
	// Unrecognized method call: conservative FULL.
	return Result{Class: Full, Provenance: []Provenance{{Kind: "unresolved_call", Accessor: v.Signature}}}
}

func (t *Tracker) matchAccessor(signature string) (AccessorRule, bool) {
	for _, rule := range t.externalAccessors {
		if strings.Contains(signature, rule.Signature) {
			return rule, true
		}
	}
	return AccessorRule{}, false
}

func (t *Tracker) isStringOp(signature string) bool {
	for _, op := range t.stringOps {
		if strings.Contains(signature, "."+op) || signature == op {
			return true
		}
	}
	return false
}

// ClassifyExpr classifies an Expression by combining the classification of
// every Variable it references (spec.md §4.6 reads an Expression Set's
// provenance by walking its operands). An expression with no free
// variables (a plain constant tree) classifies CLEAN.
func (t *Tracker) ClassifyExpr(e predicate.ExprID) Result {
	vars := t.arena.Vars(e)
	if len(vars) == 0 {
		return Result{Class: Clean}
	}
	result := t.Classify(vars[0])
	for _, v := range vars[1:] {
		result = Combine(result, t.Classify(v))
	}
	return result
}
