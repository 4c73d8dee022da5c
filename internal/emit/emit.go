// Package emit serializes one package's discovered Event Chains to the
// on-disk layout spec.md §6 specifies: a top-level appInfo.json indexing
// every chain, plus one execution.py/path.{txt,py}/metadata.json triple per
// Event under <out>/<package>/<category>/constraints/<event-id>/. Grounded
// on the teacher's output package (output/json_formatter.go's typed
// JSON-shape-plus-io.Writer pattern, output/sarif_formatter.go's SARIF
// companion) but emitting a directory tree of files rather than one stream,
// since spec.md's consumers are downstream tooling that reads per-event
// artifacts directly rather than one combined report.
package emit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	sarif "github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/constraint"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/pathenum"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/predicate"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/strparam"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/taint"
)

// Event is one entry of appInfo.json's "events" list (spec.md §6 schema).
type Event struct {
	Type                    string                  `json:"Type"`
	Component               string                  `json:"Component"`
	Path                    []string                `json:"Path"`
	ExecutionConstraintFile string                  `json:"ExecutionConstraintFile,omitempty"`
	PathConstraintFile      string                  `json:"PathConstraintFile,omitempty"`
	MetadataFile            string                  `json:"MetadataFile,omitempty"`
	VulnerabilityType       string                  `json:"VulnerabilityType"`
	PathType                string                  `json:"PathType"`
	Variables               map[string]VariableInfo `json:"Variables,omitempty"`
}

// VariableInfo documents one symbolic variable referenced by an Event's
// constraint, keyed by a display name in the enclosing Event.Variables map.
type VariableInfo struct {
	Kind       string `json:"kind"`
	Type       string `json:"type"`
	Provenance string `json:"provenance,omitempty"`
}

// Chain is one Event Chain: a root Event plus its recursively discovered
// Supporting Events (spec.md §3).
type Chain struct {
	ID     int     `json:"id"`
	Events []Event `json:"events"`
}

// AppInfo is the top-level appInfo.json document.
type AppInfo struct {
	Package     string   `json:"package"`
	EventChains []Chain  `json:"eventChains"`
	Unresolved  []string `json:"unresolved,omitempty"`
}

// PathInfo is metadata.json's resolved-value summary.
type PathInfo struct {
	Literal             string `json:"literal,omitempty"`
	Prefix              string `json:"prefix,omitempty"`
	ConstructionPattern string `json:"construction_pattern,omitempty"`
}

// ParameterProvenance is one entry of metadata.json's "parameters" list.
type ParameterProvenance struct {
	Index    int    `json:"index"`
	Kind     string `json:"kind"`
	Accessor string `json:"accessor,omitempty"`
	Key      string `json:"key,omitempty"`
}

// Metadata is the metadata.json document for one Event.
type Metadata struct {
	VulnerabilityType string                `json:"vulnerability_type"`
	PathType          string                `json:"path_type"`
	TargetMethod      string                `json:"target_method"`
	PathInfo          PathInfo              `json:"path_info"`
	Parameters        []ParameterProvenance `json:"parameters"`
}

// Emitter writes the on-disk layout for one analyzed package under OutDir.
type Emitter struct {
	OutDir string
}

// New builds an Emitter rooted at outDir.
func New(outDir string) *Emitter {
	return &Emitter{OutDir: outDir}
}

// categoryDir maps a VulnerabilityType to its on-disk directory segment.
// traversal_partial/traversal_full nest under one shared traversal/ parent
// (spec.md §6: "Categories: hijacking, traversal/partial, traversal/full,
// execution_only"); the other two are single path segments.
func categoryDir(vulnerabilityType string) string {
	switch vulnerabilityType {
	case "traversal_partial":
		return filepath.Join("traversal", "partial")
	case "traversal_full":
		return filepath.Join("traversal", "full")
	default:
		return vulnerabilityType
	}
}

// EmitEvent writes one Event's artifacts and returns its appInfo.json
// record. primary is the resolved String-Parameter Constraint for the
// sink's file-path argument, or nil when the sink carries no string
// argument at all (spec.md §6 boundary behavior: an empty Expression-Set
// classifies EXECUTION_ONLY, with no path.{py,txt} emitted).
func (e *Emitter) EmitEvent(pkg, eventID, entryType, component string, path pathenum.CallPath, result *constraint.Result, primary *strparam.Constraint) (Event, error) {
	pathType, vulnType := classify(primary)

	dir := filepath.Join(e.OutDir, pkg, categoryDir(vulnType), "constraints", eventID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Event{}, fmt.Errorf("emit: %w", err)
	}

	ev := Event{
		Type:              entryType,
		Component:         component,
		Path:              pathSteps(path),
		VulnerabilityType: vulnType,
		PathType:          string(pathType),
		Variables:         variablesOf(result),
	}

	execFile := "execution.py"
	if err := writeFile(filepath.Join(dir, execFile), renderExecutionPy(path, result)); err != nil {
		return Event{}, err
	}
	ev.ExecutionConstraintFile = execFile

	if pathFile, content, ok := renderPathFile(primary); ok {
		if err := writeFile(filepath.Join(dir, pathFile), content); err != nil {
			return Event{}, err
		}
		ev.PathConstraintFile = pathFile
	}

	metaFile := "metadata.json"
	meta := buildMetadata(path, pathType, vulnType, primary)
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return Event{}, fmt.Errorf("emit: %w", err)
	}
	if err := writeFile(filepath.Join(dir, metaFile), string(metaBytes)); err != nil {
		return Event{}, err
	}
	ev.MetadataFile = metaFile

	return ev, nil
}

// WriteAppInfo writes <out>/<package>/appInfo.json.
func (e *Emitter) WriteAppInfo(pkg string, chains []Chain, unresolved []string) error {
	info := AppInfo{Package: pkg, EventChains: chains, Unresolved: unresolved}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("emit: %w", err)
	}
	dir := filepath.Join(e.OutDir, pkg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("emit: %w", err)
	}
	return writeFile(filepath.Join(dir, "appInfo.json"), string(data))
}

// WriteSARIF writes a SARIF 2.1.0 companion report alongside appInfo.json,
// gated behind config.Config.SARIF. One SARIF result is emitted per Event in
// every chain, Supporting Events included, each located at its component;
// no SARIF code flows are written.
func (e *Emitter) WriteSARIF(pkg string, chains []Chain) error {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return fmt.Errorf("emit: %w", err)
	}
	run := sarif.NewRunWithInformationURI("pathsentinel", "https://github.com/shivasurya/code-pathfinder")

	seenRules := map[string]bool{}
	for _, chain := range chains {
		for _, ev := range chain.Events {
			if !seenRules[ev.VulnerabilityType] {
				seenRules[ev.VulnerabilityType] = true
				run.AddRule(ev.VulnerabilityType).
					WithDescription(vulnerabilityDescription(ev.VulnerabilityType)).
					WithName(ev.VulnerabilityType).
					WithDefaultConfiguration(sarif.NewReportingConfiguration().WithLevel(sarifLevel(ev.VulnerabilityType)))
			}

			message := fmt.Sprintf("%s sink reachable via %s (%s)", ev.VulnerabilityType, ev.Component, ev.PathType)
			result := run.CreateResultForRule(ev.VulnerabilityType).
				WithMessage(sarif.NewTextMessage(message))

			location := sarif.NewLocation().WithPhysicalLocation(
				sarif.NewPhysicalLocation().WithArtifactLocation(
					sarif.NewArtifactLocation().WithUri(ev.Component),
				),
			)
			result.AddLocation(location)
		}
	}

	report.AddRun(run)
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("emit: %w", err)
	}
	dir := filepath.Join(e.OutDir, pkg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("emit: %w", err)
	}
	return writeFile(filepath.Join(dir, "appInfo.sarif.json"), string(data))
}

func sarifLevel(vulnerabilityType string) string {
	switch vulnerabilityType {
	case "hijacking", "traversal_full":
		return "error"
	case "traversal_partial":
		return "warning"
	default:
		return "note"
	}
}

func vulnerabilityDescription(vulnerabilityType string) string {
	switch vulnerabilityType {
	case "hijacking":
		return "Sink reached with an attacker-predictable hard-coded path"
	case "traversal_partial":
		return "Sink reached with an attacker-influenced suffix atop a fixed prefix"
	case "traversal_full":
		return "Sink reached with a fully attacker-controlled path"
	default:
		return "Sink reached with no controllable file-path argument"
	}
}

func classify(c *strparam.Constraint) (strparam.PathType, string) {
	if c == nil {
		return strparam.ExecutionOnly, strparam.ExecutionOnly.VulnerabilityType()
	}
	return c.PathType, c.PathType.VulnerabilityType()
}

// pathSteps renders a CallPath's method sequence plus a terminal
// sink-statement descriptor, matching appInfo.json's
// `"Path": [ method-sig, ..., terminal-unit-str ]`.
func pathSteps(path pathenum.CallPath) []string {
	steps := make([]string, 0, len(path.Steps)+1)
	for _, s := range path.Steps {
		steps = append(steps, s.Method)
	}
	steps = append(steps, fmt.Sprintf("%s@%s:%d", path.SinkMethod, path.Sink.Kind, path.Sink.LineNumber))
	return steps
}

// variablesOf documents every symbolic variable referenced by an Event's
// final path constraint.
func variablesOf(result *constraint.Result) map[string]VariableInfo {
	if result == nil || result.PathConstraint == nil {
		return nil
	}
	ids := map[predicate.VariableID]bool{}
	var walk func(p *predicate.Predicate)
	walk = func(p *predicate.Predicate) {
		if p == nil {
			return
		}
		switch p.Kind {
		case predicate.KindAtom:
			for _, v := range result.Arena.Vars(p.Atom) {
				ids[v] = true
			}
		case predicate.KindNot:
			walk(p.Operand)
		case predicate.KindAnd, predicate.KindOr:
			for _, o := range p.Operands {
				walk(o)
			}
		}
	}
	walk(result.PathConstraint)
	if len(ids) == 0 {
		return nil
	}

	vars := make(map[string]VariableInfo, len(ids))
	for id := range ids {
		v := result.Arena.Variable(id)
		name := fmt.Sprintf("%s_%d", strings.ToLower(v.Kind.String()), int(id))
		vars[name] = VariableInfo{Kind: v.Kind.String(), Type: v.Type, Provenance: provenanceOf(v)}
	}
	return vars
}

func provenanceOf(v predicate.Variable) string {
	switch v.Kind {
	case predicate.VarInput:
		if v.SlotIndex < 0 {
			return "receiver"
		}
		return fmt.Sprintf("parameter(%d)", v.SlotIndex)
	case predicate.VarMethodCall:
		return v.Signature
	case predicate.VarFieldAccess:
		return v.DeclaringType + "." + v.FieldName
	case predicate.VarHeap:
		return "heap:" + v.HeapField
	default:
		return ""
	}
}

// renderExecutionPy encodes the minimized path constraint for the external
// SMT oracle (spec.md §6 "execution.py"), as a z3-style Python script: one
// free Bool per atom, the constraint asserted via And/Or/Not composition,
// preceded by the two required comment lines naming the entry method and
// terminal sink statement.
func renderExecutionPy(path pathenum.CallPath, result *constraint.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# entry: %s\n", path.Root)
	fmt.Fprintf(&b, "# sink: %s@%s:%d\n", path.SinkMethod, path.Sink.Kind, path.Sink.LineNumber)
	b.WriteString("from z3 import *\n\ns = Solver()\n")

	if result == nil || result.PathConstraint == nil {
		b.WriteString("s.add(True)\n")
		return b.String()
	}

	atoms := collectAtoms(result.PathConstraint)
	for _, id := range atoms {
		fmt.Fprintf(&b, "%s = Bool(%q)\n", pyVar(id), fmt.Sprintf("atom_%d", int(id)))
	}
	fmt.Fprintf(&b, "s.add(%s)\n", renderZ3(result.PathConstraint))
	return b.String()
}

func collectAtoms(p *predicate.Predicate) []predicate.ExprID {
	seen := map[predicate.ExprID]bool{}
	var walk func(p *predicate.Predicate)
	walk = func(p *predicate.Predicate) {
		if p == nil {
			return
		}
		switch p.Kind {
		case predicate.KindAtom:
			seen[p.Atom] = true
		case predicate.KindNot:
			walk(p.Operand)
		case predicate.KindAnd, predicate.KindOr:
			for _, o := range p.Operands {
				walk(o)
			}
		}
	}
	walk(p)
	atoms := make([]predicate.ExprID, 0, len(seen))
	for id := range seen {
		atoms = append(atoms, id)
	}
	sort.Slice(atoms, func(i, j int) bool { return atoms[i] < atoms[j] })
	return atoms
}

func pyVar(id predicate.ExprID) string {
	return "v" + strconv.Itoa(int(id))
}

func renderZ3(p *predicate.Predicate) string {
	switch p.Kind {
	case predicate.KindTrue:
		return "True"
	case predicate.KindFalse:
		return "False"
	case predicate.KindAtom:
		return pyVar(p.Atom)
	case predicate.KindNot:
		return "Not(" + renderZ3(p.Operand) + ")"
	case predicate.KindAnd, predicate.KindOr:
		parts := make([]string, len(p.Operands))
		for i, o := range p.Operands {
			parts[i] = renderZ3(o)
		}
		fn := "And"
		if p.Kind == predicate.KindOr {
			fn = "Or"
		}
		return fn + "(" + strings.Join(parts, ", ") + ")"
	default:
		return "True"
	}
}

// renderPathFile builds path.txt (HARD_CODED) or path.py
// (PARTIALLY_CONTROLLED/FULLY_CONTROLLED); returns ok=false for
// EXECUTION_ONLY, which emits neither (spec.md §6 boundary behavior).
func renderPathFile(c *strparam.Constraint) (name, content string, ok bool) {
	if c == nil {
		return "", "", false
	}

	var b strings.Builder
	switch c.PathType {
	case strparam.HardCoded:
		if c.HasLiteral {
			fmt.Fprintf(&b, "path = %s\n", c.Literal)
		}
		writeProvenanceComments(&b, c.Sources)
		return "path.txt", b.String(), true
	case strparam.PartiallyControlled, strparam.FullyControlled:
		b.WriteString("from z3 import *\n\ns = Solver()\nfile_path = String(\"file_path\")\n")
		if c.HasPrefix && c.Prefix != "" {
			fmt.Fprintf(&b, "s.add(PrefixOf(StringVal(%q), file_path))\n", c.Prefix)
		} else {
			b.WriteString("s.add(file_path != StringVal(\"\"))\n")
		}
		writeProvenanceComments(&b, c.Sources)
		return "path.py", b.String(), true
	default:
		return "", "", false
	}
}

func writeProvenanceComments(b *strings.Builder, sources []taint.Provenance) {
	for _, s := range sources {
		fmt.Fprintf(b, "# external input: %s(%s)\n", s.Kind, strings.TrimSpace(s.Accessor+" "+s.Key))
	}
}

func buildMetadata(path pathenum.CallPath, pathType strparam.PathType, vulnType string, c *strparam.Constraint) Metadata {
	meta := Metadata{
		VulnerabilityType: vulnType,
		PathType:          string(pathType),
		TargetMethod:      path.Sink.CallTarget,
	}
	if c == nil {
		return meta
	}
	if c.HasLiteral {
		meta.PathInfo.Literal = c.Literal
	}
	if c.HasPrefix {
		meta.PathInfo.Prefix = c.Prefix
	}
	meta.PathInfo.ConstructionPattern = constructionPattern(c)

	meta.Parameters = make([]ParameterProvenance, len(c.Sources))
	for i, s := range c.Sources {
		meta.Parameters[i] = ParameterProvenance{Index: c.ArgIndex, Kind: s.Kind, Accessor: s.Accessor, Key: s.Key}
	}
	return meta
}

func constructionPattern(c *strparam.Constraint) string {
	switch {
	case c.HasLiteral:
		return "literal"
	case c.HasPrefix:
		return "concat"
	default:
		return "opaque"
	}
}

func writeFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("emit: write %s: %w", path, err)
	}
	return nil
}
