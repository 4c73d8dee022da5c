// Package icc recognizes inter-component communication sites in a lifted
// method body and resolves their targets against the manifest inventory,
// splicing edges the call-graph builder merges into the traversal graph
// (spec.md §4.2). It is a pure IR-level pass: no tree-sitter access, only
// internal/ir.Statement/CFG.
package icc

import (
	"strings"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/ir"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/manifest"
)

// Kind is the category of ICC site, used to pick the target's entry method.
type Kind string

const (
	KindActivity  Kind = "activity"
	KindService   Kind = "service"
	KindBroadcast Kind = "broadcast"
	KindProvider  Kind = "provider"
	KindMessenger Kind = "messenger"
)

// entryMethodByKind implements spec.md §4.2: "add an edge source -> entry
// method of the target (onCreate / onStartCommand / onReceive / query /
// handleMessage per the sink type)".
var entryMethodByKind = map[Kind]string{
	KindActivity:  "onCreate",
	KindService:   "onStartCommand",
	KindBroadcast: "onReceive",
	KindProvider:  "query",
	KindMessenger: "handleMessage",
}

// siteNames is spec.md §4.2's "Sites recognized" list, keyed by bare method
// name since internal/ir.Statement.CallTarget's owner segment is best-effort
// (it falls back to the receiver's local variable name when the static type
// is unknown — see internal/ir.lowerInvoke).
var siteNames = map[string]Kind{
	"startActivity":          KindActivity,
	"startActivityForResult": KindActivity,
	"startService":           KindService,
	"bindService":            KindService,
	"sendBroadcast":          KindBroadcast,
	"sendOrderedBroadcast":   KindBroadcast,
	"registerReceiver":       KindBroadcast,
	"query":                  KindProvider,
	"insert":                 KindProvider,
	"update":                 KindProvider,
	"delete":                 KindProvider,
	"send":                   KindMessenger,
}

// Edge is one resolved (or flagged-imprecise) ICC edge.
type Edge struct {
	SourceMethod    string
	StatementID     string
	Kind            Kind
	TargetComponent string // empty when Imprecise
	TargetMethod    string // empty when Imprecise
	Imprecise       bool
}

type intentInfo struct {
	class     string
	hasClass  bool
	action    string
	hasAction bool
	authority string
	hasAuth   bool
}

// Resolve walks cfg's statements in control-flow order tracking intent/URI
// construction, then resolves every recognized ICC site against inv.
func Resolve(cfg *ir.CFG, inv *manifest.Inventory) []Edge {
	intents := map[string]*intentInfo{}
	var edges []Edge

	intentFor := func(stmt *ir.Statement) *intentInfo {
		if !stmt.HasReceiver || stmt.Receiver.Local == "" {
			return nil
		}
		info, ok := intents[stmt.Receiver.Local]
		if !ok {
			info = &intentInfo{}
			intents[stmt.Receiver.Local] = info
		}
		return info
	}

	for _, b := range cfg.BlocksInOrder() {
		for _, stmt := range b.Statements {
			if stmt.Kind == ir.StmtCopy {
				if info, ok := intents[stmt.A.Local]; ok {
					intents[stmt.Def] = info
				}
				continue
			}
			if stmt.Kind != ir.StmtInvoke {
				continue
			}

			method := lastSegment(stmt.CallTarget)
			switch method {
			case "<init>":
				if strings.Contains(stmt.ReturnType, "Intent") {
					info := &intentInfo{}
					if len(stmt.Args) == 1 {
						if s, ok := literalString(stmt.Args[0]); ok {
							info.action, info.hasAction = s, true
						}
					}
					intents[stmt.Def] = info
				}
			case "setComponent", "setClass", "setClassName":
				if info := intentFor(stmt); info != nil {
					for _, a := range stmt.Args {
						if s, ok := literalString(a); ok && strings.Contains(s, ".") {
							info.class, info.hasClass = s, true
						}
					}
				}
			case "setAction":
				if info := intentFor(stmt); info != nil {
					if len(stmt.Args) > 0 {
						if s, ok := literalString(stmt.Args[0]); ok {
							info.action, info.hasAction = s, true
						}
					}
				}
			case "parse":
				if ownerOf(stmt.CallTarget) == "Uri" && len(stmt.Args) > 0 {
					if s, ok := literalString(stmt.Args[0]); ok {
						info := &intentInfo{}
						if authority, ok := parseAuthority(s); ok {
							info.authority, info.hasAuth = authority, true
						}
						intents[stmt.Def] = info
					}
				}
			}

			if kind, ok := siteNames[method]; ok {
				edges = append(edges, resolveSite(cfg.MethodFQN, stmt, kind, intents, inv)...)
			}
		}
	}

	return edges
}

func resolveSite(sourceMethod string, stmt *ir.Statement, kind Kind, intents map[string]*intentInfo, inv *manifest.Inventory) []Edge {
	imprecise := func() []Edge {
		return []Edge{{SourceMethod: sourceMethod, StatementID: stmt.ID, Kind: kind, Imprecise: true}}
	}

	method := lastSegment(stmt.CallTarget)
	if method == "registerReceiver" || kind == KindMessenger {
		// The target object is handed directly (a BroadcastReceiver instance,
		// or a bound Messenger's remote handler); resolving it needs
		// points-to information this pass does not have. Recognized, but
		// always left imprecise.
		return imprecise()
	}

	if len(stmt.Args) == 0 {
		return imprecise()
	}
	info := intents[stmt.Args[0].Local]
	if info == nil {
		return imprecise()
	}

	if kind == KindProvider {
		if !info.hasAuth {
			return imprecise()
		}
		comp, ok := inv.AuthorityRoutes()[info.authority]
		if !ok {
			return imprecise()
		}
		return []Edge{{SourceMethod: sourceMethod, StatementID: stmt.ID, Kind: kind, TargetComponent: comp.Name, TargetMethod: entryMethodByKind[kind]}}
	}

	if info.hasClass {
		return []Edge{{SourceMethod: sourceMethod, StatementID: stmt.ID, Kind: kind, TargetComponent: info.class, TargetMethod: entryMethodByKind[kind]}}
	}

	if info.hasAction {
		comps := inv.ActionRoutes()[info.action]
		if len(comps) == 0 {
			return imprecise()
		}
		edges := make([]Edge, 0, len(comps))
		for _, c := range comps {
			edges = append(edges, Edge{SourceMethod: sourceMethod, StatementID: stmt.ID, Kind: kind, TargetComponent: c.Name, TargetMethod: entryMethodByKind[kind]})
		}
		return edges
	}

	return imprecise()
}

func literalString(op ir.Operand) (string, bool) {
	if !op.IsLiteral {
		return "", false
	}
	s, ok := op.Literal.(string)
	return s, ok
}

// lastSegment returns the method-name portion of a CallTarget ("Owner.method" -> "method").
func lastSegment(callTarget string) string {
	if i := strings.LastIndex(callTarget, "."); i >= 0 {
		return callTarget[i+1:]
	}
	return callTarget
}

// ownerOf returns the owner portion of a CallTarget ("Owner.method" -> "Owner").
func ownerOf(callTarget string) string {
	if i := strings.LastIndex(callTarget, "."); i >= 0 {
		return callTarget[:i]
	}
	return ""
}

func parseAuthority(uri string) (string, bool) {
	const scheme = "content://"
	if !strings.HasPrefix(uri, scheme) {
		return "", false
	}
	rest := strings.TrimPrefix(uri, scheme)
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}
