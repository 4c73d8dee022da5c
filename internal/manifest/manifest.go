// Package manifest reads the declared-component inventory of an Android
// application package. spec.md §1 names the manifest reader an external
// collaborator "specified only by the interfaces it exposes"; this package
// is the concrete default since nothing else in this standalone module
// supplies one. XML decoding is a boundary-deserialization concern (see
// DESIGN.md's stdlib-only ledger), so it uses the standard library's
// encoding/xml rather than a third-party dependency.
package manifest

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Kind is the component kind spec.md's GLOSSARY defines.
type Kind string

const (
	Activity Kind = "activity"
	Service  Kind = "service"
	Receiver Kind = "receiver"
	Provider Kind = "provider"
)

// IntentFilter records one <intent-filter>'s actions. Actions route intents
// to a component (spec.md §4.2 "Implicit target"); they are never treated
// as distinct entry points (spec.md §4.1 policy).
type IntentFilter struct {
	Actions []string
}

// Component is one declared application component.
type Component struct {
	Name          string // fully-qualified class name
	Kind          Kind
	Exported      bool
	IntentFilters []IntentFilter
	Authorities   []string // content-provider authorities, only set for Kind == Provider
}

// Inventory is the full parsed manifest: the application's package prefix
// and its declared components.
type Inventory struct {
	Package    string
	Components []Component
}

// FilterByPackagePrefix returns the subset of components whose Name starts
// with prefix, implementing spec.md §4.1's "Components are filtered to
// those belonging to the application under analysis" policy. An empty
// prefix matches everything (no filtering).
func (inv *Inventory) FilterByPackagePrefix(prefix string) []Component {
	if prefix == "" {
		return inv.Components
	}
	var out []Component
	for _, c := range inv.Components {
		if strings.HasPrefix(c.Name, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// ActionRoutes returns the map from intent-filter action to the components
// that declare it, used by the ICC resolver's implicit-target resolution
// (spec.md §4.2 step 2).
func (inv *Inventory) ActionRoutes() map[string][]Component {
	routes := make(map[string][]Component)
	for _, c := range inv.Components {
		for _, f := range c.IntentFilters {
			for _, action := range f.Actions {
				routes[action] = append(routes[action], c)
			}
		}
	}
	return routes
}

// AuthorityRoutes returns the map from content-provider authority to its
// declaring component (spec.md §4.2 step 3).
func (inv *Inventory) AuthorityRoutes() map[string]Component {
	routes := make(map[string]Component)
	for _, c := range inv.Components {
		if c.Kind != Provider {
			continue
		}
		for _, a := range c.Authorities {
			routes[a] = c
		}
	}
	return routes
}

// --- XML schema (trimmed to the fields this analysis needs) ---

type xmlManifest struct {
	XMLName xml.Name        `xml:"manifest"`
	Package string          `xml:"package,attr"`
	App     xmlApplication  `xml:"application"`
}

type xmlApplication struct {
	Activities []xmlComponent `xml:"activity"`
	Services   []xmlComponent `xml:"service"`
	Receivers  []xmlComponent `xml:"receiver"`
	Providers  []xmlComponent `xml:"provider"`
}

type xmlComponent struct {
	Name          string           `xml:"name,attr"`
	Exported      string           `xml:"exported,attr"`
	Authorities   string           `xml:"authorities,attr"`
	IntentFilters []xmlIntentFilter `xml:"intent-filter"`
}

type xmlIntentFilter struct {
	Actions []xmlAction `xml:"action"`
}

type xmlAction struct {
	Name string `xml:"name,attr"`
}

// Parse decodes an AndroidManifest.xml-shaped document into an Inventory.
func Parse(r io.Reader) (*Inventory, error) {
	var doc xmlManifest
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}

	inv := &Inventory{Package: doc.Package}
	add := func(kind Kind, comps []xmlComponent) {
		for _, c := range comps {
			inv.Components = append(inv.Components, toComponent(doc.Package, kind, c))
		}
	}
	add(Activity, doc.App.Activities)
	add(Service, doc.App.Services)
	add(Receiver, doc.App.Receivers)
	add(Provider, doc.App.Providers)
	return inv, nil
}

func toComponent(pkg string, kind Kind, c xmlComponent) Component {
	name := c.Name
	if strings.HasPrefix(name, ".") {
		name = pkg + name
	} else if !strings.Contains(name, ".") {
		name = pkg + "." + name
	}

	comp := Component{
		Name:     name,
		Kind:     kind,
		Exported: c.Exported == "true",
	}
	// A component with at least one intent-filter is implicitly exported
	// unless explicitly marked otherwise, matching Android's own default.
	if c.Exported == "" && len(c.IntentFilters) > 0 {
		comp.Exported = true
	}
	if c.Authorities != "" {
		comp.Authorities = strings.Split(c.Authorities, ";")
	}
	for _, f := range c.IntentFilters {
		filter := IntentFilter{}
		for _, a := range f.Actions {
			filter.Actions = append(filter.Actions, a.Name)
		}
		comp.IntentFilters = append(comp.IntentFilters, filter)
	}
	return comp
}
