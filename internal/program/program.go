// Package program loads a decompiled Android application tree from disk:
// the AndroidManifest.xml and the Java source files beneath it. It is the
// concrete on-disk counterpart of the external collaborators spec.md treats
// as assumed inputs (the manifest reader and the bytecode-to-IR lifter) —
// internal/manifest and internal/ir already implement those interfaces;
// this package is the glue that walks a directory and feeds them, the way
// the teacher's graph.Initialize walks a project directory for its own
// tree-sitter lift.
package program

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/callgraph"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/ir"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/manifest"
)

// Program is the loaded analysis input: the manifest inventory plus every
// method body lifted from the Java sources, ready to back a
// callgraph.StaticSource.
type Program struct {
	Manifest *manifest.Inventory
	CFGs     map[string]*ir.CFG
}

// Load walks root for AndroidManifest.xml and *.java files and lifts every
// method body it finds. A file that fails to parse is skipped with its
// error recorded rather than aborting the whole load — spec.md §7 treats
// "missing class, missing body" as structural, logged-and-skipped, not fatal.
func Load(root string) (*Program, []error) {
	var errs []error

	inv, err := loadManifest(root)
	if err != nil {
		errs = append(errs, err)
		inv = &manifest.Inventory{}
	}

	cfgs := make(map[string]*ir.CFG)
	walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".java") {
			return nil
		}
		if ferr := loadFile(path, cfgs); ferr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, ferr))
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}

	return &Program{Manifest: inv, CFGs: cfgs}, errs
}

// Source builds the callgraph.MethodSource this Program backs.
func (p *Program) Source() *callgraph.StaticSource {
	return callgraph.NewStaticSource(p.CFGs)
}

func loadManifest(root string) (*manifest.Inventory, error) {
	var found string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && info.Name() == "AndroidManifest.xml" && found == "" {
			found = path
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == "" {
		return nil, fmt.Errorf("manifest: AndroidManifest.xml not found under %s", root)
	}
	f, err := os.Open(found)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	defer f.Close()
	return manifest.Parse(f)
}

func loadFile(path string, cfgs map[string]*ir.CFG) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	root := sitter.Parse(source, java.GetLanguage())
	if root == nil {
		return fmt.Errorf("tree-sitter: failed to parse")
	}

	pkg := packageName(root, source)
	liftTypeBody(root, source, pkg, nil, cfgs)
	return nil
}

func packageName(root *sitter.Node, source []byte) string {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == "package_declaration" {
			for j := 0; j < int(child.NamedChildCount()); j++ {
				n := child.NamedChild(j)
				if n.Type() == "scoped_identifier" || n.Type() == "identifier" {
					return n.Content(source)
				}
			}
		}
	}
	return ""
}

// liftTypeBody walks node's children looking for class/interface/enum
// declarations, recursing into nested types with a "." separated qualified
// name, and lifts every method body it finds along the way (constructor
// bodies are not lifted).
func liftTypeBody(node *sitter.Node, source []byte, pkg string, enclosing []string, cfgs map[string]*ir.CFG) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "class_declaration", "interface_declaration", "enum_declaration":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			className := nameNode.Content(source)
			qualified := append(append([]string{}, enclosing...), className)
			fqClass := pkg + "." + strings.Join(qualified, ".")
			fqClass = strings.TrimPrefix(fqClass, ".")

			body := child.ChildByFieldName("body")
			if body != nil {
				liftMembers(body, source, fqClass, cfgs)
				liftTypeBody(body, source, pkg, qualified, cfgs)
			}
		}
	}
}

func liftMembers(classBody *sitter.Node, source []byte, fqClass string, cfgs map[string]*ir.CFG) {
	for i := 0; i < int(classBody.NamedChildCount()); i++ {
		member := classBody.NamedChild(i)
		switch member.Type() {
		case "method_declaration":
			liftMethod(member, source, fqClass, cfgs)
		}
	}
}

func liftMethod(node *sitter.Node, source []byte, fqClass string, cfgs map[string]*ir.CFG) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	methodName := nameNode.Content(source)

	isStatic := false
	var params []ir.Param
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "modifiers":
			if strings.Contains(child.Content(source), "static") {
				isStatic = true
			}
		case "formal_parameters":
			params = formalParams(child, source)
		}
	}

	types := make([]string, len(params))
	for i, p := range params {
		types[i] = p.Type
	}
	methodFQN := fmt.Sprintf("%s.%s(%s)", fqClass, methodName, strings.Join(types, ","))

	receiverType := fqClass
	if isStatic {
		receiverType = ""
	}
	lifter := ir.NewLifter(methodFQN, isStatic, receiverType, params)

	body := node.ChildByFieldName("body")
	cfg, err := lifter.Lift(body, source)
	if err != nil {
		return
	}
	cfgs[methodFQN] = cfg
}

func formalParams(node *sitter.Node, source []byte) []ir.Param {
	var params []ir.Param
	slot := 0
	for i := 0; i < int(node.NamedChildCount()); i++ {
		p := node.NamedChild(i)
		if p.Type() != "formal_parameter" && p.Type() != "spread_parameter" {
			continue
		}
		typeNode := p.ChildByFieldName("type")
		nameNode := p.ChildByFieldName("name")
		typ := ""
		if typeNode != nil {
			typ = typeNode.Content(source)
		}
		name := ""
		if nameNode != nil {
			name = nameNode.Content(source)
		}
		params = append(params, ir.Param{Name: name, Type: typ, SlotIndex: slot})
		slot++
	}
	return params
}
