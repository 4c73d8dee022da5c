package config

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// SourceRule names an untrusted-input accessor beyond the built-in table in
// internal/taint (spec.md §4.4's accessor table is explicitly extensible).
type SourceRule struct {
	Signature string `yaml:"signature"`
	Class     string `yaml:"class"` // free-form source label (e.g. "input"); not mapped onto taint.Class
}

// RulePack is the YAML-configured supplement to the built-in sink/source/
// sanitizer tables (spec.md §6 "Configuration"). LoadRulePack parses one;
// the scan command does not load a rule pack and no analysis package reads
// one, so sinks come only from the --targets list.
type RulePack struct {
	Sinks      []string     `yaml:"sinks"`
	Sources    []SourceRule `yaml:"sources"`
	Sanitizers []string     `yaml:"sanitizers"`
}

// LoadRulePack parses a YAML rule-pack document.
func LoadRulePack(r io.Reader) (*RulePack, error) {
	var pack RulePack
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&pack); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode rule pack: %w", err)
	}
	return &pack, nil
}

// LoadTargets reads a plain-text sink target list, one method signature per
// line, blank lines and '#'-prefixed comments ignored (spec.md §6). A line in
// canonical "<declaringClass: returnType name(paramTypes)>" form is reduced
// to "declaringClass.name", the form internal/ir's CallTarget uses; any
// other line is kept verbatim.
func LoadTargets(r io.Reader) ([]string, error) {
	var targets []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "<") && strings.HasSuffix(line, ">") {
			if owner, rest, ok := strings.Cut(line[1:len(line)-1], ": "); ok {
				name, _, _ := strings.Cut(rest, "(")
				line = owner + "." + name[strings.LastIndex(name, " ")+1:]
			}
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read targets: %w", err)
	}
	return targets, nil
}
