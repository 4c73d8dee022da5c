package callgraph

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/ir"
)

// MethodSource supplies per-method IR on demand. Bytecode/source-to-IR
// lifting is itself an assumed external collaborator (spec.md's "Out of
// scope" list); this interface is the seam the call-graph builder depends
// on instead of a concrete decompiler, the same way internal/manifest
// depends only on an io.Reader instead of an APK unpacker.
type MethodSource interface {
	HasClass(class string) bool
	AllMethods() []string
	Lift(methodFQN string) (*ir.CFG, bool, error)
}

// StaticSource is a MethodSource over a fixed set of already-lifted CFGs —
// the concrete default for small archives and tests, where every method
// body can be lifted up front instead of lazily from a decompiled tree.
type StaticSource struct {
	cfgs map[string]*ir.CFG
}

// NewStaticSource builds a StaticSource keyed by CFG.MethodFQN.
func NewStaticSource(cfgs map[string]*ir.CFG) *StaticSource {
	return &StaticSource{cfgs: cfgs}
}

func (s *StaticSource) HasClass(class string) bool {
	prefix := class + "."
	for fqn := range s.cfgs {
		if strings.HasPrefix(fqn, prefix) {
			return true
		}
	}
	return false
}

func (s *StaticSource) AllMethods() []string {
	out := make([]string, 0, len(s.cfgs))
	for fqn := range s.cfgs {
		out = append(out, fqn)
	}
	return out
}

func (s *StaticSource) Lift(methodFQN string) (*ir.CFG, bool, error) {
	cfg, ok := s.cfgs[methodFQN]
	return cfg, ok, nil
}

// MethodIRCache memoizes per-method CFG construction behind an LRU, adapting
// the teacher's ImportMapCache pattern (graph/callgraph/builder/cache.go) from
// file-keyed import maps to method-FQN-keyed CFGs. It satisfies
// internal/entrypoint.ClassResolver directly, so a Builder can hand the same
// cache to both the entry-point synthesizer and its own traversal.
type MethodIRCache struct {
	source MethodSource
	lru    *lru.Cache[string, *ir.CFG]
}

// NewMethodIRCache wraps source with an LRU of the given size.
func NewMethodIRCache(source MethodSource, size int) (*MethodIRCache, error) {
	if size <= 0 {
		size = 512
	}
	c, err := lru.New[string, *ir.CFG](size)
	if err != nil {
		return nil, err
	}
	return &MethodIRCache{source: source, lru: c}, nil
}

// CFG returns the lifted CFG for methodFQN, lifting (and caching) on miss.
func (c *MethodIRCache) CFG(methodFQN string) (*ir.CFG, bool, error) {
	if cfg, ok := c.lru.Get(methodFQN); ok {
		return cfg, true, nil
	}
	cfg, ok, err := c.source.Lift(methodFQN)
	if err != nil || !ok {
		return nil, ok, err
	}
	c.lru.Add(methodFQN, cfg)
	return cfg, true, nil
}

// HasClass satisfies internal/entrypoint.ClassResolver.
func (c *MethodIRCache) HasClass(class string) bool { return c.source.HasClass(class) }

// HasMethod satisfies internal/entrypoint.ClassResolver. signature is the
// "name(paramTypes)" form internal/entrypoint.Method.Signature produces.
func (c *MethodIRCache) HasMethod(class, signature string) bool {
	_, ok, err := c.CFG(class + "." + signature)
	return err == nil && ok
}

// Resolve finds a known method FQN whose "Owner.method(paramTypes)" form
// starts with callTarget + "(" — internal/ir.Statement.CallTarget omits
// parameter types (a best-effort signature, see internal/ir's lowerInvoke),
// so direct-call resolution is necessarily a prefix match rather than exact
// equality. Ambiguity between overloads resolves to the first match.
func (c *MethodIRCache) Resolve(callTarget string) (string, bool) {
	prefix := callTarget + "("
	for _, fqn := range c.source.AllMethods() {
		if strings.HasPrefix(fqn, prefix) {
			return fqn, true
		}
	}
	return "", false
}

// ResolveEntryMethod finds the method FQN of component class's bareName
// lifecycle/accessor method, used to splice ICC edges (spec.md §4.2) onto a
// concrete call-graph node.
func (c *MethodIRCache) ResolveEntryMethod(class, bareName string) (string, bool) {
	prefix := class + "." + bareName + "("
	for _, fqn := range c.source.AllMethods() {
		if strings.HasPrefix(fqn, prefix) {
			return fqn, true
		}
	}
	return "", false
}
