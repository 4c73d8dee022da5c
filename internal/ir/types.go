// Package ir lifts a tree-sitter Java parse tree to the three-operand
// intermediate representation spec.md §2 (C2) and §4.5 assume as a given:
// one CFG of Statements per method. spec.md treats this lift as an external,
// assumed collaborator; nothing else in this module supplies it, so this
// package is the concrete default, grounded on the tree-sitter traversal
// idiom of the teacher's graph/java and graph/parser_java.go (field-named
// children, node.Content(sourceCode) text extraction) but lifting directly
// to Statement/CFG instead of to a generic AST graph node.
package ir

import "github.com/shivasurya/code-pathfinder/pathsentinel/internal/predicate"

// StatementKind is the three-operand statement form spec.md §4.5 transfer
// rules are defined over.
type StatementKind int

const (
	StmtCopy StatementKind = iota
	StmtLiteral
	StmtUnary
	StmtBinary
	StmtStringConcat
	StmtInvoke
	StmtFieldRead
	StmtFieldWrite
	StmtConditionalBranch
	StmtReturn
	StmtOther // parsed but not semantically meaningful to the constraint engine (e.g. a logging call's statement wrapper)
)

func (k StatementKind) String() string {
	switch k {
	case StmtCopy:
		return "copy"
	case StmtLiteral:
		return "literal"
	case StmtUnary:
		return "unary"
	case StmtBinary:
		return "binary"
	case StmtStringConcat:
		return "string_concat"
	case StmtInvoke:
		return "invoke"
	case StmtFieldRead:
		return "field_read"
	case StmtFieldWrite:
		return "field_write"
	case StmtConditionalBranch:
		return "conditional_branch"
	case StmtReturn:
		return "return"
	default:
		return "other"
	}
}

// Operand is either a reference to a local (possibly a method parameter or
// the receiver) or a literal value materialized directly at the use site.
// Either form can appear as an actual argument, matching spec.md §4.5's
// edge-handoff rule ("copy their Expression-Sets if the actuals are
// locals, or synthesize Constant Expression-Sets if they are literals").
type Operand struct {
	Local     string
	IsLiteral bool
	Literal   any
	Type      string
}

// LocalOperand builds an Operand referencing a local.
func LocalOperand(name, typ string) Operand { return Operand{Local: name, Type: typ} }

// LiteralOperand builds an Operand holding a materialized literal.
func LiteralOperand(v any, typ string) Operand {
	return Operand{IsLiteral: true, Literal: v, Type: typ}
}

// Statement is one three-operand instruction, uniquely identified within
// its method by ID (used as the call-site identifier when Kind == StmtInvoke).
type Statement struct {
	ID         string
	Kind       StatementKind
	LineNumber uint32

	Def string // destination local, if this statement defines one

	// StmtCopy: Def = A.Local
	// StmtLiteral: Def = A.Literal
	// StmtUnary: Def = Op(A)
	// StmtBinary, StmtStringConcat: Def = A Op B
	A, B Operand
	Op   predicate.ArithOp // valid when Kind == StmtUnary/StmtBinary

	// StmtInvoke
	CallTarget  string // best-effort "Owner.method" with no parameter types, e.g. "java.io.FileOutputStream.<init>"
	Receiver    Operand
	HasReceiver bool
	Args        []Operand
	StaticCall  bool
	ReturnType  string
	Unresolved  bool   // true if the callee could not be statically determined
	UnresolvedReason string // "reflection" | "native" | "dynamic_proxy" | ""

	// StmtFieldRead / StmtFieldWrite
	FieldOwner Operand // receiver expression, or IsLiteral+empty Local for a static field
	FieldName  string
	FieldOwnerType string
	Value      Operand // StmtFieldWrite only

	// StmtConditionalBranch
	Condition  Operand // boolean-valued operand (usually a local bound to a prior Binary statement)
	TrueBlock  string
	FalseBlock string

	// StmtReturn
	ReturnValue Operand
	HasReturnValue bool
}

// BlockType categorizes a CFG basic block (adapted from the teacher's
// graph/callgraph/cfg.BlockType, trimmed to the kinds this lifter emits).
type BlockType string

const (
	BlockEntry       BlockType = "entry"
	BlockExit        BlockType = "exit"
	BlockNormal      BlockType = "normal"
	BlockConditional BlockType = "conditional"
)

// BasicBlock is a maximal straight-line sequence of Statements.
type BasicBlock struct {
	ID           string
	Type         BlockType
	Statements   []*Statement
	Successors   []string // conditional blocks: [trueBlock, falseBlock]
	Predecessors []string
}

// Param describes one formal parameter (or the receiver, at SlotIndex -1)
// of a lifted method.
type Param struct {
	Name      string
	Type      string
	SlotIndex int
}

// CFG is the per-method control-flow graph spec.md §2 (C2) assumes as input
// to the constraint engine.
type CFG struct {
	MethodFQN    string
	IsStatic     bool
	ReceiverType string
	Params       []Param // does not include the receiver; see ReceiverType/IsStatic
	Entry        string
	Exit         string
	Blocks       map[string]*BasicBlock

	Unresolved []UnresolvedTarget
}

// UnresolvedTarget records an invoke statement whose callee could not be
// statically resolved (spec.md §9 open question: reflection/dynamic
// proxies/native methods are imprecision, never silently dropped).
type UnresolvedTarget struct {
	StatementID string
	Reason      string
}

// Block looks up a basic block by ID.
func (c *CFG) Block(id string) *BasicBlock {
	if c == nil {
		return nil
	}
	return c.Blocks[id]
}

// EntryBlock returns the method's entry block.
func (c *CFG) EntryBlock() *BasicBlock { return c.Block(c.Entry) }

// BlocksInOrder walks the CFG depth-first from its entry block, giving
// callers a deterministic forward approximation of control-flow order.
// Shared by internal/icc, internal/pathenum and internal/constraint so each
// does not reimplement the same traversal.
func (c *CFG) BlocksInOrder() []*BasicBlock {
	var order []*BasicBlock
	visited := map[string]bool{}
	var walk func(id string)
	walk = func(id string) {
		if id == "" || visited[id] {
			return
		}
		visited[id] = true
		b := c.Block(id)
		if b == nil {
			return
		}
		order = append(order, b)
		for _, succ := range b.Successors {
			walk(succ)
		}
	}
	walk(c.Entry)
	return order
}
