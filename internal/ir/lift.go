package ir

import (
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/predicate"
)

// Lifter lowers one Java method body to a CFG of three-operand Statements.
// A Lifter is single-use: create one per method via NewLifter.
type Lifter struct {
	source      []byte
	cfg         *CFG
	tempCounter int
	blockCount  int
	stmtCount   int
}

// NewLifter creates a Lifter for methodFQN. params does not include the
// receiver; pass isStatic=false and a non-empty receiverType to bind slot -1
// to the receiver.
func NewLifter(methodFQN string, isStatic bool, receiverType string, params []Param) *Lifter {
	l := &Lifter{
		cfg: &CFG{
			MethodFQN:    methodFQN,
			IsStatic:     isStatic,
			ReceiverType: receiverType,
			Params:       params,
			Blocks:       make(map[string]*BasicBlock),
		},
	}
	l.cfg.Entry = l.newBlock(BlockEntry).ID
	l.cfg.Exit = l.newBlock(BlockExit).ID
	return l
}

// Lift lowers bodyNode (a Java "block" node, the method's body) into l's CFG.
// source is the file's full byte content, required for node.Content lookups.
func (l *Lifter) Lift(bodyNode *sitter.Node, source []byte) (*CFG, error) {
	if bodyNode == nil {
		l.connect(l.cfg.Block(l.cfg.Entry), l.cfg.Block(l.cfg.Exit))
		return l.cfg, nil
	}
	l.source = source
	entry := l.cfg.Block(l.cfg.Entry)
	tail := l.lowerStatement(bodyNode, entry)
	if tail != nil {
		l.connect(tail, l.cfg.Block(l.cfg.Exit))
	}
	return l.cfg, nil
}

func (l *Lifter) newBlock(t BlockType) *BasicBlock {
	l.blockCount++
	b := &BasicBlock{ID: fmt.Sprintf("b%d", l.blockCount), Type: t}
	l.cfg.Blocks[b.ID] = b
	return b
}

func (l *Lifter) newTemp() string {
	l.tempCounter++
	return fmt.Sprintf("t%d", l.tempCounter)
}

func (l *Lifter) newStmtID() string {
	l.stmtCount++
	return fmt.Sprintf("%s#%d", l.cfg.MethodFQN, l.stmtCount)
}

// connect records a straight-line edge a -> b (a is not a conditional block).
func (l *Lifter) connect(a, b *BasicBlock) {
	if a == nil || b == nil {
		return
	}
	a.Successors = append(a.Successors, b.ID)
	b.Predecessors = append(b.Predecessors, a.ID)
}

func line(node *sitter.Node) uint32 {
	if node == nil {
		return 0
	}
	return uint32(node.StartPoint().Row) + 1
}

// namedChildren returns node's named children, skipping syntax punctuation.
func namedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, node.NamedChildCount())
	for i := 0; i < int(node.NamedChildCount()); i++ {
		out = append(out, node.NamedChild(i))
	}
	return out
}

// lowerStatement lowers one Java statement node into cur's block, returning
// the block execution falls through to afterward, or nil if this statement
// never falls through (a return on every path).
func (l *Lifter) lowerStatement(node *sitter.Node, cur *BasicBlock) *BasicBlock {
	if node == nil || cur == nil {
		return cur
	}
	switch node.Type() {
	case "block":
		for _, child := range namedChildren(node) {
			if cur == nil {
				return nil // unreachable code after an unconditional return
			}
			cur = l.lowerStatement(child, cur)
		}
		return cur
	case "local_variable_declaration":
		l.lowerLocalVarDecl(node, cur)
		return cur
	case "expression_statement":
		if len(namedChildren(node)) > 0 {
			l.lowerExpr(namedChildren(node)[0], cur)
		}
		return cur
	case "if_statement":
		return l.lowerIf(node, cur)
	case "return_statement":
		l.lowerReturn(node, cur)
		return nil
	default:
		// Statement kinds this bounded lifter does not model explicitly
		// (loops, switch, try/catch, synchronized, labeled statements) pass
		// through without contributing Statements; the constraint engine
		// sees a straight-line gap, which is conservative (it neither gains
		// nor loses a branch it cannot reason about).
		return cur
	}
}

func (l *Lifter) lowerLocalVarDecl(node *sitter.Node, cur *BasicBlock) {
	for _, child := range namedChildren(node) {
		if child.Type() != "variable_declarator" {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		valueNode := child.ChildByFieldName("value")
		if nameNode == nil {
			continue
		}
		name := nameNode.Content(l.source)
		if valueNode == nil {
			continue
		}
		val := l.lowerExpr(valueNode, cur)
		l.emitBind(name, val, cur, line(child))
	}
}

// emitBind materializes a Copy or Literal statement binding name to val.
// It always emits one, even when val is already the local name itself
// (alias elimination is left to the constraint engine's own Copy handling).
func (l *Lifter) emitBind(name string, val Operand, cur *BasicBlock, ln uint32) {
	if val.IsLiteral {
		cur.Statements = append(cur.Statements, &Statement{
			ID: l.newStmtID(), Kind: StmtLiteral, LineNumber: ln,
			Def: name, A: val,
		})
		return
	}
	cur.Statements = append(cur.Statements, &Statement{
		ID: l.newStmtID(), Kind: StmtCopy, LineNumber: ln,
		Def: name, A: val,
	})
}

func (l *Lifter) lowerIf(node *sitter.Node, cur *BasicBlock) *BasicBlock {
	condNode := node.ChildByFieldName("condition")
	consequence := node.ChildByFieldName("consequence")
	alternative := node.ChildByFieldName("alternative")

	cond := l.lowerExpr(unwrapParens(condNode), cur)
	trueBlock := l.newBlock(BlockNormal)
	falseBlock := l.newBlock(BlockNormal)

	cur.Type = BlockConditional
	cur.Successors = []string{trueBlock.ID, falseBlock.ID}
	trueBlock.Predecessors = append(trueBlock.Predecessors, cur.ID)
	falseBlock.Predecessors = append(falseBlock.Predecessors, cur.ID)

	cur.Statements = append(cur.Statements, &Statement{
		ID: l.newStmtID(), Kind: StmtConditionalBranch, LineNumber: line(node),
		Condition: cond, TrueBlock: trueBlock.ID, FalseBlock: falseBlock.ID,
	})

	trueEnd := l.lowerStatement(consequence, trueBlock)
	var falseEnd *BasicBlock = falseBlock
	if alternative != nil {
		falseEnd = l.lowerStatement(alternative, falseBlock)
	}

	switch {
	case trueEnd != nil && falseEnd != nil:
		join := l.newBlock(BlockNormal)
		l.connect(trueEnd, join)
		l.connect(falseEnd, join)
		return join
	case trueEnd != nil:
		return trueEnd
	case falseEnd != nil:
		return falseEnd
	default:
		return nil
	}
}

func (l *Lifter) lowerReturn(node *sitter.Node, cur *BasicBlock) {
	children := namedChildren(node)
	stmt := &Statement{ID: l.newStmtID(), Kind: StmtReturn, LineNumber: line(node)}
	if len(children) > 0 {
		stmt.ReturnValue = l.lowerExpr(children[0], cur)
		stmt.HasReturnValue = true
	}
	cur.Statements = append(cur.Statements, stmt)
	l.connect(cur, l.cfg.Block(l.cfg.Exit))
}

func unwrapParens(node *sitter.Node) *sitter.Node {
	for node != nil && node.Type() == "parenthesized_expression" {
		children := namedChildren(node)
		if len(children) == 0 {
			return nil
		}
		node = children[0]
	}
	return node
}

// lowerExpr lowers a Java expression node to an Operand, appending whatever
// Statements are needed to compute it into cur.
func (l *Lifter) lowerExpr(node *sitter.Node, cur *BasicBlock) Operand {
	if node == nil {
		return Operand{}
	}
	switch node.Type() {
	case "parenthesized_expression":
		return l.lowerExpr(unwrapParens(node), cur)
	case "identifier", "this":
		return LocalOperand(node.Content(l.source), "")
	case "string_literal":
		return LiteralOperand(unquoteJavaString(node.Content(l.source)), "java.lang.String")
	case "decimal_integer_literal", "hex_integer_literal", "octal_integer_literal":
		return LiteralOperand(node.Content(l.source), "int")
	case "decimal_floating_point_literal":
		return LiteralOperand(node.Content(l.source), "double")
	case "true":
		return LiteralOperand(true, "boolean")
	case "false":
		return LiteralOperand(false, "boolean")
	case "null_literal":
		return LiteralOperand(nil, "null")
	case "binary_expression":
		return l.lowerBinary(node, cur)
	case "unary_expression":
		return l.lowerUnary(node, cur)
	case "assignment_expression":
		return l.lowerAssignment(node, cur)
	case "method_invocation":
		return l.lowerInvoke(node, cur, false)
	case "object_creation_expression":
		return l.lowerInvoke(node, cur, true)
	case "field_access":
		return l.lowerFieldRead(node, cur)
	default:
		return l.lowerOpaque(node, cur)
	}
}

func (l *Lifter) lowerBinary(node *sitter.Node, cur *BasicBlock) Operand {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	opNode := node.ChildByFieldName("operator")
	opText := ""
	if opNode != nil {
		opText = opNode.Content(l.source)
	}

	lo := l.lowerExpr(left, cur)
	ro := l.lowerExpr(right, cur)

	if opText == "+" && (lo.Type == "java.lang.String" || ro.Type == "java.lang.String") {
		temp := l.newTemp()
		cur.Statements = append(cur.Statements, &Statement{
			ID: l.newStmtID(), Kind: StmtStringConcat, LineNumber: line(node),
			Def: temp, A: lo, B: ro,
		})
		return LocalOperand(temp, "java.lang.String")
	}

	temp := l.newTemp()
	cur.Statements = append(cur.Statements, &Statement{
		ID: l.newStmtID(), Kind: StmtBinary, LineNumber: line(node),
		Def: temp, A: lo, B: ro, Op: mapOp(opText),
	})
	retType := ""
	if mapOp(opText).IsRelational() {
		retType = "boolean"
	}
	return LocalOperand(temp, retType)
}

func (l *Lifter) lowerUnary(node *sitter.Node, cur *BasicBlock) Operand {
	children := namedChildren(node)
	if len(children) == 0 {
		return Operand{}
	}
	opText := ""
	if node.ChildCount() > 0 {
		opText = node.Child(0).Content(l.source)
	}
	operand := l.lowerExpr(children[0], cur)
	temp := l.newTemp()
	op := mapOp(opText)
	if opText == "!" {
		op = predicate.OpNOT
	}
	cur.Statements = append(cur.Statements, &Statement{
		ID: l.newStmtID(), Kind: StmtUnary, LineNumber: line(node),
		Def: temp, A: operand, Op: op,
	})
	return LocalOperand(temp, operand.Type)
}

func (l *Lifter) lowerAssignment(node *sitter.Node, cur *BasicBlock) Operand {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	val := l.lowerExpr(right, cur)

	if left != nil && left.Type() == "field_access" {
		return l.lowerFieldWrite(left, val, cur)
	}
	name := ""
	if left != nil {
		name = left.Content(l.source)
	}
	l.emitBind(name, val, cur, line(node))
	return LocalOperand(name, val.Type)
}

func (l *Lifter) lowerFieldRead(node *sitter.Node, cur *BasicBlock) Operand {
	objNode := node.ChildByFieldName("object")
	fieldNode := node.ChildByFieldName("field")
	owner := l.lowerExpr(objNode, cur)
	field := ""
	if fieldNode != nil {
		field = fieldNode.Content(l.source)
	}
	temp := l.newTemp()
	cur.Statements = append(cur.Statements, &Statement{
		ID: l.newStmtID(), Kind: StmtFieldRead, LineNumber: line(node),
		Def: temp, FieldOwner: owner, FieldName: field, FieldOwnerType: l.ownerType(owner),
	})
	return LocalOperand(temp, "")
}

func (l *Lifter) lowerFieldWrite(node *sitter.Node, val Operand, cur *BasicBlock) Operand {
	objNode := node.ChildByFieldName("object")
	fieldNode := node.ChildByFieldName("field")
	owner := l.lowerExpr(objNode, cur)
	field := ""
	if fieldNode != nil {
		field = fieldNode.Content(l.source)
	}
	cur.Statements = append(cur.Statements, &Statement{
		ID: l.newStmtID(), Kind: StmtFieldWrite, LineNumber: line(node),
		FieldOwner: owner, FieldName: field, Value: val, FieldOwnerType: l.ownerType(owner),
	})
	return val
}

// ownerType resolves a field access's declaring type from its owner operand.
// Only the receiver's type is actually known to the Lifter (it lowers one
// method body at a time, with no symbol table for other locals' static
// types); a non-"this" owner falls back to its operand's Type, which is
// usually empty for plain identifiers. Field matching downstream (notably
// internal/dependency) tolerates an empty owner type, trading some precision
// for not requiring whole-program type inference in the Lifter.
func (l *Lifter) ownerType(owner Operand) string {
	if owner.Local == "this" {
		return l.cfg.ReceiverType
	}
	return owner.Type
}

// lowerInvoke lowers a method_invocation (isNew=false) or
// object_creation_expression (isNew=true) to an Invoke statement, matching
// spec.md §3's Method-Call variable: it captures the method reference, the
// receiver's operand, and literal argument slots, not the callee's body
// (the call path already covers the callee separately, per spec.md §4.5).
func (l *Lifter) lowerInvoke(node *sitter.Node, cur *BasicBlock, isNew bool) Operand {
	stmt := &Statement{ID: l.newStmtID(), Kind: StmtInvoke, LineNumber: line(node)}

	var argsNode *sitter.Node
	if isNew {
		typeNode := node.ChildByFieldName("type")
		typeName := ""
		if typeNode != nil {
			typeName = typeNode.Content(l.source)
		}
		stmt.CallTarget = typeName + ".<init>"
		stmt.ReturnType = typeName
		stmt.StaticCall = true
		argsNode = node.ChildByFieldName("arguments")
	} else {
		objNode := node.ChildByFieldName("object")
		nameNode := node.ChildByFieldName("name")
		methodName := ""
		if nameNode != nil {
			methodName = nameNode.Content(l.source)
		}
		if objNode != nil {
			recv := l.lowerExpr(objNode, cur)
			stmt.Receiver = recv
			stmt.HasReceiver = true
			ownerType := recv.Type
			if ownerType == "" {
				ownerType = recv.Local
			}
			stmt.CallTarget = ownerType + "." + methodName
		} else {
			// An unqualified call names a method of the enclosing class.
			stmt.CallTarget = methodName
			if paren := strings.Index(l.cfg.MethodFQN, "("); paren >= 0 {
				if dot := strings.LastIndex(l.cfg.MethodFQN[:paren], "."); dot >= 0 {
					stmt.CallTarget = l.cfg.MethodFQN[:dot] + "." + methodName
				}
			}
			stmt.StaticCall = true
		}
		argsNode = node.ChildByFieldName("arguments")
	}

	if argsNode != nil {
		for i := 0; i < int(argsNode.NamedChildCount()); i++ {
			stmt.Args = append(stmt.Args, l.lowerExpr(argsNode.NamedChild(i), cur))
		}
	}

	if looksReflective(stmt.CallTarget) {
		stmt.Unresolved = true
		stmt.UnresolvedReason = "reflection"
		l.cfg.Unresolved = append(l.cfg.Unresolved, UnresolvedTarget{StatementID: stmt.ID, Reason: "reflection"})
	}

	temp := l.newTemp()
	stmt.Def = temp
	cur.Statements = append(cur.Statements, stmt)
	return LocalOperand(temp, stmt.ReturnType)
}

func looksReflective(callTarget string) bool {
	switch {
	case strings.Contains(callTarget, "Method.invoke"),
		strings.Contains(callTarget, "Class.forName"),
		strings.Contains(callTarget, "Proxy.newProxyInstance"):
		return true
	default:
		return false
	}
}

// lowerOpaque handles expression kinds this bounded lifter does not model
// explicitly (lambdas, method references, array access, ternaries, casts).
// It is treated as an unresolved-callee Invoke with no arguments so the
// taint tracker's conservative "unrecognized method call -> FULL" rule
// applies uniformly instead of silently returning a clean default.
func (l *Lifter) lowerOpaque(node *sitter.Node, cur *BasicBlock) Operand {
	temp := l.newTemp()
	cur.Statements = append(cur.Statements, &Statement{
		ID: l.newStmtID(), Kind: StmtInvoke, LineNumber: line(node),
		Def: temp, CallTarget: "<opaque:" + node.Type() + ">", StaticCall: true,
	})
	return LocalOperand(temp, "")
}

func mapOp(token string) predicate.ArithOp {
	switch token {
	case "==":
		return predicate.OpEQ
	case "!=":
		return predicate.OpNE
	case "<":
		return predicate.OpLT
	case "<=":
		return predicate.OpLE
	case ">":
		return predicate.OpGT
	case ">=":
		return predicate.OpGE
	case "+":
		return predicate.OpADD
	case "-":
		return predicate.OpSUB
	case "*":
		return predicate.OpMUL
	case "/":
		return predicate.OpDIV
	case "%":
		return predicate.OpMOD
	case "&&":
		return predicate.OpAND
	case "||":
		return predicate.OpOR
	case "!":
		return predicate.OpNOT
	default:
		return predicate.OpEQ
	}
}

func unquoteJavaString(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	unquoted, err := strconv.Unquote(`"` + strings.ReplaceAll(s, `"`, `\"`) + `"`)
	if err != nil {
		return s
	}
	return unquoted
}
