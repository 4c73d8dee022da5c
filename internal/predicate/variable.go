// Package predicate implements the symbolic-value and boolean-predicate
// algebra that the constraint engine composes along a call path: symbolic
// variables, expression trees built over them, boolean predicates over
// expressions, and the data map that threads both through a dataflow pass.
//
// Variables and expressions live in an Arena and are referenced by stable
// integer IDs rather than owning pointers into each other, so an expression
// tree can never form a cycle through a variable that embeds it back.
package predicate

import "fmt"

// VariableID identifies a Variable within an Arena.
type VariableID int

// VariableKind is the disjoint variant tag for a Variable.
type VariableKind int

const (
	// VarInput is an argument or receiver of the path's entry method.
	VarInput VariableKind = iota
	// VarConstant is a literal of a primitive or string type.
	VarConstant
	// VarMethodCall is the return value of an invocation at a call site.
	VarMethodCall
	// VarFieldAccess is a read of an instance or static field.
	VarFieldAccess
	// VarHeap is an abstract location identified by (receiver, field).
	VarHeap
)

func (k VariableKind) String() string {
	switch k {
	case VarInput:
		return "Input"
	case VarConstant:
		return "Constant"
	case VarMethodCall:
		return "MethodCall"
	case VarFieldAccess:
		return "FieldAccess"
	case VarHeap:
		return "Heap"
	default:
		return "Unknown"
	}
}

// Variable is a named, typed symbolic value. Which fields are meaningful
// depends on Kind; see the per-kind comments below.
type Variable struct {
	ID   VariableID
	Kind VariableKind
	Type string

	// VarInput: the path this slot belongs to and its 0-indexed slot.
	// Receiver slots use SlotIndex -1.
	PathID    string
	SlotIndex int

	// VarConstant: the literal value (string, bool, or a numeric type).
	Literal any

	// VarMethodCall: the call site that produced this value.
	HasReceiver bool
	Receiver    VariableID
	Signature   string // e.g. "android.content.Intent.getStringExtra(java.lang.String)"
	CallSiteID  string
	LiteralArgs []string // literal string arguments captured at construction
	Args        []ExprID // every actual argument's Expression, in order (internal/strparam's file-constructor/builder recursion)

	// VarFieldAccess: the declaring type and field name.
	DeclaringType string
	FieldName     string

	// VarHeap: the (receiver, field) pair this abstract location bridges.
	HeapReceiver VariableID
	HeapField    string
}

// Arena owns all Variables and Expressions created while building the
// constraints for a single Call Path. Arenas are never shared across paths
// (per spec.md §5, Data Maps and Expressions are thread-local to a path).
type Arena struct {
	vars  []Variable
	exprs []Expr

	// interning indices so structurally identical constructs share one ID
	byVarRefExpr map[VariableID]ExprID
	byArith      map[arithKey]ExprID
	byConcat     map[concatKey]ExprID
}

type arithKey struct {
	op   ArithOp
	l, r ExprID
}

type concatKey struct {
	l, r ExprID
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{
		byVarRefExpr: make(map[VariableID]ExprID),
		byArith:      make(map[arithKey]ExprID),
		byConcat:     make(map[concatKey]ExprID),
	}
}

func (a *Arena) addVar(v Variable) VariableID {
	v.ID = VariableID(len(a.vars) + 1)
	a.vars = append(a.vars, v)
	return v.ID
}

// NewInputVariable creates a fresh Input variable for one entry slot of a path.
func (a *Arena) NewInputVariable(pathID string, slot int, typ string) VariableID {
	return a.addVar(Variable{Kind: VarInput, Type: typ, PathID: pathID, SlotIndex: slot})
}

// NewConstant creates a fresh Constant variable; constants are not interned,
// so equal literals get distinct variables.
func (a *Arena) NewConstant(typ string, literal any) VariableID {
	return a.addVar(Variable{Kind: VarConstant, Type: typ, Literal: literal})
}

// NewMethodCall creates a Method-Call variable for the value returned at
// callSiteID. args is every actual argument's Expression (in declaration
// order); pass nil when the arguments are not needed by the caller.
func (a *Arena) NewMethodCall(callSiteID, signature string, receiver VariableID, hasReceiver bool, literalArgs []string, returnType string, args ...ExprID) VariableID {
	return a.addVar(Variable{
		Kind:        VarMethodCall,
		Type:        returnType,
		HasReceiver: hasReceiver,
		Receiver:    receiver,
		Signature:   signature,
		CallSiteID:  callSiteID,
		LiteralArgs: append([]string(nil), literalArgs...),
		Args:        append([]ExprID(nil), args...),
	})
}

// NewFieldAccess creates a Field-Access variable; always treated as tainted
// by the taint tracker (see internal/taint).
func (a *Arena) NewFieldAccess(declaringType, field, typ string) VariableID {
	return a.addVar(Variable{Kind: VarFieldAccess, Type: typ, DeclaringType: declaringType, FieldName: field})
}

// NewHeap creates an abstract Heap location for (receiver, field).
func (a *Arena) NewHeap(receiver VariableID, field, typ string) VariableID {
	return a.addVar(Variable{Kind: VarHeap, Type: typ, HeapReceiver: receiver, HeapField: field})
}

// Variable returns the Variable for id.
func (a *Arena) Variable(id VariableID) Variable {
	if id <= 0 || int(id) > len(a.vars) {
		return Variable{}
	}
	return a.vars[id-1]
}

func (a Variable) String() string {
	switch a.Kind {
	case VarInput:
		return fmt.Sprintf("Input(%s,#%d:%s)", a.PathID, a.SlotIndex, a.Type)
	case VarConstant:
		return fmt.Sprintf("Const(%v)", a.Literal)
	case VarMethodCall:
		return fmt.Sprintf("Call(%s@%s)", a.Signature, a.CallSiteID)
	case VarFieldAccess:
		return fmt.Sprintf("Field(%s.%s)", a.DeclaringType, a.FieldName)
	case VarHeap:
		return fmt.Sprintf("Heap(#%d.%s)", a.HeapReceiver, a.HeapField)
	default:
		return "?"
	}
}
