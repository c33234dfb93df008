package ir

// Expr is an expression tree node.
//
// This is a sealed interface - only types in this package implement it.
// Parents own their children; no node appears twice in a tree.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
	Base() *ExprBase
}

// ExprBase carries the slots every expression has.
type ExprBase struct {
	Loc Loc

	// T is the resolved type. Nil until inference visits the node.
	T Type

	// Conv, when set, is the type the value must be explicitly converted
	// to at this point (recorded by the width law, materialized by codegen).
	Conv Type
}

// Base returns the common slots.
func (b *ExprBase) Base() *ExprBase { return b }

// TypeOf returns the resolved type of e, or Unknown.
func TypeOf(e Expr) Type {
	if e == nil {
		return UnitType
	}
	return OrUnknown(e.Base().T)
}

// EffectiveType returns the type e has after any recorded conversion.
func EffectiveType(e Expr) Type {
	if e == nil {
		return UnitType
	}
	if c := e.Base().Conv; c != nil {
		return c
	}
	return TypeOf(e)
}

// LitKind is the kind of a literal.
type LitKind int

const (
	LitInt LitKind = iota
	LitFloat
	LitStr
	LitBool
	LitNone
	LitBytes
)

func (k LitKind) String() string {
	switch k {
	case LitInt:
		return "int"
	case LitFloat:
		return "float"
	case LitStr:
		return "str"
	case LitBool:
		return "bool"
	case LitNone:
		return "None"
	case LitBytes:
		return "bytes"
	default:
		return "literal?"
	}
}

// Literal is a constant value. Only the field for Kind is meaningful.
type Literal struct {
	ExprBase
	Kind  LitKind
	Int   int64
	Float float64
	Str   string // text (also the raw digits of a float literal)
	Bool  bool
}

// RefKind says what a name resolved to.
type RefKind int

const (
	RefUnresolved RefKind = iota
	RefLocal
	RefFunction
	RefClass
	RefConstant
	RefImport
	RefBuiltin
)

func (k RefKind) String() string {
	switch k {
	case RefLocal:
		return "local"
	case RefFunction:
		return "function"
	case RefClass:
		return "class"
	case RefConstant:
		return "constant"
	case RefImport:
		return "import"
	case RefBuiltin:
		return "builtin"
	default:
		return "unresolved"
	}
}

// Var is a name reference, either read or written.
type Var struct {
	ExprBase
	Name string
	Ref  RefKind

	// Binding is set for locals and parameters.
	Binding *Binding

	// Decl is set for names that resolve to a module declaration.
	Decl Decl

	// Declares marks the write that introduces Binding (emitted as "let").
	Declares bool

	// LastUse marks a read after which Binding is never read again.
	LastUse bool

	// Narrowed marks a read of an Optional binding at a point where a None
	// test has excluded None. The read has the inner type.
	Narrowed bool
}

// BinOp is a binary operator. OpNone marks a plain (non-augmented) assignment.
type BinOp int

const (
	OpNone BinOp = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpFloorDiv
	OpMod
	OpPow
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpAnd
	OpOr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpIn
	OpNotIn
	OpIs
	OpIsNot
)

var binOpText = map[BinOp]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpFloorDiv: "//", OpMod: "%",
	OpPow: "**", OpBitAnd: "&", OpBitOr: "|", OpBitXor: "^", OpShl: "<<", OpShr: ">>",
	OpAnd: "and", OpOr: "or", OpEq: "==", OpNe: "!=", OpLt: "<", OpLe: "<=",
	OpGt: ">", OpGe: ">=", OpIn: "in", OpNotIn: "not in", OpIs: "is", OpIsNot: "is not",
}

func (op BinOp) String() string {
	if s, ok := binOpText[op]; ok {
		return s
	}
	return "="
}

// IsComparison reports whether op yields bool from two comparable operands.
func (op BinOp) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpIn, OpNotIn, OpIs, OpIsNot:
		return true
	}
	return false
}

// IsArithmetic reports whether op is a numeric operator.
func (op BinOp) IsArithmetic() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpFloorDiv, OpMod, OpPow,
		OpBitAnd, OpBitOr, OpBitXor, OpShl, OpShr:
		return true
	}
	return false
}

// Binary is a binary operation, including boolean and comparison operators.
type Binary struct {
	ExprBase
	Op   BinOp
	L, R Expr
}

// UnaryOp is a unary operator.
type UnaryOp int

const (
	UNeg UnaryOp = iota
	UPos
	UNot
	UInvert
)

func (op UnaryOp) String() string {
	switch op {
	case UNeg:
		return "-"
	case UPos:
		return "+"
	case UNot:
		return "not"
	case UInvert:
		return "~"
	default:
		return "?"
	}
}

// Unary is a unary operation.
type Unary struct {
	ExprBase
	Op UnaryOp
	X  Expr
}

// Keyword is a keyword argument at a call site.
type Keyword struct {
	Name  string
	Value Expr
}

// Call is a function, method, constructor or builtin call.
//
// A method call has an *Attribute as Func. After resolution keyword
// arguments of user functions are moved into Args by parameter position and
// omitted defaults are filled in.
type Call struct {
	ExprBase
	Func   Expr
	Args   []Expr
	Kwargs []Keyword

	// Callee is the resolved user function (free function or method).
	Callee *Function

	// Ctor is set when the call instantiates a user class.
	Ctor *Class

	// Builtin names the resolved builtin function or method ("len", "append").
	Builtin string
}

// Method returns the receiver and method name for a method call.
func (c *Call) Method() (Expr, string, bool) {
	if a, ok := c.Func.(*Attribute); ok {
		return a.X, a.Name, true
	}
	return nil, "", false
}

// FuncName returns the called name for a plain name call.
func (c *Call) FuncName() (string, bool) {
	if v, ok := c.Func.(*Var); ok {
		return v.Name, true
	}
	return "", false
}

// Kwarg returns the keyword argument named name, or nil.
func (c *Call) Kwarg(name string) Expr {
	for _, k := range c.Kwargs {
		if k.Name == name {
			return k.Value
		}
	}
	return nil
}

// Index is a subscript read or write: X[Index].
type Index struct {
	ExprBase
	X     Expr
	Index Expr
}

// Attribute is a field, method or module member access.
type Attribute struct {
	ExprBase
	X    Expr
	Name string

	// Field is set when X is a class instance and Name a known field.
	Field *Field

	// Rewrite holds the target expression from the module mapping table
	// when X names an import.
	Rewrite string
}

// ListLit is a list display.
type ListLit struct {
	ExprBase
	Elems []Expr
}

// TupleLit is a tuple display. It also serves as an unpacking target.
type TupleLit struct {
	ExprBase
	Elems []Expr
}

// SetLit is a set display.
type SetLit struct {
	ExprBase
	Elems []Expr
}

// DictLit is a dict display. Keys and Values have equal length.
type DictLit struct {
	ExprBase
	Keys   []Expr
	Values []Expr
}

// CompKind is the kind of comprehension.
type CompKind int

const (
	CompList CompKind = iota
	CompSet
	CompDict
	CompGen
)

func (k CompKind) String() string {
	switch k {
	case CompList:
		return "list"
	case CompSet:
		return "set"
	case CompDict:
		return "dict"
	default:
		return "generator"
	}
}

// Generator is one "for target in iter if cond" clause of a comprehension.
type Generator struct {
	Target Expr
	Iter   Expr
	Ifs    []Expr
}

// Comprehension is a list, set, dict or generator comprehension.
// Elem is used for list/set/generator, Key and Value for dict.
type Comprehension struct {
	ExprBase
	Kind  CompKind
	Elem  Expr
	Key   Expr
	Value Expr
	Gens  []*Generator
}

// Lambda is an anonymous single-expression function.
type Lambda struct {
	ExprBase
	Params []*Param
	Body   Expr
}

// Slice is X[Lower:Upper:Step]. Omitted bounds are nil.
type Slice struct {
	ExprBase
	X     Expr
	Lower Expr
	Upper Expr
	Step  Expr
}

// FPart is one segment of a formatted string: either literal text or an
// interpolated expression with optional conversion ('r', 's') and spec.
type FPart struct {
	Lit  string
	X    Expr
	Conv byte
	Spec string
}

// FString is a formatted string literal.
type FString struct {
	ExprBase
	Parts []FPart
}

// Await suspends on an awaitable.
type Await struct {
	ExprBase
	X Expr
}

// Ternary is "Then if Cond else Else".
type Ternary struct {
	ExprBase
	Cond Expr
	Then Expr
	Else Expr
}

func (*Literal) exprNode()       {}
func (*Var) exprNode()           {}
func (*Binary) exprNode()        {}
func (*Unary) exprNode()         {}
func (*Call) exprNode()          {}
func (*Index) exprNode()         {}
func (*Attribute) exprNode()     {}
func (*ListLit) exprNode()       {}
func (*TupleLit) exprNode()      {}
func (*SetLit) exprNode()        {}
func (*DictLit) exprNode()       {}
func (*Comprehension) exprNode() {}
func (*Lambda) exprNode()        {}
func (*Slice) exprNode()         {}
func (*FString) exprNode()       {}
func (*Await) exprNode()         {}
func (*Ternary) exprNode()       {}

// ExprKind returns a short name for the expression variant.
func ExprKind(e Expr) string {
	switch x := e.(type) {
	case *Literal:
		return "literal"
	case *Var:
		return "var"
	case *Binary:
		return "binary"
	case *Unary:
		return "unary"
	case *Call:
		return "call"
	case *Index:
		return "index"
	case *Attribute:
		return "attribute"
	case *ListLit:
		return "list"
	case *TupleLit:
		return "tuple"
	case *SetLit:
		return "set"
	case *DictLit:
		return "dict"
	case *Comprehension:
		return x.Kind.String() + "comp"
	case *Lambda:
		return "lambda"
	case *Slice:
		return "slice"
	case *FString:
		return "fstring"
	case *Await:
		return "await"
	case *Ternary:
		return "ternary"
	default:
		return "unknown"
	}
}

// IntLit builds an integer literal.
func IntLit(v int64) *Literal { return &Literal{Kind: LitInt, Int: v} }

// StrLit builds a text literal.
func StrLit(s string) *Literal { return &Literal{Kind: LitStr, Str: s} }

// BoolLit builds a boolean literal.
func BoolLit(b bool) *Literal { return &Literal{Kind: LitBool, Bool: b} }

// NoneLit builds the None literal.
func NoneLit() *Literal { return &Literal{Kind: LitNone} }

// IsNone reports whether e is the None literal.
func IsNone(e Expr) bool {
	l, ok := e.(*Literal)
	return ok && l.Kind == LitNone
}
