package rust

// Item is a declaration at module or impl level.
//
// This is a sealed interface - only types in this package implement it.
type Item interface {
	itemNode() // Marker method - seals interface to this package
}

// Stmt is a statement inside a block.
//
// This is a sealed interface - only types in this package implement it.
type Stmt interface {
	stmtNode() // Marker method - seals interface to this package
}

// Expr is an expression.
//
// This is a sealed interface - only types in this package implement it.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// File is one generated compilation unit.
type File struct {
	// Attrs are inner attributes such as #![allow(unused_mut)].
	Attrs []string
	Uses  []string // use paths, printed sorted and deduplicated
	Items []Item
}

// Items.
type (
	// Fn is a free function, method or associated function.
	//
	//	pub fn name(params) -> Ret { body }
	Fn struct {
		Name     string
		Params   []Param
		Result   Type   // nil for ()
		Receiver string // "", "&self", "&mut self" or "self"
		Body     *Block
		Pub      bool
		Async    bool
		Attrs    []string // outer attributes such as #[test]
		Doc      string
		Line     int // source line, 0 when synthesized
	}

	// Struct declares a struct with named fields.
	Struct struct {
		Name   string
		Fields []StructField
		Derive []string
		Pub    bool
		Doc    string
		Line   int
	}

	// Impl is an inherent or trait impl block.
	Impl struct {
		Type  string
		Trait string // empty for inherent impls
		Items []Item
		Line  int
	}

	// Const is a module or associated constant.
	Const struct {
		Name  string
		Type  Type
		Value Expr
		Pub   bool
		Line  int
	}

	// Mod is an inline module such as the generated test module.
	Mod struct {
		Name  string
		Attrs []string
		Uses  []string
		Items []Item
	}

	// RawItem is verbatim source text, used for fixed preludes.
	RawItem struct {
		Text string
	}
)

// Param is one function parameter. Mut declares "mut name".
type Param struct {
	Name string
	Type Type
	Mut  bool
}

// StructField is one field of a struct.
type StructField struct {
	Name string
	Type Type
	Pub  bool
}

// Block is a braced statement list with an optional tail expression.
type Block struct {
	Stmts []Stmt
	Tail  Expr
}

// Statements.
type (
	// Let binds a pattern: let [mut] name[: T] [= value];
	// Names lists several identifiers for a tuple pattern.
	Let struct {
		Name  string
		Names []string
		Mut   bool
		Type  Type // nil to let rustc infer
		Value Expr // nil for a deferred initialization
		Line  int
	}

	// Assign is target op value; with Op "=", "+=", "-=", ...
	Assign struct {
		Target Expr
		Op     string
		Value  Expr
		Line   int
	}

	// ExprStmt evaluates X. Block-like expressions print without a
	// trailing semicolon.
	ExprStmt struct {
		X    Expr
		Line int
	}

	// Return exits the function. Value is nil for a bare return.
	Return struct {
		Value Expr
		Line  int
	}

	// Break leaves the innermost loop.
	Break struct {
		Line int
	}

	// Continue starts the next iteration of the innermost loop.
	Continue struct {
		Line int
	}
)

// Expressions.
type (
	// IntLit is an integer literal. Suffix, when set, pins the type ("usize").
	IntLit struct {
		Value  int64
		Suffix string
	}

	// FloatLit is a floating point literal, always printed with a fraction.
	FloatLit struct {
		Value float64
	}

	// BoolLit is true or false.
	BoolLit struct {
		Value bool
	}

	// StrLit is a string slice literal.
	StrLit struct {
		Value string
	}

	// CharLit is a character literal.
	CharLit struct {
		Value rune
	}

	// Ident is a local name.
	Ident struct {
		Name string
	}

	// PathExpr is a path such as i64::MAX or HashMap::new.
	PathExpr struct {
		Path string
	}

	// Binary is L op R.
	Binary struct {
		Op string
		L  Expr
		R  Expr
	}

	// Unary is op X with op one of "-", "!", "*".
	Unary struct {
		Op string
		X  Expr
	}

	// Paren forces grouping.
	Paren struct {
		X Expr
	}

	// Cast is X as T.
	Cast struct {
		X    Expr
		Type Type
	}

	// Borrow is &X or &mut X.
	Borrow struct {
		Mut bool
		X   Expr
	}

	// Call is Func(Args).
	Call struct {
		Func Expr
		Args []Expr
	}

	// MethodCall is Recv.Name::<Turbofish>(Args).
	MethodCall struct {
		Recv      Expr
		Name      string
		Turbofish []Type
		Args      []Expr
	}

	// Field is X.Name, also used for tuple fields (X.0).
	Field struct {
		X    Expr
		Name string
	}

	// Index is X[Index].
	Index struct {
		X     Expr
		Index Expr
	}

	// Macro is name!(args) or, with Bracket, name![args]. Repeat prints
	// the two arguments as name![elem; n].
	Macro struct {
		Name    string
		Args    []Expr
		Bracket bool
		Repeat  bool
	}

	// StructLit is Name { field: value, .. }.
	StructLit struct {
		Name   string
		Fields []FieldInit
	}

	// Closure is |params| body, or move |params| body. A closure with a
	// Result type prints it and needs a block body.
	Closure struct {
		Params []Param
		Result Type
		Body   Expr
		Move   bool
	}

	// TryExpr is X? propagating an error.
	TryExpr struct {
		X Expr
	}

	// AwaitExpr is X.await.
	AwaitExpr struct {
		X Expr
	}

	// TupleExpr is (a, b).
	TupleExpr struct {
		Elems []Expr
	}

	// ArrayLit is [a, b].
	ArrayLit struct {
		Elems []Expr
	}

	// Range is Lo..Hi or Lo..=Hi. Either bound may be nil.
	Range struct {
		Lo        Expr
		Hi        Expr
		Inclusive bool
	}

	// If is if Cond { Then } else Else. Else is nil, a *BlockExpr or an *If.
	If struct {
		Cond Expr
		Then *Block
		Else Expr
	}

	// IfLet is if let Pattern = X { Then } else { Else }.
	IfLet struct {
		Pattern string
		X       Expr
		Then    *Block
		Else    *Block
	}

	// While is while Cond { Body }.
	While struct {
		Cond Expr
		Body *Block
	}

	// Loop is loop { Body }.
	Loop struct {
		Body *Block
	}

	// For is for Pattern in Iter { Body }.
	For struct {
		Pattern string
		Iter    Expr
		Body    *Block
	}

	// Match is match X { arms }.
	Match struct {
		X    Expr
		Arms []Arm
	}

	// BlockExpr is a braced block used as an expression.
	BlockExpr struct {
		Block *Block
	}
)

// FieldInit is one field of a struct literal.
type FieldInit struct {
	Name  string
	Value Expr
}

// Arm is one match arm: Pattern [if Guard] => Body.
type Arm struct {
	Pattern string
	Guard   Expr
	Body    Expr
}

func (*Fn) itemNode()      {}
func (*Struct) itemNode()  {}
func (*Impl) itemNode()    {}
func (*Const) itemNode()   {}
func (*Mod) itemNode()     {}
func (*RawItem) itemNode() {}

func (*Let) stmtNode()      {}
func (*Assign) stmtNode()   {}
func (*ExprStmt) stmtNode() {}
func (*Return) stmtNode()   {}
func (*Break) stmtNode()    {}
func (*Continue) stmtNode() {}

func (*IntLit) exprNode()     {}
func (*FloatLit) exprNode()   {}
func (*BoolLit) exprNode()    {}
func (*StrLit) exprNode()     {}
func (*CharLit) exprNode()    {}
func (*Ident) exprNode()      {}
func (*PathExpr) exprNode()   {}
func (*Binary) exprNode()     {}
func (*Unary) exprNode()      {}
func (*Paren) exprNode()      {}
func (*Cast) exprNode()       {}
func (*Borrow) exprNode()     {}
func (*Call) exprNode()       {}
func (*MethodCall) exprNode() {}
func (*Field) exprNode()      {}
func (*Index) exprNode()      {}
func (*Macro) exprNode()      {}
func (*StructLit) exprNode()  {}
func (*Closure) exprNode()    {}
func (*TryExpr) exprNode()    {}
func (*AwaitExpr) exprNode()  {}
func (*TupleExpr) exprNode()  {}
func (*ArrayLit) exprNode()   {}
func (*Range) exprNode()      {}
func (*If) exprNode()         {}
func (*IfLet) exprNode()      {}
func (*While) exprNode()      {}
func (*Loop) exprNode()       {}
func (*For) exprNode()        {}
func (*Match) exprNode()      {}
func (*BlockExpr) exprNode()  {}

// IsBlockLike reports whether e ends in a brace and needs no semicolon as a
// statement.
func IsBlockLike(e Expr) bool {
	switch e.(type) {
	case *If, *IfLet, *While, *Loop, *For, *Match, *BlockExpr:
		return true
	}
	return false
}

// Convenience constructors used by the code generator.

// Id returns an identifier expression.
func Id(name string) *Ident { return &Ident{Name: name} }

// Int returns an integer literal.
func Int(v int64) *IntLit { return &IntLit{Value: v} }

// Str returns a string literal.
func Str(s string) *StrLit { return &StrLit{Value: s} }

// Method returns recv.name(args).
func Method(recv Expr, name string, args ...Expr) *MethodCall {
	return &MethodCall{Recv: recv, Name: name, Args: args}
}

// CallPath returns path(args).
func CallPath(path string, args ...Expr) *Call {
	return &Call{Func: &PathExpr{Path: path}, Args: args}
}

// Todo returns the todo!() placeholder with a message.
func Todo(msg string) *Macro {
	return &Macro{Name: "todo", Args: []Expr{Str(msg)}}
}
