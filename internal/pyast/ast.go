package pyast

// Pos is a 1-based source position.
type Pos struct {
	Line int
	Col  int
}

// Position returns p itself so Pos satisfies the Node interfaces by embedding.
func (p Pos) Position() Pos { return p }

// Stmt is a statement node.
type Stmt interface {
	Position() Pos
	stmt()
}

// Expr is an expression node.
type Expr interface {
	Position() Pos
	expr()
}

// Module is a parsed source file.
type Module struct {
	Body []Stmt
}

// Arg is one formal parameter.
type Arg struct {
	Pos
	Name       string
	Annotation Expr
	Default    Expr
}

// Arguments is a formal parameter list.
type Arguments struct {
	Args   []*Arg // positional-or-keyword (positional-only are merged in)
	Vararg *Arg   // *args
	KwOnly []*Arg
	Kwarg  *Arg // **kwargs
}

// Statements.
type (
	FunctionDef struct {
		Pos
		Name       string
		Args       *Arguments
		Body       []Stmt
		Decorators []Expr
		Returns    Expr
		Async      bool
	}

	ClassDef struct {
		Pos
		Name       string
		Bases      []Expr
		Keywords   []*Keyword
		Body       []Stmt
		Decorators []Expr
	}

	Return struct {
		Pos
		Value Expr
	}

	Delete struct {
		Pos
		Targets []Expr
	}

	// Assign is "t1 = t2 = value"; Targets holds every target left to right.
	Assign struct {
		Pos
		Targets []Expr
		Value   Expr
	}

	AugAssign struct {
		Pos
		Target Expr
		Op     string // "+", "-", "//", ...
		Value  Expr
	}

	AnnAssign struct {
		Pos
		Target     Expr
		Annotation Expr
		Value      Expr
	}

	For struct {
		Pos
		Target Expr
		Iter   Expr
		Body   []Stmt
		Orelse []Stmt
		Async  bool
	}

	While struct {
		Pos
		Test   Expr
		Body   []Stmt
		Orelse []Stmt
	}

	If struct {
		Pos
		Test   Expr
		Body   []Stmt
		Orelse []Stmt
	}

	With struct {
		Pos
		Items []*WithItem
		Body  []Stmt
		Async bool
	}

	Raise struct {
		Pos
		Exc   Expr
		Cause Expr
	}

	Try struct {
		Pos
		Body      []Stmt
		Handlers  []*ExceptHandler
		Orelse    []Stmt
		Finalbody []Stmt
	}

	Assert struct {
		Pos
		Test Expr
		Msg  Expr
	}

	Import struct {
		Pos
		Names []*Alias
	}

	ImportFrom struct {
		Pos
		Module string
		Names  []*Alias
		Level  int
	}

	Global struct {
		Pos
		Names []string
	}

	Nonlocal struct {
		Pos
		Names []string
	}

	ExprStmt struct {
		Pos
		Value Expr
	}

	Pass struct {
		Pos
	}

	Break struct {
		Pos
	}

	Continue struct {
		Pos
	}
)

// WithItem is "ctx as var".
type WithItem struct {
	Context Expr
	Var     Expr
}

// ExceptHandler is one except clause. Type is nil for a bare except.
type ExceptHandler struct {
	Pos
	Type Expr
	Name string
	Body []Stmt
}

// Alias is one imported name.
type Alias struct {
	Name   string
	AsName string
}

// Keyword is a keyword argument. Arg is empty for **mapping.
type Keyword struct {
	Pos
	Arg   string
	Value Expr
}

// Comprehension is one for clause of a comprehension.
type Comprehension struct {
	Target Expr
	Iter   Expr
	Ifs    []Expr
	Async  bool
}

// ConstKind is the kind of a Constant.
type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstComplex
	ConstStr
	ConstBytes
	ConstBool
	ConstNone
	ConstEllipsis
)

// Expressions.
type (
	BoolOp struct {
		Pos
		Op     string // "and" or "or"
		Values []Expr
	}

	NamedExpr struct {
		Pos
		Target Expr
		Value  Expr
	}

	BinOp struct {
		Pos
		Left  Expr
		Op    string
		Right Expr
	}

	UnaryOp struct {
		Pos
		Op      string // "-", "+", "not", "~"
		Operand Expr
	}

	Lambda struct {
		Pos
		Args *Arguments
		Body Expr
	}

	IfExp struct {
		Pos
		Test   Expr
		Body   Expr
		Orelse Expr
	}

	// Dict is a dict display. A nil key marks a **spread entry.
	Dict struct {
		Pos
		Keys   []Expr
		Values []Expr
	}

	Set struct {
		Pos
		Elts []Expr
	}

	ListComp struct {
		Pos
		Elt        Expr
		Generators []*Comprehension
	}

	SetComp struct {
		Pos
		Elt        Expr
		Generators []*Comprehension
	}

	DictComp struct {
		Pos
		Key        Expr
		Value      Expr
		Generators []*Comprehension
	}

	GeneratorExp struct {
		Pos
		Elt        Expr
		Generators []*Comprehension
	}

	Await struct {
		Pos
		Value Expr
	}

	Yield struct {
		Pos
		Value Expr
		From  bool
	}

	// Compare is a (possibly chained) comparison: Left Ops[0] Comparators[0] ...
	Compare struct {
		Pos
		Left        Expr
		Ops         []string
		Comparators []Expr
	}

	Call struct {
		Pos
		Func     Expr
		Args     []Expr
		Keywords []*Keyword
	}

	// FormattedValue is an interpolated field of an f-string.
	FormattedValue struct {
		Pos
		Value      Expr
		Conversion byte // 0, 'r', 's' or 'a'
		FormatSpec string
	}

	// JoinedStr is an f-string: a sequence of Constant strings and
	// FormattedValues.
	JoinedStr struct {
		Pos
		Values []Expr
	}

	// Constant is a literal. Value holds the decoded text for strings and
	// bytes and the source digits for numbers.
	Constant struct {
		Pos
		Kind  ConstKind
		Value string
	}

	Attribute struct {
		Pos
		Value Expr
		Attr  string
	}

	Subscript struct {
		Pos
		Value Expr
		Slice Expr
	}

	Starred struct {
		Pos
		Value Expr
	}

	Name struct {
		Pos
		ID string
	}

	List struct {
		Pos
		Elts []Expr
	}

	Tuple struct {
		Pos
		Elts []Expr
	}

	Slice struct {
		Pos
		Lower Expr
		Upper Expr
		Step  Expr
	}
)

func (*FunctionDef) stmt() {}
func (*ClassDef) stmt()    {}
func (*Return) stmt()      {}
func (*Delete) stmt()      {}
func (*Assign) stmt()      {}
func (*AugAssign) stmt()   {}
func (*AnnAssign) stmt()   {}
func (*For) stmt()         {}
func (*While) stmt()       {}
func (*If) stmt()          {}
func (*With) stmt()        {}
func (*Raise) stmt()       {}
func (*Try) stmt()         {}
func (*Assert) stmt()      {}
func (*Import) stmt()      {}
func (*ImportFrom) stmt()  {}
func (*Global) stmt()      {}
func (*Nonlocal) stmt()    {}
func (*ExprStmt) stmt()    {}
func (*Pass) stmt()        {}
func (*Break) stmt()       {}
func (*Continue) stmt()    {}

func (*BoolOp) expr()         {}
func (*NamedExpr) expr()      {}
func (*BinOp) expr()          {}
func (*UnaryOp) expr()        {}
func (*Lambda) expr()         {}
func (*IfExp) expr()          {}
func (*Dict) expr()           {}
func (*Set) expr()            {}
func (*ListComp) expr()       {}
func (*SetComp) expr()        {}
func (*DictComp) expr()       {}
func (*GeneratorExp) expr()   {}
func (*Await) expr()          {}
func (*Yield) expr()          {}
func (*Compare) expr()        {}
func (*Call) expr()           {}
func (*FormattedValue) expr() {}
func (*JoinedStr) expr()      {}
func (*Constant) expr()       {}
func (*Attribute) expr()      {}
func (*Subscript) expr()      {}
func (*Starred) expr()        {}
func (*Name) expr()           {}
func (*List) expr()           {}
func (*Tuple) expr()          {}
func (*Slice) expr()          {}
