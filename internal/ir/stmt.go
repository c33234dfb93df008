package ir

// Stmt is a statement in a function body.
//
// This is a sealed interface - only types in this package implement it.
// Statements are owned by exactly one block; passes never share them.
type Stmt interface {
	stmtNode() // Marker method - seals interface to this package
	Pos() Loc
}

// StmtBase carries the source location common to every statement.
type StmtBase struct {
	Loc Loc
}

// Pos returns the statement's source location.
func (b *StmtBase) Pos() Loc { return b.Loc }

// Assign binds one or more targets.
//
//	x = v            -> Targets [x]
//	a, b = v         -> Targets [a, b] (tuple unpacking)
//	x += v           -> Targets [x], Op OpAdd
//	x: int = v       -> Targets [x], Annotation int
//
// Targets are *Var, *Index or *Attribute expressions.
type Assign struct {
	StmtBase
	Targets    []Expr
	Value      Expr // nil for a bare annotation "x: int"
	Op         BinOp
	Annotation Type
	Type       Type // resolved type of Value (or element types for unpacking)
}

// Augmented reports whether the assignment is an augmented form (+=, -=, ...).
func (s *Assign) Augmented() bool { return s.Op != OpNone }

// Return exits the function. Value is nil for a bare return.
type Return struct {
	StmtBase
	Value Expr
}

// If is a conditional. Elif chains nest in Else.
type If struct {
	StmtBase
	Cond Expr
	Then []Stmt
	Else []Stmt

	// Hoisted lists the bindings first assigned in a branch and read after
	// the statement. They are declared before the If.
	Hoisted []*Binding
}

// While loops while Cond holds.
type While struct {
	StmtBase
	Cond Expr
	Body []Stmt
}

// For iterates Target over Iter. Target is a *Var or a *TupleLit of *Var.
type For struct {
	StmtBase
	Target Expr
	Iter   Expr
	Body   []Stmt
}

// ExprStmt evaluates an expression for its effects.
type ExprStmt struct {
	StmtBase
	X Expr
}

// Raise signals an error.
//
//	raise ValueError("bad")   -> Kind "ValueError", Message "bad"
//	assert x, "msg"           -> Kind "AssertionError", Assert
//	raise                     -> Reraise
type Raise struct {
	StmtBase
	Kind    string
	Message Expr // nil when raised without arguments
	Assert  bool
	Reraise bool
}

// Break leaves the innermost loop.
type Break struct {
	StmtBase
}

// Continue skips to the next iteration of the innermost loop.
type Continue struct {
	StmtBase
}

// With runs Body with a scoped resource. Target is nil without "as".
type With struct {
	StmtBase
	Ctx    Expr
	Target *Var
	Body   []Stmt
}

// Handler is one except clause. An empty Kinds list catches everything.
type Handler struct {
	Kinds   []string
	Name    string
	Binding *Binding
	Body    []Stmt
	Loc     Loc
}

// TryExcept runs Body and dispatches raised errors to Handlers.
type TryExcept struct {
	StmtBase
	Body     []Stmt
	Handlers []*Handler
	Else     []Stmt
	Finally  []Stmt

	// Hoisted lists bindings first assigned inside the try and read after it.
	Hoisted []*Binding
}

func (*Assign) stmtNode()    {}
func (*Return) stmtNode()    {}
func (*If) stmtNode()        {}
func (*While) stmtNode()     {}
func (*For) stmtNode()       {}
func (*ExprStmt) stmtNode()  {}
func (*Raise) stmtNode()     {}
func (*Break) stmtNode()     {}
func (*Continue) stmtNode()  {}
func (*With) stmtNode()      {}
func (*TryExcept) stmtNode() {}

// StmtKind returns a short name for the statement variant.
func StmtKind(s Stmt) string {
	switch s.(type) {
	case *Assign:
		return "assign"
	case *Return:
		return "return"
	case *If:
		return "if"
	case *While:
		return "while"
	case *For:
		return "for"
	case *ExprStmt:
		return "expr"
	case *Raise:
		return "raise"
	case *Break:
		return "break"
	case *Continue:
		return "continue"
	case *With:
		return "with"
	case *TryExcept:
		return "try"
	default:
		return "unknown"
	}
}
