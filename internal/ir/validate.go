package ir

import "fmt"

// Validation error codes (E100-E199)
const (
	// Declaration errors (E101-E109)
	ErrVariadicNotSequence = "E101" // variadic parameter type must be a sequence
	ErrDuplicateField      = "E102" // duplicate class field name
	ErrDuplicateDecl       = "E103" // duplicate top-level declaration or method
	ErrUnresolvedType      = "E104" // Unknown survived inference
	ErrDuplicateParam      = "E105" // duplicate parameter name
	ErrReturnSlotEmpty     = "E106" // return slot never filled
)

// ValidationError describes one IR invariant violation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks the structural invariants of m.
// Returns all errors found (does not fail-fast).
//
// With typed set, it also checks the post-inference invariants: no Unknown in
// any binding, parameter or return slot of a generated function.
func Validate(m *Module, typed bool) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)
	for _, d := range m.Decls {
		if _, ok := d.(*Import); ok {
			continue
		}
		name := d.DeclName()
		if seen[name] {
			errs = append(errs, ValidationError{
				Field:   name,
				Message: "declared more than once",
				Code:    ErrDuplicateDecl,
			})
		}
		seen[name] = true
	}

	for _, c := range m.Classes() {
		fields := make(map[string]bool)
		for _, f := range c.Fields {
			if fields[f.Name] {
				errs = append(errs, ValidationError{
					Field:   c.Name + "." + f.Name,
					Message: "duplicate field",
					Code:    ErrDuplicateField,
					Line:    f.Loc.Line,
				})
			}
			fields[f.Name] = true
		}
		methods := make(map[string]bool)
		for _, fn := range c.Methods {
			if methods[fn.Name] {
				errs = append(errs, ValidationError{
					Field:   fn.QualifiedName(),
					Message: "method declared more than once",
					Code:    ErrDuplicateDecl,
					Line:    fn.Loc.Line,
				})
			}
			methods[fn.Name] = true
		}
	}

	for _, fn := range m.AllFunctions() {
		errs = append(errs, validateFunction(fn, typed)...)
	}
	return errs
}

func validateFunction(fn *Function, typed bool) []ValidationError {
	var errs []ValidationError
	names := make(map[string]bool)
	for _, p := range fn.Params {
		field := fn.QualifiedName() + "(" + p.Name + ")"
		if names[p.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "duplicate parameter",
				Code:    ErrDuplicateParam,
				Line:    p.Loc.Line,
			})
		}
		names[p.Name] = true

		if p.Variadic && p.Binding != nil && !IsUnknown(p.Binding.Type) {
			if _, ok := Deref(p.Binding.Type).(Seq); !ok && !IsAny(p.Binding.Type) {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("variadic parameter has non-sequence type %s", p.Binding.Type),
					Code:    ErrVariadicNotSequence,
					Line:    p.Loc.Line,
				})
			}
		}
	}

	if !typed || fn.Skipped {
		return errs
	}

	if fn.Returns == nil {
		errs = append(errs, ValidationError{
			Field:   fn.QualifiedName(),
			Message: "return type slot was never filled",
			Code:    ErrReturnSlotEmpty,
			Line:    fn.Loc.Line,
		})
	} else if ContainsUnknown(fn.Returns) {
		errs = append(errs, ValidationError{
			Field:   fn.QualifiedName(),
			Message: fmt.Sprintf("return type %s is unresolved", fn.Returns),
			Code:    ErrUnresolvedType,
			Line:    fn.Loc.Line,
		})
	}
	for _, b := range fn.Bindings {
		if ContainsUnknown(b.Type) {
			errs = append(errs, ValidationError{
				Field:   fn.QualifiedName() + ":" + b.Name,
				Message: fmt.Sprintf("binding type %s is unresolved", b.Type),
				Code:    ErrUnresolvedType,
				Line:    b.Loc.Line,
			})
		}
	}
	return errs
}
