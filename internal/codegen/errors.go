package codegen

import (
	"sort"
	"strings"

	"github.com/roach88/pyrs/internal/ir"
	"github.com/roach88/pyrs/internal/rust"
)

const (
	helperException = "exception"
	helperFloorDiv  = "floordiv"
	helperMod       = "mod"
)

const exceptionPrelude = `#[derive(Debug, Clone, PartialEq)]
pub struct PyException {
    pub kind: String,
    pub message: String,
}

impl PyException {
    pub fn new(kind: &str, message: impl Into<String>) -> Self {
        PyException {
            kind: kind.to_string(),
            message: message.into(),
        }
    }
}

impl std::fmt::Display for PyException {
    fn fmt(&self, f: &mut std::fmt::Formatter<'_>) -> std::fmt::Result {
        write!(f, "{}: {}", self.kind, self.message)
    }
}

impl std::error::Error for PyException {}`

const floorDivHelper = `fn py_floordiv(a: INT, b: INT) -> INT {
    let q = a / b;
    if a % b != 0 && (a < 0) != (b < 0) {
        q - 1
    } else {
        q
    }
}`

const modHelper = `fn py_mod(a: INT, b: INT) -> INT {
    let r = a % b;
    if r != 0 && (r < 0) != (b < 0) {
        r + b
    } else {
        r
    }
}`

// prelude returns the support items the lowered module used, in a fixed
// order.
func (u *unit) prelude() []rust.Item {
	var out []rust.Item
	if u.helpers[helperException] {
		out = append(out, &rust.RawItem{Text: exceptionPrelude})
	}
	intType := u.profile.IntType()
	if u.helpers[helperFloorDiv] {
		out = append(out, &rust.RawItem{Text: strings.ReplaceAll(floorDivHelper, "INT", intType)})
	}
	if u.helpers[helperMod] {
		out = append(out, &rust.RawItem{Text: strings.ReplaceAll(modHelper, "INT", intType)})
	}
	return out
}

// builtinExceptionBase maps each builtin exception to its parent.
var builtinExceptionBase = map[string]string{
	"Exception":           "BaseException",
	"ArithmeticError":     "Exception",
	"AssertionError":      "Exception",
	"AttributeError":      "Exception",
	"LookupError":         "Exception",
	"OSError":             "Exception",
	"RuntimeError":        "Exception",
	"StopIteration":       "Exception",
	"TypeError":           "Exception",
	"ValueError":          "Exception",
	"IndexError":          "LookupError",
	"KeyError":            "LookupError",
	"OverflowError":       "ArithmeticError",
	"ZeroDivisionError":   "ArithmeticError",
	"FileNotFoundError":   "OSError",
	"IOError":             "OSError",
	"NotImplementedError": "RuntimeError",
}

// exceptionParent returns the parent kind of kind, or "".
func (u *unit) exceptionParent(kind string) string {
	if c := u.module.Class(kind); c != nil {
		if len(c.Bases) > 0 {
			return c.Bases[0]
		}
		return ""
	}
	return builtinExceptionBase[kind]
}

// isA reports whether kind is target or derives from it.
func (u *unit) isA(kind, target string) bool {
	for depth := 0; kind != "" && depth < 32; depth++ {
		if kind == target {
			return true
		}
		kind = u.exceptionParent(kind)
	}
	return false
}

// caughtKinds lists every known kind a handler for names catches, sorted.
// nil means the handler catches everything.
func (u *unit) caughtKinds(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	known := make([]string, 0, len(builtinExceptionBase)+4)
	for k := range builtinExceptionBase {
		known = append(known, k)
	}
	for _, c := range u.module.Classes() {
		if c.Exception {
			known = append(known, c.Name)
		}
	}
	seen := make(map[string]bool)
	var out []string
	for _, name := range names {
		if name == "Exception" || name == "BaseException" {
			return nil
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
		for _, k := range known {
			if !seen[k] && u.isA(k, name) {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}

// newException builds PyException::new("Kind", message).
func (u *unit) newException(kind string, message rust.Expr) rust.Expr {
	u.helpers[helperException] = true
	if message == nil {
		message = rust.Str("")
	}
	return rust.CallPath(ir.ExceptionClass+"::new", rust.Str(kind), message)
}
