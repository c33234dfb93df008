package codegen

import (
	"strconv"
	"strings"
	"unicode"
)

// reserved are Rust keywords that may appear as Python identifiers.
var reserved = map[string]bool{
	"as": true, "box": true, "const": true, "crate": true, "do": true, "dyn": true,
	"enum": true, "extern": true, "final": true, "fn": true, "impl": true, "let": true,
	"loop": true, "macro": true, "match": true, "mod": true, "move": true, "mut": true,
	"override": true, "priv": true, "pub": true, "ref": true, "static": true,
	"struct": true, "trait": true, "type": true, "typeof": true, "unsafe": true,
	"unsized": true, "use": true, "virtual": true, "where": true, "abstract": true,
	"become": true, "try": true, "union": true, "gen": true,
}

// unrawable keywords cannot be written as raw identifiers.
var unrawable = map[string]bool{"self": true, "Self": true, "super": true, "crate": true}

// ident returns a Rust identifier for a Python name.
func ident(name string) string {
	switch {
	case unrawable[name]:
		return name + "_"
	case reserved[name]:
		return "r#" + name
	}
	return name
}

// testName turns a qualified function name into a test function name.
func testName(qualified string, i int) string {
	var b strings.Builder
	b.WriteString("test_")
	for _, r := range qualified {
		switch {
		case r == '.':
			b.WriteByte('_')
		case unicode.IsUpper(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	b.WriteString("_" + strconv.Itoa(i))
	return b.String()
}

// namer hands out fresh temporaries (__cmp0, __v1, ...) within one function.
type namer struct {
	next map[string]int
}

func (n *namer) fresh(prefix string) string {
	if n.next == nil {
		n.next = make(map[string]int)
	}
	i := n.next[prefix]
	n.next[prefix] = i + 1
	return "__" + prefix + strconv.Itoa(i)
}
