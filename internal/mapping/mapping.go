package mapping

import (
	"sort"
	"strings"
)

// Item is the rewrite for one member of a mapped module.
//
// Path is either absolute (contains "::") or relative to the entry's
// TargetPath. Params and Returns are source-language annotations used by
// inference; empty means unknown.
type Item struct {
	Path    string
	Params  []string
	Returns string
}

// Absolute reports whether Path names a full target path.
func (i Item) Absolute() bool {
	return strings.Contains(i.Path, "::")
}

// Entry maps one source module.
type Entry struct {
	Source string

	// TargetPath is the target-language module path. Empty means the
	// module has no runtime counterpart (typing, dataclasses).
	TargetPath string

	ItemRewrites map[string]Item
}

// Item returns the rewrite for name.
func (e Entry) Item(name string) (Item, bool) {
	it, ok := e.ItemRewrites[name]
	return it, ok
}

// ItemPath returns the target expression for name and the path that must be
// brought into scope with a use item, if any.
//
//	math.sqrt         -> "f64::sqrt", ""
//	collections.deque -> "VecDeque", "std::collections::VecDeque"
func (e Entry) ItemPath(name string) (expr, use string) {
	it, ok := e.ItemRewrites[name]
	switch {
	case ok && it.Absolute():
		return it.Path, ""
	case ok && e.TargetPath != "":
		return it.Path, e.TargetPath + "::" + it.Path
	case ok:
		return it.Path, ""
	case e.TargetPath != "":
		return e.TargetPath + "::" + name, ""
	default:
		return name, ""
	}
}

// Rewrites flattens the entry's items to name -> target expression.
func (e Entry) Rewrites() map[string]string {
	out := make(map[string]string, len(e.ItemRewrites))
	for name := range e.ItemRewrites {
		out[name], _ = e.ItemPath(name)
	}
	return out
}

// Table resolves source module paths.
type Table interface {
	Lookup(path string) (Entry, bool)
}

// Map is an in-memory Table keyed by source module path.
type Map map[string]Entry

// Lookup implements Table.
func (m Map) Lookup(path string) (Entry, bool) {
	e, ok := m[path]
	return e, ok
}

// Modules returns the mapped source paths in sorted order.
func (m Map) Modules() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Merge returns a new Map holding base overlaid with overrides. An override
// entry replaces the base target path when it sets one and adds or replaces
// individual items.
func Merge(base, overrides Map) Map {
	out := make(Map, len(base)+len(overrides))
	for k, e := range base {
		out[k] = cloneEntry(e)
	}
	for k, o := range overrides {
		e, ok := out[k]
		if !ok {
			out[k] = cloneEntry(o)
			continue
		}
		if o.TargetPath != "" {
			e.TargetPath = o.TargetPath
		}
		for name, it := range o.ItemRewrites {
			e.ItemRewrites[name] = it
		}
		out[k] = e
	}
	return out
}

func cloneEntry(e Entry) Entry {
	items := make(map[string]Item, len(e.ItemRewrites))
	for k, v := range e.ItemRewrites {
		items[k] = v
	}
	e.ItemRewrites = items
	return e
}

func fn(path string, params []string, returns string) Item {
	return Item{Path: path, Params: params, Returns: returns}
}

var float1 = []string{"float"}

// Defaults returns the built-in mapping table. Each call returns a fresh
// copy that callers may modify.
func Defaults() Map {
	return Map{
		"math": {
			Source:     "math",
			TargetPath: "std::f64",
			ItemRewrites: map[string]Item{
				"sqrt":  fn("f64::sqrt", float1, "float"),
				"floor": fn("f64::floor", float1, "float"),
				"ceil":  fn("f64::ceil", float1, "float"),
				"fabs":  fn("f64::abs", float1, "float"),
				"exp":   fn("f64::exp", float1, "float"),
				"log":   fn("f64::ln", float1, "float"),
				"sin":   fn("f64::sin", float1, "float"),
				"cos":   fn("f64::cos", float1, "float"),
				"tan":   fn("f64::tan", float1, "float"),
				"pow":   fn("f64::powf", []string{"float", "float"}, "float"),
				"hypot": fn("f64::hypot", []string{"float", "float"}, "float"),
				"pi":    fn("std::f64::consts::PI", nil, "float"),
				"e":     fn("std::f64::consts::E", nil, "float"),
				"inf":   fn("f64::INFINITY", nil, "float"),
			},
		},
		"sys": {
			Source:     "sys",
			TargetPath: "std::process",
			ItemRewrites: map[string]Item{
				"maxsize": fn("i64::MAX", nil, "int"),
			},
		},
		"collections": {
			Source:     "collections",
			TargetPath: "std::collections",
			ItemRewrites: map[string]Item{
				"deque":       fn("VecDeque", nil, ""),
				"OrderedDict": fn("BTreeMap", nil, ""),
			},
		},
		"typing":      {Source: "typing", ItemRewrites: map[string]Item{}},
		"dataclasses": {Source: "dataclasses", ItemRewrites: map[string]Item{}},
		"__future__":  {Source: "__future__", ItemRewrites: map[string]Item{}},
		"abc":         {Source: "abc", ItemRewrites: map[string]Item{}},
	}
}
