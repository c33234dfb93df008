// Package target describes the Rust toolchains generated code is written for.
//
// A Profile fixes the native integer width, the Rust edition and the oldest
// rustc the output must build with. Code generation asks a profile whether a
// language or library feature is available instead of testing versions
// itself.
package target

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Profile is one code generation target.
type Profile struct {
	Name    string
	IntBits int    // width of the native signed integer
	Edition string // Rust edition of the generated crate
	Rustc   *semver.Version

	// HasFS reports whether std::fs is usable (false on wasm32).
	HasFS bool
}

// Feature is a capability gated on the rustc version.
type Feature struct {
	Name       string
	Constraint string
}

var (
	// FeatureInlineFormatArgs allows format!("{x}") with captured identifiers.
	FeatureInlineFormatArgs = Feature{Name: "inline-format-args", Constraint: ">= 1.58.0"}

	// FeatureCollectionFromArray allows HashMap::from([(k, v)]) and
	// HashSet::from([..]).
	FeatureCollectionFromArray = Feature{Name: "collection-from-array", Constraint: ">= 1.56.0"}

	// FeatureDestructuringAssignment allows (a, b) = (b, a) on existing
	// bindings.
	FeatureDestructuringAssignment = Feature{Name: "destructuring-assignment", Constraint: ">= 1.59.0"}
)

// Default is the profile used when none is named.
const Default = "std"

var profiles = map[string]Profile{
	"std": {
		Name:    "std",
		IntBits: 64,
		Edition: "2021",
		Rustc:   semver.MustParse("1.70.0"),
		HasFS:   true,
	},
	"wasm32": {
		Name:    "wasm32",
		IntBits: 32,
		Edition: "2021",
		Rustc:   semver.MustParse("1.70.0"),
	},
	"legacy": {
		Name:    "legacy",
		IntBits: 64,
		Edition: "2018",
		Rustc:   semver.MustParse("1.51.0"),
		HasFS:   true,
	},
}

// UnknownProfileError reports a profile name with no definition.
type UnknownProfileError struct {
	Name string
}

func (e *UnknownProfileError) Error() string {
	return fmt.Sprintf("unknown target profile %q (known: %v)", e.Name, Names())
}

// Lookup returns the profile named name. An empty name selects Default.
func Lookup(name string) (Profile, error) {
	if name == "" {
		name = Default
	}
	p, ok := profiles[name]
	if !ok {
		return Profile{}, &UnknownProfileError{Name: name}
	}
	return p, nil
}

// MustLookup is Lookup for known-good names.
func MustLookup(name string) Profile {
	p, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return p
}

// Names returns the known profile names in sorted order.
func Names() []string {
	out := make([]string, 0, len(profiles))
	for n := range profiles {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// WithRustc returns a copy of p targeting a different minimum rustc.
func (p Profile) WithRustc(version string) (Profile, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return p, fmt.Errorf("invalid rustc version %q: %w", version, err)
	}
	p.Rustc = v
	return p, nil
}

// IntType is the Rust spelling of the native signed integer.
func (p Profile) IntType() string {
	if p.IntBits == 32 {
		return "i32"
	}
	return "i64"
}

// Supports reports whether f is available on the profile's minimum rustc.
func (p Profile) Supports(f Feature) bool {
	if p.Rustc == nil {
		return false
	}
	c, err := semver.NewConstraint(f.Constraint)
	if err != nil {
		return false
	}
	return c.Check(p.Rustc)
}

func (p Profile) String() string {
	return fmt.Sprintf("%s (edition %s, rustc %s)", p.Name, p.Edition, p.Rustc)
}
