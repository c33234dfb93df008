package mapping

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// Load error codes.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeLoadFailed   = "E004" // CUE load failed
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeBuildFailed  = "E006" // CUE build failed
	ErrCodeInvalidEntry = "E201" // Entry does not match the schema
	ErrCodeDuplicate    = "E202" // Source module mapped twice
)

// LoadError is a mapping file error with the CUE position when known.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// schema constrains mapping files.
//
//	modules: [{
//		source: "numpy"
//		target: "ndarray"
//		items: {
//			array: "Array1::from_vec"
//			sum: {path: "sum", params: ["list[float]"], returns: "float"}
//		}
//	}]
const schema = `
#Item: {
	path:     string
	params?:  [...string]
	returns?: string
}

#Module: {
	source: string
	target: *"" | string
	items: [string]: #Item | string
}

#Mapping: {
	modules: [...#Module]
}
`

// LoadFile reads one CUE mapping file.
func LoadFile(path string) (Map, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("mapping file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading mapping file: %v", err)}
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err, ErrCodeBuildFailed)
	}
	return decode(ctx, v)
}

// LoadString compiles mapping source held in memory.
func LoadString(src string) (Map, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("mapping.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err, ErrCodeBuildFailed)
	}
	return decode(ctx, v)
}

// LoadDir loads every CUE file of the package in dir as one mapping.
func LoadDir(dir string) (Map, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("mapping directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing mapping directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err, ErrCodeBuildFailed)
	}
	return decode(ctx, v)
}

func decode(ctx *cue.Context, v cue.Value) (Map, error) {
	def := ctx.CompileString(schema).LookupPath(cue.ParsePath("#Mapping"))
	if err := def.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("mapping schema: %v", err)}
	}
	v = def.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err, ErrCodeInvalidEntry)
	}

	out := make(Map)
	iter, err := v.LookupPath(cue.ParsePath("modules")).List()
	if err != nil {
		return nil, formatCUEError(err, ErrCodeInvalidEntry)
	}
	for iter.Next() {
		mv := iter.Value()
		e, err := decodeEntry(mv)
		if err != nil {
			return nil, err
		}
		if _, dup := out[e.Source]; dup {
			return nil, &LoadError{
				Code:    ErrCodeDuplicate,
				Message: fmt.Sprintf("module %q mapped more than once", e.Source),
				Pos:     mv.Pos(),
			}
		}
		out[e.Source] = e
	}
	return out, nil
}

func decodeEntry(v cue.Value) (Entry, error) {
	var e Entry
	var err error
	if e.Source, err = stringAt(v, "source"); err != nil {
		return e, err
	}
	if e.TargetPath, err = stringAt(v, "target"); err != nil {
		return e, err
	}
	e.ItemRewrites = make(map[string]Item)

	items := v.LookupPath(cue.ParsePath("items"))
	if !items.Exists() {
		return e, nil
	}
	fields, err := items.Fields()
	if err != nil {
		return e, formatCUEError(err, ErrCodeInvalidEntry)
	}
	for fields.Next() {
		it, err := decodeItem(fields.Value())
		if err != nil {
			return e, err
		}
		e.ItemRewrites[fields.Label()] = it
	}
	return e, nil
}

// decodeItem accepts either a bare path string or a structured item.
func decodeItem(v cue.Value) (Item, error) {
	if v, _ := v.Default(); v.IncompleteKind() == cue.StringKind {
		s, err := v.String()
		if err != nil {
			return Item{}, formatCUEError(err, ErrCodeInvalidEntry)
		}
		return Item{Path: s}, nil
	}
	var it Item
	var err error
	if it.Path, err = stringAt(v, "path"); err != nil {
		return it, err
	}
	if r := v.LookupPath(cue.ParsePath("returns")); r.Exists() {
		if it.Returns, err = r.String(); err != nil {
			return it, formatCUEError(err, ErrCodeInvalidEntry)
		}
	}
	if p := v.LookupPath(cue.ParsePath("params")); p.Exists() {
		list, err := p.List()
		if err != nil {
			return it, formatCUEError(err, ErrCodeInvalidEntry)
		}
		for list.Next() {
			s, err := list.Value().String()
			if err != nil {
				return it, formatCUEError(err, ErrCodeInvalidEntry)
			}
			it.Params = append(it.Params, s)
		}
	}
	return it, nil
}

func stringAt(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", &LoadError{Code: ErrCodeInvalidEntry, Message: field + " is required", Pos: v.Pos()}
	}
	f, _ = f.Default()
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err, ErrCodeInvalidEntry)
	}
	return s, nil
}

// formatCUEError converts the first CUE error into a LoadError carrying its
// position.
func formatCUEError(err error, code string) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
