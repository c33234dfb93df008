package mapping

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadString(t *testing.T) {
	m, err := LoadString(`
modules: [{
	source: "numpy"
	target: "ndarray"
	items: {
		array: "Array1::from_vec"
		mean: {path: "mean", params: ["list[float]"], returns: "float"}
	}
}]
`)
	require.NoError(t, err)

	e, ok := m.Lookup("numpy")
	require.True(t, ok)
	assert.Equal(t, "ndarray", e.TargetPath)
	assert.Equal(t, Item{Path: "Array1::from_vec"}, e.ItemRewrites["array"])

	mean := e.ItemRewrites["mean"]
	assert.Equal(t, "mean", mean.Path)
	assert.Equal(t, []string{"list[float]"}, mean.Params)
	assert.Equal(t, "float", mean.Returns)

	expr, use := e.ItemPath("mean")
	assert.Equal(t, "mean", expr)
	assert.Equal(t, "ndarray::mean", use)
}

func TestLoadStringDefaultsTarget(t *testing.T) {
	m, err := LoadString(`modules: [{source: "typing_extensions"}]`)
	require.NoError(t, err)
	e := m["typing_extensions"]
	assert.Empty(t, e.TargetPath)
	assert.Empty(t, e.ItemRewrites)
}

func TestLoadStringErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{"syntax", `modules: [`, ErrCodeBuildFailed},
		{"missing source", `modules: [{target: "x"}]`, ErrCodeInvalidEntry},
		{"unknown field", `modules: [{source: "a", extra: 1}]`, ErrCodeInvalidEntry},
		{"bad item", `modules: [{source: "a", items: {f: 3}}]`, ErrCodeInvalidEntry},
		{"duplicate", `modules: [{source: "a"}, {source: "a"}]`, ErrCodeDuplicate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadString(tt.src)
			require.Error(t, err)
			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tt.code, le.Code)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.cue")
	require.NoError(t, os.WriteFile(path, []byte(`modules: [{source: "math", items: {tau: "std::f64::consts::TAU"}}]`), 0o644))

	m, err := LoadFile(path)
	require.NoError(t, err)
	merged := Merge(Defaults(), m)
	expr, _ := merged["math"].ItemPath("tau")
	assert.Equal(t, "std::f64::consts::TAU", expr)
	assert.Equal(t, "std::f64", merged["math"].TargetPath)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.cue"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, ErrCodeNotFound, le.Code)
}

func TestLoadDir(t *testing.T) {
	m, err := LoadDir("testdata/mappings")
	require.NoError(t, err)
	assert.Equal(t, []string{"math", "numpy"}, m.Modules())
	assert.Equal(t, "float", m["math"].ItemRewrites["tau"].Returns)
}

func TestLoadDirNotADirectory(t *testing.T) {
	_, err := LoadDir("testdata/mappings/numeric.cue")
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, ErrCodeNotFound, le.Code)
}
