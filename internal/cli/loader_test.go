package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pyrs/internal/mapping"
)

func TestLoadSourcesMixesFilesAndDirectories(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "src/b.py", "x = 1\n")
	writeSource(t, dir, "src/a.py", "y = 2\n")
	writeSource(t, dir, "src/notes.txt", "ignored")
	writeSource(t, dir, "src/pkg/c.py", "z = 3\n")
	single := writeSource(t, dir, "tool.py", "w = 4\n")

	sources, err := LoadSources([]string{single, filepath.Join(dir, "src")})
	require.NoError(t, err)
	require.Len(t, sources, 4)

	var rels []string
	for _, s := range sources {
		rels = append(rels, s.Rel)
	}
	assert.Equal(t, []string{"tool.py", "a.py", "b.py", filepath.Join("pkg", "c.py")}, rels)
	assert.Equal(t, "w = 4\n", sources[0].Source)
}

func TestLoadSourcesErrors(t *testing.T) {
	_, err := LoadSources([]string{"/nonexistent"})
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotFound, errorCode(err))

	_, err = LoadSources([]string{t.TempDir()})
	require.Error(t, err)
	assert.Equal(t, ErrCodeNoFiles, errorCode(err))
}

func TestLoadMappingEmptyPath(t *testing.T) {
	m, err := LoadMapping("")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestLoadMappingMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "maps/geometry.cue", `package mappings

modules: [{
	source: "geometry"
	target: "crate::geometry"
	items: {}
}]
`)

	for _, p := range []string{path, filepath.Dir(path)} {
		m, err := LoadMapping(p)
		require.NoError(t, err, p)

		e, ok := m.Lookup("geometry")
		require.True(t, ok)
		assert.Equal(t, "crate::geometry", e.TargetPath)

		// Built-in entries survive the merge.
		for name := range mapping.Defaults() {
			_, ok := m.Lookup(name)
			assert.True(t, ok, name)
		}
	}
}

func TestLoadMappingBadFile(t *testing.T) {
	path := writeSource(t, t.TempDir(), "bad.cue", "modules: [{source: 1}]\n")

	_, err := LoadMapping(path)
	require.Error(t, err)
	var loadErr *mapping.LoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeWriteFailed, errorCode(&CodedError{Code: ErrCodeWriteFailed}))
	assert.Equal(t, mapping.ErrCodeDuplicate, errorCode(&mapping.LoadError{Code: mapping.ErrCodeDuplicate}))
	assert.Equal(t, ErrCodeGeneric, errorCode(assert.AnError))
	assert.Equal(t, "boom", errorMessage(&CodedError{Code: ErrCodeGeneric, Message: "boom"}))
}
