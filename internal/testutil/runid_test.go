package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialRunIDs(t *testing.T) {
	g := NewSequentialRunIDs("scenario")
	assert.Equal(t, "scenario-0001", g.Generate())
	assert.Equal(t, "scenario-0002", g.Generate())
}

func TestSequentialRunIDs_DefaultPrefix(t *testing.T) {
	g := NewSequentialRunIDs("")
	assert.Equal(t, "test-run-0001", g.Generate())
}
