package infer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIterationQuota_WithinLimit(t *testing.T) {
	q := NewIterationQuota(3)
	for i := 0; i < 3; i++ {
		assert.NoError(t, q.Check("m"), "round %d should be allowed", i+1)
	}
	assert.Equal(t, 3, q.Current())
	assert.Equal(t, 3, q.Max())
}

func TestIterationQuota_ExceedsLimit(t *testing.T) {
	q := NewIterationQuota(2)
	require.NoError(t, q.Check("m"))
	require.NoError(t, q.Check("m"))

	err := q.Check("m")
	require.Error(t, err)

	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "m", qe.Module)
	assert.Equal(t, 3, qe.Iterations)
	assert.Equal(t, 2, qe.Limit)
	assert.Equal(t, "module m did not converge: 3 iterations > 2 limit", err.Error())
}

func TestIsQuotaExceededError(t *testing.T) {
	err := &QuotaExceededError{Module: "m", Iterations: 5, Limit: 4}
	assert.True(t, IsQuotaExceededError(err))
	assert.True(t, IsQuotaExceededError(fmt.Errorf("infer: %w", err)))
	assert.False(t, IsQuotaExceededError(fmt.Errorf("other")))
	assert.False(t, IsQuotaExceededError(nil))
}
