package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBatchTimestamp_StrictlyIncreasing(t *testing.T) {
	base := time.Now()

	prev := batchTimestamp(base, 0)
	assert.Equal(t, base, prev)

	for i := 1; i < 8; i++ {
		cur := batchTimestamp(base, i)
		assert.True(t, cur.After(prev), "row %d must sort after row %d", i, i-1)
		// Distinct even after Postgres truncates to microseconds.
		assert.NotEqual(t,
			prev.Truncate(time.Microsecond),
			cur.Truncate(time.Microsecond),
			"row %d collides at column precision", i)
		prev = cur
	}
}
