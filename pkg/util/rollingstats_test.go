package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRollingStatsMeanAndStdDev(t *testing.T) {
	r := NewRollingStats(5)
	for _, v := range []float64{2, 4, 4, 4, 5} {
		r.Add(v)
	}
	assert.Equal(t, 5, r.Count())
	assert.InDelta(t, 3.8, r.Mean(), 1e-9)
	assert.InDelta(t, 1.095445, r.StdDev(), 1e-5)
}

func TestRollingStatsEvictsOldestOnceFull(t *testing.T) {
	r := NewRollingStats(3)
	r.Add(1)
	r.Add(2)
	r.Add(3)
	assert.InDelta(t, 2.0, r.Mean(), 1e-9)

	r.Add(100) // evicts the 1
	assert.Equal(t, 3, r.Count())
	assert.InDelta(t, 35.0, r.Mean(), 1e-9)
}

func TestRollingStatsZScore(t *testing.T) {
	t.Run("too_few_samples_returns_zero", func(t *testing.T) {
		r := NewRollingStats(10)
		r.Add(5)
		assert.Equal(t, 0.0, r.ZScore(10))
	})

	t.Run("z_score_matches_manual_computation", func(t *testing.T) {
		r := NewRollingStats(10)
		for _, v := range []float64{10, 12, 11, 13, 9} {
			r.Add(v)
		}
		z := r.ZScore(r.Mean() + r.StdDev())
		assert.InDelta(t, 1.0, z, 1e-9)
	})
}
