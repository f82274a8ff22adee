package series

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(sec int) time.Time {
	return time.Date(2026, 10, 18, 12, 0, sec, 0, time.UTC)
}

func TestValidDropsMissing(t *testing.T) {
	s := Series{{at(0), 1}, {at(1), math.NaN()}, {at(2), 3}, {at(3), math.Inf(1)}}

	valid := s.Valid()
	assert.Len(t, valid, 2)
	assert.Equal(t, []float64{1, 3}, valid.Values())
	assert.True(t, s.HasData())
	assert.False(t, Series{{at(0), math.NaN()}}.HasData())
}

func TestSpanAndDuration(t *testing.T) {
	s := Series{{at(0), 1}, {at(30), 2}}
	first, last := s.Span()
	assert.Equal(t, at(0), first)
	assert.Equal(t, at(30), last)
	assert.Equal(t, 30*time.Second, s.Duration())

	assert.Zero(t, Series{}.Duration())
}
