package analytics

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestGrowthPct(t *testing.T) {
	tests := []struct {
		name string
		now  float64
		prev float64
		want float64
	}{
		{"increase", 150, 100, 50},
		{"decrease", 50, 100, -50},
		{"flat", 100, 100, 0},
		{"from zero", 100, 0, 0},
		{"from negative", 100, -50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, growthPct(tt.now, tt.prev), 1e-9)
		})
	}
}

func TestPercentOfAndPerDay(t *testing.T) {
	assert.Equal(t, 25.0, percentOf(25, 100))
	assert.Equal(t, 0.0, percentOf(25, 0))
	assert.Equal(t, 0.0, percentOf(25, -10))
	assert.Equal(t, 10.0, perDay(310, 31))
	assert.Equal(t, 0.0, perDay(310, 0))
}

func TestGrowthPct_NeverUndefined(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("growth is finite for any finite input", prop.ForAll(
		func(now, prev float64) bool {
			g := growthPct(now, prev)
			return !math.IsNaN(g) && !math.IsInf(g, 0)
		},
		gen.Float64Range(-1e12, 1e12),
		gen.OneGenOf(gen.Const(0.0), gen.Float64Range(-1e12, 1e12)),
	))

	properties.Property("non-positive previous value yields zero", prop.ForAll(
		func(now, prev float64) bool {
			return growthPct(now, prev) == 0
		},
		gen.Float64Range(-1e12, 1e12),
		gen.Float64Range(-1e12, 0),
	))

	properties.TestingRun(t)
}
