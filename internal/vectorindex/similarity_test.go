package vectorindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreFromDistance(t *testing.T) {
	eps := 0.001

	tests := []struct {
		name     string
		distance float64
		want     float64
	}{
		{"exact match", 0, 1.0},
		{"within epsilon", 0.0005, 0.9995},
		{"at epsilon boundary", 0.001, 1 / 1.001},
		{"moderate distance", 0.5, 1 / 1.5},
		{"opposite vectors", 2.0, 1 / 3.0},
		{"negative clamped", -0.1, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scoreFromDistance(tt.distance, eps), 1e-12)
		})
	}
}

func TestScoreFromDistance_MonotonicAndBounded(t *testing.T) {
	eps := 0.001
	distances := []float64{0, 0.0002, 0.0009, 0.001, 0.01, 0.2, 0.5, 1.0, 1.5, 2.0}

	prev := 2.0
	for _, d := range distances {
		s := scoreFromDistance(d, eps)
		assert.Greater(t, s, 0.0, "distance %v", d)
		assert.LessOrEqual(t, s, 1.0, "distance %v", d)
		assert.Less(t, s, prev, "score must strictly decrease at distance %v", d)
		prev = s
	}
}
