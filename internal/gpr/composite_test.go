package gpr

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRawComposite(t *testing.T) {
	w := Weights{Current: 0.3, Historic: 0.2, GlobalRelative: 0.15, HistoricRelative: 0.15, Forecast: 0.2}
	got := RawComposite(w, 10, 8, 12, 0.5, 1)
	// 3 + 1.6 + 0.75 + 1.5 + 2.4
	assert.InDelta(t, 9.25, got, 1e-9)
}

func TestScale(t *testing.T) {
	tests := []struct {
		name  string
		raw   float64
		peers []float64
		want  float64
	}{
		{"middle", 3, []float64{1, 5}, 5.5},
		{"top", 5, []float64{1, 3}, 10},
		{"bottom", 1, []float64{2, 3}, 1},
		{"no peers", 2, nil, 5},
		{"degenerate", 2, []float64{2, 2}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Scale(tt.raw, tt.peers), 1e-12)
		})
	}
}

func TestScale_AlwaysInRange(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 500 {
		peers := make([]float64, r.IntN(6))
		for i := range peers {
			peers[i] = r.Float64() * 200
		}
		got := Scale(r.Float64()*250, peers)
		assert.GreaterOrEqual(t, got, 1.0)
		assert.LessOrEqual(t, got, 10.0)
	}
}

func TestPeerProxy(t *testing.T) {
	w := Weights{Current: 0.3, Historic: 0.2, GlobalRelative: 0.15, HistoricRelative: 0.15, Forecast: 0.2}
	assert.InDelta(t, 4.6, peerProxy(w, 10, 8), 1e-12)
}
