package gpr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/gpr-cli/internal/config"
	"github.com/sells-group/gpr-cli/internal/panel"
)

func months(n int) []time.Time {
	start := time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, i, 0)
	}
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func scaled(v []float64, f float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x * f
	}
	return out
}

// buildPanel creates a panel whose historic series are 0.9x the current series.
func buildPanel(t *testing.T, current map[string][]float64, codes ...string) *panel.Panel {
	t.Helper()
	n := len(current[codes[0]])
	historic := make(map[string][]float64, len(current))
	countries := make([]panel.Country, 0, len(codes))
	for _, code := range codes {
		historic[code] = scaled(current[code], 0.9)
		countries = append(countries, panel.Country{Code: code})
	}
	p, err := panel.New(panel.Data{
		Dates:     months(n),
		Countries: countries,
		Current:   current,
		Historic:  historic,
	})
	require.NoError(t, err)
	return p
}

func testSettings(t *testing.T, mutate func(*config.ScoreConfig)) Settings {
	t.Helper()
	c := config.DefaultScoreConfig()
	if mutate != nil {
		mutate(&c)
	}
	s, err := NewSettings(c)
	require.NoError(t, err)
	return s
}
