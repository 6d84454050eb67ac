package gpr

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gpr-cli/internal/config"
	"github.com/sells-group/gpr-cli/internal/panel"
)

// threeCountryPanel spans 24 months with clearly separated risk levels.
func threeCountryPanel(t *testing.T) *panel.Panel {
	t.Helper()
	const n = 24
	high, mid, low := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := range n {
		high[i] = 100 + float64(i)
		mid[i] = 50 + float64(i%3)
		low[i] = 10 + 0.5*float64(i)
	}
	return buildPanel(t, map[string][]float64{"HIG": high, "MID": mid, "LOW": low}, "HIG", "MID", "LOW")
}

func TestRun_EndToEndLastForecast(t *testing.T) {
	p := threeCountryPanel(t)
	s := testSettings(t, func(c *config.ScoreConfig) {
		c.CoverageAdjustmentExclusions = []string{}
		c.ForecastMethod = "last"
	})

	res, err := NewEngine(s).Run(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	assert.Empty(t, res.Skipped)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, p.Date(23), res.Date)

	for _, row := range res.Rows {
		last, ok := p.At(row.Code, panel.Current, 23)
		require.True(t, ok)
		assert.Equal(t, last, row.Forecast, row.Code)
		assert.Equal(t, res.Date, row.Date)
	}

	assert.Equal(t, "HIG", res.Rows[0].Code)
	assert.InDelta(t, 10.0, res.Rows[0].Composite, 1e-9)
	assert.Equal(t, "LOW", res.Rows[2].Code)
	assert.InDelta(t, 1.0, res.Rows[2].Composite, 1e-9)
}

func TestRun_SortedAndInRange(t *testing.T) {
	p := threeCountryPanel(t)
	for _, method := range []string{"sma", "ema", "trend", "last"} {
		s := testSettings(t, func(c *config.ScoreConfig) { c.ForecastMethod = method })
		res, err := NewEngine(s).Run(context.Background(), p)
		require.NoError(t, err)

		for i, row := range res.Rows {
			assert.GreaterOrEqual(t, row.Composite, 1.0, method)
			assert.LessOrEqual(t, row.Composite, 10.0, method)
			if i > 0 {
				assert.GreaterOrEqual(t, res.Rows[i-1].Composite, row.Composite, method)
			}
		}
	}
}

func TestRun_SingleCountryIsMidpoint(t *testing.T) {
	p := buildPanel(t, map[string][]float64{"ONE": {3, 5, 4, 8, 7}}, "ONE")

	res, err := NewEngine(DefaultSettings()).Run(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, 5.0, res.Rows[0].Composite)
}

func TestRun_IdenticalSeriesGlobalRelativeIsMidpoint(t *testing.T) {
	series := []float64{4, 6, 5, 7, 6, 8}
	p := buildPanel(t, map[string][]float64{
		"AAA": series,
		"BBB": series,
		"CCC": series,
	}, "AAA", "BBB", "CCC")
	s := DefaultSettings()
	latest, _ := p.LatestRow()
	snap := newSnapshot(p, s, latest, DetectBias(p, s))

	for _, c := range p.Countries() {
		a, err := snap.score(c)
		require.NoError(t, err)
		assert.Equal(t, 0.5, a.globalRel, c.Code)
		assert.Equal(t, 1.0, a.profile.AdjustmentFactor, c.Code)
	}
}

func TestRun_ExcludedCountryReported(t *testing.T) {
	p := threeCountryPanel(t)
	s := testSettings(t, func(c *config.ScoreConfig) { c.CoverageAdjustmentExclusions = []string{"HIG"} })

	res, err := NewEngine(s).Run(context.Background(), p)
	require.NoError(t, err)

	var hig ScoreRow
	for _, row := range res.Rows {
		if row.Code == "HIG" {
			hig = row
		}
	}
	assert.Equal(t, AppliedExcluded, hig.AdjustmentApplied)
	assert.Equal(t, 1.0, hig.CoverageAdjustment)
	assert.Greater(t, hig.BiasFactor, 1.5)
	assert.Contains(t, res.BiasReport(), "HIG")
	assert.Contains(t, res.BiasReport(), "Excluded from adjustment")
}

func TestRun_SkipsCountriesWithoutLatestData(t *testing.T) {
	p := buildPanel(t, map[string][]float64{
		"AAA": {10, 11, 12, 13},
		"BBB": {20, 21, 22, math.NaN()},
		"CCC": {5, 6, 7, 8},
	}, "AAA", "BBB", "CCC")

	res, err := NewEngine(DefaultSettings()).Run(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "BBB", res.Skipped[0].Code)
	assert.Contains(t, res.Skipped[0].Reason, "latest date")
	assert.Len(t, res.Profiles, 3, "bias is profiled for every country")
	assert.Contains(t, res.BiasReport(), "Skipped BBB")
}

func TestRun_MalformedCountryDropped(t *testing.T) {
	header := []string{"month", "GPRC_AAA", "GPRHC_AAA", "GPRC_BBB", "GPRC_CCC", "GPRHC_CCC"}
	rows := [][]string{
		{"2024-01", "1", "1", "2", "3", "3"},
		{"2024-02", "2", "2", "3", "4", "4"},
		{"2024-03", "3", "3", "4", "5", "5"},
	}
	p, err := panel.Parse(header, rows, panel.ParseOptions{})
	require.NoError(t, err)

	res, err := NewEngine(DefaultSettings()).Run(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "BBB", res.Skipped[0].Code)
	assert.Contains(t, res.Skipped[0].Reason, "GPRHC_")
}

func TestRun_LatestDateIgnoresTrailingEmptyMonths(t *testing.T) {
	nan := math.NaN()
	p := buildPanel(t, map[string][]float64{
		"AAA": {1, 2, 3, nan},
		"BBB": {3, 2, 1, nan},
	}, "AAA", "BBB")

	res, err := NewEngine(DefaultSettings()).Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, p.Date(2), res.Date)
	assert.Len(t, res.Rows, 2)
}

func TestRun_NoObservations(t *testing.T) {
	nan := math.NaN()
	p := buildPanel(t, map[string][]float64{"AAA": {nan, nan}}, "AAA")

	_, err := NewEngine(DefaultSettings()).Run(context.Background(), p)
	assert.Error(t, err)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(DefaultSettings()).Run(ctx, threeCountryPanel(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_Deterministic(t *testing.T) {
	p := threeCountryPanel(t)
	s := testSettings(t, func(c *config.ScoreConfig) { c.Workers = 1 })
	serial, err := NewEngine(s).Run(context.Background(), p)
	require.NoError(t, err)

	s = testSettings(t, func(c *config.ScoreConfig) { c.Workers = 16 })
	parallel, err := NewEngine(s).Run(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, parallel.Rows, len(serial.Rows))
	for i := range serial.Rows {
		assert.Equal(t, serial.Rows[i].Code, parallel.Rows[i].Code)
		assert.Equal(t, serial.Rows[i].Composite, parallel.Rows[i].Composite)
	}
}

func TestResultTop(t *testing.T) {
	res := &Result{Rows: make([]ScoreRow, 5)}
	assert.Len(t, res.Top(2), 2)
	assert.Len(t, res.Top(0), 5)
	assert.Len(t, res.Top(10), 5)
}
