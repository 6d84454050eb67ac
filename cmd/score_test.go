package main

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/gpr-cli/internal/config"
	"github.com/sells-group/gpr-cli/internal/gpr"
)

func TestParseWeights(t *testing.T) {
	base := config.DefaultScoreConfig().Weights

	w, err := parseWeights("current=0.5, global-relative=0.1,HISTORIC_RELATIVE=0", base)
	require.NoError(t, err)
	assert.Equal(t, 0.5, w.Current)
	assert.Equal(t, 0.1, w.GlobalRelative)
	assert.Equal(t, 0.0, w.HistoricRelative)
	assert.Equal(t, base.Historic, w.Historic)
	assert.Equal(t, base.Forecast, w.Forecast)

	_, err = parseWeights("current", base)
	assert.ErrorContains(t, err, "not key=value")

	_, err = parseWeights("current=high", base)
	assert.Error(t, err)

	_, err = parseWeights("momentum=0.2", base)
	assert.ErrorContains(t, err, "unknown weight")
}

func TestApplyScoreOverrides(t *testing.T) {
	cmd := &cobra.Command{}
	addScoreFlags(cmd)
	require.NoError(t, cmd.Flags().Set("weights", "forecast=0.4"))
	require.NoError(t, cmd.Flags().Set("recency-weight", "0"))
	require.NoError(t, cmd.Flags().Set("method", "trend"))
	require.NoError(t, cmd.Flags().Set("exclude", "usa, chn"))
	require.NoError(t, cmd.Flags().Set("workers", "2"))

	base := config.DefaultScoreConfig()
	got, err := applyScoreOverrides(cmd, base)
	require.NoError(t, err)

	assert.Equal(t, 0.4, got.Weights.Forecast)
	assert.Equal(t, 0.0, got.RecencyWeight)
	assert.Equal(t, "trend", got.ForecastMethod)
	assert.Equal(t, []string{"usa", "chn"}, got.CoverageAdjustmentExclusions)
	assert.Equal(t, 2, got.Workers)
	assert.Equal(t, base.ForecastAlpha, got.ForecastAlpha, "unset flags keep config values")
	assert.Equal(t, []string{"USA"}, base.CoverageAdjustmentExclusions, "base is not mutated")
}

func TestApplyScoreOverrides_EmptyExclude(t *testing.T) {
	cmd := &cobra.Command{}
	addScoreFlags(cmd)
	require.NoError(t, cmd.Flags().Set("exclude", ""))

	got, err := applyScoreOverrides(cmd, config.DefaultScoreConfig())
	require.NoError(t, err)
	assert.Empty(t, got.CoverageAdjustmentExclusions)
}

func TestRunScore_JSON(t *testing.T) {
	useConfig(t)
	out, stderr, err := execute(t, runScore, scoreFlags, "--input", writePanel(t), "--format", "json", "--top", "2")
	require.NoError(t, err)

	var res gpr.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Rows, 2)
	assert.NotEmpty(t, res.RunID)
	assert.Len(t, res.Profiles, 3)
	assert.Equal(t, "2023-12", res.Date.Format("2006-01"))
	assert.GreaterOrEqual(t, res.Rows[0].Composite, res.Rows[1].Composite)
	assert.Contains(t, stderr, "Coverage bias")
}

func TestRunScore_CSVToFile(t *testing.T) {
	useConfig(t)
	dest := filepath.Join(t.TempDir(), "scores.csv")
	_, _, err := execute(t, runScore, scoreFlags, "--input", writePanel(t), "--format", "csv", "--output", dest, "--method", "last")
	require.NoError(t, err)

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "date", records[0][0])
	assert.Equal(t, "composite", records[0][3])
	assert.Equal(t, "2023-12", records[1][0])
}

func TestRunScore_YAML(t *testing.T) {
	useConfig(t)
	out, _, err := execute(t, runScore, scoreFlags, "--input", writePanel(t), "--format", "yaml")
	require.NoError(t, err)

	var doc struct {
		Rows []struct {
			Code      string  `yaml:"code"`
			Composite float64 `yaml:"composite"`
		} `yaml:"rows"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Rows, 3)
	for _, r := range doc.Rows {
		assert.GreaterOrEqual(t, r.Composite, 1.0)
		assert.LessOrEqual(t, r.Composite, 10.0)
	}
}

var rankedRow = regexp.MustCompile(`(?m)^ +\d+ [A-Z]{3} `)

func TestRunScore_Table(t *testing.T) {
	useConfig(t)
	out, _, err := execute(t, runScore, scoreFlags, "--input", writePanel(t))
	require.NoError(t, err)

	assert.Contains(t, out, "Composite GPR index, December 2023")
	assert.Contains(t, out, "Rank")
	assert.Contains(t, out, "Germany")
	assert.Contains(t, out, "United States")
	assert.Contains(t, out, "Coverage bias")
	assert.Len(t, rankedRow.FindAllString(out, -1), 3)
}

func TestRunScore_InvalidInput(t *testing.T) {
	useConfig(t)

	_, _, err := execute(t, runScore, scoreFlags, "--input", writePanel(t), "--format", "xml")
	assert.ErrorContains(t, err, "--format")

	_, _, err = execute(t, runScore, scoreFlags, "--input", writePanel(t), "--method", "arima")
	assert.ErrorContains(t, err, "score.forecast_method")

	_, _, err = execute(t, runScore, scoreFlags)
	assert.ErrorContains(t, err, "no input")
}

func TestRunBias_JSON(t *testing.T) {
	useConfig(t)
	out, _, err := execute(t, runBias, biasFlags, "--input", writePanel(t), "--format", "json", "--exclude", "")
	require.NoError(t, err)

	var rows []biasRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "USA", rows[0].Code)
	assert.Equal(t, "yes", rows[0].Applied)
	assert.Less(t, rows[0].AdjustmentFactor, 1.0)
	assert.GreaterOrEqual(t, rows[0].BiasFactor, rows[1].BiasFactor)
}

func TestRunBias_TableShowsExcluded(t *testing.T) {
	useConfig(t)
	out, _, err := execute(t, runBias, biasFlags, "--input", writePanel(t))
	require.NoError(t, err)
	assert.Contains(t, out, "excluded")
	assert.Contains(t, out, "United States")
}
