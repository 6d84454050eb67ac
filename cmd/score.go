package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gpr-cli/internal/config"
	"github.com/sells-group/gpr-cli/internal/gpr"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Rank countries on the composite GPR scale",
	Long: `Compute the composite geopolitical risk index for every country in the panel.

Each country's latest current and historic GPR, its recency-weighted average,
its position relative to other countries and to its own history, and a
short-horizon forecast are blended into a raw composite. Countries whose
average coverage is far above the cross-country mean are scaled down first.
Raw composites are then mapped onto a 1-10 scale.

Input may be CSV, TSV or .xlsx. The publisher distributes data_gpr_export.xls,
a legacy workbook that is not read directly: convert it first, for example with
"libreoffice --headless --convert-to xlsx data_gpr_export.xls". URLs without a
file extension are detected from the downloaded content.

Examples:
  # Score a converted export with the configured defaults
  score --input data_gpr_export.xlsx

  # Download a converted export and write the top 20 as CSV
  score --url https://data.example.org/gpr/data_gpr_export.csv --top 20 --format csv --output gpr.csv

  # Favour the forecast and use a linear trend
  score --input gpr.csv --weights forecast=0.4,current=0.2 --method trend

  # Do not exempt any country from the coverage adjustment
  score --input gpr.csv --exclude ""`,
	RunE: runScore,
}

func init() {
	addInputFlags(scoreCmd)
	addScoreFlags(scoreCmd)
	rootCmd.AddCommand(scoreCmd)
}

func addScoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("weights", "", "component weights, e.g. current=0.3,historic=0.2,global_relative=0.15,historic_relative=0.15,forecast=0.2")
	f.Float64("recency-weight", -1, "weight of recent months in the time average, 0-1 (overrides config)")
	f.Float64("outlier-sensitivity", 0, "multiplier for recent trends beyond 10% (overrides config)")
	f.Float64("bias-threshold", 0, "coverage ratio above which a country is adjusted (overrides config)")
	f.Float64("adjustment-power", -1, "exponent of the coverage adjustment (overrides config)")
	f.String("exclude", "", "comma-separated codes exempt from the coverage adjustment (overrides config)")
	f.Int("forecast-window", 0, "months in the forecast and recency window (overrides config)")
	f.Int("trend-window", 0, "months in the recent trend window (overrides config)")
	f.String("method", "", "forecast method: sma, ema, trend or last (overrides config)")
	f.Float64("alpha", -1, "EMA smoothing factor, 0-1 (overrides config)")
	f.Int("workers", 0, "concurrent scoring workers (overrides config)")
	f.Int("top", 0, "print only the N highest scores (0 = all)")
	f.String("output", "", "output file path (default: stdout)")
	f.String("format", "table", "output format: table, csv, json or yaml")
}

func runScore(cmd *cobra.Command, _ []string) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := zap.L().With(zap.String("command", "score"))

	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	top, _ := cmd.Flags().GetInt("top")
	if !validFormat(format) {
		return eris.Errorf("score: --format must be one of %s (got %q)", strings.Join(outputFormats, ", "), format)
	}

	scoreCfg, err := applyScoreOverrides(cmd, cfg.Score)
	if err != nil {
		return err
	}
	c := *cfg
	c.Score = scoreCfg
	if err := c.Validate("score"); err != nil {
		return err
	}
	settings, err := gpr.NewSettings(scoreCfg)
	if err != nil {
		return err
	}

	p, err := loadPanel(ctx, applyPanelOverrides(cmd, cfg.Panel), newFetcher(cfg.Fetch))
	if err != nil {
		return err
	}

	res, err := gpr.NewEngine(settings).Run(ctx, p)
	if err != nil {
		return eris.Wrap(err, "score: run")
	}
	log.Info("score complete",
		zap.String("run_id", res.RunID),
		zap.Int("rows", len(res.Rows)),
		zap.Int("skipped", len(res.Skipped)),
	)

	w, closeOut, err := openOutput(outputPath, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput(closeOut, &err)

	if err := writeResult(w, res, format, top); err != nil {
		return err
	}

	// Diagnostics follow the table; machine formats keep them off the data stream.
	diag := cmd.ErrOrStderr()
	if format == "table" {
		diag = w
		fmt.Fprintln(w) //nolint:errcheck
	}
	if _, err := fmt.Fprint(diag, res.BiasReport()); err != nil {
		return eris.Wrap(err, "score: write bias report")
	}
	return nil
}

// applyScoreOverrides returns a copy of the base config with CLI flag overrides applied.
func applyScoreOverrides(cmd *cobra.Command, base config.ScoreConfig) (config.ScoreConfig, error) {
	c := base
	c.CoverageAdjustmentExclusions = append([]string(nil), base.CoverageAdjustmentExclusions...)

	if v, _ := cmd.Flags().GetString("weights"); v != "" {
		w, err := parseWeights(v, c.Weights)
		if err != nil {
			return c, err
		}
		c.Weights = w
	}
	if v, _ := cmd.Flags().GetFloat64("recency-weight"); v >= 0 {
		c.RecencyWeight = v
	}
	if v, _ := cmd.Flags().GetFloat64("outlier-sensitivity"); v > 0 {
		c.OutlierSensitivity = v
	}
	if v, _ := cmd.Flags().GetFloat64("bias-threshold"); v > 0 {
		c.CoverageBiasThreshold = v
	}
	if v, _ := cmd.Flags().GetFloat64("adjustment-power"); v >= 0 {
		c.CoverageAdjustmentPower = v
	}
	if cmd.Flags().Changed("exclude") {
		v, _ := cmd.Flags().GetString("exclude")
		c.CoverageAdjustmentExclusions = splitAndTrim(v)
	}
	if v, _ := cmd.Flags().GetInt("forecast-window"); v > 0 {
		c.ForecastWindow = v
	}
	if v, _ := cmd.Flags().GetInt("trend-window"); v > 0 {
		c.RecentTrendWindow = v
	}
	if v, _ := cmd.Flags().GetString("method"); v != "" {
		c.ForecastMethod = v
	}
	if v, _ := cmd.Flags().GetFloat64("alpha"); v >= 0 {
		c.ForecastAlpha = v
	}
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		c.Workers = v
	}

	return c, nil
}

// parseWeights applies key=value pairs on top of base. Keys accept either
// underscores or dashes.
func parseWeights(s string, base config.WeightsConfig) (config.WeightsConfig, error) {
	w := base
	for _, pair := range splitAndTrim(s) {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return w, eris.Errorf("score: --weights entry %q is not key=value", pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return w, eris.Wrapf(err, "score: --weights value for %q", key)
		}
		switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_") {
		case "current":
			w.Current = v
		case "historic":
			w.Historic = v
		case "global_relative":
			w.GlobalRelative = v
		case "historic_relative":
			w.HistoricRelative = v
		case "forecast":
			w.Forecast = v
		default:
			return w, eris.Errorf("score: unknown weight %q", key)
		}
	}
	return w, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
