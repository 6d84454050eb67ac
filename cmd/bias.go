package main

import (
	"fmt"
	"io"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gpr-cli/internal/gpr"
	"github.com/sells-group/gpr-cli/internal/panel"
)

var biasCmd = &cobra.Command{
	Use:   "bias",
	Short: "Show the coverage bias profile of every country",
	Long: `Compare each country's average current GPR over the whole panel with the
cross-country mean. Countries above the threshold ratio are scaled down by
1 / bias^power in the composite, unless they are excluded.`,
	RunE: runBias,
}

func init() {
	addInputFlags(biasCmd)
	addBiasFlags(biasCmd)
	rootCmd.AddCommand(biasCmd)
}

func addBiasFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64("bias-threshold", 0, "coverage ratio above which a country is adjusted (overrides config)")
	f.Float64("adjustment-power", -1, "exponent of the coverage adjustment (overrides config)")
	f.String("exclude", "", "comma-separated codes exempt from the coverage adjustment (overrides config)")
	f.String("output", "", "output file path (default: stdout)")
	f.String("format", "table", "output format: table, csv, json or yaml")
}

// biasRow is a BiasProfile joined with the country name.
type biasRow struct {
	Code             string  `json:"code" yaml:"code" csv:"code"`
	Country          string  `json:"country" yaml:"country" csv:"country"`
	AverageCoverage  float64 `json:"average_coverage" yaml:"average_coverage" csv:"average_coverage"`
	BiasFactor       float64 `json:"bias_factor" yaml:"bias_factor" csv:"bias_factor"`
	AdjustmentFactor float64 `json:"adjustment_factor" yaml:"adjustment_factor" csv:"adjustment_factor"`
	Applied          string  `json:"applied" yaml:"applied" csv:"applied"`
}

func runBias(cmd *cobra.Command, _ []string) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := zap.L().With(zap.String("command", "bias"))

	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	if !validFormat(format) {
		return eris.Errorf("bias: --format must be one of %s (got %q)", strings.Join(outputFormats, ", "), format)
	}

	sc := cfg.Score
	if v, _ := cmd.Flags().GetFloat64("bias-threshold"); v > 0 {
		sc.CoverageBiasThreshold = v
	}
	if v, _ := cmd.Flags().GetFloat64("adjustment-power"); v >= 0 {
		sc.CoverageAdjustmentPower = v
	}
	if cmd.Flags().Changed("exclude") {
		v, _ := cmd.Flags().GetString("exclude")
		sc.CoverageAdjustmentExclusions = splitAndTrim(v)
	}
	settings, err := gpr.NewSettings(sc)
	if err != nil {
		return err
	}

	p, err := loadPanel(ctx, applyPanelOverrides(cmd, cfg.Panel), newFetcher(cfg.Fetch))
	if err != nil {
		return err
	}

	rows := biasRows(p, gpr.DetectBias(p, settings))
	log.Info("bias profiles computed", zap.Int("countries", len(rows)))

	w, closeOut, err := openOutput(outputPath, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput(closeOut, &err)

	switch format {
	case "table":
		return writeBiasTable(w, rows, settings.BiasThreshold)
	case "csv":
		return eris.Wrap(writeCSV(w, rows), "bias: write CSV")
	default:
		return encode(w, format, rows)
	}
}

// biasRows joins profiles with country names, highest bias factor first.
func biasRows(p *panel.Panel, profiles []gpr.BiasProfile) []biasRow {
	rows := make([]biasRow, 0, len(profiles))
	for _, bp := range profiles {
		name := bp.Code
		if c, ok := p.Country(bp.Code); ok {
			name = c.Name
		}
		rows = append(rows, biasRow{
			Code:             bp.Code,
			Country:          name,
			AverageCoverage:  bp.AverageCoverage,
			BiasFactor:       bp.BiasFactor,
			AdjustmentFactor: bp.AdjustmentFactor,
			Applied:          string(bp.Applied),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].BiasFactor > rows[j].BiasFactor })
	return rows
}

func writeBiasTable(w io.Writer, rows []biasRow, threshold float64) error {
	if _, err := fmt.Fprintf(w, "Coverage bias (threshold %.2fx the cross-country mean)\n\n", threshold); err != nil {
		return eris.Wrap(err, "bias: write table title")
	}
	header := fmt.Sprintf("%-5s %-24s %12s %8s %10s %-8s\n", "Code", "Country", "Avg coverage", "Bias", "Adjustment", "Applied")
	if _, err := fmt.Fprint(w, header); err != nil {
		return eris.Wrap(err, "bias: write table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", len(header)-1)); err != nil {
		return eris.Wrap(err, "bias: write table separator")
	}
	for _, r := range rows {
		line := fmt.Sprintf("%-5s %-24s %12.4f %7.2fx %10.3f %-8s\n",
			r.Code, truncate(r.Country, 24), r.AverageCoverage, r.BiasFactor, r.AdjustmentFactor, r.Applied)
		if _, err := fmt.Fprint(w, line); err != nil {
			return eris.Wrap(err, "bias: write table row")
		}
	}
	return nil
}
