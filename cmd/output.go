package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/gpr-cli/internal/gpr"
)

var outputFormats = []string{"table", "csv", "json", "yaml"}

func validFormat(format string) bool {
	return slices.Contains(outputFormats, format)
}

// openOutput returns path opened for writing, or stdout when path is empty.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "create output file %s", path)
	}
	return f, f.Close, nil
}

// closeOutput runs closeFn and reports its error through err unless an
// earlier error is already set. Use it with a named return.
func closeOutput(closeFn func() error, err *error) {
	if cerr := closeFn(); cerr != nil && *err == nil {
		*err = eris.Wrap(cerr, "close output")
	}
}

// csvRow is the flat CSV form of a gpr.ScoreRow.
type csvRow struct {
	Date               string  `csv:"date"`
	Code               string  `csv:"code"`
	Country            string  `csv:"country"`
	Composite          float64 `csv:"composite"`
	CurrentGPR         float64 `csv:"current_gpr"`
	HistoricGPR        float64 `csv:"historic_gpr"`
	AvgGPROverTime     float64 `csv:"avg_gpr_over_time"`
	AvgGPRRest         float64 `csv:"avg_gpr_rest"`
	Forecast           float64 `csv:"forecast"`
	RecentTrendPct     float64 `csv:"recent_trend_pct"`
	CoverageAdjustment float64 `csv:"coverage_adjustment"`
	BiasFactor         float64 `csv:"bias_factor"`
	AdjustmentApplied  string  `csv:"adjustment_applied"`
}

func toCSVRow(r gpr.ScoreRow) csvRow {
	return csvRow{
		Date:               r.Date.Format("2006-01"),
		Code:               r.Code,
		Country:            r.Country,
		Composite:          r.Composite,
		CurrentGPR:         r.CurrentGPR,
		HistoricGPR:        r.HistoricGPR,
		AvgGPROverTime:     r.AvgGPROverTime,
		AvgGPRRest:         r.AvgGPRRest,
		Forecast:           r.Forecast,
		RecentTrendPct:     r.RecentTrendPct,
		CoverageAdjustment: r.CoverageAdjustment,
		BiasFactor:         r.BiasFactor,
		AdjustmentApplied:  string(r.AdjustmentApplied),
	}
}

// writeResult renders the top rows of res in the given format.
func writeResult(w io.Writer, res *gpr.Result, format string, top int) error {
	rows := res.Top(top)
	switch format {
	case "table":
		return writeScoreTable(w, res, rows)
	case "csv":
		return writeScoreCSV(w, rows)
	case "json", "yaml":
		out := *res
		out.Rows = rows
		return encode(w, format, out)
	default:
		return eris.Errorf("score: unsupported format %q", format)
	}
}

func writeScoreCSV(w io.Writer, rows []gpr.ScoreRow) error {
	records := make([]csvRow, len(rows))
	for i, r := range rows {
		records[i] = toCSVRow(r)
	}
	return eris.Wrap(writeCSV(w, records), "score: write CSV")
}

// writeCSV encodes records with a header row, also when records is empty.
func writeCSV[T any](w io.Writer, records []T) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	if len(records) == 0 {
		var zero T
		if err := enc.EncodeHeader(zero); err != nil {
			return eris.Wrap(err, "csv header")
		}
	}
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return eris.Wrap(err, "csv row")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "csv flush")
}

func writeScoreTable(w io.Writer, res *gpr.Result, rows []gpr.ScoreRow) error {
	if _, err := fmt.Fprintf(w, "Composite GPR index, %s\n\n", res.Date.Format("January 2006")); err != nil {
		return eris.Wrap(err, "score: write table title")
	}
	header := fmt.Sprintf("%4s %-5s %-24s %9s %9s %9s %9s %9s %9s %8s %6s %6s %-8s\n",
		"Rank", "Code", "Country", "Composite", "Current", "Historic", "Avg", "Rest", "Forecast", "Trend%", "Adj", "Bias", "Applied")
	if _, err := fmt.Fprint(w, header); err != nil {
		return eris.Wrap(err, "score: write table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", len(header)-1)); err != nil {
		return eris.Wrap(err, "score: write table separator")
	}

	for i, r := range rows {
		line := fmt.Sprintf("%4d %-5s %-24s %9.2f %9.3f %9.3f %9.3f %9.3f %9.3f %8.1f %6.3f %6.2f %-8s\n",
			i+1, r.Code, truncate(r.Country, 24), r.Composite, r.CurrentGPR, r.HistoricGPR,
			r.AvgGPROverTime, r.AvgGPRRest, r.Forecast, r.RecentTrendPct,
			r.CoverageAdjustment, r.BiasFactor, r.AdjustmentApplied)
		if _, err := fmt.Fprint(w, line); err != nil {
			return eris.Wrap(err, "score: write table row")
		}
	}
	return nil
}

// encode writes v as indented JSON or YAML.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return eris.Wrap(enc.Close(), "encode yaml")
	default:
		return eris.Errorf("unsupported format %q", format)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
