package main

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/gpr-cli/internal/panel"
)

var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "List the countries in the panel with their resolved names",
	RunE:  runCountries,
}

func init() {
	f := countriesCmd.Flags()
	addInputFlags(countriesCmd)
	f.String("output", "", "output file path (default: stdout)")
	f.String("format", "table", "output format: table, csv, json or yaml")

	rootCmd.AddCommand(countriesCmd)
}

// countryRow describes one catalog entry and its data coverage.
type countryRow struct {
	Code      string `json:"code" yaml:"code" csv:"code"`
	Name      string `json:"name" yaml:"name" csv:"name"`
	Months    int    `json:"months" yaml:"months" csv:"months"`
	First     string `json:"first,omitempty" yaml:"first,omitempty" csv:"first"`
	Last      string `json:"last,omitempty" yaml:"last,omitempty" csv:"last"`
	Excluded  bool   `json:"excluded" yaml:"excluded" csv:"excluded"`
	Malformed bool   `json:"malformed" yaml:"malformed" csv:"malformed"`
}

func runCountries(cmd *cobra.Command, _ []string) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	if !validFormat(format) {
		return eris.Errorf("countries: --format must be one of %s (got %q)", strings.Join(outputFormats, ", "), format)
	}

	p, err := loadPanel(ctx, applyPanelOverrides(cmd, cfg.Panel), newFetcher(cfg.Fetch))
	if err != nil {
		return err
	}
	rows := countryRows(p, cfg.Score.CoverageAdjustmentExclusions)

	w, closeOut, err := openOutput(outputPath, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput(closeOut, &err)

	switch format {
	case "table":
		return writeCountryTable(w, rows)
	case "csv":
		return eris.Wrap(writeCSV(w, rows), "countries: write CSV")
	default:
		return encode(w, format, rows)
	}
}

// countryRows lists the catalog in panel column order.
func countryRows(p *panel.Panel, exclusions []string) []countryRow {
	catalog := p.Catalog(exclusions)
	rows := make([]countryRow, 0, len(catalog))
	for _, c := range catalog {
		row := countryRow{
			Code:      c.Code,
			Name:      c.Name,
			Excluded:  c.Excluded,
			Malformed: c.Malformed,
		}
		for i := range p.Len() {
			if _, ok := p.At(c.Code, panel.Current, i); !ok {
				continue
			}
			row.Months++
			if row.First == "" {
				row.First = p.Date(i).Format("2006-01")
			}
			row.Last = p.Date(i).Format("2006-01")
		}
		rows = append(rows, row)
	}
	return rows
}

func writeCountryTable(w io.Writer, rows []countryRow) error {
	header := fmt.Sprintf("%-5s %-28s %7s %-8s %-8s %-9s\n", "Code", "Name", "Months", "First", "Last", "Flags")
	if _, err := fmt.Fprint(w, header); err != nil {
		return eris.Wrap(err, "countries: write table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", len(header)-1)); err != nil {
		return eris.Wrap(err, "countries: write table separator")
	}
	for _, r := range rows {
		var flags []string
		if r.Excluded {
			flags = append(flags, "excluded")
		}
		if r.Malformed {
			flags = append(flags, "malformed")
		}
		line := fmt.Sprintf("%-5s %-28s %7d %-8s %-8s %-9s\n",
			r.Code, truncate(r.Name, 28), r.Months, r.First, r.Last, strings.Join(flags, ","))
		if _, err := fmt.Fprint(w, line); err != nil {
			return eris.Wrap(err, "countries: write table row")
		}
	}
	return nil
}
