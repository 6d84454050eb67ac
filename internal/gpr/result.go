package gpr

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ScoreRow is the final, immutable result for one country.
type ScoreRow struct {
	Date               time.Time `json:"date" yaml:"date"`
	Code               string    `json:"code" yaml:"code"`
	Country            string    `json:"country" yaml:"country"`
	Composite          float64   `json:"composite" yaml:"composite"`
	CurrentGPR         float64   `json:"current_gpr" yaml:"current_gpr"`
	HistoricGPR        float64   `json:"historic_gpr" yaml:"historic_gpr"`
	AvgGPROverTime     float64   `json:"avg_gpr_over_time" yaml:"avg_gpr_over_time"`
	AvgGPRRest         float64   `json:"avg_gpr_rest" yaml:"avg_gpr_rest"`
	Forecast           float64   `json:"forecast" yaml:"forecast"`
	RecentTrendPct     float64   `json:"recent_trend_pct" yaml:"recent_trend_pct"`
	CoverageAdjustment float64   `json:"coverage_adjustment" yaml:"coverage_adjustment"`
	BiasFactor         float64   `json:"bias_factor" yaml:"bias_factor"`
	AdjustmentApplied  Applied   `json:"adjustment_applied" yaml:"adjustment_applied"`
}

// Skipped records a country left out of the result.
type Skipped struct {
	Code   string `json:"code" yaml:"code"`
	Reason string `json:"reason" yaml:"reason"`
}

// Result is the output of one scoring run.
type Result struct {
	RunID    string        `json:"run_id" yaml:"run_id"`
	Date     time.Time     `json:"date" yaml:"date"`
	Rows     []ScoreRow    `json:"rows" yaml:"rows"`
	Profiles []BiasProfile `json:"bias_profiles" yaml:"bias_profiles"`
	Skipped  []Skipped     `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Top returns at most n rows; n <= 0 returns all.
func (r *Result) Top(n int) []ScoreRow {
	if n <= 0 || n >= len(r.Rows) {
		return r.Rows
	}
	return r.Rows[:n]
}

// BiasReport lists the countries that were coverage-adjusted and the ones that
// exceeded the threshold but were excluded.
func (r *Result) BiasReport() string {
	var adjusted, excluded []BiasProfile
	for _, bp := range r.Profiles {
		switch bp.Applied {
		case AppliedYes:
			adjusted = append(adjusted, bp)
		case AppliedExcluded:
			excluded = append(excluded, bp)
		}
	}
	byFactor := func(s []BiasProfile) {
		sort.Slice(s, func(i, j int) bool { return s[i].BiasFactor > s[j].BiasFactor })
	}
	byFactor(adjusted)
	byFactor(excluded)

	var b strings.Builder
	if len(adjusted) == 0 {
		b.WriteString("Coverage bias: no countries adjusted\n")
	} else {
		fmt.Fprintf(&b, "Coverage bias: %d countries adjusted\n", len(adjusted))
		for _, bp := range adjusted {
			fmt.Fprintf(&b, "  %-6s bias %.2fx  adjustment %.3f\n", bp.Code, bp.BiasFactor, bp.AdjustmentFactor)
		}
	}
	if len(excluded) > 0 {
		fmt.Fprintf(&b, "Excluded from adjustment despite high coverage: %d\n", len(excluded))
		for _, bp := range excluded {
			fmt.Fprintf(&b, "  %-6s bias %.2fx\n", bp.Code, bp.BiasFactor)
		}
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(&b, "Skipped %s: %s\n", s.Code, s.Reason)
	}
	return b.String()
}
