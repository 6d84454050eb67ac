package gpr

import (
	"math"

	"github.com/sells-group/gpr-cli/internal/panel"
)

// Applied reports whether a coverage adjustment was applied to a country.
type Applied string

// Adjustment states.
const (
	AppliedYes      Applied = "yes"
	AppliedNo       Applied = "no"
	AppliedExcluded Applied = "excluded"
)

// BiasProfile is the coverage-bias assessment of one country.
type BiasProfile struct {
	Code             string  `json:"code" yaml:"code"`
	AverageCoverage  float64 `json:"average_coverage" yaml:"average_coverage"`
	BiasFactor       float64 `json:"bias_factor" yaml:"bias_factor"`
	AdjustmentFactor float64 `json:"adjustment_factor" yaml:"adjustment_factor"`
	Applied          Applied `json:"applied" yaml:"applied"`
}

// DetectBias computes a BiasProfile for every country in p. Coverage is the mean
// current GPR over all months; a country is adjusted when its coverage exceeds
// the cross-country mean by more than s.BiasThreshold and it is not excluded.
func DetectBias(p *panel.Panel, s Settings) []BiasProfile {
	codes := p.Codes()
	coverage := make([]float64, len(codes))
	var observed []float64
	for i, code := range codes {
		vals := p.Values(code, panel.Current, 0, p.Len())
		if len(vals) == 0 {
			coverage[i] = math.NaN()
			continue
		}
		coverage[i] = mean(vals)
		observed = append(observed, coverage[i])
	}
	globalAvg := mean(observed)

	profiles := make([]BiasProfile, len(codes))
	for i, code := range codes {
		bp := BiasProfile{Code: code, BiasFactor: 1, AdjustmentFactor: 1, Applied: AppliedNo}
		if math.IsNaN(coverage[i]) {
			profiles[i] = bp
			continue
		}
		bp.AverageCoverage = coverage[i]
		if globalAvg > 0 {
			bp.BiasFactor = coverage[i] / globalAvg
		}

		if coverage[i] > globalAvg*s.BiasThreshold {
			if s.excluded(code) {
				bp.Applied = AppliedExcluded
			} else {
				bp.Applied = AppliedYes
				bp.AdjustmentFactor = 1 / math.Pow(bp.BiasFactor, s.AdjustmentPower)
			}
		}
		profiles[i] = bp
	}
	return profiles
}
