// Package gpr computes the composite geopolitical-risk index from a monthly panel.
package gpr

import (
	"math"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gpr-cli/internal/config"
	"github.com/sells-group/gpr-cli/internal/panel"
)

// ForecastMethod selects the one-step-ahead estimator.
type ForecastMethod string

// Supported forecast methods.
const (
	MethodSMA   ForecastMethod = "sma"
	MethodEMA   ForecastMethod = "ema"
	MethodTrend ForecastMethod = "trend"
	MethodLast  ForecastMethod = "last"
)

// Weights are the composite component weights.
type Weights struct {
	Current          float64 `json:"current" yaml:"current"`
	Historic         float64 `json:"historic" yaml:"historic"`
	GlobalRelative   float64 `json:"global_relative" yaml:"global_relative"`
	HistoricRelative float64 `json:"historic_relative" yaml:"historic_relative"`
	Forecast         float64 `json:"forecast" yaml:"forecast"`
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Current + w.Historic + w.GlobalRelative + w.HistoricRelative + w.Forecast
}

// Normalized returns a copy of w rescaled to sum to 1. A zero sum yields equal weights.
func (w Weights) Normalized() Weights {
	sum := w.Sum()
	if sum <= 0 {
		return Weights{Current: 0.2, Historic: 0.2, GlobalRelative: 0.2, HistoricRelative: 0.2, Forecast: 0.2}
	}
	if math.Abs(sum-1) < 1e-12 {
		return w
	}
	return Weights{
		Current:          w.Current / sum,
		Historic:         w.Historic / sum,
		GlobalRelative:   w.GlobalRelative / sum,
		HistoricRelative: w.HistoricRelative / sum,
		Forecast:         w.Forecast / sum,
	}
}

// Settings is the immutable per-run scoring configuration. Build it with
// NewSettings; the engine never modifies it.
type Settings struct {
	Weights            Weights
	RecencyWeight      float64
	OutlierSensitivity float64
	BiasThreshold      float64
	AdjustmentPower    float64
	Exclusions         []string
	ForecastWindow     int
	TrendWindow        int
	Method             ForecastMethod
	Alpha              float64
	Workers            int
}

// NewSettings validates c and converts it into Settings with normalized weights.
func NewSettings(c config.ScoreConfig) (Settings, error) {
	cfg := config.Config{Score: c}
	if err := cfg.Validate("score"); err != nil {
		return Settings{}, eris.Wrap(err, "gpr: settings")
	}

	raw := Weights{
		Current:          c.Weights.Current,
		Historic:         c.Weights.Historic,
		GlobalRelative:   c.Weights.GlobalRelative,
		HistoricRelative: c.Weights.HistoricRelative,
		Forecast:         c.Weights.Forecast,
	}
	w := raw.Normalized()
	if w != raw {
		zap.L().Info("gpr: weights renormalized",
			zap.Float64("sum", raw.Sum()),
			zap.Float64("current", w.Current),
			zap.Float64("historic", w.Historic),
			zap.Float64("global_relative", w.GlobalRelative),
			zap.Float64("historic_relative", w.HistoricRelative),
			zap.Float64("forecast", w.Forecast),
		)
	}

	return Settings{
		Weights:            w,
		RecencyWeight:      c.RecencyWeight,
		OutlierSensitivity: c.OutlierSensitivity,
		BiasThreshold:      c.CoverageBiasThreshold,
		AdjustmentPower:    c.CoverageAdjustmentPower,
		Exclusions:         panel.NormalizeCodes(c.CoverageAdjustmentExclusions),
		ForecastWindow:     c.ForecastWindow,
		TrendWindow:        c.RecentTrendWindow,
		Method:             ForecastMethod(strings.ToLower(c.ForecastMethod)),
		Alpha:              c.ForecastAlpha,
		Workers:            c.Workers,
	}, nil
}

// DefaultSettings returns Settings built from config.DefaultScoreConfig.
func DefaultSettings() Settings {
	s, err := NewSettings(config.DefaultScoreConfig())
	if err != nil {
		panic(err) // defaults are static and valid
	}
	return s
}

// excluded reports whether code is exempt from coverage adjustment.
func (s Settings) excluded(code string) bool {
	return slices.Contains(s.Exclusions, code)
}
