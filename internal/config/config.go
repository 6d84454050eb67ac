package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Forecast methods accepted by score.forecast_method.
var ForecastMethods = []string{"sma", "ema", "trend", "last"}

// Config holds the full application configuration.
type Config struct {
	Score ScoreConfig `yaml:"score" mapstructure:"score"`
	Panel PanelConfig `yaml:"panel" mapstructure:"panel"`
	Fetch FetchConfig `yaml:"fetch" mapstructure:"fetch"`
	Log   LogConfig   `yaml:"log" mapstructure:"log"`
}

// WeightsConfig holds the five composite component weights. They are
// renormalized to sum to 1 before scoring.
type WeightsConfig struct {
	Current          float64 `yaml:"current" mapstructure:"current"`
	Historic         float64 `yaml:"historic" mapstructure:"historic"`
	GlobalRelative   float64 `yaml:"global_relative" mapstructure:"global_relative"`
	HistoricRelative float64 `yaml:"historic_relative" mapstructure:"historic_relative"`
	Forecast         float64 `yaml:"forecast" mapstructure:"forecast"`
}

// ScoreConfig configures the composite scoring engine.
type ScoreConfig struct {
	Weights                      WeightsConfig `yaml:"weights" mapstructure:"weights"`
	RecencyWeight                float64       `yaml:"recency_weight" mapstructure:"recency_weight"`
	OutlierSensitivity           float64       `yaml:"outlier_sensitivity" mapstructure:"outlier_sensitivity"`
	CoverageBiasThreshold        float64       `yaml:"coverage_bias_threshold" mapstructure:"coverage_bias_threshold"`
	CoverageAdjustmentPower      float64       `yaml:"coverage_adjustment_power" mapstructure:"coverage_adjustment_power"`
	CoverageAdjustmentExclusions []string      `yaml:"coverage_adjustment_exclusions" mapstructure:"coverage_adjustment_exclusions"`
	ForecastWindow               int           `yaml:"forecast_window" mapstructure:"forecast_window"`
	RecentTrendWindow            int           `yaml:"recent_trend_window" mapstructure:"recent_trend_window"`
	ForecastMethod               string        `yaml:"forecast_method" mapstructure:"forecast_method"`
	ForecastAlpha                float64       `yaml:"forecast_alpha" mapstructure:"forecast_alpha"`
	Workers                      int           `yaml:"workers" mapstructure:"workers"`
}

// PanelConfig locates the input panel.
type PanelConfig struct {
	Path           string `yaml:"path" mapstructure:"path"`
	URL            string `yaml:"url" mapstructure:"url"`
	Sheet          string `yaml:"sheet" mapstructure:"sheet"`
	Charset        string `yaml:"charset" mapstructure:"charset"`
	CountryMapFile string `yaml:"country_map_file" mapstructure:"country_map_file"`
}

// FetchConfig configures panel downloads.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultScoreConfig returns the scoring defaults.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		Weights: WeightsConfig{
			Current:          0.30,
			Historic:         0.20,
			GlobalRelative:   0.15,
			HistoricRelative: 0.15,
			Forecast:         0.20,
		},
		RecencyWeight:                0.7,
		OutlierSensitivity:           1.5,
		CoverageBiasThreshold:        1.5,
		CoverageAdjustmentPower:      0.5,
		CoverageAdjustmentExclusions: []string{"USA"},
		ForecastWindow:               12,
		RecentTrendWindow:            3,
		ForecastMethod:               "ema",
		ForecastAlpha:                0.3,
		Workers:                      8,
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GPR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	d := DefaultScoreConfig()
	v.SetDefault("score.weights.current", d.Weights.Current)
	v.SetDefault("score.weights.historic", d.Weights.Historic)
	v.SetDefault("score.weights.global_relative", d.Weights.GlobalRelative)
	v.SetDefault("score.weights.historic_relative", d.Weights.HistoricRelative)
	v.SetDefault("score.weights.forecast", d.Weights.Forecast)
	v.SetDefault("score.recency_weight", d.RecencyWeight)
	v.SetDefault("score.outlier_sensitivity", d.OutlierSensitivity)
	v.SetDefault("score.coverage_bias_threshold", d.CoverageBiasThreshold)
	v.SetDefault("score.coverage_adjustment_power", d.CoverageAdjustmentPower)
	v.SetDefault("score.coverage_adjustment_exclusions", d.CoverageAdjustmentExclusions)
	v.SetDefault("score.forecast_window", d.ForecastWindow)
	v.SetDefault("score.recent_trend_window", d.RecentTrendWindow)
	v.SetDefault("score.forecast_method", d.ForecastMethod)
	v.SetDefault("score.forecast_alpha", d.ForecastAlpha)
	v.SetDefault("score.workers", d.Workers)
	v.SetDefault("panel.path", "")
	v.SetDefault("panel.url", "")
	v.SetDefault("panel.sheet", "")
	v.SetDefault("panel.charset", "")
	v.SetDefault("panel.country_map_file", "")
	v.SetDefault("fetch.user_agent", "gpr-cli/1.0")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by the given command mode.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "score":
		errs = append(errs, c.Score.validate()...)
	case "fetch":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Fetch.TimeoutSecs < 0 {
		errs = append(errs, "fetch.timeout_secs must be >= 0")
	}
	if c.Fetch.MaxRetries < 0 || c.Fetch.MaxRetries > 10 {
		errs = append(errs, "fetch.max_retries must be between 0 and 10")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (s ScoreConfig) validate() []string {
	var errs []string

	w := s.Weights
	if w.Current < 0 || w.Historic < 0 || w.GlobalRelative < 0 || w.HistoricRelative < 0 || w.Forecast < 0 {
		errs = append(errs, "score.weights values must be >= 0")
	}
	if s.RecencyWeight < 0 || s.RecencyWeight > 1 {
		errs = append(errs, "score.recency_weight must be between 0 and 1")
	}
	if s.OutlierSensitivity <= 0 {
		errs = append(errs, "score.outlier_sensitivity must be > 0")
	}
	if s.CoverageBiasThreshold <= 0 {
		errs = append(errs, "score.coverage_bias_threshold must be > 0")
	}
	if s.CoverageAdjustmentPower < 0 {
		errs = append(errs, "score.coverage_adjustment_power must be >= 0")
	}
	if s.ForecastWindow < 1 {
		errs = append(errs, "score.forecast_window must be >= 1")
	}
	if s.RecentTrendWindow < 1 {
		errs = append(errs, "score.recent_trend_window must be >= 1")
	}
	if !slices.Contains(ForecastMethods, strings.ToLower(s.ForecastMethod)) {
		errs = append(errs, fmt.Sprintf("score.forecast_method must be one of %s", strings.Join(ForecastMethods, ", ")))
	}
	if s.ForecastAlpha < 0 || s.ForecastAlpha > 1 {
		errs = append(errs, "score.forecast_alpha must be between 0 and 1")
	}
	if s.Workers < 1 || s.Workers > 64 {
		errs = append(errs, "score.workers must be between 1 and 64")
	}

	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
