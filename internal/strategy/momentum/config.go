package momentum

import (
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/openquant/momentum-pipeline/pkg/errors"
)

// Config holds the tunable thresholds of the momentum strategy. Values are
// versioned alongside the strategy in the model registry, so two registered
// versions may carry different thresholds.
type Config struct {
	// RSIOversold is the RSI level below which an asset counts as oversold.
	RSIOversold float64 `yaml:"rsi_oversold" json:"rsi_oversold" default:"30" validate:"gt=0"`
	// RSIOverbought is the RSI level above which an asset counts as overbought.
	RSIOverbought float64 `yaml:"rsi_overbought" json:"rsi_overbought" default:"70" validate:"gt=0,gtfield=RSIOversold"`
	// ShortWindow is the short moving average window in periods.
	ShortWindow int `yaml:"short_window" json:"short_window" default:"20" validate:"gt=0"`
	// LongWindow is the long moving average window in periods.
	LongWindow int `yaml:"long_window" json:"long_window" default:"50" validate:"gtfield=ShortWindow"`
	// PositionSizePct is the fraction of notional allocated per position,
	// scaled by signal strength.
	PositionSizePct float64 `yaml:"position_size_pct" json:"position_size_pct" default:"0.02" validate:"gt=0,lte=1"`
}

// DefaultConfig returns the strategy configuration with default thresholds.
func DefaultConfig() Config {
	var cfg Config
	// Cannot fail: Config contains only scalar fields with literal defaults.
	_ = defaults.Set(&cfg)

	return cfg
}

// Validate checks the configuration, filling unset fields with defaults first.
func (c *Config) Validate() error {
	if err := defaults.Set(c); err != nil {
		return errors.Wrap(errors.ErrCodeStrategyConfigError, "failed to apply config defaults", err)
	}

	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeStrategyConfigError, "invalid strategy configuration", err)
	}

	return nil
}
