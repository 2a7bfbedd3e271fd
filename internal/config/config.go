// Package config loads environment-layered pipeline configuration from a
// YAML file. The file holds a default section plus one section per
// environment; values in the selected environment override the defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openquant/momentum-pipeline/internal/strategy/momentum"
	"github.com/openquant/momentum-pipeline/pkg/errors"
)

// Environment names with special meaning.
const (
	EnvDefault    = "default"
	EnvProduction = "prd"

	defaultSchedule = 24 * time.Hour
)

// Duration is a time.Duration that unmarshals from YAML strings like "1h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid duration %q", value.Value)
	}

	*d = Duration(parsed)

	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Tables names the database tables the pipeline reads and writes. The raw
// price bar view is owned by the feature store and is not configurable.
type Tables struct {
	// FeatureView is the feature view holding indicator rows.
	FeatureView string `yaml:"feature_view" json:"feature_view" default:"asset_features"`
	// SignalsOutput is the table scoring runs append to.
	SignalsOutput string `yaml:"signals_output" json:"signals_output" default:"trading_signals"`
}

// Strategy selects and parameterizes the registered model.
type Strategy struct {
	// Name is the model name in the registry.
	Name string `yaml:"name" json:"name" default:"momentum" validate:"required"`
	// Version is the model version the pipeline registers and scores with.
	Version string `yaml:"version" json:"version" default:"v1.0.0" validate:"required"`
	// Params tune the momentum scoring rules.
	Params momentum.Config `yaml:"params" json:"params"`
}

// Config is the resolved pipeline configuration for one environment.
type Config struct {
	// Environment is the name of the selected environment section.
	Environment string `yaml:"-" json:"environment"`
	// Database is the DuckDB database path. ":memory:" is allowed.
	Database string `yaml:"database" json:"database" default:"momentum.duckdb" validate:"required"`
	// DataPath is the parquet file holding raw price bars.
	DataPath string `yaml:"data_path" json:"data_path"`
	// Tables names the pipeline's tables.
	Tables Tables `yaml:"tables" json:"tables"`
	// Strategy selects the model.
	Strategy Strategy `yaml:"strategy" json:"strategy"`
	// FeatureViewVersion versions the materialized feature view.
	FeatureViewVersion string `yaml:"feature_view_version" json:"feature_view_version" default:"v1.0.0" validate:"required"`
	// Schedule is the re-run interval of a deployed pipeline.
	Schedule Duration `yaml:"schedule" json:"schedule"`
	// Workers bounds scoring parallelism.
	Workers int `yaml:"workers" json:"workers" default:"4" validate:"gte=1"`
}

// IsProduction reports whether the configuration targets the production
// environment.
func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Load reads the configuration file and resolves the given environment:
// defaults first, then the default section, then the environment section.
func Load(path string, env string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Parse(raw, env)
}

// Parse resolves an environment from raw YAML config content.
func Parse(raw []byte, env string) (Config, error) {
	if env == "" {
		env = EnvDefault
	}

	var sections map[string]yaml.Node

	if err := yaml.Unmarshal(raw, &sections); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config file", err)
	}

	var cfg Config

	if err := defaults.Set(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	if node, ok := sections[EnvDefault]; ok {
		if err := node.Decode(&cfg); err != nil {
			return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid default section", err)
		}
	}

	if env != EnvDefault {
		node, ok := sections[env]
		if !ok {
			return Config{}, errors.Newf(errors.ErrCodeInvalidConfiguration, "environment %s not found in config", env)
		}

		// Environment values win over defaults; keys absent from the
		// environment section keep their default values.
		if err := node.Decode(&cfg); err != nil {
			return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid %s section", env)
		}
	}

	cfg.Environment = env

	if cfg.Schedule <= 0 {
		cfg.Schedule = Duration(defaultSchedule)
	}

	if err := cfg.Strategy.Params.Validate(); err != nil {
		return Config{}, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	return cfg, nil
}
