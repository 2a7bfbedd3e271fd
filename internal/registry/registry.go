// Package registry is a DuckDB-backed local model registry. A rule-based
// strategy is registered like any model: its thresholds are the versioned
// parameters, and the input signature is captured as a JSON schema of the
// indicator row. There is no training phase; registering a version is
// publishing it.
package registry

import (
	"time"

	"github.com/openquant/momentum-pipeline/internal/strategy/momentum"
	"github.com/openquant/momentum-pipeline/internal/types"
)

// ModelVersion is one registered version of a strategy.
type ModelVersion struct {
	// Name is the model name, e.g. "momentum".
	Name string
	// Version is the normalized semver version name, e.g. "v1.0.0".
	Version string
	// Comment is a free-form description recorded at registration.
	Comment string
	// Config holds the strategy thresholds frozen into this version.
	Config momentum.Config
	// Signature is the JSON schema of the expected input row.
	Signature string
	// PipelineVersion is the pipeline build that registered this version.
	PipelineVersion string
	// CreatedAt is the registration time.
	CreatedAt time.Time
}

// LogModelParams are the inputs to Registry.LogModel.
type LogModelParams struct {
	// Name is the model name.
	Name string
	// Version is the version to register; must parse as semver.
	Version string
	// Comment describes the version.
	Comment string
	// Config holds the strategy thresholds to freeze.
	Config momentum.Config
	// SampleInput is scored once during registration to prove the
	// version accepts the declared input shape.
	SampleInput []types.IndicatorRow
}

// Registry stores and retrieves strategy versions.
type Registry interface {
	// LogModel registers a new model version. Versions are immutable;
	// registering an existing (name, version) pair fails.
	LogModel(params LogModelParams) (ModelVersion, error)
	// GetModel retrieves a model version and checks it is compatible
	// with this pipeline build.
	GetModel(name string, version string) (ModelVersion, error)
	// ListVersions returns all versions of a model, newest first.
	ListVersions(name string) ([]ModelVersion, error)
	// LatestVersion returns the highest registered version of a model.
	LatestVersion(name string) (ModelVersion, error)
}
