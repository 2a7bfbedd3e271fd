package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/openquant/momentum-pipeline/pkg/errors"
)

// CheckCompatibility checks whether a strategy version stored in the model
// registry can be executed by this build of the pipeline.
// Returns nil if compatible, error with details if not.
//
// Compatibility rules:
//   - If either version is "main" (development build), the check is skipped
//   - Major versions must match exactly
//   - Minor versions must match exactly
//   - Patch versions can differ (e.g., 1.2.0 can run a 1.2.5 model)
func CheckCompatibility(pipelineVersion, modelVersion string) error {
	pipelineVersion = strings.TrimPrefix(pipelineVersion, "v")
	modelVersion = strings.TrimPrefix(modelVersion, "v")

	// Skip version check for "main" (development builds).
	if pipelineVersion == "main" || modelVersion == "main" {
		return nil
	}

	pipelineSemver, err := semver.NewVersion(pipelineVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid pipeline version '%s'", pipelineVersion)
	}

	modelSemver, err := semver.NewVersion(modelVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid model version '%s'", modelVersion)
	}

	if pipelineSemver.Major() != modelSemver.Major() {
		return errors.Newf(errors.ErrCodeVersionMismatch,
			"major version mismatch: pipeline is %d.x.x but model requires %d.x.x",
			pipelineSemver.Major(), modelSemver.Major())
	}

	if pipelineSemver.Minor() != modelSemver.Minor() {
		return errors.Newf(errors.ErrCodeVersionMismatch,
			"minor version mismatch: pipeline is %d.%d.x but model requires %d.%d.x",
			pipelineSemver.Major(), pipelineSemver.Minor(),
			modelSemver.Major(), modelSemver.Minor())
	}

	// Patch versions can differ.
	return nil
}

// Parse validates a version string and returns its normalized "vX.Y.Z" form.
func Parse(raw string) (string, error) {
	parsed, err := semver.NewVersion(strings.TrimPrefix(raw, "v"))
	if err != nil {
		return "", errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid version '%s'", raw)
	}

	return "v" + parsed.String(), nil
}
