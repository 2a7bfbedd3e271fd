package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/openquant/momentum-pipeline/internal/logger"
	"github.com/openquant/momentum-pipeline/internal/strategy/momentum"
	"github.com/openquant/momentum-pipeline/internal/types"
	"github.com/openquant/momentum-pipeline/internal/version"
	"github.com/openquant/momentum-pipeline/pkg/errors"
)

// DuckDBRegistry implements Registry on a DuckDB database, typically the
// same database file as the feature store.
type DuckDBRegistry struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDuckDBRegistry creates a model registry on the given database handle.
func NewDuckDBRegistry(db *sql.DB, log *logger.Logger) (*DuckDBRegistry, error) {
	registry := &DuckDBRegistry{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	// Raw SQL for DDL as Squirrel doesn't support CREATE statements.
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS model_versions (
			name TEXT,
			version TEXT,
			comment TEXT,
			params TEXT,
			signature TEXT,
			pipeline_version TEXT,
			created_at TIMESTAMP,
			PRIMARY KEY (name, version)
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create model_versions table: %w", err)
	}

	return registry, nil
}

// LogModel implements Registry. Registration scores the sample input once
// with the frozen configuration, so a version that cannot accept its own
// declared inputs is never published.
func (r *DuckDBRegistry) LogModel(params LogModelParams) (ModelVersion, error) {
	if params.Name == "" {
		return ModelVersion{}, errors.New(errors.ErrCodeMissingParameter, "model name is required")
	}

	normalized, err := version.Parse(params.Version)
	if err != nil {
		return ModelVersion{}, err
	}

	if len(params.SampleInput) == 0 {
		return ModelVersion{}, errors.New(errors.ErrCodeMissingParameter,
			"sample input is required to capture the model signature")
	}

	strategy, err := momentum.New(params.Config)
	if err != nil {
		return ModelVersion{}, err
	}

	if _, err := strategy.Predict(params.SampleInput); err != nil {
		return ModelVersion{}, errors.Wrap(errors.ErrCodeModelLogFailed,
			"sample input rejected by the strategy", err)
	}

	if _, err := r.lookup(params.Name, normalized); err == nil {
		return ModelVersion{}, errors.Newf(errors.ErrCodeModelAlreadyExists,
			"model %s version %s already registered", params.Name, normalized)
	}

	signature, err := InputSignature(types.IndicatorRow{})
	if err != nil {
		return ModelVersion{}, errors.Wrap(errors.ErrCodeModelLogFailed, "failed to capture input signature", err)
	}

	configJSON, err := json.Marshal(strategy.Config())
	if err != nil {
		return ModelVersion{}, errors.Wrap(errors.ErrCodeModelLogFailed, "failed to encode strategy config", err)
	}

	model := ModelVersion{
		Name:            params.Name,
		Version:         normalized,
		Comment:         params.Comment,
		Config:          strategy.Config(),
		Signature:       signature,
		PipelineVersion: version.GetVersion(),
		CreatedAt:       time.Now().UTC(),
	}

	_, err = r.db.Exec(`
		INSERT INTO model_versions (name, version, comment, params, signature, pipeline_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, model.Name, model.Version, model.Comment, string(configJSON), model.Signature, model.PipelineVersion, model.CreatedAt)
	if err != nil {
		return ModelVersion{}, errors.Wrapf(errors.ErrCodeModelLogFailed, err,
			"failed to register model %s version %s", model.Name, model.Version)
	}

	r.logger.Info("Model version registered",
		zap.String("model", model.Name),
		zap.String("version", model.Version),
	)

	return model, nil
}

// GetModel implements Registry.
func (r *DuckDBRegistry) GetModel(name string, modelVersion string) (ModelVersion, error) {
	normalized, err := version.Parse(modelVersion)
	if err != nil {
		return ModelVersion{}, err
	}

	model, err := r.lookup(name, normalized)
	if err != nil {
		return ModelVersion{}, err
	}

	// A model logged by an incompatible pipeline build may carry
	// parameters this build interprets differently.
	if err := version.CheckCompatibility(version.GetVersion(), model.PipelineVersion); err != nil {
		return ModelVersion{}, fmt.Errorf("model %s version %s is not loadable: %w", name, normalized, err)
	}

	return model, nil
}

// ListVersions implements Registry.
func (r *DuckDBRegistry) ListVersions(name string) ([]ModelVersion, error) {
	query, args, err := r.sq.
		Select("name", "version", "comment", "params", "signature", "pipeline_version", "created_at").
		From("model_versions").
		Where(squirrel.Eq{"name": name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to list versions of model %s", name)
	}
	defer rows.Close()

	var models []ModelVersion

	for rows.Next() {
		model, err := scanModel(rows.Scan)
		if err != nil {
			return nil, err
		}

		models = append(models, model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating model versions: %w", err)
	}

	// Newest version first. Version strings are normalized semver, so
	// parse errors cannot occur here.
	sort.Slice(models, func(i, j int) bool {
		vi := semver.MustParse(models[i].Version)
		vj := semver.MustParse(models[j].Version)

		return vi.GreaterThan(vj)
	})

	return models, nil
}

// LatestVersion implements Registry.
func (r *DuckDBRegistry) LatestVersion(name string) (ModelVersion, error) {
	models, err := r.ListVersions(name)
	if err != nil {
		return ModelVersion{}, err
	}

	if len(models) == 0 {
		return ModelVersion{}, errors.Newf(errors.ErrCodeModelNotFound, "model %s has no registered versions", name)
	}

	return models[0], nil
}

// lookup reads one model version row without compatibility checks.
func (r *DuckDBRegistry) lookup(name string, normalizedVersion string) (ModelVersion, error) {
	query, args, err := r.sq.
		Select("name", "version", "comment", "params", "signature", "pipeline_version", "created_at").
		From("model_versions").
		Where(squirrel.And{
			squirrel.Eq{"name": name},
			squirrel.Eq{"version": normalizedVersion},
		}).
		ToSql()
	if err != nil {
		return ModelVersion{}, fmt.Errorf("failed to build query: %w", err)
	}

	model, err := scanModel(r.db.QueryRow(query, args...).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return ModelVersion{}, errors.Newf(errors.ErrCodeModelNotFound,
				"model %s version %s not found", name, normalizedVersion)
		}

		return ModelVersion{}, err
	}

	return model, nil
}

func scanModel(scan func(dest ...any) error) (ModelVersion, error) {
	var (
		model      ModelVersion
		configJSON string
	)

	err := scan(&model.Name, &model.Version, &model.Comment, &configJSON,
		&model.Signature, &model.PipelineVersion, &model.CreatedAt)
	if err != nil {
		return ModelVersion{}, err
	}

	if err := json.Unmarshal([]byte(configJSON), &model.Config); err != nil {
		return ModelVersion{}, fmt.Errorf("failed to decode stored strategy config: %w", err)
	}

	return model, nil
}
