package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/moznion/go-optional"

	"github.com/openquant/momentum-pipeline/internal/featurestore"
	"github.com/openquant/momentum-pipeline/internal/indicator"
	"github.com/openquant/momentum-pipeline/internal/logger"
	"github.com/openquant/momentum-pipeline/internal/registry"
	"github.com/openquant/momentum-pipeline/internal/scoring"
	"github.com/openquant/momentum-pipeline/internal/strategy/momentum"
	"github.com/openquant/momentum-pipeline/internal/types"
	"github.com/openquant/momentum-pipeline/pkg/errors"
)

// Task names of the signal pipeline.
const (
	TaskComputeFeatures = "compute_features"
	TaskRegisterModel   = "register_model"
	TaskGenerateSignals = "generate_signals"
)

// SignalPipelineParams wires the components of the signal pipeline.
type SignalPipelineParams struct {
	Store    featurestore.Store
	Registry registry.Registry
	Scoring  *scoring.Service
	Logger   *logger.Logger

	// Name is the DAG name; Schedule the re-run interval (zero for
	// on-demand only).
	Name     string
	Schedule time.Duration

	// DataPath is the parquet file holding raw price bars.
	DataPath string

	// FeatureView and FeatureViewVersion name the materialized view the
	// pipeline produces and scores.
	FeatureView        string
	FeatureViewVersion string
	FeatureParams      indicator.FeatureParams

	// ModelName, ModelVersion and StrategyConfig describe the model the
	// pipeline registers and scores with.
	ModelName      string
	ModelVersion   string
	StrategyConfig momentum.Config
}

// BuildSignalPipeline assembles the three-task DAG that computes features,
// registers the model version, and generates trading signals.
func BuildSignalPipeline(params SignalPipelineParams) (*DAG, error) {
	if params.Store == nil || params.Registry == nil || params.Scoring == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "store, registry and scoring service are required")
	}

	dag, err := NewDAG(params.Name, params.Schedule, params.Logger)
	if err != nil {
		return nil, err
	}

	err = dag.AddTask(Task{
		Name: TaskComputeFeatures,
		Run: func(ctx context.Context) (string, error) {
			return computeFeatures(params)
		},
	})
	if err != nil {
		return nil, err
	}

	err = dag.AddTask(Task{
		Name:      TaskRegisterModel,
		DependsOn: []string{TaskComputeFeatures},
		Run: func(ctx context.Context) (string, error) {
			return registerModel(params)
		},
	})
	if err != nil {
		return nil, err
	}

	err = dag.AddTask(Task{
		Name:      TaskGenerateSignals,
		DependsOn: []string{TaskRegisterModel},
		Run: func(ctx context.Context) (string, error) {
			return generateSignals(ctx, params)
		},
	})
	if err != nil {
		return nil, err
	}

	return dag, nil
}

// Deploy runs the DAG according to the environment: production
// deployments resume the schedule, every other environment executes the
// DAG once and stops.
func Deploy(ctx context.Context, dag *DAG, production bool, callbacks LifecycleCallbacks) error {
	if production {
		return dag.Resume(ctx, callbacks)
	}

	return dag.Execute(ctx, callbacks)
}

// computeFeatures loads price bars, computes indicator rows, and
// materializes them into the feature view. Entity and view registration is
// idempotent so repeated runs refresh the same view.
func computeFeatures(params SignalPipelineParams) (string, error) {
	if params.DataPath != "" {
		if err := params.Store.LoadPriceBars(params.DataPath); err != nil {
			return "", err
		}
	}

	bars, err := params.Store.ReadPriceBars(optional.None[time.Time](), optional.None[time.Time]())
	if err != nil {
		return "", err
	}

	rows, err := indicator.BuildIndicatorRows(bars, params.FeatureParams)
	if err != nil {
		return "", err
	}

	err = params.Store.RegisterEntity(featurestore.Entity{
		Name:        "asset",
		JoinKeys:    []string{"asset_id"},
		Description: "Tradable asset identified by its ticker symbol",
	})
	if err != nil {
		return "", err
	}

	err = params.Store.RegisterFeatureView(featurestore.FeatureView{
		Name:        params.FeatureView,
		Entity:      "asset",
		Features:    featurestore.AssetFeatures,
		RefreshFreq: params.Schedule,
		Description: "Momentum indicators per asset",
	}, params.FeatureViewVersion, true)
	if err != nil {
		return "", err
	}

	if err := params.Store.Materialize(params.FeatureView, params.FeatureViewVersion, rows); err != nil {
		return "", err
	}

	return fmt.Sprintf("materialized %d feature rows from %d bars", len(rows), len(bars)), nil
}

// registerModel publishes the configured model version. Versions are
// immutable, so a version that is already registered is kept as is.
func registerModel(params SignalPipelineParams) (string, error) {
	sample, err := params.Store.ReadRows(params.FeatureView, params.FeatureViewVersion)
	if err != nil {
		return "", err
	}

	if len(sample) > 10 {
		sample = sample[:10]
	}

	model, err := params.Registry.LogModel(registry.LogModelParams{
		Name:        params.ModelName,
		Version:     params.ModelVersion,
		Comment:     "Momentum-based investment strategy",
		Config:      params.StrategyConfig,
		SampleInput: sample,
	})
	if errors.HasCode(err, errors.ErrCodeModelAlreadyExists) {
		return fmt.Sprintf("model %s version %s already registered", params.ModelName, params.ModelVersion), nil
	}

	if err != nil {
		return "", err
	}

	return fmt.Sprintf("registered model %s version %s", model.Name, model.Version), nil
}

// generateSignals scores the feature view with the registered model.
func generateSignals(ctx context.Context, params SignalPipelineParams) (string, error) {
	summary, err := params.Scoring.GenerateSignals(ctx, scoring.RunParams{
		ModelName:          params.ModelName,
		ModelVersion:       params.ModelVersion,
		FeatureView:        params.FeatureView,
		FeatureViewVersion: params.FeatureViewVersion,
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("run %s scored %d assets (buy=%d sell=%d hold=%d)",
		summary.RunID, summary.Rows,
		summary.Counts[types.SignalTypeBuy],
		summary.Counts[types.SignalTypeSell],
		summary.Counts[types.SignalTypeHold],
	), nil
}
