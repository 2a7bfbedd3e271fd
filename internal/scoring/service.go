package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openquant/momentum-pipeline/internal/featurestore"
	"github.com/openquant/momentum-pipeline/internal/logger"
	"github.com/openquant/momentum-pipeline/internal/registry"
	"github.com/openquant/momentum-pipeline/internal/strategy/momentum"
	"github.com/openquant/momentum-pipeline/internal/types"
	"github.com/openquant/momentum-pipeline/pkg/errors"
)

const (
	// DefaultWorkers is the worker count used when none is configured.
	DefaultWorkers = 4

	// scoringChunkSize bounds how many rows are scored between progress
	// callbacks.
	scoringChunkSize = 500
)

// ProgressFunc reports scoring progress as scored rows out of total rows.
type ProgressFunc func(scored, total int)

// RunParams identifies the model and feature view for one scoring run.
type RunParams struct {
	ModelName string
	// ModelVersion selects a registered version. Empty means the latest
	// registered version.
	ModelVersion       string
	FeatureView        string
	FeatureViewVersion string
	// OnProgress, when set, is called after each scored chunk.
	OnProgress ProgressFunc
}

// RunSummary describes a completed scoring run.
type RunSummary struct {
	RunID        string
	ModelName    string
	ModelVersion string
	Rows         int
	Counts       map[types.SignalType]int
	StartedAt    time.Time
	Duration     time.Duration
}

// Service generates trading signals by scoring materialized feature rows
// with a registered model and appending the results to the signals table.
type Service struct {
	store    featurestore.Store
	registry registry.Registry
	writer   SignalWriter
	logger   *logger.Logger
	workers  int
	now      func() time.Time
}

// NewService creates a scoring service.
func NewService(store featurestore.Store, reg registry.Registry, writer SignalWriter, log *logger.Logger, workers int) (*Service, error) {
	if store == nil || reg == nil || writer == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "store, registry and writer are required")
	}

	if workers <= 0 {
		workers = DefaultWorkers
	}

	return &Service{
		store:    store,
		registry: reg,
		writer:   writer,
		logger:   log,
		workers:  workers,
		now:      time.Now,
	}, nil
}

// GenerateSignals runs one scoring pass: it loads the model, reads the
// feature view rows, scores every asset and appends the signals. All
// signals of a run share one run id and one timestamp.
func (s *Service) GenerateSignals(ctx context.Context, params RunParams) (RunSummary, error) {
	startedAt := s.now().UTC()

	model, err := s.loadModel(params.ModelName, params.ModelVersion)
	if err != nil {
		return RunSummary{}, err
	}

	strategy, err := momentum.New(model.Config)
	if err != nil {
		return RunSummary{}, errors.Wrapf(errors.ErrCodeStrategyConfigError, err,
			"failed to build strategy for model %s version %s", model.Name, model.Version)
	}

	rows, err := s.store.ReadRows(params.FeatureView, params.FeatureViewVersion)
	if err != nil {
		return RunSummary{}, fmt.Errorf("failed to read feature view %s version %s: %w",
			params.FeatureView, params.FeatureViewVersion, err)
	}

	runID := uuid.New().String()

	s.logger.Info("scoring run started",
		zap.String("run_id", runID),
		zap.String("model", model.Name),
		zap.String("model_version", model.Version),
		zap.String("feature_view", params.FeatureView),
		zap.Int("rows", len(rows)),
	)

	results, err := s.scoreChunked(ctx, strategy, rows, params.OnProgress)
	if err != nil {
		return RunSummary{}, errors.Wrapf(errors.ErrCodeScoringFailed, err,
			"scoring run %s failed", runID)
	}

	signals := make([]types.ScoredSignal, 0, len(results))
	counts := make(map[types.SignalType]int)

	for _, result := range results {
		signals = append(signals, types.ScoredSignal{
			SignalResult:    result,
			Timestamp:       startedAt,
			StrategyVersion: model.Version,
			RunID:           runID,
		})
		counts[result.Signal]++
	}

	if err := s.writer.Append(signals); err != nil {
		return RunSummary{}, fmt.Errorf("failed to write signals for run %s: %w", runID, err)
	}

	summary := RunSummary{
		RunID:        runID,
		ModelName:    model.Name,
		ModelVersion: model.Version,
		Rows:         len(signals),
		Counts:       counts,
		StartedAt:    startedAt,
		Duration:     s.now().UTC().Sub(startedAt),
	}

	s.logger.Info("scoring run finished",
		zap.String("run_id", runID),
		zap.Int("rows", summary.Rows),
		zap.Int("buy", counts[types.SignalTypeBuy]),
		zap.Int("sell", counts[types.SignalTypeSell]),
		zap.Int("hold", counts[types.SignalTypeHold]),
	)

	return summary, nil
}

func (s *Service) loadModel(name, version string) (registry.ModelVersion, error) {
	if name == "" {
		return registry.ModelVersion{}, errors.New(errors.ErrCodeMissingParameter, "model name is required")
	}

	if version == "" {
		return s.registry.LatestVersion(name)
	}

	return s.registry.GetModel(name, version)
}

// scoreChunked scores rows chunk by chunk so progress can be reported
// without changing the results.
func (s *Service) scoreChunked(ctx context.Context, strategy *momentum.Strategy, rows []types.IndicatorRow, onProgress ProgressFunc) ([]types.SignalResult, error) {
	results := make([]types.SignalResult, 0, len(rows))

	for start := 0; start < len(rows); start += scoringChunkSize {
		end := start + scoringChunkSize
		if end > len(rows) {
			end = len(rows)
		}

		chunk, err := strategy.PredictParallel(ctx, rows[start:end], s.workers)
		if err != nil {
			return nil, err
		}

		results = append(results, chunk...)

		if onProgress != nil {
			onProgress(end, len(rows))
		}
	}

	return results, nil
}
