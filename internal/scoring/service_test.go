package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/openquant/momentum-pipeline/internal/featurestore"
	"github.com/openquant/momentum-pipeline/internal/logger"
	"github.com/openquant/momentum-pipeline/internal/registry"
	"github.com/openquant/momentum-pipeline/internal/strategy/momentum"
	"github.com/openquant/momentum-pipeline/internal/types"
	"github.com/openquant/momentum-pipeline/pkg/errors"
)

const (
	testFeatureView = "asset_features"
	testViewVersion = "v1.0.0"
)

type ScoringServiceTestSuite struct {
	suite.Suite
	store    *featurestore.DuckDBStore
	registry *registry.DuckDBRegistry
	writer   *DuckDBSignalWriter
	service  *Service
}

func TestScoringServiceSuite(t *testing.T) {
	suite.Run(t, new(ScoringServiceTestSuite))
}

func (suite *ScoringServiceTestSuite) SetupTest() {
	log, err := logger.NewDevelopmentLogger()
	suite.Require().NoError(err)

	store, err := featurestore.NewDuckDBStore(":memory:", log)
	suite.Require().NoError(err)
	suite.store = store

	reg, err := registry.NewDuckDBRegistry(store.DB(), log)
	suite.Require().NoError(err)
	suite.registry = reg

	writer, err := NewDuckDBSignalWriter(store.DB(), "trading_signals")
	suite.Require().NoError(err)
	suite.writer = writer

	service, err := NewService(store, reg, writer, log, 4)
	suite.Require().NoError(err)
	suite.service = service
}

func (suite *ScoringServiceTestSuite) TearDownTest() {
	suite.NoError(suite.store.Close())
}

func featureRows() []types.IndicatorRow {
	return []types.IndicatorRow{
		{AssetID: "AAPL", RSI14: 25, MAShort: 110, MALong: 100, Price: 120, Volatility20: 0.2, Volume: 1000},
		{AssetID: "MSFT", RSI14: 75, MAShort: 100, MALong: 110, Price: 90, Volatility20: 0.3, Volume: 2000},
		{AssetID: "NVDA", RSI14: 50, MAShort: 100, MALong: 100, Price: 100, Volatility20: 0.1, Volume: 3000},
	}
}

// materialize registers the entity and feature view, then writes rows.
func (suite *ScoringServiceTestSuite) materialize(rows []types.IndicatorRow) {
	err := suite.store.RegisterEntity(featurestore.Entity{
		Name:        "asset",
		JoinKeys:    []string{"asset_id"},
		Description: "Tradable asset",
	})
	suite.Require().NoError(err)

	err = suite.store.RegisterFeatureView(featurestore.FeatureView{
		Name:     testFeatureView,
		Entity:   "asset",
		Features: featurestore.AssetFeatures,
	}, testViewVersion, false)
	suite.Require().NoError(err)

	suite.Require().NoError(suite.store.Materialize(testFeatureView, testViewVersion, rows))
}

func (suite *ScoringServiceTestSuite) logModel() registry.ModelVersion {
	model, err := suite.registry.LogModel(registry.LogModelParams{
		Name:        momentum.StrategyName,
		Version:     "1.0.0",
		Comment:     "Momentum-based investment strategy",
		Config:      momentum.DefaultConfig(),
		SampleInput: featureRows(),
	})
	suite.Require().NoError(err)

	return model
}

func (suite *ScoringServiceTestSuite) runParams() RunParams {
	return RunParams{
		ModelName:          momentum.StrategyName,
		ModelVersion:       "v1.0.0",
		FeatureView:        testFeatureView,
		FeatureViewVersion: testViewVersion,
	}
}

func (suite *ScoringServiceTestSuite) TestGenerateSignals() {
	suite.materialize(featureRows())
	suite.logModel()

	summary, err := suite.service.GenerateSignals(context.Background(), suite.runParams())
	suite.NoError(err)
	suite.NotEmpty(summary.RunID)
	suite.Equal(momentum.StrategyName, summary.ModelName)
	suite.Equal("v1.0.0", summary.ModelVersion)
	suite.Equal(3, summary.Rows)
	suite.Equal(1, summary.Counts[types.SignalTypeBuy])
	suite.Equal(1, summary.Counts[types.SignalTypeSell])
	suite.Equal(1, summary.Counts[types.SignalTypeHold])
}

func (suite *ScoringServiceTestSuite) TestSignalsArePersisted() {
	suite.materialize(featureRows())
	suite.logModel()

	summary, err := suite.service.GenerateSignals(context.Background(), suite.runParams())
	suite.NoError(err)

	persisted, err := suite.writer.ReadRun(summary.RunID)
	suite.NoError(err)
	suite.Require().Len(persisted, 3)

	// Ordered by asset id, all sharing the run's id, version and timestamp.
	suite.Equal("AAPL", persisted[0].AssetID)
	suite.Equal(types.SignalTypeBuy, persisted[0].Signal)
	suite.InDelta(0.9, persisted[0].Strength, 1e-9)
	suite.InDelta(0.018, persisted[0].PositionSize, 1e-9)
	suite.Contains(persisted[0].Reasoning, "RSI=25.0 (oversold)")

	suite.Equal("MSFT", persisted[1].AssetID)
	suite.Equal(types.SignalTypeSell, persisted[1].Signal)
	suite.Zero(persisted[1].PositionSize)

	suite.Equal("NVDA", persisted[2].AssetID)
	suite.Equal(types.SignalTypeHold, persisted[2].Signal)

	for _, signal := range persisted {
		suite.Equal(summary.RunID, signal.RunID)
		suite.Equal("v1.0.0", signal.StrategyVersion)
		suite.WithinDuration(summary.StartedAt, signal.Timestamp.UTC(), time.Millisecond)
	}
}

func (suite *ScoringServiceTestSuite) TestRunsAppend() {
	suite.materialize(featureRows())
	suite.logModel()

	first, err := suite.service.GenerateSignals(context.Background(), suite.runParams())
	suite.NoError(err)

	second, err := suite.service.GenerateSignals(context.Background(), suite.runParams())
	suite.NoError(err)
	suite.NotEqual(first.RunID, second.RunID)

	firstRun, err := suite.writer.ReadRun(first.RunID)
	suite.NoError(err)
	suite.Len(firstRun, 3)

	secondRun, err := suite.writer.ReadRun(second.RunID)
	suite.NoError(err)
	suite.Len(secondRun, 3)
}

func (suite *ScoringServiceTestSuite) TestLatestVersionWhenUnpinned() {
	suite.materialize(featureRows())
	suite.logModel()

	_, err := suite.registry.LogModel(registry.LogModelParams{
		Name:        momentum.StrategyName,
		Version:     "1.1.0",
		Config:      momentum.DefaultConfig(),
		SampleInput: featureRows(),
	})
	suite.Require().NoError(err)

	params := suite.runParams()
	params.ModelVersion = ""

	summary, err := suite.service.GenerateSignals(context.Background(), params)
	suite.NoError(err)
	suite.Equal("v1.1.0", summary.ModelVersion)
}

func (suite *ScoringServiceTestSuite) TestEmptyFeatureView() {
	suite.materialize(nil)
	suite.logModel()

	summary, err := suite.service.GenerateSignals(context.Background(), suite.runParams())
	suite.NoError(err)
	suite.Zero(summary.Rows)
	suite.Empty(summary.Counts)
}

func (suite *ScoringServiceTestSuite) TestUnknownModel() {
	suite.materialize(featureRows())

	_, err := suite.service.GenerateSignals(context.Background(), suite.runParams())
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeModelNotFound))
}

func (suite *ScoringServiceTestSuite) TestUnknownFeatureView() {
	suite.logModel()

	params := suite.runParams()
	params.FeatureView = "missing_view"

	_, err := suite.service.GenerateSignals(context.Background(), params)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeFeatureViewNotFound))
}

func (suite *ScoringServiceTestSuite) TestProgressCovered() {
	suite.materialize(featureRows())
	suite.logModel()

	var calls [][2]int

	params := suite.runParams()
	params.OnProgress = func(scored, total int) {
		calls = append(calls, [2]int{scored, total})
	}

	_, err := suite.service.GenerateSignals(context.Background(), params)
	suite.NoError(err)
	suite.Equal([][2]int{{3, 3}}, calls)
}
