package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/openquant/momentum-pipeline/pkg/errors"
)

type SeriesTestSuite struct {
	suite.Suite
}

func TestSeriesSuite(t *testing.T) {
	suite.Run(t, new(SeriesTestSuite))
}

func (suite *SeriesTestSuite) TestSMASeries() {
	series := SMASeries([]float64{1, 2, 3, 4, 5}, 3)

	suite.Len(series, 5)
	suite.True(math.IsNaN(series[0]))
	suite.True(math.IsNaN(series[1]))
	suite.InDelta(2.0, series[2], 1e-9)
	suite.InDelta(3.0, series[3], 1e-9)
	suite.InDelta(4.0, series[4], 1e-9)
}

func (suite *SeriesTestSuite) TestSMASeriesShortInput() {
	series := SMASeries([]float64{1, 2}, 3)

	suite.Len(series, 2)

	for _, v := range series {
		suite.True(math.IsNaN(v))
	}
}

func (suite *SeriesTestSuite) TestRSISeriesUptrend() {
	// Strictly rising closes have zero losses, RSI saturates at 100.
	series := RSISeries([]float64{1, 2, 3, 4, 5, 6}, 3)

	suite.True(math.IsNaN(series[2]))
	suite.InDelta(100.0, series[3], 1e-9)
	suite.InDelta(100.0, series[5], 1e-9)
}

func (suite *SeriesTestSuite) TestRSISeriesFlat() {
	// A flat window has no gains and no losses; RS is undefined.
	series := RSISeries([]float64{5, 5, 5, 5, 5}, 2)

	for _, v := range series {
		suite.True(math.IsNaN(v))
	}
}

func (suite *SeriesTestSuite) TestRSISeriesBalanced() {
	// Alternating +1/-1 moves balance gains and losses, RSI is 50.
	series := RSISeries([]float64{1, 2, 1, 2}, 2)

	suite.True(math.IsNaN(series[0]))
	suite.True(math.IsNaN(series[1]))
	suite.InDelta(50.0, series[2], 1e-9)
	suite.InDelta(50.0, series[3], 1e-9)
}

func (suite *SeriesTestSuite) TestVolatilitySeriesConstantReturns() {
	// Constant returns have zero dispersion.
	series := VolatilitySeries([]float64{100, 110, 121}, 2)

	suite.True(math.IsNaN(series[0]))
	suite.True(math.IsNaN(series[1]))
	suite.InDelta(0.0, series[2], 1e-9)
}

func (suite *SeriesTestSuite) TestVolatilitySeriesKnownValue() {
	// Returns +10% then -10%: sample std is sqrt(0.02), annualized by sqrt(252).
	series := VolatilitySeries([]float64{100, 110, 99}, 2)

	want := math.Sqrt(0.02) * math.Sqrt(252)
	suite.InDelta(want, series[2], 1e-9)
}

func (suite *SeriesTestSuite) TestRSILatestInsufficientData() {
	rsi := NewRSI()

	_, err := rsi.Latest([]float64{1, 2, 3})
	suite.Error(err)
	suite.True(errors.IsInsufficientDataError(err))
}

func (suite *SeriesTestSuite) TestMALatest() {
	ma := NewMA(3)

	value, err := ma.Latest([]float64{1, 2, 3, 4, 5})
	suite.NoError(err)
	suite.InDelta(4.0, value, 1e-9)
}

func (suite *SeriesTestSuite) TestConfigValidation() {
	rsi := NewRSI()
	suite.NoError(rsi.Config(21))
	suite.Error(rsi.Config())
	suite.Error(rsi.Config("invalid"))
	suite.Error(rsi.Config(0))

	vol := NewVolatility(20)
	suite.Error(vol.Config(1))
}
