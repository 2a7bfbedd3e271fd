package indicator

import (
	"math"

	"github.com/openquant/momentum-pipeline/internal/types"
	"github.com/openquant/momentum-pipeline/pkg/errors"
)

// MA implements the simple moving average of closing prices.
type MA struct {
	window int
}

// NewMA creates a new MA indicator with the given window.
func NewMA(window int) *MA {
	return &MA{
		window: window,
	}
}

// Name returns the name of the indicator.
func (m *MA) Name() types.IndicatorType {
	return types.IndicatorTypeMA
}

// Config configures the MA indicator. Expected parameters: window (int).
func (m *MA) Config(params ...any) error {
	if len(params) != 1 {
		return errors.New(errors.ErrCodeMissingParameter, "Config expects 1 parameter: window (int)")
	}

	window, ok := params[0].(int)
	if !ok {
		return errors.New(errors.ErrCodeInvalidParameter, "invalid type for window parameter, expected int")
	}

	if window <= 0 {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "window must be a positive integer, got %d", window)
	}

	m.window = window

	return nil
}

// Latest returns the most recent moving average value of the series.
func (m *MA) Latest(closes []float64) (float64, error) {
	if len(closes) < m.window {
		return 0, errors.NewInsufficientDataErrorf(m.window, len(closes), "",
			"MA(%d) requires %d closes, got %d", m.window, m.window, len(closes))
	}

	series := SMASeries(closes, m.window)

	return series[len(series)-1], nil
}

// SMASeries computes the simple moving average over a close-price series.
// Positions with fewer than window values behind them are NaN.
func SMASeries(closes []float64, window int) []float64 {
	series := make([]float64, len(closes))
	for i := range series {
		series[i] = math.NaN()
	}

	if window <= 0 || len(closes) < window {
		return series
	}

	sum := 0.0

	for i, close := range closes {
		sum += close

		if i >= window {
			sum -= closes[i-window]
		}

		if i >= window-1 {
			series[i] = sum / float64(window)
		}
	}

	return series
}
