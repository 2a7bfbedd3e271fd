package indicator

import (
	"math"

	"github.com/openquant/momentum-pipeline/internal/types"
	"github.com/openquant/momentum-pipeline/pkg/errors"
)

// tradingDaysPerYear annualizes daily return volatility.
const tradingDaysPerYear = 252

// Volatility implements rolling volatility: the sample standard deviation
// of simple returns over a trailing window, annualized.
type Volatility struct {
	window int
}

// NewVolatility creates a new Volatility indicator with the given window.
func NewVolatility(window int) *Volatility {
	return &Volatility{
		window: window,
	}
}

// Name returns the name of the indicator.
func (v *Volatility) Name() types.IndicatorType {
	return types.IndicatorTypeVolatility
}

// Config configures the Volatility indicator. Expected parameters: window (int).
func (v *Volatility) Config(params ...any) error {
	if len(params) != 1 {
		return errors.New(errors.ErrCodeMissingParameter, "Config expects 1 parameter: window (int)")
	}

	window, ok := params[0].(int)
	if !ok {
		return errors.New(errors.ErrCodeInvalidParameter, "invalid type for window parameter, expected int")
	}

	if window <= 1 {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "window must be greater than 1, got %d", window)
	}

	v.window = window

	return nil
}

// Latest returns the most recent annualized volatility value of the series.
func (v *Volatility) Latest(closes []float64) (float64, error) {
	if len(closes) < v.window+1 {
		return 0, errors.NewInsufficientDataErrorf(v.window+1, len(closes), "",
			"Volatility(%d) requires %d closes, got %d", v.window, v.window+1, len(closes))
	}

	series := VolatilitySeries(closes, v.window)

	return series[len(series)-1], nil
}

// VolatilitySeries computes annualized rolling volatility over a close-price
// series. Returns are simple percentage changes; the standard deviation uses
// the sample (n-1) denominator. Positions with fewer than window returns
// behind them are NaN.
func VolatilitySeries(closes []float64, window int) []float64 {
	series := make([]float64, len(closes))
	for i := range series {
		series[i] = math.NaN()
	}

	if window <= 1 || len(closes) < window+1 {
		return series
	}

	returns := make([]float64, len(closes))
	returns[0] = math.NaN()

	for i := 1; i < len(closes); i++ {
		returns[i] = closes[i]/closes[i-1] - 1
	}

	for i := window; i < len(closes); i++ {
		mean := 0.0
		for j := i - window + 1; j <= i; j++ {
			mean += returns[j]
		}

		mean /= float64(window)

		variance := 0.0
		for j := i - window + 1; j <= i; j++ {
			diff := returns[j] - mean
			variance += diff * diff
		}

		variance /= float64(window - 1)

		series[i] = math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
	}

	return series
}
