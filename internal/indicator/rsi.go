package indicator

import (
	"math"

	"github.com/openquant/momentum-pipeline/internal/types"
	"github.com/openquant/momentum-pipeline/pkg/errors"
)

// RSI represents the Relative Strength Index indicator.
// It uses plain rolling-mean averages of gains and losses, not Wilder's
// smoothing, so values depend only on the trailing window.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator with the default 14 period.
func NewRSI() *RSI {
	return &RSI{
		period: 14,
	}
}

// Name returns the name of the indicator.
func (r *RSI) Name() types.IndicatorType {
	return types.IndicatorTypeRSI
}

// Config configures the RSI indicator. Expected parameters: period (int).
func (r *RSI) Config(params ...any) error {
	if len(params) != 1 {
		return errors.New(errors.ErrCodeMissingParameter, "Config expects 1 parameter: period (int)")
	}

	period, ok := params[0].(int)
	if !ok {
		return errors.New(errors.ErrCodeInvalidParameter, "invalid type for period parameter, expected int")
	}

	if period <= 0 {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	r.period = period

	return nil
}

// Latest returns the most recent RSI value of the series.
func (r *RSI) Latest(closes []float64) (float64, error) {
	if len(closes) < r.period+1 {
		return 0, errors.NewInsufficientDataErrorf(r.period+1, len(closes), "",
			"RSI(%d) requires %d closes, got %d", r.period, r.period+1, len(closes))
	}

	series := RSISeries(closes, r.period)

	return series[len(series)-1], nil
}

// RSISeries computes the RSI over a close-price series.
//
//	RSI = 100 - (100 / (1 + RS)), RS = avg gain / avg loss
//
// Positions with fewer than period price changes behind them are NaN.
// A window with zero average loss yields 100 (uninterrupted uptrend);
// a completely flat window yields NaN since RS is undefined.
func RSISeries(closes []float64, period int) []float64 {
	series := make([]float64, len(closes))
	for i := range series {
		series[i] = math.NaN()
	}

	if period <= 0 || len(closes) < period+1 {
		return series
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))

	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	for i := period; i < len(closes); i++ {
		avgGain := 0.0
		avgLoss := 0.0

		for j := i - period + 1; j <= i; j++ {
			avgGain += gains[j]
			avgLoss += losses[j]
		}

		avgGain /= float64(period)
		avgLoss /= float64(period)

		switch {
		case avgLoss == 0 && avgGain == 0:
			// flat window, RS undefined
		case avgLoss == 0:
			series[i] = 100
		default:
			rs := avgGain / avgLoss
			series[i] = 100 - (100 / (1 + rs))
		}
	}

	return series
}
