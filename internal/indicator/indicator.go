// Package indicator computes the technical indicator features consumed by
// the momentum strategy: RSI, simple moving averages, and rolling
// volatility. Series functions mirror rolling-window semantics: positions
// without enough history are NaN, and callers decide how to coalesce them.
package indicator

import "github.com/openquant/momentum-pipeline/internal/types"

// Computer defines methods that any technical indicator feature must implement.
type Computer interface {
	// Name returns the name of the indicator.
	Name() types.IndicatorType
	// Config configures the indicator with implementation-specific parameters.
	Config(params ...any) error
	// Latest returns the most recent indicator value for a close-price
	// series. Returns InsufficientDataError if the series is too short.
	Latest(closes []float64) (float64, error)
}
