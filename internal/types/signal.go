package types

import "time"

// SignalType is the trading recommendation produced by the scorer.
type SignalType string

const (
	// SignalTypeBuy recommends opening or increasing a long position.
	SignalTypeBuy SignalType = "BUY"
	// SignalTypeSell recommends closing or shorting the position.
	SignalTypeSell SignalType = "SELL"
	// SignalTypeHold recommends taking no action.
	SignalTypeHold SignalType = "HOLD"
)

// SignalResult is the outcome of scoring one IndicatorRow.
type SignalResult struct {
	// AssetID is the asset the signal applies to.
	AssetID string `json:"asset_id"`
	// Signal is the trading recommendation.
	Signal SignalType `json:"signal"`
	// Strength is the winning side's accumulated rule score, rounded to
	// 4 decimal places. It ranks conviction; it is not a probability.
	Strength float64 `json:"signal_strength"`
	// PositionSize is the recommended position size as a fraction of
	// notional. Non-zero only when Signal is BUY.
	PositionSize float64 `json:"position_size"`
	// Reasoning is the human-readable rule explanations joined in rule
	// order (RSI, trend, crossover).
	Reasoning string `json:"reasoning"`
}

// ScoredSignal is a SignalResult annotated for persistence: which strategy
// version produced it, when, and in which scoring run.
type ScoredSignal struct {
	SignalResult
	// Timestamp is when the scoring run produced this signal.
	Timestamp time.Time `json:"signal_timestamp"`
	// StrategyVersion is the registry version of the strategy used.
	StrategyVersion string `json:"strategy_version"`
	// RunID uniquely identifies the scoring run.
	RunID string `json:"run_id"`
}
