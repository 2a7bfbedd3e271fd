package types

// IndicatorType identifies a technical indicator feature.
type IndicatorType string

const (
	IndicatorTypeRSI        IndicatorType = "rsi"
	IndicatorTypeMA         IndicatorType = "ma"
	IndicatorTypeVolatility IndicatorType = "volatility"
)

// IndicatorRow is a per-asset snapshot of technical indicators, the input
// to signal scoring. Values are already computed; the scorer never reaches
// back into price history.
type IndicatorRow struct {
	// AssetID is the unique identifier of the asset.
	AssetID string `json:"asset_id"`
	// RSI14 is the 14-period Relative Strength Index, expected in [0, 100].
	RSI14 float64 `json:"rsi_14"`
	// MAShort is the short-window (20 period) moving average of the close.
	MAShort float64 `json:"ma_20"`
	// MALong is the long-window (50 period) moving average of the close.
	MALong float64 `json:"ma_50"`
	// Price is the current (latest close) price.
	Price float64 `json:"current_price"`
	// Volatility20 is the annualized 20-period volatility of returns.
	Volatility20 float64 `json:"volatility_20"`
	// Volume is the latest traded volume.
	Volume float64 `json:"volume"`
}
