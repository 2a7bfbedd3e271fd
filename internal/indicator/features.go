package indicator

import (
	"math"
	"sort"

	"github.com/openquant/momentum-pipeline/internal/types"
	"github.com/openquant/momentum-pipeline/pkg/errors"
)

// FeatureParams holds the windows used to assemble indicator rows.
type FeatureParams struct {
	RSIPeriod        int
	ShortWindow      int
	LongWindow       int
	VolatilityWindow int
}

// DefaultFeatureParams returns the standard windows: RSI 14, MAs 20/50,
// volatility 20.
func DefaultFeatureParams() FeatureParams {
	return FeatureParams{
		RSIPeriod:        14,
		ShortWindow:      20,
		LongWindow:       50,
		VolatilityWindow: 20,
	}
}

// newFeatureRegistry builds the registry of computers backing the feature
// view. Window validation happens through each computer's Config.
func newFeatureRegistry() (Registry, error) {
	registry := NewRegistry()

	for _, computer := range []Computer{NewRSI(), NewMA(1), NewVolatility(2)} {
		if err := registry.Register(computer); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// BuildIndicatorRows groups price bars per asset and assembles one
// IndicatorRow per asset from the latest indicator values, resolved through
// the indicator registry. Assets with too little history for an indicator
// get coalesced defaults rather than an error: RSI falls back to neutral
// 50, moving averages to the current price, volatility to 0. Bars within an
// asset must be in chronological order; assets are emitted in sorted order
// for deterministic output.
func BuildIndicatorRows(bars []types.PriceBar, params FeatureParams) ([]types.IndicatorRow, error) {
	registry, err := newFeatureRegistry()
	if err != nil {
		return nil, err
	}

	rsi, err := registry.Get(types.IndicatorTypeRSI)
	if err != nil {
		return nil, err
	}

	ma, err := registry.Get(types.IndicatorTypeMA)
	if err != nil {
		return nil, err
	}

	volatility, err := registry.Get(types.IndicatorTypeVolatility)
	if err != nil {
		return nil, err
	}

	if err := rsi.Config(params.RSIPeriod); err != nil {
		return nil, err
	}

	if err := volatility.Config(params.VolatilityWindow); err != nil {
		return nil, err
	}

	// The MA computer is reconfigured per window below; validate both
	// windows up front so a bad long window fails before any scoring.
	for _, window := range []int{params.ShortWindow, params.LongWindow} {
		if err := ma.Config(window); err != nil {
			return nil, err
		}
	}

	closesByAsset := make(map[string][]float64)
	volumeByAsset := make(map[string]float64)

	for _, bar := range bars {
		if bar.AssetID == "" {
			return nil, errors.New(errors.ErrCodeMissingAssetID, "price bar with empty asset id")
		}

		closesByAsset[bar.AssetID] = append(closesByAsset[bar.AssetID], bar.Close)
		volumeByAsset[bar.AssetID] = bar.Volume
	}

	assetIDs := make([]string, 0, len(closesByAsset))
	for assetID := range closesByAsset {
		assetIDs = append(assetIDs, assetID)
	}

	sort.Strings(assetIDs)

	rows := make([]types.IndicatorRow, 0, len(assetIDs))

	for _, assetID := range assetIDs {
		closes := closesByAsset[assetID]
		price := closes[len(closes)-1]

		rsiValue, err := latestOrDefault(rsi, closes, 50)
		if err != nil {
			return nil, err
		}

		if err := ma.Config(params.ShortWindow); err != nil {
			return nil, err
		}

		maShort, err := latestOrDefault(ma, closes, price)
		if err != nil {
			return nil, err
		}

		if err := ma.Config(params.LongWindow); err != nil {
			return nil, err
		}

		maLong, err := latestOrDefault(ma, closes, price)
		if err != nil {
			return nil, err
		}

		volatilityValue, err := latestOrDefault(volatility, closes, 0)
		if err != nil {
			return nil, err
		}

		rows = append(rows, types.IndicatorRow{
			AssetID:      assetID,
			RSI14:        rsiValue,
			MAShort:      maShort,
			MALong:       maLong,
			Price:        price,
			Volatility20: volatilityValue,
			Volume:       volumeByAsset[assetID],
		})
	}

	return rows, nil
}

// latestOrDefault resolves the latest indicator value, substituting the
// fallback when the series is too short or the value is undefined (NaN).
func latestOrDefault(computer Computer, closes []float64, fallback float64) (float64, error) {
	value, err := computer.Latest(closes)
	if err != nil {
		if errors.IsInsufficientDataError(err) {
			return fallback, nil
		}

		return 0, err
	}

	if math.IsNaN(value) {
		return fallback, nil
	}

	return value, nil
}
