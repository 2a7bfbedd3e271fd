// Package momentum implements the rule-based momentum signal scorer: a
// deterministic mapping from one row of technical indicators to a trading
// recommendation. The scorer holds no state beyond its configuration and
// performs no I/O, so it may be invoked concurrently without coordination.
package momentum

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/openquant/momentum-pipeline/internal/types"
	"github.com/openquant/momentum-pipeline/pkg/errors"
)

// StrategyName is the name under which the strategy registers in the model
// registry.
const StrategyName = "momentum"

// Rule weights. Each rule contributes to exactly one side of the score.
const (
	rsiRuleWeight       = 0.4
	trendRuleWeight     = 0.3
	weakTrendRuleWeight = 0.15
	crossoverRuleWeight = 0.2

	// minActionableScore is the minimum winning score required to emit a
	// BUY or SELL instead of HOLD.
	minActionableScore = 0.5
)

// Strategy scores indicator rows with the momentum rules.
type Strategy struct {
	config Config
}

// New creates a Strategy from the given configuration. Zero-valued fields
// are filled with defaults before validation.
func New(config Config) (*Strategy, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Strategy{
		config: config,
	}, nil
}

// Config returns the configuration the strategy was built with.
func (s *Strategy) Config() Config {
	return s.config
}

// Evaluate scores a single indicator row.
//
// Three independent rules accumulate a buy score and a sell score: RSI
// oversold/overbought (0.4), price vs both moving averages (0.3 strong /
// 0.15 weak), and the MA crossover (0.2). The winning side becomes the
// signal when its score reaches 0.5; ties and weak scores fall through to
// HOLD with strength max(buy, sell). Position size is the configured
// fraction scaled by strength, and only for BUY.
func (s *Strategy) Evaluate(row types.IndicatorRow) (types.SignalResult, error) {
	if err := validateRow(row); err != nil {
		return types.SignalResult{}, err
	}

	reasons := make([]string, 0, 3)

	buyScore := 0.0
	sellScore := 0.0

	// RSI rule.
	switch {
	case row.RSI14 < s.config.RSIOversold:
		buyScore += rsiRuleWeight

		reasons = append(reasons, fmt.Sprintf("RSI=%.1f (oversold)", row.RSI14))
	case row.RSI14 > s.config.RSIOverbought:
		sellScore += rsiRuleWeight

		reasons = append(reasons, fmt.Sprintf("RSI=%.1f (overbought)", row.RSI14))
	default:
		reasons = append(reasons, fmt.Sprintf("RSI=%.1f (neutral)", row.RSI14))
	}

	// Trend rule: price against both moving averages. Exactly one branch
	// fires; equality falls to the bearish branch since comparisons are
	// strict.
	switch {
	case row.Price > row.MAShort && row.MAShort > row.MALong:
		buyScore += trendRuleWeight

		reasons = append(reasons, "Price > MA20 > MA50 (bullish trend)")
	case row.Price < row.MAShort && row.MAShort < row.MALong:
		sellScore += trendRuleWeight

		reasons = append(reasons, "Price < MA20 < MA50 (bearish trend)")
	case row.Price > row.MAShort:
		buyScore += weakTrendRuleWeight

		reasons = append(reasons, "Price > MA20 (short-term bullish)")
	default:
		sellScore += weakTrendRuleWeight

		reasons = append(reasons, "Price < MA20 (short-term bearish)")
	}

	// Crossover rule. Equal MAs count as a death cross since the
	// comparison is strict.
	if row.MAShort > row.MALong {
		buyScore += crossoverRuleWeight

		reasons = append(reasons, "Golden cross (MA20 > MA50)")
	} else {
		sellScore += crossoverRuleWeight

		reasons = append(reasons, "Death cross (MA20 < MA50)")
	}

	signal := types.SignalTypeHold
	strength := math.Max(buyScore, sellScore)

	switch {
	case buyScore > sellScore && buyScore >= minActionableScore:
		signal = types.SignalTypeBuy
		strength = buyScore
	case sellScore > buyScore && sellScore >= minActionableScore:
		signal = types.SignalTypeSell
		strength = sellScore
	}

	positionSize := 0.0
	if signal == types.SignalTypeBuy {
		positionSize = s.config.PositionSizePct * strength
	}

	return types.SignalResult{
		AssetID:      row.AssetID,
		Signal:       signal,
		Strength:     round4(strength),
		PositionSize: round4(positionSize),
		Reasoning:    strings.Join(reasons, "; "),
	}, nil
}

// Predict scores a batch of indicator rows sequentially, preserving input
// order. An empty batch yields an empty result.
func (s *Strategy) Predict(rows []types.IndicatorRow) ([]types.SignalResult, error) {
	results := make([]types.SignalResult, 0, len(rows))

	for i, row := range rows {
		result, err := s.Evaluate(row)
		if err != nil {
			return nil, fmt.Errorf("failed to score row %d (asset %q): %w", i, row.AssetID, err)
		}

		results = append(results, result)
	}

	return results, nil
}

// PredictParallel scores a batch concurrently with the given number of
// workers, preserving input order. Rows are independent, so the result is
// identical to Predict. The first row error cancels the remaining work.
func (s *Strategy) PredictParallel(ctx context.Context, rows []types.IndicatorRow, workers int) ([]types.SignalResult, error) {
	if len(rows) == 0 {
		return []types.SignalResult{}, nil
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	if workers > len(rows) {
		workers = len(rows)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]types.SignalResult, len(rows))
	indices := make(chan int)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range indices {
				result, err := s.Evaluate(rows[i])
				if err != nil {
					errOnce.Do(func() {
						firstErr = fmt.Errorf("failed to score row %d (asset %q): %w", i, rows[i].AssetID, err)

						cancel()
					})

					return
				}

				results[i] = result
			}
		}()
	}

feed:
	for i := range rows {
		select {
		case <-ctx.Done():
			break feed
		case indices <- i:
		}
	}

	close(indices)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// validateRow rejects malformed input instead of scoring it: NaN or
// infinite indicator values and missing asset ids are validation errors.
func validateRow(row types.IndicatorRow) error {
	if row.AssetID == "" {
		return errors.New(errors.ErrCodeMissingAssetID, "indicator row has empty asset id")
	}

	fields := map[string]float64{
		"rsi_14":        row.RSI14,
		"ma_20":         row.MAShort,
		"ma_50":         row.MALong,
		"current_price": row.Price,
	}

	for name, value := range fields {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return errors.Newf(errors.ErrCodeInvalidIndicatorValue,
				"indicator row for asset %q has non-finite %s: %v", row.AssetID, name, value)
		}
	}

	return nil
}

func round4(value float64) float64 {
	return decimal.NewFromFloat(value).Round(4).InexactFloat64()
}
