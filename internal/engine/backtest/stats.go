package backtest

import (
	"math"
	"sort"

	"SignalPull/internal/domain/models"
	"SignalPull/internal/domain/repository"
)

// profitFactorCap bounds the factor when there are no losing trades.
// encoding/json rejects Inf.
const profitFactorCap = 1e9

// summarize folds the equity curve and trade ledger into result statistics.
func summarize(symbol string, tf repository.Timeframe, trades []models.BacktestTrade, equity []float64, cfg models.BacktestConfig, candles []models.Candle) *models.BacktestResult {
	result := &models.BacktestResult{
		Symbol:         symbol,
		Timeframe:      string(tf),
		Trades:         trades,
		TotalTrades:    len(trades),
		InitialCapital: cfg.InitialCapital,
		FinalCapital:   cfg.InitialCapital,
		StartDate:      candles[0].Bucket,
		EndDate:        candles[len(candles)-1].Bucket,
	}
	if len(equity) > 0 {
		result.FinalCapital = equity[len(equity)-1]
	}
	if cfg.InitialCapital > 0 {
		result.TotalReturn = result.FinalCapital/cfg.InitialCapital - 1
	}

	wins := 0
	grossWin, grossLoss := 0.0, 0.0
	sumTradeReturn := 0.0
	for _, t := range trades {
		sumTradeReturn += t.Return
		if t.PnL > 0 {
			wins++
			grossWin += t.PnL
		} else {
			grossLoss += -t.PnL
		}
	}
	if len(trades) > 0 {
		result.WinRate = float64(wins) / float64(len(trades))
		result.AvgTradeReturn = sumTradeReturn / float64(len(trades))
	}
	switch {
	case grossLoss > 0:
		result.ProfitFactor = math.Min(grossWin/grossLoss, profitFactorCap)
	case grossWin > 0:
		result.ProfitFactor = profitFactorCap
	}

	returns := barReturns(equity)
	annual := math.Sqrt(float64(tf.BarsPerYear()))
	mean, std := meanStd(returns)
	result.Volatility = std * annual
	if std > 0 {
		result.SharpeRatio = mean / std * annual
	}
	if dd := downsideDeviation(returns); dd > 0 {
		result.SortinoRatio = mean / dd * annual
	}
	result.MaxDrawdown = maxDrawdown(equity)
	result.VaR95 = valueAtRisk(returns, 0.95)
	return result
}

// barReturns converts the equity curve to simple per-bar returns.
func barReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, equity[i]/equity[i-1]-1)
	}
	return out
}

func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	sum2 := 0.0
	for _, x := range xs {
		d := x - mean
		sum2 += d * d
	}
	return mean, math.Sqrt(sum2 / float64(len(xs)-1))
}

// downsideDeviation is the root mean square of negative returns only.
func downsideDeviation(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum2 := 0.0
	for _, x := range xs {
		if x < 0 {
			sum2 += x * x
		}
	}
	return math.Sqrt(sum2 / float64(len(xs)))
}

// maxDrawdown is the largest peak-to-trough fraction lost on the curve.
func maxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// valueAtRisk returns the loss quantile of the per-bar return distribution:
// at confidence 0.95 the 5th percentile return.
func valueAtRisk(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	idx := int(math.Floor(float64(len(sorted)) * (1 - confidence)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
