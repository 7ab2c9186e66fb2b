// Package features turns ordered OHLCV windows into fixed-length numeric
// vectors consumed by the network. The vector layout is stable: heuristic
// prediction and model training both address features by index.
package features

import (
	"math"

	"SignalPull/internal/domain/models"
	"SignalPull/internal/engine/core"

	talib "github.com/markcheno/go-talib"
)

// MinWindow is the minimum number of bars required for stable statistics.
const MinWindow = 20

// FeatureCount is the fixed output vector length.
const FeatureCount = 16

// Feature vector indices. The heuristic predictor reads RSI and the moving
// average ratios directly from the extracted vector.
const (
	IdxPriceChange = iota
	IdxHLRange
	IdxClosePosition
	IdxLogVolume
	IdxRSI
	IdxMACD
	IdxMACDHist
	IdxBBPosition
	IdxSMA20Ratio
	IdxSMA50Ratio
	IdxReturn1
	IdxReturn5
	IdxVolatility
	IdxATR
	IdxStructure
	IdxRangePosition
)

const (
	rsiPeriod  = 14
	atrPeriod  = 14
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
	bbPeriod   = 20
)

// ExtractAll maps an ordered OHLCV window to a FeatureCount-length vector.
// Fails when the window is shorter than MinWindow. Indicators that need a
// longer lookback than the window provides degrade to neutral values.
func ExtractAll(candles []models.Candle) ([]float64, error) {
	n := len(candles)
	if n < MinWindow {
		return nil, &core.InsufficientDataError{Op: "extract_features", Need: MinWindow, Got: n}
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}
	last := candles[n-1]

	out := make([]float64, FeatureCount)

	if last.Open > 0 {
		out[IdxPriceChange] = (last.Close - last.Open) / last.Open
	}
	if last.Close > 0 {
		out[IdxHLRange] = (last.High - last.Low) / last.Close
	}
	if hl := last.High - last.Low; hl > 0 {
		out[IdxClosePosition] = (last.Close - last.Low) / hl
	} else {
		out[IdxClosePosition] = 0.5
	}
	out[IdxLogVolume] = math.Log1p(last.Volume) / 20

	rsi := talib.Rsi(closes, rsiPeriod)
	out[IdxRSI] = rsi[n-1] / 100

	if n > macdSlow+macdSignal {
		macd, _, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)
		if last.Close > 0 {
			out[IdxMACD] = math.Tanh(100 * macd[n-1] / last.Close)
			out[IdxMACDHist] = math.Tanh(100 * hist[n-1] / last.Close)
		}
	}

	upper, _, lower := talib.BBands(closes, bbPeriod, 2, 2, talib.SMA)
	if band := upper[n-1] - lower[n-1]; band > 0 {
		out[IdxBBPosition] = (last.Close - lower[n-1]) / band
	} else {
		out[IdxBBPosition] = 0.5
	}

	out[IdxSMA20Ratio] = smaRatio(closes, 20, last.Close)
	out[IdxSMA50Ratio] = smaRatio(closes, 50, last.Close)

	rets := ComputeLogReturns(candles)
	out[IdxReturn1] = lastOrZero(rets)
	out[IdxReturn5] = sumTail(rets, 5)
	out[IdxVolatility] = RollingVolatility(rets, minInt(MinWindow, len(rets)))

	atr := talib.Atr(highs, lows, closes, atrPeriod)
	if last.Close > 0 {
		out[IdxATR] = atr[n-1] / last.Close
	}

	out[IdxStructure] = structureTrend(candles)
	out[IdxRangePosition] = rangePosition(candles)

	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = 0
		}
	}
	return out, nil
}

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(candles)-1, or nil if insufficient data.
func ComputeLogReturns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		cur := candles[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RollingVolatility computes the sample standard deviation of the latest
// `window` log returns.
func RollingVolatility(logReturns []float64, window int) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// smaRatio returns close/SMA - 1, falling back to the full-window mean when
// the window is shorter than the requested period.
func smaRatio(closes []float64, period int, close float64) float64 {
	n := len(closes)
	if n < period {
		period = n
	}
	sma := talib.Sma(closes, period)
	v := sma[n-1]
	if v <= 0 {
		return 0
	}
	return close/v - 1
}

// structureTrend compares the swing extremes of the latest 10 bars against
// the preceding 10: +1 for higher highs and higher lows, -1 for lower highs
// and lower lows, 0 for a mixed structure.
func structureTrend(candles []models.Candle) float64 {
	n := len(candles)
	if n < 20 {
		return 0
	}
	prevHigh, prevLow := extremes(candles[n-20 : n-10])
	curHigh, curLow := extremes(candles[n-10:])
	switch {
	case curHigh > prevHigh && curLow > prevLow:
		return 1
	case curHigh < prevHigh && curLow < prevLow:
		return -1
	default:
		return 0
	}
}

// rangePosition places the last close inside the window's full high-low range.
func rangePosition(candles []models.Candle) float64 {
	high, low := extremes(candles)
	if high <= low {
		return 0.5
	}
	return (candles[len(candles)-1].Close - low) / (high - low)
}

func extremes(candles []models.Candle) (high, low float64) {
	high = candles[0].High
	low = candles[0].Low
	for _, c := range candles[1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	return high, low
}

func lastOrZero(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return xs[len(xs)-1]
}

func sumTail(xs []float64, n int) float64 {
	if len(xs) < n {
		n = len(xs)
	}
	s := 0.0
	for i := len(xs) - n; i < len(xs); i++ {
		s += xs[i]
	}
	return s
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
