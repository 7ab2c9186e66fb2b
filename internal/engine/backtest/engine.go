// Package backtest replays history through a predictor, walk-forward: at
// each bar the predictor sees only candles that precede it. The simulated
// ledger charges fees and slippage on every fill.
package backtest

import (
	"context"

	"github.com/google/uuid"

	"SignalPull/internal/domain/models"
	"SignalPull/internal/domain/repository"
	"SignalPull/internal/domain/service"
	"SignalPull/internal/engine/core"
	"SignalPull/pkg/logger"
)

// WarmupBars is how much history the predictor sees before the first
// simulated decision.
const WarmupBars = 100

const (
	defaultFeeRate      = 0.001
	defaultSlippageRate = 0.0005
	defaultCapital      = 10000
	defaultPositionSize = 0.95
	defaultThreshold    = 0.45
)

// Engine runs walk-forward simulations. Stateless between runs.
type Engine struct {
	log     *logger.Logger
	metrics repository.Metrics
}

// NewEngine builds a backtest engine.
func NewEngine(log *logger.Logger, metrics repository.Metrics) *Engine {
	return &Engine{log: log, metrics: metrics}
}

// position is the open leg of a round trip during simulation.
type position struct {
	side       string
	entryTime  int // candle index
	entryPrice float64
	quantity   float64
	allocated  float64
	confidence float64
}

// Run simulates the predictor over the candle history. Requires at least
// WarmupBars+1 candles. Candles must be ordered ascending by bucket time.
func (e *Engine) Run(ctx context.Context, symbol string, tf repository.Timeframe, candles []models.Candle, cfg models.BacktestConfig, predictor service.WindowPredictor) (*models.BacktestResult, error) {
	if len(candles) <= WarmupBars {
		return nil, &core.InsufficientDataError{Op: "backtest", Need: WarmupBars + 1, Got: len(candles)}
	}
	cfg = withDefaults(cfg)

	capital := cfg.InitialCapital
	var open *position
	trades := make([]models.BacktestTrade, 0, 64)
	equity := make([]float64, 0, len(candles)-WarmupBars)
	dirHits, dirTotal := 0, 0

	for i := WarmupBars; i < len(candles); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar := candles[i]

		res, err := predictor.PredictWindow(ctx, symbol, candles[i-WarmupBars:i])
		if err != nil {
			return nil, err
		}

		want := "" // "", "LONG" or "SHORT"
		if res.Confidence >= cfg.ConfidenceThreshold {
			switch res.Class {
			case "BULL":
				want = "LONG"
			case "BEAR":
				want = "SHORT"
			}
		}

		if i+1 < len(candles) && res.Class != "NEUTRAL" {
			dirTotal++
			next := candles[i+1]
			if (res.Class == "BULL" && next.Close > bar.Close) ||
				(res.Class == "BEAR" && next.Close < bar.Close) {
				dirHits++
			}
		}

		if open != nil && open.side != want {
			capital += e.close(&trades, open, symbol, candles, i, bar.Close, cfg)
			open = nil
		}
		if open == nil && want != "" {
			open = e.open(want, capital, i, bar.Close, res.Confidence, cfg)
			if open != nil {
				capital -= open.allocated
			}
		}

		equity = append(equity, capital+markToMarket(open, bar.Close))
	}

	if open != nil {
		last := len(candles) - 1
		capital += e.close(&trades, open, symbol, candles, last, candles[last].Close, cfg)
		if len(equity) > 0 {
			equity[len(equity)-1] = capital
		}
	}

	result := summarize(symbol, tf, trades, equity, cfg, candles)
	if dirTotal > 0 {
		result.DirectionalAccuracy = float64(dirHits) / float64(dirTotal)
	}

	e.metrics.RecordBacktest(symbol, result.SharpeRatio, result.WinRate)
	e.log.Info("backtest complete",
		logger.String("symbol", symbol),
		logger.Int("trades", result.TotalTrades),
		logger.Any("sharpe", result.SharpeRatio),
		logger.Any("total_return", result.TotalReturn),
	)
	return result, nil
}

// open sizes a position as a fraction of current equity and charges entry
// slippage plus fee. Returns nil when equity cannot fund a position.
func (e *Engine) open(side string, capital float64, idx int, price, confidence float64, cfg models.BacktestConfig) *position {
	allocated := capital * cfg.MaxPositionSize
	if allocated <= 0 || price <= 0 {
		return nil
	}
	fill := price * (1 + cfg.SlippageRate)
	if side == "SHORT" {
		fill = price * (1 - cfg.SlippageRate)
	}
	qty := allocated * (1 - cfg.FeeRate) / fill
	return &position{
		side:       side,
		entryTime:  idx,
		entryPrice: fill,
		quantity:   qty,
		allocated:  allocated,
		confidence: confidence,
	}
}

// close realizes a round trip and appends the trade. Returns the capital
// released back to the ledger.
func (e *Engine) close(trades *[]models.BacktestTrade, p *position, symbol string, candles []models.Candle, idx int, price float64, cfg models.BacktestConfig) float64 {
	fill := price * (1 - cfg.SlippageRate)
	if p.side == "SHORT" {
		fill = price * (1 + cfg.SlippageRate)
	}

	gross := p.quantity * (fill - p.entryPrice)
	if p.side == "SHORT" {
		gross = p.quantity * (p.entryPrice - fill)
	}
	fee := p.quantity * fill * cfg.FeeRate
	pnl := gross - fee

	*trades = append(*trades, models.BacktestTrade{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       p.side,
		EntryTime:  candles[p.entryTime].Bucket,
		ExitTime:   candles[idx].Bucket,
		EntryPrice: p.entryPrice,
		ExitPrice:  fill,
		Quantity:   p.quantity,
		PnL:        pnl,
		Return:     pnl / p.allocated,
		Confidence: p.confidence,
	})
	return p.allocated + pnl
}

// markToMarket values an open position at the current close.
func markToMarket(p *position, price float64) float64 {
	if p == nil {
		return 0
	}
	if p.side == "SHORT" {
		return p.allocated + p.quantity*(p.entryPrice-price)
	}
	return p.allocated + p.quantity*(price-p.entryPrice)
}

func withDefaults(cfg models.BacktestConfig) models.BacktestConfig {
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = defaultCapital
	}
	if cfg.FeeRate <= 0 {
		cfg.FeeRate = defaultFeeRate
	}
	if cfg.SlippageRate <= 0 {
		cfg.SlippageRate = defaultSlippageRate
	}
	if cfg.MaxPositionSize <= 0 || cfg.MaxPositionSize > 1 {
		cfg.MaxPositionSize = defaultPositionSize
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = defaultThreshold
	}
	return cfg
}
