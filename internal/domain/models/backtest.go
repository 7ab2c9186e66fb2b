package models

import "time"

// BacktestConfig controls a walk-forward simulation run.
type BacktestConfig struct {
	StartDate           time.Time `json:"start_date"`
	EndDate             time.Time `json:"end_date"`
	InitialCapital      float64   `json:"initial_capital"`
	FeeRate             float64   `json:"fee_rate"`
	SlippageRate        float64   `json:"slippage_rate"`
	MaxPositionSize     float64   `json:"max_position_size"`     // fraction of equity per trade
	ConfidenceThreshold float64   `json:"confidence_threshold"`  // min confidence to open
}

// BacktestTrade is one closed round trip in the simulated ledger.
type BacktestTrade struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"` // "LONG" or "SHORT"
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Quantity   float64   `json:"quantity"`
	PnL        float64   `json:"pnl"`
	Return     float64   `json:"return"` // net return on allocated capital
	Confidence float64   `json:"confidence"`
}

// BacktestResult is produced once per run and read-only thereafter.
// Trades are ordered ascending by EntryTime.
type BacktestResult struct {
	Symbol              string          `json:"symbol"`
	Timeframe           string          `json:"timeframe"`
	Trades              []BacktestTrade `json:"trades"`
	TotalTrades         int             `json:"total_trades"`
	WinRate             float64         `json:"win_rate"`
	SharpeRatio         float64         `json:"sharpe_ratio"`
	SortinoRatio        float64         `json:"sortino_ratio"`
	MaxDrawdown         float64         `json:"max_drawdown"`
	DirectionalAccuracy float64         `json:"directional_accuracy"`
	ProfitFactor        float64         `json:"profit_factor"`
	VaR95               float64         `json:"var_95"`
	TotalReturn         float64         `json:"total_return"`
	Volatility          float64         `json:"volatility"`
	AvgTradeReturn      float64         `json:"avg_trade_return"`
	InitialCapital      float64         `json:"initial_capital"`
	FinalCapital        float64         `json:"final_capital"`
	StartDate           time.Time       `json:"start_date"`
	EndDate             time.Time       `json:"end_date"`
}
