package models

// Requests for engine HTTP endpoints. Defined in domain for consistency and reuse.

type InitializeRequest struct {
	Symbol       string `json:"symbol" validate:"required"`
	Architecture string `json:"architecture" default:"dense" validate:"oneof=dense lstm cnn attention hybrid"`
	HiddenSizes  []int  `json:"hidden_sizes" validate:"omitempty,dive,gte=1,lte=4096"`
	OutputSize   int    `json:"output_size" default:"3" validate:"gte=2,lte=3"`
	Rebuild      bool   `json:"rebuild"`
}

type TrainRequest struct {
	Symbol string `json:"symbol" validate:"required"`
	Epoch  bool   `json:"epoch"`
}

type PredictRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	N      int    `query:"n" json:"n" default:"120" validate:"gte=20,lte=5000"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"oneof=1m 5m 15m 1h 4h 1d"`
}

type BacktestRequest struct {
	Symbol              string  `json:"symbol" validate:"required"`
	TF                  string  `json:"tf" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	Bars                int     `json:"bars" default:"500" validate:"gte=100,lte=50000"`
	Async               bool    `json:"async"`
	InitialCapital      float64 `json:"initial_capital" default:"10000" validate:"gt=0"`
	FeeRate             float64 `json:"fee_rate" default:"0.001" validate:"gte=0,lte=0.05"`
	SlippageRate        float64 `json:"slippage_rate" default:"0.0005" validate:"gte=0,lte=0.05"`
	MaxPositionSize     float64 `json:"max_position_size" default:"0.95" validate:"gt=0,lte=1"`
	ConfidenceThreshold float64 `json:"confidence_threshold" default:"0.45" validate:"gte=0,lte=1"`
}

func (r BacktestRequest) Config() BacktestConfig {
	return BacktestConfig{
		InitialCapital:      r.InitialCapital,
		FeeRate:             r.FeeRate,
		SlippageRate:        r.SlippageRate,
		MaxPositionSize:     r.MaxPositionSize,
		ConfidenceThreshold: r.ConfidenceThreshold,
	}
}

type SchedulerRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type SchedulerConfigRequest struct {
	Symbol            string  `json:"symbol" validate:"required"`
	IntervalSeconds   int     `json:"interval_seconds" default:"300" validate:"gte=10,lte=86400"`
	AccuracyThreshold float64 `json:"accuracy_threshold" default:"0.55" validate:"gte=0,lte=1"`
	MinSamples        int     `json:"min_samples" default:"10" validate:"gte=1,lte=10000"`
	HistoryLimit      int     `json:"history_limit" default:"50" validate:"gte=1,lte=1000"`
}

type AccuracyRequest struct {
	Symbol        string `query:"symbol" json:"symbol" validate:"required"`
	TF            string `query:"tf" json:"tf" default:"1m" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	LookbackHours int    `query:"lookback_hours" json:"lookback_hours" default:"24" validate:"gte=1,lte=720"`
}

type CandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	Limit  int    `query:"limit" json:"limit" default:"1000" validate:"gte=1,lte=50000"`
}
