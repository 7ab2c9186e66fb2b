package models

import "time"

// Candle represents an OHLCV record for feature engineering, training and backtesting.
type Candle struct {
	Bucket time.Time
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Return is the simple close-over-open return of the bar.
func (c Candle) Return() float64 {
	if c.Open <= 0 {
		return 0
	}
	return (c.Close - c.Open) / c.Open
}
