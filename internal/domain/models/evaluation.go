package models

import "time"

// ConfusionMatrix accumulates directional prediction outcomes over an
// evaluation window. A bullish prediction is treated as the positive class.
type ConfusionMatrix struct {
	TruePositive  int `json:"true_positive"`
	TrueNegative  int `json:"true_negative"`
	FalsePositive int `json:"false_positive"`
	FalseNegative int `json:"false_negative"`
}

// Total returns the number of counted outcomes.
func (m ConfusionMatrix) Total() int {
	return m.TruePositive + m.TrueNegative + m.FalsePositive + m.FalseNegative
}

// AccuracyReport summarizes a sliding-window model evaluation.
type AccuracyReport struct {
	Symbol                 string          `json:"symbol"`
	Confusion              ConfusionMatrix `json:"confusion"`
	DirectionalAccuracy    float64         `json:"directional_accuracy"`
	ClassificationAccuracy float64         `json:"classification_accuracy"`
	Precision              float64         `json:"precision"`
	Recall                 float64         `json:"recall"`
	F1Score                float64         `json:"f1_score"`
	MSE                    float64         `json:"mse"`
	Samples                int             `json:"samples"`
	EvaluatedAt            time.Time       `json:"evaluated_at"`
}
