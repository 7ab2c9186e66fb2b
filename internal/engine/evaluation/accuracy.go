// Package evaluation scores emitted predictions against realized price
// action. Reports feed both the monitoring surface and the scheduler's
// retraining decision.
package evaluation

import (
	"math"
	"time"

	"SignalPull/internal/domain/models"
	"SignalPull/internal/engine/core"
)

// NeutralBand is the relative price move below which an outcome counts as
// flat rather than directional.
const NeutralBand = 0.001

// Sample pairs one emitted prediction with its realized outcome class.
type Sample struct {
	Predicted   models.Prediction
	ActualClass string
}

// OutcomeClass labels the realized move between prediction time and
// evaluation time.
func OutcomeClass(entryPrice, exitPrice float64) string {
	if entryPrice <= 0 {
		return "NEUTRAL"
	}
	ret := (exitPrice - entryPrice) / entryPrice
	switch {
	case ret > NeutralBand:
		return "BULL"
	case ret < -NeutralBand:
		return "BEAR"
	default:
		return "NEUTRAL"
	}
}

// MeasureModelAccuracy aggregates samples into an accuracy report. The
// confusion matrix counts directional calls only: a bull call on a bull
// outcome is a true positive, a bear call on a bear outcome a true
// negative. Neutral predictions and outcomes contribute to classification
// accuracy and MSE but not to the matrix.
func MeasureModelAccuracy(symbol string, samples []Sample) (*models.AccuracyReport, error) {
	if len(samples) == 0 {
		return nil, &core.InsufficientDataError{Op: "measure_accuracy", Need: 1, Got: 0}
	}

	var cm models.ConfusionMatrix
	classHits := 0
	dirHits, dirTotal := 0, 0
	sumSq := 0.0

	for _, s := range samples {
		predicted := s.Predicted.Class()
		if predicted == s.ActualClass {
			classHits++
		}

		actual := oneHot(s.ActualClass)
		vec := s.Predicted.Vector()
		for i, p := range vec {
			d := p - actual[i]
			sumSq += d * d
		}

		if s.ActualClass != "NEUTRAL" && predicted != "NEUTRAL" {
			dirTotal++
			if predicted == s.ActualClass {
				dirHits++
			}
		}
		switch {
		case predicted == "BULL" && s.ActualClass == "BULL":
			cm.TruePositive++
		case predicted == "BULL" && s.ActualClass == "BEAR":
			cm.FalsePositive++
		case predicted == "BEAR" && s.ActualClass == "BEAR":
			cm.TrueNegative++
		case predicted == "BEAR" && s.ActualClass == "BULL":
			cm.FalseNegative++
		}
	}

	report := &models.AccuracyReport{
		Symbol:                 symbol,
		Confusion:              cm,
		ClassificationAccuracy: float64(classHits) / float64(len(samples)),
		MSE:                    sumSq / float64(3*len(samples)),
		Samples:                len(samples),
		EvaluatedAt:            time.Now().UTC(),
	}
	if dirTotal > 0 {
		report.DirectionalAccuracy = float64(dirHits) / float64(dirTotal)
	}
	report.Precision, report.Recall, report.F1Score = CalculatePrecisionRecall(cm)
	return report, nil
}

// CalculatePrecisionRecall derives precision, recall and F1 from a
// confusion matrix. Empty denominators yield zero instead of NaN.
func CalculatePrecisionRecall(cm models.ConfusionMatrix) (precision, recall, f1 float64) {
	if tp := float64(cm.TruePositive); tp > 0 {
		if d := tp + float64(cm.FalsePositive); d > 0 {
			precision = tp / d
		}
		if d := tp + float64(cm.FalseNegative); d > 0 {
			recall = tp / d
		}
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	if math.IsNaN(precision) || math.IsNaN(recall) || math.IsNaN(f1) {
		return 0, 0, 0
	}
	return precision, recall, f1
}

func oneHot(class string) [3]float64 {
	switch class {
	case "BULL":
		return [3]float64{1, 0, 0}
	case "BEAR":
		return [3]float64{0, 1, 0}
	default:
		return [3]float64{0, 0, 1}
	}
}
