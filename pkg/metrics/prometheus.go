package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	trainingSteps   *prometheus.CounterVec
	trainingLoss    *prometheus.GaugeVec
	directionalAcc  *prometheus.GaugeVec
	predictions     *prometheus.CounterVec
	confidence      *prometheus.HistogramVec
	schedulerCycles *prometheus.CounterVec
	backtestSharpe  *prometheus.GaugeVec
	backtestWinRate *prometheus.GaugeVec
	errorsTotal     *prometheus.CounterVec
	lastPrice       *prometheus.GaugeVec
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		trainingSteps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalpull_training_steps_total",
				Help: "Total number of optimizer steps applied",
			},
			[]string{"symbol"},
		),
		trainingLoss: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signalpull_training_loss",
				Help: "Loss of the most recent training step",
			},
			[]string{"symbol"},
		),
		directionalAcc: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signalpull_directional_accuracy",
				Help: "Directional accuracy of the most recent training step",
			},
			[]string{"symbol"},
		),
		predictions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalpull_predictions_total",
				Help: "Total number of predictions emitted",
			},
			[]string{"symbol", "class", "source"},
		),
		confidence: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalpull_prediction_confidence",
				Help:    "Confidence distribution of emitted predictions",
				Buckets: prometheus.LinearBuckets(0.3, 0.05, 14),
			},
			[]string{"symbol", "source"},
		),
		schedulerCycles: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalpull_scheduler_cycles_total",
				Help: "Continuous learning cycles by outcome",
			},
			[]string{"outcome"},
		),
		backtestSharpe: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signalpull_backtest_sharpe_ratio",
				Help: "Sharpe ratio of the most recent backtest",
			},
			[]string{"symbol"},
		),
		backtestWinRate: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signalpull_backtest_win_rate",
				Help: "Win rate of the most recent backtest",
			},
			[]string{"symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalpull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signalpull_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordTrainingStep records one optimizer step.
func (r *Recorder) RecordTrainingStep(symbol string, loss, directionalAccuracy float64) {
	r.trainingSteps.WithLabelValues(symbol).Inc()
	r.trainingLoss.WithLabelValues(symbol).Set(loss)
	r.directionalAcc.WithLabelValues(symbol).Set(directionalAccuracy)
}

// RecordPrediction records an emitted prediction.
func (r *Recorder) RecordPrediction(symbol, class, source string, confidence float64) {
	r.predictions.WithLabelValues(symbol, class, source).Inc()
	r.confidence.WithLabelValues(symbol, source).Observe(confidence)
}

// RecordSchedulerCycle records one learning cycle by outcome.
func (r *Recorder) RecordSchedulerCycle(outcome string) {
	r.schedulerCycles.WithLabelValues(outcome).Inc()
}

// RecordBacktest records headline statistics of a completed backtest.
func (r *Recorder) RecordBacktest(symbol string, sharpe, winRate float64) {
	r.backtestSharpe.WithLabelValues(symbol).Set(sharpe)
	r.backtestWinRate.WithLabelValues(symbol).Set(winRate)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
