package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"SignalPull/internal/domain/models"
	domrepo "SignalPull/internal/domain/repository"
	"SignalPull/pkg/cache"
	applogger "SignalPull/pkg/logger"
	"SignalPull/pkg/queue"
)

const (
	// BacktestMessageType routes backtest requests through the Redis queue.
	BacktestMessageType = "backtest.run"

	backtestResultTTL = 24 * time.Hour
)

// BacktestRequestPayload is the queued form of a backtest request.
type BacktestRequestPayload struct {
	ID        string                `json:"id"`
	Symbol    string                `json:"symbol"`
	Timeframe string                `json:"timeframe"`
	Bars      int                   `json:"bars"`
	Config    models.BacktestConfig `json:"config"`
}

// BacktestJobStatus is the cached state of an enqueued backtest.
type BacktestJobStatus struct {
	ID       string                 `json:"id"`
	Symbol   string                 `json:"symbol"`
	Status   string                 `json:"status"` // queued, running, done, failed
	Error    string                 `json:"error,omitempty"`
	Result   *models.BacktestResult `json:"result,omitempty"`
	QueuedAt time.Time              `json:"queued_at"`
	DoneAt   *time.Time             `json:"done_at,omitempty"`
}

// BacktestRunner enqueues backtests and exposes their cached results.
type BacktestRunner struct {
	engine *EngineUseCase
	pub    *queue.RedisQueue
	cache  cache.Service
	log    *applogger.Logger
}

func NewBacktestRunner(engine *EngineUseCase, pub *queue.RedisQueue, cache cache.Service, log *applogger.Logger) *BacktestRunner {
	return &BacktestRunner{engine: engine, pub: pub, cache: cache, log: log}
}

// Enqueue submits a backtest for asynchronous execution and returns its ID.
func (r *BacktestRunner) Enqueue(ctx context.Context, symbol, timeframe string, bars int, cfg models.BacktestConfig) (string, error) {
	payload := BacktestRequestPayload{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Timeframe: timeframe,
		Bars:      bars,
		Config:    cfg,
	}
	status := BacktestJobStatus{
		ID:       payload.ID,
		Symbol:   symbol,
		Status:   "queued",
		QueuedAt: time.Now(),
	}
	if err := r.cache.Set(ctx, backtestKey(payload.ID), status, backtestResultTTL); err != nil {
		return "", fmt.Errorf("cache backtest status: %w", err)
	}
	if err := r.pub.Enqueue(ctx, BacktestMessageType, payload); err != nil {
		return "", fmt.Errorf("enqueue backtest: %w", err)
	}
	return payload.ID, nil
}

// Result returns the cached status of an enqueued backtest.
func (r *BacktestRunner) Result(ctx context.Context, id string) (*BacktestJobStatus, error) {
	var status BacktestJobStatus
	if err := r.cache.Get(ctx, backtestKey(id), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// BacktestJob executes queued backtests on the consumer side.
type BacktestJob struct {
	engine *EngineUseCase
	cache  cache.Service
	log    *applogger.Logger
}

func NewBacktestJob(engine *EngineUseCase, cache cache.Service, log *applogger.Logger) *BacktestJob {
	return &BacktestJob{engine: engine, cache: cache, log: log}
}

func (j *BacktestJob) Name() string { return "backtest_job" }

func (j *BacktestJob) Type() string { return BacktestMessageType }

func (j *BacktestJob) Handle(ctx context.Context, payload interface{}) error {
	raw, ok := payload.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("unexpected payload type %T", payload)
		}
		raw = b
	}
	var req BacktestRequestPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("decode backtest payload: %w", err)
	}

	status := BacktestJobStatus{
		ID:       req.ID,
		Symbol:   req.Symbol,
		Status:   "running",
		QueuedAt: time.Now(),
	}
	_ = j.cache.Set(ctx, backtestKey(req.ID), status, backtestResultTTL)

	tf := domrepo.NormalizeTimeframe(req.Timeframe)
	result, err := j.engine.Backtest(ctx, req.Symbol, tf, req.Bars, req.Config)
	done := time.Now()
	status.DoneAt = &done
	if err != nil {
		status.Status = "failed"
		status.Error = err.Error()
		j.log.Warn("backtest job failed",
			applogger.String("id", req.ID),
			applogger.String("symbol", req.Symbol),
			applogger.Error(err),
		)
	} else {
		status.Status = "done"
		status.Result = result
	}
	if err := j.cache.Set(ctx, backtestKey(req.ID), status, backtestResultTTL); err != nil {
		return fmt.Errorf("cache backtest result: %w", err)
	}
	return nil
}

func backtestKey(id string) string { return "backtest:" + id }

var _ queue.Job = (*BacktestJob)(nil)
