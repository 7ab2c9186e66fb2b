package usecase

import (
	"context"
	"encoding/json"
	"time"

	"SignalPull/internal/domain/models"
	domrepo "SignalPull/internal/domain/repository"
	pkgkafka "SignalPull/pkg/kafka"
)

// KafkaOutcomesHandler consumes evaluated prediction outcomes published by
// other engine instances and replays them into the local buffers.
type KafkaOutcomesHandler struct {
	topic   string
	engine  *EngineUseCase
	metrics domrepo.Metrics
}

func NewKafkaOutcomesHandler(topic string, engine *EngineUseCase, metrics domrepo.Metrics) *KafkaOutcomesHandler {
	return &KafkaOutcomesHandler{topic: topic, engine: engine, metrics: metrics}
}

func (h *KafkaOutcomesHandler) Topic() string { return h.topic }

func (h *KafkaOutcomesHandler) Handle(ctx context.Context, b []byte) error {
	var exp models.Experience
	if err := json.Unmarshal(b, &exp); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if exp.Symbol == "" || len(exp.State) == 0 {
		h.metrics.RecordError("consumer_invalid_experience")
		return nil // malformed outcomes are dropped, not retried
	}
	// E2E latency from event time to now (approx)
	if !exp.Timestamp.IsZero() {
		h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(exp.Timestamp).Seconds())
	}

	h.engine.AddExperience(exp.Symbol, &exp)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaOutcomesHandler)(nil)
