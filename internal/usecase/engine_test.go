package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"SignalPull/internal/domain/models"
	drepo "SignalPull/internal/domain/repository"
)

type memCandleStore struct {
	candles []models.Candle
}

func (s *memCandleStore) GetCandles(ctx context.Context, symbol string, from, to time.Time, tf drepo.Timeframe) ([]models.Candle, error) {
	var out []models.Candle
	for _, c := range s.candles {
		if c.Symbol == symbol && !c.Bucket.Before(from) && !c.Bucket.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memCandleStore) GetLatestNCandles(ctx context.Context, symbol string, n int, tf drepo.Timeframe) ([]models.Candle, error) {
	var out []models.Candle
	for _, c := range s.candles {
		if c.Symbol == symbol {
			out = append(out, c)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func TestSessionReuse(t *testing.T) {
	uc := testEngine(t, &memPredStore{})

	a := uc.Session("BTCUSDT")
	b := uc.Session("BTCUSDT")
	if a != b {
		t.Fatal("same symbol must reuse its session")
	}
	if uc.Session("ETHUSDT") == a {
		t.Fatal("distinct symbols must not share sessions")
	}
	if got := len(uc.Symbols()); got != 2 {
		t.Fatalf("expected 2 sessions, got %d", got)
	}
}

func TestPredictLogsRecord(t *testing.T) {
	preds := &memPredStore{}
	store := &memCandleStore{}
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		store.candles = append(store.candles, models.Candle{
			Bucket: base.Add(time.Duration(i) * time.Minute),
			Symbol: "BTCUSDT",
			Open:   100 + float64(i),
			High:   101 + float64(i),
			Low:    99 + float64(i),
			Close:  100.5 + float64(i),
			Volume: 5,
		})
	}
	uc := NewEngineUseCase(EngineConfig{
		Architecture:   models.ArchDense,
		BufferCapacity: 64,
		ModelVersion:   "test",
	}, store, preds, nil, nil, nopMetrics{}, testLogger(t))

	res, err := uc.Predict(context.Background(), "BTCUSDT", drepo.TF1m, 60)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if res.Source != "heuristic" {
		t.Fatalf("uninitialized network must fall back, got source %q", res.Source)
	}
	if len(preds.recs) != 1 {
		t.Fatalf("expected prediction logged, got %d records", len(preds.recs))
	}
	if preds.recs[0].Class != res.Class {
		t.Fatalf("logged class %q != result class %q", preds.recs[0].Class, res.Class)
	}
}

func TestPendingSamplesPairsWithRealizedCloses(t *testing.T) {
	preds := &memPredStore{}
	store := &memCandleStore{}
	base := time.Now().Add(-2 * time.Hour)
	for i := 0; i < 120; i++ {
		store.candles = append(store.candles, models.Candle{
			Bucket: base.Add(time.Duration(i) * time.Minute),
			Symbol: "BTCUSDT",
			Open:   100,
			High:   101,
			Low:    99,
			Close:  100 + float64(i)*0.5,
			Volume: 5,
		})
	}
	// two realized predictions, one too recent to score
	preds.recs = []models.PredictionRecord{
		{ID: "a", Symbol: "BTCUSDT", CreatedAt: base.Add(10 * time.Minute), Class: "BULL", Confidence: 0.7, Price: 105},
		{ID: "b", Symbol: "BTCUSDT", CreatedAt: base.Add(30 * time.Minute), Class: "BEAR", Confidence: 0.6, Price: 115},
		{ID: "c", Symbol: "BTCUSDT", CreatedAt: time.Now().Add(time.Hour), Class: "BULL", Confidence: 0.8, Price: 160},
	}
	uc := NewEngineUseCase(EngineConfig{BufferCapacity: 64}, store, preds, nil, nil, nopMetrics{}, testLogger(t))

	samples, err := uc.pendingSamples(context.Background(), "BTCUSDT", drepo.TF1m, 3*time.Hour)
	if err != nil {
		t.Fatalf("pending samples: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 scored samples, got %d", len(samples))
	}
	// closes keep rising, so realized outcomes are bull
	for _, s := range samples {
		if s.ActualClass != "BULL" {
			t.Fatalf("rising closes must realize BULL, got %q", s.ActualClass)
		}
	}
	if samples[0].Predicted.Class() != "BULL" || samples[1].Predicted.Class() != "BEAR" {
		t.Fatalf("reconstructed predictions must keep their class: %q, %q",
			samples[0].Predicted.Class(), samples[1].Predicted.Class())
	}
}

func TestKafkaOutcomesHandlerFeedsBuffer(t *testing.T) {
	uc := testEngine(t, &memPredStore{})
	h := NewKafkaOutcomesHandler("signal.outcomes", uc, nopMetrics{})

	if h.Topic() != "signal.outcomes" {
		t.Fatalf("unexpected topic %q", h.Topic())
	}

	exp := models.Experience{
		ID:        "e1",
		State:     make([]float64, 16),
		Action:    models.ActionBuy,
		Reward:    0.01,
		Timestamp: time.Now(),
		Symbol:    "BTCUSDT",
	}
	b, _ := json.Marshal(exp)
	if err := h.Handle(context.Background(), b); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := uc.Session("BTCUSDT").Buffer.Size(); got != 1 {
		t.Fatalf("expected 1 buffered experience, got %d", got)
	}

	// malformed payloads are dropped without error
	if err := h.Handle(context.Background(), []byte(`{"symbol":""}`)); err != nil {
		t.Fatalf("invalid experience should be dropped, got %v", err)
	}
	if err := h.Handle(context.Background(), []byte("not json")); err == nil {
		t.Fatal("expected unmarshal error")
	}
}

type memModelStore struct {
	snaps map[string]*models.ModelSnapshot
}

func (s *memModelStore) Save(ctx context.Context, snap *models.ModelSnapshot) error {
	s.snaps[snap.ModelID] = snap
	return nil
}

func (s *memModelStore) Load(ctx context.Context, modelID string) (*models.ModelSnapshot, error) {
	snap, ok := s.snaps[modelID]
	if !ok {
		return nil, drepo.ErrModelNotFound
	}
	return snap, nil
}

func (s *memModelStore) Close() error { return nil }

func trainedEngine(t *testing.T, store drepo.ModelStore) *EngineUseCase {
	t.Helper()
	uc := NewEngineUseCase(EngineConfig{
		Architecture:   models.ArchDense,
		LearningRate:   0.01,
		BatchSize:      8,
		BufferCapacity: 64,
		ModelVersion:   "test",
	}, nil, &memPredStore{}, store, nil, nopMetrics{}, testLogger(t))

	ctx := context.Background()
	if err := uc.Initialize(ctx, "BTCUSDT", nil); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	for i := 0; i < 16; i++ {
		state := make([]float64, 16)
		state[i%16] = 0.5
		action := models.ActionBuy
		reward := 0.01
		if i%2 == 1 {
			action = models.ActionSell
			reward = -0.01
		}
		uc.AddExperience("BTCUSDT", &models.Experience{
			ID:        fmt.Sprintf("e%d", i),
			State:     state,
			Action:    action,
			Reward:    reward,
			Priority:  1,
			Timestamp: time.Now(),
			Symbol:    "BTCUSDT",
		})
	}
	if _, err := uc.TrainStep(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("train step: %v", err)
	}
	return uc
}

func TestBootstrapRestoresPersistedModel(t *testing.T) {
	store := &memModelStore{snaps: map[string]*models.ModelSnapshot{}}
	first := trainedEngine(t, store)
	ctx := context.Background()
	if _, err := first.SaveModel(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("save model: %v", err)
	}

	second := NewEngineUseCase(EngineConfig{
		Architecture:   models.ArchDense,
		BufferCapacity: 64,
		ModelVersion:   "test",
	}, nil, &memPredStore{}, store, nil, nopMetrics{}, testLogger(t))
	if err := second.Bootstrap(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	tr := second.Session("BTCUSDT").Trainer
	if tr.Summary().Steps != 1 {
		t.Fatalf("restored %d steps of progress, want 1", tr.Summary().Steps)
	}
	if tr.State() != models.StateIdle {
		t.Fatalf("restored engine state %s, want IDLE", tr.State())
	}
}

func TestBootstrapFallsBackWithoutSnapshot(t *testing.T) {
	store := &memModelStore{snaps: map[string]*models.ModelSnapshot{}}
	uc := NewEngineUseCase(EngineConfig{
		Architecture:   models.ArchDense,
		BufferCapacity: 64,
		ModelVersion:   "test",
	}, nil, &memPredStore{}, store, nil, nopMetrics{}, testLogger(t))

	if err := uc.Bootstrap(context.Background(), "ETHUSDT"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if st := uc.Session("ETHUSDT").Trainer.State(); st != models.StateInitialized {
		t.Fatalf("fresh engine state %s, want INITIALIZED", st)
	}
}
