package replay

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"SignalPull/internal/domain/models"
	"SignalPull/internal/engine/core"
)

func exp(id string, priority, reward float64) *models.Experience {
	return &models.Experience{
		ID:        id,
		State:     []float64{0.1, 0.2},
		Action:    models.ActionBuy,
		Reward:    reward,
		Priority:  priority,
		Timestamp: time.Now(),
		Symbol:    "BTCUSDT",
	}
}

func TestBufferEvictsOldestAtCapacity(t *testing.T) {
	b := NewBuffer(3, WithSeed(1))
	for i := 0; i < 5; i++ {
		b.Add(exp(fmt.Sprintf("e%d", i), 1, 0))
	}
	if b.Size() != 3 {
		t.Fatalf("expected size 3, got %d", b.Size())
	}
	got, err := b.Sample(3)
	if err != nil {
		t.Fatal(err)
	}
	ids := map[string]bool{}
	for _, e := range got {
		ids[e.ID] = true
	}
	for _, want := range []string{"e2", "e3", "e4"} {
		if !ids[want] {
			t.Fatalf("expected survivor %s, have %v", want, ids)
		}
	}
	if ids["e0"] || ids["e1"] {
		t.Fatalf("oldest experiences not evicted: %v", ids)
	}
}

func TestSampleInsufficientData(t *testing.T) {
	b := NewBuffer(10, WithSeed(1))
	b.Add(exp("a", 1, 0))
	_, err := b.Sample(2)
	var ide *core.InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if ide.Got != 1 || ide.Need != 2 {
		t.Fatalf("unexpected error detail: %+v", ide)
	}
}

func TestSampleDistinctAndComplete(t *testing.T) {
	b := NewBuffer(16, WithSeed(7))
	for i := 0; i < 8; i++ {
		b.Add(exp(fmt.Sprintf("e%d", i), float64(i+1), 0))
	}
	got, err := b.Sample(8)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, e := range got {
		if seen[e.ID] {
			t.Fatalf("duplicate sample %s", e.ID)
		}
		seen[e.ID] = true
	}
	if len(seen) != 8 {
		t.Fatalf("expected 8 distinct samples, got %d", len(seen))
	}
}

func TestSampleFavorsHighPriority(t *testing.T) {
	b := NewBuffer(4, WithSeed(42))
	b.Add(exp("hot", 100, 0))
	b.Add(exp("cold1", 0.001, 0))
	b.Add(exp("cold2", 0.001, 0))
	b.Add(exp("cold3", 0.001, 0))

	hotFirst := 0
	const trials = 200
	for i := 0; i < trials; i++ {
		got, err := b.Sample(1)
		if err != nil {
			t.Fatal(err)
		}
		if got[0].ID == "hot" {
			hotFirst++
		}
	}
	if hotFirst < trials*9/10 {
		t.Fatalf("high-priority experience drawn only %d/%d times", hotFirst, trials)
	}
}

func TestSampleUniformWhenPrioritiesDegenerate(t *testing.T) {
	b := NewBuffer(4, WithSeed(3))
	for i := 0; i < 4; i++ {
		e := exp(fmt.Sprintf("e%d", i), 0, 0)
		b.Add(e)
	}
	counts := map[string]int{}
	for i := 0; i < 400; i++ {
		got, err := b.Sample(1)
		if err != nil {
			t.Fatal(err)
		}
		counts[got[0].ID]++
	}
	for id, c := range counts {
		if c < 40 {
			t.Fatalf("experience %s starved under degenerate priorities: %d/400", id, c)
		}
	}
}

func TestUpdatePriorities(t *testing.T) {
	b := NewBuffer(4, WithSeed(1))
	b.Add(exp("a", 1, 0))
	b.Add(exp("b", 1, 0))
	b.UpdatePriorities(map[string]float64{"a": 50, "missing": 3, "b": -7})

	stats := b.Statistics()
	// b clamps to the floor, a becomes 50.
	if stats.MeanPriority < 24 || stats.MeanPriority > 26 {
		t.Fatalf("unexpected mean priority %v", stats.MeanPriority)
	}
}

func TestStatisticsAndClear(t *testing.T) {
	b := NewBuffer(8, WithSeed(1))
	if s := b.Statistics(); s.Size != 0 || s.MeanPriority != 0 {
		t.Fatalf("expected empty stats, got %+v", s)
	}
	b.Add(exp("a", 2, 0.5))
	b.Add(exp("b", 4, -0.1))
	s := b.Statistics()
	if s.Size != 2 || s.Capacity != 8 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if s.MeanPriority != 3 {
		t.Fatalf("expected mean priority 3, got %v", s.MeanPriority)
	}
	if diff := s.MeanReward - 0.2; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("expected mean reward 0.2, got %v", s.MeanReward)
	}
	b.Clear()
	if b.Size() != 0 {
		t.Fatalf("expected empty buffer after clear, got %d", b.Size())
	}
}

func TestAddClampsBadPriorities(t *testing.T) {
	b := NewBuffer(4, WithSeed(1))
	e := exp("nan", 0, 0)
	e.Priority = 0
	b.Add(e)
	got, err := b.Sample(1)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Priority <= 0 {
		t.Fatalf("expected positive clamped priority, got %v", got[0].Priority)
	}
}
