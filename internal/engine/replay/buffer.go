// Package replay implements a bounded, prioritized experience buffer.
// Sampling probability is proportional to experience priority so training
// concentrates on transitions with large temporal-difference error.
package replay

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"SignalPull/internal/domain/models"
	"SignalPull/internal/engine/core"
)

// DefaultCapacity bounds the buffer when no explicit capacity is given.
const DefaultCapacity = 10000

const minPriority = 1e-6

// Buffer is a fixed-capacity ring of experiences. When full, the oldest
// experience is evicted. Safe for concurrent use.
type Buffer struct {
	mu       sync.RWMutex
	items    []*models.Experience
	head     int
	size     int
	capacity int
	rng      *rand.Rand
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithSeed fixes the sampling RNG seed. Used by tests.
func WithSeed(seed int64) Option {
	return func(b *Buffer) {
		b.rng = rand.New(rand.NewSource(seed))
	}
}

// NewBuffer creates an empty buffer holding at most capacity experiences.
// Non-positive capacities fall back to DefaultCapacity.
func NewBuffer(capacity int, opts ...Option) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &Buffer{
		items:    make([]*models.Experience, capacity),
		capacity: capacity,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add stores an experience, evicting the oldest when the buffer is full.
// Non-finite or non-positive priorities are clamped to a small floor so
// every stored experience keeps a nonzero chance of being sampled.
func (b *Buffer) Add(exp *models.Experience) {
	if exp == nil {
		return
	}
	if math.IsNaN(exp.Priority) || math.IsInf(exp.Priority, 0) || exp.Priority < minPriority {
		exp.Priority = minPriority
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tail := (b.head + b.size) % b.capacity
	b.items[tail] = exp
	if b.size < b.capacity {
		b.size++
	} else {
		b.head = (b.head + 1) % b.capacity
	}
}

// Sample draws n distinct experiences with probability proportional to
// priority. Falls back to uniform sampling when all priorities are equal.
// Returns an InsufficientDataError when fewer than n experiences are stored.
func (b *Buffer) Sample(n int) ([]*models.Experience, error) {
	if n <= 0 {
		return nil, &core.ConfigurationError{Field: "batch_size", Reason: "must be positive"}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size < n {
		return nil, &core.InsufficientDataError{Op: "sample_experiences", Need: n, Got: b.size}
	}

	weights := make([]float64, b.size)
	taken := make([]bool, b.size)
	total := 0.0
	for i := 0; i < b.size; i++ {
		w := b.at(i).Priority
		weights[i] = w
		total += w
	}

	out := make([]*models.Experience, 0, n)
	for k := 0; k < n; k++ {
		idx := b.draw(weights, taken, total)
		out = append(out, b.at(idx))
		total -= weights[idx]
		taken[idx] = true
		weights[idx] = 0
	}
	return out, nil
}

// draw selects an index by a cumulative walk over the remaining weights.
// When the remaining mass is degenerate it picks uniformly among the
// slots not yet taken.
func (b *Buffer) draw(weights []float64, taken []bool, total float64) int {
	if total > 0 {
		target := b.rng.Float64() * total
		cum := 0.0
		for i, w := range weights {
			cum += w
			if w > 0 && target < cum {
				return i
			}
		}
	}
	free := make([]int, 0, len(taken))
	for i, t := range taken {
		if !t {
			free = append(free, i)
		}
	}
	return free[b.rng.Intn(len(free))]
}

// UpdatePriorities rewrites priorities for the given experience IDs.
// Unknown IDs are ignored. Values are clamped to the priority floor.
func (b *Buffer) UpdatePriorities(priorities map[string]float64) {
	if len(priorities) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 0; i < b.size; i++ {
		exp := b.at(i)
		p, ok := priorities[exp.ID]
		if !ok {
			continue
		}
		if math.IsNaN(p) || math.IsInf(p, 0) || p < minPriority {
			p = minPriority
		}
		exp.Priority = p
	}
}

// Size reports the number of stored experiences.
func (b *Buffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Capacity reports the maximum number of experiences the buffer holds.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Clear discards all stored experiences.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		b.items[i] = nil
	}
	b.head = 0
	b.size = 0
}

// Statistics summarizes the buffer contents for monitoring.
func (b *Buffer) Statistics() models.BufferStatistics {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := models.BufferStatistics{Size: b.size, Capacity: b.capacity}
	if b.size == 0 {
		return stats
	}
	sumP := 0.0
	sumR := 0.0
	for i := 0; i < b.size; i++ {
		exp := b.at(i)
		sumP += exp.Priority
		sumR += exp.Reward
	}
	stats.MeanPriority = sumP / float64(b.size)
	stats.MeanReward = sumR / float64(b.size)
	return stats
}

// at indexes the ring in logical order, 0 being the oldest experience.
// Callers hold the lock.
func (b *Buffer) at(i int) *models.Experience {
	return b.items[(b.head+i)%b.capacity]
}
