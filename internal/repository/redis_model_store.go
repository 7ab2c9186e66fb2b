package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"SignalPull/internal/domain/models"
	"SignalPull/internal/domain/repository"
)

const modelKeyPrefix = "signalpull:model:"

// RedisModelStore implements ModelStore on Redis. Snapshots are stored as
// JSON blobs; the latest snapshot per model ID wins.
type RedisModelStore struct {
	client *redis.Client
}

// NewRedisModelStore creates a Redis-backed model store.
func NewRedisModelStore(client *redis.Client) repository.ModelStore {
	return &RedisModelStore{client: client}
}

func (s *RedisModelStore) Save(ctx context.Context, snap *models.ModelSnapshot) error {
	if snap == nil || snap.ModelID == "" {
		return fmt.Errorf("model snapshot requires a model id")
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, modelKeyPrefix+snap.ModelID, b, 0).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *RedisModelStore) Load(ctx context.Context, modelID string) (*models.ModelSnapshot, error) {
	b, err := s.client.Get(ctx, modelKeyPrefix+modelID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrModelNotFound
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap models.ModelSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (s *RedisModelStore) Close() error {
	return s.client.Close()
}
