package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"phenotune/internal/config"
)

// RedisStore keeps each run in a hash of trial documents plus a sorted set ranking completed trials.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisStore(client, cfg.KeyPrefix, cfg.TTL), nil
}

func newRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "phenotune"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (rs *RedisStore) trialsKey(runID string) string {
	return fmt.Sprintf("%s:run:%s:trials", rs.prefix, runID)
}

func (rs *RedisStore) rankingKey(runID string) string {
	return fmt.Sprintf("%s:run:%s:ranking", rs.prefix, runID)
}

// SaveTrial stores the document and ranks completed trials by validation loss.
func (rs *RedisStore) SaveTrial(ctx context.Context, t *Trial) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode trial %s: %w", t.TrialID, err)
	}

	pipe := rs.client.TxPipeline()
	pipe.HSet(ctx, rs.trialsKey(t.RunID), t.TrialID, doc)
	if v := float64(t.ValLoss); t.Completed() && !math.IsNaN(v) && !math.IsInf(v, 0) {
		pipe.ZAdd(ctx, rs.rankingKey(t.RunID), redis.Z{Score: v, Member: t.TrialID})
	}
	if rs.ttl > 0 {
		pipe.Expire(ctx, rs.trialsKey(t.RunID), rs.ttl)
		pipe.Expire(ctx, rs.rankingKey(t.RunID), rs.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save trial %s: %w", t.TrialID, err)
	}
	return nil
}

// LoadTrials returns the run's trials in index order.
func (rs *RedisStore) LoadTrials(ctx context.Context, runID string) ([]*Trial, error) {
	docs, err := rs.client.HGetAll(ctx, rs.trialsKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load trials: %w", err)
	}
	trials := make([]*Trial, 0, len(docs))
	for id, doc := range docs {
		var t Trial
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			return nil, fmt.Errorf("failed to decode trial %s: %w", id, err)
		}
		trials = append(trials, &t)
	}
	return sortedByIndex(trials), nil
}

// TopTrialIDs returns up to k trial IDs with the lowest validation loss.
func (rs *RedisStore) TopTrialIDs(ctx context.Context, runID string, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	return rs.client.ZRange(ctx, rs.rankingKey(runID), 0, int64(k-1)).Result()
}

// Close closes the client.
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
