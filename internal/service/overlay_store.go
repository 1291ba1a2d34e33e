package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-mock/internal/config"
	"github.com/stemsi/exstem-mock/internal/model"
)

// OverlayStore keeps the asynchronous AI results of a session in Redis.
// Both keys expire after ttl.
type OverlayStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewOverlayStore creates a new OverlayStore.
func NewOverlayStore(rdb *redis.Client, ttl time.Duration) *OverlayStore {
	return &OverlayStore{rdb: rdb, ttl: ttl}
}

// SaveAnalysis stores the performance analysis of a session.
func (o *OverlayStore) SaveAnalysis(ctx context.Context, sessionID string, a model.AIAnalysis) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	return o.rdb.Set(ctx, config.CacheKey.SessionAnalysisKey(sessionID), data, o.ttl).Err()
}

// Analysis returns the stored analysis, or nil while it is still pending.
func (o *OverlayStore) Analysis(ctx context.Context, sessionID string) (*model.AIAnalysis, error) {
	data, err := o.rdb.Get(ctx, config.CacheKey.SessionAnalysisKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get analysis: %w", err)
	}

	var a model.AIAnalysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("unmarshal analysis: %w", err)
	}
	return &a, nil
}

// SaveExplanation caches one explanation in the session's explanation hash.
func (o *OverlayStore) SaveExplanation(ctx context.Context, sessionID string, e model.Explanation) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal explanation: %w", err)
	}
	key := config.CacheKey.SessionExplanationsKey(sessionID)

	pipe := o.rdb.TxPipeline()
	pipe.HSet(ctx, key, e.QuestionID, data)
	pipe.Expire(ctx, key, o.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache explanation: %w", err)
	}
	return nil
}

// Explanation returns a cached explanation, or nil if none exists.
func (o *OverlayStore) Explanation(ctx context.Context, sessionID, questionID string) (*model.Explanation, error) {
	data, err := o.rdb.HGet(ctx, config.CacheKey.SessionExplanationsKey(sessionID), questionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get explanation: %w", err)
	}

	var e model.Explanation
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal explanation: %w", err)
	}
	return &e, nil
}

// Explanations returns every cached explanation of a session keyed by question id.
// Unreadable entries are skipped.
func (o *OverlayStore) Explanations(ctx context.Context, sessionID string) (map[string]model.Explanation, error) {
	raw, err := o.rdb.HGetAll(ctx, config.CacheKey.SessionExplanationsKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get explanations: %w", err)
	}

	out := make(map[string]model.Explanation, len(raw))
	for id, data := range raw {
		var e model.Explanation
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			continue
		}
		out[id] = e
	}
	return out, nil
}
