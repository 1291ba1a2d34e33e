package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize      = 50
	BatchTimeout   = 2 * time.Second
	PollTimeout    = 1 * time.Second // Must be >= 1s to satisfy Redis
	RequeueBackoff = 2 * time.Second
)

// queueConsumer drains a Redis list into batches and hands them to a store.
// Bulk writes fall back to row-by-row writes; rows that still fail are pushed back.
type queueConsumer[T any] struct {
	rdb     *redis.Client
	queue   string
	log     zerolog.Logger
	bulk    func(ctx context.Context, batch []T) error
	single  func(ctx context.Context, item T) error
	drop    func(err error) bool
	timeout time.Duration
	backoff time.Duration
}

func (c *queueConsumer[T]) run(ctx context.Context) {
	buffer := make([]T, 0, BatchSize)
	lastFlush := time.Now()

	for {
		// 1. Flush on size or age
		if len(buffer) > 0 && (len(buffer) >= BatchSize || time.Since(lastFlush) >= c.timeout) {
			c.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		// 2. Graceful shutdown
		select {
		case <-ctx.Done():
			c.shutdown(buffer)
			return
		default:
		}

		// 3. Fetch, blocking up to PollTimeout
		result, err := c.rdb.BLPop(ctx, PollTimeout, c.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			c.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			sleepCtx(ctx, 3*time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var item T
		if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
			// Malformed JSON can never succeed. Log and discard.
			c.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}
		buffer = append(buffer, item)
	}
}

// flushSafe attempts bulk insert, then fallback insert, then requeue.
func (c *queueConsumer[T]) flushSafe(ctx context.Context, batch []T) {
	if len(batch) == 0 {
		return
	}
	err := c.bulk(ctx, batch)
	if err == nil {
		c.log.Debug().Int("count", len(batch)).Msg("Batch persisted")
		return
	}
	c.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")

	requeueList := make([]T, 0)
	for _, item := range batch {
		if err := c.single(ctx, item); err != nil {
			if c.drop != nil && c.drop(err) {
				c.log.Error().Err(err).Msg("Dropping record that can never be stored")
				continue
			}
			c.log.Error().Err(err).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, item)
		}
	}
	if len(requeueList) > 0 {
		c.requeue(ctx, requeueList)
	}
}

func (c *queueConsumer[T]) requeue(ctx context.Context, items []T) {
	pipe := c.rdb.Pipeline()
	for _, item := range items {
		data, _ := json.Marshal(item)
		pipe.RPush(ctx, c.queue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	c.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	// avoid thrashing while the database is down
	sleepCtx(ctx, c.backoff)
}

func (c *queueConsumer[T]) shutdown(buffer []T) {
	c.log.Info().Int("pending", len(buffer)).Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.flushSafe(shutdownCtx, buffer)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
