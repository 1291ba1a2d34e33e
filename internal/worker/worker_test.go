package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/config"
	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/stemsi/exstem-mock/internal/repository"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type fakeFlagStore struct {
	mu         sync.Mutex
	bulkFails  int
	singleFail int
	bulkCalls  int
	saved      []model.FlagEvent
}

func (s *fakeFlagStore) CopyFlags(_ context.Context, events []model.FlagEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bulkCalls++
	if s.bulkFails > 0 {
		s.bulkFails--
		return errors.New("copy failed")
	}
	s.saved = append(s.saved, events...)
	return nil
}

func (s *fakeFlagStore) InsertFlag(_ context.Context, ev model.FlagEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := uuid.Parse(ev.SessionID); err != nil {
		return fmt.Errorf("%w: %v", repository.ErrInvalidRecord, err)
	}
	if s.singleFail > 0 {
		s.singleFail--
		return errors.New("connection reset")
	}
	s.saved = append(s.saved, ev)
	return nil
}

func (s *fakeFlagStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func pushJSON(t *testing.T, rdb *redis.Client, queue string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := rdb.RPush(context.Background(), queue, data).Err(); err != nil {
		t.Fatal(err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func runFlagWorker(t *testing.T, store FlagStore, rdb *redis.Client) (cancel func()) {
	t.Helper()
	w := NewFlagWorker(store, rdb, zerolog.Nop())
	w.consumer.timeout = 50 * time.Millisecond
	w.consumer.backoff = 0

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(ctx)
	}()
	return func() {
		stop()
		<-done
	}
}

func TestFlagWorker_BulkPath(t *testing.T) {
	_, rdb := newRedis(t)
	store := &fakeFlagStore{}
	stop := runFlagWorker(t, store, rdb)
	defer stop()

	sid := uuid.NewString()
	for i := 0; i < 3; i++ {
		pushJSON(t, rdb, config.WorkerKey.PersistFlagsQueue, model.FlagEvent{SessionID: sid, Reason: "Tab Switch", RecordedAt: time.Now()})
	}
	waitFor(t, 5*time.Second, func() bool { return store.count() == 3 })
}

func TestFlagWorker_FallbackDropsInvalidAndRequeuesFailures(t *testing.T) {
	_, rdb := newRedis(t)
	store := &fakeFlagStore{bulkFails: 1, singleFail: 1}
	stop := runFlagWorker(t, store, rdb)
	defer stop()

	sid := uuid.NewString()
	pushJSON(t, rdb, config.WorkerKey.PersistFlagsQueue, model.FlagEvent{SessionID: sid, Reason: "Tab Switch"})
	pushJSON(t, rdb, config.WorkerKey.PersistFlagsQueue, model.FlagEvent{SessionID: "not-a-uuid", Reason: "Tab Switch"})
	pushJSON(t, rdb, config.WorkerKey.PersistFlagsQueue, model.FlagEvent{SessionID: sid, Reason: "Fullscreen Exit"})

	// one row lands through the fallback, the failed one comes back through the queue
	waitFor(t, 5*time.Second, func() bool { return store.count() == 2 })

	store.mu.Lock()
	defer store.mu.Unlock()
	for _, ev := range store.saved {
		if ev.SessionID != sid {
			t.Errorf("invalid record persisted: %+v", ev)
		}
	}
}

func TestFlagWorker_DiscardsMalformedJSON(t *testing.T) {
	_, rdb := newRedis(t)
	store := &fakeFlagStore{}
	stop := runFlagWorker(t, store, rdb)
	defer stop()

	ctx := context.Background()
	if err := rdb.RPush(ctx, config.WorkerKey.PersistFlagsQueue, "{not json").Err(); err != nil {
		t.Fatal(err)
	}
	pushJSON(t, rdb, config.WorkerKey.PersistFlagsQueue, model.FlagEvent{SessionID: uuid.NewString(), Reason: "Tab Switch"})
	waitFor(t, 5*time.Second, func() bool { return store.count() == 1 })
}

type fakeResultStore struct {
	mu    sync.Mutex
	saved []model.AttemptRecord
}

func (s *fakeResultStore) SaveAttempts(_ context.Context, records []model.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, records...)
	return nil
}

func (s *fakeResultStore) SaveAttempt(ctx context.Context, rec model.AttemptRecord) error {
	return s.SaveAttempts(ctx, []model.AttemptRecord{rec})
}

func TestResultWorker_FlushesOnShutdown(t *testing.T) {
	_, rdb := newRedis(t)
	store := &fakeResultStore{}
	w := NewResultWorker(store, rdb, zerolog.Nop())
	w.consumer.timeout = time.Hour

	pushJSON(t, rdb, config.WorkerKey.PersistResultsQueue, model.AttemptRecord{
		SessionID: uuid.NewString(), ExamType: model.ExamTypeNEET, Score: 12,
		Answers: []model.AttemptAnswer{{QuestionID: "p1", Status: model.StatusAnswered, Verdict: model.VerdictCorrect}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(ctx)
	}()

	waitFor(t, 5*time.Second, func() bool {
		n, _ := rdb.LLen(context.Background(), config.WorkerKey.PersistResultsQueue).Result()
		return n == 0
	})
	cancel()
	<-done

	if len(store.saved) != 1 || store.saved[0].Score != 12 || len(store.saved[0].Answers) != 1 {
		t.Fatalf("saved = %+v", store.saved)
	}
}

type countingTicker struct {
	mu    sync.Mutex
	ticks int
	limit int
}

func (c *countingTicker) Tick(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	c.ticks++
	return c.ticks < c.limit
}

func (c *countingTicker) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

func TestTimerDriver_StopsWhenTargetSaysSo(t *testing.T) {
	target := &countingTicker{limit: 3}
	d := NewTimerDriver(5*time.Millisecond, target, zerolog.Nop())
	d.Arm(context.Background())
	d.Wait()

	if target.count() != 3 {
		t.Errorf("ticks = %d, want 3", target.count())
	}
	if d.Running() {
		t.Error("driver still running")
	}
}

func TestTimerDriver_StopAndRearm(t *testing.T) {
	target := &countingTicker{limit: 1 << 30}
	d := NewTimerDriver(5*time.Millisecond, target, zerolog.Nop())
	if d.Running() {
		t.Fatal("unarmed driver reports running")
	}

	d.Arm(context.Background())
	waitFor(t, time.Second, func() bool { return target.count() >= 2 })
	d.Stop()
	d.Wait()
	stopped := target.count()
	time.Sleep(30 * time.Millisecond)
	if target.count() != stopped {
		t.Errorf("ticks continued after Stop: %d -> %d", stopped, target.count())
	}

	d.Arm(context.Background())
	d.Arm(context.Background())
	waitFor(t, time.Second, func() bool { return target.count() >= stopped+2 })
	if !d.Running() {
		t.Error("re-armed driver not running")
	}
	d.Stop()
	d.Wait()
}

func TestTimerDriver_ParentCancellation(t *testing.T) {
	target := &countingTicker{limit: 1 << 30}
	d := NewTimerDriver(5*time.Millisecond, target, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	d.Arm(ctx)
	cancel()
	d.Wait()
	if d.Running() {
		t.Error("driver survived parent cancellation")
	}
}
