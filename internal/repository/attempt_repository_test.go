package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/stemsi/exstem-mock/internal/repository"
	"github.com/stemsi/exstem-mock/internal/worker"
)

var (
	_ worker.FlagStore   = (*repository.AttemptRepository)(nil)
	_ worker.ResultStore = (*repository.AttemptRepository)(nil)
)

// Malformed ids are rejected before any query runs, so no pool is needed.
func TestAttemptRepository_InvalidSessionID(t *testing.T) {
	var repo worker.FlagStore = repository.NewAttemptRepository(nil)
	ctx := context.Background()

	err := repo.InsertFlag(ctx, model.FlagEvent{SessionID: "not-a-uuid", Reason: "Tab Switch", RecordedAt: time.Now()})
	if !errors.Is(err, repository.ErrInvalidRecord) {
		t.Fatalf("InsertFlag error = %v, want ErrInvalidRecord", err)
	}

	// The bulk path reports a plain error so the worker falls back to row-by-row.
	err = repo.CopyFlags(ctx, []model.FlagEvent{{SessionID: "not-a-uuid"}})
	if err == nil || errors.Is(err, repository.ErrInvalidRecord) {
		t.Fatalf("CopyFlags error = %v, want a non-ErrInvalidRecord error", err)
	}

	if _, err := repository.NewAttemptRepository(nil).GetAttemptAnswers(ctx, "42"); !errors.Is(err, repository.ErrInvalidRecord) {
		t.Fatalf("GetAttemptAnswers error = %v, want ErrInvalidRecord", err)
	}
}

// newTestPool connects to TEST_DATABASE_URL and applies the schema. Skips when unset.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../migrations/000001_init.up.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return pool
}

func testRecord(sessionID string, score int) model.AttemptRecord {
	answer := "0"
	started := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	return model.AttemptRecord{
		SessionID:   sessionID,
		ExamType:    model.ExamTypeJEEMain,
		Title:       "JEE MAIN Mock Test",
		StartedAt:   started,
		EndedAt:     started.Add(time.Hour),
		EndReason:   model.EndReasonSubmitted,
		Score:       score,
		MaxScore:    28,
		Correct:     1,
		Unattempted: 6,
		Accuracy:    100,
		Answers: []model.AttemptAnswer{
			{QuestionID: "p1", Answer: &answer, Status: model.StatusAnswered, Verdict: model.VerdictCorrect, TimeSpent: 30},
			{QuestionID: "p2", Status: model.StatusNotVisited, Verdict: model.VerdictUnattempted},
		},
	}
}

func TestAttemptRepository_Postgres(t *testing.T) {
	pool := newTestPool(t)
	repo := repository.NewAttemptRepository(pool)
	ctx := context.Background()

	first, second := uuid.NewString(), uuid.NewString()
	t.Cleanup(func() {
		for _, id := range []string{first, second} {
			_, _ = pool.Exec(context.Background(), `DELETE FROM proctor_flags WHERE session_id = $1`, id)
			_, _ = pool.Exec(context.Background(), `DELETE FROM exam_attempts WHERE session_id = $1`, id)
		}
	})

	t.Run("bulk save with an invalid record fails as a whole", func(t *testing.T) {
		err := repo.SaveAttempts(ctx, []model.AttemptRecord{testRecord(first, 4), testRecord("bad", 0)})
		if !errors.Is(err, repository.ErrInvalidRecord) {
			t.Fatalf("error = %v, want ErrInvalidRecord", err)
		}
		if got, _ := repo.GetAttemptAnswers(ctx, first); len(got) != 0 {
			t.Fatalf("rolled back batch left %d answers", len(got))
		}
	})

	t.Run("save is idempotent per session", func(t *testing.T) {
		if err := repo.SaveAttempts(ctx, []model.AttemptRecord{testRecord(first, 4), testRecord(second, 8)}); err != nil {
			t.Fatalf("SaveAttempts: %v", err)
		}
		if err := repo.SaveAttempt(ctx, testRecord(first, 99)); err != nil {
			t.Fatalf("SaveAttempt again: %v", err)
		}

		answers, err := repo.GetAttemptAnswers(ctx, first)
		if err != nil {
			t.Fatal(err)
		}
		if len(answers) != 2 || answers[0].QuestionID != "p1" || answers[0].Answer == nil || *answers[0].Answer != "0" {
			t.Fatalf("answers = %+v", answers)
		}
		if answers[1].Answer != nil {
			t.Errorf("unattempted answer stored as %q", *answers[1].Answer)
		}

		attempts, err := repo.ListAttempts(ctx, 100)
		if err != nil {
			t.Fatal(err)
		}
		scores := map[string]int{}
		for _, a := range attempts {
			scores[a.SessionID] = a.Score
		}
		if scores[first] != 4 || scores[second] != 8 {
			t.Errorf("scores = %v, want first=4 second=8", scores)
		}
	})

	t.Run("flags", func(t *testing.T) {
		now := time.Now().UTC()
		if err := repo.CopyFlags(ctx, []model.FlagEvent{
			{SessionID: first, Reason: "Tab Switch", RecordedAt: now},
			{SessionID: first, Reason: "Fullscreen Exit", RecordedAt: now},
		}); err != nil {
			t.Fatalf("CopyFlags: %v", err)
		}
		if err := repo.InsertFlag(ctx, model.FlagEvent{SessionID: first, Reason: "Camera Access Denied", RecordedAt: now}); err != nil {
			t.Fatalf("InsertFlag: %v", err)
		}

		var n int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM proctor_flags WHERE session_id = $1`, first).Scan(&n); err != nil {
			t.Fatal(err)
		}
		if n != 3 {
			t.Errorf("flag rows = %d, want 3", n)
		}
	})
}
