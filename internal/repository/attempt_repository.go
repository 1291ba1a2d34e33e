package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-mock/internal/model"
)

// ErrInvalidRecord marks rows that can never be stored, e.g. a malformed session id.
var ErrInvalidRecord = errors.New("invalid attempt record")

// AttemptRepository persists finished attempts and proctoring flags.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// CopyFlags bulk inserts flag events with COPY.
func (r *AttemptRepository) CopyFlags(ctx context.Context, events []model.FlagEvent) error {
	rows := make([][]interface{}, 0, len(events))
	for _, ev := range events {
		sessionID, err := uuid.Parse(ev.SessionID)
		if err != nil {
			// Return error to trigger fallback, which will handle the bad UUID individually
			return err
		}
		rows = append(rows, []interface{}{sessionID, ev.Reason, ev.RecordedAt})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"proctor_flags"},
		[]string{"session_id", "reason", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// InsertFlag inserts a single flag event.
func (r *AttemptRepository) InsertFlag(ctx context.Context, ev model.FlagEvent) error {
	sessionID, err := uuid.Parse(ev.SessionID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO proctor_flags (session_id, reason, recorded_at) VALUES ($1, $2, $3)`,
		sessionID, ev.Reason, ev.RecordedAt,
	)
	return err
}

// SaveAttempts stores a batch of attempts and their answers in one transaction.
func (r *AttemptRepository) SaveAttempts(ctx context.Context, records []model.AttemptRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := range records {
		if err := saveAttempt(ctx, tx, &records[i]); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// SaveAttempt stores one attempt in its own transaction.
func (r *AttemptRepository) SaveAttempt(ctx context.Context, rec model.AttemptRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := saveAttempt(ctx, tx, &rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func saveAttempt(ctx context.Context, tx pgx.Tx, rec *model.AttemptRecord) error {
	sessionID, err := uuid.Parse(rec.SessionID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO exam_attempts (session_id, exam_type, title, started_at, ended_at, end_reason,
		                            score, max_score, correct, incorrect, unattempted, accuracy, flag_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (session_id) DO NOTHING`,
		sessionID, rec.ExamType, rec.Title, rec.StartedAt, rec.EndedAt, rec.EndReason,
		rec.Score, rec.MaxScore, rec.Correct, rec.Incorrect, rec.Unattempted, rec.Accuracy, rec.FlagCount,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// already stored by an earlier flush
		return nil
	}

	rows := make([][]interface{}, 0, len(rec.Answers))
	for _, a := range rec.Answers {
		rows = append(rows, []interface{}{sessionID, a.QuestionID, a.Answer, a.Status, a.Verdict, a.TimeSpent})
	}
	_, err = tx.CopyFrom(
		ctx,
		pgx.Identifier{"attempt_answers"},
		[]string{"session_id", "question_id", "answer", "status", "verdict", "time_spent"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// ListAttempts returns the most recent attempts first.
func (r *AttemptRepository) ListAttempts(ctx context.Context, limit int) ([]model.AttemptSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, exam_type, title, started_at, ended_at, end_reason,
		        score, max_score, correct, incorrect, unattempted, accuracy, flag_count
		 FROM exam_attempts
		 ORDER BY ended_at DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.AttemptSummary
	for rows.Next() {
		var a model.AttemptSummary
		var sessionID uuid.UUID
		if err := rows.Scan(&sessionID, &a.ExamType, &a.Title, &a.StartedAt, &a.EndedAt, &a.EndReason,
			&a.Score, &a.MaxScore, &a.Correct, &a.Incorrect, &a.Unattempted, &a.Accuracy, &a.FlagCount); err != nil {
			return nil, err
		}
		a.SessionID = sessionID.String()
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// GetAttemptAnswers returns the stored answers of one attempt.
func (r *AttemptRepository) GetAttemptAnswers(ctx context.Context, sessionID string) ([]model.AttemptAnswer, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT question_id, answer, status, verdict, time_spent
		 FROM attempt_answers
		 WHERE session_id = $1
		 ORDER BY question_id`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.AttemptAnswer
	for rows.Next() {
		var a model.AttemptAnswer
		if err := rows.Scan(&a.QuestionID, &a.Answer, &a.Status, &a.Verdict, &a.TimeSpent); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
