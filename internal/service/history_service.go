package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	defaultHistoryLimit = 20
	exportHistoryLimit  = 200
	historySheet        = "Attempts"
)

// AttemptReader reads persisted attempts. *repository.AttemptRepository implements it.
type AttemptReader interface {
	ListAttempts(ctx context.Context, limit int) ([]model.AttemptSummary, error)
	GetAttemptAnswers(ctx context.Context, sessionID string) ([]model.AttemptAnswer, error)
}

// HistoryService serves the attempt history persisted by the result worker.
type HistoryService struct {
	repo AttemptReader
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(repo AttemptReader) *HistoryService {
	return &HistoryService{repo: repo}
}

// List returns the most recent attempts. A non-positive limit uses the default.
func (s *HistoryService) List(ctx context.Context, limit int) ([]model.AttemptSummary, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	attempts, err := s.repo.ListAttempts(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	if attempts == nil {
		attempts = []model.AttemptSummary{}
	}
	return attempts, nil
}

// Answers returns the stored answers of one attempt.
func (s *HistoryService) Answers(ctx context.Context, sessionID string) ([]model.AttemptAnswer, error) {
	answers, err := s.repo.GetAttemptAnswers(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if answers == nil {
		answers = []model.AttemptAnswer{}
	}
	return answers, nil
}

var historyHeader = []interface{}{
	"Session ID", "Exam Type", "Title", "Started At", "Ended At", "End Reason",
	"Score", "Max Score", "Correct", "Incorrect", "Unattempted", "Accuracy (%)", "Flags",
}

// Export renders the recent attempts as an xlsx workbook.
func (s *HistoryService) Export(ctx context.Context) (*bytes.Buffer, error) {
	attempts, err := s.List(ctx, exportHistoryLimit)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(historySheet, "A1", &historyHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, a := range attempts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{
			a.SessionID, string(a.ExamType), a.Title,
			a.StartedAt.Format("2006-01-02 15:04:05"), a.EndedAt.Format("2006-01-02 15:04:05"),
			string(a.EndReason), a.Score, a.MaxScore, a.Correct, a.Incorrect, a.Unattempted,
			a.Accuracy, a.FlagCount,
		}
		if err := f.SetSheetRow(historySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}
