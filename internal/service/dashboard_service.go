package service

import (
	"fmt"
	"time"

	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/stemsi/exstem-mock/internal/questionbank"
	"github.com/stemsi/exstem-mock/internal/scoring"
)

// DashboardService builds the selection and instructions screen.
type DashboardService struct {
	bank      *questionbank.Bank
	candidate model.Candidate
	duration  time.Duration
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(bank *questionbank.Bank, candidate model.Candidate, duration time.Duration) *DashboardService {
	return &DashboardService{bank: bank, candidate: candidate, duration: duration}
}

// GetDashboardData returns the candidate profile, exam types and rules.
func (s *DashboardService) GetDashboardData() *model.Dashboard {
	return &model.Dashboard{
		Candidate:       s.candidate,
		ExamTypes:       model.ExamTypes,
		Subjects:        s.bank.Subjects(),
		QuestionCount:   s.bank.Len(),
		DurationSeconds: int(s.duration / time.Second),
		MarkingScheme:   fmt.Sprintf("+%d for a correct answer, %d for an incorrect answer, 0 if not attempted", scoring.CorrectMarks, scoring.IncorrectMarks),
		Rules:           model.ExamRules,
	}
}
