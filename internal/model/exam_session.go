package model

import (
	"fmt"
	"strings"
	"time"
)

// ExamType selects the mock test flavour.
type ExamType string

const (
	ExamTypeJEEMain     ExamType = "JEE_MAIN"
	ExamTypeJEEAdvanced ExamType = "JEE_ADVANCED"
	ExamTypeNEET        ExamType = "NEET"
	ExamTypeCustom      ExamType = "CUSTOM"
)

// ExamTypes lists the selectable exam types.
var ExamTypes = []ExamType{ExamTypeJEEMain, ExamTypeJEEAdvanced, ExamTypeNEET, ExamTypeCustom}

// Valid reports whether t is a known exam type.
func (t ExamType) Valid() bool {
	for _, known := range ExamTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Title renders the session title, e.g. "JEE MAIN Mock Test".
func (t ExamType) Title() string {
	return strings.Replace(string(t), "_", " ", 1) + " Mock Test"
}

// SessionPhase enumerates the exam session states.
type SessionPhase string

const (
	PhaseIdle    SessionPhase = "idle"
	PhaseRunning SessionPhase = "running"
	PhaseEnded   SessionPhase = "ended"
)

// EndReason records why a session left the running phase.
type EndReason string

const (
	EndReasonSubmitted   EndReason = "submitted"
	EndReasonTimeExpired EndReason = "time_expired"
)

// SessionSnapshot is a detached copy of the exam session aggregate.
// Scoring and AI analysis read only snapshots.
type SessionSnapshot struct {
	ID               string                `json:"id"`
	Title            string                `json:"title"`
	ExamType         ExamType              `json:"exam_type"`
	Phase            SessionPhase          `json:"phase"`
	Active           bool                  `json:"is_active"`
	TotalTime        int                   `json:"total_time"`
	TimeLeft         int                   `json:"time_left"`
	CurrentIndex     int                   `json:"current_question_index"`
	Answers          map[string]UserAnswer `json:"user_answers"`
	StartedAt        time.Time             `json:"start_time"`
	EndedAt          *time.Time            `json:"ended_at,omitempty"`
	EndReason        EndReason             `json:"end_reason,omitempty"`
	ProctoringActive bool                  `json:"is_proctoring_active"`
	FlagCount        int                   `json:"cheating_flags"`
	Questions        []Question            `json:"-"`
}

// CurrentQuestion returns the addressed question, or false for an empty snapshot.
func (s *SessionSnapshot) CurrentQuestion() (Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// StatusCounts tallies the palette legend.
func (s *SessionSnapshot) StatusCounts() map[QuestionStatus]int {
	counts := make(map[QuestionStatus]int, len(Statuses))
	for _, st := range Statuses {
		counts[st] = 0
	}
	for _, ua := range s.Answers {
		counts[ua.Status]++
	}
	return counts
}

// SessionView is the candidate-facing rendering of a snapshot.
type SessionView struct {
	ID               string                 `json:"id"`
	Title            string                 `json:"title"`
	ExamType         ExamType               `json:"exam_type"`
	Phase            SessionPhase           `json:"phase"`
	Active           bool                   `json:"is_active"`
	TotalTime        int                    `json:"total_time"`
	TimeLeft         int                    `json:"time_left"`
	Clock            string                 `json:"clock"`
	CurrentIndex     int                    `json:"current_question_index"`
	CurrentQuestion  *QuestionForCandidate  `json:"current_question,omitempty"`
	CurrentSubject   Subject                `json:"current_subject,omitempty"`
	Answers          map[string]UserAnswer  `json:"user_answers"`
	StatusCounts     map[QuestionStatus]int `json:"status_counts"`
	Questions        []QuestionForCandidate `json:"questions"`
	StartedAt        time.Time              `json:"start_time"`
	EndReason        EndReason              `json:"end_reason,omitempty"`
	ProctoringActive bool                   `json:"is_proctoring_active"`
	FlagCount        int                    `json:"cheating_flags"`
	CameraBlocked    bool                   `json:"camera_blocked"`
}

// View renders the snapshot for the candidate. Answer keys never leave the server here.
func (s *SessionSnapshot) View() SessionView {
	v := SessionView{
		ID:               s.ID,
		Title:            s.Title,
		ExamType:         s.ExamType,
		Phase:            s.Phase,
		Active:           s.Active,
		TotalTime:        s.TotalTime,
		TimeLeft:         s.TimeLeft,
		Clock:            FormatClock(s.TimeLeft),
		CurrentIndex:     s.CurrentIndex,
		Answers:          s.Answers,
		StatusCounts:     s.StatusCounts(),
		Questions:        make([]QuestionForCandidate, 0, len(s.Questions)),
		StartedAt:        s.StartedAt,
		EndReason:        s.EndReason,
		ProctoringActive: s.ProctoringActive,
		FlagCount:        s.FlagCount,
	}
	for _, q := range s.Questions {
		v.Questions = append(v.Questions, q.ForCandidate())
	}
	if q, ok := s.CurrentQuestion(); ok {
		fc := q.ForCandidate()
		v.CurrentQuestion = &fc
		v.CurrentSubject = q.Subject
	}
	return v
}

// FormatClock renders seconds as HH:MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

// StartExamRequest is the payload for starting a session.
type StartExamRequest struct {
	ExamType ExamType `json:"exam_type" binding:"required,exam_type"`
}

// NavigateRequest jumps to a question by palette index.
type NavigateRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}

// AnswerRequest stores an answer for a question.
type AnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,max=64"`
	Answer     string `json:"answer" binding:"max=64"`
}

// QuestionRequest addresses a single question (clear, review).
type QuestionRequest struct {
	QuestionID string `json:"question_id" binding:"required,max=64"`
}

// ChangeSubjectRequest moves to the first question of a section.
type ChangeSubjectRequest struct {
	Subject Subject `json:"subject" binding:"required,subject"`
}
