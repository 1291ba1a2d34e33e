package model

import "time"

// AttemptRecord is the result payload queued for persistence when a session ends.
type AttemptRecord struct {
	SessionID   string          `json:"session_id"`
	ExamType    ExamType        `json:"exam_type"`
	Title       string          `json:"title"`
	StartedAt   time.Time       `json:"started_at"`
	EndedAt     time.Time       `json:"ended_at"`
	EndReason   EndReason       `json:"end_reason"`
	Score       int             `json:"score"`
	MaxScore    int             `json:"max_score"`
	Correct     int             `json:"correct"`
	Incorrect   int             `json:"incorrect"`
	Unattempted int             `json:"unattempted"`
	Accuracy    float64         `json:"accuracy"`
	FlagCount   int             `json:"flag_count"`
	Answers     []AttemptAnswer `json:"answers"`
}

// AttemptAnswer is one persisted answer row.
type AttemptAnswer struct {
	QuestionID string         `json:"question_id"`
	Answer     *string        `json:"answer"`
	Status     QuestionStatus `json:"status"`
	Verdict    Verdict        `json:"verdict"`
	TimeSpent  int            `json:"time_spent"`
}

// AttemptSummary is a row of the attempt history.
type AttemptSummary struct {
	SessionID   string    `json:"session_id"`
	ExamType    ExamType  `json:"exam_type"`
	Title       string    `json:"title"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	EndReason   EndReason `json:"end_reason"`
	Score       int       `json:"score"`
	MaxScore    int       `json:"max_score"`
	Correct     int       `json:"correct"`
	Incorrect   int       `json:"incorrect"`
	Unattempted int       `json:"unattempted"`
	Accuracy    float64   `json:"accuracy"`
	FlagCount   int       `json:"flag_count"`
}

// HistoryQuery pages through the attempt history.
type HistoryQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}
