package model

// QuestionStatus is the palette state of a question.
type QuestionStatus string

const (
	StatusNotVisited                 QuestionStatus = "not_visited"
	StatusNotAnswered                QuestionStatus = "not_answered"
	StatusAnswered                   QuestionStatus = "answered"
	StatusMarkedForReview            QuestionStatus = "marked_for_review"
	StatusAnsweredAndMarkedForReview QuestionStatus = "answered_and_marked_for_review"
)

// Statuses lists every status in legend order.
var Statuses = []QuestionStatus{
	StatusNotVisited,
	StatusNotAnswered,
	StatusAnswered,
	StatusMarkedForReview,
	StatusAnsweredAndMarkedForReview,
}

// DeriveStatus is the only place a visited question's status is computed.
//
//	answer  review  status
//	no      no      not_answered
//	no      yes     marked_for_review
//	yes     no      answered
//	yes     yes     answered_and_marked_for_review
func DeriveStatus(hasAnswer, markedForReview bool) QuestionStatus {
	switch {
	case hasAnswer && markedForReview:
		return StatusAnsweredAndMarkedForReview
	case hasAnswer:
		return StatusAnswered
	case markedForReview:
		return StatusMarkedForReview
	default:
		return StatusNotAnswered
	}
}

// UserAnswer is the per-question record of what the candidate entered.
type UserAnswer struct {
	QuestionID      string         `json:"question_id"`
	Answer          *string        `json:"answer"`
	Status          QuestionStatus `json:"status"`
	TimeSpent       int            `json:"time_spent"`
	MarkedForReview bool           `json:"is_marked_for_review"`
}

// NewUserAnswer returns the initial record created at session start.
func NewUserAnswer(questionID string) UserAnswer {
	return UserAnswer{QuestionID: questionID, Status: StatusNotVisited}
}

// HasAnswer reports whether a non-empty answer is stored. An empty string counts as absent.
func (ua UserAnswer) HasAnswer() bool {
	return ua.Answer != nil && *ua.Answer != ""
}

// AnswerValue returns the stored answer or "" when absent.
func (ua UserAnswer) AnswerValue() string {
	if ua.Answer == nil {
		return ""
	}
	return *ua.Answer
}

// Consistent reports whether Status agrees with (HasAnswer, MarkedForReview).
// A not-visited record must carry neither an answer nor a review flag.
func (ua UserAnswer) Consistent() bool {
	if ua.Status == StatusNotVisited {
		return !ua.HasAnswer() && !ua.MarkedForReview
	}
	return ua.Status == DeriveStatus(ua.HasAnswer(), ua.MarkedForReview)
}
