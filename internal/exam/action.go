package exam

import "github.com/stemsi/exstem-mock/internal/model"

// Kind names a state transition.
type Kind string

const (
	KindStart         Kind = "start"
	KindTick          Kind = "tick"
	KindNavigate      Kind = "navigate"
	KindNext          Kind = "next"
	KindMarkAnswer    Kind = "mark_answer"
	KindClearResponse Kind = "clear_response"
	KindToggleReview  Kind = "toggle_review"
	KindChangeSubject Kind = "change_subject"
	KindFlagActivity  Kind = "flag_activity"
	KindEnd           Kind = "end"
)

// Action is one input to the reducer. Only the fields relevant to Kind are read.
type Action struct {
	Kind       Kind
	ExamType   model.ExamType
	Index      int
	QuestionID string
	Answer     string
	Subject    model.Subject
	Reason     string
}

// Outcome describes the effect of an applied action.
type Outcome struct {
	// Changed is false when the action was accepted as a no-op.
	Changed bool
	// Ended is true only for the action that moved the session into the ended phase.
	Ended     bool
	EndReason model.EndReason
}

func Start(t model.ExamType) Action { return Action{Kind: KindStart, ExamType: t} }
func Tick() Action                  { return Action{Kind: KindTick} }
func Navigate(index int) Action     { return Action{Kind: KindNavigate, Index: index} }
func Next() Action                  { return Action{Kind: KindNext} }
func End() Action                   { return Action{Kind: KindEnd} }

func MarkAnswer(questionID, answer string) Action {
	return Action{Kind: KindMarkAnswer, QuestionID: questionID, Answer: answer}
}

func ClearResponse(questionID string) Action {
	return Action{Kind: KindClearResponse, QuestionID: questionID}
}

func ToggleReview(questionID string) Action {
	return Action{Kind: KindToggleReview, QuestionID: questionID}
}

func ChangeSubject(s model.Subject) Action {
	return Action{Kind: KindChangeSubject, Subject: s}
}

func FlagActivity(reason string) Action {
	return Action{Kind: KindFlagActivity, Reason: reason}
}
