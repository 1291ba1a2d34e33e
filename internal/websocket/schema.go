package websocket

import (
	"encoding/json"

	"github.com/stemsi/exstem-mock/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionNavigate Action = "navigate"
	ActionNext     Action = "next"
	ActionAnswer   Action = "answer"
	ActionClear    Action = "clear"
	ActionReview   Action = "review"
	ActionSubject  Action = "subject"
	ActionSignal   Action = "signal"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload carries every client action; fields not used by an action are ignored.
type RequestPayload struct {
	Action     Action              `json:"action"`
	Index      *int                `json:"index,omitempty"`
	QuestionID string              `json:"question_id,omitempty"`
	Answer     string              `json:"answer,omitempty"`
	Subject    model.Subject       `json:"subject,omitempty"`
	Signal     model.ProctorSignal `json:"signal,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState   Event = "state"
	EventProctor Event = "proctor"
	EventError   Event = "error"
	EventPong    Event = "pong"
)

// StateResponse carries a session view, either as an action reply or a pushed timer update.
type StateResponse struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type ProctorResponse struct {
	Event Event              `json:"event"`
	Data  model.ProctorState `json:"data"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
