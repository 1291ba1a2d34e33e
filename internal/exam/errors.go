package exam

import "errors"

var (
	ErrSessionNotStarted = errors.New("exam session has not been started")
	ErrSessionEnded      = errors.New("exam session has ended")
	ErrSessionRunning    = errors.New("exam session is already running")
	ErrIndexOutOfRange   = errors.New("question index out of range")
	ErrUnknownQuestion   = errors.New("unknown question")
	ErrInvalidAnswer     = errors.New("invalid answer for question type")
	ErrUnknownExamType   = errors.New("unknown exam type")
	ErrUnknownAction     = errors.New("unknown action")
	ErrInvalidDuration   = errors.New("exam duration must be at least one second")
)
