package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Exam session ──────────────────────────────────────────────────
	ErrNoSession          ErrCode = "NO_SESSION"
	ErrSessionNotStarted  ErrCode = "SESSION_NOT_STARTED"
	ErrSessionRunning     ErrCode = "SESSION_RUNNING"
	ErrSessionEnded       ErrCode = "SESSION_ENDED"
	ErrSessionNotEnded    ErrCode = "SESSION_NOT_ENDED"
	ErrUnknownExamType    ErrCode = "UNKNOWN_EXAM_TYPE"
	ErrIndexOutOfRange    ErrCode = "INDEX_OUT_OF_RANGE"
	ErrUnknownQuestion    ErrCode = "UNKNOWN_QUESTION"
	ErrInvalidAnswer      ErrCode = "INVALID_ANSWER"
	ErrUnknownAction      ErrCode = "UNKNOWN_ACTION"
	ErrProctoringInactive ErrCode = "PROCTORING_INACTIVE"
	ErrUnknownSignal      ErrCode = "UNKNOWN_SIGNAL"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrSessionInvalidated:
		return "This session is no longer active. Start a new test."
	case ErrTokenRequired:
		return "A session token is required."
	case ErrTokenInvalid:
		return "The session token is invalid or expired."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Exam session ──────────────────────────────────────────────────
	case ErrNoSession:
		return "No test has been started yet."
	case ErrSessionNotStarted:
		return "The test has not started."
	case ErrSessionRunning:
		return "A test is already in progress."
	case ErrSessionEnded:
		return "The test has ended. Responses can no longer be changed."
	case ErrSessionNotEnded:
		return "Results are available once the test has been submitted."
	case ErrUnknownExamType:
		return "Unknown exam type."
	case ErrIndexOutOfRange:
		return "Question number is out of range."
	case ErrUnknownQuestion:
		return "Question not found in this test."
	case ErrInvalidAnswer:
		return "The answer is not valid for this question."
	case ErrUnknownAction:
		return "Unknown action."
	case ErrProctoringInactive:
		return "Proctoring is not active."
	case ErrUnknownSignal:
		return "Unknown proctoring signal."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
