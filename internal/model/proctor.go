package model

import "time"

// ProctorSignal is an environment event observed by the client.
type ProctorSignal string

const (
	SignalCameraDenied     ProctorSignal = "camera_denied"
	SignalVisibilityHidden ProctorSignal = "visibility_hidden"
	SignalFullscreenExit   ProctorSignal = "fullscreen_exit"
)

// Valid reports whether s is a known signal.
func (s ProctorSignal) Valid() bool {
	return s == SignalCameraDenied || s == SignalVisibilityHidden || s == SignalFullscreenExit
}

// Warning is a transient, auto-expiring proctoring notice.
type Warning struct {
	Signal    ProctorSignal `json:"signal"`
	Message   string        `json:"message"`
	RaisedAt  time.Time     `json:"raised_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// FlagEvent is a flagged activity queued for persistence.
type FlagEvent struct {
	SessionID  string    `json:"session_id"`
	Reason     string    `json:"reason"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ProctorState summarises the collector for the candidate.
type ProctorState struct {
	Active        bool      `json:"is_proctoring_active"`
	CameraChecked bool      `json:"camera_checked"`
	CameraBlocked bool      `json:"camera_blocked"`
	FlagCount     int       `json:"cheating_flags"`
	Warnings      []Warning `json:"warnings"`
}

// SignalRequest reports a proctoring signal.
type SignalRequest struct {
	Signal ProctorSignal `json:"signal" binding:"required,signal"`
}

// CameraCheckRequest reports the result of the camera/microphone permission request.
type CameraCheckRequest struct {
	Granted *bool  `json:"granted" binding:"required"`
	Detail  string `json:"detail" binding:"max=255"`
}
