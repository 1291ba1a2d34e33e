// Package proctor collects advisory integrity signals during an exam.
// Signals never change score, status or submission; they only raise the
// session's flag counter and a short-lived warning.
package proctor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/exam"
	"github.com/stemsi/exstem-mock/internal/metrics"
	"github.com/stemsi/exstem-mock/internal/model"
)

var ErrUnknownSignal = errors.New("unknown proctoring signal")

// Flag reasons recorded on the session.
const (
	ReasonCameraDenied   = "Camera Access Denied"
	ReasonTabSwitch      = "Tab Switch"
	ReasonFullscreenExit = "Fullscreen Exit"
)

var signals = map[model.ProctorSignal]struct {
	reason  string
	message string
}{
	model.SignalCameraDenied:     {ReasonCameraDenied, "Camera access denied!"},
	model.SignalVisibilityHidden: {ReasonTabSwitch, "Tab switch detected!"},
	model.SignalFullscreenExit:   {ReasonFullscreenExit, "Exited full-screen mode!"},
}

// Flagger records a flagged activity on the session. *exam.Machine implements it.
type Flagger interface {
	FlagActivity(reason string) (exam.Outcome, error)
}

// Sink receives every flag for persistence. Failures are logged, never returned.
type Sink interface {
	Enqueue(ctx context.Context, ev model.FlagEvent) error
}

type Options struct {
	WarningTTL  time.Duration
	MaxWarnings int
	Now         func() time.Time
}

// Collector turns environment signals into flags and expiring warnings.
type Collector struct {
	mu sync.Mutex

	flagger Flagger
	sink    Sink
	ttl     time.Duration
	max     int
	now     func() time.Time
	log     zerolog.Logger

	warnings      []model.Warning
	cameraChecked bool
	cameraBlocked bool
}

func NewCollector(flagger Flagger, sink Sink, opts Options, log zerolog.Logger) *Collector {
	if opts.WarningTTL <= 0 {
		opts.WarningTTL = 5 * time.Second
	}
	if opts.MaxWarnings <= 0 {
		opts.MaxWarnings = 3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Collector{
		flagger: flagger,
		sink:    sink,
		ttl:     opts.WarningTTL,
		max:     opts.MaxWarnings,
		now:     opts.Now,
		log:     log.With().Str("component", "proctor").Logger(),
	}
}

// Reset forgets warnings and the camera check for a new session.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = nil
	c.cameraChecked = false
	c.cameraBlocked = false
}

// Observe records one signal for sessionID and returns the warning raised for it.
func (c *Collector) Observe(ctx context.Context, sessionID string, sig model.ProctorSignal) (model.Warning, error) {
	def, ok := signals[sig]
	if !ok {
		return model.Warning{}, fmt.Errorf("%w: %q", ErrUnknownSignal, sig)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.flagger.FlagActivity(def.reason); err != nil {
		return model.Warning{}, err
	}
	if sig == model.SignalCameraDenied {
		c.cameraChecked = true
		c.cameraBlocked = true
	}

	now := c.now()
	w := model.Warning{
		Signal:    sig,
		Message:   fmt.Sprintf("%s at %s", def.message, now.Format("15:04:05")),
		RaisedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}
	c.warnings = append(c.prune(now), w)
	if len(c.warnings) > c.max {
		c.warnings = c.warnings[len(c.warnings)-c.max:]
	}

	metrics.ProctorFlags.WithLabelValues(def.reason).Inc()
	c.log.Warn().Str("session_id", sessionID).Str("reason", def.reason).Msg("Proctoring activity flagged")

	if c.sink != nil {
		ev := model.FlagEvent{SessionID: sessionID, Reason: def.reason, RecordedAt: now}
		if err := c.sink.Enqueue(ctx, ev); err != nil {
			c.log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to enqueue proctoring flag")
		}
	}
	return w, nil
}

// CameraCheck records the once-per-session camera permission result.
// A denial flags the session and blocks the preview; later calls are no-ops.
func (c *Collector) CameraCheck(ctx context.Context, sessionID string, granted bool) (flagged bool, err error) {
	c.mu.Lock()
	if c.cameraChecked {
		c.mu.Unlock()
		return false, nil
	}
	c.cameraChecked = true
	c.mu.Unlock()

	if granted {
		return false, nil
	}
	if _, err := c.Observe(ctx, sessionID, model.SignalCameraDenied); err != nil {
		c.mu.Lock()
		c.cameraChecked = false
		c.mu.Unlock()
		return false, err
	}
	return true, nil
}

// Warnings returns the warnings that have not expired yet, oldest first.
func (c *Collector) Warnings() []model.Warning {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = c.prune(c.now())
	return append([]model.Warning{}, c.warnings...)
}

// CameraBlocked reports whether the camera preview should show the blocked placeholder.
func (c *Collector) CameraBlocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cameraBlocked
}

// State summarises the collector together with session-owned fields.
func (c *Collector) State(active bool, flagCount int) model.ProctorState {
	warnings := c.Warnings()
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.ProctorState{
		Active:        active,
		CameraChecked: c.cameraChecked,
		CameraBlocked: c.cameraBlocked,
		FlagCount:     flagCount,
		Warnings:      warnings,
	}
}

func (c *Collector) prune(now time.Time) []model.Warning {
	kept := c.warnings[:0]
	for _, w := range c.warnings {
		if now.Before(w.ExpiresAt) {
			kept = append(kept, w)
		}
	}
	return kept
}
