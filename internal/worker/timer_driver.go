package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Ticker receives one call per period. Returning false stops the driver.
// ctx is cancelled once the loop that issued the tick has been stopped or re-armed.
type Ticker interface {
	Tick(ctx context.Context) bool
}

// TimerDriver fires Tick at a fixed period while armed.
type TimerDriver struct {
	interval time.Duration
	target   Ticker
	log      zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTimerDriver(interval time.Duration, target Ticker, log zerolog.Logger) *TimerDriver {
	return &TimerDriver{
		interval: interval,
		target:   target,
		log:      log.With().Str("component", "timer_driver").Logger(),
	}
}

// Arm starts a fresh loop, cancelling any previous one.
func (d *TimerDriver) Arm(parent context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	d.cancel = cancel
	d.done = done

	go d.loop(ctx, done)
}

func (d *TimerDriver) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(d.interval)
	defer t.Stop()

	d.log.Debug().Dur("interval", d.interval).Msg("Timer armed")
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !d.target.Tick(ctx) {
				d.log.Debug().Msg("Timer stopped by target")
				return
			}
		}
	}
}

// Stop cancels the current loop without waiting for it, so it is safe to call from inside Tick.
func (d *TimerDriver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// Running reports whether a loop is still alive.
func (d *TimerDriver) Running() bool {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Wait blocks until the current loop has exited. Never call it from inside Tick.
func (d *TimerDriver) Wait() {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	if done != nil {
		<-done
	}
}
