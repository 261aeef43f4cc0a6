package scan

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// pacer bounds the request rate of the sweep.
type pacer interface {
	Wait(ctx context.Context) error
}

// newPacer builds a token-bucket pacer releasing one probe per delay.
// Skipped candidates never draw a token, so resumed runs fast-forward
// through confirmed PINs at full speed. A non-positive delay disables
// pacing.
func newPacer(delay time.Duration) pacer {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// pauseController abstracts how the sweep backs off when the target
// throttles or the network fails.
type pauseController interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauseController struct{}

func (p *timerPauseController) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
