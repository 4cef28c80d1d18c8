package pipeline

import (
	"context"
	"time"
)

// Poll defaults mirror the vendor queue behavior the stages were built
// against: thirty attempts, two seconds apart.
const (
	DefaultPollInterval    = 2 * time.Second
	DefaultPollMaxAttempts = 30
)

// PollState is the vendor-side status of an asynchronous job.
type PollState string

const (
	PollStateQueued     PollState = "queued"
	PollStateProcessing PollState = "processing"
	PollStateDone       PollState = "done"
	PollStateFailed     PollState = "failed"
)

// PollResult is one observation of an asynchronous vendor job. Output is
// set when State is done; Message when failed.
type PollResult struct {
	State   PollState
	Output  string
	Message string
}

// PollFunc performs one poll iteration. It reports done=true to stop
// polling successfully; returning an error stops polling immediately.
type PollFunc func(ctx context.Context) (done bool, err error)

// Poller runs a bounded, cancellable polling loop. Each iteration is a
// single suspension point; no concurrent polls are issued for one handle.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
}

// NewPoller returns a Poller with defaults applied for zero values.
func NewPoller(interval time.Duration, maxAttempts int) Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollMaxAttempts
	}
	return Poller{Interval: interval, MaxAttempts: maxAttempts}
}

// Wait invokes fn until it reports done, returns an error, the context is
// cancelled, or the attempt budget is exhausted. Exhaustion yields a
// vendor_timeout failure.
func (p Poller) Wait(ctx context.Context, fn PollFunc) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultPollMaxAttempts
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for attempt := 0; attempt < attempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		timer.Reset(interval)
	}
	return Timeout("polling attempts exhausted")
}
