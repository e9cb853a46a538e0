package readiness

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

const (
	DefaultMaxWait  = 120 * time.Second
	DefaultInterval = 2 * time.Second
)

// Status is the state of the gate
type Status int

const (
	Polling Status = iota
	Ready
	TimedOut
)

func (s Status) String() string {
	switch s {
	case Polling:
		return "polling"
	case Ready:
		return "ready"
	case TimedOut:
		return "timedOut"
	default:
		return "unknown"
	}
}

// Result of a gate run. Err holds the last probe failure, or the context
// error when the wait was interrupted, and is diagnostic only.
type Result struct {
	Status   Status
	Elapsed  time.Duration
	Attempts int
	Err      error
}

// Gate polls a probe until it succeeds or MaxWait elapses
type Gate struct {
	Probe    Probe
	Clock    Clock
	Interval time.Duration
	MaxWait  time.Duration
	Logger   *log.Logger
}

func NewGate(probe Probe) *Gate {
	return &Gate{
		Probe:    probe,
		Clock:    RealClock(),
		Interval: DefaultInterval,
		MaxWait:  DefaultMaxWait,
	}
}

// WaitUntilReady never touches disk and never returns an error: a timeout
// is reported through Result.Status.
func (g *Gate) WaitUntilReady(ctx context.Context, target string) Result {
	clock := g.Clock
	if clock == nil {
		clock = RealClock()
	}
	interval := g.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxWait := g.MaxWait
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	start := clock.Now()
	result := Result{Status: Polling}

	for result.Status == Polling {
		result.Elapsed = clock.Now().Sub(start)

		if err := ctx.Err(); err != nil {
			result.Status = TimedOut
			result.Err = err
			break
		}
		if result.Elapsed >= maxWait {
			result.Status = TimedOut
			break
		}

		result.Attempts++
		err := g.Probe.Check(ctx, target)
		if err == nil {
			result.Status = Ready
			result.Err = nil
			result.Elapsed = clock.Now().Sub(start)
			break
		}
		result.Err = err
		g.debug("probe not ready", "url", target, "attempt", result.Attempts, "err", err)

		wait := interval
		if remaining := maxWait - clock.Now().Sub(start); remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
		case <-clock.After(wait):
		}
	}

	return result
}

func (g *Gate) debug(msg string, keyvals ...interface{}) {
	if g.Logger != nil {
		g.Logger.Debug(msg, keyvals...)
	}
}
