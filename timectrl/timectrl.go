package timectrl

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SimClock is an interface for accessing simulation time. Components depend
// on this rather than on a concrete TimeController.
type SimClock interface {
	// Now returns the current simulation time (the start of the step being
	// processed).
	Now() time.Time
	// StepSize returns the length of one simulation step.
	StepSize() time.Duration
}

// Step describes one advance of the clock.
type Step struct {
	// Index is the zero-based step number.
	Index int
	// Start is the clock time when the step begins.
	Start time.Time
	// Time is the event time of the step, Start + Size. Dose events are
	// stamped with this time.
	Time time.Time
	Size time.Duration
}

// Listener is invoked once per step, in registration order.
type Listener func(ctx context.Context, step Step) error

// TimeController drives simulation time in fixed steps and notifies
// registered listeners synchronously. It implements SimClock.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	EndTime   time.Time
	Tick      time.Duration

	// currentTime tracks the current simulation time. It is updated after all
	// listeners for a step have returned.
	currentTime time.Time
	steps       int

	listeners []Listener
}

// NewTimeController constructs a controller running from start until end.
func NewTimeController(start, end time.Time, tick time.Duration) (*TimeController, error) {
	if tick <= 0 {
		return nil, fmt.Errorf("timectrl: step size must be positive, got %s", tick)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("timectrl: end %s before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return &TimeController{
		StartTime:   start,
		EndTime:     end,
		Tick:        tick,
		currentTime: start,
	}, nil
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// StepSize returns the configured step. Implements SimClock.
func (tc *TimeController) StepSize() time.Duration {
	return tc.Tick
}

// SetTime moves the clock. Intended for tests and for restoring a run.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}

// Steps returns how many steps have completed.
func (tc *TimeController) Steps() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.steps
}

// Done reports whether the clock has reached EndTime.
func (tc *TimeController) Done() bool {
	return !tc.Now().Before(tc.EndTime)
}

// AddListener registers a callback invoked on every step.
func (tc *TimeController) AddListener(fn Listener) {
	tc.listeners = append(tc.listeners, fn)
}

// Advance runs a single step: every listener sees the same Step, then the
// clock moves to the step's event time. A listener error stops the step and
// leaves the clock where it was.
func (tc *TimeController) Advance(ctx context.Context) (Step, error) {
	tc.mu.RLock()
	step := Step{
		Index: tc.steps,
		Start: tc.currentTime,
		Time:  tc.currentTime.Add(tc.Tick),
		Size:  tc.Tick,
	}
	tc.mu.RUnlock()

	for _, fn := range tc.listeners {
		if err := fn(ctx, step); err != nil {
			return step, err
		}
	}

	tc.mu.Lock()
	tc.currentTime = step.Time
	tc.steps++
	tc.mu.Unlock()
	return step, nil
}

// Run advances the clock until it reaches EndTime. Cancellation is only
// observed between steps so a step is never left half-applied.
func (tc *TimeController) Run(ctx context.Context) error {
	for !tc.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := tc.Advance(ctx); err != nil {
			return err
		}
	}
	return nil
}
