package timectrl

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTimeControllerSetTime(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc, err := NewTimeController(start, start.AddDate(1, 0, 0), 24*time.Hour)
	if err != nil {
		t.Fatalf("NewTimeController: %v", err)
	}

	newNow := start.Add(42 * time.Hour)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestTimeControllerRunStepsToEnd(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	step := 3 * 24 * time.Hour
	tc, err := NewTimeController(start, start.Add(4*step), step)
	if err != nil {
		t.Fatalf("NewTimeController: %v", err)
	}

	var seen []Step
	tc.AddListener(func(_ context.Context, s Step) error {
		if !tc.Now().Equal(s.Start) {
			t.Fatalf("clock moved before listeners finished: now=%v start=%v", tc.Now(), s.Start)
		}
		seen = append(seen, s)
		return nil
	})

	if err := tc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(seen) != 4 {
		t.Fatalf("listener calls = %d, want 4", len(seen))
	}
	for i, s := range seen {
		if s.Index != i {
			t.Fatalf("step %d has index %d", i, s.Index)
		}
		if !s.Time.Equal(s.Start.Add(step)) {
			t.Fatalf("step %d event time = %v, want start+step", i, s.Time)
		}
	}
	if got := tc.Now(); !got.Equal(start.Add(4 * step)) {
		t.Fatalf("Now() = %v, want %v", got, start.Add(4*step))
	}
	if tc.Steps() != 4 {
		t.Fatalf("Steps() = %d, want 4", tc.Steps())
	}
}

func TestTimeControllerListenerErrorStopsRun(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc, _ := NewTimeController(start, start.AddDate(0, 1, 0), 24*time.Hour)
	boom := errors.New("boom")
	tc.AddListener(func(_ context.Context, s Step) error {
		if s.Index == 2 {
			return boom
		}
		return nil
	})

	if err := tc.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Run err = %v, want boom", err)
	}
	if tc.Steps() != 2 {
		t.Fatalf("Steps() = %d, want 2", tc.Steps())
	}
	if got := tc.Now(); !got.Equal(start.Add(48 * time.Hour)) {
		t.Fatalf("clock advanced past failed step: %v", got)
	}
}

func TestNewTimeControllerRejectsBadStep(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	if _, err := NewTimeController(start, start.AddDate(1, 0, 0), 0); err == nil {
		t.Fatalf("expected error for zero step")
	}
	if _, err := NewTimeController(start, start.AddDate(-1, 0, 0), time.Hour); err == nil {
		t.Fatalf("expected error for end before start")
	}
}
