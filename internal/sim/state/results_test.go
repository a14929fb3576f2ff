package state

import (
	"fmt"
	"sync"
	"testing"
)

func TestResultStore_PutGet(t *testing.T) {
	s := NewResultStore()
	in := &RunResult{Location: "Kenya", Draw: 3, Metrics: map[string]float64{"x": 1}}
	if err := s.Put(in); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// The store keeps its own copy.
	in.Metrics["x"] = 99
	out := s.Get("Kenya", 3)
	if out == nil {
		t.Fatalf("expected stored result")
	}
	if out.Metrics["x"] != 1 {
		t.Fatalf("stored metrics mutated through caller: %v", out.Metrics["x"])
	}

	// And hands out copies.
	out.Metrics["x"] = 42
	if again := s.Get("Kenya", 3); again.Metrics["x"] != 1 {
		t.Fatalf("returned metrics alias store: %v", again.Metrics["x"])
	}

	if s.Get("Kenya", 4) != nil {
		t.Fatalf("expected nil for missing draw")
	}
}

func TestResultStore_PutValidation(t *testing.T) {
	s := NewResultStore()
	if err := s.Put(nil); err == nil {
		t.Fatalf("expected error for nil result")
	}
	if err := s.Put(&RunResult{Draw: 1}); err == nil {
		t.Fatalf("expected error for missing location")
	}
}

func TestResultStore_ListOrderAndFailures(t *testing.T) {
	s := NewResultStore()
	_ = s.Put(&RunResult{Location: "Mali", Draw: 0})
	_ = s.Put(&RunResult{Location: "Kenya", Draw: 2, Error: "boom"})
	_ = s.Put(&RunResult{Location: "Kenya", Draw: 1})

	list := s.List()
	if len(list) != 3 {
		t.Fatalf("List len = %d, want 3", len(list))
	}
	got := fmt.Sprintf("%s/%d %s/%d %s/%d", list[0].Location, list[0].Draw, list[1].Location, list[1].Draw, list[2].Location, list[2].Draw)
	if got != "Kenya/1 Kenya/2 Mali/0" {
		t.Fatalf("List order = %s", got)
	}
	if s.Failures() != 1 {
		t.Fatalf("Failures = %d, want 1", s.Failures())
	}
}

func TestResultStore_ConcurrentPut(t *testing.T) {
	s := NewResultStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(draw int) {
			defer wg.Done()
			_ = s.Put(&RunResult{Location: "Kenya", Draw: draw})
			_ = s.List()
		}(i)
	}
	wg.Wait()
	if s.Len() != 50 {
		t.Fatalf("Len = %d, want 50", s.Len())
	}
}
