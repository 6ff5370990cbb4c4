package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestEveryFires(t *testing.T) {
	s := New(nil)
	defer s.Stop(context.Background())

	var fired atomic.Int32
	if err := s.Every(SlotDemoTick, 10*time.Millisecond, func() {
		fired.Add(1)
	}); err != nil {
		t.Fatalf("Every failed: %v", err)
	}
	s.Start()

	deadline := time.After(2 * time.Second)
	for fired.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("fired %d times, want at least 2", fired.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestEveryReplacesExistingSlot(t *testing.T) {
	s := New(nil)
	defer s.Stop(context.Background())

	var first, second atomic.Int32
	if err := s.Every(SlotChart, 10*time.Millisecond, func() { first.Add(1) }); err != nil {
		t.Fatalf("Every failed: %v", err)
	}
	// Re-arming the same slot must disarm the first timer, not add a second.
	if err := s.Every(SlotChart, 10*time.Millisecond, func() { second.Add(1) }); err != nil {
		t.Fatalf("Every (replace) failed: %v", err)
	}
	s.Start()

	deadline := time.After(2 * time.Second)
	for second.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("replacement fired %d times, want at least 2", second.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	if first.Load() != 0 {
		t.Errorf("replaced timer fired %d times, want 0", first.Load())
	}
}

func TestCancelDisarmsSlot(t *testing.T) {
	s := New(nil)
	defer s.Stop(context.Background())
	s.Start()

	var fired atomic.Int32
	if err := s.Every(SlotDashboard, 10*time.Millisecond, func() { fired.Add(1) }); err != nil {
		t.Fatalf("Every failed: %v", err)
	}
	if !s.Active(SlotDashboard) {
		t.Fatal("Active = false for armed slot")
	}

	s.Cancel(SlotDashboard)
	if s.Active(SlotDashboard) {
		t.Fatal("Active = true after Cancel")
	}

	count := fired.Load()
	time.Sleep(50 * time.Millisecond)
	if fired.Load() != count {
		t.Errorf("slot fired after Cancel (%d -> %d)", count, fired.Load())
	}

	// Cancelling again is a no-op.
	s.Cancel(SlotDashboard)
}

func TestStopTearsDownAllSlots(t *testing.T) {
	s := New(nil)
	s.Start()

	var fired atomic.Int32
	for _, name := range []string{SlotDashboard, SlotChart, SlotDemoTick} {
		if err := s.Every(name, 10*time.Millisecond, func() { fired.Add(1) }); err != nil {
			t.Fatalf("Every(%s) failed: %v", name, err)
		}
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	count := fired.Load()
	time.Sleep(50 * time.Millisecond)
	if fired.Load() != count {
		t.Errorf("slots fired after Stop (%d -> %d)", count, fired.Load())
	}

	if err := s.Every(SlotChart, 10*time.Millisecond, func() {}); err == nil {
		t.Error("Every succeeded on a stopped scheduler")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
}
