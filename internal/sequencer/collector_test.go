package sequencer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// ─── Test Helpers ───────────────────────────────────────────────────────────

// recordingLogger captures log calls by level.
type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+": "+msg)
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.record("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.record("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.record("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.record("error", msg) }

func (l *recordingLogger) count(prefix string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// fakeClock is a settable clock in epoch seconds.
type fakeClock struct {
	mu  sync.Mutex
	now float64
}

func (c *fakeClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// ─── Collector ──────────────────────────────────────────────────────────────

func TestCollector_AddEvent(t *testing.T) {
	tests := []struct {
		name      string
		floor     float64
		times     []float64
		wantTime  float64
		wantBatch []int // indexes into times, in firing order
	}{
		{"single", 0, []float64{5}, 5, []int{0}},
		{"earlier replaces", 0, []float64{5, 3}, 3, []int{1}},
		{"later discarded", 0, []float64{3, 5}, 3, []int{0}},
		{"ties bucket", 0, []float64{4, 4, 4}, 4, []int{0, 1, 2}},
		{"at floor discarded", 10, []float64{10, 12}, 12, []int{1}},
		{"before floor discarded", 10, []float64{9, 11, 11}, 11, []int{1, 2}},
		{"tie then earlier", 0, []float64{4, 4, 2, 4, 2}, 2, []int{2, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCollector(tt.floor)
			var fired []int
			for i, at := range tt.times {
				i := i
				c.AddEvent(at, func() { fired = append(fired, i) })
			}

			got, ok := c.EventTime()
			if !ok {
				t.Fatal("expected a pending batch")
			}
			if got != tt.wantTime {
				t.Errorf("EventTime() = %v, want %v", got, tt.wantTime)
			}
			if c.Len() != len(tt.wantBatch) {
				t.Fatalf("Len() = %d, want %d", c.Len(), len(tt.wantBatch))
			}

			c.Fire()
			if fmt.Sprint(fired) != fmt.Sprint(tt.wantBatch) {
				t.Errorf("fired %v, want %v", fired, tt.wantBatch)
			}
		})
	}
}

func TestCollector_OnlyPastEvents(t *testing.T) {
	c := NewCollector(10)
	c.AddEvent(1, func() {})
	c.AddEvent(10, func() {})

	if c.HasEvents() {
		t.Error("events at or before the floor must be discarded")
	}
	if _, ok := c.EventTime(); ok {
		t.Error("EventTime() should report no pending batch")
	}
}

func TestCollector_FireAdvancesFloor(t *testing.T) {
	c := NewCollector(0)
	c.AddEvent(7, func() {})

	if n := c.Fire(); n != 1 {
		t.Errorf("Fire() = %d, want 1", n)
	}
	if c.StartTime() != 7 {
		t.Errorf("StartTime() = %v, want 7", c.StartTime())
	}
	if c.HasEvents() {
		t.Error("batch should be cleared after Fire")
	}

	// The old instant is now in the past.
	c.AddEvent(7, func() {})
	if c.HasEvents() {
		t.Error("event at the fired instant should be discarded")
	}
}

func TestCollector_RestartKeepsFloor(t *testing.T) {
	c := NewCollector(3)
	ran := false
	c.AddEvent(5, func() { ran = true })

	c.Restart()

	if c.HasEvents() {
		t.Error("Restart should clear the batch")
	}
	if c.StartTime() != 3 {
		t.Errorf("StartTime() = %v, want 3", c.StartTime())
	}
	if ran {
		t.Error("Restart must not run callbacks")
	}

	// A later event is accepted again after restart.
	c.AddEvent(9, func() {})
	if at, _ := c.EventTime(); at != 9 {
		t.Errorf("EventTime() = %v, want 9", at)
	}
}

func TestCollector_FireRecoversPanic(t *testing.T) {
	log := &recordingLogger{}
	c := NewCollector(0)
	c.SetLogger(log)

	second := false
	c.AddEvent(1, func() { panic("broken cue") })
	c.AddEvent(1, func() { second = true })

	if n := c.Fire(); n != 2 {
		t.Errorf("Fire() = %d, want 2", n)
	}
	if !second {
		t.Error("callback after a panicking one should still run")
	}
	if log.count("error") != 1 {
		t.Errorf("expected 1 error log, got %d", log.count("error"))
	}
}

func TestCollector_WaitUntilEvent(t *testing.T) {
	t.Run("nothing pending", func(t *testing.T) {
		c := NewCollector(0)
		if c.WaitUntilEvent(context.Background(), nil) {
			t.Error("WaitUntilEvent with no batch should return false")
		}
	})

	t.Run("already due", func(t *testing.T) {
		clock := &fakeClock{now: 100}
		c := NewCollector(0)
		c.now = clock.Now
		c.AddEvent(99.95, func() {})

		if !c.WaitUntilEvent(context.Background(), nil) {
			t.Error("due batch should return true immediately")
		}
	})

	t.Run("sleeps until due", func(t *testing.T) {
		c := NewCollector(0)
		start := time.Now()
		c.AddEvent(wallClock()+0.05, func() {})

		if !c.WaitUntilEvent(context.Background(), nil) {
			t.Fatal("expected wait to complete")
		}
		if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
			t.Errorf("returned after %v, expected ~50ms", elapsed)
		}
	})

	t.Run("woken early", func(t *testing.T) {
		c := NewCollector(0)
		c.AddEvent(wallClock()+10, func() {})

		wake := make(chan struct{}, 1)
		wake <- struct{}{}
		if c.WaitUntilEvent(context.Background(), wake) {
			t.Error("wake should interrupt the wait")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		c := NewCollector(0)
		c.AddEvent(wallClock()+10, func() {})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if c.WaitUntilEvent(ctx, nil) {
			t.Error("cancelled context should interrupt the wait")
		}
	})
}

func TestCollector_OverdueLogging(t *testing.T) {
	tests := []struct {
		name      string
		late      float64
		wantWarn  int
		wantError int
	}{
		{"on time", 0.01, 0, 0},
		{"overdue", 0.2, 1, 0},
		{"long overdue", 0.8, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &recordingLogger{}
			clock := &fakeClock{now: 1000}
			c := NewCollector(0)
			c.now = clock.Now
			c.SetLogger(log)
			c.AddEvent(1000-tt.late, func() {})

			if !c.WaitUntilEvent(context.Background(), nil) {
				t.Fatal("overdue batch should be reported as due")
			}
			if got := log.count("warn"); got != tt.wantWarn {
				t.Errorf("warn logs = %d, want %d", got, tt.wantWarn)
			}
			if got := log.count("error"); got != tt.wantError {
				t.Errorf("error logs = %d, want %d", got, tt.wantError)
			}
		})
	}
}

func TestCollector_Execute(t *testing.T) {
	clock := &fakeClock{now: 50}
	c := NewCollector(0)
	c.now = clock.Now

	if c.Execute(context.Background()) {
		t.Error("Execute with no batch should return false")
	}

	ran := 0
	c.AddEvent(49, func() { ran++ })
	c.AddEvent(49, func() { ran++ })

	if !c.Execute(context.Background()) {
		t.Fatal("Execute should run a due batch")
	}
	if ran != 2 {
		t.Errorf("ran %d callbacks, want 2", ran)
	}
	if c.StartTime() != 49 {
		t.Errorf("StartTime() = %v, want 49", c.StartTime())
	}
}
