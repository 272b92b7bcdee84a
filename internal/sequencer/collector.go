package sequencer

import (
	"context"
	"time"
)

// Default overdue thresholds, in seconds.
const (
	defaultOverdueWarn  = 0.1
	defaultOverdueError = 0.5
)

// wallClock returns the current wall-clock time in seconds since the epoch.
func wallClock() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// secondsToDuration converts fractional seconds to a time.Duration.
func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Collector finds the next batch of simultaneous events across a program tree.
//
// It holds a floor (startTime) and the earliest pending instant found so far
// together with every callback scheduled exactly at that instant. Events at
// or before the floor, or later than the pending instant, are dropped as they
// arrive. The collector is reused across ticks: Fire advances the floor to
// the executed instant, Restart discards a stale batch without advancing.
//
// Not safe for concurrent use; the Player serialises access.
type Collector struct {
	startTime float64
	eventTime float64
	hasEvent  bool
	events    []func()

	now          func() float64
	logger       Logger
	overdueWarn  float64
	overdueError float64
}

// NewCollector creates a collector whose floor is startTime (global seconds).
func NewCollector(startTime float64) *Collector {
	return &Collector{
		startTime:    startTime,
		now:          wallClock,
		logger:       discard{},
		overdueWarn:  defaultOverdueWarn,
		overdueError: defaultOverdueError,
	}
}

// SetLogger sets the logger used for overdue and panic reports.
func (c *Collector) SetLogger(logger Logger) {
	if logger == nil {
		logger = discard{}
	}
	c.logger = logger
}

// SetOverdueThresholds sets the lateness (seconds) above which a batch is
// logged as overdue (warn) and long overdue (error).
func (c *Collector) SetOverdueThresholds(warn, errorAfter float64) {
	if warn > 0 {
		c.overdueWarn = warn
	}
	if errorAfter > 0 {
		c.overdueError = errorAfter
	}
}

// StartTime returns the floor in global time.
func (c *Collector) StartTime() float64 {
	return c.startTime
}

// EventTime returns the pending batch time, if any.
func (c *Collector) EventTime() (float64, bool) {
	return c.eventTime, c.hasEvent
}

// HasEvents reports whether a batch is pending.
func (c *Collector) HasEvents() bool {
	return len(c.events) > 0
}

// Len returns the number of callbacks in the pending batch.
func (c *Collector) Len() int {
	return len(c.events)
}

// View returns an identity view onto the collector (global frame).
func (c *Collector) View() *View {
	return &View{root: c, offset: 0, slope: 1}
}

// AddEvent offers a callback at a global time.
//
// The event is discarded if it is at or before the floor, or later than the
// pending batch. An earlier time replaces the batch; an equal time joins it.
func (c *Collector) AddEvent(t float64, fn func()) {
	if fn == nil || t <= c.startTime {
		return
	}
	if c.hasEvent {
		if t > c.eventTime {
			return
		}
		if t == c.eventTime {
			c.events = append(c.events, fn)
			return
		}
	}
	c.eventTime = t
	c.hasEvent = true
	c.events = append(c.events[:0], fn)
}

// WaitUntilEvent blocks until the pending batch is due.
//
// It returns true when the batch time has been reached, and false when there
// is nothing pending or the wait was cut short by wake or ctx. Lateness is
// logged but never treated as an error.
func (c *Collector) WaitUntilEvent(ctx context.Context, wake <-chan struct{}) bool {
	if !c.hasEvent {
		return false
	}

	diff := c.eventTime - c.now()
	c.reportOverdue(-diff)
	if diff <= 0 {
		return true
	}

	timer := time.NewTimer(secondsToDuration(diff))
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-wake:
		return false
	case <-ctx.Done():
		return false
	}
}

// reportOverdue logs a batch that is due by more than the thresholds.
func (c *Collector) reportOverdue(late float64) {
	switch {
	case late > c.overdueError:
		c.logger.Error("event batch long overdue",
			"late_s", late,
			"events", len(c.events),
		)
	case late > c.overdueWarn:
		c.logger.Warn("event batch overdue",
			"late_s", late,
			"events", len(c.events),
		)
	}
}

// Fire invokes every callback in the pending batch in the order they were
// added, advances the floor to the batch time and clears the batch.
// It returns the number of callbacks run. Fire does not wait.
func (c *Collector) Fire() int {
	if !c.hasEvent {
		return 0
	}

	batch := c.events
	at := c.eventTime
	c.events = nil
	c.hasEvent = false

	for _, fn := range batch {
		c.invoke(fn, at)
	}

	c.startTime = at
	c.Restart()
	return len(batch)
}

// invoke runs one callback, recovering a panic so the batch continues.
func (c *Collector) invoke(fn func(), at float64) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("event callback panic recovered",
				"event_time", at,
				"panic", r,
			)
		}
	}()
	fn()
}

// Execute waits for the pending batch and fires it.
// It returns false if there was nothing to run or the wait was cancelled.
func (c *Collector) Execute(ctx context.Context) bool {
	if !c.HasEvents() {
		return false
	}
	if !c.WaitUntilEvent(ctx, nil) {
		return false
	}
	c.Fire()
	return true
}

// Restart clears the pending batch without advancing the floor.
// Used when the tree changed after collection and the batch is stale.
func (c *Collector) Restart() {
	c.events = c.events[:0]
	c.hasEvent = false
	c.eventTime = 0
}
