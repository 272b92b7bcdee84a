package influxdb

import "time"

const (
	measurementTick    = "player_tick"
	measurementProgram = "program_event"
)

// RecordTick records one executed batch of the player loop: callbacks
// fired, lateness against the scheduled time and programs left. It
// satisfies sequencer.TickRecorder.
func (c *Client) RecordTick(batchSize int, lateness time.Duration, programs int) {
	c.emit(measurementTick, nil, map[string]any{
		"batch_size":  batchSize,
		"lateness_ms": float64(lateness) / float64(time.Millisecond),
		"programs":    programs,
	})
}

// WriteProgramEvent records a slot change (assigned, replaced, removed,
// finished, stopped). show may be empty.
func (c *Client) WriteProgramEvent(slot, show, event string) {
	tags := map[string]string{"slot": slot, "event": event}
	if show != "" {
		tags["show"] = show
	}
	c.emit(measurementProgram, tags, map[string]any{"count": 1})
}
