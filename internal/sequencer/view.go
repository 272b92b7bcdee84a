package sequencer

import "math"

// Time precision constants.
const (
	// timeDecimals is the number of decimal places local times are rounded to.
	// Rounding damps float drift across deeply nested transforms.
	timeDecimals = 3

	// timeQuantum is the smallest distinguishable local time step.
	timeQuantum = 0.001

	// slopeDecimals is the number of decimal places slopes are rounded to.
	slopeDecimals = 6
)

// roundTime rounds a local time to timeDecimals places.
func roundTime(t float64) float64 {
	p := math.Pow10(timeDecimals)
	return math.Round(t*p) / p
}

// roundSlope rounds a slope to slopeDecimals places.
func roundSlope(s float64) float64 {
	p := math.Pow10(slopeDecimals)
	return math.Round(s*p) / p
}

// View is a time-transformed window onto a Collector.
//
// It maps the collector's global (wall-clock) frame onto a local frame via
//
//	local  = (global - offset) * slope
//	global = offset + local / slope
//
// A View never owns events: AddEvent converts the local time and relays the
// callback to the root Collector. Views are cheap values created per tick.
type View struct {
	root   *Collector
	offset float64
	slope  float64

	// floor, when set, raises StartTime above the collector's floor.
	// Stored in the global frame so nested views inherit it unchanged.
	floor    float64
	hasFloor bool
}

// ToLocal converts a global time to this view's local frame.
func (v *View) ToLocal(global float64) float64 {
	return roundTime((global - v.offset) * v.slope)
}

// ToGlobal converts a local time to the global frame.
func (v *View) ToGlobal(local float64) float64 {
	return v.offset + local/v.slope
}

// Offset returns the effective (offset, slope) of this view relative to the
// global frame.
func (v *View) Offset() (offset, slope float64) {
	return v.offset, v.slope
}

// StartTime returns the floor in local time. Events at or before it have
// already elapsed and are discarded.
func (v *View) StartTime() float64 {
	floor := v.root.startTime
	if v.hasFloor && v.floor > floor {
		floor = v.floor
	}
	return v.ToLocal(floor)
}

// EventTime returns the earliest pending event time in local time, if any.
func (v *View) EventTime() (float64, bool) {
	if !v.root.hasEvent {
		return 0, false
	}
	return v.ToLocal(v.root.eventTime), true
}

// HasEvents reports whether the root collector holds a pending batch.
func (v *View) HasEvents() bool {
	return v.root.HasEvents()
}

// AddEvent schedules fn at a local time.
func (v *View) AddEvent(local float64, fn func()) {
	v.root.AddEvent(v.ToGlobal(local), fn)
}

// Nest returns a child view for a sequence placed at offset (in this view's
// local frame) running at slope local units per unit of this frame.
func (v *View) Nest(offset, slope float64) *View {
	return &View{
		root:     v.root,
		offset:   v.ToGlobal(offset),
		slope:    v.slope * slope,
		floor:    v.floor,
		hasFloor: v.hasFloor,
	}
}

// withFloor returns a copy of the view whose StartTime is at least local.
func (v *View) withFloor(local float64) *View {
	cpy := *v
	g := v.ToGlobal(local)
	if !cpy.hasFloor || g > cpy.floor {
		cpy.floor = g
		cpy.hasFloor = true
	}
	return &cpy
}
