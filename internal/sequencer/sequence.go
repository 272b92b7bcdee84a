package sequencer

import "math"

// defaultSetupEpsilon is the local-time step added past a view's floor when a
// setup or end event would otherwise land in the past.
const defaultSetupEpsilon = 0.01

// State is the lifecycle state of a sequence.
type State int

// Sequence lifecycle states.
const (
	StateUninitialized State = iota
	StateRunning
	StateIdle
	StateTornDown
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateIdle:
		return "idle"
	case StateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// Program is a node of the show tree that can contribute events to a
// collector. Top-level programs are owned by the Player, nested ones by
// their parent.
type Program interface {
	// AppendEvents contributes this program's next events through the
	// parent's view.
	AppendEvents(parent *View)

	// State returns the current lifecycle state.
	State() State

	// ParentStartTime returns the start time in the parent's frame.
	ParentStartTime() float64

	// ParentEndTime returns the end time in the parent's frame. The second
	// result is false when the program never ends on its own.
	ParentEndTime() (float64, bool)

	// Destroy tears the program down immediately. Safe to call repeatedly.
	Destroy()
}

// content is the concrete behaviour plugged into a Sequence.
type content interface {
	setup()
	teardown()
	appendContent(v *View)
}

// Sequence is the lifecycle state machine shared by all concrete programs.
//
// It owns the program's placement in its parent (offset, slope) and its local
// window (start, optional end). Setup, end and resume transitions are plain
// events in the same timeline as the content, so the collector orders them
// against everything else with no special casing.
type Sequence struct {
	offset    float64
	slope     float64
	startTime float64
	endTime   float64
	hasEnd    bool
	repeat    float64
	epsilon   float64

	state State
	impl  content
}

// initSequence validates and stores the placement of a sequence.
func (s *Sequence) initSequence(offset, slope float64, impl content) error {
	slope = roundSlope(slope)
	if slope == 0 || math.IsNaN(slope) || math.IsInf(slope, 0) {
		return ErrZeroSlope
	}
	s.offset = offset
	s.slope = slope
	s.impl = impl
	s.state = StateUninitialized
	if s.epsilon <= 0 {
		s.epsilon = defaultSetupEpsilon
	}
	return nil
}

// State returns the current lifecycle state.
func (s *Sequence) State() State {
	return s.state
}

// Offset returns the sequence origin in the parent's frame.
func (s *Sequence) Offset() float64 {
	return s.offset
}

// Slope returns local time units per parent time unit.
func (s *Sequence) Slope() float64 {
	return s.slope
}

// StartTime returns the local start time.
func (s *Sequence) StartTime() float64 {
	return s.startTime
}

// EndTime returns the local end time, if any.
func (s *Sequence) EndTime() (float64, bool) {
	return s.endTime, s.hasEnd
}

// RepeatTime returns the repeat period, or 0 when the sequence does not repeat.
func (s *Sequence) RepeatTime() float64 {
	return s.repeat
}

// ParentStartTime returns offset + start/slope.
func (s *Sequence) ParentStartTime() float64 {
	return s.offset + s.startTime/s.slope
}

// ParentEndTime returns offset + end/slope. Repeating sequences never end on
// their own, so they report false.
func (s *Sequence) ParentEndTime() (float64, bool) {
	if !s.hasEnd || s.repeat > 0 {
		return 0, false
	}
	return s.offset + s.endTime/s.slope, true
}

// AppendEvents contributes this sequence's next events to the collector
// behind parent.
func (s *Sequence) AppendEvents(parent *View) {
	v := parent.Nest(s.offset, s.slope)

	if et, ok := v.EventTime(); ok && et < s.startTime {
		return
	}

	switch s.state {
	case StateTornDown:
		return

	case StateUninitialized:
		at := s.startTime
		if vs := v.StartTime(); at <= vs {
			at = roundTime(vs + s.epsilon)
		}
		v.AddEvent(at, s.fireSetup)
		// Content due exactly at setup joins the same batch, after setup.
		s.impl.appendContent(v.withFloor(at - timeQuantum))

	case StateRunning:
		s.impl.appendContent(v)
		if s.hasEnd && (s.repeat == 0 || s.periodic()) {
			v.AddEvent(s.nextEnd(v.StartTime()), s.fireEnd)
		}

	case StateIdle:
		at := s.nextResume(v.StartTime())
		v.AddEvent(at, s.fireResume)
		s.impl.appendContent(v.withFloor(at - timeQuantum))
	}
}

// periodic reports whether the sequence goes idle between repeat periods.
func (s *Sequence) periodic() bool {
	return s.repeat > 0 && s.hasEnd && s.endTime < s.repeat
}

// nextEnd returns the local time of the next end transition after vs.
func (s *Sequence) nextEnd(vs float64) float64 {
	end := s.endTime
	if s.periodic() {
		end = math.Floor(vs/s.repeat)*s.repeat + s.endTime
	}
	if end <= vs {
		end = vs + s.epsilon
	}
	return roundTime(end)
}

// nextResume returns the start of the first repeat period after vs.
func (s *Sequence) nextResume(vs float64) float64 {
	at := math.Floor(vs/s.repeat)*s.repeat + s.startTime
	if roundTime(at) <= vs {
		at += s.repeat
	}
	return roundTime(at)
}

func (s *Sequence) fireSetup() {
	if s.state != StateUninitialized {
		return
	}
	s.state = StateRunning
	s.impl.setup()
}

func (s *Sequence) fireEnd() {
	if s.state != StateRunning {
		return
	}
	if s.periodic() {
		s.state = StateIdle
		return
	}
	s.Destroy()
}

func (s *Sequence) fireResume() {
	if s.state == StateIdle {
		s.state = StateRunning
	}
}

// Destroy forces the sequence to TornDown, running teardown exactly once.
// A sequence that never started still runs its teardown.
func (s *Sequence) Destroy() {
	if s.state == StateTornDown {
		return
	}
	s.state = StateTornDown
	s.impl.teardown()
}
