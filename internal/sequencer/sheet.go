package sequencer

// Options is the payload passed to a sequence instance. Sheet blocks read it
// through Handle.Options, so one Sheet can be instantiated many times with
// different settings.
type Options map[string]any

// Sheet is a reusable program template.
//
// Fill runs once when an instance is built and populates its notes and
// nested programs. Setup runs when the instance starts; Teardown runs exactly
// once when it is torn down, whatever the reason. All three receive a Handle
// bound to the instance.
type Sheet struct {
	// StartTime overrides the derived local start (default: the first note or
	// nested start, or 0 for a sheet with neither).
	StartTime *float64

	// EndTime overrides the derived local end (default: last note, or the
	// latest nested end). A sheet with no notes and no nested programs never
	// ends on its own.
	EndTime *float64

	// Tempo in beats per minute. Zero keeps the parent's time base.
	Tempo float64

	// RepeatTime is the local period after which content replays. Zero
	// disables repetition.
	RepeatTime float64

	Fill     func(h *Handle)
	Setup    func(h *Handle)
	Teardown func(h *Handle)
}

// Float returns a pointer to v, for Sheet.StartTime and Sheet.EndTime.
func Float(v float64) *float64 {
	return &v
}

// NestOptions configures a nested program.
type NestOptions struct {
	// Slope is local time units of the child per local unit of the parent.
	// Zero means 1.
	Slope float64

	// Options is handed to the child instance.
	Options Options
}

// Process is a running external playback started by Handle.Play.
type Process interface {
	// Kill terminates the process. Killing a process that already exited
	// returns nil.
	Kill() error

	// Done is closed once the process has exited.
	Done() <-chan struct{}
}

// Launcher starts external playback processes.
type Launcher interface {
	Launch(path string, volume float64) (Process, error)
}

// Env carries the collaborators shared by every sequence in a tree.
type Env struct {
	Launcher Launcher
	Logger   Logger

	// SetupEpsilon is the local-time step used when a setup or end event
	// would otherwise fall at or before the current floor. Zero means 0.01.
	SetupEpsilon float64
}

// withDefaults fills unset collaborators.
func (e Env) withDefaults() Env {
	if e.Logger == nil {
		e.Logger = discard{}
	}
	if e.SetupEpsilon <= 0 {
		e.SetupEpsilon = defaultSetupEpsilon
	}
	return e
}

// Handle is the authoring surface passed to Sheet blocks and available to
// note callbacks. It is bound to one SheetSequence.
type Handle struct {
	seq *SheetSequence
}

// Sequence returns the instance this handle is bound to.
func (h *Handle) Sequence() *SheetSequence {
	return h.seq
}

// Options returns the instance's option payload. Never nil.
func (h *Handle) Options() Options {
	return h.seq.options
}

// At schedules fn at local time t. With a repeat period, t wraps into the
// first period.
func (h *Handle) At(t float64, fn func()) {
	h.seq.insertNote(t, fn)
}

// After schedules fn dt after the most recently inserted note or program.
func (h *Handle) After(dt float64, fn func()) {
	h.seq.insertNote(h.seq.lastTime+dt, fn)
}

// Nest instantiates sheet as a child program starting at local time t.
func (h *Handle) Nest(t float64, sheet *Sheet, opts NestOptions) (*SheetSequence, error) {
	return h.seq.nest(t, sheet, opts)
}

// NestAfter is Nest relative to the most recently inserted note or program.
func (h *Handle) NestAfter(dt float64, sheet *Sheet, opts NestOptions) (*SheetSequence, error) {
	return h.seq.nest(h.seq.lastTime+dt, sheet, opts)
}

// Play starts an external playback of path and tracks it until it exits or
// the instance is torn down.
func (h *Handle) Play(path string, volume float64) (Process, error) {
	return h.seq.play(path, volume)
}

// Kill stops one playback started by this instance.
func (h *Handle) Kill(p Process) error {
	return h.seq.kill(p)
}

// KillAll stops every playback this instance is still tracking.
func (h *Handle) KillAll() {
	h.seq.killAll()
}
