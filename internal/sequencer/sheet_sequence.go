package sequencer

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// note is one scheduled callback at a local time.
type note struct {
	time float64
	fn   func()
}

// SheetSequence is a running instance of a Sheet.
//
// Notes are kept sorted by time and nested programs by parent start time;
// both lists only grow through Handle calls and are read by the scheduling
// goroutine. Playback processes are tracked in a separate set guarded by mu,
// since they are removed from a watcher goroutine when they exit.
type SheetSequence struct {
	Sequence

	sheet    *Sheet
	options  Options
	env      Env
	handle   *Handle
	topSlope float64

	notes       []note
	subprograms []Program
	lastTime    float64

	autoStart bool
	autoEnd   bool

	mu        sync.Mutex
	processes map[Process]struct{}
}

// NewSheetSequence builds a top-level instance of sheet placed at offset
// (global seconds) with the given slope.
//
// Parameters:
//   - sheet: template, required
//   - offset: origin of the local timeline in the parent's frame
//   - slope: local units per parent unit, non-zero; the sheet tempo scales it
//   - opts: payload for the sheet blocks (may be nil)
//   - env: launcher and logger shared by the tree
//
// Returns:
//   - *SheetSequence: the instance, already filled
//   - error: ErrNoSheet, ErrZeroSlope or ErrInvalidRepeat
func NewSheetSequence(sheet *Sheet, offset, slope float64, opts Options, env Env) (*SheetSequence, error) {
	return newSheetSequence(sheet, offset, slope, 1, opts, env)
}

func newSheetSequence(sheet *Sheet, offset, slope, parentTopSlope float64, opts Options, env Env) (*SheetSequence, error) {
	if sheet == nil {
		return nil, ErrNoSheet
	}
	if sheet.RepeatTime < 0 || math.IsNaN(sheet.RepeatTime) {
		return nil, ErrInvalidRepeat
	}
	if opts == nil {
		opts = Options{}
	}
	env = env.withDefaults()

	topSlope := parentTopSlope
	if sheet.Tempo > 0 {
		slope *= sheet.Tempo / (60 * parentTopSlope)
		topSlope = sheet.Tempo / 60
	}

	s := &SheetSequence{
		sheet:     sheet,
		options:   opts,
		env:       env,
		topSlope:  topSlope,
		processes: make(map[Process]struct{}),
	}
	s.handle = &Handle{seq: s}
	s.epsilon = env.SetupEpsilon
	s.repeat = sheet.RepeatTime

	if err := s.initSequence(offset, slope, s); err != nil {
		return nil, err
	}

	if sheet.Fill != nil {
		sheet.Fill(s.handle)
	}
	s.deriveWindow()

	return s, nil
}

// Sheet returns the template this instance was built from.
func (s *SheetSequence) Sheet() *Sheet {
	return s.sheet
}

// Handle returns the authoring handle bound to this instance.
func (s *SheetSequence) Handle() *Handle {
	return s.handle
}

// NoteTimes returns the local times of all notes, in order.
func (s *SheetSequence) NoteTimes() []float64 {
	out := make([]float64, len(s.notes))
	for i, n := range s.notes {
		out[i] = n.time
	}
	return out
}

// Subprograms returns the nested programs still owned by this instance.
func (s *SheetSequence) Subprograms() []Program {
	out := make([]Program, len(s.subprograms))
	copy(out, s.subprograms)
	return out
}

// deriveWindow sets start and end from content unless the sheet fixes them.
func (s *SheetSequence) deriveWindow() {
	if s.sheet.StartTime != nil {
		s.startTime = roundTime(*s.sheet.StartTime)
	} else {
		s.autoStart = true
		s.startTime = s.firstContent()
	}

	if s.sheet.EndTime != nil {
		s.endTime = roundTime(*s.sheet.EndTime)
		s.hasEnd = true
		return
	}
	if s.repeat > 0 {
		return
	}

	s.autoEnd = true
	s.hasEnd = false
	if len(s.notes) > 0 {
		s.extendEnd(s.notes[len(s.notes)-1].time)
	}
	for _, child := range s.subprograms {
		end, ok := child.ParentEndTime()
		if !ok {
			// An endless child keeps the parent alive.
			s.hasEnd = false
			s.autoEnd = false
			return
		}
		s.extendEnd(end)
	}
}

// firstContent returns the earliest local time at which a note or nested
// program begins, or 0 for a sheet with neither.
func (s *SheetSequence) firstContent() float64 {
	var first float64
	found := false
	if len(s.notes) > 0 {
		first, found = s.notes[0].time, true
	}
	if len(s.subprograms) > 0 {
		if t := s.subprograms[0].ParentStartTime(); !found || t < first {
			first, found = t, true
		}
	}
	if !found {
		return 0
	}
	return roundTime(first)
}

// extendEnd pushes a derived end out to t.
func (s *SheetSequence) extendEnd(t float64) {
	if !s.hasEnd || t > s.endTime {
		s.endTime = roundTime(t)
		s.hasEnd = true
	}
}

// wrap folds t into the first repeat period and rounds it.
func (s *SheetSequence) wrap(t float64) float64 {
	if s.repeat > 0 {
		t -= math.Floor(t/s.repeat) * s.repeat
		if roundTime(t) >= s.repeat {
			t = 0
		}
	}
	return roundTime(t)
}

// insertNote adds a callback in sorted position. Notes at an equal time keep
// insertion order.
func (s *SheetSequence) insertNote(t float64, fn func()) {
	if fn == nil {
		return
	}
	s.lastTime = t
	t = s.wrap(t)

	i := sort.Search(len(s.notes), func(i int) bool { return s.notes[i].time > t })
	s.notes = append(s.notes, note{})
	copy(s.notes[i+1:], s.notes[i:])
	s.notes[i] = note{time: t, fn: fn}

	if s.autoEnd {
		s.extendEnd(t)
	}
	if s.autoStart && t < s.startTime {
		s.startTime = t
	}
}

// nest instantiates a child sheet at local time t.
func (s *SheetSequence) nest(t float64, sheet *Sheet, opts NestOptions) (*SheetSequence, error) {
	s.lastTime = t
	t = s.wrap(t)

	slope := opts.Slope
	if slope == 0 {
		slope = 1
	}
	child, err := newSheetSequence(sheet, t, slope, s.topSlope, opts.Options, s.env)
	if err != nil {
		return nil, fmt.Errorf("nest at %.3f: %w", t, err)
	}
	s.insertProgram(child)
	return child, nil
}

// insertProgram adds a child in sorted position by parent start time.
func (s *SheetSequence) insertProgram(p Program) {
	start := p.ParentStartTime()
	i := sort.Search(len(s.subprograms), func(i int) bool {
		return s.subprograms[i].ParentStartTime() > start
	})
	s.subprograms = append(s.subprograms, nil)
	copy(s.subprograms[i+1:], s.subprograms[i:])
	s.subprograms[i] = p

	if s.autoStart {
		if t := roundTime(p.ParentStartTime()); t < s.startTime {
			s.startTime = t
		}
	}
	if s.autoEnd {
		if end, ok := p.ParentEndTime(); ok {
			s.extendEnd(end)
		} else {
			s.hasEnd = false
			s.autoEnd = false
		}
	}
}

// appendContent contributes nested programs first, then the next tie batch
// of notes.
func (s *SheetSequence) appendContent(v *View) {
	// Children see the unwrapped view: nest folds their offsets into the
	// first period and they are built once, so a repeating parent replays
	// only its notes.
	s.appendSubprograms(v)
	s.appendNotes(v)
}

// appendSubprograms visits children in start order and prunes the ones that
// reported TornDown once the walk is over.
func (s *SheetSequence) appendSubprograms(v *View) {
	torn := 0
	for i := 0; i < len(s.subprograms); i++ {
		child := s.subprograms[i]
		if et, ok := v.EventTime(); ok && child.ParentStartTime() > et {
			break
		}
		child.AppendEvents(v)
		if child.State() == StateTornDown {
			torn++
		}
	}
	if torn == 0 {
		return
	}

	kept := s.subprograms[:0]
	for _, child := range s.subprograms {
		if child.State() != StateTornDown {
			kept = append(kept, child)
		}
	}
	for i := len(kept); i < len(s.subprograms); i++ {
		s.subprograms[i] = nil
	}
	s.subprograms = kept
}

// appendNotes adds the first notes strictly after the view's floor.
func (s *SheetSequence) appendNotes(v *View) {
	if len(s.notes) == 0 {
		return
	}

	if s.repeat > 0 {
		vs := v.StartTime()
		base := math.Floor(vs/s.repeat) * s.repeat
		if roundTime(vs-base) >= s.notes[len(s.notes)-1].time {
			base += s.repeat
		}
		v = v.Nest(base, 1)
	}

	vs := v.StartTime()
	i := sort.Search(len(s.notes), func(i int) bool { return s.notes[i].time > vs })
	if i == len(s.notes) {
		return
	}

	t := s.notes[i].time
	for ; i < len(s.notes) && s.notes[i].time == t; i++ {
		v.AddEvent(t, s.notes[i].fn)
	}
}

// setup runs the sheet's setup block.
func (s *SheetSequence) setup() {
	if s.sheet.Setup != nil {
		s.runBlock("setup", s.sheet.Setup)
	}
}

// teardown runs the sheet's teardown block, destroys every child and kills
// every tracked playback. The later steps run even if the block panics.
func (s *SheetSequence) teardown() {
	if s.sheet.Teardown != nil {
		s.runBlock("teardown", s.sheet.Teardown)
	}

	children := s.subprograms
	s.subprograms = nil
	for _, child := range children {
		child.Destroy()
	}

	s.killAll()
}

// runBlock runs a sheet block, logging a panic instead of propagating it.
func (s *SheetSequence) runBlock(name string, block func(h *Handle)) {
	defer func() {
		if r := recover(); r != nil {
			s.env.Logger.Error("sheet block panic recovered",
				"block", name,
				"panic", r,
			)
		}
	}()
	block(s.handle)
}

// play launches a playback and tracks it until exit or teardown.
func (s *SheetSequence) play(path string, volume float64) (Process, error) {
	if s.env.Launcher == nil {
		return nil, ErrNoLauncher
	}

	p, err := s.env.Launcher.Launch(path, volume)
	if err != nil {
		return nil, fmt.Errorf("play %s: %w", path, err)
	}

	s.mu.Lock()
	s.processes[p] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-p.Done()
		s.mu.Lock()
		delete(s.processes, p)
		s.mu.Unlock()
	}()

	s.env.Logger.Debug("playback started", "path", path, "volume", volume)
	return p, nil
}

// kill terminates one tracked playback.
func (s *SheetSequence) kill(p Process) error {
	if p == nil {
		return nil
	}
	s.mu.Lock()
	delete(s.processes, p)
	s.mu.Unlock()

	if err := p.Kill(); err != nil {
		return fmt.Errorf("kill playback: %w", err)
	}
	return nil
}

// killAll terminates every tracked playback.
func (s *SheetSequence) killAll() {
	s.mu.Lock()
	procs := make([]Process, 0, len(s.processes))
	for p := range s.processes {
		procs = append(procs, p)
	}
	s.processes = make(map[Process]struct{})
	s.mu.Unlock()

	for _, p := range procs {
		if err := p.Kill(); err != nil {
			s.env.Logger.Warn("killing playback on teardown", "error", err)
		}
	}
}

// Playbacks returns the number of playbacks still tracked.
func (s *SheetSequence) Playbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processes)
}
