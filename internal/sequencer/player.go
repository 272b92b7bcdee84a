package sequencer

import (
	"context"
	"sort"
	"sync"
	"time"
)

// PlayerConfig holds tuning for the scheduling loop. Zero values take defaults.
type PlayerConfig struct {
	// OverdueWarn is the lateness above which a batch is logged at warn level.
	OverdueWarn time.Duration

	// OverdueError is the lateness above which a batch is logged at error level.
	OverdueError time.Duration

	// SetupEpsilon is the local-time step used to push a late setup or end
	// event past the current floor.
	SetupEpsilon float64
}

// TickRecorder receives per-tick statistics after each executed batch.
type TickRecorder interface {
	RecordTick(batchSize int, lateness time.Duration, programs int)
}

// Player owns the top-level programs and drives them in real time.
//
// One goroutine (started by Start) repeatedly collects the next batch across
// all programs, sleeps until it is due and fires it. Assign and Remove may be
// called from any goroutine; they mark the tree as changed and wake the loop,
// which then discards the batch it was waiting on and collects again.
type Player struct {
	env       Env
	collector *Collector
	now       func() float64

	mu       sync.Mutex
	programs map[string]Program
	changed  bool
	onTick   []func()
	onFinish []func(key string)
	metrics  TickRecorder

	wake chan struct{}

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewPlayer creates a stopped player.
func NewPlayer(cfg PlayerConfig, env Env) *Player {
	if cfg.SetupEpsilon > 0 {
		env.SetupEpsilon = cfg.SetupEpsilon
	}
	env = env.withDefaults()

	c := NewCollector(wallClock())
	c.SetLogger(env.Logger)
	c.SetOverdueThresholds(cfg.OverdueWarn.Seconds(), cfg.OverdueError.Seconds())

	return &Player{
		env:       env,
		collector: c,
		now:       wallClock,
		programs:  make(map[string]Program),
		wake:      make(chan struct{}, 1),
	}
}

// SetMetrics sets the recorder that receives per-tick statistics.
func (p *Player) SetMetrics(rec TickRecorder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = rec
}

// Env returns the environment handed to every program this player builds.
func (p *Player) Env() Env {
	return p.env
}

// OnTick registers fn to run after every executed batch. Callbacks run on
// the scheduling goroutine in registration order.
func (p *Player) OnTick(fn func()) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTick = append(p.onTick, fn)
}

// OnFinish registers fn to run when a top-level program reaches its end on
// its own and is pruned. Programs removed by Remove, Assign or Stop are not
// reported. Callbacks run on the scheduling goroutine outside the lock.
func (p *Player) OnFinish(fn func(key string)) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFinish = append(p.onFinish, fn)
}

// Assign stores prog under key, tearing down any program already there.
func (p *Player) Assign(key string, prog Program) error {
	if prog == nil {
		return ErrNilProgram
	}

	p.mu.Lock()
	if old, ok := p.programs[key]; ok {
		old.Destroy()
	}
	p.programs[key] = prog
	p.changed = true
	p.mu.Unlock()

	p.env.Logger.Debug("program assigned", "key", key)
	p.signal()
	return nil
}

// AssignSheet instantiates sheet anchored at the current time with slope 1
// and assigns it to key.
func (p *Player) AssignSheet(key string, sheet *Sheet, opts Options) (*SheetSequence, error) {
	seq, err := NewSheetSequence(sheet, p.now(), 1, opts, p.env)
	if err != nil {
		return nil, err
	}
	if err := p.Assign(key, seq); err != nil {
		return nil, err
	}
	return seq, nil
}

// Remove tears down and discards the program at key. Absent keys are a no-op
// and do not wake the scheduling goroutine.
func (p *Player) Remove(key string) bool {
	p.mu.Lock()
	old, ok := p.programs[key]
	if !ok {
		p.mu.Unlock()
		return false
	}
	old.Destroy()
	delete(p.programs, key)
	p.changed = true
	p.mu.Unlock()

	p.env.Logger.Debug("program removed", "key", key)
	p.signal()
	return true
}

// Lookup returns the program at key. The scheduling goroutine mutates the
// program while it runs, so callers on other goroutines should use StateOf
// rather than reading it directly.
func (p *Player) Lookup(key string) (Program, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prog, ok := p.programs[key]
	return prog, ok
}

// StateOf returns the lifecycle state of the program at key, read under the
// same lock the scheduling goroutine holds while firing.
func (p *Player) StateOf(key string) (State, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prog, ok := p.programs[key]
	if !ok {
		return StateTornDown, false
	}
	return prog.State(), true
}

// Keys returns the occupied keys in sorted order.
func (p *Player) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sortedKeys()
}

func (p *Player) sortedKeys() []string {
	keys := make([]string, 0, len(p.programs))
	for k := range p.programs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// signal wakes the scheduling goroutine without blocking.
func (p *Player) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Start launches the scheduling goroutine. It returns ErrPlayerRunning if the
// player is already started.
func (p *Player) Start(ctx context.Context) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.running {
		return ErrPlayerRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go p.run(ctx, p.done)

	p.env.Logger.Info("player started")
	return nil
}

// Stop halts the scheduling goroutine and tears down every program.
func (p *Player) Stop() {
	p.runMu.Lock()
	if p.running {
		p.cancel()
		<-p.done
		p.running = false
	}
	p.runMu.Unlock()

	p.mu.Lock()
	for _, key := range p.sortedKeys() {
		p.programs[key].Destroy()
		delete(p.programs, key)
	}
	p.mu.Unlock()

	p.env.Logger.Info("player stopped")
}

// run is the scheduling loop: collect, wait, fire, notify.
func (p *Player) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		p.mu.Lock()
		p.changed = false
		finished := p.collect()
		pending := p.collector.HasEvents()
		var notify []func(string)
		if len(finished) > 0 {
			notify = make([]func(string), len(p.onFinish))
			copy(notify, p.onFinish)
		}
		p.mu.Unlock()

		for _, key := range finished {
			for _, fn := range notify {
				p.runTickCallback(func() { fn(key) })
			}
		}

		if !pending {
			select {
			case <-ctx.Done():
				return
			case <-p.wake:
				continue
			}
		}

		if !p.collector.WaitUntilEvent(ctx, p.wake) {
			p.collector.Restart()
			continue
		}

		p.tick()
	}
}

// collect prunes finished programs and gathers the next batch. It returns
// the keys it pruned. Caller holds mu.
func (p *Player) collect() []string {
	var finished []string
	floor := p.collector.StartTime()
	root := p.collector.View()

	for _, key := range p.sortedKeys() {
		prog := p.programs[key]
		if end, ok := prog.ParentEndTime(); prog.State() == StateTornDown || (ok && end < floor) {
			prog.Destroy()
			delete(p.programs, key)
			p.env.Logger.Debug("program finished", "key", key)
			finished = append(finished, key)
			continue
		}
		prog.AppendEvents(root)
	}
	return finished
}

// tick fires the pending batch unless the tree changed during the wait, then
// runs the tick callbacks.
func (p *Player) tick() {
	p.mu.Lock()
	if p.changed {
		p.collector.Restart()
		p.mu.Unlock()
		return
	}

	at, _ := p.collector.EventTime()
	n := p.collector.Fire()
	lateness := secondsToDuration(p.now() - at)
	programs := len(p.programs)
	metrics := p.metrics
	callbacks := make([]func(), len(p.onTick))
	copy(callbacks, p.onTick)
	p.mu.Unlock()

	if metrics != nil {
		metrics.RecordTick(n, lateness, programs)
	}
	for _, fn := range callbacks {
		p.runTickCallback(fn)
	}
}

// runTickCallback runs one OnTick or OnFinish callback, logging a panic.
func (p *Player) runTickCallback(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.env.Logger.Error("tick callback panic recovered", "panic", r)
		}
	}()
	fn()
}
