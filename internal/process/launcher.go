package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/TheElectricFursuits/tef-synth-animation/internal/sequencer"
)

// Status represents the current state of a playback process.
type Status string

const (
	StatusRunning Status = "running"
	StatusExited  Status = "exited"
	StatusKilled  Status = "killed"
	StatusFailed  Status = "failed"
)

// Argument placeholders expanded by Launch.
const (
	placeholderPath    = "{path}"
	placeholderVolume  = "{volume}"
	placeholderPercent = "{percent}"
)

// defaultGracefulTimeout is how long a playback gets to exit after SIGTERM.
const defaultGracefulTimeout = 2 * time.Second

// Config holds configuration for launching playbacks.
type Config struct {
	// Binary is the path to the player executable.
	Binary string

	// Args are command-line arguments. {path} is replaced with the media
	// path, {volume} with the volume (0..1) and {percent} with volume*100.
	// If no argument mentions {path}, the path is appended.
	Args []string

	// Env are additional environment variables (key=value format).
	// If nil, inherits from parent process.
	Env []string

	// WorkDir is the working directory, used to resolve relative media paths.
	// If empty, inherits from parent process.
	WorkDir string

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration
}

// DefaultConfig returns a Config playing through mpv.
func DefaultConfig() Config {
	return Config{
		Binary:          "/usr/bin/mpv",
		Args:            []string{"--no-video", "--really-quiet", "--volume={percent}", "{path}"},
		GracefulTimeout: defaultGracefulTimeout,
	}
}

// Logger defines the logging interface for the launcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

var (
	_ sequencer.Launcher = (*Launcher)(nil)
	_ sequencer.Process  = (*Playback)(nil)
)

// Launcher starts playback processes. It satisfies sequencer.Launcher.
type Launcher struct {
	config Config
	logger Logger

	mu     sync.Mutex
	active map[*Playback]struct{}
}

// NewLauncher creates a launcher with the given configuration.
func NewLauncher(cfg Config) *Launcher {
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = defaultGracefulTimeout
	}
	return &Launcher{
		config: cfg,
		logger: noopLogger{},
		active: make(map[*Playback]struct{}),
	}
}

// SetLogger sets the logger for the launcher and its playbacks.
func (l *Launcher) SetLogger(logger Logger) {
	l.logger = logger
}

// Launch starts a playback of path. It implements sequencer.Launcher.
func (l *Launcher) Launch(path string, volume float64) (sequencer.Process, error) {
	p, err := l.Start(path, volume)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Start launches the player binary for path and begins monitoring it.
// Returns an error if the process fails to start.
func (l *Launcher) Start(path string, volume float64) (*Playback, error) {
	if l.config.Binary == "" {
		return nil, ErrNoBinary
	}
	args := expandArgs(l.config.Args, path, volume)

	l.logger.Info("starting playback",
		"binary", l.config.Binary,
		"path", path,
		"volume", volume,
	)

	cmd := exec.Command(l.config.Binary, args...) //nolint:gosec // Binary comes from operator configuration

	// New process group so the player and its children are signalled together.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if l.config.Env != nil {
		cmd.Env = append(os.Environ(), l.config.Env...)
	}
	if l.config.WorkDir != "" {
		cmd.Dir = l.config.WorkDir
	}

	cmd.Stdout = &outputLogger{logger: l.logger, path: path, stream: "stdout"}
	cmd.Stderr = &outputLogger{logger: l.logger, path: path, stream: "stderr"}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting playback %s: %w", path, err)
	}

	p := &Playback{
		path:     path,
		cmd:      cmd,
		pid:      cmd.Process.Pid,
		started:  time.Now(),
		graceful: l.config.GracefulTimeout,
		logger:   l.logger,
		status:   StatusRunning,
		done:     make(chan struct{}),
	}

	l.mu.Lock()
	l.active[p] = struct{}{}
	l.mu.Unlock()

	go func() {
		p.wait()
		l.mu.Lock()
		delete(l.active, p)
		l.mu.Unlock()
	}()

	l.logger.Info("playback started", "path", path, "pid", p.pid)
	return p, nil
}

// Active returns the number of playbacks that have not exited yet.
func (l *Launcher) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.active)
}

// StopAll kills every active playback and waits for them to exit or ctx to
// expire.
func (l *Launcher) StopAll(ctx context.Context) error {
	l.mu.Lock()
	procs := make([]*Playback, 0, len(l.active))
	for p := range l.active {
		procs = append(procs, p)
	}
	l.mu.Unlock()

	var errs []error
	for _, p := range procs {
		if err := p.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// expandArgs substitutes the placeholders in args.
func expandArgs(args []string, path string, volume float64) []string {
	vol := strconv.FormatFloat(volume, 'f', -1, 64)
	pct := strconv.FormatFloat(volume*100, 'f', 0, 64)
	r := strings.NewReplacer(
		placeholderPath, path,
		placeholderVolume, vol,
		placeholderPercent, pct,
	)

	out := make([]string, 0, len(args)+1)
	hasPath := false
	for _, a := range args {
		if strings.Contains(a, placeholderPath) {
			hasPath = true
		}
		out = append(out, r.Replace(a))
	}
	if !hasPath {
		out = append(out, path)
	}
	return out
}

// Playback is one running player process. It satisfies sequencer.Process.
type Playback struct {
	path     string
	cmd      *exec.Cmd
	pid      int
	started  time.Time
	graceful time.Duration
	logger   Logger

	mu      sync.Mutex
	status  Status
	err     error
	killing bool

	done chan struct{}
}

// wait reaps the process and records how it ended.
func (p *Playback) wait() {
	err := p.cmd.Wait()

	p.mu.Lock()
	switch {
	case p.killing:
		p.status = StatusKilled
	case err != nil:
		p.status = StatusFailed
		p.err = err
	default:
		p.status = StatusExited
	}
	status := p.status
	p.mu.Unlock()

	close(p.done)

	p.logger.Debug("playback exited",
		"path", p.path,
		"pid", p.pid,
		"status", string(status),
		"duration", time.Since(p.started),
	)
}

// Kill sends SIGTERM to the playback's process group and returns without
// waiting. If the process is still alive after the grace period it gets
// SIGKILL. Killing an exited playback returns nil.
func (p *Playback) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}

	p.mu.Lock()
	if p.killing {
		p.mu.Unlock()
		return nil
	}
	p.killing = true
	p.mu.Unlock()

	// Negative PID signals the whole process group (created via Setpgid).
	if err := syscall.Kill(-p.pid, syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return fmt.Errorf("signalling playback %d: %w", p.pid, err)
	}

	go p.escalate()
	return nil
}

// escalate sends SIGKILL if the playback outlives its grace period.
func (p *Playback) escalate() {
	timer := time.NewTimer(p.graceful)
	defer timer.Stop()

	select {
	case <-p.done:
		return
	case <-timer.C:
	}

	p.logger.Warn("playback ignored SIGTERM, sending SIGKILL",
		"path", p.path,
		"pid", p.pid,
		"timeout", p.graceful,
	)
	if err := syscall.Kill(-p.pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		p.logger.Error("killing playback process group", "pid", p.pid, "error", err)
	}
}

// Stop kills the playback and waits for it to exit or ctx to expire.
func (p *Playback) Stop(ctx context.Context) error {
	if err := p.Kill(); err != nil {
		return err
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for playback %d: %w", p.pid, ctx.Err())
	}
}

// Done is closed once the process has exited.
func (p *Playback) Done() <-chan struct{} {
	return p.done
}

// PID returns the operating system process ID.
func (p *Playback) PID() int {
	return p.pid
}

// Path returns the media path being played.
func (p *Playback) Path() string {
	return p.path
}

// Status returns the current status of the playback.
func (p *Playback) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Err returns the exit error of a failed playback.
func (p *Playback) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// outputLogger forwards process output lines to the logger.
type outputLogger struct {
	logger Logger
	path   string
	stream string
}

func (w *outputLogger) Write(b []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(b, "\n"), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		w.logger.Debug("playback output",
			"path", w.path,
			"stream", w.stream,
			"output", string(line),
		)
	}
	return len(b), nil
}
