package library

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/TheElectricFursuits/tef-synth-animation/internal/labels"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/sequencer"
)

// defaultMaxDepth bounds show nesting when the compiler is given no limit.
const defaultMaxDepth = 8

// ShowSource resolves nested shows by slug. *Registry satisfies it.
type ShowSource interface {
	GetShowBySlug(ctx context.Context, slug string) (*Show, error)
}

// Output receives parameter writes from set and labels cues.
// *output.Batcher satisfies it.
type Output interface {
	Set(module, parameter string, value any) error
}

// TrackSource resolves label tracks by name. *labels.Library satisfies it.
type TrackSource interface {
	Track(name string) (labels.Track, error)
}

// Compiler turns shows into sequencer sheets.
//
// Nested shows and label tracks are resolved when the show is compiled, so
// every lookup failure surfaces as an error from Compile rather than at
// playback time. The resulting sheet is reusable.
type Compiler struct {
	shows    ShowSource
	out      Output
	tracks   TrackSource
	maxDepth int
	logger   Logger
}

// NewCompiler creates a compiler. out and tracks may be nil; set cues then do
// nothing and labels cues fail to compile.
func NewCompiler(shows ShowSource, out Output, tracks TrackSource, maxDepth int) *Compiler {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	return &Compiler{
		shows:    shows,
		out:      out,
		tracks:   tracks,
		maxDepth: maxDepth,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for cue failures at playback time.
func (c *Compiler) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// Compile builds the sheet for show, resolving nested shows recursively.
//
// Returns:
//   - *sequencer.Sheet: template ready for Player.AssignSheet
//   - error: validation errors, ErrShowNotFound for a missing nested show,
//     ErrShowCycle, or labels.ErrTrackNotFound
func (c *Compiler) Compile(ctx context.Context, show *Show) (*sequencer.Sheet, error) {
	if show == nil {
		return nil, ErrInvalidShow
	}
	memo := make(map[string]*sequencer.Sheet)
	return c.compile(ctx, show, []string{show.Slug}, memo)
}

// step schedules one cue on an instance.
type step func(h *sequencer.Handle)

func (c *Compiler) compile(ctx context.Context, show *Show, stack []string, memo map[string]*sequencer.Sheet) (*sequencer.Sheet, error) {
	if len(stack) > c.maxDepth {
		return nil, fmt.Errorf("%w: %s", ErrShowCycle, strings.Join(stack, " -> "))
	}
	if err := ValidateShow(show); err != nil {
		return nil, err
	}

	steps := make([]step, 0, len(show.Cues))
	prev := 0.0
	for i, cue := range show.Cues {
		t := prev
		switch {
		case cue.Time != nil:
			t = *cue.Time
		case cue.After != nil:
			t = prev + *cue.After
		}
		prev = t

		st, err := c.compileCue(ctx, cue, t, stack, memo)
		if err != nil {
			return nil, fmt.Errorf("%s cue[%d]: %w", show.Slug, i, err)
		}
		steps = append(steps, st)
	}

	return &sequencer.Sheet{
		StartTime:  cloneFloatPtr(show.StartTime),
		EndTime:    cloneFloatPtr(show.EndTime),
		Tempo:      show.Tempo,
		RepeatTime: show.RepeatTime,
		Fill: func(h *sequencer.Handle) {
			for _, st := range steps {
				st(h)
			}
		},
	}, nil
}

func (c *Compiler) compileCue(ctx context.Context, cue Cue, t float64, stack []string, memo map[string]*sequencer.Sheet) (step, error) {
	switch cue.Kind() {
	case KindSet:
		set := *cue.Set
		return func(h *sequencer.Handle) {
			h.At(t, func() {
				c.set(set.Module, set.Parameter, resolveValue(h.Options(), set.Value))
			})
		}, nil

	case KindPlay:
		path := cue.Play.Path
		volume := 1.0
		if cue.Play.Volume != nil {
			volume = *cue.Play.Volume
		}
		return func(h *sequencer.Handle) {
			h.At(t, func() {
				if _, err := h.Play(path, volume); err != nil {
					c.logger.Warn("play cue failed", "path", path, "error", err)
				}
			})
		}, nil

	case KindStop:
		return func(h *sequencer.Handle) {
			h.At(t, h.KillAll)
		}, nil

	case KindShow:
		return c.compileNest(ctx, *cue.Show, t, stack, memo)

	case KindLabels:
		return c.compileLabels(*cue.Labels, t)

	default:
		return nil, ErrInvalidCue
	}
}

func (c *Compiler) compileNest(ctx context.Context, nest NestAction, t float64, stack []string, memo map[string]*sequencer.Sheet) (step, error) {
	for _, slug := range stack {
		if slug == nest.Show {
			return nil, fmt.Errorf("%w: %s -> %s", ErrShowCycle, strings.Join(stack, " -> "), nest.Show)
		}
	}

	child, ok := memo[nest.Show]
	if !ok {
		if c.shows == nil {
			return nil, fmt.Errorf("%w: %s", ErrShowNotFound, nest.Show)
		}
		show, err := c.shows.GetShowBySlug(ctx, nest.Show)
		if err != nil {
			return nil, fmt.Errorf("nested show %s: %w", nest.Show, err)
		}
		child, err = c.compile(ctx, show, append(stack[:len(stack):len(stack)], nest.Show), memo)
		if err != nil {
			return nil, err
		}
		memo[nest.Show] = child
	}

	slope := nest.Slope
	options := nest.Options
	return func(h *sequencer.Handle) {
		_, err := h.Nest(t, child, sequencer.NestOptions{
			Slope:   slope,
			Options: resolveOptions(h.Options(), options),
		})
		if err != nil {
			c.logger.Error("nesting show failed", "show", nest.Show, "error", err)
		}
	}, nil
}

func (c *Compiler) compileLabels(action LabelsAction, t float64) (step, error) {
	if c.tracks == nil {
		return nil, fmt.Errorf("%w: %s", labels.ErrTrackNotFound, action.Track)
	}
	track, err := c.tracks.Track(action.Track)
	if err != nil {
		return nil, err
	}
	track = track.Shift(t)

	return func(h *sequencer.Handle) {
		labels.Apply(h, track, func(l labels.Label) func() {
			value := labelValue(l.Text)
			return func() { c.set(action.Module, action.Parameter, value) }
		})
	}, nil
}

// set forwards a parameter write, logging rejected writes.
func (c *Compiler) set(module, parameter string, value any) {
	if c.out == nil {
		return
	}
	if err := c.out.Set(module, parameter, value); err != nil {
		c.logger.Warn("set cue rejected",
			"module", module,
			"parameter", parameter,
			"error", err,
		)
	}
}

// resolveValue substitutes a "$name" string with the instance option name.
// Unknown names are passed through unchanged.
func resolveValue(opts sequencer.Options, v any) any {
	s, ok := v.(string)
	if !ok || len(s) < 2 || s[0] != '$' {
		return v
	}
	if opt, found := opts[s[1:]]; found {
		return opt
	}
	return v
}

// resolveOptions builds a child's options, resolving "$name" references
// against the parent's options.
func resolveOptions(parent sequencer.Options, child map[string]any) sequencer.Options {
	out := make(sequencer.Options, len(child))
	for k, v := range child {
		out[k] = resolveValue(parent, deepCopyValue(v))
	}
	return out
}

// labelValue returns the label text as a number when it parses as one.
func labelValue(text string) any {
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}
	return text
}

// IsCompileError reports whether err is a show authoring error rather than
// an infrastructure failure. The API maps these to 422.
func IsCompileError(err error) bool {
	return errors.Is(err, ErrInvalidShow) ||
		errors.Is(err, ErrInvalidCue) ||
		errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidSlug) ||
		errors.Is(err, ErrShowCycle) ||
		errors.Is(err, ErrShowNotFound) ||
		errors.Is(err, labels.ErrTrackNotFound)
}
