package library

import "time"

// Show is a declarative program: a list of timed cues plus the timing
// attributes of the sheet it compiles to.
type Show struct {
	// Identity
	ID   string `json:"id" yaml:"id,omitempty"`
	Name string `json:"name" yaml:"name"`
	Slug string `json:"slug" yaml:"slug,omitempty"`

	Description *string `json:"description,omitempty" yaml:"description,omitempty"`

	// Timing, in local units (seconds, or beats when Tempo is set).
	StartTime  *float64 `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	EndTime    *float64 `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	Tempo      float64  `json:"tempo,omitempty" yaml:"tempo,omitempty"`
	RepeatTime float64  `json:"repeat_time,omitempty" yaml:"repeat_time,omitempty"`

	// Cues in authoring order. Times need not be sorted.
	Cues []Cue `json:"cues" yaml:"cues"`

	// Timestamps
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// Cue is one timed action. Exactly one of Set, Play, Stop, Show or Labels
// is given. Time is absolute in the show's timeline; After is relative to
// the previous cue. With neither, the cue reuses the previous cue's time.
type Cue struct {
	Time  *float64 `json:"time,omitempty" yaml:"time,omitempty"`
	After *float64 `json:"after,omitempty" yaml:"after,omitempty"`

	Set    *SetAction    `json:"set,omitempty" yaml:"set,omitempty"`
	Play   *PlayAction   `json:"play,omitempty" yaml:"play,omitempty"`
	Stop   bool          `json:"stop,omitempty" yaml:"stop,omitempty"`
	Show   *NestAction   `json:"show,omitempty" yaml:"show,omitempty"`
	Labels *LabelsAction `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Cue kinds, as reported by Cue.Kind.
const (
	KindSet    = "set"
	KindPlay   = "play"
	KindStop   = "stop"
	KindShow   = "show"
	KindLabels = "labels"
)

// Kind returns the action kind of the cue, or "" when none is set.
// Validation rejects cues with more than one.
func (c Cue) Kind() string {
	switch {
	case c.Set != nil:
		return KindSet
	case c.Play != nil:
		return KindPlay
	case c.Stop:
		return KindStop
	case c.Show != nil:
		return KindShow
	case c.Labels != nil:
		return KindLabels
	default:
		return ""
	}
}

// actionCount returns how many actions the cue carries.
func (c Cue) actionCount() int {
	n := 0
	if c.Set != nil {
		n++
	}
	if c.Play != nil {
		n++
	}
	if c.Stop {
		n++
	}
	if c.Show != nil {
		n++
	}
	if c.Labels != nil {
		n++
	}
	return n
}

// SetAction writes one animation parameter. A string value of the form
// "$name" is replaced by the instance option "name" when it exists.
type SetAction struct {
	Module    string `json:"module" yaml:"module"`
	Parameter string `json:"parameter" yaml:"parameter"`
	Value     any    `json:"value" yaml:"value"`
}

// PlayAction starts an external audio playback.
type PlayAction struct {
	Path string `json:"path" yaml:"path"`

	// Volume is linear gain, 1 = unchanged. Nil means 1.
	Volume *float64 `json:"volume,omitempty" yaml:"volume,omitempty"`
}

// NestAction runs another show, by slug, as a child program.
type NestAction struct {
	Show string `json:"show" yaml:"show"`

	// Slope is child time units per parent unit. Zero means 1.
	Slope float64 `json:"slope,omitempty" yaml:"slope,omitempty"`

	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// LabelsAction turns every label of a track into a parameter write, offset
// by the cue's time. The label text is the value, as a number when it
// parses as one.
type LabelsAction struct {
	Track     string `json:"track" yaml:"track"`
	Module    string `json:"module" yaml:"module"`
	Parameter string `json:"parameter" yaml:"parameter"`
}

// Playback records one show assigned to a player slot.
type Playback struct {
	ID         string         `json:"id"`
	ShowID     string         `json:"show_id"`
	Slot       string         `json:"slot"`
	Options    map[string]any `json:"options,omitempty"`
	Source     *string        `json:"source,omitempty"` // api, mqtt, startup
	Status     PlaybackStatus `json:"status"`
	AssignedAt time.Time      `json:"assigned_at"`
	EndedAt    *time.Time     `json:"ended_at,omitempty"`
}

// PlaybackStatus is the state of a playback record.
type PlaybackStatus string

const (
	PlaybackAssigned PlaybackStatus = "assigned" // Still owned by the player
	PlaybackReplaced PlaybackStatus = "replaced" // Another show took the slot
	PlaybackRemoved  PlaybackStatus = "removed"  // Slot cleared on request
	PlaybackFinished PlaybackStatus = "finished" // Reached its end on its own
	PlaybackStopped  PlaybackStatus = "stopped"  // Player shut down
)

// DeepCopy creates a complete independent copy of the Show.
// Cached shows are handed out through copies so callers cannot corrupt the
// cache.
func (s *Show) DeepCopy() *Show {
	if s == nil {
		return nil
	}

	cpy := *s
	cpy.Description = cloneStringPtr(s.Description)
	cpy.StartTime = cloneFloatPtr(s.StartTime)
	cpy.EndTime = cloneFloatPtr(s.EndTime)

	if s.Cues != nil {
		cpy.Cues = make([]Cue, len(s.Cues))
		for i, c := range s.Cues {
			cpy.Cues[i] = c.deepCopy()
		}
	}
	return &cpy
}

func (c Cue) deepCopy() Cue {
	cpy := c
	cpy.Time = cloneFloatPtr(c.Time)
	cpy.After = cloneFloatPtr(c.After)
	if c.Set != nil {
		set := *c.Set
		set.Value = deepCopyValue(c.Set.Value)
		cpy.Set = &set
	}
	if c.Play != nil {
		play := *c.Play
		play.Volume = cloneFloatPtr(c.Play.Volume)
		cpy.Play = &play
	}
	if c.Show != nil {
		nest := *c.Show
		nest.Options = deepCopyMap(c.Show.Options)
		cpy.Show = &nest
	}
	if c.Labels != nil {
		l := *c.Labels
		cpy.Labels = &l
	}
	return cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies nested maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloatPtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
