package library

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Limits on stored shows. Slugs double as MQTT topic segments and
// file names, so they stay short and ASCII.
const (
	maxNameLength     = 100
	maxSlugLength     = 50
	maxDescriptionLen = 500
	maxCues           = 5000
	maxTempo          = 1000
	maxVolume         = 2
)

var slugRE = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidateShow returns the first problem found in s, wrapping one of
// ErrInvalidShow, ErrInvalidName, ErrInvalidSlug or ErrInvalidCue.
func ValidateShow(s *Show) error {
	if s == nil {
		return ErrInvalidShow
	}
	if err := ValidateName(s.Name); err != nil {
		return err
	}
	if s.Slug != "" {
		if err := ValidateSlug(s.Slug); err != nil {
			return err
		}
	}

	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrInvalidShow}, args...)...)
	}
	switch {
	case s.Description != nil && len(*s.Description) > maxDescriptionLen:
		return bad("description longer than %d characters", maxDescriptionLen)
	case s.StartTime != nil && !finite(*s.StartTime):
		return bad("start_time must be finite")
	case s.EndTime != nil && !finite(*s.EndTime):
		return bad("end_time must be finite")
	case s.StartTime != nil && s.EndTime != nil && *s.EndTime < *s.StartTime:
		return bad("end_time %g is before start_time %g", *s.EndTime, *s.StartTime)
	case !finite(s.Tempo) || s.Tempo < 0 || s.Tempo > maxTempo:
		return bad("tempo must be within 0-%d", maxTempo)
	case !finite(s.RepeatTime) || s.RepeatTime < 0:
		return bad("repeat_time must not be negative")
	case len(s.Cues) > maxCues:
		return bad("%d cues, at most %d allowed", len(s.Cues), maxCues)
	}

	for i, c := range s.Cues {
		if err := ValidateCue(c); err != nil {
			return fmt.Errorf("cue[%d]: %w", i, err)
		}
	}
	return nil
}

// ValidateName rejects blank names and names over maxNameLength bytes.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: blank", ErrInvalidName)
	case len(name) > maxNameLength:
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateSlug accepts hyphen-separated runs of lowercase ASCII letters
// and digits, e.g. "idle-blink".
func ValidateSlug(slug string) error {
	switch {
	case slug == "":
		return fmt.Errorf("%w: empty", ErrInvalidSlug)
	case len(slug) > maxSlugLength:
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidSlug, slug, maxSlugLength)
	case !slugRE.MatchString(slug):
		return fmt.Errorf("%w: %q is not lowercase words joined by hyphens", ErrInvalidSlug, slug)
	}
	return nil
}

// ValidateCue checks a single cue.
func ValidateCue(c Cue) error {
	switch c.actionCount() {
	case 0:
		return fmt.Errorf("%w: one of set, play, stop, show or labels is required", ErrInvalidCue)
	case 1:
	default:
		return fmt.Errorf("%w: only one action per cue", ErrInvalidCue)
	}

	if c.Time != nil && c.After != nil {
		return fmt.Errorf("%w: time and after are mutually exclusive", ErrInvalidCue)
	}
	if c.Time != nil && !finite(*c.Time) {
		return fmt.Errorf("%w: time must be finite", ErrInvalidCue)
	}
	if c.After != nil && (!finite(*c.After) || *c.After < 0) {
		return fmt.Errorf("%w: after must be >= 0", ErrInvalidCue)
	}

	switch {
	case c.Set != nil:
		if strings.TrimSpace(c.Set.Module) == "" {
			return fmt.Errorf("%w: set.module is required", ErrInvalidCue)
		}
		if c.Set.Parameter == "" {
			return fmt.Errorf("%w: set.parameter is required", ErrInvalidCue)
		}
	case c.Play != nil:
		if c.Play.Path == "" {
			return fmt.Errorf("%w: play.path is required", ErrInvalidCue)
		}
		if v := c.Play.Volume; v != nil && (!finite(*v) || *v < 0 || *v > maxVolume) {
			return fmt.Errorf("%w: play.volume must be 0-%d", ErrInvalidCue, maxVolume)
		}
	case c.Show != nil:
		if err := ValidateSlug(c.Show.Show); err != nil {
			return fmt.Errorf("%w: show: %w", ErrInvalidCue, err)
		}
		if !finite(c.Show.Slope) || c.Show.Slope < 0 {
			return fmt.Errorf("%w: show.slope must be >= 0", ErrInvalidCue)
		}
	case c.Labels != nil:
		if c.Labels.Track == "" || c.Labels.Module == "" || c.Labels.Parameter == "" {
			return fmt.Errorf("%w: labels needs track, module and parameter", ErrInvalidCue)
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// GenerateSlug derives a slug from a display name. Spaces, underscores
// and hyphens separate words; any other rune outside [a-z0-9] is dropped.
// The result may be empty.
func GenerateSlug(name string) string {
	var b strings.Builder
	gap := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if gap && b.Len() > 0 {
				b.WriteByte('-')
			}
			gap = false
			b.WriteRune(r)
		case r == ' ' || r == '_' || r == '-':
			gap = true
		}
	}

	slug := b.String()
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// GenerateID returns a random UUID for a show or playback row.
func GenerateID() string {
	return uuid.NewString()
}
