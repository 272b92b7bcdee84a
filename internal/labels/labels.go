package labels

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/TheElectricFursuits/tef-synth-animation/internal/sequencer"
)

// Extensions recognised by LoadDir.
var trackExtensions = map[string]bool{
	".txt":    true,
	".labels": true,
}

// Label is one timed entry of a track.
type Label struct {
	Start float64 `json:"start"`
	Stop  float64 `json:"stop"`
	Text  string  `json:"text"`
}

// Duration returns Stop - Start.
func (l Label) Duration() float64 {
	return l.Stop - l.Start
}

// Track is a named, start-ordered list of labels.
type Track struct {
	Name   string  `json:"name"`
	Labels []Label `json:"labels"`
}

// Parse reads labels from r. The result is sorted by start time; labels with
// equal start keep file order.
func Parse(r io.Reader) ([]Label, error) {
	var out []Label
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		label, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, label)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading labels: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

// parseLine splits one start<TAB>stop<TAB>text line.
func parseLine(line string) (Label, error) {
	fields := strings.SplitN(line, "\t", 3)

	start, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return Label{}, fmt.Errorf("%w: start %q", ErrMalformedLine, fields[0])
	}

	label := Label{Start: start, Stop: start}
	if len(fields) > 1 {
		if s := strings.TrimSpace(fields[1]); s != "" {
			stop, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return Label{}, fmt.Errorf("%w: stop %q", ErrMalformedLine, s)
			}
			if stop < start {
				return Label{}, fmt.Errorf("%w: stop %.3f before start %.3f", ErrMalformedLine, stop, start)
			}
			label.Stop = stop
		}
	}
	if len(fields) > 2 {
		label.Text = strings.TrimSpace(fields[2])
	}
	return label, nil
}

// ParseFile reads a label file into a track named after the file.
func ParseFile(path string) (Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return Track{}, fmt.Errorf("opening label file: %w", err)
	}
	defer f.Close()

	entries, err := Parse(f)
	if err != nil {
		return Track{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return Track{Name: trackName(path), Labels: entries}, nil
}

// trackName is the file's base name without extension.
func trackName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Library holds the tracks loaded from a directory, keyed by name.
type Library struct {
	tracks map[string]Track
}

// LoadDir loads every *.txt and *.labels file in dir (not recursive).
// A missing directory yields an empty library.
func LoadDir(dir string) (*Library, error) {
	lib := &Library{tracks: make(map[string]Track)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return lib, nil
		}
		return nil, fmt.Errorf("reading labels directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !trackExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		track, err := ParseFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		lib.tracks[track.Name] = track
	}
	return lib, nil
}

// Track returns the named track.
func (l *Library) Track(name string) (Track, error) {
	if l == nil {
		return Track{}, fmt.Errorf("%w: %s", ErrTrackNotFound, name)
	}
	t, ok := l.tracks[name]
	if !ok {
		return Track{}, fmt.Errorf("%w: %s", ErrTrackNotFound, name)
	}
	return t, nil
}

// Names returns the loaded track names, sorted.
func (l *Library) Names() []string {
	if l == nil {
		return nil
	}
	names := make([]string, 0, len(l.tracks))
	for name := range l.tracks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of loaded tracks.
func (l *Library) Len() int {
	if l == nil {
		return 0
	}
	return len(l.tracks)
}

// Apply schedules one note per label on h. fn builds the callback for each
// label; a nil callback skips that label. It returns the number of notes
// scheduled.
func Apply(h *sequencer.Handle, track Track, fn func(Label) func()) int {
	n := 0
	for _, label := range track.Labels {
		cb := fn(label)
		if cb == nil {
			continue
		}
		h.At(label.Start, cb)
		n++
	}
	return n
}

// Shift returns a copy of the track with every label moved by dt.
func (t Track) Shift(dt float64) Track {
	out := Track{Name: t.Name, Labels: make([]Label, len(t.Labels))}
	for i, l := range t.Labels {
		out.Labels[i] = Label{Start: l.Start + dt, Stop: l.Stop + dt, Text: l.Text}
	}
	return out
}
