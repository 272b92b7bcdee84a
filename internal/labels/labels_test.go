package labels

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TheElectricFursuits/tef-synth-animation/internal/sequencer"
)

// ─── Parse ──────────────────────────────────────────────────────────────────

func TestParse(t *testing.T) {
	input := strings.Join([]string{
		"# exported track",
		"",
		"1.250\t1.500\tears-up",
		"0.000\t0.500\tblink",
		"2.0\t\twag",
		"3.5",
		"1.250\t1.250\tsecond-at-same-time\r",
	}, "\n")

	got, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []Label{
		{Start: 0, Stop: 0.5, Text: "blink"},
		{Start: 1.25, Stop: 1.5, Text: "ears-up"},
		{Start: 1.25, Stop: 1.25, Text: "second-at-same-time"},
		{Start: 2, Stop: 2, Text: "wag"},
		{Start: 3.5, Stop: 3.5, Text: ""},
	}
	if len(got) != len(want) {
		t.Fatalf("Parse() returned %d labels, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("label %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bad start", "abc\t1.0\tx"},
		{"bad stop", "1.0\tnope\tx"},
		{"stop before start", "2.0\t1.0\tx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader("0\t0\tok\n" + tt.input))
			if !errors.Is(err, ErrMalformedLine) {
				t.Fatalf("Parse() error = %v, want ErrMalformedLine", err)
			}
			if !strings.Contains(err.Error(), "line 2") {
				t.Errorf("error %q should name line 2", err)
			}
		})
	}
}

func TestLabelDuration(t *testing.T) {
	l := Label{Start: 1.5, Stop: 4}
	if l.Duration() != 2.5 {
		t.Errorf("Duration() = %v, want 2.5", l.Duration())
	}
}

// ─── LoadDir ────────────────────────────────────────────────────────────────

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "beat.txt", "0\t0\tkick\n0.5\t0.5\tsnare\n")
	writeFile(t, dir, "blinks.labels", "1\t1.2\tblink\n")
	writeFile(t, dir, "notes.md", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "nested.txt"), 0o700); err != nil {
		t.Fatal(err)
	}

	lib, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}

	names := lib.Names()
	if len(names) != 2 || names[0] != "beat" || names[1] != "blinks" {
		t.Fatalf("Names() = %v, want [beat blinks]", names)
	}

	beat, err := lib.Track("beat")
	if err != nil {
		t.Fatalf("Track(beat) error = %v", err)
	}
	if len(beat.Labels) != 2 || beat.Labels[1].Text != "snare" {
		t.Errorf("beat = %+v", beat)
	}

	if _, err := lib.Track("missing"); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("Track(missing) error = %v, want ErrTrackNotFound", err)
	}
}

func TestLoadDir_Missing(t *testing.T) {
	lib, err := LoadDir(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if lib.Len() != 0 {
		t.Errorf("Len() = %d, want 0", lib.Len())
	}
}

func TestLoadDir_BadFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.txt", "x\ty\tz\n")

	_, err := LoadDir(dir)
	if !errors.Is(err, ErrMalformedLine) {
		t.Fatalf("LoadDir() error = %v, want ErrMalformedLine", err)
	}
	if !strings.Contains(err.Error(), "broken.txt") {
		t.Errorf("error %q should name the file", err)
	}
}

// ─── Apply ──────────────────────────────────────────────────────────────────

func TestApply(t *testing.T) {
	track := Track{
		Name: "beat",
		Labels: []Label{
			{Start: 0.5, Stop: 0.5, Text: "kick"},
			{Start: 1.0, Stop: 1.0, Text: "skip"},
			{Start: 0.25, Stop: 0.25, Text: "snare"},
		},
	}

	var scheduled int
	sheet := &sequencer.Sheet{
		Fill: func(h *sequencer.Handle) {
			scheduled = Apply(h, track, func(l Label) func() {
				if l.Text == "skip" {
					return nil
				}
				return func() {}
			})
		},
	}

	seq, err := sequencer.NewSheetSequence(sheet, 0, 1, nil, sequencer.Env{})
	if err != nil {
		t.Fatalf("NewSheetSequence() error = %v", err)
	}

	if scheduled != 2 {
		t.Errorf("Apply() = %d, want 2", scheduled)
	}
	times := seq.NoteTimes()
	if len(times) != 2 || times[0] != 0.25 || times[1] != 0.5 {
		t.Errorf("NoteTimes() = %v, want [0.25 0.5]", times)
	}
}

func TestTrackShift(t *testing.T) {
	track := Track{Name: "beat", Labels: []Label{{Start: 0.5, Stop: 1, Text: "kick"}}}
	shifted := track.Shift(2)

	if shifted.Labels[0].Start != 2.5 || shifted.Labels[0].Stop != 3 {
		t.Errorf("Shift(2) = %+v", shifted.Labels[0])
	}
	if track.Labels[0].Start != 0.5 {
		t.Error("Shift must not modify the original track")
	}
}
