package library

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeShowFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

const faceShow = `
name: Face
description: idle face loop
end_time: 8
repeat_time: 4
tempo: 120
cues:
  - time: 0
    set: {module: eyes, parameter: open, value: true}
  - after: 0.5
    play: {path: sfx/boop.ogg, volume: 0.8}
  - show:
      show: blink
      slope: 2
      options: {speed: $speed}
  - time: 3
    labels: {track: beat, module: ears, parameter: angle}
  - time: 3.5
    stop: true
`

func TestLoadFile(t *testing.T) {
	path := writeShowFile(t, t.TempDir(), "idle-face.yaml", faceShow)

	show, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if show.Name != "Face" || show.Slug != "idle-face" {
		t.Errorf("name/slug = %q/%q", show.Name, show.Slug)
	}
	if show.Description == nil || *show.Description != "idle face loop" {
		t.Errorf("Description = %v", show.Description)
	}
	if show.EndTime == nil || *show.EndTime != 8 || show.RepeatTime != 4 || show.Tempo != 120 {
		t.Errorf("timing = %v %v %v", show.EndTime, show.RepeatTime, show.Tempo)
	}

	kinds := make([]string, len(show.Cues))
	for i, c := range show.Cues {
		kinds[i] = c.Kind()
	}
	if got := strings.Join(kinds, ","); got != "set,play,show,labels,stop" {
		t.Errorf("cue kinds = %s", got)
	}

	if show.Cues[0].Set.Value != true {
		t.Errorf("set value = %#v, want true", show.Cues[0].Set.Value)
	}
	if *show.Cues[1].After != 0.5 || *show.Cues[1].Play.Volume != 0.8 {
		t.Errorf("play cue = %+v", show.Cues[1])
	}
	nest := show.Cues[2].Show
	if nest.Show != "blink" || nest.Slope != 2 || nest.Options["speed"] != "$speed" {
		t.Errorf("nest cue = %+v", nest)
	}
}

func TestLoadFile_Defaults(t *testing.T) {
	path := writeShowFile(t, t.TempDir(), "Tail Wag.yml", "cues: []\n")

	show, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if show.Slug != "tail-wag" || show.Name != "tail-wag" {
		t.Errorf("name/slug = %q/%q, want tail-wag", show.Name, show.Slug)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"bad cue", "cues:\n  - time: 1\n", ErrInvalidCue},
		{"bad tempo", "tempo: -5\n", ErrInvalidShow},
		{"bad slug", "slug: Not Valid\n", ErrInvalidSlug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeShowFile(t, dir, "show.yaml", tt.content)
			_, err := LoadFile(path)
			if !errors.Is(err, tt.want) {
				t.Fatalf("LoadFile() error = %v, want %v", err, tt.want)
			}
			if !strings.Contains(err.Error(), "show.yaml") {
				t.Errorf("error %q should name the file", err)
			}
		})
	}

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeShowFile(t, dir, "broken.yaml", "cues: [\n")
		if _, err := LoadFile(path); err == nil {
			t.Fatal("LoadFile() should fail on malformed YAML")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadFile(filepath.Join(dir, "nope.yaml")); err == nil {
			t.Fatal("LoadFile() should fail on a missing file")
		}
	})
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeShowFile(t, dir, "b-wiggle.yaml", "name: Wiggle\n")
	writeShowFile(t, dir, "a-blink.YML", "name: Blink\n")
	writeShowFile(t, dir, "README.md", "not a show")
	if err := os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o700); err != nil {
		t.Fatal(err)
	}

	shows, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if len(shows) != 2 || shows[0].Slug != "a-blink" || shows[1].Slug != "b-wiggle" {
		t.Errorf("LoadDir() = %+v", shows)
	}
}

func TestLoadDir_DuplicateSlug(t *testing.T) {
	dir := t.TempDir()
	writeShowFile(t, dir, "one.yaml", "name: One\nslug: same\n")
	writeShowFile(t, dir, "two.yaml", "name: Two\nslug: same\n")

	if _, err := LoadDir(dir); !errors.Is(err, ErrShowExists) {
		t.Errorf("LoadDir() error = %v, want ErrShowExists", err)
	}
}

func TestLoadDir_Missing(t *testing.T) {
	shows, err := LoadDir(filepath.Join(t.TempDir(), "absent"))
	if err != nil || len(shows) != 0 {
		t.Errorf("LoadDir(missing) = %v, %v", shows, err)
	}
}
