package library

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestValidateShow(t *testing.T) {
	valid := func() *Show { return testShow("s1", "Ear Wiggle") }

	tests := []struct {
		name   string
		modify func(s *Show)
		want   error
	}{
		{"valid", func(*Show) {}, nil},
		{"empty name", func(s *Show) { s.Name = " " }, ErrInvalidName},
		{"long name", func(s *Show) { s.Name = strings.Repeat("x", 101) }, ErrInvalidName},
		{"bad slug", func(s *Show) { s.Slug = "Not A Slug" }, ErrInvalidSlug},
		{"long description", func(s *Show) { d := strings.Repeat("x", 501); s.Description = &d }, ErrInvalidShow},
		{"end before start", func(s *Show) { s.StartTime = floatPtr(5); s.EndTime = floatPtr(1) }, ErrInvalidShow},
		{"nan start", func(s *Show) { s.StartTime = floatPtr(math.NaN()) }, ErrInvalidShow},
		{"infinite end", func(s *Show) { s.EndTime = floatPtr(math.Inf(1)) }, ErrInvalidShow},
		{"negative tempo", func(s *Show) { s.Tempo = -1 }, ErrInvalidShow},
		{"tempo too high", func(s *Show) { s.Tempo = 1001 }, ErrInvalidShow},
		{"negative repeat", func(s *Show) { s.RepeatTime = -2 }, ErrInvalidShow},
		{"too many cues", func(s *Show) { s.Cues = make([]Cue, maxCues+1) }, ErrInvalidShow},
		{"invalid cue", func(s *Show) { s.Cues = append(s.Cues, Cue{}) }, ErrInvalidCue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.modify(s)
			if err := ValidateShow(s); !errors.Is(err, tt.want) {
				t.Errorf("ValidateShow() error = %v, want %v", err, tt.want)
			}
		})
	}

	if err := ValidateShow(nil); !errors.Is(err, ErrInvalidShow) {
		t.Errorf("ValidateShow(nil) error = %v", err)
	}
}

func TestValidateCue(t *testing.T) {
	set := &SetAction{Module: "ears", Parameter: "hue", Value: 0.5}

	tests := []struct {
		name string
		cue  Cue
		want error
	}{
		{"set", Cue{Set: set}, nil},
		{"stop", Cue{Time: floatPtr(1), Stop: true}, nil},
		{"negative time is allowed", Cue{Time: floatPtr(-1), Set: set}, nil},
		{"no action", Cue{Time: floatPtr(1)}, ErrInvalidCue},
		{"two actions", Cue{Set: set, Stop: true}, ErrInvalidCue},
		{"time and after", Cue{Time: floatPtr(1), After: floatPtr(1), Set: set}, ErrInvalidCue},
		{"nan time", Cue{Time: floatPtr(math.NaN()), Set: set}, ErrInvalidCue},
		{"negative after", Cue{After: floatPtr(-0.5), Set: set}, ErrInvalidCue},
		{"set without module", Cue{Set: &SetAction{Parameter: "hue"}}, ErrInvalidCue},
		{"set without parameter", Cue{Set: &SetAction{Module: "ears"}}, ErrInvalidCue},
		{"play", Cue{Play: &PlayAction{Path: "a.ogg", Volume: floatPtr(1.5)}}, nil},
		{"play without path", Cue{Play: &PlayAction{}}, ErrInvalidCue},
		{"play too loud", Cue{Play: &PlayAction{Path: "a.ogg", Volume: floatPtr(3)}}, ErrInvalidCue},
		{"nest", Cue{Show: &NestAction{Show: "blink", Slope: 0.5}}, nil},
		{"nest bad slug", Cue{Show: &NestAction{Show: "Blink!"}}, ErrInvalidSlug},
		{"nest negative slope", Cue{Show: &NestAction{Show: "blink", Slope: -1}}, ErrInvalidCue},
		{"labels", Cue{Labels: &LabelsAction{Track: "beat", Module: "ears", Parameter: "angle"}}, nil},
		{"labels without track", Cue{Labels: &LabelsAction{Module: "ears", Parameter: "angle"}}, ErrInvalidCue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateCue(tt.cue); !errors.Is(err, tt.want) {
				t.Errorf("ValidateCue() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateSlug(t *testing.T) {
	tests := []struct {
		slug  string
		valid bool
	}{
		{"blink", true},
		{"tail-wag-2", true},
		{"", false},
		{"-blink", false},
		{"blink-", false},
		{"double--dash", false},
		{"Upper", false},
		{"under_score", false},
		{strings.Repeat("a", 51), false},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			err := ValidateSlug(tt.slug)
			if (err == nil) != tt.valid {
				t.Errorf("ValidateSlug(%q) error = %v, valid = %v", tt.slug, err, tt.valid)
			}
		})
	}
}

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Ear Wiggle", "ear-wiggle"},
		{"tail_wag", "tail-wag"},
		{"  Blink!! Blink  ", "blink-blink"},
		{"Boop -- Boop", "boop-boop"},
		{"ÜberShow", "bershow"},
		{strings.Repeat("ab ", 30), strings.TrimRight(strings.Repeat("ab-", 17)[:50], "-")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateSlug(tt.name)
			if got != tt.want {
				t.Errorf("GenerateSlug(%q) = %q, want %q", tt.name, got, tt.want)
			}
			if got != "" {
				if err := ValidateSlug(got); err != nil {
					t.Errorf("generated slug %q is invalid: %v", got, err)
				}
			}
		})
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Error("GenerateID() should be unique")
	}
	if len(a) != 36 {
		t.Errorf("GenerateID() = %q, want a UUID", a)
	}
}

func TestCueKind(t *testing.T) {
	tests := []struct {
		cue  Cue
		want string
	}{
		{Cue{Set: &SetAction{}}, KindSet},
		{Cue{Play: &PlayAction{}}, KindPlay},
		{Cue{Stop: true}, KindStop},
		{Cue{Show: &NestAction{}}, KindShow},
		{Cue{Labels: &LabelsAction{}}, KindLabels},
		{Cue{}, ""},
	}

	for _, tt := range tests {
		if got := tt.cue.Kind(); got != tt.want {
			t.Errorf("Kind() = %q, want %q", got, tt.want)
		}
	}
}
