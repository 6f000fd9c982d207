package keywords

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/verte-zerg/pitchcoach/internal/model"
)

func validPitch() model.PitchConfig {
	return model.PitchConfig{
		Title:         "Seed round",
		Keywords:      []string{"market size", "team", "ask"},
		Flagged:       []string{"ask"},
		TargetMinutes: 5,
		Language:      "en-US",
	}
}

func TestValidateAcceptsValidPitch(t *testing.T) {
	if err := Validate(validPitch()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	p := model.PitchConfig{
		Keywords:      []string{"team", "Team", " "},
		Flagged:       []string{"ask"},
		TargetMinutes: 7,
		Language:      "not a tag!",
	}
	err := Validate(p)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"title is required", "duplicate", "blank", "flagged keyword \"ask\"", "target duration 7", "BCP-47"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
}

func TestReady(t *testing.T) {
	if err := Ready(validPitch()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := validPitch()
	p.Title = "  "
	if err := Ready(p); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	p = validPitch()
	p.Keywords = nil
	if err := Ready(p); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	p := model.PitchConfig{
		Title:         "  Demo day ",
		Keywords:      []string{" market  size", "Market size", "", "team"},
		Flagged:       []string{"TEAM", "ghost", "team"},
		TargetMinutes: 5,
		Language:      "fr-fr",
	}
	got := Normalize(p)
	if got.Title != "Demo day" {
		t.Fatalf("unexpected title %q", got.Title)
	}
	if !reflect.DeepEqual(got.Keywords, []string{"market size", "team"}) {
		t.Fatalf("unexpected keywords %v", got.Keywords)
	}
	if !reflect.DeepEqual(got.Flagged, []string{"team"}) {
		t.Fatalf("unexpected flagged %v", got.Flagged)
	}
	if got.Language != "fr-FR" {
		t.Fatalf("unexpected language %q", got.Language)
	}
	if len(p.Keywords) != 4 {
		t.Fatalf("normalize must not mutate its input")
	}
}
