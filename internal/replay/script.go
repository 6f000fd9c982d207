// Package replay drives practice sessions from scripted YAML timelines of
// transcript fragments, engine errors and volume samples on a virtual clock.
package replay

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/pitchcoach/internal/model"
)

// Event is one timed entry of a script. Exactly one of Text, Error or
// Volume must be set.
type Event struct {
	At      time.Duration `yaml:"at"`
	Text    string        `yaml:"text,omitempty"`
	Partial bool          `yaml:"partial,omitempty"`
	Error   string        `yaml:"error,omitempty"`
	Volume  *float64      `yaml:"volume,omitempty"`
}

// Pitch is an inline pitch for scripts that do not reference a stored one.
type Pitch struct {
	Title    string   `yaml:"title"`
	Keywords []string `yaml:"keywords"`
	Flagged  []string `yaml:"flagged,omitempty"`
	Minutes  int      `yaml:"minutes"`
}

// Script is a recorded or hand-written practice timeline.
type Script struct {
	Lang        string        `yaml:"lang,omitempty"`
	Unsupported bool          `yaml:"unsupported,omitempty"`
	MicDenied   bool          `yaml:"mic_denied,omitempty"`
	Duration    time.Duration `yaml:"duration,omitempty"`
	Pitch       *Pitch        `yaml:"pitch,omitempty"`
	Events      []Event       `yaml:"events"`

	// Name is the script file name without extension, set by Load.
	Name string `yaml:"-"`
}

// Load reads and validates the script at path.
func Load(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: open %q: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			// Best-effort close of a read-only file.
			_ = cerr
		}
	}()
	s, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("replay: parse %q: %w", path, err)
	}
	s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return s, nil
}

// Parse decodes a script from r and validates it. Unknown keys are rejected.
func Parse(r io.Reader) (*Script, error) {
	s := &Script{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks event ordering and payloads.
func (s *Script) Validate() error {
	var errs []error
	var prev time.Duration
	for i, ev := range s.Events {
		if ev.At < 0 {
			errs = append(errs, fmt.Errorf("events[%d].at must not be negative", i))
		}
		if ev.At < prev {
			errs = append(errs, fmt.Errorf("events[%d].at %s is before the previous event", i, ev.At))
		}
		prev = ev.At
		set := 0
		if ev.Text != "" {
			set++
		}
		if ev.Error != "" {
			set++
		}
		if ev.Volume != nil {
			set++
			if *ev.Volume < 0 || *ev.Volume > 255 {
				errs = append(errs, fmt.Errorf("events[%d].volume %.1f is outside 0-255", i, *ev.Volume))
			}
		}
		if set != 1 {
			errs = append(errs, fmt.Errorf("events[%d] must set exactly one of text, error or volume", i))
		}
		if ev.Partial && ev.Text == "" {
			errs = append(errs, fmt.Errorf("events[%d].partial requires text", i))
		}
	}
	if s.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration must not be negative"))
	}
	if s.Pitch != nil && len(s.Pitch.Keywords) == 0 {
		errs = append(errs, fmt.Errorf("pitch.keywords must not be empty"))
	}
	return errors.Join(errs...)
}

// End returns when the session is stopped: Duration if set, otherwise the
// last event rounded up to the next whole second.
func (s *Script) End() time.Duration {
	if s.Duration > 0 {
		return s.Duration
	}
	if len(s.Events) == 0 {
		return 0
	}
	last := s.Events[len(s.Events)-1].At
	return ((last + time.Second - 1) / time.Second) * time.Second
}

// PitchConfig converts the inline pitch. It reports false when the script has
// none. The id is derived from the script name, or the pitch title for parsed
// scripts, so history from different scripts stays apart.
func (s *Script) PitchConfig(userID string) (model.PitchConfig, bool) {
	if s.Pitch == nil {
		return model.PitchConfig{}, false
	}
	return model.PitchConfig{
		ID:            s.pitchID(),
		UserID:        userID,
		Title:         s.Pitch.Title,
		Keywords:      append([]string(nil), s.Pitch.Keywords...),
		Flagged:       append([]string(nil), s.Pitch.Flagged...),
		TargetMinutes: s.Pitch.Minutes,
		Language:      s.Lang,
	}, true
}

func (s *Script) pitchID() string {
	name := s.Name
	if slug(name) == "" {
		name = s.Pitch.Title
	}
	if id := slug(name); id != "" {
		return "replay-" + id
	}
	return "replay"
}

// slug lowercases s and joins its letter and digit runs with dashes.
func slug(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, "-")
}
