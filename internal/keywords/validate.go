package keywords

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/language"

	"github.com/verte-zerg/pitchcoach/internal/model"
)

// ErrNotReady is returned when a pitch cannot be rehearsed yet.
var ErrNotReady = errors.New("pitch needs a title and at least one keyword")

// Ready reports whether the pitch has what a practice session needs.
func Ready(p model.PitchConfig) error {
	if strings.TrimSpace(p.Title) == "" || len(p.Keywords) == 0 {
		return ErrNotReady
	}
	return nil
}

// Validate checks a pitch and returns every problem found, joined.
func Validate(p model.PitchConfig) error {
	var errs []error
	if strings.TrimSpace(p.Title) == "" {
		errs = append(errs, fmt.Errorf("title is required"))
	}
	if len(p.Keywords) == 0 {
		errs = append(errs, fmt.Errorf("at least one keyword is required"))
	}
	seen := make(map[string]int, len(p.Keywords))
	for i, w := range p.Keywords {
		if IsBlank(w) {
			errs = append(errs, fmt.Errorf("keywords[%d] is blank", i))
			continue
		}
		k := Key(w)
		if prev, ok := seen[k]; ok {
			errs = append(errs, fmt.Errorf("keywords[%d] %q is a duplicate of keywords[%d]", i, w, prev))
			continue
		}
		seen[k] = i
	}
	for _, f := range p.Flagged {
		if _, ok := seen[Key(f)]; !ok {
			errs = append(errs, fmt.Errorf("flagged keyword %q is not in the keyword list", f))
		}
	}
	if !slices.Contains(model.Durations, p.TargetMinutes) {
		errs = append(errs, fmt.Errorf("target duration %d is invalid; valid values: %s", p.TargetMinutes, durationList()))
	}
	if p.Language != "" {
		if _, err := language.Parse(p.Language); err != nil {
			errs = append(errs, fmt.Errorf("language %q is not a valid BCP-47 tag: %w", p.Language, err))
		}
	}
	return errors.Join(errs...)
}

// Normalize cleans keywords, drops duplicates and blank entries, and keeps
// only flags that name a keyword.
func Normalize(p model.PitchConfig) model.PitchConfig {
	out := p.Clone()
	out.Title = strings.TrimSpace(p.Title)
	out.Keywords = out.Keywords[:0]
	seen := map[string]struct{}{}
	for _, w := range p.Keywords {
		w = Clean(w)
		if IsBlank(w) {
			continue
		}
		if _, ok := seen[Key(w)]; ok {
			continue
		}
		seen[Key(w)] = struct{}{}
		out.Keywords = append(out.Keywords, w)
	}
	out.Flagged = out.Flagged[:0]
	flagSeen := map[string]struct{}{}
	for _, f := range p.Flagged {
		k := Key(f)
		if _, ok := seen[k]; !ok {
			continue
		}
		if _, ok := flagSeen[k]; ok {
			continue
		}
		flagSeen[k] = struct{}{}
		out.Flagged = append(out.Flagged, canonical(out.Keywords, k))
	}
	if tag, err := language.Parse(out.Language); err == nil {
		out.Language = tag.String()
	}
	return out
}

func canonical(words []string, key string) string {
	for _, w := range words {
		if Key(w) == key {
			return w
		}
	}
	return key
}

func durationList() string {
	parts := make([]string, len(model.Durations))
	for i, d := range model.Durations {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return strings.Join(parts, ", ")
}
