package keywords

import (
	"fmt"
	"slices"

	"github.com/verte-zerg/pitchcoach/internal/model"
)

// Add appends a keyword to the pitch. Duplicates are rejected.
func Add(p model.PitchConfig, keyword string) (model.PitchConfig, error) {
	keyword = Clean(keyword)
	if IsBlank(keyword) {
		return p, fmt.Errorf("keyword is blank")
	}
	if indexOf(p.Keywords, keyword) >= 0 {
		return p, fmt.Errorf("keyword %q already exists", keyword)
	}
	out := p.Clone()
	out.Keywords = append(out.Keywords, keyword)
	return out, nil
}

// Remove deletes a keyword and its flag.
func Remove(p model.PitchConfig, keyword string) (model.PitchConfig, error) {
	idx := indexOf(p.Keywords, keyword)
	if idx < 0 {
		return p, fmt.Errorf("keyword %q not found", keyword)
	}
	out := p.Clone()
	out.Keywords = slices.Delete(out.Keywords, idx, idx+1)
	if i := indexOf(out.Flagged, keyword); i >= 0 {
		out.Flagged = slices.Delete(out.Flagged, i, i+1)
	}
	return out, nil
}

// Move relocates the keyword at from to position to.
func Move(p model.PitchConfig, from, to int) (model.PitchConfig, error) {
	n := len(p.Keywords)
	if from < 0 || from >= n || to < 0 || to >= n {
		return p, fmt.Errorf("move %d -> %d out of range [0, %d)", from, to, n)
	}
	if from == to {
		return p, nil
	}
	out := p.Clone()
	word := out.Keywords[from]
	out.Keywords = slices.Delete(out.Keywords, from, from+1)
	out.Keywords = slices.Insert(out.Keywords, to, word)
	return out, nil
}

// ToggleFlag flips the must-include mark of a keyword.
func ToggleFlag(p model.PitchConfig, keyword string) (model.PitchConfig, error) {
	idx := indexOf(p.Keywords, keyword)
	if idx < 0 {
		return p, fmt.Errorf("keyword %q not found", keyword)
	}
	out := p.Clone()
	if i := indexOf(out.Flagged, keyword); i >= 0 {
		out.Flagged = slices.Delete(out.Flagged, i, i+1)
		return out, nil
	}
	out.Flagged = append(out.Flagged, out.Keywords[idx])
	return out, nil
}

// NextDuration returns the duration that follows minutes in the selector.
func NextDuration(minutes int) int {
	idx := slices.Index(model.Durations, minutes)
	if idx < 0 {
		return model.Durations[0]
	}
	return model.Durations[(idx+1)%len(model.Durations)]
}

func indexOf(words []string, keyword string) int {
	k := Key(keyword)
	for i, w := range words {
		if Key(w) == k {
			return i
		}
	}
	return -1
}
