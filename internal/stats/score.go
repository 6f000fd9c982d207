package stats

import "fmt"

// Tier is the feedback band a session lands in.
type Tier string

const (
	TierPerfect  Tier = "perfect"
	TierGreat    Tier = "great"
	TierGood     Tier = "good"
	TierPractice Tier = "practice"
)

// Result is the scored outcome of a practice session.
type Result struct {
	Hits            int
	Total           int
	Percentage      float64
	Stars           int
	IsPerfect       bool
	Tier            Tier
	PracticeSeconds int
}

// Score rates a session by the share of keywords spoken.
func Score(spoken, total, elapsedSeconds int) Result {
	r := Result{Hits: spoken, Total: total, PracticeSeconds: elapsedSeconds}
	if total > 0 {
		r.Percentage = float64(spoken) / float64(total) * 100
	}
	r.Tier = TierFor(r.Percentage)
	switch r.Tier {
	case TierPerfect:
		r.Stars = 3
		r.IsPerfect = true
	case TierGreat:
		r.Stars = 3
	case TierGood:
		r.Stars = 2
	default:
		r.Stars = 1
	}
	return r
}

// TierFor maps a percentage to its feedback tier.
func TierFor(percentage float64) Tier {
	switch {
	case percentage >= 100:
		return TierPerfect
	case percentage >= 50:
		return TierGreat
	case percentage >= 25:
		return TierGood
	default:
		return TierPractice
	}
}

// FormatClock renders seconds as m:ss, or h:mm:ss past the hour.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// StarString renders the star rating as text.
func (r Result) StarString() string {
	out := ""
	for i := 0; i < 3; i++ {
		if i < r.Stars {
			out += "★"
		} else {
			out += "☆"
		}
	}
	return out
}
