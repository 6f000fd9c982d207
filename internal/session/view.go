package session

import (
	"github.com/verte-zerg/pitchcoach/internal/analyzer"
	"github.com/verte-zerg/pitchcoach/internal/matcher"
	"github.com/verte-zerg/pitchcoach/internal/stats"
)

// KeywordView is one entry of the active keyword list.
type KeywordView struct {
	Keyword  string
	Flagged  bool
	Status   matcher.Status
	AtSecond int
}

// View is a presentation snapshot of the session.
type View struct {
	State         State
	Generation    string
	PitchID       string
	Title         string
	Language      string
	TargetMinutes int

	// AllKeywords is the full pitch list, shown while editing.
	AllKeywords []string
	Keywords    []KeywordView
	Cursor      int
	Hits        int

	Elapsed    int
	Metrics    analyzer.Snapshot
	Transcript string
	Interim    string

	Supported      bool
	Degraded       bool
	AudioAvailable bool
	EditMode       bool

	// Result is set once the session is Stopped.
	Result *stats.Result
}

// View returns a snapshot of the session for presentation.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		State:          s.state,
		Generation:     s.generation,
		PitchID:        s.cfg.ID,
		Title:          s.cfg.Title,
		Language:       s.cfg.Language,
		TargetMinutes:  s.cfg.TargetMinutes,
		AllKeywords:    append([]string(nil), s.cfg.Keywords...),
		Cursor:         s.matcher.Cursor(),
		Hits:           s.matcher.HitCount(),
		Elapsed:        s.elapsed,
		Transcript:     s.transcriptText.String(),
		Interim:        s.interim,
		Supported:      s.transcript != nil && s.transcript.Supported(),
		Degraded:       s.degraded,
		AudioAvailable: s.audioAvailable,
		EditMode:       s.editMode,
	}
	if s.analyzer != nil {
		v.Metrics = s.analyzer.Last()
	}
	v.Keywords = make([]KeywordView, len(s.active))
	for i, k := range s.active {
		kv := KeywordView{Keyword: k, Flagged: s.cfg.IsFlagged(k), Status: s.matcher.Status(i)}
		if hit, ok := s.matcher.HitFor(i); ok {
			kv.AtSecond = s.secondsSinceStart(hit.At)
		}
		v.Keywords[i] = kv
	}
	if s.state == StateStopped {
		r := s.result
		v.Result = &r
	}
	return v
}
