// Package model defines shared data structures.
package model

import "time"

// Durations lists the supported pitch target durations in minutes.
var Durations = []int{1, 5, 10, 15, 30, 60}

// PitchConfig is a stored pitch: its keywords and rehearsal settings.
type PitchConfig struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Title         string    `json:"title"`
	Keywords      []string  `json:"keywords"`
	Flagged       []string  `json:"flagged"`
	TargetMinutes int       `json:"targetDurationMinutes"`
	Language      string    `json:"languageTag"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// IsFlagged reports whether keyword is marked as must-include.
func (p PitchConfig) IsFlagged(keyword string) bool {
	for _, f := range p.Flagged {
		if equalFold(f, keyword) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the pitch.
func (p PitchConfig) Clone() PitchConfig {
	out := p
	out.Keywords = append([]string(nil), p.Keywords...)
	out.Flagged = append([]string(nil), p.Flagged...)
	return out
}

// Config defines practice settings.
type Config struct {
	UserID     string
	Lang       string
	Minutes    int
	Mic        bool
	SampleRate int
	LogFile    string
	Thresholds ThresholdConfig
}

// ThresholdConfig carries analyzer threshold overrides. Zero values mean default.
type ThresholdConfig struct {
	MaxWordsPerMinute  float64
	PauseWindow        time.Duration
	MinTranscriptChars int
	StressVolume       float64
}

// HistoryConfig defines filters and options for history output.
type HistoryConfig struct {
	UserID      string
	PitchID     string
	Since       *time.Time
	Last        int
	CurveWindow int
}

// PracticeRecord captures a completed practice session.
type PracticeRecord struct {
	SessionID       string
	PitchID         string
	UserID          string
	StartedAt       time.Time
	EndedAt         time.Time
	Lang            string
	TargetMinutes   int
	Hits            int
	Total           int
	InOrderHits     int
	Percentage      float64
	Stars           int
	PracticeSeconds int
	PeakWPM         float64
	TooFastAlerts   int
	NoPauseAlerts   int
	StressAlerts    int
}

// KeywordOutcome stores how a single keyword fared in a session.
type KeywordOutcome struct {
	Keyword  string
	Position int
	Flagged  bool
	Spoken   bool
	InOrder  bool
	AtSecond int
}

// KeywordAggregate aggregates keyword outcomes across sessions.
type KeywordAggregate struct {
	Keyword  string
	Sessions int
	Spoken   int
	InOrder  int
}

// SessionAggregate summarizes a session for reporting.
type SessionAggregate struct {
	SessionID       string
	EndedAt         time.Time
	Hits            int
	Total           int
	Percentage      float64
	PracticeSeconds int
	PeakWPM         float64
}
