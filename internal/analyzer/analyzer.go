// Package analyzer derives speech rate, pause and stress heuristics from
// transcript timing and microphone volume.
package analyzer

import (
	"strings"
	"time"
)

const (
	defaultMaxWordsPerMinute  = 200
	defaultPauseWindow        = 30 * time.Second
	defaultMinTranscriptChars = 100
	defaultStressVolume       = 150
	maxVolume                 = 255
)

// Thresholds holds the alert limits.
type Thresholds struct {
	// MaxWordsPerMinute raises TooFast when exceeded.
	MaxWordsPerMinute float64
	// PauseWindow raises NoPauses while the last speech is more recent than this.
	PauseWindow time.Duration
	// MinTranscriptChars gates NoPauses until the transcript is longer than this.
	MinTranscriptChars int
	// StressVolume raises StressedVoice when the volume level exceeds it.
	StressVolume float64
}

// DefaultThresholds returns the stock alert limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxWordsPerMinute:  defaultMaxWordsPerMinute,
		PauseWindow:        defaultPauseWindow,
		MinTranscriptChars: defaultMinTranscriptChars,
		StressVolume:       defaultStressVolume,
	}
}

// WithDefaults fills zero fields from DefaultThresholds.
func (t Thresholds) WithDefaults() Thresholds {
	d := DefaultThresholds()
	if t.MaxWordsPerMinute <= 0 {
		t.MaxWordsPerMinute = d.MaxWordsPerMinute
	}
	if t.PauseWindow <= 0 {
		t.PauseWindow = d.PauseWindow
	}
	if t.MinTranscriptChars <= 0 {
		t.MinTranscriptChars = d.MinTranscriptChars
	}
	if t.StressVolume <= 0 {
		t.StressVolume = d.StressVolume
	}
	return t
}

// Alerts are independent threshold flags.
type Alerts struct {
	TooFast       bool
	NoPauses      bool
	StressedVoice bool
}

// Any reports whether at least one alert is raised.
func (a Alerts) Any() bool {
	return a.TooFast || a.NoPauses || a.StressedVoice
}

// Snapshot is the speech metrics view at one tick.
type Snapshot struct {
	WordsPerMinute         float64
	SecondsSinceLastSpeech float64
	VolumeLevel            float64
	Alerts                 Alerts
}

// Counts tallies how often each alert was raised (false to true transitions).
type Counts struct {
	TooFast       int
	NoPauses      int
	StressedVoice int
}

// Analyzer computes speech metrics. It is not safe for concurrent use.
type Analyzer struct {
	limits Thresholds

	startedAt    time.Time
	lastFragment time.Time
	hasFragment  bool
	wpm          float64
	peakWPM      float64
	volume       float64
	ratesPaused  bool

	last   Snapshot
	counts Counts
}

// New returns an Analyzer for a session started at startedAt.
func New(limits Thresholds, startedAt time.Time) *Analyzer {
	return &Analyzer{
		limits:    limits.WithDefaults(),
		startedAt: startedAt,
	}
}

// OnFragment records a finalized fragment delivered at at.
func (a *Analyzer) OnFragment(text string, at time.Time) {
	words := len(strings.Fields(text))
	if a.hasFragment {
		delta := at.Sub(a.lastFragment).Seconds()
		if delta > 0 {
			a.wpm = float64(words) / delta * 60
		} else {
			a.wpm = 0
		}
	} else {
		a.wpm = 0
	}
	if a.wpm > a.peakWPM {
		a.peakWPM = a.wpm
	}
	a.lastFragment = at
	a.hasFragment = true
}

// OnVolume stores the latest volume sample.
func (a *Analyzer) OnVolume(level float64) {
	switch {
	case level < 0:
		level = 0
	case level > maxVolume:
		level = maxVolume
	}
	a.volume = level
}

// PauseRates holds the transcript-driven alerts at rest while paused.
// Pausing also drops the current rate, so it is not reported again once the
// transcript resumes and before the next fragment arrives.
func (a *Analyzer) PauseRates(paused bool) {
	a.ratesPaused = paused
	if paused {
		a.wpm = 0
	}
}

// Evaluate recomputes the snapshot at now for a transcript of the given
// length in characters.
func (a *Analyzer) Evaluate(now time.Time, transcriptChars int) Snapshot {
	since := a.startedAt
	if a.hasFragment {
		since = a.lastFragment
	}
	snap := Snapshot{
		WordsPerMinute:         a.wpm,
		SecondsSinceLastSpeech: now.Sub(since).Seconds(),
		VolumeLevel:            a.volume,
	}
	if snap.SecondsSinceLastSpeech < 0 {
		snap.SecondsSinceLastSpeech = 0
	}
	if a.ratesPaused {
		snap.WordsPerMinute = 0
	} else {
		snap.Alerts.TooFast = snap.WordsPerMinute > a.limits.MaxWordsPerMinute
		snap.Alerts.NoPauses = snap.SecondsSinceLastSpeech < a.limits.PauseWindow.Seconds() &&
			transcriptChars > a.limits.MinTranscriptChars
	}
	snap.Alerts.StressedVoice = snap.VolumeLevel > a.limits.StressVolume

	if snap.Alerts.TooFast && !a.last.Alerts.TooFast {
		a.counts.TooFast++
	}
	if snap.Alerts.NoPauses && !a.last.Alerts.NoPauses {
		a.counts.NoPauses++
	}
	if snap.Alerts.StressedVoice && !a.last.Alerts.StressedVoice {
		a.counts.StressedVoice++
	}
	a.last = snap
	return snap
}

// Last returns the most recent snapshot.
func (a *Analyzer) Last() Snapshot {
	return a.last
}

// PeakWordsPerMinute returns the highest rate seen this session.
func (a *Analyzer) PeakWordsPerMinute() float64 {
	return a.peakWPM
}

// AlertCounts returns how many times each alert was raised.
func (a *Analyzer) AlertCounts() Counts {
	return a.counts
}

// Limits returns the thresholds in effect.
func (a *Analyzer) Limits() Thresholds {
	return a.limits
}
