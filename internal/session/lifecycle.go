// Package session runs a practice session: it owns the Idle, Recording and
// Stopped lifecycle, feeds transcript and volume events into the keyword
// matcher and speech analyzer, and scores the result.
//
// All methods and stream callbacks are serialized by one mutex, so the
// session behaves as a single logical thread of control. Stream
// implementations must deliver events from their own goroutines and never
// synchronously from inside Subscribe or Unsubscribe.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/verte-zerg/pitchcoach/internal/analyzer"
	"github.com/verte-zerg/pitchcoach/internal/keywords"
	"github.com/verte-zerg/pitchcoach/internal/matcher"
	"github.com/verte-zerg/pitchcoach/internal/model"
	"github.com/verte-zerg/pitchcoach/internal/observe"
	"github.com/verte-zerg/pitchcoach/internal/stats"
)

// Refusal reasons returned by Start and the configuration methods.
var (
	ErrUnsupported   = errors.New("speech recognition is not supported")
	ErrEditMode      = errors.New("leave edit mode before recording")
	ErrInvalidConfig = errors.New("pitch needs a title and at least one keyword")
	ErrRecording     = errors.New("stop recording first")
	ErrNotEditing    = errors.New("not in edit mode")
)

// State is the lifecycle state of a session.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

const tickInterval = time.Second

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithScheduler overrides the 1 Hz tick source.
func WithScheduler(sched Scheduler) Option {
	return func(s *Session) { s.schedule = sched }
}

// WithLogger sets the logger for lifecycle diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithCounter sets the practice counter incremented at Stop.
func WithCounter(c PracticeCounter) Option {
	return func(s *Session) { s.counter = c }
}

// WithRecorder persists each scored session.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithPitchStore enables LoadPitch and saving edits when edit mode ends.
func WithPitchStore(p PitchStore) Option {
	return func(s *Session) { s.pitches = p }
}

// WithThresholds overrides the analyzer alert limits.
func WithThresholds(t analyzer.Thresholds) Option {
	return func(s *Session) { s.limits = t }
}

// WithOnChange registers a callback invoked with a fresh View after every
// mutation. It may run on stream goroutines and must not call back into the
// Session synchronously.
func WithOnChange(fn func(View)) Option {
	return func(s *Session) { s.onChange = fn }
}

// Session is a practice session over one pitch configuration.
type Session struct {
	mu sync.Mutex

	transcript TranscriptStream
	audio      AudioLevelStream
	counter    PracticeCounter
	recorder   Recorder
	pitches    PitchStore
	now        func() time.Time
	schedule   Scheduler
	log        *slog.Logger
	metrics    *observe.Metrics
	limits     analyzer.Thresholds
	onChange   func(View)

	cfg      model.PitchConfig
	active   []string
	state    State
	editMode bool

	generation      string
	startedAt       time.Time
	matcher         *matcher.Matcher
	analyzer        *analyzer.Analyzer
	transcriptText  strings.Builder
	transcriptChars int
	interim         string
	elapsed         int
	degraded        bool
	audioAvailable  bool

	transcriptSub Subscription
	audioSub      Subscription
	ticker        Ticker

	result   stats.Result
	record   model.PracticeRecord
	outcomes []model.KeywordOutcome
}

// New returns an idle Session. audio may be nil when no microphone is
// available.
func New(transcript TranscriptStream, audio AudioLevelStream, opts ...Option) *Session {
	s := &Session{
		transcript: transcript,
		audio:      audio,
		now:        time.Now,
		schedule:   TickerScheduler,
		log:        slog.Default(),
		limits:     analyzer.DefaultThresholds(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.matcher = matcher.New(nil)
	return s
}

// Configure replaces the pitch and recomputes the active keyword list. It is
// refused while recording. A stopped session returns to Idle.
func (s *Session) Configure(cfg model.PitchConfig) error {
	s.mu.Lock()
	if s.state == StateRecording {
		s.mu.Unlock()
		return ErrRecording
	}
	s.applyConfigLocked(cfg)
	s.unlockNotify()
	return nil
}

// LoadPitch fetches a pitch from the PitchStore and configures the session
// with it.
func (s *Session) LoadPitch(ctx context.Context, userID, id string) error {
	if s.pitches == nil {
		return errors.New("no pitch store configured")
	}
	p, err := s.pitches.GetPitch(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("failed to load pitch %s: %w", id, err)
	}
	return s.Configure(p)
}

func (s *Session) applyConfigLocked(cfg model.PitchConfig) {
	s.cfg = keywords.Normalize(cfg)
	s.active = keywords.Prioritize(s.cfg.Keywords, s.cfg.Flagged, s.cfg.TargetMinutes)
	s.state = StateIdle
	s.matcher = matcher.New(s.active)
	s.resetRunLocked()
}

// resetRunLocked clears per-run state left over from a previous recording.
func (s *Session) resetRunLocked() {
	s.analyzer = nil
	s.result = stats.Result{}
	s.elapsed = 0
	s.transcriptText.Reset()
	s.transcriptChars = 0
	s.interim = ""
	s.degraded = false
	s.audioAvailable = false
}

// SetEditMode enters or leaves keyword edit mode. Entering is refused while
// recording. Leaving persists the pitch when a PitchStore is configured; on a
// save error the session stays in edit mode.
func (s *Session) SetEditMode(ctx context.Context, on bool) error {
	s.mu.Lock()
	if on {
		if s.state == StateRecording {
			s.mu.Unlock()
			return ErrRecording
		}
		s.editMode = true
		s.unlockNotify()
		return nil
	}
	if !s.editMode {
		s.mu.Unlock()
		return nil
	}
	if s.pitches != nil {
		if err := s.pitches.SavePitch(ctx, s.cfg.Clone()); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to save pitch: %w", err)
		}
	}
	s.editMode = false
	s.unlockNotify()
	return nil
}

// Edit applies fn to the pitch while in edit mode and recomputes the active
// list. Errors from fn leave the pitch unchanged.
func (s *Session) Edit(fn func(model.PitchConfig) (model.PitchConfig, error)) error {
	s.mu.Lock()
	if !s.editMode {
		s.mu.Unlock()
		return ErrNotEditing
	}
	next, err := fn(s.cfg.Clone())
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.applyConfigLocked(next)
	s.unlockNotify()
	return nil
}

// Start begins recording. Calling Start while recording is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateRecording {
		s.mu.Unlock()
		return nil
	}
	if s.transcript == nil || !s.transcript.Supported() {
		s.mu.Unlock()
		s.metrics.RecordRefused(ctx, "unsupported")
		return ErrUnsupported
	}
	if s.editMode {
		s.mu.Unlock()
		s.metrics.RecordRefused(ctx, "edit_mode")
		return ErrEditMode
	}
	if err := keywords.Ready(s.cfg); err != nil || len(s.active) == 0 {
		s.mu.Unlock()
		s.metrics.RecordRefused(ctx, "invalid_config")
		return ErrInvalidConfig
	}

	gen := uuid.NewString()
	sub, err := s.transcript.Subscribe(s.cfg.Language, s.transcriptHandler(gen))
	if err != nil {
		s.mu.Unlock()
		s.metrics.RecordRefused(ctx, "transcript")
		return fmt.Errorf("failed to subscribe to transcript: %w", err)
	}

	now := s.now()
	s.generation = gen
	s.startedAt = now
	s.matcher = matcher.New(s.active)
	s.analyzer = analyzer.New(s.limits, now)
	s.transcriptText.Reset()
	s.transcriptChars = 0
	s.interim = ""
	s.elapsed = 0
	s.degraded = false
	s.result = stats.Result{}
	s.record = model.PracticeRecord{}
	s.outcomes = nil
	s.transcriptSub = sub

	s.audioSub = nil
	s.audioAvailable = false
	if s.audio != nil {
		asub, aerr := s.audio.Subscribe(s.audioHandler(gen))
		if aerr != nil {
			s.log.Warn("microphone unavailable, voice alerts disabled", "session", gen, "err", aerr)
		} else {
			s.audioSub = asub
			s.audioAvailable = true
		}
	}

	s.ticker = s.schedule(tickInterval, s.tickHandler(gen))
	s.state = StateRecording
	s.metrics.SessionsStarted.Add(ctx, 1)
	s.metrics.ActiveSessions.Add(ctx, 1)
	s.log.Debug("practice started", "session", gen, "pitch", s.cfg.ID, "keywords", len(s.active))
	s.unlockNotify()
	return nil
}

// Stop ends recording and scores the session. It reports false when the
// session was not recording.
func (s *Session) Stop(ctx context.Context) (stats.Result, bool) {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return stats.Result{}, false
	}
	s.teardownLocked()
	s.state = StateStopped

	s.result = stats.Score(s.matcher.HitCount(), len(s.active), s.elapsed)
	s.record, s.outcomes = s.buildRecordLocked()
	result := s.result
	record := s.record
	outcomes := append([]model.KeywordOutcome(nil), s.outcomes...)
	userID := s.cfg.UserID

	s.metrics.ActiveSessions.Add(ctx, -1)
	s.metrics.RecordCompleted(ctx, string(result.Tier), result.PracticeSeconds)
	s.log.Debug("practice stopped", "session", record.SessionID, "hits", result.Hits, "total", result.Total, "seconds", result.PracticeSeconds)

	if s.counter != nil {
		if err := s.counter.IncrementPractice(ctx, userID); err != nil {
			s.log.Error("failed to increment practice counter", "user", userID, "err", err)
		}
	}
	if s.recorder != nil {
		if err := s.recorder.InsertPractice(ctx, record, outcomes); err != nil {
			s.log.Error("failed to record practice session", "session", record.SessionID, "err", err)
		}
	}
	s.unlockNotify()
	return result, true
}

// Close tears down a session without scoring it and returns to Idle. Pending
// keyword edits are saved through the PitchStore first; a save error is
// returned but the session is closed regardless.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	var err error
	if s.editMode && s.pitches != nil {
		if serr := s.pitches.SavePitch(ctx, s.cfg.Clone()); serr != nil {
			s.log.Error("failed to save edited pitch on close", "pitch", s.cfg.ID, "err", serr)
			err = fmt.Errorf("failed to save pitch: %w", serr)
		}
	}
	if s.state == StateRecording {
		s.teardownLocked()
		s.metrics.ActiveSessions.Add(ctx, -1)
	}
	s.state = StateIdle
	s.generation = ""
	s.editMode = false
	s.matcher = matcher.New(s.active)
	s.resetRunLocked()
	s.unlockNotify()
	return err
}

// LastRecord returns the record of the most recently stopped session.
func (s *Session) LastRecord() (model.PracticeRecord, []model.KeywordOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStopped {
		return model.PracticeRecord{}, nil, false
	}
	return s.record, append([]model.KeywordOutcome(nil), s.outcomes...), true
}

// Pitch returns a copy of the configured pitch.
func (s *Session) Pitch() model.PitchConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

// teardownLocked cancels both subscriptions and the timer while the session
// is still Recording.
func (s *Session) teardownLocked() {
	if s.transcriptSub != nil {
		s.transcriptSub.Unsubscribe()
		s.transcriptSub = nil
	}
	if s.audioSub != nil {
		s.audioSub.Unsubscribe()
		s.audioSub = nil
	}
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	s.interim = ""
}

func (s *Session) buildRecordLocked() (model.PracticeRecord, []model.KeywordOutcome) {
	counts := s.analyzer.AlertCounts()
	rec := model.PracticeRecord{
		SessionID:       s.generation,
		PitchID:         s.cfg.ID,
		UserID:          s.cfg.UserID,
		StartedAt:       s.startedAt,
		EndedAt:         s.now(),
		Lang:            s.cfg.Language,
		TargetMinutes:   s.cfg.TargetMinutes,
		Hits:            s.result.Hits,
		Total:           s.result.Total,
		InOrderHits:     s.matcher.InOrderCount(),
		Percentage:      s.result.Percentage,
		Stars:           s.result.Stars,
		PracticeSeconds: s.result.PracticeSeconds,
		PeakWPM:         s.analyzer.PeakWordsPerMinute(),
		TooFastAlerts:   counts.TooFast,
		NoPauseAlerts:   counts.NoPauses,
		StressAlerts:    counts.StressedVoice,
	}
	outcomes := make([]model.KeywordOutcome, len(s.active))
	for i, k := range s.active {
		o := model.KeywordOutcome{Keyword: k, Position: i, Flagged: s.cfg.IsFlagged(k)}
		if hit, ok := s.matcher.HitFor(i); ok {
			o.Spoken = true
			o.InOrder = hit.InOrder
			o.AtSecond = s.secondsSinceStart(hit.At)
		}
		outcomes[i] = o
	}
	return rec, outcomes
}

func (s *Session) secondsSinceStart(at time.Time) int {
	secs := int(at.Sub(s.startedAt).Seconds())
	if secs < 0 {
		return 0
	}
	return secs
}

// live reports whether an event from generation gen may mutate the session.
func (s *Session) live(gen string) bool {
	return s.state == StateRecording && s.generation == gen
}

func (s *Session) transcriptHandler(gen string) func(TranscriptEvent) {
	return func(ev TranscriptEvent) {
		ctx := context.Background()
		s.mu.Lock()
		if !s.live(gen) {
			s.mu.Unlock()
			return
		}
		if ev.Err != nil {
			s.metrics.DegradedEvents.Add(ctx, 1)
			if !s.degraded {
				s.degraded = true
				s.analyzer.PauseRates(true)
				s.log.Warn("transcription degraded", "session", gen, "err", ev.Err)
			}
			s.unlockNotify()
			return
		}
		if s.degraded {
			s.degraded = false
			s.analyzer.PauseRates(false)
			s.log.Info("transcription resumed", "session", gen)
		}
		if !ev.IsFinal {
			s.interim = ev.Text
			s.unlockNotify()
			return
		}
		s.interim = ""
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			s.unlockNotify()
			return
		}
		at := ev.At
		if at.IsZero() {
			at = s.now()
		}
		if s.transcriptText.Len() > 0 {
			s.transcriptText.WriteByte(' ')
			s.transcriptChars++
		}
		s.transcriptText.WriteString(text)
		s.transcriptChars += utf8.RuneCountInString(text)

		for _, hit := range s.matcher.OnFragment(text, at) {
			s.metrics.RecordKeywordHit(ctx, hit.InOrder)
		}
		s.analyzer.OnFragment(text, at)
		s.unlockNotify()
	}
}

func (s *Session) audioHandler(gen string) func(float64) {
	return func(level float64) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.live(gen) {
			return
		}
		s.analyzer.OnVolume(level)
	}
}

func (s *Session) tickHandler(gen string) func() {
	return func() {
		ctx := context.Background()
		s.mu.Lock()
		if !s.live(gen) {
			s.mu.Unlock()
			return
		}
		s.elapsed++
		before := s.analyzer.AlertCounts()
		s.analyzer.Evaluate(s.now(), s.transcriptChars)
		after := s.analyzer.AlertCounts()
		if after.TooFast > before.TooFast {
			s.metrics.RecordAlert(ctx, "too_fast")
		}
		if after.NoPauses > before.NoPauses {
			s.metrics.RecordAlert(ctx, "no_pauses")
		}
		if after.StressedVoice > before.StressedVoice {
			s.metrics.RecordAlert(ctx, "stressed_voice")
		}
		s.unlockNotify()
	}
}

// unlockNotify releases the mutex and then hands a fresh View to OnChange.
func (s *Session) unlockNotify() {
	if s.onChange == nil {
		s.mu.Unlock()
		return
	}
	v := s.viewLocked()
	s.mu.Unlock()
	s.onChange(v)
}
