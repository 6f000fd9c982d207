// Package mock provides test doubles for the session stream and storage
// interfaces.
//
// Streams hold the subscriber callback so a test can push events with Emit
// or Send after Start has returned:
//
//	ts := &mock.TranscriptStream{IsSupported: true}
//	s := session.New(ts, nil)
//	_ = s.Start(ctx)
//	ts.Emit(session.TranscriptEvent{Text: "market size", IsFinal: true})
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/verte-zerg/pitchcoach/internal/model"
	"github.com/verte-zerg/pitchcoach/internal/session"
)

// Subscription counts Unsubscribe calls.
type Subscription struct {
	mu    sync.Mutex
	calls int
}

// Unsubscribe records the call.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
}

// Calls returns the number of Unsubscribe calls.
func (s *Subscription) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// TranscriptStream is a mock session.TranscriptStream.
type TranscriptStream struct {
	mu sync.Mutex

	// IsSupported is returned by Supported.
	IsSupported bool

	// SubscribeErr, if non-nil, is returned by Subscribe.
	SubscribeErr error

	// Langs records the locale of every Subscribe call.
	Langs []string

	// Subs records the subscriptions handed out, in order.
	Subs []*Subscription

	handlers []func(session.TranscriptEvent)
}

// Supported returns IsSupported.
func (t *TranscriptStream) Supported() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.IsSupported
}

// Subscribe records the call and keeps fn for Emit.
func (t *TranscriptStream) Subscribe(lang string, fn func(session.TranscriptEvent)) (session.Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Langs = append(t.Langs, lang)
	if t.SubscribeErr != nil {
		return nil, t.SubscribeErr
	}
	sub := &Subscription{}
	t.Subs = append(t.Subs, sub)
	t.handlers = append(t.handlers, fn)
	return sub, nil
}

// Emit delivers ev to the most recent subscriber.
func (t *TranscriptStream) Emit(ev session.TranscriptEvent) {
	t.mu.Lock()
	if len(t.handlers) == 0 {
		t.mu.Unlock()
		return
	}
	fn := t.handlers[len(t.handlers)-1]
	t.mu.Unlock()
	fn(ev)
}

// EmitTo delivers ev to the subscriber at index i, which lets tests replay
// events from an earlier generation.
func (t *TranscriptStream) EmitTo(i int, ev session.TranscriptEvent) {
	t.mu.Lock()
	fn := t.handlers[i]
	t.mu.Unlock()
	fn(ev)
}

// Final is shorthand for emitting a final fragment.
func (t *TranscriptStream) Final(text string, at time.Time) {
	t.Emit(session.TranscriptEvent{Text: text, IsFinal: true, At: at})
}

var _ session.TranscriptStream = (*TranscriptStream)(nil)

// AudioStream is a mock session.AudioLevelStream.
type AudioStream struct {
	mu sync.Mutex

	// SubscribeErr, if non-nil, is returned by Subscribe.
	SubscribeErr error

	// Subs records the subscriptions handed out, in order.
	Subs []*Subscription

	handlers []func(float64)
}

// Subscribe records the call and keeps fn for Send.
func (a *AudioStream) Subscribe(fn func(float64)) (session.Subscription, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.SubscribeErr != nil {
		return nil, a.SubscribeErr
	}
	sub := &Subscription{}
	a.Subs = append(a.Subs, sub)
	a.handlers = append(a.handlers, fn)
	return sub, nil
}

// Send delivers a volume sample to the most recent subscriber.
func (a *AudioStream) Send(level float64) {
	a.mu.Lock()
	if len(a.handlers) == 0 {
		a.mu.Unlock()
		return
	}
	fn := a.handlers[len(a.handlers)-1]
	a.mu.Unlock()
	fn(level)
}

var _ session.AudioLevelStream = (*AudioStream)(nil)

// Scheduler hands out manual tickers driven by Tick.
type Scheduler struct {
	mu      sync.Mutex
	tickers []*Ticker
}

// Ticker is a manually driven session.Ticker.
type Ticker struct {
	mu       sync.Mutex
	fn       func()
	Interval time.Duration
	stopped  bool
}

// Stop marks the ticker stopped.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

// Stopped reports whether Stop was called.
func (t *Ticker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Fire runs the callback even if the ticker was stopped, simulating a tick
// that raced with Stop.
func (t *Ticker) Fire() {
	t.fn()
}

// Schedule implements session.Scheduler.
func (s *Scheduler) Schedule(interval time.Duration, fn func()) session.Ticker {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &Ticker{fn: fn, Interval: interval}
	s.tickers = append(s.tickers, t)
	return t
}

// Tick fires the most recent running ticker n times.
func (s *Scheduler) Tick(n int) {
	t := s.Last()
	if t == nil {
		return
	}
	for i := 0; i < n; i++ {
		if t.Stopped() {
			return
		}
		t.fn()
	}
}

// Last returns the most recently scheduled ticker.
func (s *Scheduler) Last() *Ticker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tickers) == 0 {
		return nil
	}
	return s.tickers[len(s.tickers)-1]
}

// Counter is a mock session.PracticeCounter.
type Counter struct {
	mu sync.Mutex

	// Err, if non-nil, is returned by IncrementPractice.
	Err error

	// Users records the user id of every call.
	Users []string
}

// IncrementPractice records the call and returns Err.
func (c *Counter) IncrementPractice(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Users = append(c.Users, userID)
	return c.Err
}

// Calls returns the number of IncrementPractice calls.
func (c *Counter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Users)
}

var _ session.PracticeCounter = (*Counter)(nil)

var errNotFound = errors.New("mock: pitch not found")

// PitchStore is an in-memory session.PitchStore keyed by user and pitch id.
type PitchStore struct {
	mu sync.Mutex

	// SaveErr, if non-nil, is returned by SavePitch.
	SaveErr error

	Pitches map[string]model.PitchConfig
	Saves   int
}

// GetPitch returns a copy of the stored pitch.
func (p *PitchStore) GetPitch(_ context.Context, userID, id string) (model.PitchConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pc, ok := p.Pitches[userID+"/"+id]
	if !ok {
		return model.PitchConfig{}, errNotFound
	}
	return pc.Clone(), nil
}

// SavePitch stores the pitch unless SaveErr is set.
func (p *PitchStore) SavePitch(_ context.Context, pc model.PitchConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SaveErr != nil {
		return p.SaveErr
	}
	if p.Pitches == nil {
		p.Pitches = map[string]model.PitchConfig{}
	}
	p.Pitches[pc.UserID+"/"+pc.ID] = pc.Clone()
	p.Saves++
	return nil
}

var _ session.PitchStore = (*PitchStore)(nil)

// Recorder is a mock session.Recorder.
type Recorder struct {
	mu       sync.Mutex
	Records  []model.PracticeRecord
	Outcomes [][]model.KeywordOutcome
}

// InsertPractice records the call.
func (r *Recorder) InsertPractice(_ context.Context, rec model.PracticeRecord, outcomes []model.KeywordOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Records = append(r.Records, rec)
	r.Outcomes = append(r.Outcomes, outcomes)
	return nil
}

var _ session.Recorder = (*Recorder)(nil)
