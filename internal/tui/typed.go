package tui

import (
	"strings"
	"sync"
	"time"

	"github.com/verte-zerg/pitchcoach/internal/session"
)

// TypedTranscript is a session.TranscriptStream fed from the keyboard. Each
// submitted line is delivered as a final fragment.
type TypedTranscript struct {
	mu  sync.Mutex
	id  int
	fn  func(session.TranscriptEvent)
	now func() time.Time
}

// NewTypedTranscript returns a TypedTranscript stamping fragments with now.
func NewTypedTranscript(now func() time.Time) *TypedTranscript {
	if now == nil {
		now = time.Now
	}
	return &TypedTranscript{now: now}
}

// Supported always reports true: typing needs no speech engine.
func (t *TypedTranscript) Supported() bool {
	return true
}

// Subscribe replaces any previous subscriber.
func (t *TypedTranscript) Subscribe(_ string, fn func(session.TranscriptEvent)) (session.Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.id++
	t.fn = fn
	return &typedSubscription{t: t, id: t.id}, nil
}

// Submit delivers line as a final fragment. Blank lines and submissions
// without a subscriber are dropped. It reports whether a fragment was sent.
func (t *TypedTranscript) Submit(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	t.mu.Lock()
	fn := t.fn
	t.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(session.TranscriptEvent{Text: line, IsFinal: true, At: t.now()})
	return true
}

type typedSubscription struct {
	t  *TypedTranscript
	id int
}

func (s *typedSubscription) Unsubscribe() {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	// A newer subscription may already have replaced this one.
	if s.t.id == s.id {
		s.t.fn = nil
	}
}

var _ session.TranscriptStream = (*TypedTranscript)(nil)
