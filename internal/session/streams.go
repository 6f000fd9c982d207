package session

import (
	"context"
	"sync"
	"time"

	"github.com/verte-zerg/pitchcoach/internal/model"
)

// TranscriptEvent is one delivery from a speech recognizer. Err marks an
// engine error; Text and IsFinal are ignored when it is set.
type TranscriptEvent struct {
	Text    string
	IsFinal bool
	At      time.Time
	Err     error
}

// Subscription cancels a stream subscription. Unsubscribe must not wait for
// in-flight callbacks to return.
type Subscription interface {
	Unsubscribe()
}

// TranscriptStream delivers recognized speech for a locale.
type TranscriptStream interface {
	// Supported reports whether speech recognition is available at all.
	Supported() bool
	Subscribe(lang string, fn func(TranscriptEvent)) (Subscription, error)
}

// AudioLevelStream delivers microphone volume samples on a 0-255 scale.
// Subscribe fails when the microphone is unavailable or permission is denied.
type AudioLevelStream interface {
	Subscribe(fn func(level float64)) (Subscription, error)
}

// PracticeCounter counts completed sessions per user.
type PracticeCounter interface {
	IncrementPractice(ctx context.Context, userID string) error
}

// PitchStore loads and persists pitch configurations keyed by user.
type PitchStore interface {
	GetPitch(ctx context.Context, userID, id string) (model.PitchConfig, error)
	SavePitch(ctx context.Context, p model.PitchConfig) error
}

// Recorder persists scored sessions.
type Recorder interface {
	InsertPractice(ctx context.Context, rec model.PracticeRecord, outcomes []model.KeywordOutcome) error
}

// Ticker is a running periodic callback.
type Ticker interface {
	Stop()
}

// Scheduler calls fn every interval until the returned Ticker is stopped.
type Scheduler func(interval time.Duration, fn func()) Ticker

// TickerScheduler is the wall-clock Scheduler backed by time.Ticker.
func TickerScheduler(interval time.Duration, fn func()) Ticker {
	t := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-t.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	return &wallTicker{ticker: t, done: done}
}

type wallTicker struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (w *wallTicker) Stop() {
	w.once.Do(func() {
		w.ticker.Stop()
		close(w.done)
	})
}
