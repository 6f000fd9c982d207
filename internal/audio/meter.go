package audio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/verte-zerg/pitchcoach/internal/session"
)

// Source yields successive PCM frames from an input device.
type Source interface {
	Read() ([]int32, error)
	Close() error
}

// Opener opens a Source. Permission and device errors surface here.
type Opener func() (Source, error)

// Meter is a session.AudioLevelStream that reads frames from a Source on its
// own goroutine and publishes one level per frame.
type Meter struct {
	open Opener
	log  *slog.Logger
}

// NewMeter returns a Meter over sources produced by open.
func NewMeter(open Opener, log *slog.Logger) *Meter {
	if log == nil {
		log = slog.Default()
	}
	return &Meter{open: open, log: log}
}

// Subscribe opens a fresh source and streams levels to fn until Unsubscribe.
func (m *Meter) Subscribe(fn func(level float64)) (session.Subscription, error) {
	src, err := m.open()
	if err != nil {
		return nil, fmt.Errorf("failed to open microphone: %w", err)
	}
	sub := &meterSubscription{stop: make(chan struct{}), done: make(chan struct{})}
	go m.pump(src, fn, sub)
	return sub, nil
}

func (m *Meter) pump(src Source, fn func(float64), sub *meterSubscription) {
	defer close(sub.done)
	defer func() {
		if err := src.Close(); err != nil {
			m.log.Warn("failed to close microphone", "err", err)
		}
	}()
	for {
		if sub.stopped() {
			return
		}
		frame, err := src.Read()
		if err != nil {
			if !sub.stopped() {
				m.log.Warn("microphone read failed", "err", err)
			}
			return
		}
		if sub.stopped() {
			return
		}
		fn(Level(frame))
	}
}

type meterSubscription struct {
	once sync.Once
	stop chan struct{}
	done chan struct{}
}

// Unsubscribe signals the reader to stop. It does not wait for it.
func (s *meterSubscription) Unsubscribe() {
	s.once.Do(func() { close(s.stop) })
}

func (s *meterSubscription) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

var _ session.AudioLevelStream = (*Meter)(nil)
