package replay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/verte-zerg/pitchcoach/internal/session"
	"github.com/verte-zerg/pitchcoach/internal/stats"
)

// ErrMicDenied is returned by the audio stream of scripts with mic_denied.
var ErrMicDenied = errors.New("microphone permission denied")

// Player plays a Script against a Session on a virtual clock. It provides
// the transcript stream, audio stream, clock and scheduler the session must
// be built with (see SessionOptions).
type Player struct {
	script *Script
	origin time.Time

	mu       sync.Mutex
	offset   time.Duration
	onText   func(session.TranscriptEvent)
	onVolume func(float64)
	onTick   func()
}

// NewPlayer returns a Player whose virtual clock starts at origin.
func NewPlayer(s *Script, origin time.Time) *Player {
	return &Player{script: s, origin: origin}
}

// Now returns the virtual time.
func (p *Player) Now() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.origin.Add(p.offset)
}

// Transcript returns the scripted transcript stream.
func (p *Player) Transcript() session.TranscriptStream {
	return transcriptStream{p}
}

// Audio returns the scripted audio stream.
func (p *Player) Audio() session.AudioLevelStream {
	return audioStream{p}
}

// Schedule implements session.Scheduler on the virtual clock.
func (p *Player) Schedule(_ time.Duration, fn func()) session.Ticker {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTick = fn
	return cancelFunc(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.onTick = nil
	})
}

// SessionOptions wires the virtual clock and scheduler into a session.
func (p *Player) SessionOptions() []session.Option {
	return []session.Option{
		session.WithClock(p.Now),
		session.WithScheduler(p.Schedule),
	}
}

// Run starts s, plays every event and a tick per virtual second up to the
// script end, then stops s and returns its result.
func (p *Player) Run(ctx context.Context, s *session.Session) (stats.Result, error) {
	if err := s.Start(ctx); err != nil {
		return stats.Result{}, err
	}
	end := p.script.End()
	next := 0
	for tick := time.Second; ; tick += time.Second {
		for next < len(p.script.Events) && p.script.Events[next].At <= tick && p.script.Events[next].At <= end {
			if err := ctx.Err(); err != nil {
				return stats.Result{}, errors.Join(err, s.Close(context.WithoutCancel(ctx)))
			}
			p.deliver(p.script.Events[next])
			next++
		}
		if tick > end {
			break
		}
		p.advance(tick)
		p.fire()
	}
	result, ok := s.Stop(ctx)
	if !ok {
		return stats.Result{}, errors.New("replay: session was not recording at the end of the script")
	}
	return result, nil
}

func (p *Player) advance(to time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if to > p.offset {
		p.offset = to
	}
}

func (p *Player) deliver(ev Event) {
	p.advance(ev.At)
	p.mu.Lock()
	onText, onVolume := p.onText, p.onVolume
	at := p.origin.Add(p.offset)
	p.mu.Unlock()

	switch {
	case ev.Volume != nil:
		if onVolume != nil {
			onVolume(*ev.Volume)
		}
	case ev.Error != "":
		if onText != nil {
			onText(session.TranscriptEvent{Err: errors.New(ev.Error), At: at})
		}
	default:
		if onText != nil {
			onText(session.TranscriptEvent{Text: ev.Text, IsFinal: !ev.Partial, At: at})
		}
	}
}

func (p *Player) fire() {
	p.mu.Lock()
	onTick := p.onTick
	p.mu.Unlock()
	if onTick != nil {
		onTick()
	}
}

type cancelFunc func()

func (c cancelFunc) Stop()        { c() }
func (c cancelFunc) Unsubscribe() { c() }

type transcriptStream struct{ p *Player }

func (t transcriptStream) Supported() bool {
	return !t.p.script.Unsupported
}

func (t transcriptStream) Subscribe(_ string, fn func(session.TranscriptEvent)) (session.Subscription, error) {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	t.p.onText = fn
	return cancelFunc(func() {
		t.p.mu.Lock()
		defer t.p.mu.Unlock()
		t.p.onText = nil
	}), nil
}

type audioStream struct{ p *Player }

func (a audioStream) Subscribe(fn func(float64)) (session.Subscription, error) {
	if a.p.script.MicDenied {
		return nil, ErrMicDenied
	}
	a.p.mu.Lock()
	defer a.p.mu.Unlock()
	a.p.onVolume = fn
	return cancelFunc(func() {
		a.p.mu.Lock()
		defer a.p.mu.Unlock()
		a.p.onVolume = nil
	}), nil
}
