// Package mic opens the default input device through PortAudio.
package mic

import (
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/verte-zerg/pitchcoach/internal/audio"
)

// Device is a started mono input stream.
type Device struct {
	stream *portaudio.Stream
	buf    []int32
}

// Open initializes PortAudio and starts a mono capture stream on the default
// input device.
func Open(sampleRate float64, frames int) (*Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	d := &Device{buf: make([]int32, frames)}
	stream, err := portaudio.OpenDefaultStream(1, 0, sampleRate, len(d.buf), d.buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open default input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}
	d.stream = stream
	return d, nil
}

// Read blocks for the next frame and returns a copy of it.
func (d *Device) Read() ([]int32, error) {
	if err := d.stream.Read(); err != nil {
		return nil, err
	}
	out := make([]int32, len(d.buf))
	copy(out, d.buf)
	return out, nil
}

// Close stops the stream and releases PortAudio.
func (d *Device) Close() error {
	return errors.Join(d.stream.Stop(), d.stream.Close(), portaudio.Terminate())
}

// Opener returns an audio.Opener for the default input device.
func Opener(sampleRate float64, frames int) audio.Opener {
	return func() (audio.Source, error) {
		d, err := Open(sampleRate, frames)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}
