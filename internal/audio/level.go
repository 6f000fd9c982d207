// Package audio turns microphone frames into the 0-255 volume level the
// speech analyzer consumes.
package audio

import "math"

const (
	fullScale = float64(math.MaxInt32)
	// Levels map -60 dBFS..0 dBFS linearly onto 0..255.
	floorDB  = -60.0
	maxLevel = 255.0
)

// Level returns the RMS loudness of 32-bit PCM samples on a 0-255 scale.
// Silence and empty frames read 0.
func Level(samples []int32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / fullScale
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms <= 0 {
		return 0
	}
	db := 20 * math.Log10(rms)
	level := (db - floorDB) / -floorDB * maxLevel
	switch {
	case level < 0:
		return 0
	case level > maxLevel:
		return maxLevel
	}
	return level
}
