package analyzer

import (
	"math"
	"strings"
	"testing"
	"time"
)

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestWordsPerMinute(t *testing.T) {
	a := New(DefaultThresholds(), start)
	a.OnFragment("hello there", start.Add(2*time.Second))
	if got := a.Evaluate(start.Add(3*time.Second), 11).WordsPerMinute; got != 0 {
		t.Fatalf("expected 0 wpm for first fragment, got %f", got)
	}
	a.OnFragment("one two three four five", start.Add(5*time.Second))
	snap := a.Evaluate(start.Add(6*time.Second), 40)
	if math.Abs(snap.WordsPerMinute-100) > 1e-9 {
		t.Fatalf("expected 100 wpm, got %f", snap.WordsPerMinute)
	}
	if math.Abs(snap.SecondsSinceLastSpeech-1) > 1e-9 {
		t.Fatalf("expected 1s since speech, got %f", snap.SecondsSinceLastSpeech)
	}
}

func TestZeroDeltaYieldsZeroRate(t *testing.T) {
	a := New(DefaultThresholds(), start)
	a.OnFragment("a b", start.Add(time.Second))
	a.OnFragment("c d e", start.Add(time.Second))
	if got := a.Evaluate(start.Add(2*time.Second), 10).WordsPerMinute; got != 0 {
		t.Fatalf("expected 0 wpm, got %f", got)
	}
}

func TestTooFastAlert(t *testing.T) {
	a := New(DefaultThresholds(), start)
	a.OnFragment("warm up", start)
	a.OnFragment(strings.Repeat("word ", 10), start.Add(2*time.Second))
	snap := a.Evaluate(start.Add(2*time.Second), 60)
	if !snap.Alerts.TooFast {
		t.Fatalf("expected too fast at %f wpm", snap.WordsPerMinute)
	}
	a.OnFragment(strings.Repeat("word ", 2), start.Add(12*time.Second))
	snap = a.Evaluate(start.Add(12*time.Second), 70)
	if snap.Alerts.TooFast {
		t.Fatalf("too fast must reset when rate drops, wpm %f", snap.WordsPerMinute)
	}
	if a.AlertCounts().TooFast != 1 {
		t.Fatalf("expected one too-fast raise, got %d", a.AlertCounts().TooFast)
	}
	if a.PeakWordsPerMinute() != 300 {
		t.Fatalf("expected peak 300, got %f", a.PeakWordsPerMinute())
	}
}

func TestNoPausesNeedsLongTranscript(t *testing.T) {
	a := New(DefaultThresholds(), start)
	a.OnFragment("still talking", start.Add(10*time.Second))
	if a.Evaluate(start.Add(11*time.Second), 100).Alerts.NoPauses {
		t.Fatalf("no-pauses must not fire at 100 chars")
	}
	if !a.Evaluate(start.Add(12*time.Second), 101).Alerts.NoPauses {
		t.Fatalf("expected no-pauses above 100 chars")
	}
	if a.Evaluate(start.Add(40*time.Second), 101).Alerts.NoPauses {
		t.Fatalf("no-pauses must clear after 30s of silence")
	}
}

func TestSinceLastSpeechDefaultsToStart(t *testing.T) {
	a := New(DefaultThresholds(), start)
	snap := a.Evaluate(start.Add(7*time.Second), 0)
	if snap.SecondsSinceLastSpeech != 7 {
		t.Fatalf("expected 7s, got %f", snap.SecondsSinceLastSpeech)
	}
}

func TestStressedVoice(t *testing.T) {
	a := New(DefaultThresholds(), start)
	if a.Evaluate(start, 0).VolumeLevel != 0 {
		t.Fatalf("expected default volume 0")
	}
	a.OnVolume(150)
	if a.Evaluate(start, 0).Alerts.StressedVoice {
		t.Fatalf("150 must not be stressed")
	}
	a.OnVolume(151)
	if !a.Evaluate(start, 0).Alerts.StressedVoice {
		t.Fatalf("151 must be stressed")
	}
	a.OnVolume(900)
	if got := a.Evaluate(start, 0).VolumeLevel; got != 255 {
		t.Fatalf("expected clamp to 255, got %f", got)
	}
}

func TestPauseRatesKeepsVolumeAlerts(t *testing.T) {
	a := New(DefaultThresholds(), start)
	a.OnFragment("x", start)
	a.OnFragment(strings.Repeat("fast ", 20), start.Add(time.Second))
	a.OnVolume(200)
	a.PauseRates(true)
	snap := a.Evaluate(start.Add(time.Second), 500)
	if snap.WordsPerMinute != 0 || snap.Alerts.TooFast || snap.Alerts.NoPauses {
		t.Fatalf("rate alerts must be held while paused: %+v", snap)
	}
	if !snap.Alerts.StressedVoice {
		t.Fatalf("volume alert must continue while paused")
	}
	a.PauseRates(false)
	snap = a.Evaluate(start.Add(2*time.Second), 500)
	if snap.WordsPerMinute != 0 || snap.Alerts.TooFast {
		t.Fatalf("the rate from before the pause must not come back: %+v", snap)
	}
	if a.PeakWordsPerMinute() != 1200 {
		t.Fatalf("peak must survive the pause, got %v", a.PeakWordsPerMinute())
	}
	a.OnFragment(strings.Repeat("fast ", 20), start.Add(3*time.Second))
	if !a.Evaluate(start.Add(3*time.Second), 500).Alerts.TooFast {
		t.Fatalf("rate alerts must resume with the next fragment")
	}
}

func TestCustomThresholds(t *testing.T) {
	a := New(Thresholds{StressVolume: 50}, start)
	if a.Limits().MaxWordsPerMinute != 200 || a.Limits().PauseWindow != 30*time.Second {
		t.Fatalf("expected defaults for unset thresholds: %+v", a.Limits())
	}
	a.OnVolume(60)
	if !a.Evaluate(start, 0).Alerts.StressedVoice {
		t.Fatalf("expected custom stress threshold to apply")
	}
}
