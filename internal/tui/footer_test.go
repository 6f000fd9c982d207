package tui

import (
	"strings"
	"testing"

	"github.com/verte-zerg/pitchcoach/internal/analyzer"
	"github.com/verte-zerg/pitchcoach/internal/i18n"
	"github.com/verte-zerg/pitchcoach/internal/session"
)

func testLocalizer(t *testing.T, tag string) *i18n.Localizer {
	t.Helper()
	catalog, err := i18n.NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return catalog.For(tag)
}

func TestRenderFooterFormats(t *testing.T) {
	m := &Model{
		loc: testLocalizer(t, "en-US"),
		view: session.View{
			State:          session.StateRecording,
			AudioAvailable: true,
			Metrics:        analyzer.Snapshot{WordsPerMinute: 142.4, VolumeLevel: 88},
		},
	}
	out := m.renderFooter()
	if !containsAll(out, []string{"142 WPM", "Vol 88", "ctrl+r stop"}) {
		t.Fatalf("footer missing expected segments: %s", out)
	}

	m.view.AudioAvailable = false
	if out := m.renderFooter(); strings.Contains(out, "Vol") {
		t.Fatalf("volume must be hidden without a microphone: %s", out)
	}

	m.view = session.View{State: session.StateIdle}
	if out := m.renderFooter(); strings.Contains(out, "WPM") || !strings.Contains(out, "ctrl+r start") {
		t.Fatalf("unexpected idle footer: %s", out)
	}

	m.view.EditMode = true
	if out := m.renderFooter(); !strings.Contains(out, "space flag") {
		t.Fatalf("expected edit hint: %s", out)
	}
}

func TestRenderAlertsLocalized(t *testing.T) {
	m := &Model{
		loc: testLocalizer(t, "fr-FR"),
		view: session.View{
			State:   session.StateRecording,
			Metrics: analyzer.Snapshot{Alerts: analyzer.Alerts{TooFast: true, StressedVoice: true}},
		},
	}
	fr := m.loc
	out := m.renderAlerts()
	if !containsAll(out, []string{"Ralentissez", fr.Alert("stressed_voice")}) {
		t.Fatalf("missing alert labels: %s", out)
	}
	if strings.Contains(out, fr.Alert("no_pauses")) {
		t.Fatalf("unexpected no-pauses label: %s", out)
	}

	m.view.State = session.StateStopped
	if out := m.renderAlerts(); out != "" {
		t.Fatalf("alerts are only shown while recording, got %s", out)
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
