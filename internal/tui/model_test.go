package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/pitchcoach/internal/i18n"
	"github.com/verte-zerg/pitchcoach/internal/model"
	"github.com/verte-zerg/pitchcoach/internal/session"
	"github.com/verte-zerg/pitchcoach/internal/session/mock"
	"github.com/verte-zerg/pitchcoach/internal/stats"
)

type practiceHarness struct {
	m       *Model
	s       *session.Session
	typed   *TypedTranscript
	sched   *mock.Scheduler
	pitches *mock.PitchStore
	changes <-chan struct{}
}

func newPracticeHarness(t *testing.T) *practiceHarness {
	t.Helper()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	h := &practiceHarness{
		typed:   NewTypedTranscript(clock),
		sched:   &mock.Scheduler{},
		pitches: &mock.PitchStore{},
	}
	changes, notify := Notifier()
	h.changes = changes
	h.s = session.New(h.typed, nil,
		session.WithClock(clock),
		session.WithScheduler(h.sched.Schedule),
		session.WithPitchStore(h.pitches),
		session.WithOnChange(notify),
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err := h.s.Configure(model.PitchConfig{
		ID:            "p1",
		UserID:        "u1",
		Title:         "Seed round",
		Keywords:      []string{"market size", "team", "ask", "exit"},
		Flagged:       []string{"exit"},
		TargetMinutes: 10,
		Language:      "en-US",
	}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	catalog, err := i18n.NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	h.m = NewModel(context.Background(), h.s, h.typed, catalog, changes)
	return h
}

func (h *practiceHarness) key(t *testing.T, msg tea.KeyMsg) tea.Cmd {
	t.Helper()
	_, cmd := h.m.Update(msg)
	return cmd
}

func (h *practiceHarness) say(t *testing.T, text string) {
	t.Helper()
	h.m.input.SetValue(text)
	h.key(t, tea.KeyMsg{Type: tea.KeyEnter})
}

func TestPracticeRoundTrip(t *testing.T) {
	h := newPracticeHarness(t)
	if !strings.Contains(h.m.View(), "Seed round") {
		t.Fatalf("expected title in idle view")
	}

	h.key(t, tea.KeyMsg{Type: tea.KeyCtrlR})
	if h.m.view.State != session.StateRecording {
		t.Fatalf("ctrl+r must start recording, state %v (%s)", h.m.view.State, h.m.errMsg)
	}
	if !strings.Contains(h.m.View(), "Next: market size") {
		t.Fatalf("expected next keyword hint:\n%s", h.m.View())
	}

	h.say(t, "we looked at the market size")
	h.sched.Tick(65)
	h.say(t, "and the team")
	if h.m.input.Value() != "" {
		t.Fatalf("input must be cleared after submit")
	}
	if h.m.view.Hits != 2 || !strings.Contains(h.m.view.Transcript, "and the team") {
		t.Fatalf("expected 2 hits and transcript, got %+v", h.m.view)
	}

	h.key(t, tea.KeyMsg{Type: tea.KeyCtrlR})
	if h.m.view.State != session.StateStopped || h.m.view.Result == nil {
		t.Fatalf("ctrl+r must stop with a result, got %+v", h.m.view)
	}
	if h.m.view.Result.Tier != stats.TierGreat {
		t.Fatalf("expected great tier, got %+v", h.m.view.Result)
	}
	out := h.m.View()
	if !containsAll(out, []string{"2 of 4 keywords (50%) in 1:05", "Great job!"}) {
		t.Fatalf("result missing from view:\n%s", out)
	}
}

func TestTypingIgnoredWhileIdle(t *testing.T) {
	h := newPracticeHarness(t)
	h.say(t, "market size")
	if h.m.view.Hits != 0 || h.m.view.Transcript != "" {
		t.Fatalf("idle input must not reach the session")
	}
	if h.typed.Submit("market size") {
		t.Fatalf("no subscriber before Start")
	}
}

func TestEditModeKeys(t *testing.T) {
	h := newPracticeHarness(t)
	h.key(t, tea.KeyMsg{Type: tea.KeyCtrlE})
	if !h.m.view.EditMode || !strings.Contains(h.m.View(), "Edit mode") {
		t.Fatalf("ctrl+e must enter edit mode")
	}

	h.key(t, tea.KeyMsg{Type: tea.KeyDown})
	h.key(t, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if !h.m.pitch.IsFlagged("team") {
		t.Fatalf("space must flag the selected keyword, got %+v", h.m.pitch)
	}

	h.key(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'J'}})
	if got := h.m.view.AllKeywords; got[2] != "team" || h.m.selected != 2 {
		t.Fatalf("J must move the keyword down, got %v (selected %d)", got, h.m.selected)
	}
	h.key(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'K'}})
	h.key(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'K'}})
	if got := h.m.view.AllKeywords; got[0] != "team" || h.m.selected != 0 {
		t.Fatalf("K must move the keyword up, got %v (selected %d)", got, h.m.selected)
	}

	h.key(t, tea.KeyMsg{Type: tea.KeyTab})
	if h.m.view.TargetMinutes != 15 {
		t.Fatalf("tab must cycle the duration, got %d", h.m.view.TargetMinutes)
	}

	h.key(t, tea.KeyMsg{Type: tea.KeyCtrlR})
	if h.m.view.State == session.StateRecording || h.m.errMsg != "Edit mode" {
		t.Fatalf("start must be refused in edit mode, err %q", h.m.errMsg)
	}

	h.key(t, tea.KeyMsg{Type: tea.KeyCtrlE})
	if h.m.view.EditMode || h.pitches.Saves != 1 {
		t.Fatalf("ctrl+e must save and leave edit mode, saves %d", h.pitches.Saves)
	}
	saved, err := h.pitches.GetPitch(context.Background(), "u1", "p1")
	if err != nil {
		t.Fatalf("GetPitch: %v", err)
	}
	if saved.Keywords[0] != "team" || saved.TargetMinutes != 15 {
		t.Fatalf("unexpected saved pitch %+v", saved)
	}
}

func TestEscLeavesEditModeBeforeQuitting(t *testing.T) {
	h := newPracticeHarness(t)
	h.key(t, tea.KeyMsg{Type: tea.KeyCtrlE})
	if cmd := h.key(t, tea.KeyMsg{Type: tea.KeyEsc}); cmd != nil {
		t.Fatalf("esc in edit mode must not quit")
	}
	if h.m.view.EditMode {
		t.Fatalf("esc must leave edit mode")
	}
	cmd := h.key(t, tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatalf("esc must quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected a quit message")
	}
}

func TestQuitWhileRecordingClosesSession(t *testing.T) {
	h := newPracticeHarness(t)
	h.key(t, tea.KeyMsg{Type: tea.KeyCtrlR})
	h.key(t, tea.KeyMsg{Type: tea.KeyCtrlC})
	if v := h.s.View(); v.State != session.StateIdle || v.Result != nil {
		t.Fatalf("quitting must tear down without scoring, got %+v", v)
	}
	if !h.sched.Last().Stopped() {
		t.Fatalf("timer must be stopped on quit")
	}
}

func TestCtrlCInEditModeSavesEdits(t *testing.T) {
	h := newPracticeHarness(t)
	h.key(t, tea.KeyMsg{Type: tea.KeyCtrlE})
	h.key(t, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if !h.s.Pitch().IsFlagged("market size") {
		t.Fatalf("space must flag the first keyword")
	}
	cmd := h.key(t, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("ctrl+c must quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected a quit message")
	}
	if h.pitches.Saves != 1 || h.m.Err() != nil {
		t.Fatalf("ctrl+c in edit mode must save the pitch, saves %d err %v", h.pitches.Saves, h.m.Err())
	}
	saved, err := h.pitches.GetPitch(context.Background(), "u1", "p1")
	if err != nil {
		t.Fatalf("GetPitch: %v", err)
	}
	if !saved.IsFlagged("market size") {
		t.Fatalf("flag must be persisted, got %+v", saved)
	}
}

func TestQuitKeepsSaveError(t *testing.T) {
	h := newPracticeHarness(t)
	h.key(t, tea.KeyMsg{Type: tea.KeyCtrlE})
	h.pitches.SaveErr = errors.New("read-only database")
	h.key(t, tea.KeyMsg{Type: tea.KeyCtrlC})
	if err := h.m.Err(); err == nil || !strings.Contains(err.Error(), "read-only database") {
		t.Fatalf("expected the save error to be kept, got %v", err)
	}
}

func TestChangeNotificationsRefresh(t *testing.T) {
	h := newPracticeHarness(t)
	h.key(t, tea.KeyMsg{Type: tea.KeyCtrlR})
	h.sched.Tick(3)

	select {
	case <-h.changes:
	default:
		t.Fatalf("expected a pending change notification")
	}
	h.m.Update(changedMsg{})
	if h.m.view.Elapsed != 3 {
		t.Fatalf("expected refreshed elapsed 3, got %d", h.m.view.Elapsed)
	}
}

func TestNotifierCoalesces(t *testing.T) {
	ch, notify := Notifier()
	for i := 0; i < 5; i++ {
		notify(session.View{})
	}
	<-ch
	select {
	case <-ch:
		t.Fatalf("notifications must coalesce")
	default:
	}
}

func TestTypedTranscriptStaleUnsubscribe(t *testing.T) {
	typed := NewTypedTranscript(nil)
	var first, second int
	subA, _ := typed.Subscribe("en", func(session.TranscriptEvent) { first++ })
	subB, _ := typed.Subscribe("en", func(ev session.TranscriptEvent) {
		if !ev.IsFinal || ev.Text != "hello" {
			t.Errorf("unexpected event %+v", ev)
		}
		second++
	})
	subA.Unsubscribe()
	if !typed.Submit("  hello ") || typed.Submit("   ") {
		t.Fatalf("unexpected Submit results")
	}
	if first != 0 || second != 1 {
		t.Fatalf("expected only the live subscriber, got %d/%d", first, second)
	}
	subB.Unsubscribe()
	if typed.Submit("hello") {
		t.Fatalf("expected no delivery after Unsubscribe")
	}
}
