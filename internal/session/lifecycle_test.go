package session_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/verte-zerg/pitchcoach/internal/keywords"
	"github.com/verte-zerg/pitchcoach/internal/matcher"
	"github.com/verte-zerg/pitchcoach/internal/model"
	"github.com/verte-zerg/pitchcoach/internal/observe"
	"github.com/verte-zerg/pitchcoach/internal/session"
	"github.com/verte-zerg/pitchcoach/internal/session/mock"
	"github.com/verte-zerg/pitchcoach/internal/stats"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	s          *session.Session
	transcript *mock.TranscriptStream
	audio      *mock.AudioStream
	sched      *mock.Scheduler
	counter    *mock.Counter
	recorder   *mock.Recorder
	pitches    *mock.PitchStore
	clock      *fakeClock
	logs       *bytes.Buffer
}

func newHarness(t *testing.T, opts ...session.Option) *harness {
	t.Helper()
	h := &harness{
		transcript: &mock.TranscriptStream{IsSupported: true},
		audio:      &mock.AudioStream{},
		sched:      &mock.Scheduler{},
		counter:    &mock.Counter{},
		recorder:   &mock.Recorder{},
		pitches:    &mock.PitchStore{},
		clock:      &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)},
		logs:       &bytes.Buffer{},
	}
	base := []session.Option{
		session.WithClock(h.clock.Now),
		session.WithScheduler(h.sched.Schedule),
		session.WithCounter(h.counter),
		session.WithRecorder(h.recorder),
		session.WithPitchStore(h.pitches),
		session.WithLogger(slog.New(slog.NewTextHandler(h.logs, nil))),
	}
	h.s = session.New(h.transcript, h.audio, append(base, opts...)...)
	return h
}

func seedPitch() model.PitchConfig {
	return model.PitchConfig{
		ID:            "p1",
		UserID:        "u1",
		Title:         "Seed round",
		Keywords:      []string{"market size", "team", "ask", "exit"},
		Flagged:       []string{"exit"},
		TargetMinutes: 10,
		Language:      "en-US",
	}
}

func (h *harness) configure(t *testing.T) {
	t.Helper()
	if err := h.s.Configure(seedPitch()); err != nil {
		t.Fatalf("Configure: %v", err)
	}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestStopWhileIdleIsNoop(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	if _, ok := h.s.Stop(context.Background()); ok {
		t.Fatalf("Stop while idle must report false")
	}
	if h.counter.Calls() != 0 || len(h.recorder.Records) != 0 {
		t.Fatalf("idle stop must not count or record")
	}
	if v := h.s.View(); v.State != session.StateIdle || v.Result != nil {
		t.Fatalf("unexpected view after idle stop: %+v", v)
	}
}

func TestFullPracticeRun(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	h.start(t)
	ctx := context.Background()

	if len(h.transcript.Langs) != 1 || h.transcript.Langs[0] != "en-US" {
		t.Fatalf("expected subscribe with pitch locale, got %v", h.transcript.Langs)
	}
	if got := h.sched.Last().Interval; got != time.Second {
		t.Fatalf("expected 1s tick, got %v", got)
	}

	h.clock.Advance(2 * time.Second)
	h.transcript.Final("We discussed market size today", h.clock.Now())
	h.sched.Tick(123)
	h.clock.Advance(123 * time.Second)
	h.transcript.Final("and our ask is simple", h.clock.Now())
	h.sched.Tick(2)

	v := h.s.View()
	if v.State != session.StateRecording || v.Elapsed != 125 || v.Cursor != 1 || v.Hits != 2 {
		t.Fatalf("unexpected recording view %+v", v)
	}
	want := []matcher.Status{matcher.StatusInOrder, matcher.StatusNext, matcher.StatusOutOfOrder, matcher.StatusPending}
	for i, kv := range v.Keywords {
		if kv.Status != want[i] {
			t.Fatalf("keyword %q status %s, want %s", kv.Keyword, kv.Status, want[i])
		}
	}
	if !v.Keywords[3].Flagged {
		t.Fatalf("exit must be flagged")
	}
	if v.Transcript != "We discussed market size today and our ask is simple" {
		t.Fatalf("unexpected transcript %q", v.Transcript)
	}

	result, ok := h.s.Stop(ctx)
	if !ok {
		t.Fatalf("Stop must report true while recording")
	}
	if result.Percentage != 50 || result.Stars != 3 || result.Tier != stats.TierGreat {
		t.Fatalf("unexpected result %+v", result)
	}
	if stats.FormatClock(result.PracticeSeconds) != "2:05" {
		t.Fatalf("unexpected clock %q", stats.FormatClock(result.PracticeSeconds))
	}
	if h.transcript.Subs[0].Calls() != 1 || h.audio.Subs[0].Calls() != 1 || !h.sched.Last().Stopped() {
		t.Fatalf("stop must unsubscribe both streams and stop the timer")
	}
	if h.counter.Calls() != 1 || h.counter.Users[0] != "u1" {
		t.Fatalf("expected one counter increment for u1, got %v", h.counter.Users)
	}

	if len(h.recorder.Records) != 1 {
		t.Fatalf("expected one recorded session")
	}
	rec := h.recorder.Records[0]
	if rec.SessionID == "" || rec.SessionID != v.Generation || rec.InOrderHits != 1 || rec.Hits != 2 || rec.Total != 4 {
		t.Fatalf("unexpected record %+v", rec)
	}
	outcomes := h.recorder.Outcomes[0]
	if !outcomes[0].Spoken || !outcomes[0].InOrder || outcomes[0].AtSecond != 2 {
		t.Fatalf("unexpected first outcome %+v", outcomes[0])
	}
	if !outcomes[2].Spoken || outcomes[2].InOrder || outcomes[2].AtSecond != 125 {
		t.Fatalf("unexpected ask outcome %+v", outcomes[2])
	}
	if outcomes[3].Spoken || !outcomes[3].Flagged {
		t.Fatalf("unexpected exit outcome %+v", outcomes[3])
	}

	stopped := h.s.View()
	if stopped.State != session.StateStopped || stopped.Result == nil || stopped.Result.Hits != 2 {
		t.Fatalf("unexpected stopped view %+v", stopped)
	}
	if _, again := h.s.Stop(ctx); again {
		t.Fatalf("second Stop must be a no-op")
	}
	if h.counter.Calls() != 1 {
		t.Fatalf("second Stop must not count")
	}
}

func TestLateEventsAreIgnored(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	h.start(t)
	staleTicker := h.sched.Last()
	h.sched.Tick(3)
	h.s.Stop(context.Background())

	h.transcript.Final("team", h.clock.Now())
	h.audio.Send(250)
	staleTicker.Fire()
	v := h.s.View()
	if v.Hits != 0 || v.Elapsed != 3 || v.Transcript != "" {
		t.Fatalf("late events mutated a stopped session: %+v", v)
	}

	h.start(t)
	h.transcript.EmitTo(0, session.TranscriptEvent{Text: "team", IsFinal: true})
	staleTicker.Fire()
	v = h.s.View()
	if v.Hits != 0 || v.Elapsed != 0 {
		t.Fatalf("previous generation events must be ignored: %+v", v)
	}
	h.transcript.Final("team", h.clock.Now())
	if h.s.View().Hits != 1 {
		t.Fatalf("current generation events must be applied")
	}
}

func TestStartRefusals(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported", func(t *testing.T) {
		h := newHarness(t)
		h.transcript.IsSupported = false
		h.configure(t)
		if err := h.s.Start(ctx); !errors.Is(err, session.ErrUnsupported) {
			t.Fatalf("expected ErrUnsupported, got %v", err)
		}
		if v := h.s.View(); v.Supported || v.State != session.StateIdle {
			t.Fatalf("unexpected view %+v", v)
		}
	})

	t.Run("edit mode", func(t *testing.T) {
		h := newHarness(t)
		h.configure(t)
		if err := h.s.SetEditMode(ctx, true); err != nil {
			t.Fatalf("SetEditMode: %v", err)
		}
		if err := h.s.Start(ctx); !errors.Is(err, session.ErrEditMode) {
			t.Fatalf("expected ErrEditMode, got %v", err)
		}
	})

	t.Run("empty title", func(t *testing.T) {
		h := newHarness(t)
		p := seedPitch()
		p.Title = "  "
		if err := h.s.Configure(p); err != nil {
			t.Fatalf("Configure: %v", err)
		}
		if err := h.s.Start(ctx); !errors.Is(err, session.ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("no keywords", func(t *testing.T) {
		h := newHarness(t)
		p := seedPitch()
		p.Keywords = nil
		p.Flagged = nil
		_ = h.s.Configure(p)
		if err := h.s.Start(ctx); !errors.Is(err, session.ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("transcript subscribe failure", func(t *testing.T) {
		h := newHarness(t)
		h.transcript.SubscribeErr = errors.New("permission denied")
		h.configure(t)
		if err := h.s.Start(ctx); err == nil || !strings.Contains(err.Error(), "permission denied") {
			t.Fatalf("expected subscribe error, got %v", err)
		}
		if h.s.View().State != session.StateIdle || h.sched.Last() != nil {
			t.Fatalf("failed start must not begin recording")
		}
	})
}

func TestStartWhileRecordingIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	h.start(t)
	gen := h.s.View().Generation
	h.sched.Tick(4)
	h.start(t)
	v := h.s.View()
	if len(h.transcript.Subs) != 1 || v.Generation != gen || v.Elapsed != 4 {
		t.Fatalf("second Start must not restart the session: %+v", v)
	}
}

func TestRestartResetsProgress(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	h.start(t)
	h.transcript.Final("market size", h.clock.Now())
	h.sched.Tick(10)
	first := h.s.View().Generation
	h.s.Stop(context.Background())

	h.start(t)
	v := h.s.View()
	if v.Generation == first || v.Hits != 0 || v.Cursor != 0 || v.Elapsed != 0 || v.Transcript != "" || v.Result != nil {
		t.Fatalf("restart must reset progress: %+v", v)
	}
}

func TestMicrophoneDenied(t *testing.T) {
	h := newHarness(t)
	h.audio.SubscribeErr = errors.New("microphone permission denied")
	h.configure(t)
	h.start(t)
	h.transcript.Final("team and market size", h.clock.Now())
	h.sched.Tick(1)
	v := h.s.View()
	if v.AudioAvailable {
		t.Fatalf("audio must be unavailable")
	}
	if v.Hits != 2 || v.Metrics.Alerts.StressedVoice || v.Metrics.VolumeLevel != 0 {
		t.Fatalf("matching must continue with neutral volume: %+v", v)
	}
	if !strings.Contains(h.logs.String(), "microphone unavailable") {
		t.Fatalf("expected a warning in logs, got %q", h.logs.String())
	}
	if _, ok := h.s.Stop(context.Background()); !ok {
		t.Fatalf("Stop must succeed without audio")
	}
}

func TestNilAudioStream(t *testing.T) {
	h := newHarness(t)
	s := session.New(h.transcript, nil, session.WithScheduler(h.sched.Schedule), session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err := s.Configure(seedPitch()); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.View().AudioAvailable {
		t.Fatalf("nil audio stream must leave audio unavailable")
	}
}

func TestDegradedMode(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	h.start(t)
	h.transcript.Final("warm up", h.clock.Now())
	h.clock.Advance(time.Second)
	h.transcript.Final(strings.Repeat("fast ", 10), h.clock.Now())

	h.transcript.Emit(session.TranscriptEvent{Err: errors.New("network")})
	h.transcript.Emit(session.TranscriptEvent{Err: errors.New("network")})
	h.audio.Send(200)
	h.sched.Tick(1)

	v := h.s.View()
	if !v.Degraded || v.State != session.StateRecording {
		t.Fatalf("expected degraded recording session: %+v", v)
	}
	if v.Metrics.Alerts.TooFast || v.Metrics.WordsPerMinute != 0 {
		t.Fatalf("rate alerts must pause while degraded: %+v", v.Metrics)
	}
	if !v.Metrics.Alerts.StressedVoice {
		t.Fatalf("volume alerts must continue while degraded")
	}
	if strings.Count(h.logs.String(), "transcription degraded") != 1 {
		t.Fatalf("expected one degraded log line, got %q", h.logs.String())
	}

	h.transcript.Emit(session.TranscriptEvent{Text: "the", At: h.clock.Now()})
	h.sched.Tick(1)
	v = h.s.View()
	if v.Degraded || v.Metrics.WordsPerMinute != 0 || v.Metrics.Alerts.TooFast {
		t.Fatalf("a resumed stream must not report the rate from before the error: %+v", v)
	}

	h.transcript.Final("the team", h.clock.Now())
	v = h.s.View()
	if v.Degraded || v.Hits != 1 {
		t.Fatalf("next fragment must clear degraded and be matched: %+v", v)
	}
}

func TestInterimFragmentsAreNotMatched(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	h.start(t)
	h.transcript.Emit(session.TranscriptEvent{Text: "market size", IsFinal: false})
	v := h.s.View()
	if v.Hits != 0 || v.Interim != "market size" {
		t.Fatalf("interim must be shown but not matched: %+v", v)
	}
	h.transcript.Final("market size", h.clock.Now())
	v = h.s.View()
	if v.Hits != 1 || v.Interim != "" {
		t.Fatalf("final must be matched and clear interim: %+v", v)
	}
}

func TestConfigurationGuardsWhileRecording(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	h.start(t)
	ctx := context.Background()
	if err := h.s.Configure(seedPitch()); !errors.Is(err, session.ErrRecording) {
		t.Fatalf("expected ErrRecording from Configure, got %v", err)
	}
	if err := h.s.SetEditMode(ctx, true); !errors.Is(err, session.ErrRecording) {
		t.Fatalf("expected ErrRecording from SetEditMode, got %v", err)
	}
	if err := h.s.Edit(func(p model.PitchConfig) (model.PitchConfig, error) { return p, nil }); !errors.Is(err, session.ErrNotEditing) {
		t.Fatalf("expected ErrNotEditing, got %v", err)
	}
}

func TestEditModeSavesPitch(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	if err := h.s.SetEditMode(ctx, true); err != nil {
		t.Fatalf("SetEditMode: %v", err)
	}
	err := h.s.Edit(func(p model.PitchConfig) (model.PitchConfig, error) {
		return keywords.ToggleFlag(p, "team")
	})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if err := h.s.Edit(func(p model.PitchConfig) (model.PitchConfig, error) {
		return keywords.Remove(p, "missing")
	}); err == nil {
		t.Fatalf("expected error from failing edit")
	}
	if !h.s.View().Keywords[1].Flagged {
		t.Fatalf("edit must be reflected in the view")
	}

	h.pitches.SaveErr = errors.New("disk full")
	if err := h.s.SetEditMode(ctx, false); err == nil {
		t.Fatalf("expected save error")
	}
	if !h.s.View().EditMode {
		t.Fatalf("failed save must keep edit mode")
	}
	h.pitches.SaveErr = nil
	if err := h.s.SetEditMode(ctx, false); err != nil {
		t.Fatalf("SetEditMode(false): %v", err)
	}
	saved, err := h.pitches.GetPitch(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("GetPitch: %v", err)
	}
	if !saved.IsFlagged("team") || h.s.View().EditMode {
		t.Fatalf("expected saved flag and edit mode off: %+v", saved)
	}
}

func TestCloseSavesPendingEdits(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	if err := h.s.SetEditMode(ctx, true); err != nil {
		t.Fatalf("SetEditMode: %v", err)
	}
	if err := h.s.Edit(func(p model.PitchConfig) (model.PitchConfig, error) {
		return keywords.ToggleFlag(p, "market size")
	}); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if err := h.s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if h.pitches.Saves != 1 {
		t.Fatalf("expected one save on close, got %d", h.pitches.Saves)
	}
	saved, err := h.pitches.GetPitch(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("GetPitch: %v", err)
	}
	if !saved.IsFlagged("market size") {
		t.Fatalf("edited flag must be persisted: %+v", saved)
	}
	if h.s.View().EditMode {
		t.Fatalf("Close must leave edit mode")
	}
	if err := h.s.Close(ctx); err != nil || h.pitches.Saves != 1 {
		t.Fatalf("second Close must not save again (saves=%d, err=%v)", h.pitches.Saves, err)
	}
}

func TestCloseReportsSaveFailure(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	if err := h.s.SetEditMode(ctx, true); err != nil {
		t.Fatalf("SetEditMode: %v", err)
	}
	h.pitches.SaveErr = errors.New("disk full")
	if err := h.s.Close(ctx); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected save error from Close, got %v", err)
	}
	if v := h.s.View(); v.EditMode || v.State != session.StateIdle {
		t.Fatalf("Close must still reset the session: %+v", v)
	}
	if !strings.Contains(h.logs.String(), "failed to save edited pitch") {
		t.Fatalf("expected save failure in logs, got %q", h.logs.String())
	}
}

func TestLoadPitch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.pitches.SavePitch(ctx, seedPitch()); err != nil {
		t.Fatalf("SavePitch: %v", err)
	}
	if err := h.s.LoadPitch(ctx, "u1", "p1"); err != nil {
		t.Fatalf("LoadPitch: %v", err)
	}
	if v := h.s.View(); v.Title != "Seed round" || len(v.Keywords) != 4 {
		t.Fatalf("unexpected view %+v", v)
	}
	if err := h.s.LoadPitch(ctx, "u1", "nope"); err == nil {
		t.Fatalf("expected error for missing pitch")
	}
}

func TestPrioritizedListIsUsed(t *testing.T) {
	h := newHarness(t)
	p := seedPitch()
	p.TargetMinutes = 1
	if err := h.s.Configure(p); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	v := h.s.View()
	if len(v.Keywords) != 2 || v.Keywords[0].Keyword != "market size" || v.Keywords[1].Keyword != "exit" {
		t.Fatalf("unexpected active list %+v", v.Keywords)
	}
	if len(v.AllKeywords) != 4 {
		t.Fatalf("full list must stay available, got %v", v.AllKeywords)
	}
}

func TestCounterFailureIsLogged(t *testing.T) {
	h := newHarness(t)
	h.counter.Err = errors.New("quota")
	h.configure(t)
	h.start(t)
	if _, ok := h.s.Stop(context.Background()); !ok {
		t.Fatalf("Stop must still succeed")
	}
	if !strings.Contains(h.logs.String(), "failed to increment practice counter") {
		t.Fatalf("expected counter failure in logs, got %q", h.logs.String())
	}
}

func TestCloseTearsDownWithoutScoring(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	h.start(t)
	h.transcript.Final("team", h.clock.Now())
	if err := h.s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if h.transcript.Subs[0].Calls() != 1 || !h.sched.Last().Stopped() {
		t.Fatalf("Close must tear down streams")
	}
	v := h.s.View()
	if v.State != session.StateIdle || v.Hits != 0 || v.Result != nil {
		t.Fatalf("unexpected view after Close %+v", v)
	}
	if h.counter.Calls() != 0 || len(h.recorder.Records) != 0 {
		t.Fatalf("Close must not score")
	}
	if _, _, ok := h.s.LastRecord(); ok {
		t.Fatalf("no record after Close")
	}
}

func TestOnChangeReceivesViews(t *testing.T) {
	var mu sync.Mutex
	var states []session.State
	h := newHarness(t, session.WithOnChange(func(v session.View) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, v.State)
	}))
	h.configure(t)
	h.start(t)
	h.sched.Tick(1)
	h.s.Stop(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 4 || states[1] != session.StateRecording || states[3] != session.StateStopped {
		t.Fatalf("unexpected notifications %v", states)
	}
}

func TestSessionMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	met, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	h := newHarness(t, session.WithMetrics(met))
	h.configure(t)
	h.start(t)
	h.transcript.Final("market size and team", h.clock.Now())
	h.sched.Tick(30)
	h.s.Stop(context.Background())

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[m.Name] += dp.Value
				}
			}
		}
	}
	if totals["pitchcoach.sessions.started"] != 1 || totals["pitchcoach.sessions.completed"] != 1 {
		t.Fatalf("unexpected session counters %v", totals)
	}
	if totals["pitchcoach.keyword.hits"] != 2 || totals["pitchcoach.active_sessions"] != 0 {
		t.Fatalf("unexpected hit or gauge values %v", totals)
	}
}
