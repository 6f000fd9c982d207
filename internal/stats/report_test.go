package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/pitchcoach/internal/model"
	"github.com/verte-zerg/pitchcoach/internal/store"
)

func TestBuildReport(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "pitchcoach.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	ids := []string{"a", "b", "c"}
	for i, id := range ids {
		start := time.Unix(0, 0).Add(time.Duration(i) * time.Minute)
		rec := model.PracticeRecord{
			SessionID:       id,
			PitchID:         "p",
			UserID:          "u",
			StartedAt:       start,
			EndedAt:         start.Add(30 * time.Second),
			Lang:            "en",
			Hits:            1,
			Total:           2,
			Percentage:      50,
			PracticeSeconds: 30,
		}
		outcomes := []model.KeywordOutcome{
			{Keyword: "team", Spoken: true, InOrder: true},
			{Keyword: "ask", Position: 1, Spoken: i == 0},
		}
		if err := st.InsertPractice(ctx, rec, outcomes); err != nil {
			t.Fatalf("insert practice: %v", err)
		}
	}

	report, err := BuildReport(ctx, st, model.HistoryConfig{UserID: "u", Last: 2, CurveWindow: 1})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(report.Sessions))
	}
	if report.Sessions[0].SessionID != "b" || report.Sessions[1].SessionID != "c" {
		t.Fatalf("unexpected session ids: %+v", report.Sessions)
	}
	if len(report.KeywordsAll) != 2 || report.KeywordsAll[0].Keyword != "ask" || report.KeywordsAll[0].Sessions != 2 {
		t.Fatalf("unexpected keyword aggregates %+v", report.KeywordsAll)
	}
	if report.KeywordsAll[0].Spoken != 0 {
		t.Fatalf("first session must be outside the report: %+v", report.KeywordsAll[0])
	}
	if len(report.KeywordsWindow) != 2 || report.KeywordsWindow[1].Sessions != 1 {
		t.Fatalf("unexpected window aggregates %+v", report.KeywordsWindow)
	}
	if report.WindowSessions != 1 {
		t.Fatalf("expected window of 1 session, got %d", report.WindowSessions)
	}

	wide, err := BuildReport(ctx, st, model.HistoryConfig{UserID: "u", CurveWindow: 10})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if wide.WindowSessions != 3 {
		t.Fatalf("window must not exceed the session count, got %d", wide.WindowSessions)
	}
}
