// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/pitchcoach/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNotFound is returned when a pitch does not exist for the user.
var ErrNotFound = errors.New("pitch not found")

// timeLayout is fixed width and always UTC so stored timestamps compare
// correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Store wraps SQLite access for pitches and practice history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pitches (
			user_id TEXT NOT NULL,
			id TEXT NOT NULL,
			title TEXT NOT NULL,
			record TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (user_id, id)
		);`,
		`CREATE TABLE IF NOT EXISTS practice_sessions (
			id TEXT PRIMARY KEY,
			pitch_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			lang TEXT NOT NULL,
			target_minutes INTEGER NOT NULL,
			hits INTEGER NOT NULL,
			total INTEGER NOT NULL,
			in_order_hits INTEGER NOT NULL,
			percentage REAL NOT NULL,
			stars INTEGER NOT NULL,
			practice_seconds INTEGER NOT NULL,
			peak_wpm REAL NOT NULL,
			too_fast_alerts INTEGER NOT NULL,
			no_pause_alerts INTEGER NOT NULL,
			stress_alerts INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS session_keywords (
			session_id TEXT NOT NULL,
			keyword TEXT NOT NULL,
			position INTEGER NOT NULL,
			flagged INTEGER NOT NULL,
			spoken INTEGER NOT NULL,
			in_order INTEGER NOT NULL,
			at_second INTEGER NOT NULL,
			PRIMARY KEY (session_id, keyword)
		);`,
		`CREATE TABLE IF NOT EXISTS user_stats (
			user_id TEXT PRIMARY KEY,
			practice_count INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_practice_sessions_ended_at ON practice_sessions(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_session_keywords_keyword ON session_keywords(keyword);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// GetPitch loads a pitch owned by userID.
func (s *Store) GetPitch(ctx context.Context, userID, id string) (model.PitchConfig, error) {
	var record string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM pitches WHERE user_id = ? AND id = ?`, userID, id).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PitchConfig{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.PitchConfig{}, err
	}
	var p model.PitchConfig
	if err := json.Unmarshal([]byte(record), &p); err != nil {
		return model.PitchConfig{}, fmt.Errorf("failed to decode pitch %s: %w", id, err)
	}
	return p, nil
}

// SavePitch inserts or replaces a pitch. CreatedAt is kept from the first save.
func (s *Store) SavePitch(ctx context.Context, p model.PitchConfig) error {
	if p.ID == "" || p.UserID == "" {
		return errors.New("pitch id and user id are required")
	}
	now := s.now().UTC()
	if existing, err := s.GetPitch(ctx, p.UserID, p.ID); err == nil {
		p.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode pitch %s: %w", p.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pitches (user_id, id, title, record, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, id) DO UPDATE SET title = excluded.title, record = excluded.record, updated_at = excluded.updated_at`,
		p.UserID, p.ID, p.Title, string(data), formatTime(now))
	return err
}

// ListPitches returns the user's pitches ordered by title.
func (s *Store) ListPitches(ctx context.Context, userID string) ([]model.PitchConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM pitches WHERE user_id = ? ORDER BY title COLLATE NOCASE, id`, userID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var pitches []model.PitchConfig
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		var p model.PitchConfig
		if err := json.Unmarshal([]byte(record), &p); err != nil {
			return nil, fmt.Errorf("failed to decode pitch: %w", err)
		}
		pitches = append(pitches, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pitches, nil
}

// DeletePitch removes a pitch. Practice history is kept.
func (s *Store) DeletePitch(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pitches WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// IncrementPractice bumps the user's completed practice counter.
func (s *Store) IncrementPractice(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_stats (user_id, practice_count) VALUES (?, 1)
		 ON CONFLICT(user_id) DO UPDATE SET practice_count = practice_count + 1`, userID)
	return err
}

// PracticeCount returns the user's completed practice counter.
func (s *Store) PracticeCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT practice_count FROM user_stats WHERE user_id = ?`, userID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return count, err
}

// InsertPractice stores a completed session and its per-keyword outcomes.
func (s *Store) InsertPractice(ctx context.Context, rec model.PracticeRecord, outcomes []model.KeywordOutcome) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO practice_sessions (id, pitch_id, user_id, started_at, ended_at, lang, target_minutes, hits, total, in_order_hits, percentage, stars, practice_seconds, peak_wpm, too_fast_alerts, no_pause_alerts, stress_alerts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID,
		rec.PitchID,
		rec.UserID,
		formatTime(rec.StartedAt),
		formatTime(rec.EndedAt),
		rec.Lang,
		rec.TargetMinutes,
		rec.Hits,
		rec.Total,
		rec.InOrderHits,
		rec.Percentage,
		rec.Stars,
		rec.PracticeSeconds,
		rec.PeakWPM,
		rec.TooFastAlerts,
		rec.NoPauseAlerts,
		rec.StressAlerts,
	)
	if err != nil {
		return err
	}

	if len(outcomes) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO session_keywords (session_id, keyword, position, flagged, spoken, in_order, at_second)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, o := range outcomes {
			if _, err = stmt.ExecContext(ctx, rec.SessionID, o.Keyword, o.Position, boolInt(o.Flagged), boolInt(o.Spoken), boolInt(o.InOrder), o.AtSecond); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// ListSessions returns session aggregates filtered by history config, oldest first.
func (s *Store) ListSessions(ctx context.Context, cfg model.HistoryConfig) ([]model.SessionAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, cfg.UserID)
	}
	if cfg.PitchID != "" {
		clauses = append(clauses, "pitch_id = ?")
		args = append(args, cfg.PitchID)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, formatTime(*cfg.Since))
	}
	query := fmt.Sprintf(`SELECT id, ended_at, hits, total, percentage, practice_seconds, peak_wpm
		FROM practice_sessions
		WHERE %s
		ORDER BY ended_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.SessionAggregate
	for rows.Next() {
		var agg model.SessionAggregate
		var endedAt string
		if err := rows.Scan(&agg.SessionID, &endedAt, &agg.Hits, &agg.Total, &agg.Percentage, &agg.PracticeSeconds, &agg.PeakWPM); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		agg.EndedAt = parsed
		sessions = append(sessions, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// KeywordAggregates sums per-keyword outcomes across the given sessions.
func (s *Store) KeywordAggregates(ctx context.Context, sessionIDs []string) ([]model.KeywordAggregate, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(sessionIDs))
	args := make([]any, len(sessionIDs))
	for i, id := range sessionIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT keyword, COUNT(*) AS sessions, SUM(spoken) AS spoken, SUM(in_order) AS in_order
		FROM session_keywords
		WHERE session_id IN (%s)
		GROUP BY keyword
		ORDER BY keyword`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.KeywordAggregate
	for rows.Next() {
		var agg model.KeywordAggregate
		if err := rows.Scan(&agg.Keyword, &agg.Sessions, &agg.Spoken, &agg.InOrder); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// KeywordHistory returns per-session outcomes for the requested keywords,
// keyed by the keyword as requested and then by session id. Keywords match
// case-insensitively.
func (s *Store) KeywordHistory(ctx context.Context, sessionIDs, keywords []string) (map[string]map[string]model.KeywordOutcome, error) {
	result := make(map[string]map[string]model.KeywordOutcome, len(keywords))
	if len(sessionIDs) == 0 || len(keywords) == 0 {
		return result, nil
	}
	wanted := make(map[string]string, len(keywords))
	for _, kw := range keywords {
		wanted[strings.ToLower(strings.TrimSpace(kw))] = kw
	}
	placeholders := make([]string, len(sessionIDs))
	args := make([]any, len(sessionIDs))
	for i, id := range sessionIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT session_id, keyword, position, flagged, spoken, in_order, at_second
		FROM session_keywords
		WHERE session_id IN (%s)`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	for rows.Next() {
		var sessionID string
		var o model.KeywordOutcome
		var flagged, spoken, inOrder int
		if err := rows.Scan(&sessionID, &o.Keyword, &o.Position, &flagged, &spoken, &inOrder, &o.AtSecond); err != nil {
			return nil, err
		}
		requested, ok := wanted[strings.ToLower(strings.TrimSpace(o.Keyword))]
		if !ok {
			continue
		}
		o.Flagged, o.Spoken, o.InOrder = flagged != 0, spoken != 0, inOrder != 0
		if result[requested] == nil {
			result[requested] = make(map[string]model.KeywordOutcome)
		}
		result[requested][sessionID] = o
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
