// Package store persists finished plans, session snapshots, and
// per-user review preferences in a local SQLite database.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"plannerd/internal/logging"
	"plannerd/internal/planning"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps the SQLite handle. Structured payloads are kept as JSON
// columns; the relational surface is only what queries need.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open initializes the database at dir/plannerd.db, creating the
// directory and schema as needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	path := filepath.Join(dir, "plannerd.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("database opened at %s", path)
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initialize() error {
	plansTable := `
	CREATE TABLE IF NOT EXISTS plans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		team_id TEXT NOT NULL,
		week_start TEXT NOT NULL,
		version INTEGER NOT NULL,
		title TEXT,
		document TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(team_id, week_start, version)
	);
	CREATE INDEX IF NOT EXISTS idx_plans_team_week ON plans(team_id, week_start);
	`

	sessionsTable := `
	CREATE TABLE IF NOT EXISTS session_snapshots (
		session_id TEXT PRIMARY KEY,
		user_id TEXT,
		team_id TEXT,
		state TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	preferencesTable := `
	CREATE TABLE IF NOT EXISTS review_preferences (
		user_id TEXT PRIMARY KEY,
		preferences TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	for _, table := range []string{plansTable, sessionsTable, preferencesTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

func weekKey(weekStart time.Time) string {
	return weekStart.Format("2006-01-02")
}

// NextVersion allocates the next plan version for (team, week).
// Version numbers start at 1 and increment per regeneration.
func (s *Store) NextVersion(teamID string, weekStart time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current sql.NullInt64
	err := s.db.QueryRow(
		`SELECT MAX(version) FROM plans WHERE team_id = ? AND week_start = ?`,
		teamID, weekKey(weekStart),
	).Scan(&current)
	if err != nil {
		return 0, fmt.Errorf("failed to query plan versions: %w", err)
	}
	if !current.Valid {
		return 1, nil
	}
	return int(current.Int64) + 1, nil
}

// SavePlan stores the finished document under its own version.
func (s *Store) SavePlan(teamID string, weekStart time.Time, doc *planning.WeeklyPlanDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO plans (team_id, week_start, version, title, document) VALUES (?, ?, ?, ?, ?)`,
		teamID, weekKey(weekStart), doc.Metadata.Version, doc.Title, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}

	logging.Store("plan saved: team=%s week=%s v%d", teamID, weekKey(weekStart), doc.Metadata.Version)
	return nil
}

// LoadPlan fetches one version of a plan, or the latest when
// version <= 0.
func (s *Store) LoadPlan(teamID string, weekStart time.Time, version int) (*planning.WeeklyPlanDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var row *sql.Row
	if version > 0 {
		row = s.db.QueryRow(
			`SELECT document FROM plans WHERE team_id = ? AND week_start = ? AND version = ?`,
			teamID, weekKey(weekStart), version,
		)
	} else {
		row = s.db.QueryRow(
			`SELECT document FROM plans WHERE team_id = ? AND week_start = ? ORDER BY version DESC LIMIT 1`,
			teamID, weekKey(weekStart),
		)
	}

	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	var doc planning.WeeklyPlanDocument
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	return &doc, nil
}

// RecentPlans returns summaries of the newest plans for a team, most
// recent week first, up to limit.
func (s *Store) RecentPlans(teamID string, limit int) ([]planning.PlanSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 4
	}
	rows, err := s.db.Query(
		`SELECT week_start, title, document FROM plans
		 WHERE team_id = ?
		 GROUP BY week_start HAVING version = MAX(version)
		 ORDER BY week_start DESC LIMIT ?`,
		teamID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent plans: %w", err)
	}
	defer rows.Close()

	var summaries []planning.PlanSummary
	for rows.Next() {
		var week, title, payload string
		if err := rows.Scan(&week, &title, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan plan row: %w", err)
		}
		start, err := time.Parse("2006-01-02", week)
		if err != nil {
			continue
		}
		var doc planning.WeeklyPlanDocument
		if err := json.Unmarshal([]byte(payload), &doc); err != nil {
			continue
		}
		summaries = append(summaries, planning.PlanSummary{
			WeekStart:  start,
			Title:      title,
			TotalTasks: doc.Stats.TotalTasks,
		})
	}
	return summaries, rows.Err()
}

// SaveSessionSnapshot persists a session's full state for recovery
// across process restarts.
func (s *Store) SaveSessionSnapshot(sess *planning.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO session_snapshots (session_id, user_id, team_id, state, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(session_id) DO UPDATE SET state = excluded.state, updated_at = CURRENT_TIMESTAMP`,
		sess.ID, sess.UserID, sess.TeamID, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save session snapshot: %w", err)
	}
	return nil
}

// LoadSessionSnapshot restores a persisted session.
func (s *Store) LoadSessionSnapshot(sessionID string) (*planning.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload string
	err := s.db.QueryRow(
		`SELECT state FROM session_snapshots WHERE session_id = ?`, sessionID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session snapshot: %w", err)
	}

	var sess planning.Session
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session snapshot: %w", err)
	}
	return &sess, nil
}

// DeleteSessionSnapshot removes a persisted session. Missing ids are
// a no-op.
func (s *Store) DeleteSessionSnapshot(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM session_snapshots WHERE session_id = ?`, sessionID)
	return err
}

// SavePreferences stores a user's review skip policy.
func (s *Store) SavePreferences(userID string, prefs planning.SkipPreferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO review_preferences (user_id, preferences, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(user_id) DO UPDATE SET preferences = excluded.preferences, updated_at = CURRENT_TIMESTAMP`,
		userID, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// LoadPreferences fetches a user's review skip policy.
func (s *Store) LoadPreferences(userID string) (*planning.SkipPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload string
	err := s.db.QueryRow(
		`SELECT preferences FROM review_preferences WHERE user_id = ?`, userID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	var prefs planning.SkipPreferences
	if err := json.Unmarshal([]byte(payload), &prefs); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return &prefs, nil
}
