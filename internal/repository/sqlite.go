package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database and applies migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// withPragmas adds connection parameters so every pooled connection enforces
// foreign keys and waits on a locked database.
func withPragmas(dsn string) string {
	params := []string{}
	if !strings.Contains(dsn, "_foreign_keys=") && !strings.Contains(dsn, "_fk=") {
		params = append(params, "_foreign_keys=on")
	}
	if !strings.Contains(dsn, "_busy_timeout=") && !strings.Contains(dsn, "_timeout=") {
		params = append(params, "_busy_timeout=5000")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS missions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mission_key TEXT NOT NULL UNIQUE,
			mission_type TEXT NOT NULL CHECK (mission_type IN ('observe', 'explore')),
			mission_text TEXT NOT NULL,
			meaning_text TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			source_doi TEXT,
			source_title TEXT,
			safety_level TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_missions_type ON missions(mission_type)`,
		`CREATE TABLE IF NOT EXISTS questions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			question_key TEXT NOT NULL UNIQUE,
			question_text TEXT NOT NULL,
			options TEXT NOT NULL,
			source_doi TEXT,
			source_title TEXT,
			category TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS assignments (
			assignment_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			mission_id INTEGER NOT NULL,
			assigned_date TEXT NOT NULL,
			completed BOOLEAN NOT NULL DEFAULT 0,
			completed_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, assigned_date),
			FOREIGN KEY (mission_id) REFERENCES missions(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_user_date ON assignments(user_id, assigned_date DESC)`,
		`CREATE TABLE IF NOT EXISTS recordings (
			recording_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			assignment_id TEXT NOT NULL,
			photo_url TEXT,
			text_content TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CHECK (photo_url IS NOT NULL OR text_content IS NOT NULL),
			FOREIGN KEY (assignment_id) REFERENCES assignments(assignment_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recordings_user ON recordings(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS reflections (
			reflection_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			recording_id TEXT NOT NULL UNIQUE,
			question_id INTEGER NOT NULL,
			response_text TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (recording_id) REFERENCES recordings(recording_id),
			FOREIGN KEY (question_id) REFERENCES questions(id)
		)`,
		`CREATE TABLE IF NOT EXISTS ai_feedbacks (
			feedback_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			recording_id TEXT NOT NULL UNIQUE,
			empathy TEXT NOT NULL,
			discovery TEXT NOT NULL,
			hint TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (recording_id) REFERENCES recordings(recording_id)
		)`,
		`CREATE TABLE IF NOT EXISTS flow_events (
			event_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			from_step TEXT NOT NULL,
			to_step TEXT NOT NULL,
			payload TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_flow_events_session ON flow_events(session_id, ts)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	if err := s.ensureColumn("ai_feedbacks", "generator", `ALTER TABLE ai_feedbacks ADD COLUMN generator TEXT NOT NULL DEFAULT ''`); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY conflict.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// translate maps driver errors onto repository errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
