package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xiaot623/dailymission/internal/domain"
)

const missionColumns = `id, mission_key, mission_type, mission_text, meaning_text, category, source_doi, source_title, safety_level`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMission(row rowScanner, m *domain.Mission) error {
	var doi, title, safety sql.NullString
	if err := row.Scan(&m.ID, &m.Key, &m.Type, &m.Text, &m.MeaningText, &m.Category, &doi, &title, &safety); err != nil {
		return err
	}
	m.SourceDOI = doi.String
	m.SourceTitle = title.String
	m.SafetyLevel = safety.String
	return nil
}

// GetMission retrieves a mission by ID.
func (s *SQLiteStore) GetMission(ctx context.Context, missionID int64) (*domain.Mission, error) {
	var m domain.Mission
	err := scanMission(s.db.QueryRowContext(ctx,
		`SELECT `+missionColumns+` FROM missions WHERE id = ?`, missionID), &m)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMissions lists missions of a type, skipping excludeIDs.
func (s *SQLiteStore) ListMissions(ctx context.Context, missionType domain.MissionType, excludeIDs []int64) ([]domain.Mission, error) {
	query := `SELECT ` + missionColumns + ` FROM missions WHERE mission_type = ?`
	args := []interface{}{missionType}
	if len(excludeIDs) > 0 {
		placeholders := make([]string, len(excludeIDs))
		for i, id := range excludeIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query += ` AND id NOT IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missions []domain.Mission
	for rows.Next() {
		var m domain.Mission
		if err := scanMission(rows, &m); err != nil {
			return nil, err
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}

// CountMissions returns the catalog size.
func (s *SQLiteStore) CountMissions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM missions`).Scan(&n)
	return n, err
}

// UpsertMission inserts a mission or updates it by catalog key.
func (s *SQLiteStore) UpsertMission(ctx context.Context, m *domain.Mission) error {
	if !m.Type.Valid() {
		return fmt.Errorf("mission %q: invalid type %q", m.Key, m.Type)
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO missions (mission_key, mission_type, mission_text, meaning_text, category, source_doi, source_title, safety_level)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(mission_key) DO UPDATE SET
			mission_type = excluded.mission_type,
			mission_text = excluded.mission_text,
			meaning_text = excluded.meaning_text,
			category = excluded.category,
			source_doi = excluded.source_doi,
			source_title = excluded.source_title,
			safety_level = excluded.safety_level
		 RETURNING id`,
		m.Key, m.Type, m.Text, m.MeaningText, m.Category, nullString(m.SourceDOI), nullString(m.SourceTitle), nullString(m.SafetyLevel),
	).Scan(&m.ID)
	return err
}

// RandomQuestion returns one reflection question chosen uniformly at random.
func (s *SQLiteStore) RandomQuestion(ctx context.Context) (*domain.Question, error) {
	var q domain.Question
	var options string
	var doi, title, category sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, question_key, question_text, options, source_doi, source_title, category FROM questions ORDER BY RANDOM() LIMIT 1`,
	).Scan(&q.ID, &q.Key, &q.Text, &options, &doi, &title, &category)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
		return nil, fmt.Errorf("question %d: decode options: %w", q.ID, err)
	}
	q.SourceDOI = doi.String
	q.SourceTitle = title.String
	q.Category = category.String
	return &q, nil
}

// UpsertQuestion inserts a question or updates it by catalog key.
func (s *SQLiteStore) UpsertQuestion(ctx context.Context, q *domain.Question) error {
	if len(q.Options) == 0 {
		return fmt.Errorf("question %q: no options", q.Key)
	}
	options, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	return s.db.QueryRowContext(ctx,
		`INSERT INTO questions (question_key, question_text, options, source_doi, source_title, category)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(question_key) DO UPDATE SET
			question_text = excluded.question_text,
			options = excluded.options,
			source_doi = excluded.source_doi,
			source_title = excluded.source_title,
			category = excluded.category
		 RETURNING id`,
		q.Key, q.Text, string(options), nullString(q.SourceDOI), nullString(q.SourceTitle), nullString(q.Category),
	).Scan(&q.ID)
}
