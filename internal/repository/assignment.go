package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/xiaot623/dailymission/internal/domain"
)

// GetAssignment retrieves the user's assignment for a day, with its mission.
func (s *SQLiteStore) GetAssignment(ctx context.Context, userID string, day domain.Day) (*domain.Assignment, error) {
	var a domain.Assignment
	var completedAt sql.NullTime
	var doi, title, safety sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT a.assignment_id, a.user_id, a.assigned_date, a.completed, a.completed_at, a.created_at,
			m.id, m.mission_key, m.mission_type, m.mission_text, m.meaning_text, m.category, m.source_doi, m.source_title, m.safety_level
		 FROM assignments a
		 JOIN missions m ON m.id = a.mission_id
		 WHERE a.user_id = ? AND a.assigned_date = ?`,
		userID, string(day)).Scan(&a.ID, &a.UserID, &a.Date, &a.Completed, &completedAt, &a.CreatedAt,
		&a.Mission.ID, &a.Mission.Key, &a.Mission.Type, &a.Mission.Text, &a.Mission.MeaningText, &a.Mission.Category, &doi, &title, &safety)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	a.Mission.SourceDOI = doi.String
	a.Mission.SourceTitle = title.String
	a.Mission.SafetyLevel = safety.String
	return &a, nil
}

// InsertAssignment stores a new assignment. A second assignment for the same
// (user, day) fails with ErrDuplicate.
func (s *SQLiteStore) InsertAssignment(ctx context.Context, a *domain.Assignment) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assignments (assignment_id, user_id, mission_id, assigned_date, completed, completed_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Mission.ID, string(a.Date), a.Completed, a.CompletedAt, a.CreatedAt)
	return translate(err)
}

// MarkAssignmentCompleted sets the completion flag once.
func (s *SQLiteStore) MarkAssignmentCompleted(ctx context.Context, assignmentID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assignments SET completed = 1, completed_at = ? WHERE assignment_id = ? AND completed = 0`,
		at, assignmentID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListSeenMissionIDs returns every mission ever assigned to the user.
func (s *SQLiteStore) ListSeenMissionIDs(ctx context.Context, userID string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT mission_id FROM assignments WHERE user_id = ? ORDER BY mission_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListRecentCategories returns the mission categories of the user's most
// recent assignments, newest first.
func (s *SQLiteStore) ListRecentCategories(ctx context.Context, userID string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.category
		 FROM assignments a
		 JOIN missions m ON m.id = a.mission_id
		 WHERE a.user_id = ?
		 ORDER BY a.assigned_date DESC
		 LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
