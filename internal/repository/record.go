package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/xiaot623/dailymission/internal/domain"
)

// CreateRecording stores a recording.
func (s *SQLiteStore) CreateRecording(ctx context.Context, r *domain.Recording) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recordings (recording_id, user_id, assignment_id, photo_url, text_content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.AssignmentID, nullString(r.PhotoURL), nullString(r.Text), r.CreatedAt)
	return translate(err)
}

// GetRecording retrieves a recording by ID.
func (s *SQLiteStore) GetRecording(ctx context.Context, recordingID string) (*domain.Recording, error) {
	var r domain.Recording
	var photo, text sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT recording_id, user_id, assignment_id, photo_url, text_content, created_at FROM recordings WHERE recording_id = ?`,
		recordingID).Scan(&r.ID, &r.UserID, &r.AssignmentID, &photo, &text, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.PhotoURL = photo.String
	r.Text = text.String
	return &r, nil
}

// ListRecordings returns the user's recordings, newest first, with the
// mission, chosen reflection option and feedback when present.
func (s *SQLiteStore) ListRecordings(ctx context.Context, userID string, limit int) ([]domain.RecordingEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.recording_id, r.user_id, r.assignment_id, r.photo_url, r.text_content, r.created_at,
			a.assigned_date, m.mission_text, m.mission_type,
			rf.response_text,
			f.feedback_id, f.empathy, f.discovery, f.hint, f.generator, f.created_at
		 FROM recordings r
		 JOIN assignments a ON a.assignment_id = r.assignment_id
		 JOIN missions m ON m.id = a.mission_id
		 LEFT JOIN reflections rf ON rf.recording_id = r.recording_id
		 LEFT JOIN ai_feedbacks f ON f.recording_id = r.recording_id
		 WHERE r.user_id = ?
		 ORDER BY r.created_at DESC
		 LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.RecordingEntry{}
	for rows.Next() {
		var e domain.RecordingEntry
		var photo, text, option sql.NullString
		var fbID, empathy, discovery, hint, generator sql.NullString
		var fbCreated sql.NullTime
		if err := rows.Scan(&e.Recording.ID, &e.Recording.UserID, &e.Recording.AssignmentID, &photo, &text, &e.Recording.CreatedAt,
			&e.Date, &e.MissionText, &e.MissionType,
			&option,
			&fbID, &empathy, &discovery, &hint, &generator, &fbCreated); err != nil {
			return nil, err
		}
		e.Recording.PhotoURL = photo.String
		e.Recording.Text = text.String
		e.ChosenOption = option.String
		if fbID.Valid {
			e.Feedback = &domain.FeedbackResult{
				ID:          fbID.String,
				UserID:      e.Recording.UserID,
				RecordingID: e.Recording.ID,
				Empathy:     empathy.String,
				Discovery:   discovery.String,
				Hint:        hint.String,
				Generator:   generator.String,
				CreatedAt:   fbCreated.Time,
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CreateReflection stores the chosen reflection option for a recording.
func (s *SQLiteStore) CreateReflection(ctx context.Context, r *domain.ReflectionResponse) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reflections (reflection_id, user_id, recording_id, question_id, response_text, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.RecordingID, r.QuestionID, r.ChosenOption, r.CreatedAt)
	return translate(err)
}

// GetReflectionByRecording retrieves the reflection saved for a recording.
func (s *SQLiteStore) GetReflectionByRecording(ctx context.Context, recordingID string) (*domain.ReflectionResponse, error) {
	var r domain.ReflectionResponse
	err := s.db.QueryRowContext(ctx,
		`SELECT reflection_id, user_id, recording_id, question_id, response_text, created_at FROM reflections WHERE recording_id = ?`,
		recordingID).Scan(&r.ID, &r.UserID, &r.RecordingID, &r.QuestionID, &r.ChosenOption, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateFeedback stores generated feedback. At most one per recording.
func (s *SQLiteStore) CreateFeedback(ctx context.Context, f *domain.FeedbackResult) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_feedbacks (feedback_id, user_id, recording_id, empathy, discovery, hint, generator, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.UserID, f.RecordingID, f.Empathy, f.Discovery, f.Hint, f.Generator, f.CreatedAt)
	return translate(err)
}

// GetFeedbackByRecording retrieves the feedback saved for a recording.
func (s *SQLiteStore) GetFeedbackByRecording(ctx context.Context, recordingID string) (*domain.FeedbackResult, error) {
	var f domain.FeedbackResult
	err := s.db.QueryRowContext(ctx,
		`SELECT feedback_id, user_id, recording_id, empathy, discovery, hint, generator, created_at FROM ai_feedbacks WHERE recording_id = ?`,
		recordingID).Scan(&f.ID, &f.UserID, &f.RecordingID, &f.Empathy, &f.Discovery, &f.Hint, &f.Generator, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateFlowEvent appends a flow audit event.
func (s *SQLiteStore) CreateFlowEvent(ctx context.Context, e *domain.FlowEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO flow_events (event_id, session_id, user_id, ts, type, from_step, to_step, payload) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.SessionID, e.UserID, e.Ts, e.Type, e.From, e.To, nullString(string(e.Payload)))
	return err
}

// ListFlowEvents returns a session's events in order.
func (s *SQLiteStore) ListFlowEvents(ctx context.Context, sessionID string) ([]domain.FlowEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, session_id, user_id, ts, type, from_step, to_step, payload FROM flow_events WHERE session_id = ? ORDER BY ts, rowid`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.FlowEvent
	for rows.Next() {
		var e domain.FlowEvent
		var payload sql.NullString
		if err := rows.Scan(&e.EventID, &e.SessionID, &e.UserID, &e.Ts, &e.Type, &e.From, &e.To, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
