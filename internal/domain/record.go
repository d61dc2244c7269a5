package domain

import (
	"encoding/json"
	"time"
)

// Recording is the user's capture for an assignment.
type Recording struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	AssignmentID string    `json:"assignment_id"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	Text         string    `json:"text,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReflectionResponse is the option the user chose for a question.
type ReflectionResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	RecordingID  string    `json:"recording_id"`
	QuestionID   int64     `json:"question_id"`
	ChosenOption string    `json:"chosen_option"`
	CreatedAt    time.Time `json:"created_at"`
}

// FeedbackResult is the generated three-part feedback for a recording.
type FeedbackResult struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	RecordingID string    `json:"recording_id"`
	Empathy     string    `json:"empathy"`
	Discovery   string    `json:"discovery"`
	Hint        string    `json:"hint"`
	Generator   string    `json:"generator"`
	CreatedAt   time.Time `json:"created_at"`
}

// Helpline is a crisis hotline entry.
type Helpline struct {
	Name   string `json:"name" yaml:"name"`
	Number string `json:"number" yaml:"number"`
}

// CrisisResult is the classifier verdict for a piece of text.
type CrisisResult struct {
	Detected       bool         `json:"crisis_detected"`
	Level          CrisisLevel  `json:"level"`
	Action         CrisisAction `json:"action"`
	MatchedKeyword string       `json:"matched_keyword,omitempty"`
	Helplines      []Helpline   `json:"helplines,omitempty"`
}

// FeedbackOutcome is what the feedback orchestrator hands back to the flow.
// Feedback is nil when Crisis is critical.
type FeedbackOutcome struct {
	Crisis   CrisisResult    `json:"crisis"`
	Feedback *FeedbackResult `json:"feedback,omitempty"`
}

// RecordingEntry is one row of a user's recording history.
type RecordingEntry struct {
	Recording    Recording       `json:"recording"`
	Date         Day             `json:"date"`
	MissionText  string          `json:"mission_text"`
	MissionType  MissionType     `json:"mission_type"`
	ChosenOption string          `json:"chosen_option,omitempty"`
	Feedback     *FeedbackResult `json:"feedback,omitempty"`
}

// FlowEvent is an audit record of an accepted flow transition.
type FlowEvent struct {
	EventID   string          `json:"event_id"`
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id"`
	Ts        int64           `json:"ts"`
	Type      FlowEventType   `json:"type"`
	From      FlowStep        `json:"from"`
	To        FlowStep        `json:"to"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
