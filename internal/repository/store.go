// Package repository provides persistence for the mission catalog, daily
// assignments and record-flow artifacts.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/xiaot623/dailymission/internal/domain"
)

// ErrDuplicate is returned when an insert hits a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

// Catalog is the read side of missions and questions.
type Catalog interface {
	GetMission(ctx context.Context, missionID int64) (*domain.Mission, error)
	ListMissions(ctx context.Context, missionType domain.MissionType, excludeIDs []int64) ([]domain.Mission, error)
	CountMissions(ctx context.Context) (int, error)
	RandomQuestion(ctx context.Context) (*domain.Question, error)
	UpsertMission(ctx context.Context, mission *domain.Mission) error
	UpsertQuestion(ctx context.Context, question *domain.Question) error
}

// AssignmentStore persists daily assignments.
type AssignmentStore interface {
	GetAssignment(ctx context.Context, userID string, day domain.Day) (*domain.Assignment, error)
	InsertAssignment(ctx context.Context, assignment *domain.Assignment) error
	MarkAssignmentCompleted(ctx context.Context, assignmentID string, at time.Time) (bool, error)
	ListSeenMissionIDs(ctx context.Context, userID string) ([]int64, error)
	ListRecentCategories(ctx context.Context, userID string, limit int) ([]string, error)
}

// RecordStore persists recordings, reflections, feedback and flow events.
type RecordStore interface {
	CreateRecording(ctx context.Context, recording *domain.Recording) error
	GetRecording(ctx context.Context, recordingID string) (*domain.Recording, error)
	ListRecordings(ctx context.Context, userID string, limit int) ([]domain.RecordingEntry, error)
	CreateReflection(ctx context.Context, reflection *domain.ReflectionResponse) error
	GetReflectionByRecording(ctx context.Context, recordingID string) (*domain.ReflectionResponse, error)
	CreateFeedback(ctx context.Context, feedback *domain.FeedbackResult) error
	GetFeedbackByRecording(ctx context.Context, recordingID string) (*domain.FeedbackResult, error)
	CreateFlowEvent(ctx context.Context, event *domain.FlowEvent) error
	ListFlowEvents(ctx context.Context, sessionID string) ([]domain.FlowEvent, error)
}

// Store is everything the service needs from persistence.
type Store interface {
	Catalog
	AssignmentStore
	RecordStore
	Close() error
}

// Ensure SQLiteStore implements Store interface.
var _ Store = (*SQLiteStore)(nil)
