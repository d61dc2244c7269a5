package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/xiaot623/dailymission/internal/domain"
	"github.com/xiaot623/dailymission/internal/repository"
)

func NewTestSQLiteStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()

	s, err := repository.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

// NewSeededSQLiteStore returns an in-memory store loaded with the demo catalog.
func NewSeededSQLiteStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()

	s := NewTestSQLiteStore(t)
	f, err := repository.DemoSeed()
	if err != nil {
		t.Fatalf("failed to load demo seed: %v", err)
	}
	if _, err := repository.Seed(context.Background(), s, f); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}
	return s
}

// AddMissions upserts missions into the catalog and returns them with IDs.
func AddMissions(t *testing.T, s *repository.SQLiteStore, missions ...domain.Mission) []domain.Mission {
	t.Helper()

	out := make([]domain.Mission, 0, len(missions))
	for i := range missions {
		m := missions[i]
		if err := s.UpsertMission(context.Background(), &m); err != nil {
			t.Fatalf("failed to add mission %s: %v", m.Key, err)
		}
		out = append(out, m)
	}
	return out
}

// AddRecording stores an assignment for mission on day and a text recording
// for it.
func AddRecording(t *testing.T, s *repository.SQLiteStore, userID string, mission domain.Mission, day domain.Day, text string) *domain.Recording {
	t.Helper()

	ctx := context.Background()
	a := &domain.Assignment{
		ID:        "asg_" + userID + "_" + string(day),
		UserID:    userID,
		Mission:   mission,
		Date:      day,
		CreatedAt: time.Now(),
	}
	if err := s.InsertAssignment(ctx, a); err != nil {
		t.Fatalf("failed to insert assignment: %v", err)
	}
	r := &domain.Recording{
		ID:           "rec_" + userID + "_" + string(day),
		UserID:       userID,
		AssignmentID: a.ID,
		Text:         text,
		CreatedAt:    time.Now(),
	}
	if err := s.CreateRecording(ctx, r); err != nil {
		t.Fatalf("failed to create recording: %v", err)
	}
	return r
}
