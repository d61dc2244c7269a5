// Package service composes the assignment engine, classifier and record flow
// behind one façade and keeps each user's open flow session.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xiaot623/dailymission/internal/domain"
	"github.com/xiaot623/dailymission/internal/flow"
	"github.com/xiaot623/dailymission/internal/logger"
	"github.com/xiaot623/dailymission/internal/repository"
)

// Assigner resolves a user's daily assignment.
type Assigner interface {
	Assign(ctx context.Context, userID string, day domain.Day) (*domain.Assignment, error)
}

// Classifier rates free text.
type Classifier interface {
	Classify(text string) domain.CrisisResult
}

// Service is the application façade used by the transports.
type Service struct {
	store      repository.Store
	assigner   Assigner
	classifier Classifier
	flowDeps   *flow.Deps
	loc        *time.Location
	log        *logger.Logger
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*flow.Session
}

// New creates a Service. loc defines the civil day used for "today".
func New(store repository.Store, assigner Assigner, classifier Classifier, flowDeps *flow.Deps, loc *time.Location, log *logger.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		store:      store,
		assigner:   assigner,
		classifier: classifier,
		flowDeps:   flowDeps,
		loc:        loc,
		log:        log.With("component", "Service"),
		now:        time.Now,
		sessions:   make(map[string]*flow.Session),
	}
}

// Today returns the current civil day in the service timezone.
func (s *Service) Today() domain.Day {
	return domain.DayOf(s.now().In(s.loc))
}

// Health checks that the store answers.
func (s *Service) Health(ctx context.Context) error {
	if _, err := s.store.CountMissions(ctx); err != nil {
		return fmt.Errorf("store unavailable: %w", err)
	}
	return nil
}

// TodayAssignment returns the user's assignment for today, assigning one if
// needed. Nil means the catalog has no mission to give.
func (s *Service) TodayAssignment(ctx context.Context, userID string) (*domain.Assignment, error) {
	return s.assigner.Assign(ctx, userID, s.Today())
}

// Classify runs the crisis classifier on text.
func (s *Service) Classify(text string) domain.CrisisResult {
	return s.classifier.Classify(text)
}

// ListRecordings returns the user's recording history, newest first.
func (s *Service) ListRecordings(ctx context.Context, userID string, limit int) ([]domain.RecordingEntry, error) {
	entries, err := s.store.ListRecordings(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	return entries, nil
}
