// Package assignment picks each user's daily mission.
package assignment

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/xiaot623/dailymission/internal/domain"
	"github.com/xiaot623/dailymission/internal/logger"
	"github.com/xiaot623/dailymission/internal/repository"
)

// Store is the persistence the engine needs.
type Store interface {
	GetAssignment(ctx context.Context, userID string, day domain.Day) (*domain.Assignment, error)
	InsertAssignment(ctx context.Context, assignment *domain.Assignment) error
	ListSeenMissionIDs(ctx context.Context, userID string) ([]int64, error)
	ListRecentCategories(ctx context.Context, userID string, limit int) ([]string, error)
	ListMissions(ctx context.Context, missionType domain.MissionType, excludeIDs []int64) ([]domain.Mission, error)
}

// Policy holds the literal selection parameters.
type Policy struct {
	// FirstType is assigned when the user had no mission yesterday.
	FirstType domain.MissionType
	// RecentCategoryWindow is how many recent assignments count for
	// category diversification. Zero disables it.
	RecentCategoryWindow int
}

// DefaultPolicy starts with observe and avoids the last three categories.
func DefaultPolicy() Policy {
	return Policy{FirstType: domain.MissionTypeObserve, RecentCategoryWindow: 3}
}

// Engine assigns one mission per user per day.
type Engine struct {
	store  Store
	policy Policy
	log    *logger.Logger
	group  singleflight.Group

	intn  func(n int) int
	now   func() time.Time
	newID func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithRand replaces the uniform picker. intn must return a value in [0, n).
func WithRand(intn func(n int) int) Option {
	return func(e *Engine) { e.intn = intn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an assignment engine.
func NewEngine(store Store, policy Policy, log *logger.Logger, opts ...Option) *Engine {
	if !policy.FirstType.Valid() {
		policy.FirstType = domain.MissionTypeObserve
	}
	if policy.RecentCategoryWindow < 0 {
		policy.RecentCategoryWindow = 0
	}
	if log == nil {
		log = logger.NewNop()
	}
	e := &Engine{
		store:  store,
		policy: policy,
		log:    log.With("component", "AssignmentEngine"),
		intn:   rand.IntN,
		now:    time.Now,
		newID:  func() string { return "asg_" + uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Assign returns the user's assignment for day, creating it if needed.
// A nil assignment with a nil error means no mission of the target type exists.
func (e *Engine) Assign(ctx context.Context, userID string, day domain.Day) (*domain.Assignment, error) {
	if _, err := domain.ParseDay(string(day)); err != nil {
		return nil, &domain.AssignmentError{Op: "validate", Err: err}
	}
	// Joined callers share one run, so it must not inherit any one caller's
	// cancellation. Each caller still stops waiting on its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := e.group.DoChan(userID+"|"+string(day), func() (interface{}, error) {
		return e.assign(shared, userID, day)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	a, _ := res.Val.(*domain.Assignment)
	if a == nil {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (e *Engine) assign(ctx context.Context, userID string, day domain.Day) (*domain.Assignment, error) {
	existing, err := e.store.GetAssignment(ctx, userID, day)
	if err != nil {
		return nil, &domain.AssignmentError{Op: "get", Err: err}
	}
	if existing != nil {
		return existing, nil
	}

	targetType, err := e.targetType(ctx, userID, day)
	if err != nil {
		return nil, err
	}

	pool, err := e.candidates(ctx, userID, targetType)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		e.log.Warn("no mission available", "user_id", userID, "date", day, "mission_type", targetType)
		return nil, nil
	}

	pool, err = e.diversify(ctx, userID, pool)
	if err != nil {
		return nil, err
	}

	a := &domain.Assignment{
		ID:        e.newID(),
		UserID:    userID,
		Mission:   pool[e.intn(len(pool))],
		Date:      day,
		CreatedAt: e.now(),
	}
	if err := e.store.InsertAssignment(ctx, a); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, &domain.AssignmentError{Op: "insert", Err: err}
		}
		// Another writer assigned first; theirs wins.
		winner, getErr := e.store.GetAssignment(ctx, userID, day)
		if getErr != nil {
			return nil, &domain.AssignmentError{Op: "reread", Err: getErr}
		}
		if winner == nil {
			return nil, &domain.AssignmentError{Op: "reread", Err: err}
		}
		e.log.Info("assignment race lost, returning stored row", "user_id", userID, "date", day)
		return winner, nil
	}

	e.log.Info("mission assigned",
		"user_id", userID,
		"date", day,
		"mission_id", a.Mission.ID,
		"mission_type", a.Mission.Type,
		"category", a.Mission.Category,
	)
	return a, nil
}

// targetType alternates on yesterday's mission type.
func (e *Engine) targetType(ctx context.Context, userID string, day domain.Day) (domain.MissionType, error) {
	prev, err := day.Prev()
	if err != nil {
		return "", &domain.AssignmentError{Op: "validate", Err: err}
	}
	yesterday, err := e.store.GetAssignment(ctx, userID, prev)
	if err != nil {
		return "", &domain.AssignmentError{Op: "get_previous", Err: err}
	}
	if yesterday == nil {
		return e.policy.FirstType, nil
	}
	return yesterday.Mission.Type.Opposite(), nil
}

// candidates returns unseen missions of the type, or every mission of the
// type once the user has seen them all.
func (e *Engine) candidates(ctx context.Context, userID string, t domain.MissionType) ([]domain.Mission, error) {
	seen, err := e.store.ListSeenMissionIDs(ctx, userID)
	if err != nil {
		return nil, &domain.AssignmentError{Op: "list_seen", Err: err}
	}
	pool, err := e.store.ListMissions(ctx, t, seen)
	if err != nil {
		return nil, &domain.AssignmentError{Op: "list_missions", Err: err}
	}
	if len(pool) > 0 {
		return pool, nil
	}
	pool, err = e.store.ListMissions(ctx, t, nil)
	if err != nil {
		return nil, &domain.AssignmentError{Op: "list_missions", Err: err}
	}
	if len(pool) > 0 {
		e.log.Debug("mission pool exhausted, recycling", "user_id", userID, "mission_type", t)
	}
	return pool, nil
}

// diversify prefers missions outside the recent categories and falls back to
// the whole pool when every candidate shares one.
func (e *Engine) diversify(ctx context.Context, userID string, pool []domain.Mission) ([]domain.Mission, error) {
	if e.policy.RecentCategoryWindow == 0 {
		return pool, nil
	}
	recent, err := e.store.ListRecentCategories(ctx, userID, e.policy.RecentCategoryWindow)
	if err != nil {
		return nil, &domain.AssignmentError{Op: "list_recent_categories", Err: err}
	}
	if len(recent) == 0 {
		return pool, nil
	}
	avoid := make(map[string]struct{}, len(recent))
	for _, c := range recent {
		avoid[c] = struct{}{}
	}
	preferred := make([]domain.Mission, 0, len(pool))
	for _, m := range pool {
		if _, ok := avoid[m.Category]; !ok {
			preferred = append(preferred, m)
		}
	}
	if len(preferred) == 0 {
		return pool, nil
	}
	return preferred, nil
}
