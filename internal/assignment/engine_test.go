package assignment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xiaot623/dailymission/internal/domain"
	"github.com/xiaot623/dailymission/internal/repository"
	"github.com/xiaot623/dailymission/tests/helpers"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func firstPick(int) int { return 0 }

func TestAssignFirstDayIsObserve(t *testing.T) {
	store := helpers.NewSeededSQLiteStore(t)
	e := NewEngine(store, DefaultPolicy(), nil)

	a, err := e.Assign(context.Background(), "u1", "2026-03-01")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, domain.MissionTypeObserve, a.Mission.Type)
	assert.Equal(t, "u1", a.UserID)
	assert.Equal(t, domain.Day("2026-03-01"), a.Date)
	assert.False(t, a.Completed)
}

func TestAssignIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewSeededSQLiteStore(t)
	e := NewEngine(store, DefaultPolicy(), nil)

	first, err := e.Assign(ctx, "u1", "2026-03-01")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := e.Assign(ctx, "u1", "2026-03-01")
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
		assert.Equal(t, first.Mission.ID, again.Mission.ID)
	}

	seen, err := store.ListSeenMissionIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, seen, 1)
}

func TestAssignAlternatesAndExhaustsBeforeRecycling(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewSeededSQLiteStore(t)
	e := NewEngine(store, DefaultPolicy(), nil)

	days := []domain.Day{
		"2026-03-01", "2026-03-02", "2026-03-03", "2026-03-04", "2026-03-05",
		"2026-03-06", "2026-03-07", "2026-03-08", "2026-03-09", "2026-03-10",
	}
	seen := map[int64]bool{}
	want := domain.MissionTypeObserve
	for _, d := range days {
		a, err := e.Assign(ctx, "u1", d)
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.Equal(t, want, a.Mission.Type, "day %s", d)
		assert.False(t, seen[a.Mission.ID], "mission %d repeated before exhaustion", a.Mission.ID)
		seen[a.Mission.ID] = true
		want = want.Opposite()
	}
	assert.Len(t, seen, 10)

	// Every observe mission has been used; the pool recycles.
	a, err := e.Assign(ctx, "u1", "2026-03-11")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, domain.MissionTypeObserve, a.Mission.Type)
	assert.True(t, seen[a.Mission.ID])
}

func TestAssignGapResetsToObserve(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewSeededSQLiteStore(t)
	e := NewEngine(store, DefaultPolicy(), nil)

	a, err := e.Assign(ctx, "u1", "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, domain.MissionTypeObserve, a.Mission.Type)

	// Nothing on 03-02, so 03-03 starts over with observe.
	a, err = e.Assign(ctx, "u1", "2026-03-03")
	require.NoError(t, err)
	assert.Equal(t, domain.MissionTypeObserve, a.Mission.Type)
}

func TestAssignNoMissionAvailable(t *testing.T) {
	ctx := context.Background()

	empty := helpers.NewTestSQLiteStore(t)
	a, err := NewEngine(empty, DefaultPolicy(), nil).Assign(ctx, "u1", "2026-03-01")
	assert.NoError(t, err)
	assert.Nil(t, a)

	// Only explore missions exist, but the first day targets observe.
	exploreOnly := helpers.NewTestSQLiteStore(t)
	helpers.AddMissions(t, exploreOnly, domain.Mission{Key: "e1", Type: domain.MissionTypeExplore, Text: "walk", Category: "routine"})
	a, err = NewEngine(exploreOnly, DefaultPolicy(), nil).Assign(ctx, "u1", "2026-03-01")
	assert.NoError(t, err)
	assert.Nil(t, a)
}

func TestAssignPrefersFreshCategory(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	ms := helpers.AddMissions(t, store,
		domain.Mission{Key: "e1", Type: domain.MissionTypeExplore, Text: "explore x", Category: "x"},
		domain.Mission{Key: "o1", Type: domain.MissionTypeObserve, Text: "observe x", Category: "x"},
		domain.Mission{Key: "o2", Type: domain.MissionTypeObserve, Text: "observe y", Category: "y"},
	)
	require.NoError(t, store.InsertAssignment(ctx, &domain.Assignment{ID: "asg_seed", UserID: "u1", Mission: ms[0], Date: "2026-03-01"}))

	// The picker always takes the first candidate; o1 is first by id but shares category x.
	e := NewEngine(store, DefaultPolicy(), nil, WithRand(firstPick))
	a, err := e.Assign(ctx, "u1", "2026-03-02")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "o2", a.Mission.Key)

	// Same setup with diversification disabled picks o1.
	store2 := helpers.NewTestSQLiteStore(t)
	ms2 := helpers.AddMissions(t, store2,
		domain.Mission{Key: "e1", Type: domain.MissionTypeExplore, Text: "explore x", Category: "x"},
		domain.Mission{Key: "o1", Type: domain.MissionTypeObserve, Text: "observe x", Category: "x"},
		domain.Mission{Key: "o2", Type: domain.MissionTypeObserve, Text: "observe y", Category: "y"},
	)
	require.NoError(t, store2.InsertAssignment(ctx, &domain.Assignment{ID: "asg_seed", UserID: "u1", Mission: ms2[0], Date: "2026-03-01"}))
	e2 := NewEngine(store2, Policy{FirstType: domain.MissionTypeObserve, RecentCategoryWindow: 0}, nil, WithRand(firstPick))
	a, err = e2.Assign(ctx, "u1", "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, "o1", a.Mission.Key)
}

func TestAssignFallsBackWhenAllCategoriesRecent(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	ms := helpers.AddMissions(t, store,
		domain.Mission{Key: "e1", Type: domain.MissionTypeExplore, Text: "explore x", Category: "x"},
		domain.Mission{Key: "o1", Type: domain.MissionTypeObserve, Text: "observe x", Category: "x"},
	)
	require.NoError(t, store.InsertAssignment(ctx, &domain.Assignment{ID: "asg_seed", UserID: "u1", Mission: ms[0], Date: "2026-03-01"}))

	a, err := NewEngine(store, DefaultPolicy(), nil).Assign(ctx, "u1", "2026-03-02")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "o1", a.Mission.Key)
}

// racingStore simulates a concurrent writer that inserts between the
// engine's existence check and its own insert.
type racingStore struct {
	*repository.SQLiteStore
	competitor *domain.Assignment
	once       sync.Once
}

func (s *racingStore) GetAssignment(ctx context.Context, userID string, day domain.Day) (*domain.Assignment, error) {
	raced := false
	s.once.Do(func() {
		raced = true
	})
	if raced {
		if err := s.SQLiteStore.InsertAssignment(ctx, s.competitor); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return s.SQLiteStore.GetAssignment(ctx, userID, day)
}

func TestAssignLostRaceReturnsStoredRow(t *testing.T) {
	ctx := context.Background()
	base := helpers.NewSeededSQLiteStore(t)
	observe, err := base.ListMissions(ctx, domain.MissionTypeObserve, nil)
	require.NoError(t, err)

	store := &racingStore{
		SQLiteStore: base,
		competitor:  &domain.Assignment{ID: "asg_winner", UserID: "u1", Mission: observe[4], Date: "2026-03-01"},
	}
	e := NewEngine(store, DefaultPolicy(), nil, WithRand(firstPick))

	a, err := e.Assign(ctx, "u1", "2026-03-01")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "asg_winner", a.ID)
	assert.Equal(t, observe[4].ID, a.Mission.ID)

	seen, err := base.ListSeenMissionIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []int64{observe[4].ID}, seen)
}

func TestAssignConcurrentCallersShareOneRow(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewSeededSQLiteStore(t)
	engines := []*Engine{NewEngine(store, DefaultPolicy(), nil), NewEngine(store, DefaultPolicy(), nil)}

	const callers = 16
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := engines[i%2].Assign(ctx, "u1", "2026-03-01")
			errs[i] = err
			if a != nil {
				ids[i] = a.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	seen, err := store.ListSeenMissionIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, seen, 1)
}

type failingStore struct {
	*repository.SQLiteStore
	err error
}

func (s *failingStore) ListSeenMissionIDs(context.Context, string) ([]int64, error) {
	return nil, s.err
}

func TestAssignWrapsStoreErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	store := &failingStore{SQLiteStore: helpers.NewSeededSQLiteStore(t), err: boom}
	e := NewEngine(store, DefaultPolicy(), nil)

	a, err := e.Assign(context.Background(), "u1", "2026-03-01")
	assert.Nil(t, a)
	var ae *domain.AssignmentError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "list_seen", ae.Op)
	assert.ErrorIs(t, err, boom)
}

func TestAssignRejectsInvalidDay(t *testing.T) {
	e := NewEngine(helpers.NewSeededSQLiteStore(t), DefaultPolicy(), nil)
	_, err := e.Assign(context.Background(), "u1", "03/01/2026")
	var ae *domain.AssignmentError
	assert.ErrorAs(t, err, &ae)
}

// gatedStore holds GetAssignment until release is closed.
type gatedStore struct {
	*repository.SQLiteStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedStore) GetAssignment(ctx context.Context, userID string, day domain.Day) (*domain.Assignment, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.SQLiteStore.GetAssignment(ctx, userID, day)
}

func TestAssignCancelledCallerDoesNotFailOthers(t *testing.T) {
	store := &gatedStore{
		SQLiteStore: helpers.NewSeededSQLiteStore(t),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	e := NewEngine(store, DefaultPolicy(), nil)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := e.Assign(firstCtx, "u1", "2026-03-01")
		firstErr <- err
	}()
	<-store.entered

	type result struct {
		a   *domain.Assignment
		err error
	}
	second := make(chan result, 1)
	go func() {
		a, err := e.Assign(context.Background(), "u1", "2026-03-01")
		second <- result{a, err}
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(store.release)
	got := <-second
	require.NoError(t, got.err)
	require.NotNil(t, got.a)
	assert.Equal(t, "2026-03-01", string(got.a.Date))
}
