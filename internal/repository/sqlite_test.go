package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/xiaot623/dailymission/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedDemo(t *testing.T, store *SQLiteStore) {
	t.Helper()
	f, err := DemoSeed()
	if err != nil {
		t.Fatalf("DemoSeed failed: %v", err)
	}
	if _, err := Seed(context.Background(), store, f); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	f, err := DemoSeed()
	if err != nil {
		t.Fatalf("DemoSeed failed: %v", err)
	}
	res, err := Seed(ctx, store, f)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if res.Missions != 10 || res.Questions != 3 {
		t.Fatalf("unexpected seed result: %+v", res)
	}

	f.ValidatedContent.Missions.Observe[0].MissionText = "updated text"
	if _, err := Seed(ctx, store, f); err != nil {
		t.Fatalf("second Seed failed: %v", err)
	}
	n, err := store.CountMissions(ctx)
	if err != nil {
		t.Fatalf("CountMissions failed: %v", err)
	}
	if n != 10 {
		t.Fatalf("expected 10 missions after reseed, got %d", n)
	}

	observe, err := store.ListMissions(ctx, domain.MissionTypeObserve, nil)
	if err != nil {
		t.Fatalf("ListMissions failed: %v", err)
	}
	if observe[0].Key != "obs-001" || observe[0].Text != "updated text" {
		t.Fatalf("upsert did not update mission: %+v", observe[0])
	}
}

func TestSeedRejectsInvalidMissionType(t *testing.T) {
	store := newTestStore(t)
	f := &SeedFile{}
	f.ValidatedContent.Missions.Observe = []SeedMission{{MissionID: "x", MissionType: "wander", MissionText: "t"}}
	if _, err := Seed(context.Background(), store, f); err == nil {
		t.Fatalf("expected error for invalid mission type")
	}
}

func TestListMissionsExcludes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedDemo(t, store)

	all, err := store.ListMissions(ctx, domain.MissionTypeExplore, nil)
	if err != nil {
		t.Fatalf("ListMissions failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 explore missions, got %d", len(all))
	}
	for _, m := range all {
		if m.Type != domain.MissionTypeExplore {
			t.Fatalf("unexpected mission type %s", m.Type)
		}
	}

	rest, err := store.ListMissions(ctx, domain.MissionTypeExplore, []int64{all[0].ID, all[1].ID})
	if err != nil {
		t.Fatalf("ListMissions with exclusions failed: %v", err)
	}
	if len(rest) != 3 {
		t.Fatalf("expected 3 missions, got %d", len(rest))
	}
	for _, m := range rest {
		if m.ID == all[0].ID || m.ID == all[1].ID {
			t.Fatalf("excluded mission %d returned", m.ID)
		}
	}
}

func TestRandomQuestion(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	q, err := store.RandomQuestion(ctx)
	if err != nil || q != nil {
		t.Fatalf("expected nil question on empty catalog, got %+v, %v", q, err)
	}

	seedDemo(t, store)
	q, err = store.RandomQuestion(ctx)
	if err != nil {
		t.Fatalf("RandomQuestion failed: %v", err)
	}
	if q == nil || len(q.Options) == 0 {
		t.Fatalf("unexpected question: %+v", q)
	}
}

func TestAssignmentUniquePerDay(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedDemo(t, store)

	missions, _ := store.ListMissions(ctx, domain.MissionTypeObserve, nil)
	a := &domain.Assignment{ID: "asg_1", UserID: "u1", Mission: missions[0], Date: "2026-03-01"}
	if err := store.InsertAssignment(ctx, a); err != nil {
		t.Fatalf("InsertAssignment failed: %v", err)
	}

	dup := &domain.Assignment{ID: "asg_2", UserID: "u1", Mission: missions[1], Date: "2026-03-01"}
	err := store.InsertAssignment(ctx, dup)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := store.GetAssignment(ctx, "u1", "2026-03-01")
	if err != nil {
		t.Fatalf("GetAssignment failed: %v", err)
	}
	if got == nil || got.ID != "asg_1" || got.Mission.Key != missions[0].Key || got.Completed {
		t.Fatalf("unexpected assignment: %+v", got)
	}

	missing, err := store.GetAssignment(ctx, "u1", "2026-03-02")
	if err != nil || missing != nil {
		t.Fatalf("expected no assignment, got %+v, %v", missing, err)
	}
}

func TestMarkAssignmentCompletedOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedDemo(t, store)

	missions, _ := store.ListMissions(ctx, domain.MissionTypeObserve, nil)
	a := &domain.Assignment{ID: "asg_1", UserID: "u1", Mission: missions[0], Date: "2026-03-01"}
	if err := store.InsertAssignment(ctx, a); err != nil {
		t.Fatalf("InsertAssignment failed: %v", err)
	}

	ok, err := store.MarkAssignmentCompleted(ctx, "asg_1", time.Now())
	if err != nil || !ok {
		t.Fatalf("expected first completion to succeed: %v, %v", ok, err)
	}
	ok, err = store.MarkAssignmentCompleted(ctx, "asg_1", time.Now())
	if err != nil || ok {
		t.Fatalf("expected second completion to be a no-op: %v, %v", ok, err)
	}

	got, _ := store.GetAssignment(ctx, "u1", "2026-03-01")
	if !got.Completed || got.CompletedAt == nil {
		t.Fatalf("assignment not completed: %+v", got)
	}
}

func TestSeenMissionsAndRecentCategories(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedDemo(t, store)

	observe, _ := store.ListMissions(ctx, domain.MissionTypeObserve, nil)
	explore, _ := store.ListMissions(ctx, domain.MissionTypeExplore, nil)
	plan := []struct {
		day     domain.Day
		mission domain.Mission
	}{
		{"2026-03-01", observe[0]}, // nature
		{"2026-03-02", explore[0]}, // routine
		{"2026-03-03", observe[1]}, // senses
		{"2026-03-04", explore[3]}, // connection
	}
	for i, p := range plan {
		a := &domain.Assignment{ID: "asg_" + string(rune('a'+i)), UserID: "u1", Mission: p.mission, Date: p.day}
		if err := store.InsertAssignment(ctx, a); err != nil {
			t.Fatalf("InsertAssignment failed: %v", err)
		}
	}

	seen, err := store.ListSeenMissionIDs(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSeenMissionIDs failed: %v", err)
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 seen missions, got %v", seen)
	}

	cats, err := store.ListRecentCategories(ctx, "u1", 3)
	if err != nil {
		t.Fatalf("ListRecentCategories failed: %v", err)
	}
	want := []string{"connection", "senses", "routine"}
	if len(cats) != len(want) {
		t.Fatalf("expected %v, got %v", want, cats)
	}
	for i := range want {
		if cats[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, cats)
		}
	}

	other, _ := store.ListSeenMissionIDs(ctx, "u2")
	if len(other) != 0 {
		t.Fatalf("expected no seen missions for u2, got %v", other)
	}
}

func TestRecordingReflectionFeedback(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedDemo(t, store)

	missions, _ := store.ListMissions(ctx, domain.MissionTypeObserve, nil)
	a := &domain.Assignment{ID: "asg_1", UserID: "u1", Mission: missions[0], Date: "2026-03-01"}
	if err := store.InsertAssignment(ctx, a); err != nil {
		t.Fatalf("InsertAssignment failed: %v", err)
	}

	empty := &domain.Recording{ID: "rec_empty", UserID: "u1", AssignmentID: "asg_1"}
	if err := store.CreateRecording(ctx, empty); err == nil {
		t.Fatalf("expected recording without photo or text to be rejected")
	}

	rec := &domain.Recording{ID: "rec_1", UserID: "u1", AssignmentID: "asg_1", Text: "하늘이 맑았다"}
	if err := store.CreateRecording(ctx, rec); err != nil {
		t.Fatalf("CreateRecording failed: %v", err)
	}
	gotRec, err := store.GetRecording(ctx, "rec_1")
	if err != nil || gotRec == nil || gotRec.Text != "하늘이 맑았다" || gotRec.PhotoURL != "" {
		t.Fatalf("unexpected recording: %+v, %v", gotRec, err)
	}

	q, _ := store.RandomQuestion(ctx)
	refl := &domain.ReflectionResponse{ID: "rfl_1", UserID: "u1", RecordingID: "rec_1", QuestionID: q.ID, ChosenOption: q.Options[0]}
	if err := store.CreateReflection(ctx, refl); err != nil {
		t.Fatalf("CreateReflection failed: %v", err)
	}
	again := &domain.ReflectionResponse{ID: "rfl_2", UserID: "u1", RecordingID: "rec_1", QuestionID: q.ID, ChosenOption: q.Options[0]}
	if err := store.CreateReflection(ctx, again); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for second reflection, got %v", err)
	}

	fb := &domain.FeedbackResult{ID: "fb_1", UserID: "u1", RecordingID: "rec_1", Empathy: "e", Discovery: "d", Hint: "h", Generator: "mock"}
	if err := store.CreateFeedback(ctx, fb); err != nil {
		t.Fatalf("CreateFeedback failed: %v", err)
	}
	dupFb := &domain.FeedbackResult{ID: "fb_2", UserID: "u1", RecordingID: "rec_1", Empathy: "e", Discovery: "d", Hint: "h"}
	if err := store.CreateFeedback(ctx, dupFb); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for second feedback, got %v", err)
	}

	gotFb, err := store.GetFeedbackByRecording(ctx, "rec_1")
	if err != nil || gotFb == nil || gotFb.ID != "fb_1" || gotFb.Generator != "mock" {
		t.Fatalf("unexpected feedback: %+v, %v", gotFb, err)
	}
	gotRefl, err := store.GetReflectionByRecording(ctx, "rec_1")
	if err != nil || gotRefl == nil || gotRefl.ChosenOption != q.Options[0] {
		t.Fatalf("unexpected reflection: %+v, %v", gotRefl, err)
	}

	entries, err := store.ListRecordings(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListRecordings failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.MissionText != missions[0].Text || e.ChosenOption != q.Options[0] || e.Feedback == nil || e.Feedback.Empathy != "e" || e.Date != "2026-03-01" {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestFlowEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	events := []domain.FlowEvent{
		{EventID: "evt_1", SessionID: "fs_1", UserID: "u1", Ts: 1, Type: domain.FlowEventStart, From: domain.FlowStepIdle, To: domain.FlowStepRecording},
		{EventID: "evt_2", SessionID: "fs_1", UserID: "u1", Ts: 2, Type: domain.FlowEventSubmitCapture, From: domain.FlowStepRecording, To: domain.FlowStepReflection, Payload: []byte(`{"recording_id":"rec_1"}`)},
		{EventID: "evt_3", SessionID: "fs_2", UserID: "u2", Ts: 1, Type: domain.FlowEventStart, From: domain.FlowStepIdle, To: domain.FlowStepRecording},
	}
	for i := range events {
		if err := store.CreateFlowEvent(ctx, &events[i]); err != nil {
			t.Fatalf("CreateFlowEvent failed: %v", err)
		}
	}

	got, err := store.ListFlowEvents(ctx, "fs_1")
	if err != nil {
		t.Fatalf("ListFlowEvents failed: %v", err)
	}
	if len(got) != 2 || got[0].Type != domain.FlowEventStart || got[1].To != domain.FlowStepReflection {
		t.Fatalf("unexpected events: %+v", got)
	}
	if string(got[1].Payload) != `{"recording_id":"rec_1"}` {
		t.Fatalf("unexpected payload: %s", got[1].Payload)
	}
}

func TestWithPragmas(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{":memory:", ":memory:?_foreign_keys=on&_busy_timeout=5000"},
		{"file:app.db?cache=shared", "file:app.db?cache=shared&_foreign_keys=on&_busy_timeout=5000"},
		{"app.db?_busy_timeout=100", "app.db?_busy_timeout=100&_foreign_keys=on"},
		{"app.db?_fk=1&_timeout=1", "app.db?_fk=1&_timeout=1"},
	}
	for _, tt := range tests {
		if got := withPragmas(tt.dsn); got != tt.want {
			t.Errorf("withPragmas(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}

func TestPragmasApplyToEveryConnection(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "missions.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	first, err := store.db.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn failed: %v", err)
	}
	defer first.Close()
	second, err := store.db.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn failed: %v", err)
	}
	defer second.Close()

	for i, conn := range []*sql.Conn{first, second} {
		var fk, timeout int
		if err := conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
			t.Fatalf("conn %d: foreign_keys: %v", i, err)
		}
		if err := conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("conn %d: busy_timeout: %v", i, err)
		}
		if fk != 1 || timeout != 5000 {
			t.Fatalf("conn %d: foreign_keys=%d busy_timeout=%d", i, fk, timeout)
		}
	}
}
