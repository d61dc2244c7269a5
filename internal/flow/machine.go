package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/xiaot623/dailymission/internal/domain"
	"github.com/xiaot623/dailymission/internal/logger"
	"github.com/xiaot623/dailymission/internal/repository"
)

// Session is one user's pass through the record flow. All methods are safe
// for concurrent use.
type Session struct {
	deps *Deps
	log  *logger.Logger

	mu         sync.Mutex
	id         string
	userID     string
	step       domain.FlowStep
	loading    bool
	assignment *domain.Assignment
	recording  *domain.Recording
	question   *domain.Question
	reflection *domain.ReflectionResponse
	crisis     *domain.CrisisResult
	feedback   *domain.FeedbackResult

	draft    domain.Capture
	hasDraft bool
	photoURL string
}

// NewSession starts an idle session for userID.
func NewSession(deps *Deps, userID string) *Session {
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	id := "fs_" + uuid.New().String()
	return &Session{
		deps:   deps,
		log:    log.With("component", "RecordFlow", "session_id", id, "user_id", userID),
		id:     id,
		userID: userID,
		step:   domain.FlowStepIdle,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Step returns the current step.
func (s *Session) Step() domain.FlowStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Enter refreshes the assignment for day while idle. Other steps are left
// untouched.
func (s *Session) Enter(ctx context.Context, day domain.Day) (*domain.FlowSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step != domain.FlowStepIdle {
		return s.snapshot(), nil
	}
	if err := s.assign(ctx, day); err != nil {
		return s.snapshot(), err
	}
	return s.snapshot(), nil
}

// Start moves idle to recording when the assignment for day is open. An
// assignment cached for an earlier day is replaced first.
func (s *Session) Start(ctx context.Context, day domain.Day) (*domain.FlowSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step == domain.FlowStepIdle && (s.assignment == nil || s.assignment.Date != day) {
		if err := s.assign(ctx, day); err != nil {
			return s.snapshot(), err
		}
	}

	t := domain.Transition{
		From:                s.step,
		Event:               domain.FlowEventStart,
		AssignmentPresent:   s.assignment != nil,
		AssignmentCompleted: s.assignment != nil && s.assignment.Completed,
	}
	if err := s.check(ctx, t); err != nil {
		return s.snapshot(), err
	}
	s.advance(ctx, domain.FlowEventStart, domain.FlowStepRecording, map[string]interface{}{
		"assignment_id": s.assignment.ID,
		"date":          s.assignment.Date,
	})
	return s.snapshot(), nil
}

// assign loads the assignment for day. Callers hold s.mu.
func (s *Session) assign(ctx context.Context, day domain.Day) error {
	a, err := s.deps.Assigner.Assign(ctx, s.userID, day)
	if err != nil {
		return err
	}
	s.assignment = a
	payload := map[string]interface{}{"date": day, "has_assignment": a != nil}
	if a != nil {
		payload["assignment_id"] = a.ID
	}
	s.recordEvent(ctx, domain.FlowEventEnter, domain.FlowStepIdle, domain.FlowStepIdle, payload)
	return nil
}

// SubmitCapture uploads the photo, saves the recording, completes the
// assignment and moves to reflection. On failure the capture is kept as a
// draft; an empty resubmission reuses it.
func (s *Session) SubmitCapture(ctx context.Context, c domain.Capture) (*domain.FlowSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.Text = normalizeText(c.Text)
	if !c.HasContent() && s.hasDraft {
		c = s.draft
	}

	t := domain.Transition{From: s.step, Event: domain.FlowEventSubmitCapture, CapturePresent: c.HasContent()}
	if s.step == domain.FlowStepRecording && !t.CapturePresent {
		return s.snapshot(), &domain.CaptureValidationError{Reason: "photo or text is required"}
	}
	if len(c.Photo) > 0 && c.PhotoContentType != "" && !strings.HasPrefix(c.PhotoContentType, "image/") {
		return s.snapshot(), &domain.CaptureValidationError{Reason: "photo must be an image"}
	}
	if err := s.check(ctx, t); err != nil {
		return s.snapshot(), err
	}

	s.keepDraft(c)

	if s.recording == nil {
		if len(c.Photo) > 0 && s.photoURL == "" {
			url, err := s.deps.Uploader.Upload(ctx, s.userID, bytes.NewReader(c.Photo), c.PhotoContentType)
			if err != nil {
				s.log.Warn("photo upload failed", "error", err)
				return s.snapshot(), &domain.UploadError{Err: err}
			}
			s.photoURL = url
		}

		rec := &domain.Recording{
			ID:           "rec_" + uuid.New().String(),
			UserID:       s.userID,
			AssignmentID: s.assignment.ID,
			PhotoURL:     s.photoURL,
			Text:         c.Text,
			CreatedAt:    s.deps.now(),
		}
		if err := s.deps.Store.CreateRecording(ctx, rec); err != nil {
			s.log.Error("failed to save recording", "error", err)
			return s.snapshot(), &domain.PersistError{What: "recording", Err: err}
		}
		s.recording = rec
	}

	if !s.assignment.Completed {
		at := s.deps.now()
		if _, err := s.deps.Store.MarkAssignmentCompleted(ctx, s.assignment.ID, at); err != nil {
			s.log.Error("failed to complete assignment", "assignment_id", s.assignment.ID, "error", err)
			return s.snapshot(), &domain.PersistError{What: "assignment", Err: err}
		}
		s.assignment.Completed = true
		s.assignment.CompletedAt = &at
	}

	s.clearDraft()
	s.advance(ctx, domain.FlowEventSubmitCapture, domain.FlowStepReflection, map[string]interface{}{
		"recording_id": s.recording.ID,
		"has_photo":    s.recording.PhotoURL != "",
		"text_len":     utf8.RuneCountInString(s.recording.Text),
	})

	if err := s.loadQuestion(ctx); err != nil {
		s.log.Warn("question not loaded", "error", err)
	}
	return s.snapshot(), nil
}

// LoadQuestion fetches a reflection question if none is loaded yet.
func (s *Session) LoadQuestion(ctx context.Context) (*domain.FlowSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step != domain.FlowStepReflection {
		return s.snapshot(), &domain.TransitionError{From: s.step, Event: domain.FlowEventSubmitReflection, Reason: "not in reflection"}
	}
	if err := s.loadQuestion(ctx); err != nil {
		return s.snapshot(), err
	}
	return s.snapshot(), nil
}

func (s *Session) loadQuestion(ctx context.Context) error {
	if s.question != nil {
		return nil
	}
	q, err := s.deps.Store.RandomQuestion(ctx)
	if err != nil {
		return &domain.PersistError{What: "question", Err: err}
	}
	if q == nil {
		return ErrQuestionUnavailable
	}
	s.question = q
	return nil
}

// SubmitReflection saves the chosen option and requests feedback. The
// session lock is released while the generator runs.
func (s *Session) SubmitReflection(ctx context.Context, option string) (*domain.FlowSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	option = strings.TrimSpace(option)
	if s.step == domain.FlowStepReflection && s.question != nil && option != "" && !s.question.HasOption(option) {
		return s.snapshot(), &domain.CaptureValidationError{Reason: "option is not one of the question's choices"}
	}
	t := domain.Transition{
		From:           s.step,
		Event:          domain.FlowEventSubmitReflection,
		RecordingSaved: s.recording != nil,
		QuestionLoaded: s.question != nil,
		OptionSelected: option != "",
	}
	if err := s.check(ctx, t); err != nil {
		return s.snapshot(), err
	}

	if s.reflection == nil {
		r := &domain.ReflectionResponse{
			ID:           "rfl_" + uuid.New().String(),
			UserID:       s.userID,
			RecordingID:  s.recording.ID,
			QuestionID:   s.question.ID,
			ChosenOption: option,
			CreatedAt:    s.deps.now(),
		}
		if err := s.deps.Store.CreateReflection(ctx, r); err != nil && !errors.Is(err, repository.ErrDuplicate) {
			s.log.Error("failed to save reflection", "error", err)
			return s.snapshot(), &domain.PersistError{What: "reflection", Err: err}
		}
		s.reflection = r
	}

	s.advance(ctx, domain.FlowEventSubmitReflection, domain.FlowStepFeedback, map[string]interface{}{
		"reflection_id": s.reflection.ID,
		"question_id":   s.question.ID,
	})
	return s.requestFeedback(ctx)
}

// RetryFeedback reruns the generator after a failure.
func (s *Session) RetryFeedback(ctx context.Context) (*domain.FlowSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := domain.Transition{
		From:            s.step,
		Event:           domain.FlowEventRetryFeedback,
		FeedbackLoading: s.loading,
		FeedbackPresent: s.feedback != nil,
	}
	if err := s.check(ctx, t); err != nil {
		return s.snapshot(), err
	}
	s.recordEvent(ctx, domain.FlowEventRetryFeedback, s.step, s.step, nil)
	return s.requestFeedback(ctx)
}

// requestFeedback must be called with s.mu held. It drops the lock around
// the orchestrator call and holds it again on return.
func (s *Session) requestFeedback(ctx context.Context) (*domain.FlowSnapshot, error) {
	rec := *s.recording
	mission := s.assignment.Mission
	s.loading = true
	s.mu.Unlock()

	outcome, err := s.deps.Feedback.RequestFeedback(ctx, &rec, mission)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		return s.snapshot(), err
	}

	crisis := outcome.Crisis
	s.crisis = &crisis
	if crisis.Level == domain.CrisisLevelCritical {
		if err := s.check(ctx, domain.Transition{From: s.step, Event: domain.FlowEventCrisisDetected}); err != nil {
			return s.snapshot(), err
		}
		s.advance(ctx, domain.FlowEventCrisisDetected, domain.FlowStepCrisis, map[string]interface{}{
			"level": int(crisis.Level),
		})
		return s.snapshot(), nil
	}

	if outcome.Feedback == nil {
		return s.snapshot(), &domain.FeedbackError{Err: errors.New("no feedback returned")}
	}
	if err := s.check(ctx, domain.Transition{From: s.step, Event: domain.FlowEventFeedbackReady}); err != nil {
		return s.snapshot(), err
	}
	s.feedback = outcome.Feedback
	s.advance(ctx, domain.FlowEventFeedbackReady, domain.FlowStepFeedback, map[string]interface{}{
		"level":       int(crisis.Level),
		"feedback_id": s.feedback.ID,
	})
	return s.snapshot(), nil
}

// Acknowledge finishes the flow from feedback or crisis.
func (s *Session) Acknowledge(ctx context.Context) (*domain.FlowSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := domain.Transition{
		From:            s.step,
		Event:           domain.FlowEventAcknowledge,
		FeedbackLoading: s.loading,
		FeedbackPresent: s.feedback != nil,
	}
	if err := s.check(ctx, t); err != nil {
		return s.snapshot(), err
	}
	s.advance(ctx, domain.FlowEventAcknowledge, domain.FlowStepDone, nil)
	return s.snapshot(), nil
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() *domain.FlowSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() *domain.FlowSnapshot {
	snap := &domain.FlowSnapshot{
		SessionID:     s.id,
		UserID:        s.userID,
		Step:          s.step,
		Loading:       s.loading,
		DraftText:     s.draft.Text,
		HasDraftPhoto: s.hasDraft && len(s.draft.Photo) > 0,
	}
	if s.assignment != nil {
		a := *s.assignment
		snap.Assignment = &a
	}
	if s.recording != nil {
		r := *s.recording
		snap.Recording = &r
	}
	if s.question != nil {
		q := *s.question
		q.Options = append([]string(nil), s.question.Options...)
		snap.Question = &q
	}
	if s.reflection != nil {
		r := *s.reflection
		snap.Reflection = &r
	}
	if s.crisis != nil {
		c := *s.crisis
		c.Helplines = append([]domain.Helpline(nil), s.crisis.Helplines...)
		snap.Crisis = &c
	}
	if s.feedback != nil {
		f := *s.feedback
		snap.Feedback = &f
	}
	return snap
}

// check asks the guard about t and converts a refusal into a TransitionError.
func (s *Session) check(ctx context.Context, t domain.Transition) error {
	ok, reason, err := s.deps.Guard.Allow(ctx, t)
	if err != nil {
		s.log.Error("flow policy evaluation failed", "event", t.Event, "error", err)
		return &domain.TransitionError{From: t.From, Event: t.Event, Reason: "policy unavailable"}
	}
	if !ok {
		return &domain.TransitionError{From: t.From, Event: t.Event, Reason: reason}
	}
	return nil
}

func (s *Session) advance(ctx context.Context, ev domain.FlowEventType, to domain.FlowStep, payload map[string]interface{}) {
	from := s.step
	s.step = to
	s.log.Info("flow transition", "event", ev, "from", from, "to", to)
	s.recordEvent(ctx, ev, from, to, payload)
}

// recordEvent appends to the audit trail. Failures are logged only.
func (s *Session) recordEvent(ctx context.Context, ev domain.FlowEventType, from, to domain.FlowStep, payload map[string]interface{}) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			s.log.Warn("failed to marshal flow event payload", "event", ev, "error", err)
		} else {
			raw = b
		}
	}
	e := &domain.FlowEvent{
		EventID:   "evt_" + uuid.New().String(),
		SessionID: s.id,
		UserID:    s.userID,
		Ts:        s.deps.now().UnixMilli(),
		Type:      ev,
		From:      from,
		To:        to,
		Payload:   raw,
	}
	if err := s.deps.Store.CreateFlowEvent(ctx, e); err != nil {
		s.log.Warn("failed to record flow event", "event", ev, "error", err)
	}
}

func (s *Session) keepDraft(c domain.Capture) {
	if !bytes.Equal(c.Photo, s.draft.Photo) {
		s.photoURL = ""
	}
	s.draft = domain.Capture{
		Photo:            append([]byte(nil), c.Photo...),
		PhotoContentType: c.PhotoContentType,
		Text:             c.Text,
	}
	s.hasDraft = true
}

func (s *Session) clearDraft() {
	s.draft = domain.Capture{}
	s.hasDraft = false
	s.photoURL = ""
}

// normalizeText trims and caps recording text at MaxTextRunes.
func normalizeText(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= MaxTextRunes {
		return text
	}
	return strings.TrimSpace(string([]rune(text)[:MaxTextRunes]))
}
