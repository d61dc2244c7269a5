// Package feedback gates feedback generation behind the crisis classifier.
package feedback

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/xiaot623/dailymission/internal/adapter/generator"
	"github.com/xiaot623/dailymission/internal/domain"
	"github.com/xiaot623/dailymission/internal/logger"
	"github.com/xiaot623/dailymission/internal/repository"
)

// Classifier rates recording text.
type Classifier interface {
	Classify(text string) domain.CrisisResult
}

// Store persists feedback results.
type Store interface {
	CreateFeedback(ctx context.Context, feedback *domain.FeedbackResult) error
	GetFeedbackByRecording(ctx context.Context, recordingID string) (*domain.FeedbackResult, error)
}

// Orchestrator runs the classifier and, unless the text is critical, the
// generator.
type Orchestrator struct {
	classifier Classifier
	generator  generator.Generator
	store      Store
	log        *logger.Logger

	now   func() time.Time
	newID func() string
}

// NewOrchestrator creates a feedback orchestrator.
func NewOrchestrator(classifier Classifier, gen generator.Generator, store Store, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Orchestrator{
		classifier: classifier,
		generator:  gen,
		store:      store,
		log:        log.With("component", "FeedbackOrchestrator", "generator", gen.Name()),
		now:        time.Now,
		newID:      func() string { return "fb_" + uuid.New().String() },
	}
}

// RequestFeedback classifies the recording text and generates feedback for
// non-critical text. A critical result returns without feedback and without
// calling the generator.
func (o *Orchestrator) RequestFeedback(ctx context.Context, rec *domain.Recording, mission domain.Mission) (*domain.FeedbackOutcome, error) {
	crisis := o.classifier.Classify(rec.Text)
	o.log.Info("recording classified",
		"recording_id", rec.ID,
		"level", int(crisis.Level),
		"text_len", utf8.RuneCountInString(rec.Text),
	)
	if crisis.Level == domain.CrisisLevelCritical {
		return &domain.FeedbackOutcome{Crisis: crisis}, nil
	}

	// A retry after a lost response finds the earlier result.
	if existing, err := o.store.GetFeedbackByRecording(ctx, rec.ID); err != nil {
		return nil, &domain.PersistError{What: "feedback", Err: err}
	} else if existing != nil {
		return &domain.FeedbackOutcome{Crisis: crisis, Feedback: existing}, nil
	}

	out, err := o.generator.Generate(ctx, generator.Input{
		MissionText: mission.Text,
		MissionType: mission.Type,
		MeaningText: mission.MeaningText,
		UserText:    rec.Text,
	})
	if err == nil {
		err = out.Validate()
	}
	if err != nil {
		o.log.Warn("feedback generation failed", "recording_id", rec.ID, "error", err)
		return nil, &domain.FeedbackError{Generator: o.generator.Name(), Err: err}
	}

	fb := &domain.FeedbackResult{
		ID:          o.newID(),
		UserID:      rec.UserID,
		RecordingID: rec.ID,
		Empathy:     out.Empathy,
		Discovery:   out.Discovery,
		Hint:        out.Hint,
		Generator:   o.generator.Name(),
		CreatedAt:   o.now(),
	}
	if err := o.store.CreateFeedback(ctx, fb); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, &domain.PersistError{What: "feedback", Err: err}
		}
		stored, getErr := o.store.GetFeedbackByRecording(ctx, rec.ID)
		if getErr != nil || stored == nil {
			return nil, &domain.PersistError{What: "feedback", Err: err}
		}
		fb = stored
	}

	o.log.Info("feedback saved", "recording_id", rec.ID, "feedback_id", fb.ID)
	return &domain.FeedbackOutcome{Crisis: crisis, Feedback: fb}, nil
}
