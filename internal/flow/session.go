// Package flow sequences a user's recording, reflection and feedback steps.
package flow

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/xiaot623/dailymission/internal/domain"
	"github.com/xiaot623/dailymission/internal/logger"
)

// MaxTextRunes caps the recording text.
const MaxTextRunes = 500

// ErrQuestionUnavailable means the catalog returned no reflection question.
var ErrQuestionUnavailable = errors.New("no reflection question available")

// Assigner resolves the user's assignment for a day.
type Assigner interface {
	Assign(ctx context.Context, userID string, day domain.Day) (*domain.Assignment, error)
}

// Store is the persistence a session writes to.
type Store interface {
	CreateRecording(ctx context.Context, recording *domain.Recording) error
	MarkAssignmentCompleted(ctx context.Context, assignmentID string, at time.Time) (bool, error)
	RandomQuestion(ctx context.Context) (*domain.Question, error)
	CreateReflection(ctx context.Context, reflection *domain.ReflectionResponse) error
	CreateFlowEvent(ctx context.Context, event *domain.FlowEvent) error
}

// Uploader stores photos.
type Uploader interface {
	Upload(ctx context.Context, userID string, r io.Reader, contentType string) (string, error)
}

// FeedbackRequester classifies a recording and produces feedback.
type FeedbackRequester interface {
	RequestFeedback(ctx context.Context, rec *domain.Recording, mission domain.Mission) (*domain.FeedbackOutcome, error)
}

// Guard decides whether a transition is allowed.
type Guard interface {
	Allow(ctx context.Context, t domain.Transition) (bool, string, error)
}

// Deps are shared by every session.
type Deps struct {
	Assigner Assigner
	Store    Store
	Uploader Uploader
	Feedback FeedbackRequester
	Guard    Guard
	Log      *logger.Logger
	Now      func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
