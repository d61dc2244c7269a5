package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is matched by every TransitionError.
	ErrInvalidTransition = errors.New("invalid flow transition")
	// ErrNoSession is returned when a user has no open flow session.
	ErrNoSession = errors.New("no flow session")
)

// AssignmentError wraps a store or catalog failure during assignment.
type AssignmentError struct {
	Op  string
	Err error
}

func (e *AssignmentError) Error() string {
	return fmt.Sprintf("assignment %s: %v", e.Op, e.Err)
}

func (e *AssignmentError) Unwrap() error { return e.Err }

// CaptureValidationError rejects a capture before anything is uploaded or saved.
type CaptureValidationError struct {
	Reason string
}

func (e *CaptureValidationError) Error() string {
	return "invalid capture: " + e.Reason
}

// UploadError means the photo could not be stored. The capture draft is kept.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("photo upload failed: %v", e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// PersistError means a flow record could not be written. User input is kept.
type PersistError struct {
	What string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.What, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// FeedbackError means feedback generation failed and may be retried.
type FeedbackError struct {
	Generator string
	Err       error
}

func (e *FeedbackError) Error() string {
	if e.Generator == "" {
		return fmt.Sprintf("feedback generation failed: %v", e.Err)
	}
	return fmt.Sprintf("feedback generation failed (%s): %v", e.Generator, e.Err)
}

func (e *FeedbackError) Unwrap() error { return e.Err }

// Retryable is always true for feedback failures.
func (e *FeedbackError) Retryable() bool { return true }

// TransitionError is a flow transition refused by the guard policy.
type TransitionError struct {
	From   FlowStep
	Event  FlowEventType
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("cannot %s from %s", e.Event, e.From)
	}
	return fmt.Sprintf("cannot %s from %s: %s", e.Event, e.From, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidTransition) match.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
