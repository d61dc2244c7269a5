package service

import (
	"context"

	"github.com/xiaot623/dailymission/internal/domain"
	"github.com/xiaot623/dailymission/internal/flow"
)

// OpenFlow returns the user's session, creating one when none is open or the
// previous one finished, and enters it for today.
func (s *Service) OpenFlow(ctx context.Context, userID string) (*domain.FlowSnapshot, error) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	s.mu.Unlock()

	// Step takes the session lock, so it is read outside the registry lock.
	if !ok || sess.Step() == domain.FlowStepDone {
		s.mu.Lock()
		if cur, exists := s.sessions[userID]; exists && cur != sess {
			sess = cur
		} else {
			sess = flow.NewSession(s.flowDeps, userID)
			s.sessions[userID] = sess
			s.log.Debug("flow session opened", "user_id", userID, "session_id", sess.ID())
		}
		s.mu.Unlock()
	}

	return sess.Enter(ctx, s.Today())
}

// FlowSnapshot returns the state of the user's open session.
func (s *Service) FlowSnapshot(userID string) (*domain.FlowSnapshot, error) {
	sess, err := s.session(userID)
	if err != nil {
		return nil, err
	}
	return sess.Snapshot(), nil
}

// CloseFlow abandons the user's session. Nothing unsaved is persisted.
func (s *Service) CloseFlow(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return domain.ErrNoSession
	}
	delete(s.sessions, userID)
	s.log.Info("flow session abandoned", "user_id", userID, "session_id", sess.ID(), "step", sess.Step())
	return nil
}

// Start moves the session to recording.
func (s *Service) Start(ctx context.Context, userID string) (*domain.FlowSnapshot, error) {
	sess, err := s.session(userID)
	if err != nil {
		return nil, err
	}
	return sess.Start(ctx, s.Today())
}

// Capture submits the recording input.
func (s *Service) Capture(ctx context.Context, userID string, c domain.Capture) (*domain.FlowSnapshot, error) {
	sess, err := s.session(userID)
	if err != nil {
		return nil, err
	}
	return sess.SubmitCapture(ctx, c)
}

// LoadQuestion retries fetching the reflection question.
func (s *Service) LoadQuestion(ctx context.Context, userID string) (*domain.FlowSnapshot, error) {
	sess, err := s.session(userID)
	if err != nil {
		return nil, err
	}
	return sess.LoadQuestion(ctx)
}

// Reflect submits the chosen option and waits for feedback.
func (s *Service) Reflect(ctx context.Context, userID, option string) (*domain.FlowSnapshot, error) {
	sess, err := s.session(userID)
	if err != nil {
		return nil, err
	}
	return sess.SubmitReflection(ctx, option)
}

// RetryFeedback reruns feedback generation.
func (s *Service) RetryFeedback(ctx context.Context, userID string) (*domain.FlowSnapshot, error) {
	sess, err := s.session(userID)
	if err != nil {
		return nil, err
	}
	return sess.RetryFeedback(ctx)
}

// Acknowledge finishes the flow and discards the session.
func (s *Service) Acknowledge(ctx context.Context, userID string) (*domain.FlowSnapshot, error) {
	sess, err := s.session(userID)
	if err != nil {
		return nil, err
	}
	snap, err := sess.Acknowledge(ctx)
	if err != nil {
		return snap, err
	}

	s.mu.Lock()
	if s.sessions[userID] == sess {
		delete(s.sessions, userID)
	}
	s.mu.Unlock()
	return snap, nil
}

func (s *Service) session(userID string) (*flow.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return nil, domain.ErrNoSession
	}
	return sess, nil
}
