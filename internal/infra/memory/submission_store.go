package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
)

// SubmissionStore keeps submissions per session in creation order.
type SubmissionStore struct {
	mu        sync.RWMutex
	bySession map[string][]domain.Submission
}

func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{bySession: make(map[string][]domain.Submission)}
}

func (s *SubmissionStore) Find(_ context.Context, sessionID, participantID string) (domain.Submission, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.bySession[sessionID] {
		if sub.ParticipantID == participantID {
			return cloneSubmission(sub), true, nil
		}
	}
	return domain.Submission{}, false, nil
}

// Save replaces the submission for (session, participant) in place or appends a new one.
func (s *SubmissionStore) Save(_ context.Context, submission domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.bySession[submission.SessionID]
	for i := range list {
		if list[i].ParticipantID == submission.ParticipantID {
			list[i] = cloneSubmission(submission)
			return nil
		}
	}
	s.bySession[submission.SessionID] = append(list, cloneSubmission(submission))
	return nil
}

func (s *SubmissionStore) ListBySession(_ context.Context, sessionID string) ([]domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.bySession[sessionID]
	out := make([]domain.Submission, 0, len(list))
	for _, sub := range list {
		out = append(out, cloneSubmission(sub))
	}
	return out, nil
}

func (s *SubmissionStore) ListByParticipant(_ context.Context, participantID string, sessionIDs []string) ([]domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Submission
	for _, sessionID := range sessionIDs {
		for _, sub := range s.bySession[sessionID] {
			if sub.ParticipantID == participantID {
				out = append(out, cloneSubmission(sub))
			}
		}
	}
	return out, nil
}

func cloneSubmission(sub domain.Submission) domain.Submission {
	answers := make([]domain.Answer, len(sub.Answers))
	copy(answers, sub.Answers)
	sub.Answers = answers
	return sub
}
