package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.GameSessionRepository.
// Pins and share codes are indexed so uniqueness holds across all sessions.
type SessionStore struct {
	mu          sync.RWMutex
	sessions    map[string]domain.GameSession
	byPin       map[string]string
	byShareCode map[string]string
	byClassroom map[string][]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:    make(map[string]domain.GameSession),
		byPin:       make(map[string]string),
		byShareCode: make(map[string]string),
		byClassroom: make(map[string][]string),
	}
}

func (s *SessionStore) Create(_ context.Context, session domain.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPin[session.Pin]; ok {
		return domain.ErrCodeTaken
	}
	if _, ok := s.byShareCode[session.ShareCode]; ok {
		return domain.ErrCodeTaken
	}
	s.sessions[session.ID] = cloneSession(session)
	s.byPin[session.Pin] = session.ID
	s.byShareCode[session.ShareCode] = session.ID
	s.byClassroom[session.ClassroomID] = append(s.byClassroom[session.ClassroomID], session.ID)
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (domain.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(id)
}

func (s *SessionStore) GetByPin(_ context.Context, pin string) (domain.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(s.byPin[pin])
}

func (s *SessionStore) GetByShareCode(_ context.Context, code string) (domain.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(s.byShareCode[code])
}

func (s *SessionStore) FindOpen(_ context.Context, quizID, classroomID string) (domain.GameSession, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.byClassroom[classroomID] {
		session := s.sessions[id]
		if session.QuizID == quizID && session.IsOpen() {
			return cloneSession(session), true, nil
		}
	}
	return domain.GameSession{}, false, nil
}

// Update stores session if it still has the stored version, then bumps the version.
func (s *SessionStore) Update(_ context.Context, session *domain.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[session.ID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if stored.Version != session.Version {
		return domain.ErrVersionConflict
	}
	session.Version++
	s.sessions[session.ID] = cloneSession(*session)
	return nil
}

func (s *SessionStore) ListByClassroom(_ context.Context, classroomID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.byClassroom[classroomID]))
	copy(ids, s.byClassroom[classroomID])
	return ids, nil
}

func (s *SessionStore) getLocked(id string) (domain.GameSession, error) {
	session, ok := s.sessions[id]
	if !ok {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

// cloneSession copies the participant slice so callers never share backing arrays with the store.
func cloneSession(session domain.GameSession) domain.GameSession {
	participants := make([]domain.Participant, len(session.Participants))
	copy(participants, session.Participants)
	session.Participants = participants
	return session
}
