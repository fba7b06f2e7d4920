package app

import (
	"context"

	"live-quiz-service/internal/domain"
)

// GameSessionRepository abstracts how game sessions are stored (in-memory, Redis, etc).
// Create must reject a pin or share code that is already assigned with domain.ErrCodeTaken.
type GameSessionRepository interface {
	Create(ctx context.Context, session domain.GameSession) error
	Get(ctx context.Context, id string) (domain.GameSession, error)
	GetByPin(ctx context.Context, pin string) (domain.GameSession, error)
	GetByShareCode(ctx context.Context, code string) (domain.GameSession, error)
	// FindOpen returns the waiting or active session for a quiz in a classroom, if any.
	FindOpen(ctx context.Context, quizID, classroomID string) (domain.GameSession, bool, error)
	// Update saves session when its Version matches the stored one and bumps
	// session.Version; otherwise it returns domain.ErrVersionConflict.
	Update(ctx context.Context, session *domain.GameSession) error
	ListByClassroom(ctx context.Context, classroomID string) ([]string, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// SubmissionRepository stores one submission per (session, participant).
// List methods return submissions in creation order.
type SubmissionRepository interface {
	Find(ctx context.Context, sessionID, participantID string) (domain.Submission, bool, error)
	Save(ctx context.Context, submission domain.Submission) error
	ListBySession(ctx context.Context, sessionID string) ([]domain.Submission, error)
	ListByParticipant(ctx context.Context, participantID string, sessionIDs []string) ([]domain.Submission, error)
}

// RosterRepository holds the denormalized classroom scoreboard.
type RosterRepository interface {
	UpsertScore(ctx context.Context, classroomID string, entry domain.RosterEntry) error
	Roster(ctx context.Context, classroomID string) ([]domain.RosterEntry, error)
}

// Publisher fans an event out to everyone subscribed to topic. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, topic string, event domain.Event)
}
