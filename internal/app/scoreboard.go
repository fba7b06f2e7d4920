package app

import (
	"context"
	"fmt"
	"time"

	"live-quiz-service/internal/domain"
)

// ScoreboardSync keeps each classroom roster entry equal to the participant's
// total across every session of the classroom. It recomputes from submissions
// on each call, so a lost concurrent update is repaired by the next one.
type ScoreboardSync struct {
	sessions    GameSessionRepository
	submissions SubmissionRepository
	roster      RosterRepository
	now         func() time.Time
}

func NewScoreboardSync(sessions GameSessionRepository, submissions SubmissionRepository, roster RosterRepository, now func() time.Time) *ScoreboardSync {
	if now == nil {
		now = time.Now
	}
	return &ScoreboardSync{sessions: sessions, submissions: submissions, roster: roster, now: now}
}

// Sync writes the participant's classroom-wide score into the roster, creating the entry if needed.
func (s *ScoreboardSync) Sync(ctx context.Context, classroomID, participantID, displayName string) (domain.RosterEntry, error) {
	sessionIDs, err := s.sessions.ListByClassroom(ctx, classroomID)
	if err != nil {
		return domain.RosterEntry{}, fmt.Errorf("list classroom sessions: %w", err)
	}
	submissions, err := s.submissions.ListByParticipant(ctx, participantID, sessionIDs)
	if err != nil {
		return domain.RosterEntry{}, fmt.Errorf("list participant submissions: %w", err)
	}

	total := 0
	for _, sub := range submissions {
		total += sub.TotalScore
		if displayName == "" {
			displayName = sub.DisplayName
		}
	}

	entry := domain.RosterEntry{
		ParticipantID: participantID,
		DisplayName:   displayName,
		Score:         total,
		UpdatedAt:     s.now(),
	}
	if err := s.roster.UpsertScore(ctx, classroomID, entry); err != nil {
		return domain.RosterEntry{}, fmt.Errorf("update roster: %w", err)
	}
	return entry, nil
}

func (s *ScoreboardSync) Roster(ctx context.Context, classroomID string) ([]domain.RosterEntry, error) {
	return s.roster.Roster(ctx, classroomID)
}
