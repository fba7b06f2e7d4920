package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"live-quiz-service/internal/domain"
)

// Submission returns what a participant answered in a session.
func (o *Orchestrator) Submission(ctx context.Context, sessionID, participantID string) (domain.Submission, error) {
	if _, err := o.sessions.Get(ctx, sessionID); err != nil {
		return domain.Submission{}, err
	}
	submission, ok, err := o.ledger.submissions.Find(ctx, sessionID, participantID)
	if err != nil {
		return domain.Submission{}, err
	}
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return submission, nil
}

// Progress lists the classroom sessions a participant answered in, most recent first.
func (o *Orchestrator) Progress(ctx context.Context, classroomID, participantID string) ([]domain.ProgressEntry, error) {
	if classroomID == "" || participantID == "" {
		return nil, fmt.Errorf("%w: classroomId and participantId are required", domain.ErrValidation)
	}
	sessionIDs, err := o.sessions.ListByClassroom(ctx, classroomID)
	if err != nil {
		return nil, fmt.Errorf("list classroom sessions: %w", err)
	}
	submissions, err := o.ledger.submissions.ListByParticipant(ctx, participantID, sessionIDs)
	if err != nil {
		return nil, fmt.Errorf("list participant submissions: %w", err)
	}

	quizzes := make(map[string]domain.Quiz)
	entries := make([]domain.ProgressEntry, 0, len(submissions))
	for _, sub := range submissions {
		entry := domain.ProgressEntry{
			SubmissionID:    sub.ID,
			SessionID:       sub.SessionID,
			TotalScore:      sub.TotalScore,
			LastSubmittedAt: sub.LastSubmittedAt,
			SessionState:    domain.StateWaiting,
		}
		session, err := o.sessions.Get(ctx, sub.SessionID)
		switch {
		case errors.Is(err, domain.ErrSessionNotFound):
			entries = append(entries, entry)
			continue
		case err != nil:
			return nil, err
		}
		entry.QuizID = session.QuizID
		entry.SessionState = session.State
		entry.SessionEndedAt = session.EndedAt

		quiz, ok := quizzes[session.QuizID]
		if !ok {
			if quiz, err = o.quizzes.GetQuiz(ctx, session.QuizID); err != nil {
				log.Printf("progress: load quiz %s: %v", session.QuizID, err)
			}
			quizzes[session.QuizID] = quiz
		}
		entry.QuizTitle = quiz.Title
		entry.QuestionCount = len(quiz.Questions)
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LastSubmittedAt.After(entries[j].LastSubmittedAt)
	})
	return entries, nil
}

// PendingQuestion reports the question whose timer is armed on this instance.
func (o *Orchestrator) PendingQuestion(sessionID string) (int, bool) {
	return o.timers.Pending(sessionID)
}
