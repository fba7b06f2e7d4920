package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"live-quiz-service/internal/domain"
)

// AnswerInput is one answer as received from a participant.
type AnswerInput struct {
	ParticipantID  string
	DisplayName    string
	QuestionID     string
	SelectedOption int
	ResponseTimeMs int64
}

// Ledger records answers with upsert semantics so resubmitting never double counts.
type Ledger struct {
	submissions SubmissionRepository
	now         func() time.Time
}

func NewLedger(submissions SubmissionRepository, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{submissions: submissions, now: now}
}

// RecordAnswer scores in against the session's open question and stores it.
// Answers for any question other than the open one are rejected as not active.
func (l *Ledger) RecordAnswer(ctx context.Context, session domain.GameSession, quiz domain.Quiz, in AnswerInput) (domain.Submission, error) {
	if session.State != domain.StateActive || session.Locked {
		return domain.Submission{}, domain.ErrSessionNotActive
	}

	question, index, ok := quiz.QuestionByID(in.QuestionID)
	if !ok {
		return domain.Submission{}, domain.ErrQuestionNotFound
	}
	if in.SelectedOption < 0 || in.SelectedOption >= len(question.Options) {
		return domain.Submission{}, domain.ErrOptionOutOfRange
	}
	if index != session.CurrentQuestionIndex {
		return domain.Submission{}, fmt.Errorf("question %s is closed: %w", in.QuestionID, domain.ErrSessionNotActive)
	}

	now := l.now()
	submission, found, err := l.submissions.Find(ctx, session.ID, in.ParticipantID)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("load submission: %w", err)
	}
	if !found {
		submission = domain.Submission{
			ID:            uuid.NewString(),
			SessionID:     session.ID,
			ParticipantID: in.ParticipantID,
			CreatedAt:     now,
		}
	}

	correct := in.SelectedOption == question.CorrectOptionIndex
	answer := domain.Answer{
		QuestionID:          question.ID,
		SelectedOptionIndex: in.SelectedOption,
		IsCorrect:           correct,
		ResponseTimeMs:      in.ResponseTimeMs,
		Points:              Score(question, in.ResponseTimeMs, correct),
	}
	if i := submission.AnswerFor(question.ID); i >= 0 {
		submission.TotalScore -= submission.Answers[i].Points
		submission.Answers[i] = answer
	} else {
		submission.Answers = append(submission.Answers, answer)
	}
	submission.TotalScore += answer.Points
	if in.DisplayName != "" {
		submission.DisplayName = in.DisplayName
	}
	submission.LastSubmittedAt = now

	if err := l.submissions.Save(ctx, submission); err != nil {
		return domain.Submission{}, fmt.Errorf("save submission: %w", err)
	}
	return submission, nil
}
