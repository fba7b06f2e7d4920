package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

func ledgerQuiz() domain.Quiz {
	return domain.Quiz{
		ID: "quiz-1",
		Questions: []domain.Question{
			{ID: "q1", Text: "2 + 2", Options: []string{"3", "4"}, CorrectOptionIndex: 1, TimerSeconds: 10},
			{ID: "q2", Text: "3 + 3", Options: []string{"6", "7"}, CorrectOptionIndex: 0, TimerSeconds: 10},
		},
	}
}

func activeSession() domain.GameSession {
	return domain.GameSession{ID: "s1", QuizID: "quiz-1", State: domain.StateActive, HasStarted: true}
}

func TestRecordAnswerReplacesPreviousAnswer(t *testing.T) {
	store := memory.NewSubmissionStore()
	ledger := NewLedger(store, func() time.Time { return time.Unix(100, 0) })
	ctx := context.Background()

	first, err := ledger.RecordAnswer(ctx, activeSession(), ledgerQuiz(), AnswerInput{
		ParticipantID: "u1", DisplayName: "Ada", QuestionID: "q1", SelectedOption: 1, ResponseTimeMs: 2000,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if first.TotalScore != 1160 || len(first.Answers) != 1 {
		t.Fatalf("unexpected first submission %+v", first)
	}

	second, err := ledger.RecordAnswer(ctx, activeSession(), ledgerQuiz(), AnswerInput{
		ParticipantID: "u1", QuestionID: "q1", SelectedOption: 0, ResponseTimeMs: 3000,
	})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if second.TotalScore != 0 || len(second.Answers) != 1 || second.Answers[0].IsCorrect {
		t.Fatalf("expected wrong resubmission to replace the answer, got %+v", second)
	}
	if second.ID != first.ID || second.DisplayName != "Ada" {
		t.Fatalf("expected same submission kept, got %+v", second)
	}

	stored, _ := store.ListBySession(ctx, "s1")
	if len(stored) != 1 {
		t.Fatalf("expected one stored submission, got %d", len(stored))
	}
}

func TestRecordAnswerRejections(t *testing.T) {
	store := memory.NewSubmissionStore()
	ledger := NewLedger(store, nil)
	ctx := context.Background()

	waiting := activeSession()
	waiting.State = domain.StateWaiting
	ended := activeSession()
	ended.State = domain.StateEnded
	ended.Locked = true

	cases := []struct {
		name    string
		session domain.GameSession
		in      AnswerInput
		want    error
	}{
		{"waiting", waiting, AnswerInput{ParticipantID: "u1", QuestionID: "q1", SelectedOption: 1}, domain.ErrSessionNotActive},
		{"ended", ended, AnswerInput{ParticipantID: "u1", QuestionID: "q1", SelectedOption: 1}, domain.ErrSessionNotActive},
		{"closed question", activeSession(), AnswerInput{ParticipantID: "u1", QuestionID: "q2", SelectedOption: 0}, domain.ErrSessionNotActive},
		{"unknown question", activeSession(), AnswerInput{ParticipantID: "u1", QuestionID: "nope", SelectedOption: 0}, domain.ErrQuestionNotFound},
		{"option out of range", activeSession(), AnswerInput{ParticipantID: "u1", QuestionID: "q1", SelectedOption: 5}, domain.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.RecordAnswer(ctx, tc.session, ledgerQuiz(), tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if subs, _ := store.ListBySession(ctx, "s1"); len(subs) != 0 {
		t.Fatalf("rejected answers must not be stored, got %d", len(subs))
	}
}
