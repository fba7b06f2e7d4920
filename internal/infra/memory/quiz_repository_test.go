package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestQuizRepositoryExpires(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": sampleQuiz()})}
	repo := NewQuizRepository(loader, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetQuiz(context.Background(), "quiz-1")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetQuiz(context.Background(), "quiz-1")
	if loader.calls != 2 {
		t.Fatalf("expected expired entry to reload, loader calls %d", loader.calls)
	}
}

func TestStaticQuizLoaderMissing(t *testing.T) {
	loader := NewStaticQuizLoader(nil)
	if _, err := loader.LoadQuiz(context.Background(), "nope"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestLoadQuizFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizzes.yaml")
	content := `quizzes:
  - id: quiz-1
    title: Arithmetic
    classroomId: class-1
    questions:
      - text: What is 2 + 2?
        options: ["3", "4"]
        correct: 1
        timer: 20
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	quizzes, err := LoadQuizFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	quiz, ok := quizzes["quiz-1"]
	if !ok || len(quiz.Questions) != 1 {
		t.Fatalf("unexpected quizzes %+v", quizzes)
	}
	q := quiz.Questions[0]
	if q.ID != "quiz-1-q1" || q.CorrectOptionIndex != 1 || q.TimerSeconds != 20 {
		t.Fatalf("unexpected question %+v", q)
	}
}

type countingLoader struct {
	QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:          "quiz-1",
		ClassroomID: "class-1",
		Questions: []domain.Question{
			{
				ID:                 "q1",
				Text:               "What is 2 + 2?",
				Options:            []string{"3", "4"},
				CorrectOptionIndex: 1,
			},
		},
	}
}
