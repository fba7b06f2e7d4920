package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	infraredis "live-quiz-service/internal/infra/redis"
)

type recordingSaver struct {
	saved []string
	err   error
}

func (s *recordingSaver) SaveQuiz(_ context.Context, quiz domain.Quiz) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, quiz.ID)
	return nil
}

func TestSaveQuizzesDropsCachedCopies(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	quiz := domain.Quiz{
		ID:        "quiz-1",
		Title:     "Warm up",
		Questions: []domain.Question{{ID: "q1", Text: "2 + 2?", Options: []string{"3", "4"}, CorrectOptionIndex: 1}},
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := infraredis.NewQuizRepository(client, memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": quiz}), time.Minute)
	ctx := context.Background()
	if _, err := cache.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if !mr.Exists("quiz:content:quiz-1") {
		t.Fatalf("expected quiz cached before seeding")
	}

	saver := &recordingSaver{}
	if err := saveQuizzes(ctx, saver, cache, map[string]domain.Quiz{"quiz-1": quiz}); err != nil {
		t.Fatalf("save quizzes: %v", err)
	}
	if len(saver.saved) != 1 || saver.saved[0] != "quiz-1" {
		t.Fatalf("unexpected saved quizzes %v", saver.saved)
	}
	if mr.Exists("quiz:content:quiz-1") {
		t.Fatalf("expected cached quiz dropped after seeding")
	}
}

func TestSaveQuizzesStopsOnStoreError(t *testing.T) {
	boom := errors.New("boom")
	err := saveQuizzes(context.Background(), &recordingSaver{err: boom}, nil, map[string]domain.Quiz{"quiz-1": {ID: "quiz-1"}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}
