package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun/migrate"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	pgmigrations "live-quiz-service/internal/infra/postgres/migrations"
	infraredis "live-quiz-service/internal/infra/redis"
)

type manualTimer struct{ fn func() }

func (manualTimer) Stop() bool { return true }

func TestLiveGameEndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := postgres.OpenDB(pgURL)
	defer db.Close()
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := postgres.NewQuizLoader(pool)
	if err := loader.SaveQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	broadcaster := memory.NewBroadcaster()
	relay := infraredis.NewRelay(redisClient, broadcaster)
	if err := relay.Start(ctx); err != nil {
		t.Fatalf("start relay: %v", err)
	}
	go func() { _ = relay.Run(ctx) }()

	var timers []manualTimer
	orch := app.NewOrchestrator(
		infraredis.NewSessionStore(redisClient, 5*time.Minute),
		infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute),
		postgres.NewSubmissionStore(db),
		postgres.NewRosterStore(db),
		infraredis.NewPublisher(redisClient),
		app.NewTimerSupervisorWithAfterFunc(func(_ time.Duration, f func()) app.Stopper {
			timer := manualTimer{fn: f}
			timers = append(timers, timer)
			return timer
		}),
	)
	defer orch.Shutdown()

	session, err := orch.CreateSession(ctx, "host-1", "quiz-1", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	again, err := orch.CreateSession(ctx, "host-1", "quiz-1", "")
	if err != nil || again.ID != session.ID {
		t.Fatalf("expected idempotent create, got %s vs %s (%v)", again.ID, session.ID, err)
	}

	events, unsubscribe := broadcaster.Subscribe(session.ID)
	defer unsubscribe()

	for _, p := range []struct{ id, name string }{{"u1", "Alice"}, {"u2", "Bob"}} {
		if _, err := orch.Join(ctx, app.JoinCommand{Session: app.SessionRef{Pin: session.Pin}, ParticipantID: p.id, ParticipantName: p.name}); err != nil {
			t.Fatalf("join %s: %v", p.id, err)
		}
	}
	if _, err := orch.HostStart(ctx, app.HostStartCommand{SessionID: session.ID, HostID: "host-1"}); err != nil {
		t.Fatalf("start: %v", err)
	}

	answers := []app.SubmitAnswerCommand{
		{SessionID: session.ID, ParticipantID: "u1", QuestionID: "q1", SelectedOption: 1, ResponseTimeMs: 2000},
		{SessionID: session.ID, ParticipantID: "u2", QuestionID: "q1", SelectedOption: 1, ResponseTimeMs: 0},
		// a changed resubmission replaces the first answer
		{SessionID: session.ID, ParticipantID: "u1", QuestionID: "q1", SelectedOption: 0, ResponseTimeMs: 3000},
		{SessionID: session.ID, ParticipantID: "u1", QuestionID: "q1", SelectedOption: 1, ResponseTimeMs: 2000},
	}
	for _, a := range answers {
		if _, err := orch.SubmitAnswer(ctx, a); err != nil {
			t.Fatalf("submit %+v: %v", a, err)
		}
	}

	// the question timer expires on its own
	timers[len(timers)-1].fn()
	if _, err := orch.HostEnd(ctx, app.HostEndCommand{SessionID: session.ID, HostID: "host-1"}); err != nil {
		t.Fatalf("end: %v", err)
	}

	lb, err := orch.Leaderboard(ctx, session.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].ParticipantID != "u2" || lb.Entries[0].TotalScore != 1200 || lb.Entries[1].TotalScore != 1160 {
		t.Fatalf("unexpected leaderboard %+v", lb.Entries)
	}

	roster, err := orch.Roster(ctx, "class-1")
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if len(roster) != 2 || roster[0].ParticipantID != "u2" || roster[1].DisplayName != "Alice" || roster[1].Score != 1160 {
		t.Fatalf("unexpected roster %+v", roster)
	}

	seen := map[string]bool{}
	deadline := time.After(5 * time.Second)
	for !seen[domain.EventGameEnded] {
		select {
		case ev := <-events:
			seen[ev.Type] = true
		case <-deadline:
			t.Fatalf("relay delivered only %v", seen)
		}
	}
	for _, want := range []string{domain.EventParticipantJoined, domain.EventQuestionStarted, domain.EventAnswerTally, domain.EventQuestionEnded} {
		if !seen[want] {
			t.Fatalf("expected %s relayed, saw %v", want, seen)
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:          "quiz-1",
		Title:       "Integration",
		ClassroomID: "class-1",
		Questions: []domain.Question{
			{ID: "q1", Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectOptionIndex: 1, TimerSeconds: 10},
			{ID: "q2", Text: "What is 3 + 3?", Options: []string{"5", "6"}, CorrectOptionIndex: 1, TimerSeconds: 10},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
