package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	infraredis "live-quiz-service/internal/infra/redis"
	transport "live-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var loader memory.QuizLoader
	var submissions app.SubmissionRepository = memory.NewSubmissionStore()
	var roster app.RosterRepository = memory.NewRosterStore()
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = postgres.NewQuizLoader(pool)

		db := postgres.OpenDB(cfg.Postgres.URL)
		defer db.Close()
		submissions = postgres.NewSubmissionStore(db)
		roster = postgres.NewRosterStore(db)
	} else {
		quizzes := sampleQuizzes()
		if cfg.Quiz.File != "" {
			if quizzes, err = memory.LoadQuizFile(cfg.Quiz.File); err != nil {
				return err
			}
		}
		loader = memory.NewStaticQuizLoader(quizzes)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	var sessions app.GameSessionRepository
	if redisClient != nil {
		quizRepo = infraredis.NewQuizRepository(redisClient, loader, quizTTL)
		sessions = infraredis.NewSessionStore(redisClient, redisTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
		sessions = memory.NewSessionStore()
	}

	// websocket clients always read from the local broadcaster; with Redis the
	// relay feeds it events published by every instance
	broadcaster := memory.NewBroadcaster()
	var publisher app.Publisher = broadcaster
	var relay *infraredis.Relay
	if redisClient != nil {
		publisher = infraredis.NewPublisher(redisClient)
		relay = infraredis.NewRelay(redisClient, broadcaster)
		if err := relay.Start(ctx); err != nil {
			return err
		}
	}

	orch := app.NewOrchestrator(
		sessions,
		quizRepo,
		submissions,
		roster,
		publisher,
		app.NewTimerSupervisor(),
		app.WithDefaultTimer(cfg.Game.DefaultTimerSeconds),
		app.WithCodeAttempts(cfg.Game.CodeAttempts),
	)
	defer orch.Shutdown()

	auth := transport.NewHostAuth(cfg.Auth.JWTSecret)
	if !auth.Enabled() {
		log.Printf("auth.jwtSecret not set: host identity is taken from X-Host-ID")
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(orch, broadcaster, auth),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("starting live quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if relay != nil {
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// sampleQuizzes is the demo set served when neither Postgres nor quiz.file is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:          "quiz-1",
			Title:       "Warm up",
			ClassroomID: "demo",
			Questions: []domain.Question{
				{
					ID:                 "q1",
					Text:               "What is 2 + 2?",
					Options:            []string{"3", "4", "5"},
					CorrectOptionIndex: 1,
					TimerSeconds:       10,
				},
				{
					ID:                 "q2",
					Text:               "Which planet is closest to the sun?",
					Options:            []string{"Venus", "Mercury", "Mars"},
					CorrectOptionIndex: 1,
					TimerSeconds:       15,
				},
			},
		},
	}
}
