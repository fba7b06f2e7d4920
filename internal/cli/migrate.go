package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	pgmigrations "live-quiz-service/internal/infra/postgres/migrations"
	infraredis "live-quiz-service/internal/infra/redis"
)

type quizSaver interface {
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
}

type quizInvalidator interface {
	Invalidate(ctx context.Context, quizID string) error
}

// NewMigrateCmd applies database migrations and optionally seeds quizzes.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var seedPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}
			if seedPath != "" {
				return seedQuizzes(cmd.Context(), cfg, seedPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&seedPath, "seed", "", "YAML quiz file to upsert after migrating")
	return cmd
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	db := postgres.OpenDB(cfg.Postgres.URL)
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Printf("no new migrations")
		return nil
	}
	log.Printf("migrations applied: %s", group)
	return nil
}

func seedQuizzes(ctx context.Context, cfg config.Config, path string) error {
	quizzes, err := memory.LoadQuizFile(path)
	if err != nil {
		return err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	loader := postgres.NewQuizLoader(pool)
	var cache quizInvalidator
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		cache = infraredis.NewQuizRepository(client, loader, config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute))
	}
	if err := saveQuizzes(ctx, loader, cache, quizzes); err != nil {
		return err
	}
	log.Printf("seeded %d quizzes from %s", len(quizzes), path)
	return nil
}

// saveQuizzes upserts every quiz and drops its cached copy so running servers reload it.
func saveQuizzes(ctx context.Context, store quizSaver, cache quizInvalidator, quizzes map[string]domain.Quiz) error {
	for id, quiz := range quizzes {
		if err := store.SaveQuiz(ctx, quiz); err != nil {
			return fmt.Errorf("save quiz %s: %w", id, err)
		}
		if cache == nil {
			continue
		}
		if err := cache.Invalidate(ctx, id); err != nil {
			log.Printf("invalidate cached quiz %s: %v", id, err)
		}
	}
	return nil
}
