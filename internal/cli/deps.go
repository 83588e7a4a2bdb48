package cli

import (
	"context"
	"time"

	"academy-ledger-service/internal/app"
	"academy-ledger-service/internal/config"
	"academy-ledger-service/internal/domain"
	"academy-ledger-service/internal/infra/events"
	"academy-ledger-service/internal/infra/memory"
	"academy-ledger-service/internal/infra/postgres"
	redisinfra "academy-ledger-service/internal/infra/redis"
	"academy-ledger-service/pkg/logger"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// deps is the wired service graph plus whatever must be closed on shutdown.
type deps struct {
	service *app.QuizService
	closers []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// newDeps is swapped in tests to share one in-memory graph across commands.
var newDeps = buildDeps

// buildDeps wires Postgres when configured and falls back to in-memory stores seeded with
// demo content otherwise. Redis and RabbitMQ are optional accelerators/outlets.
func buildDeps(ctx context.Context, cfg config.Config, log logger.Log) (*deps, error) {
	d := &deps{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closers = append(d.closers, func() { _ = redisClient.Close() })
	}

	var (
		source       memory.QuizSource
		quizStore    app.QuizStore
		catalog      app.CourseCatalog
		tx           app.Transactor
		attempts     app.AttemptRepository
		progressRepo app.ProgressRepository
		ledgerRepo   app.LedgerRepository
		certRepo     app.CertificateRepository
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.closers = append(d.closers, pool.Close)

		store := postgres.NewStore(pool)
		loader := postgres.NewQuizLoader(store)
		source, quizStore = loader, loader
		catalog = postgres.NewCatalog(store)
		tx = store
		attempts = postgres.NewAttemptStore(store)
		progressRepo = postgres.NewProgressStore(store)
		ledgerRepo = postgres.NewLedgerStore(store)
		certRepo = postgres.NewCertificateStore(store)
		log.Info("using postgres storage")
	} else {
		static := memory.NewStaticQuizSource(sampleQuizzes()...)
		source, quizStore = static, static
		catalog = memory.NewStaticCatalog(sampleCourses()...)
		tx = memory.NewTransactor()
		attempts = memory.NewAttemptStore()
		progressRepo = memory.NewProgressStore()
		ledgerRepo = memory.NewLedgerStore()
		certRepo = memory.NewCertificateStore()
		log.Warn("postgres not configured, using in-memory storage with demo content")
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	guardTTL := config.TTLDuration(cfg.Submission.GuardTTL, 30*time.Second)

	var (
		quizzes app.QuizRepository
		guard   app.SubmissionGuard
		opts    []app.LedgerOption
	)
	if redisClient != nil {
		quizzes = redisinfra.NewQuizCache(redisClient, source, quizTTL)
		guard = redisinfra.NewSubmissionGuard(redisClient, guardTTL)
		leaderboardTTL := config.TTLDuration(cfg.Leaderboard.TTL, 30*time.Second)
		opts = append(opts, app.WithLeaderboardCache(redisinfra.NewLeaderboardCache(redisClient, leaderboardTTL)))
	} else {
		quizzes = memory.NewQuizCache(source, quizTTL)
		guard = memory.NewSubmissionGuard(guardTTL)
	}

	publisher, err := events.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.closers = append(d.closers, func() {
		if err := publisher.Close(); err != nil {
			log.ErrorErr("close event publisher", err)
		}
	})

	ledger := app.NewLedger(ledgerRepo, tx, opts...)
	d.service = app.NewQuizService(app.Deps{
		Quizzes:      quizzes,
		QuizStore:    quizStore,
		Catalog:      catalog,
		Attempts:     attempts,
		Tx:           tx,
		Ledger:       ledger,
		Progress:     app.NewProgressTracker(progressRepo, catalog),
		Certificates: app.NewCertificateIssuer(certRepo, catalog, ledger, tx),
		Guard:        guard,
		Hub:          app.NewLeaderboardHub(ledger, cfg.Leaderboard.Size),
		Notifier:     publisher,
		Log:          log,
	})
	return d, nil
}

// sampleQuizzes is demo content for running without Postgres.
func sampleQuizzes() []domain.Quiz {
	return []domain.Quiz{
		{
			ID: "quiz-1",
			Questions: []domain.Question{
				{Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectIndex: 1},
				{Prompt: "Which word is a verb?", Options: []string{"run", "blue", "table"}, CorrectIndex: 0},
			},
		},
		{
			ID: "quiz-2",
			Questions: []domain.Question{
				{Prompt: "Pick the past tense of \"go\"", Options: []string{"goed", "went", "gone"}, CorrectIndex: 1},
				{Prompt: "Pick the plural of \"child\"", Options: []string{"childs", "children"}, CorrectIndex: 1},
				{Prompt: "Pick the opposite of \"early\"", Options: []string{"late", "soon", "fast"}, CorrectIndex: 0},
			},
		},
	}
}

func sampleCourses() []domain.Course {
	return []domain.Course{
		{ID: "course-1", Title: "English Basics", LessonIDs: []string{"lesson-1", "lesson-2"}, CertificateTemplateID: "tpl-basics"},
	}
}
