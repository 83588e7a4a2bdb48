package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"academy-ledger-service/internal/app"
	"academy-ledger-service/internal/domain"
	"academy-ledger-service/internal/infra/postgres"
	pgmigrations "academy-ledger-service/internal/infra/postgres/migrations"
	infraredis "academy-ledger-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

type stack struct {
	service *app.QuizService
	ledger  *app.Ledger
	issuer  *app.CertificateIssuer
}

func newStack(t *testing.T, ctx context.Context) *stack {
	t.Helper()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	t.Cleanup(pgCleanup)
	redisURL, redisCleanup := startRedis(t, ctx)
	t.Cleanup(redisCleanup)

	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	store := postgres.NewStore(pool)
	loader := postgres.NewQuizLoader(store)
	catalog := postgres.NewCatalog(store)
	if err := loader.SaveQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	if err := catalog.SaveCourse(ctx, domain.Course{ID: "course-1", Title: "Basics", LessonIDs: []string{"l1", "l2"}, CertificateTemplateID: "tpl-1"}); err != nil {
		t.Fatalf("seed course: %v", err)
	}

	ledger := app.NewLedger(postgres.NewLedgerStore(store), store,
		app.WithLeaderboardCache(infraredis.NewLeaderboardCache(redisClient, time.Minute)))
	issuer := app.NewCertificateIssuer(postgres.NewCertificateStore(store), catalog, ledger, store)
	service := app.NewQuizService(app.Deps{
		Quizzes:      infraredis.NewQuizCache(redisClient, loader, 5*time.Minute),
		QuizStore:    loader,
		Catalog:      catalog,
		Attempts:     postgres.NewAttemptStore(store),
		Tx:           store,
		Ledger:       ledger,
		Progress:     app.NewProgressTracker(postgres.NewProgressStore(store), catalog),
		Certificates: issuer,
		Guard:        infraredis.NewSubmissionGuard(redisClient, time.Minute),
		Hub:          app.NewLeaderboardHub(ledger, 10),
	})

	for _, u := range []string{"u1", "u2", "u3"} {
		if _, err := service.OpenAccount(ctx, u, strings.ToUpper(u)); err != nil {
			t.Fatalf("open account %s: %v", u, err)
		}
	}
	return &stack{service: service, ledger: ledger, issuer: issuer}
}

func TestSubmitQuizEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	for _, lesson := range []string{"l1", "l2"} {
		res, err := s.service.SubmitQuiz(ctx, "u1", perfectSubmission(lesson))
		if err != nil {
			t.Fatalf("submit %s: %v", lesson, err)
		}
		if res.Score != 100 || res.XPEarned != 80 {
			t.Fatalf("unexpected result %+v", res)
		}
	}

	if _, err := s.service.SubmitQuiz(ctx, "u1", perfectSubmission("l1")); !errors.Is(err, domain.ErrDuplicateAttempt) {
		t.Fatalf("expected duplicate attempt, got %v", err)
	}

	certs, err := s.service.GetUserCertificates(ctx, "u1")
	if err != nil {
		t.Fatalf("certificates: %v", err)
	}
	if len(certs) != 1 || certs[0].FinalScore != 100 || certs[0].XPEarned != 300 {
		t.Fatalf("unexpected certificates %+v", certs)
	}
	verified, err := s.service.VerifyCertificate(ctx, certs[0].CertificateNumber)
	if err != nil || verified.ID != certs[0].ID {
		t.Fatalf("verify certificate: %+v %v", verified, err)
	}

	account, err := s.ledger.Account(ctx, "u1")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if account.XP != 560 {
		t.Fatalf("expected 80 + 80 + 300 + 100 XP, got %d", account.XP)
	}

	report, err := s.service.VerifyLedger(ctx, "u1")
	if err != nil {
		t.Fatalf("verify ledger: %v", err)
	}
	if !report.Valid || report.Entries != 4 || report.FinalXP != 560 {
		t.Fatalf("unexpected ledger report %+v", report)
	}

	now := time.Now()
	ranged, err := s.service.GetXPHistory(ctx, domain.XPHistoryFilter{UserID: "u1", From: now.Add(-time.Hour), To: now.Add(time.Hour)})
	if err != nil || len(ranged) != 4 {
		t.Fatalf("expected every entry inside the range, got %d %v", len(ranged), err)
	}
	ranged, _ = s.service.GetXPHistory(ctx, domain.XPHistoryFilter{UserID: "u1", From: now.Add(time.Hour)})
	if len(ranged) != 0 {
		t.Fatalf("expected no future entries, got %+v", ranged)
	}

	recent, err := s.service.GetRecentCertificates(ctx, 5)
	if err != nil || len(recent) != 1 || recent[0].ID != certs[0].ID {
		t.Fatalf("unexpected recent certificates %+v %v", recent, err)
	}

	stats, err := s.service.GetUserStats(ctx, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.CoursesCompleted != 1 || stats.CertificatesEarned != 1 || stats.TotalActivities != 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	board, err := s.service.GetXPLeaderboard(ctx, 2)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 2 || board[0].UserID != "u1" || board[0].XP != 560 {
		t.Fatalf("unexpected leaderboard %+v", board)
	}
}

func TestPublishQuizEvictsCachedDefinition(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	if res, err := s.service.SubmitQuiz(ctx, "u2", perfectSubmission("l1")); err != nil || res.Score != 100 {
		t.Fatalf("submit: %+v %v", res, err)
	}

	edited := sampleQuiz()
	edited.Questions[0].CorrectIndex = 0
	if err := s.service.PublishQuiz(ctx, edited); err != nil {
		t.Fatalf("publish: %v", err)
	}

	res, err := s.service.SubmitQuiz(ctx, "u3", perfectSubmission("l1"))
	if err != nil || res.Score != 50 {
		t.Fatalf("expected the edited definition to grade the submission, got %+v %v", res, err)
	}
}

func TestConcurrentDuplicateSubmissionsApplyOnce(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	var succeeded atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.SubmitQuiz(ctx, "u2", perfectSubmission("l1"))
			switch {
			case err == nil:
				succeeded.Add(1)
			case domain.KindOf(err) == domain.KindConflict:
			default:
				t.Errorf("submit: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded.Load() != 1 {
		t.Fatalf("expected exactly one accepted submission, got %d", succeeded.Load())
	}
	history, _ := s.service.GetXPHistory(ctx, domain.XPHistoryFilter{UserID: "u2"})
	if len(history) != 1 || history[0].NewXP != 80 {
		t.Fatalf("expected a single ledger entry, got %+v", history)
	}
	attempts, _ := s.service.GetUserAttempts(ctx, "u2", domain.AttemptFilter{})
	if len(attempts) != 1 {
		t.Fatalf("expected one attempt, got %d", len(attempts))
	}
}

func TestConcurrentCertificateAwardIssuesOnce(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	var issued atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.issuer.MaybeAward(ctx, "u3", "course-1", 90)
			if err != nil {
				t.Errorf("award: %v", err)
			}
			if ok {
				issued.Add(1)
			}
		}()
	}
	wg.Wait()

	if issued.Load() != 1 {
		t.Fatalf("expected exactly one certificate, got %d", issued.Load())
	}
	report, err := s.ledger.Verify(ctx, "u3")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.Valid || report.Entries != 2 || report.BalanceXP != 400 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestLedgerChainUnderConcurrentAdjustments(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			activity, amount := domain.ActivityBonus, 15
			if i%5 == 0 {
				activity, amount = domain.ActivityPenalty, 10
			}
			if _, err := s.service.AdjustXP(ctx, "u1", amount, activity, fmt.Sprintf("adjustment %d", i)); err != nil {
				t.Errorf("adjust: %v", err)
			}
		}(i)
	}
	wg.Wait()

	report, err := s.service.VerifyLedger(ctx, "u1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	want := 16*15 - 4*10
	if !report.Valid || report.Entries != 20 || report.FinalXP != want || report.BalanceXP != want {
		t.Fatalf("unexpected report %+v", report)
	}
}

func perfectSubmission(lessonID string) domain.QuizSubmission {
	return domain.QuizSubmission{
		QuizID:   "quiz-1",
		LessonID: lessonID,
		CourseID: "course-1",
		Answers: []domain.Answer{
			{QuestionIndex: 0, SelectedAnswer: 1},
			{QuestionIndex: 1, SelectedAnswer: 0},
		},
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "academy", "POSTGRES_PASSWORD": "academypass", "POSTGRES_DB": "academy"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
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
	dsn := fmt.Sprintf("postgres://academy:academypass@%s:%s/academy?sslmode=disable", host, port.Port())
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

func runMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID: "quiz-1",
		Questions: []domain.Question{
			{Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectIndex: 1},
			{Prompt: "What is 1 + 0?", Options: []string{"1", "2"}, CorrectIndex: 0},
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
