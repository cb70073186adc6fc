package database

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jorcase/exadocs/internal/config"
)

// setupTestDB запускает PostgreSQL в Docker-контейнере через testcontainers.
func setupTestDB(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("exadocs_test"),
		postgres.WithUsername("exadocs"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("EXA_DB_HOST", host)
	t.Setenv("EXA_DB_PORT", port.Port())
	t.Setenv("EXA_DB_NAME", "exadocs_test")
	t.Setenv("EXA_DB_USER", "exadocs")
	t.Setenv("EXA_DB_PASSWORD", "test-password")
	t.Setenv("EXA_DB_SSL_MODE", "disable")
	t.Setenv("EXA_JWT_JWKS_URL", "http://localhost:8080/certs")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// TestConnect проверяет подключение к PostgreSQL через pgxpool.
func TestConnect(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()

	pool, err := Connect(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("pool.Ping() вернул ошибку: %v", err)
	}
}

// TestMigrate проверяет применение миграций и начальные состояния.
func TestMigrate(t *testing.T) {
	cfg := setupTestDB(t)
	logger := testLogger()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}

	// Повторное применение — без ошибки (ErrNoChange)
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Повторный Migrate() вернул ошибку: %v", err)
	}

	ctx := context.Background()
	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	tables := []string{
		"users", "user_profiles", "careers", "subjects", "curricula",
		"career_subjects", "curriculum_subjects", "file_types", "file_states",
		"files", "file_saves", "review_history", "content_reports",
		"comments", "ratings", "notifications", "audit_entries",
	}

	for _, table := range tables {
		var exists bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		if err != nil {
			t.Fatalf("Ошибка проверки таблицы %s: %v", table, err)
		}
		if !exists {
			t.Errorf("Таблица %s не создана", table)
		}
	}

	var defaultState string
	if err := pool.QueryRow(ctx, `SELECT name FROM file_states WHERE is_default`).Scan(&defaultState); err != nil {
		t.Fatalf("Состояние по умолчанию не найдено: %v", err)
	}
	if defaultState != "Pendiente" {
		t.Errorf("состояние по умолчанию = %q, ожидали Pendiente", defaultState)
	}

	// Второе состояние по умолчанию запрещено частичным уникальным индексом
	_, err = pool.Exec(ctx, `UPDATE file_states SET is_default = true WHERE name = 'Borrador'`)
	if err == nil {
		t.Error("ожидали ошибку уникальности для второго состояния по умолчанию")
	}

	// resolved_at без статуса resolved запрещён CHECK-ограничением
	_, err = pool.Exec(ctx, `INSERT INTO content_reports (file_id, reason, status, resolved_at)
		VALUES (gen_random_uuid(), 'spam', 'pending', now())`)
	if err == nil {
		t.Error("ожидали ошибку для resolved_at при статусе pending")
	}
}

// TestReadinessChecker — статус до миграций, после и при «грязной» миграции.
func TestReadinessChecker(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()

	pool, err := Connect(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	checker := NewReadinessChecker(pool)

	if status, msg := checker.CheckReady(); status != "degraded" {
		t.Errorf("до миграций: status = %q (%s), ожидали degraded", status, msg)
	}

	if err := Migrate(cfg, testLogger()); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	status, msg := checker.CheckReady()
	if status != "ok" || !strings.Contains(msg, "схема v2") {
		t.Errorf("после миграций: status = %q, message = %q", status, msg)
	}

	if _, err := pool.Exec(ctx, `UPDATE schema_migrations SET dirty = true`); err != nil {
		t.Fatal(err)
	}
	if status, msg := checker.CheckReady(); status != "fail" {
		t.Errorf("dirty: status = %q (%s), ожидали fail", status, msg)
	}
}

func TestMigrateURL_EscapesCredentials(t *testing.T) {
	cfg := &config.Config{
		DBHost: "pg", DBPort: 5432, DBName: "exadocs",
		DBUser: "exa", DBPassword: "p@ss:w/rd", DBSSLMode: "require",
	}
	got := migrateURL(cfg)
	want := "pgx5://exa:p%40ss%3Aw%2Frd@pg:5432/exadocs?sslmode=require"
	if got != want {
		t.Errorf("migrateURL() = %q, ожидается %q", got, want)
	}
}
