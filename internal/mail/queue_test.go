package mail

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis запускает Redis в контейнере.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "docker.io/redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Не удалось запустить Redis контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestQueue_EnqueueReserveAck(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	q := NewQueue(rdb, "exadocs:mail:test", 3)

	msg := NewMessage(TemplateNewReport, "ana@unsl.edu.ar", "Reporte", map[string]any{"title": "A"})
	require.NoError(t, q.Enqueue(ctx, msg))

	got, err := q.Reserve(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, "A", got.Data["title"])

	pending, processing, _, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending)
	assert.Equal(t, int64(1), processing)

	require.NoError(t, q.Ack(ctx, got))
	_, processing, _, _ = q.Len(ctx)
	assert.Equal(t, int64(0), processing)

	_, err = q.Reserve(ctx, 100*time.Millisecond)
	assert.True(t, errors.Is(err, ErrEmpty))
}

func TestQueue_RetryAndDeadLetter(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	q := NewQueue(rdb, "exadocs:mail:retry", 2)

	require.NoError(t, q.Enqueue(ctx, NewMessage(TemplateFileUpdated, "ana@unsl.edu.ar", "x", nil)))

	first, err := q.Reserve(ctx, time.Second)
	require.NoError(t, err)
	dead, err := q.Retry(ctx, first, 100*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, dead)

	pending, processing, _, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 0}, []int64{pending, processing}, "отложенное письмо учитывается как ожидающее")

	second, err := q.Reserve(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Attempts)
	dead, err = q.Retry(ctx, second, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, dead)

	pending, processing, deadLen, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 1}, []int64{pending, processing, deadLen})
}

func TestQueue_RetryIsDelayed(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	q := NewQueue(rdb, "exadocs:mail:delayed", 5)

	require.NoError(t, q.Enqueue(ctx, NewMessage(TemplateNewRating, "ana@unsl.edu.ar", "x", nil)))
	msg, err := q.Reserve(ctx, time.Second)
	require.NoError(t, err)

	retriedAt := time.Now()
	_, err = q.Retry(ctx, msg, 2*time.Second)
	require.NoError(t, err)

	// До истечения паузы письмо не выдаётся
	_, err = q.Reserve(ctx, 100*time.Millisecond)
	assert.True(t, errors.Is(err, ErrEmpty))

	var again Message
	require.Eventually(t, func() bool {
		again, err = q.Reserve(ctx, 100*time.Millisecond)
		return err == nil
	}, 5*time.Second, 100*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(retriedAt), 2*time.Second)
	assert.Equal(t, msg.ID, again.ID)
	assert.Equal(t, 1, again.Attempts)
}

func TestQueue_Dead(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	q := NewQueue(rdb, "exadocs:mail:dead", 5)

	require.NoError(t, q.Enqueue(ctx, NewMessage(TemplateNewReport, "ana@unsl.edu.ar", "x", nil)))
	msg, err := q.Reserve(ctx, time.Second)
	require.NoError(t, err)
	require.NoError(t, q.Dead(ctx, msg))

	pending, processing, deadLen, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 1}, []int64{pending, processing, deadLen})
}

func TestQueue_Recover(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	q := NewQueue(rdb, "exadocs:mail:recover", 3)

	require.NoError(t, q.Enqueue(ctx, NewMessage(TemplateNewComment, "ana@unsl.edu.ar", "x", nil)))
	_, err := q.Reserve(ctx, time.Second)
	require.NoError(t, err)

	// Обработчик «упал» без Ack
	n, err := q.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, processing, _, _ := q.Len(ctx)
	assert.Equal(t, int64(1), pending)
	assert.Equal(t, int64(0), processing)

	status, _ := NewReadinessChecker(rdb).CheckReady()
	assert.Equal(t, "ok", status)
}

func TestReadinessChecker_Unreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	status, msg := NewReadinessChecker(rdb).CheckReady()
	assert.Equal(t, "degraded", status)
	assert.Contains(t, msg, "Redis недоступен")
}
