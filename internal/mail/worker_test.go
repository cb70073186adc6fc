package mail

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQueue — очередь в памяти для тестов обработчика.
// Отложенные письма выдаются только после своего срока.
type fakeQueue struct {
	mu          sync.Mutex
	pending     []Message
	delayed     []delayedMessage
	acked       []Message
	retried     []Message
	delays      []time.Duration
	dead        []Message
	maxAttempts int
	cancel      context.CancelFunc
}

type delayedMessage struct {
	msg     Message
	readyAt time.Time
}

func (q *fakeQueue) Reserve(ctx context.Context, timeout time.Duration) (Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	kept := q.delayed[:0]
	for _, d := range q.delayed {
		if now.Before(d.readyAt) {
			kept = append(kept, d)
			continue
		}
		q.pending = append(q.pending, d.msg)
	}
	q.delayed = kept

	if len(q.pending) == 0 {
		if len(q.delayed) == 0 {
			// Очередь опустела — останавливаем обработчик
			q.cancel()
			return Message{}, ErrEmpty
		}
		q.mu.Unlock()
		time.Sleep(timeout)
		q.mu.Lock()
		return Message{}, ErrEmpty
	}
	msg := q.pending[0]
	q.pending = q.pending[1:]
	return msg, nil
}

func (q *fakeQueue) Ack(_ context.Context, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, msg)
	return nil
}

func (q *fakeQueue) Retry(_ context.Context, msg Message, delay time.Duration) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	msg.Attempts++
	if msg.Attempts >= q.maxAttempts {
		q.dead = append(q.dead, msg)
		return true, nil
	}
	q.retried = append(q.retried, msg)
	q.delays = append(q.delays, delay)
	q.delayed = append(q.delayed, delayedMessage{msg: msg, readyAt: time.Now().Add(delay)})
	return false, nil
}

func (q *fakeQueue) Dead(_ context.Context, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, msg)
	return nil
}

// fakeSender запоминает письма; fail — получатели, для которых отправка падает.
type fakeSender struct {
	sent     []string
	fail     map[string]bool
	attempts []time.Time
}

func (s *fakeSender) Send(_ context.Context, to, subject, body string) error {
	s.attempts = append(s.attempts, time.Now())
	if s.fail[to] {
		return errors.New("smtp: 421 service not available")
	}
	s.sent = append(s.sent, to+"|"+subject)
	return nil
}

// testBackoff — короткие паузы, чтобы тесты шли быстро.
var testBackoff = Backoff{Base: 20 * time.Millisecond, Max: 200 * time.Millisecond}

func newTestWorker(t *testing.T, q *fakeQueue, s Sender) *Worker {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)
	return NewWorker(q, r, s, 5*time.Millisecond, testBackoff, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestWorker_SendsAndAcks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := &fakeQueue{maxAttempts: 3, cancel: cancel, pending: []Message{
		NewMessage(TemplateNewComment, "ana@unsl.edu.ar", "Nuevo comentario", map[string]any{"title": "A", "body": "b"}),
		NewMessage(TemplateNewRating, "beto@unsl.edu.ar", "Nueva calificación", map[string]any{"title": "B", "score": 5}),
	}}
	s := &fakeSender{}

	require.NoError(t, newTestWorker(t, q, s).Run(ctx))

	assert.Len(t, q.acked, 2)
	assert.Empty(t, q.retried)
	assert.Equal(t, []string{"ana@unsl.edu.ar|Nuevo comentario", "beto@unsl.edu.ar|Nueva calificación"}, s.sent)
}

func TestWorker_RetriesThenDeadLetters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := &fakeQueue{maxAttempts: 3, cancel: cancel, pending: []Message{
		NewMessage(TemplateFileCreated, "down@unsl.edu.ar", "Archivo subido", map[string]any{"title": "A"}),
	}}
	s := &fakeSender{fail: map[string]bool{"down@unsl.edu.ar": true}}

	require.NoError(t, newTestWorker(t, q, s).Run(ctx))

	assert.Empty(t, q.acked)
	assert.Len(t, q.retried, 2, "две повторные попытки до dead-letter")
	require.Len(t, q.dead, 1)
	assert.Equal(t, 3, q.dead[0].Attempts)
}

func TestWorker_RetriesAreSpacedByBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := &fakeQueue{maxAttempts: 4, cancel: cancel, pending: []Message{
		NewMessage(TemplateFileStateChanged, "down@unsl.edu.ar", "Estado", map[string]any{"title": "A"}),
	}}
	s := &fakeSender{fail: map[string]bool{"down@unsl.edu.ar": true}}

	require.NoError(t, newTestWorker(t, q, s).Run(ctx))

	require.Len(t, s.attempts, 4)
	require.Len(t, q.dead, 1)
	assert.Equal(t, []time.Duration{20 * time.Millisecond, 40 * time.Millisecond, 80 * time.Millisecond}, q.delays)
	for i := 1; i < len(s.attempts); i++ {
		gap := s.attempts[i].Sub(s.attempts[i-1])
		assert.GreaterOrEqual(t, gap, testBackoff.Delay(i-1), "пауза перед попыткой %d", i+1)
	}
}

func TestWorker_OtherMailNotBlockedByRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := &fakeQueue{maxAttempts: 2, cancel: cancel, pending: []Message{
		NewMessage(TemplateFileCreated, "down@unsl.edu.ar", "Archivo subido", map[string]any{"title": "A"}),
		NewMessage(TemplateFileCreated, "ana@unsl.edu.ar", "Archivo subido", map[string]any{"title": "B"}),
	}}
	s := &fakeSender{fail: map[string]bool{"down@unsl.edu.ar": true}}

	require.NoError(t, newTestWorker(t, q, s).Run(ctx))

	// Второе письмо отправлено сразу, не дожидаясь паузы первого
	require.Len(t, s.attempts, 3)
	assert.Less(t, s.attempts[1].Sub(s.attempts[0]), testBackoff.Base)
	assert.Equal(t, []string{"ana@unsl.edu.ar|Archivo subido"}, s.sent)
}

func TestWorker_RenderFailureGoesToDeadLetter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := &fakeQueue{maxAttempts: 5, cancel: cancel, pending: []Message{
		NewMessage("welcome", "ana@unsl.edu.ar", "Hola", nil),
	}}
	s := &fakeSender{}

	require.NoError(t, newTestWorker(t, q, s).Run(ctx))

	assert.Empty(t, s.attempts)
	assert.Empty(t, q.retried, "ошибка рендеринга не повторяется")
	require.Len(t, q.dead, 1)
	assert.Equal(t, 0, q.dead[0].Attempts)
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 10 * time.Second}
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{60, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempts); got != tt.want {
			t.Errorf("Delay(%d) = %v, ожидается %v", tt.attempts, got, tt.want)
		}
	}
}
