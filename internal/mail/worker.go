package mail

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// workQueue — операции очереди, нужные обработчику.
type workQueue interface {
	Reserve(ctx context.Context, timeout time.Duration) (Message, error)
	Ack(ctx context.Context, msg Message) error
	Retry(ctx context.Context, msg Message, delay time.Duration) (bool, error)
	Dead(ctx context.Context, msg Message) error
}

// Backoff — экспоненциальная пауза между попытками отправки.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay возвращает паузу перед следующей попыткой: Base * 2^attempts, не больше Max.
func (b Backoff) Delay(attempts int) time.Duration {
	d := b.Base
	for i := 0; i < attempts; i++ {
		if d >= b.Max/2 {
			return b.Max
		}
		d *= 2
	}
	return min(d, b.Max)
}

// Worker — обработчик очереди писем: reserve → render → send → ack/retry.
type Worker struct {
	queue       workQueue
	renderer    *Renderer
	sender      Sender
	pollTimeout time.Duration
	backoff     Backoff
	logger      *slog.Logger
}

// NewWorker создаёт обработчик очереди писем.
func NewWorker(queue workQueue, renderer *Renderer, sender Sender, pollTimeout time.Duration, backoff Backoff, logger *slog.Logger) *Worker {
	return &Worker{
		queue:       queue,
		renderer:    renderer,
		sender:      sender,
		pollTimeout: pollTimeout,
		backoff:     backoff,
		logger:      logger.With(slog.String("component", "mail_worker")),
	}
}

// Run обрабатывает письма до отмены ctx.
// Ошибки Redis не останавливают цикл: пауза и повтор.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Обработчик очереди писем запущен",
		slog.String("poll_timeout", w.pollTimeout.String()),
		slog.String("retry_backoff", w.backoff.Base.String()),
	)

	for {
		if ctx.Err() != nil {
			w.logger.Info("Обработчик очереди писем остановлен")
			return nil
		}

		msg, err := w.queue.Reserve(ctx, w.pollTimeout)
		switch {
		case errors.Is(err, ErrEmpty):
			continue
		case err != nil:
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("Ошибка чтения очереди писем", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		w.process(ctx, msg)
	}
}

// process обрабатывает одно письмо.
func (w *Worker) process(ctx context.Context, msg Message) {
	log := w.logger.With(
		slog.String("message_id", msg.ID),
		slog.String("template", msg.Template),
		slog.Int("attempts", msg.Attempts),
	)

	body, err := w.renderer.Render(msg)
	if err != nil {
		// Шаблон и данные не меняются между попытками — сразу в dead-letter
		mailFailedTotal.WithLabelValues(msg.Template, "render").Inc()
		log.Error("Ошибка рендеринга письма, перенос в dead-letter", slog.String("error", err.Error()))
		if err := w.queue.Dead(ctx, msg); err != nil {
			log.Error("Ошибка переноса письма в dead-letter", slog.String("error", err.Error()))
		}
		return
	}

	if err := w.sender.Send(ctx, msg.To, msg.Subject, body); err != nil {
		mailFailedTotal.WithLabelValues(msg.Template, "send").Inc()
		log.Warn("Ошибка отправки письма", slog.String("error", err.Error()))
		w.retry(ctx, msg, log)
		return
	}

	if err := w.queue.Ack(ctx, msg); err != nil {
		// Письмо отправлено, но останется в processing: возможна повторная доставка
		log.Error("Ошибка подтверждения письма", slog.String("error", err.Error()))
	}
	mailSentTotal.WithLabelValues(msg.Template).Inc()
	log.Debug("Письмо отправлено")
}

// retry откладывает письмо на паузу, растущую с числом попыток.
func (w *Worker) retry(ctx context.Context, msg Message, log *slog.Logger) {
	delay := w.backoff.Delay(msg.Attempts)
	dead, err := w.queue.Retry(ctx, msg, delay)
	if err != nil {
		log.Error("Ошибка повторной постановки письма", slog.String("error", err.Error()))
		return
	}
	if dead {
		mailFailedTotal.WithLabelValues(msg.Template, "dead").Inc()
		log.Error("Письмо перенесено в dead-letter после исчерпания попыток")
		return
	}
	log.Info("Письмо отложено для повторной отправки", slog.String("delay", delay.String()))
}
