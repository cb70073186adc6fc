package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/jorcase/exadocs/internal/api/handlers"
	"github.com/jorcase/exadocs/internal/config"
	"github.com/jorcase/exadocs/internal/database"
	"github.com/jorcase/exadocs/internal/mail"
	"github.com/jorcase/exadocs/internal/repository"
	"github.com/jorcase/exadocs/internal/service"
)

// app — собранные зависимости процесса.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
	rdb    *redis.Client
	queue  *mail.Queue
	svc    handlers.Services
}

// newRedis создаёт клиент Redis и проверяет подключение.
func newRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ошибка подключения к Redis %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("Подключение к Redis установлено",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)
	return rdb, nil
}

// newApp подключается к PostgreSQL и Redis и собирает сервисный слой.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	rdb, err := newRedis(ctx, cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		rdb:    rdb,
		queue:  mail.NewQueue(rdb, cfg.MailQueueKey, cfg.MailMaxAttempts),
	}
	a.svc = a.buildServices()
	return a, nil
}

// buildServices создаёт репозитории и сервисы поверх пула.
func (a *app) buildServices() handlers.Services {
	cfg, logger := a.cfg, a.logger

	// Repositories
	users := repository.NewUserRepository(a.pool)
	profiles := repository.NewProfileRepository(a.pool)
	catalog := repository.NewCatalogRepository(a.pool)
	states := repository.NewFileStateRepository(a.pool)
	files := repository.NewFileRepository(a.pool)
	history := repository.NewReviewHistoryRepository(a.pool)
	comments := repository.NewCommentRepository(a.pool)
	ratings := repository.NewRatingRepository(a.pool)
	reports := repository.NewReportRepository(a.pool)
	notifications := repository.NewNotificationRepository(a.pool)
	auditRepo := repository.NewAuditRepository(a.pool)

	// Services
	stateCache := service.NewStateCache(states, cfg.StateCacheSize, cfg.StateCacheTTL)
	audit := service.NewAuditService(auditRepo, logger)
	notifier := service.NewNotificationService(notifications, logger)
	dispatcher := service.NewDispatcher(notifier, a.queue, users, cfg.AppURL, logger)
	tx := service.NewTransactor(repository.NewTxRunner(a.pool))

	return handlers.Services{
		Users:         service.NewUserService(users, profiles, logger),
		Files:         service.NewFileService(files, catalog, history, stateCache, audit, dispatcher, logger),
		Review:        service.NewReviewService(tx, files, stateCache, dispatcher, cfg.ReviewTransitions, logger),
		Comments:      service.NewCommentService(comments, files, dispatcher, logger),
		Ratings:       service.NewRatingService(ratings, files, dispatcher, logger),
		Reports:       service.NewReportService(reports, files, audit, dispatcher, logger),
		Notifications: notifier,
		Profiles:      service.NewProfileService(profiles, audit, logger),
		Catalog:       service.NewCatalogService(catalog, states, stateCache, tx, audit, logger),
		Audit:         audit,
		Export:        service.NewExportService(files, logger),
	}
}

// newMailWorker создаёт обработчик очереди писем с SMTP-отправителем.
func (a *app) newMailWorker() (*mail.Worker, error) {
	renderer, err := mail.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("загрузка шаблонов писем: %w", err)
	}
	sender, err := mail.NewSMTPSender(mail.SMTPConfig{
		Host:      a.cfg.SMTPHost,
		Port:      a.cfg.SMTPPort,
		Username:  a.cfg.SMTPUsername,
		Password:  a.cfg.SMTPPassword,
		From:      a.cfg.SMTPFrom,
		TLSPolicy: a.cfg.SMTPTLSPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("создание SMTP-отправителя: %w", err)
	}
	backoff := mail.Backoff{Base: a.cfg.MailRetryBackoff, Max: a.cfg.MailRetryMaxBackoff}
	return mail.NewWorker(a.queue, renderer, sender, a.cfg.MailPollTimeout, backoff, a.logger), nil
}

// runMailWorker возвращает зависшие письма в очередь и обрабатывает её до отмены ctx.
func (a *app) runMailWorker(ctx context.Context, worker *mail.Worker) error {
	recovered, err := a.queue.Recover(ctx)
	if err != nil {
		return fmt.Errorf("восстановление очереди писем: %w", err)
	}
	if recovered > 0 {
		a.logger.Warn("Письма возвращены в очередь после прерванной обработки",
			slog.Int("count", recovered),
		)
	}
	return worker.Run(ctx)
}

// Close освобождает подключения.
func (a *app) Close() {
	if err := a.rdb.Close(); err != nil {
		a.logger.Warn("Ошибка закрытия Redis", slog.String("error", err.Error()))
	}
	a.pool.Close()
}
