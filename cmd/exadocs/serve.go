package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jorcase/exadocs/internal/api/handlers"
	"github.com/jorcase/exadocs/internal/api/middleware"
	"github.com/jorcase/exadocs/internal/config"
	"github.com/jorcase/exadocs/internal/database"
	"github.com/jorcase/exadocs/internal/mail"
	"github.com/jorcase/exadocs/internal/server"
	"github.com/jorcase/exadocs/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить HTTP API (и обработчик писем, если EXA_MAIL_WORKER=true)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("Запуск ExaDocs",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.Bool("mail_worker", cfg.MailWorkerEnabled),
	)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Миграции
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка применения миграций", slog.String("error", err.Error()))
		return err
	}

	// 2. PostgreSQL, Redis, сервисы
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации", slog.String("error", err.Error()))
		return err
	}
	defer a.Close()

	// 3. Мониторинг зависимостей
	sqlDB := stdlib.OpenDBFromPool(a.pool)
	defer sqlDB.Close()

	dh, err := service.NewDephealthService(service.DephealthConfig{
		Group:         cfg.DephealthGroup,
		DB:            sqlDB,
		PGConnURL:     cfg.DatabaseURL(),
		JWKSURL:       cfg.JWTJWKSURL,
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if err != nil {
		logger.Warn("Мониторинг зависимостей отключён", slog.String("error", err.Error()))
	} else {
		if err := dh.Start(ctx); err != nil {
			logger.Warn("Ошибка запуска мониторинга зависимостей", slog.String("error", err.Error()))
		}
		defer dh.Stop()
	}

	// 4. Аутентификация
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.JWKSCACert,
		cfg.JWTIssuer,
		a.svc.Users,
		cfg.JWKSClientTimeout,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка инициализации JWT", slog.String("error", err.Error()))
		return err
	}

	// 5. HTTP
	jwksChecker, err := middleware.NewJWKSReadinessChecker(cfg.JWTJWKSURL, cfg.JWKSCACert, cfg.JWKSClientTimeout)
	if err != nil {
		logger.Error("Ошибка инициализации проверки JWKS", slog.String("error", err.Error()))
		return err
	}
	health := handlers.NewHealthHandler(
		database.NewReadinessChecker(a.pool),
		mail.NewReadinessChecker(a.rdb),
		jwksChecker,
	)
	srv := server.New(cfg, logger, handlers.NewAPIHandler(health, a.svc, logger), jwtAuth)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	// 6. Обработчик очереди писем
	if cfg.MailWorkerEnabled {
		worker, err := a.newMailWorker()
		if err != nil {
			stop()
			_ = g.Wait()
			logger.Error("Ошибка инициализации обработчика писем", slog.String("error", err.Error()))
			return err
		}
		g.Go(func() error {
			return a.runMailWorker(gctx, worker)
		})
	}

	err = g.Wait()
	if err != nil {
		logger.Error("ExaDocs остановлен с ошибкой", slog.String("error", err.Error()))
		return err
	}
	logger.Info("ExaDocs остановлен")
	return nil
}
