package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// mailerCmd запускает только обработчик очереди писем — для отдельного
// деплоя воркера без HTTP API.
var mailerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Запустить обработчик очереди писем",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		worker, err := a.newMailWorker()
		if err != nil {
			return err
		}

		logger.Info("Обработчик писем запущен",
			slog.String("queue", cfg.MailQueueKey),
			slog.String("smtp_host", cfg.SMTPHost),
		)
		return a.runMailWorker(ctx, worker)
	},
}

func init() {
	rootCmd.AddCommand(mailerCmd)
}
