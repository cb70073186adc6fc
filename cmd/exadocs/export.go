package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jorcase/exadocs/internal/database"
	"github.com/jorcase/exadocs/internal/repository"
	"github.com/jorcase/exadocs/internal/service"
)

var exportOut string

// exportCmd выгружает каталог файлов в XLSX без HTTP —
// для регламентных отчётов.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Выгрузить файлы в XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		// Выгрузка читает только PostgreSQL: Redis не нужен
		ctx := cmd.Context()
		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer pool.Close()
		export := service.NewExportService(repository.NewFileRepository(pool), logger)

		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("создание файла %s: %w", exportOut, err)
		}

		rows, err := export.WriteXLSX(ctx, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(exportOut)
			return fmt.Errorf("выгрузка файлов: %w", err)
		}

		logger.Info("Выгрузка завершена",
			slog.String("path", exportOut),
			slog.Int("rows", rows),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "exadocs-files.xlsx", "путь к XLSX-файлу")
	rootCmd.AddCommand(exportCmd)
}
