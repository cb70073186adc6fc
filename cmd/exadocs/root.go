package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jorcase/exadocs/internal/config"
)

// configFile — путь к необязательному файлу конфигурации (--config).
var configFile string

// rootCmd — корневая команда CLI.
var rootCmd = &cobra.Command{
	Use:   "exadocs",
	Short: "ExaDocs — репозиторий учебных материалов",
	Long: `ExaDocs хранит учебные архивы студентов, проводит их через ревью
модераторов и уведомляет авторов о смене состояния.

Конфигурация читается из переменных окружения EXA_* и, опционально,
из файла, заданного флагом --config (окружение имеет приоритет).`,
	SilenceUsage: true,
}

// Execute запускает корневую команду.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = config.Version
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "файл конфигурации (yaml, json, toml)")
}

// loadConfig загружает конфигурацию и настраивает логирование.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	logger := config.SetupLogger(cfg)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
