// Пакет config — загрузка и валидация конфигурации ExaDocs.
// Источники: переменные окружения с префиксом EXA_ и (опционально)
// конфигурационный файл, переданный через --config. Переменные окружения
// имеют приоритет над файлом.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// envPrefix — префикс переменных окружения.
const envPrefix = "EXA"

// Config содержит все параметры конфигурации ExaDocs.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Разрешённые CORS origins фронтенда
	CORSAllowedOrigins []string
	// Публичный URL фронтенда (ссылки в письмах)
	AppURL string

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Максимум соединений пула
	DBMaxConns int32

	// --- JWT ---

	// URL JWKS endpoint провайдера идентификации
	JWTJWKSURL string
	// Ожидаемый issuer (пустой — не проверяется)
	JWTIssuer string
	// Допустимое отклонение времени при проверке exp/nbf
	JWTLeeway time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Путь к CA-сертификату для TLS к JWKS (опционально)
	JWKSCACert string

	// --- Redis (очередь писем) ---

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Ключ списка очереди писем
	MailQueueKey string

	// --- Почта ---

	// Запускать ли обработчик очереди писем внутри serve
	MailWorkerEnabled bool
	// Максимум попыток отправки письма до dead-letter
	MailMaxAttempts int
	// Таймаут блокирующего чтения очереди
	MailPollTimeout time.Duration
	// Пауза перед повтором: base * 2^(attempts), не больше max
	MailRetryBackoff    time.Duration
	MailRetryMaxBackoff time.Duration
	SMTPHost            string
	SMTPPort            int
	SMTPUsername        string
	SMTPPassword        string
	SMTPFrom            string
	// Политика TLS: mandatory, opportunistic, none
	SMTPTLSPolicy string

	// --- Рабочий процесс ревью ---

	// Разрешённые переходы состояний (пусто — любые переходы).
	// Ключ — имя исходного состояния, значение — набор целевых.
	ReviewTransitions map[string][]string
	// Размер и TTL кэша справочника состояний
	StateCacheSize int
	StateCacheTTL  time.Duration

	// --- Мониторинг зависимостей ---

	DephealthCheckInterval time.Duration
	DephealthGroup         string

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// loader — обёртка над viper с чтением строковых значений.
// Разбор чисел и длительностей выполняется вручную, чтобы
// некорректное значение давало ошибку, а не молчаливый ноль.
type loader struct {
	v *viper.Viper
}

// Load загружает конфигурацию из окружения и (если задан) файла,
// валидирует обязательные поля и возвращает Config или ошибку.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("чтение конфигурационного файла %s: %w", configFile, err)
		}
	}

	l := loader{v: v}
	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = l.int("port", 8080)
	if err != nil {
		return nil, err
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("%s: значение %d вне допустимого диапазона 1-65535", envName("port"), cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(l.str("log_level", "info"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", envName("log_level"), err)
	}

	cfg.LogFormat = l.str("log_format", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("%s: недопустимое значение %q, допустимые: json, text", envName("log_format"), cfg.LogFormat)
	}

	cfg.CORSAllowedOrigins = parseCSV(l.str("cors_allowed_origins", "*"))
	cfg.AppURL = strings.TrimRight(l.str("app_url", "http://localhost:3000"), "/")

	// --- PostgreSQL ---

	if cfg.DBHost, err = l.required("db_host"); err != nil {
		return nil, err
	}
	if cfg.DBPort, err = l.int("db_port", 5432); err != nil {
		return nil, err
	}
	if cfg.DBName, err = l.required("db_name"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = l.required("db_user"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = l.required("db_password"); err != nil {
		return nil, err
	}

	cfg.DBSSLMode = l.str("db_ssl_mode", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("%s: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full",
			envName("db_ssl_mode"), cfg.DBSSLMode)
	}
	maxConns, err := l.int("db_max_conns", 10)
	if err != nil {
		return nil, err
	}
	if maxConns < 1 || maxConns > 200 {
		return nil, fmt.Errorf("%s: значение %d вне допустимого диапазона 1-200", envName("db_max_conns"), maxConns)
	}
	cfg.DBMaxConns = int32(maxConns)

	// --- JWT ---

	if cfg.JWTJWKSURL, err = l.required("jwt_jwks_url"); err != nil {
		return nil, err
	}
	cfg.JWTIssuer = l.str("jwt_issuer", "")
	if cfg.JWTLeeway, err = l.duration("jwt_leeway", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.JWKSRefreshInterval, err = l.duration("jwks_refresh_interval", 15*time.Minute); err != nil {
		return nil, err
	}
	cfg.JWKSCACert = l.str("jwks_ca_cert", "")
	if cfg.JWKSClientTimeout, err = l.duration("jwks_client_timeout", 10*time.Second); err != nil {
		return nil, err
	}

	// --- Redis ---

	cfg.RedisAddr = l.str("redis_addr", "localhost:6379")
	cfg.RedisPassword = l.str("redis_password", "")
	if cfg.RedisDB, err = l.int("redis_db", 0); err != nil {
		return nil, err
	}
	if cfg.RedisDB < 0 || cfg.RedisDB > 15 {
		return nil, fmt.Errorf("%s: значение %d вне допустимого диапазона 0-15", envName("redis_db"), cfg.RedisDB)
	}
	cfg.MailQueueKey = l.str("mail_queue_key", "exadocs:mail")

	// --- Почта ---

	if cfg.MailWorkerEnabled, err = l.bool("mail_worker", false); err != nil {
		return nil, err
	}
	if cfg.MailMaxAttempts, err = l.int("mail_max_attempts", 5); err != nil {
		return nil, err
	}
	if cfg.MailMaxAttempts < 1 || cfg.MailMaxAttempts > 50 {
		return nil, fmt.Errorf("%s: значение %d вне допустимого диапазона 1-50", envName("mail_max_attempts"), cfg.MailMaxAttempts)
	}
	if cfg.MailPollTimeout, err = l.duration("mail_poll_timeout", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.MailRetryBackoff, err = l.duration("mail_retry_backoff", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.MailRetryMaxBackoff, err = l.duration("mail_retry_max_backoff", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.MailRetryBackoff <= 0 || cfg.MailRetryMaxBackoff < cfg.MailRetryBackoff {
		return nil, fmt.Errorf("%s (%s) должен быть > 0 и не больше %s (%s)",
			envName("mail_retry_backoff"), cfg.MailRetryBackoff,
			envName("mail_retry_max_backoff"), cfg.MailRetryMaxBackoff)
	}
	cfg.SMTPHost = l.str("smtp_host", "localhost")
	if cfg.SMTPPort, err = l.int("smtp_port", 587); err != nil {
		return nil, err
	}
	cfg.SMTPUsername = l.str("smtp_username", "")
	cfg.SMTPPassword = l.str("smtp_password", "")
	cfg.SMTPFrom = l.str("smtp_from", "ExaDocs <no-reply@exadocs.local>")
	cfg.SMTPTLSPolicy = l.str("smtp_tls_policy", "opportunistic")
	switch cfg.SMTPTLSPolicy {
	case "mandatory", "opportunistic", "none":
	default:
		return nil, fmt.Errorf("%s: недопустимое значение %q, допустимые: mandatory, opportunistic, none",
			envName("smtp_tls_policy"), cfg.SMTPTLSPolicy)
	}

	// --- Ревью ---

	cfg.ReviewTransitions, err = parseTransitions(l.str("review_transitions", ""))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", envName("review_transitions"), err)
	}
	if cfg.StateCacheSize, err = l.int("state_cache_size", 64); err != nil {
		return nil, err
	}
	if cfg.StateCacheSize < 1 {
		return nil, fmt.Errorf("%s: значение должно быть положительным", envName("state_cache_size"))
	}
	if cfg.StateCacheTTL, err = l.duration("state_cache_ttl", 5*time.Minute); err != nil {
		return nil, err
	}

	// --- Мониторинг ---

	if cfg.DephealthCheckInterval, err = l.duration("dephealth_check_interval", 15*time.Second); err != nil {
		return nil, err
	}
	cfg.DephealthGroup = l.str("dephealth_group", "exadocs")

	if cfg.ShutdownTimeout, err = l.duration("shutdown_timeout", 10*time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов метрик).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// envName возвращает имя переменной окружения для ключа конфигурации.
func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(key)
}

func (l loader) str(key, defaultVal string) string {
	val := strings.TrimSpace(l.v.GetString(key))
	if val == "" {
		return defaultVal
	}
	return val
}

func (l loader) required(key string) (string, error) {
	val := strings.TrimSpace(l.v.GetString(key))
	if val == "" {
		return "", fmt.Errorf("%s: обязательный параметр не задан", envName(key))
	}
	return val, nil
}

func (l loader) int(key string, defaultVal int) (int, error) {
	val := l.str(key, "")
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: некорректное целое число: %q", envName(key), val)
	}
	return n, nil
}

func (l loader) bool(key string, defaultVal bool) (bool, error) {
	val := l.str(key, "")
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%s: некорректное логическое значение: %q", envName(key), val)
	}
	return b, nil
}

func (l loader) duration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := l.str(key, "")
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", envName(key), val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// parseTransitions разбирает список переходов вида "A>B,A>C,B>D".
// Пустая строка — nil (ограничений нет).
func parseTransitions(s string) (map[string][]string, error) {
	pairs := parseCSV(s)
	if len(pairs) == 0 {
		return nil, nil
	}
	result := make(map[string][]string, len(pairs))
	for _, p := range pairs {
		from, to, ok := strings.Cut(p, ">")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, errors.New("некорректный переход " + strconv.Quote(p) + ", ожидается формат Исходное>Целевое")
		}
		result[from] = append(result[from], to)
	}
	return result, nil
}
