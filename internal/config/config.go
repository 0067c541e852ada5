package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config содержит настройки приложения
type Config struct {
	DBHost     string // Хост базы данных
	DBPort     string // Порт базы данных
	DBUser     string // Пользователь базы данных
	DBPassword string // Пароль базы данных
	DBName     string // Имя базы данных
	DBSSLMode  string

	JWTSecret   string        // Секрет для JWT
	TokenExpiry time.Duration // Время жизни токена

	HTTPAddr string
	LogLevel string
	Storage  string // postgres или memory

	LockTimeout    time.Duration // ожидание блокировки карты
	PublishTimeout time.Duration // публикация события после фиксации операции

	AccrualSchedule string // cron-выражение ежемесячного начисления процентов
	AccrualPageSize int

	CreditDefaultLimit decimal.Decimal
	CreditDefaultRate  decimal.Decimal
	CreditRateMargin   decimal.Decimal // надбавка к ключевой ставке ЦБ
	CreditUseKeyRate   bool
	CBREndpoint        string
	CardValidityYears  int

	EventPollInterval time.Duration
	EventBatchSize    int
	EventMaxAttempts  int

	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPass           string
	EmailSenderEnabled bool
	InsecureSkipVerify bool

	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// LoadConfig загружает конфигурацию из .env файла и переменных окружения
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("Файл .env не найден")
	}

	config := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "bank_cards"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:   getEnv("JWT_SECRET", "default-secret-key"),
		TokenExpiry: getEnvDuration("TOKEN_EXPIRY", 24*time.Hour),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Storage:  strings.ToLower(getEnv("STORAGE", StoragePostgres)),

		LockTimeout:    getEnvDuration("LOCK_TIMEOUT", 5*time.Second),
		PublishTimeout: getEnvDuration("PUBLISH_TIMEOUT", 3*time.Second),

		AccrualSchedule: getEnv("ACCRUAL_SCHEDULE", "0 0 1 * *"),
		AccrualPageSize: getEnvInt("ACCRUAL_PAGE_SIZE", 500),

		CreditDefaultLimit: getEnvDecimal("CREDIT_DEFAULT_LIMIT", decimal.NewFromInt(50000)),
		CreditDefaultRate:  getEnvDecimal("CREDIT_DEFAULT_RATE", decimal.NewFromInt(25)),
		CreditRateMargin:   getEnvDecimal("CREDIT_RATE_MARGIN", decimal.NewFromInt(5)),
		CreditUseKeyRate:   getEnvBool("CREDIT_USE_KEY_RATE", false),
		CBREndpoint:        getEnv("CBR_ENDPOINT", ""),
		CardValidityYears:  getEnvInt("CARD_VALIDITY_YEARS", 5),

		EventPollInterval: getEnvDuration("EVENT_POLL_INTERVAL", 2*time.Second),
		EventBatchSize:    getEnvInt("EVENT_BATCH_SIZE", 50),
		EventMaxAttempts:  getEnvInt("EVENT_MAX_ATTEMPTS", 5),

		SMTPHost:           getEnv("SMTP_HOST", "smtp.example.com"),
		SMTPPort:           getEnvInt("SMTP_PORT", 587),
		SMTPUser:           getEnv("SMTP_USER", "noreply@example.com"),
		SMTPPass:           getEnv("SMTP_PASS", ""),
		EmailSenderEnabled: getEnvBool("EMAIL_SENDER_ENABLED", false),
		InsecureSkipVerify: getEnvBool("INSECURE_SKIP_VERIFY", false),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate проверяет значения, при которых приложение не сможет работать корректно
func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("неизвестное хранилище %q", c.Storage)
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("LOCK_TIMEOUT должен быть положительным")
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("PUBLISH_TIMEOUT должен быть положительным")
	}
	if c.AccrualPageSize <= 0 {
		return fmt.Errorf("ACCRUAL_PAGE_SIZE должен быть положительным")
	}
	if c.EventBatchSize <= 0 || c.EventMaxAttempts <= 0 {
		return fmt.Errorf("EVENT_BATCH_SIZE и EVENT_MAX_ATTEMPTS должны быть положительными")
	}
	if c.CardValidityYears <= 0 {
		return fmt.Errorf("CARD_VALIDITY_YEARS должен быть положительным")
	}
	if !c.CreditDefaultLimit.IsPositive() || c.CreditDefaultRate.IsNegative() {
		return fmt.Errorf("некорректные параметры кредита по умолчанию")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("некорректный LOG_LEVEL: %w", err)
	}
	return nil
}

// DSN строка подключения в формате URL, её принимают и lib/pq, и pgx
func (c *Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	value, err := decimal.NewFromString(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
