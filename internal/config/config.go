package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	DatabaseURL      string `env:"DATABASE_URL"`
	DatabaseMaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	HTTPPort         string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis Config
	RedisAddr        string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass        string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB" envDefault:"0"`
	IncidentCacheTTL time.Duration `env:"INCIDENT_CACHE_TTL" envDefault:"5m"`

	// Dispatch Config
	// Радиус поиска ответственных служб в метрах, по умолчанию 20 км
	DispatchRadiusMeters  float64       `env:"DISPATCH_RADIUS_METERS" envDefault:"20000"`
	DispatchCategoryLimit int           `env:"DISPATCH_CATEGORY_LIMIT" envDefault:"3"`
	DispatchConcurrency   int           `env:"DISPATCH_CONCURRENCY" envDefault:"4"`
	DispatchTimeout       time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"30s"`
	DispatchReportTTL     time.Duration `env:"DISPATCH_REPORT_TTL" envDefault:"24h"`

	// Messaging (WhatsApp via Twilio) Config
	TwilioAccountSID       string        `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken        string        `env:"TWILIO_AUTH_TOKEN"`
	TwilioWhatsAppFrom     string        `env:"TWILIO_WHATSAPP_FROM"`
	MessagingCountryCode   string        `env:"MESSAGING_COUNTRY_CODE" envDefault:"+977"`
	MessagingMaxAttempts   int           `env:"MESSAGING_MAX_ATTEMPTS" envDefault:"3"`
	MessagingBaseDelay     time.Duration `env:"MESSAGING_BASE_DELAY" envDefault:"500ms"`
	MessagingRatePerSecond float64       `env:"MESSAGING_RATE_PER_SECOND" envDefault:"5"`
	MessagingBurst         int           `env:"MESSAGING_BURST" envDefault:"5"`

	// Composer Config
	MessageTimezone string `env:"MESSAGE_TIMEZONE" envDefault:"Asia/Kathmandu"`

	// Realtime Config
	JWTSecret         string `env:"JWT_SECRET"`
	RealtimeQueueSize int    `env:"REALTIME_QUEUE_SIZE" envDefault:"64"`

	// Webhook Config
	WebhookURL        string        `env:"WEBHOOK_URL"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	WebhookMaxRetries int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	WebhookBaseDelay  time.Duration `env:"WEBHOOK_BASE_DELAY" envDefault:"1s"`

	// API Keys for authentication
	APIKeys []string `env:"API_KEYS"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DatabaseMaxConns: int32(getEnvAsInt("DATABASE_MAX_CONNS", 10)),
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getEnvAsInt("REDIS_DB", 0),
		IncidentCacheTTL: getEnvAsDuration("INCIDENT_CACHE_TTL", 5*time.Minute),

		DispatchRadiusMeters:  getEnvAsFloat("DISPATCH_RADIUS_METERS", 20000),
		DispatchCategoryLimit: getEnvAsInt("DISPATCH_CATEGORY_LIMIT", 3),
		DispatchConcurrency:   getEnvAsInt("DISPATCH_CONCURRENCY", 4),
		DispatchTimeout:       getEnvAsDuration("DISPATCH_TIMEOUT", 30*time.Second),
		DispatchReportTTL:     getEnvAsDuration("DISPATCH_REPORT_TTL", 24*time.Hour),

		TwilioAccountSID:       os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:        os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioWhatsAppFrom:     os.Getenv("TWILIO_WHATSAPP_FROM"),
		MessagingCountryCode:   getEnv("MESSAGING_COUNTRY_CODE", "+977"),
		MessagingMaxAttempts:   getEnvAsInt("MESSAGING_MAX_ATTEMPTS", 3),
		MessagingBaseDelay:     getEnvAsDuration("MESSAGING_BASE_DELAY", 500*time.Millisecond),
		MessagingRatePerSecond: getEnvAsFloat("MESSAGING_RATE_PER_SECOND", 5),
		MessagingBurst:         getEnvAsInt("MESSAGING_BURST", 5),

		MessageTimezone: getEnv("MESSAGE_TIMEZONE", "Asia/Kathmandu"),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		RealtimeQueueSize: getEnvAsInt("REALTIME_QUEUE_SIZE", 64),

		WebhookURL:        os.Getenv("WEBHOOK_URL"),
		WebhookSecret:     os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout:    getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		WebhookMaxRetries: getEnvAsInt("WEBHOOK_MAX_RETRIES", 3),
		WebhookBaseDelay:  getEnvAsDuration("WEBHOOK_BASE_DELAY", time.Second),
	}

	// Загрузка API ключей
	apiKeysStr := os.Getenv("API_KEYS")
	if apiKeysStr != "" {
		cfg.APIKeys = strings.Split(apiKeysStr, ",")
		for i, key := range cfg.APIKeys {
			cfg.APIKeys[i] = strings.TrimSpace(key)
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет значения, без которых диспетчеризация работает некорректно
func (c *Config) Validate() error {
	if c.DispatchRadiusMeters <= 0 {
		return fmt.Errorf("DISPATCH_RADIUS_METERS must be positive, got %v", c.DispatchRadiusMeters)
	}
	if c.DispatchCategoryLimit <= 0 {
		return fmt.Errorf("DISPATCH_CATEGORY_LIMIT must be positive, got %d", c.DispatchCategoryLimit)
	}
	if c.DispatchConcurrency <= 0 {
		return fmt.Errorf("DISPATCH_CONCURRENCY must be positive, got %d", c.DispatchConcurrency)
	}
	if c.MessagingMaxAttempts <= 0 {
		return fmt.Errorf("MESSAGING_MAX_ATTEMPTS must be positive, got %d", c.MessagingMaxAttempts)
	}
	if _, err := time.LoadLocation(c.MessageTimezone); err != nil {
		return fmt.Errorf("invalid MESSAGE_TIMEZONE %q: %w", c.MessageTimezone, err)
	}
	return nil
}

// MessagingEnabled сообщает, заданы ли учетные данные Twilio
func (c *Config) MessagingEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioWhatsAppFrom != ""
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloat возвращает значение переменной окружения как float64 или значение по умолчанию
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
