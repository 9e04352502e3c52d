package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gatekeeper/internal/events"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	JWT      JWTConfig
	Renderer RendererConfig
	Event    EventConfig

	// Categories maps a ticket category key to its display name and
	// price (integer, minor-unit-free currency amount).
	Categories map[string]TicketCategory
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	AutoMigrate  bool
}

type RedisConfig struct {
	Addr    string
	Enabled bool
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	TicketIssued  string
	TicketScanned string
}

type JWTConfig struct {
	Secret           string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	BcryptCost       int
	VerifyCacheTTL   time.Duration
	SweepInterval    time.Duration
}

type RendererConfig struct {
	Secret string
	OutDir string
}

// EventConfig describes the single event tickets are sold for. Used in
// delivery messages only; the lifecycle core never reads it.
type EventConfig struct {
	Name     string
	Venue    string
	Date     string
	Time     string
	Currency string
}

type TicketCategory struct {
	Name  string
	Price int64
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			Env:          getEnv("APP_ENV", "development"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "gatekeeper"),
			Password:     getEnv("DB_PASSWORD", "gatekeeper"),
			Database:     getEnv("DB_NAME", "gatekeeper"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			AutoMigrate:  getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
			Enabled: getEnvBool("REDIS_ENABLED", true),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Topics: TopicConfig{
				TicketIssued:  getEnv("KAFKA_TOPIC_TICKET_ISSUED", events.DefaultTopicTicketIssued),
				TicketScanned: getEnv("KAFKA_TOPIC_TICKET_SCANNED", events.DefaultTopicTicketScanned),
			},
		},
		JWT: JWTConfig{
			Secret:         getEnv("JWT_SECRET", "change-me-in-production"),
			AccessTTL:      time.Duration(getEnvInt("JWT_ACCESS_TTL_MINUTES", 24*60)) * time.Minute,
			RefreshTTL:     time.Duration(getEnvInt("JWT_REFRESH_TTL_HOURS", 7*24)) * time.Hour,
			BcryptCost:     getEnvInt("BCRYPT_COST", 10),
			VerifyCacheTTL: time.Duration(getEnvInt("JWT_VERIFY_CACHE_SECONDS", 300)) * time.Second,
			SweepInterval:  time.Duration(getEnvInt("TOKEN_SWEEP_MINUTES", 60)) * time.Minute,
		},
		Renderer: RendererConfig{
			Secret: getEnv("QR_SECRET_KEY", "change-me-too"),
			OutDir: getEnv("TICKET_ARTIFACT_DIR", "public/tickets"),
		},
		Event: EventConfig{
			Name:     getEnv("EVENT_NAME", "Gatekeeper Live"),
			Venue:    getEnv("EVENT_VENUE", "Main Hall"),
			Date:     getEnv("EVENT_DATE", "2026-12-05"),
			Time:     getEnv("EVENT_TIME", "22:00"),
			Currency: getEnv("EVENT_CURRENCY", "XOF"),
		},
		Categories: map[string]TicketCategory{
			"vip": {
				Name:  "VIP",
				Price: int64(getEnvInt("PRICE_VIP", 10000)),
			},
			"standard": {
				Name:  "Standard",
				Price: int64(getEnvInt("PRICE_STANDARD", 5000)),
			},
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
