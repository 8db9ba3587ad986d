package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"reservation-service/pkg/database"

	"go.uber.org/zap"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Port    string
	Storage string
	DB      DB
	Redis   Redis
	Kafka   Kafka
	Cache   Cache

	// LockTimeout: сколько попытка бронирования ждёт блокировки ночей.
	LockTimeout time.Duration
	// IntegrityInterval: период фоновой проверки целостности, 0 выключает её.
	IntegrityInterval time.Duration
	ShutdownTimeout   time.Duration
}

type DB struct {
	database.Config
}

type Redis struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type Kafka struct {
	Brokers      []string
	BookingTopic string
}

type Cache struct {
	Capacity      int
	SweepInterval time.Duration
}

func Load(log *zap.Logger) *Config {
	cfg := &Config{
		Port:    getEnv("APP_PORT", log),
		Storage: getEnvDefault("STORAGE", StoragePostgres),
		Redis: Redis{
			Enabled:  getEnvDefault("REDIS_ENABLED", "false") == "true",
			Addr:     getEnvDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       atoiDefault(os.Getenv("REDIS_DB"), 0),
		},
		Kafka: Kafka{
			Brokers:      splitAndTrim(os.Getenv("KAFKA_BROKERS")),
			BookingTopic: getEnvDefault("KAFKA_TOPIC_BOOKINGS", "bookings.created"),
		},
		Cache: Cache{
			Capacity:      atoiDefault(os.Getenv("CACHE_CAPACITY"), 10000),
			SweepInterval: durationDefault(os.Getenv("CACHE_SWEEP_INTERVAL"), time.Minute, log),
		},
		LockTimeout:       durationDefault(os.Getenv("RESERVATION_LOCK_TIMEOUT"), 3*time.Second, log),
		IntegrityInterval: durationDefault(os.Getenv("INTEGRITY_INTERVAL"), 0, log),
		ShutdownTimeout:   durationDefault(os.Getenv("SHUTDOWN_TIMEOUT"), 10*time.Second, log),
	}

	// in-memory хранилище не требует переменных БД
	if cfg.Storage == StoragePostgres {
		cfg.DB = LoadDB(log)
	}
	return cfg
}

// LoadDB читает только параметры подключения к БД (для cmd/migrate).
func LoadDB(log *zap.Logger) DB {
	return DB{
		Config: database.Config{
			Host:     getEnv("DB_HOST", log),
			Port:     getEnv("DB_PORT", log),
			User:     getEnv("DB_USER", log),
			Password: getEnv("DB_PASSWORD", log),
			Name:     getEnv("DB_NAME", log),
			SSLMode:  getEnv("DB_SSLMODE", log),
		},
	}
}

func getEnv(key string, log *zap.Logger) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	log.Error("Обязательная переменная окружения не установлена", zap.String("key", key))
	panic("missing required environment variable: " + key)
}

func getEnvDefault(key, def string) string {
	if val, exists := os.LookupEnv(key); exists && val != "" {
		return val
	}
	return def
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func durationDefault(s string, def time.Duration, log *zap.Logger) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Warn("Некорректная длительность, используется значение по умолчанию",
			zap.String("value", s), zap.Duration("default", def))
		return def
	}
	return d
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := []string{}
	for _, p := range strings.Split(s, ",") {
		pt := strings.TrimSpace(p)
		if pt != "" {
			parts = append(parts, pt)
		}
	}
	return parts
}
