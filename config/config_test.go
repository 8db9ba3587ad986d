package config

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestLoad_MemoryStorageDefaults(t *testing.T) {
	t.Setenv("APP_PORT", ":8080")
	t.Setenv("STORAGE", StorageMemory)
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("RESERVATION_LOCK_TIMEOUT", "500ms")
	t.Setenv("INTEGRITY_INTERVAL", "not-a-duration")

	cfg := Load(zap.NewNop())

	if cfg.Port != ":8080" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.DB.Host != "" {
		t.Fatalf("db config must be empty for memory storage, got %+v", cfg.DB)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.LockTimeout != 500*time.Millisecond {
		t.Fatalf("lock timeout = %v", cfg.LockTimeout)
	}
	if cfg.IntegrityInterval != 0 {
		t.Fatalf("invalid duration must fall back to default, got %v", cfg.IntegrityInterval)
	}
	if cfg.Cache.Capacity != 10000 {
		t.Fatalf("cache capacity = %d", cfg.Cache.Capacity)
	}
}

func TestLoad_PanicsWithoutRequiredDBVars(t *testing.T) {
	t.Setenv("APP_PORT", ":8080")
	t.Setenv("STORAGE", StoragePostgres)
	t.Setenv("DB_HOST", "")
	os.Unsetenv("DB_HOST")

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for missing DB_HOST")
		}
	}()
	Load(zap.NewNop())
}
