package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("addr default: %s", cfg.HTTPAddr)
	}
	if cfg.KafkaTopic != "relay-events" || cfg.RedisTrackKey != "routes_pos" {
		t.Fatalf("stream defaults: %+v", cfg)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level default: %s", cfg.LogLevel)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("HTTP_READ_TIMEOUT", "2s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("MIGRATE", "true")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" || cfg.ReadTimeout != 2*time.Second {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("broker list: %v", cfg.KafkaBrokers)
	}
	if cfg.LogLevel != "debug" || !cfg.RunMigrations {
		t.Fatalf("log/migrate: %+v", cfg)
	}
}

func TestInvalidDurationReported(t *testing.T) {
	t.Setenv("HTTP_READ_TIMEOUT", "soon")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func TestFileOverlayThenEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	body := "http_addr: \":7000\"\nkafka_topic: file-topic\nlog_level: warn\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("KAFKA_TOPIC", "env-topic")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":7000" || cfg.LogLevel != "warn" {
		t.Fatalf("file overlay not applied: %+v", cfg)
	}
	if cfg.KafkaTopic != "env-topic" {
		t.Fatalf("env should override file: %s", cfg.KafkaTopic)
	}
}

func TestBadLogLevelFailsValidation(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected validation error for bad log level")
	}
}
