package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		Port:           "8081",
		DataBackend:    "sqlite",
		SQLiteDBPath:   filepath.Join(dir, "saldo.db"),
		MirrorBackend:  "xlsx",
		MirrorPath:     filepath.Join(dir, "financial_data.xlsx"),
		EventsBackend:  "none",
		AlertInterval:  60 * time.Second,
		SyncInterval:   5 * time.Minute,
		DefaultBalance: "1000",
		Currency:       "EUR",
		RatesURL:       "https://open.er-api.com/v6/latest/EUR",
		RatesTTL:       5 * time.Minute,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errorString string
	}{
		{
			name:    "valid default config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range high",
			mutate:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "invalid data backend",
			mutate:      func(c *Config) { c.DataBackend = "postgres" },
			wantErr:     true,
			errorString: "invalid data backend 'postgres': must be one of [sqlite memory]",
		},
		{
			name:        "sqlite backend missing database path",
			mutate:      func(c *Config) { c.SQLiteDBPath = "" },
			wantErr:     true,
			errorString: "SQLite database path cannot be empty when using sqlite backend",
		},
		{
			name:    "memory backend ignores database path",
			mutate:  func(c *Config) { c.DataBackend = "memory"; c.SQLiteDBPath = "" },
			wantErr: false,
		},
		{
			name:        "xlsx mirror with wrong extension",
			mutate:      func(c *Config) { c.MirrorPath = "./data/financial_data.csv" },
			wantErr:     true,
			errorString: "must end in .xlsx",
		},
		{
			name:        "sheets mirror without spreadsheet",
			mutate:      func(c *Config) { c.MirrorBackend = "sheets" },
			wantErr:     true,
			errorString: "Google Spreadsheet ID is required when using sheets mirror",
		},
		{
			name:    "mirror disabled",
			mutate:  func(c *Config) { c.MirrorBackend = "none"; c.MirrorPath = "" },
			wantErr: false,
		},
		{
			name: "amqp events with bad scheme",
			mutate: func(c *Config) {
				c.EventsBackend = "amqp"
				c.AMQPURL = "http://localhost:5672/"
				c.AMQPExchange = "saldo"
				c.AMQPQueue = "mirror_sync"
			},
			wantErr:     true,
			errorString: "invalid AMQP URL scheme 'http': must be 'amqp' or 'amqps'",
		},
		{
			name:        "kafka events without brokers",
			mutate:      func(c *Config) { c.EventsBackend = "kafka"; c.KafkaTopic = "ledger-commits" },
			wantErr:     true,
			errorString: "at least one Kafka broker is required",
		},
		{
			name:        "sync interval too short",
			mutate:      func(c *Config) { c.SyncInterval = 500 * time.Millisecond },
			wantErr:     true,
			errorString: "invalid sync interval 500ms: must be at least 1 second",
		},
		{
			name:        "bad default balance",
			mutate:      func(c *Config) { c.DefaultBalance = "a lot" },
			wantErr:     true,
			errorString: "invalid default balance 'a lot'",
		},
		{
			name:        "unknown currency",
			mutate:      func(c *Config) { c.Currency = "XXQ" },
			wantErr:     true,
			errorString: "unknown currency 'XXQ'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error containing %q", tt.errorString)
				}
				if !strings.Contains(err.Error(), tt.errorString) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errorString)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.Port = "0"
	cfg.EventsBackend = "carrier-pigeon"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "configuration validation failed:") {
		t.Errorf("unexpected prefix: %q", msg)
	}
	if strings.Count(msg, "\n- ") != 2 {
		t.Errorf("expected two listed problems, got %q", msg)
	}
}

func TestConfig_ValidateCreatesDatabaseDir(t *testing.T) {
	cfg := validConfig(t)
	dir := filepath.Join(t.TempDir(), "nested", "data")
	cfg.SQLiteDBPath = filepath.Join(dir, "saldo.db")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("database directory not created: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, key := range []string{"PORT", "DATA_BACKEND", "MIRROR_BACKEND", "EVENTS_BACKEND", "KAFKA_BROKERS", "ALERT_INTERVAL", "MIRROR_EXPORT_ON_COMMIT", "CURRENCY", "DEFAULT_BALANCE"} {
			t.Setenv(key, "")
		}
		cfg := Load()
		if cfg.Port != "8081" || cfg.DataBackend != "sqlite" || cfg.MirrorBackend != "xlsx" || cfg.EventsBackend != "none" {
			t.Errorf("unexpected defaults: %+v", cfg)
		}
		if cfg.AlertInterval != 60*time.Second {
			t.Errorf("alert interval default: %v", cfg.AlertInterval)
		}
		if !cfg.MirrorExportOnCommit {
			t.Error("mirror export on commit should default to true")
		}
		if cfg.Currency != "EUR" {
			t.Errorf("currency default: %s", cfg.Currency)
		}
		if cfg.OpeningBalance().String() != "1000" {
			t.Errorf("opening balance: %s", cfg.OpeningBalance())
		}
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		t.Setenv("DATA_BACKEND", "memory")
		t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,,")
		t.Setenv("ALERT_INTERVAL", "5s")
		t.Setenv("MIRROR_EXPORT_ON_COMMIT", "false")
		t.Setenv("CURRENCY", "usd")
		t.Setenv("SYNC_INTERVAL", "not-a-duration")

		cfg := Load()
		if cfg.Port != "9090" || cfg.DataBackend != "memory" {
			t.Errorf("overrides not applied: %+v", cfg)
		}
		if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
			t.Errorf("brokers: %v", cfg.KafkaBrokers)
		}
		if cfg.AlertInterval != 5*time.Second || cfg.MirrorExportOnCommit {
			t.Errorf("alert interval/export flag: %v %v", cfg.AlertInterval, cfg.MirrorExportOnCommit)
		}
		if cfg.Currency != "USD" {
			t.Errorf("currency should be upper-cased, got %s", cfg.Currency)
		}
		if cfg.SyncInterval != 5*time.Minute {
			t.Errorf("invalid duration should fall back to default, got %v", cfg.SyncInterval)
		}
	})
}
