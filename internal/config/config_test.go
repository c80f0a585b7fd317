package config

import (
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads so defaults apply.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "DATA_DIR", "TRADED_SYMBOLS", "BOOK_DEPTH",
		"READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT", "SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
	// t.Setenv(key, "") leaves the variable set to the empty string,
	// which is what getInt/getDuration treat as unset. getStr keys that
	// distinguish empty from unset are exercised explicitly below.
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_DIR", "data")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("TRADED_SYMBOLS", "AAPL,GOOG,MSFT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %s, want info", cfg.LogLevel)
	}
	if cfg.DataDir != "data" {
		t.Errorf("data dir = %s, want data", cfg.DataDir)
	}
	if len(cfg.Symbols) != 3 || cfg.Symbols[0] != "AAPL" {
		t.Errorf("symbols = %v", cfg.Symbols)
	}
	if cfg.BookDepth != 10 {
		t.Errorf("book depth = %d, want 10", cfg.BookDepth)
	}
	if cfg.ReadTimeout != 5*time.Second || cfg.WriteTimeout != 10*time.Second {
		t.Errorf("timeouts = %v/%v, want 5s/10s", cfg.ReadTimeout, cfg.WriteTimeout)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v, want 10s", cfg.ShutdownTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATA_DIR", "/var/lib/tradecraft")
	t.Setenv("TRADED_SYMBOLS", " AAPL , TSLA ")
	t.Setenv("BOOK_DEPTH", "25")
	t.Setenv("READ_TIMEOUT", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %s, want debug", cfg.LogLevel)
	}
	if cfg.DataDir != "/var/lib/tradecraft" {
		t.Errorf("data dir = %s", cfg.DataDir)
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[0] != "AAPL" || cfg.Symbols[1] != "TSLA" {
		t.Errorf("symbols = %v, want [AAPL TSLA] with whitespace trimmed", cfg.Symbols)
	}
	if cfg.BookDepth != 25 {
		t.Errorf("book depth = %d, want 25", cfg.BookDepth)
	}
	if cfg.ReadTimeout != 2*time.Second {
		t.Errorf("read timeout = %v, want 2s", cfg.ReadTimeout)
	}
}

func TestLoadEmptyDataDirSelectsMemory(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("TRADED_SYMBOLS", "AAPL")
	t.Setenv("DATA_DIR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DataDir != "" {
		t.Errorf("data dir = %q, want empty (in-memory store)", cfg.DataDir)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad port", "PORT", "not-a-number"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"lowercase symbol", "TRADED_SYMBOLS", "aapl"},
		{"symbol too long", "TRADED_SYMBOLS", "ABCDEFGHIJK"},
		{"empty symbols", "TRADED_SYMBOLS", " , "},
		{"bad book depth", "BOOK_DEPTH", "abc"},
		{"book depth too small", "BOOK_DEPTH", "0"},
		{"book depth too large", "BOOK_DEPTH", "101"},
		{"bad read timeout", "READ_TIMEOUT", "fast"},
		{"bad shutdown timeout", "SHUTDOWN_TIMEOUT", "-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("LOG_LEVEL", "info")
			t.Setenv("TRADED_SYMBOLS", "AAPL")
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("expected an error for %s=%q", tt.key, tt.value)
			}
		})
	}
}
