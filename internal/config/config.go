package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the matching service.
type Config struct {
	Port            int
	LogLevel        string
	DataDir         string // empty selects the in-memory store
	Symbols         []string
	BookDepth       int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment (after an optional
// .env file), applies defaults, and validates values. It returns an
// error for any invalid value.
func Load() (*Config, error) {
	// Missing .env is fine; the environment wins over the file.
	_ = godotenv.Load()

	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	dataDir := getStr("DATA_DIR", "data")

	symbols := splitSymbols(getStr("TRADED_SYMBOLS", "AAPL,GOOG,MSFT"))
	if len(symbols) == 0 {
		return nil, fmt.Errorf("invalid TRADED_SYMBOLS: at least one symbol is required")
	}
	for _, s := range symbols {
		if s != strings.ToUpper(s) || len(s) > 10 {
			return nil, fmt.Errorf("invalid TRADED_SYMBOLS: %q must be 1-10 uppercase characters", s)
		}
	}

	bookDepth, err := getInt("BOOK_DEPTH", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid BOOK_DEPTH: %w", err)
	}
	if bookDepth < 1 || bookDepth > 100 {
		return nil, fmt.Errorf("invalid BOOK_DEPTH: must be between 1 and 100")
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:            port,
		LogLevel:        logLevel,
		DataDir:         dataDir,
		Symbols:         symbols,
		BookDepth:       bookDepth,
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		IdleTimeout:     idleTimeout,
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

func splitSymbols(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getStr(key, defaultVal string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
