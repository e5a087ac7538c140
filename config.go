package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the server settings.
type Config struct {
	Addr      string
	TLSCert   string
	TLSKey    string
	StaticDir string
	DBPath    string // empty disables the event log
	LogLevel  string
	LogFormat string
	MaxRooms  int // 0 means unlimited
	PublicURL string
}

// TLS reports whether both certificate and key are configured.
func (c Config) TLS() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// getEnv returns the environment value for key or fallback when unset.
func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// LoadConfig reads an optional .env file, then the environment, then args.
// Flags win over environment variables.
func LoadConfig(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	port := getEnv("PORT", "8080")
	maxRooms, err := getEnvInt("MAX_ROOMS", 100)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	fset := flag.NewFlagSet("shooting-web", flag.ContinueOnError)
	fset.StringVar(&cfg.Addr, "addr", ":"+port, "HTTP listen address")
	fset.StringVar(&cfg.TLSCert, "tls-cert", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	fset.StringVar(&cfg.TLSKey, "tls-key", getEnv("TLS_KEY_FILE", ""), "TLS key file")
	fset.StringVar(&cfg.StaticDir, "static", getEnv("STATIC_DIR", ""), "directory of static client files")
	fset.StringVar(&cfg.DBPath, "db", getEnv("DB_PATH", ""), "SQLite event log path (empty disables)")
	fset.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	fset.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "log format (text, json)")
	fset.IntVar(&cfg.MaxRooms, "max-rooms", maxRooms, "live room cap (0 = unlimited)")
	fset.StringVar(&cfg.PublicURL, "public-url", getEnv("PUBLIC_URL", ""), "base URL used in share links")
	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.MaxRooms < 0 {
		return Config{}, fmt.Errorf("max-rooms must be >= 0, got %d", cfg.MaxRooms)
	}
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return Config{}, errors.New("tls-cert and tls-key must be set together")
	}
	return cfg, nil
}
