package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// Store backend names accepted in SCORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendHTTP     = "http"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// StoreConfig selects and configures the score store backend.
type StoreConfig struct {
	Backend       string
	FilePath      string
	URL           string // Document endpoint for the http backend
	WatchURL      string // Optional websocket endpoint for push updates
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	PostgresDSN   string
	Timeout       time.Duration // Per-call timeout for store operations
}

// SSHConfig configures the SSH game server.
type SSHConfig struct {
	Host        string
	Port        string
	HostKeyPath string
}

// WebConfig configures the HTTP score API.
type WebConfig struct {
	Host string
	Port string
}

// Config is the full runtime configuration shared by all binaries.
type Config struct {
	Store    StoreConfig
	SSH      SSHConfig
	Web      WebConfig
	LogLevel string
}

// Load reads an optional .env file from the working directory and then
// builds the configuration from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return FromEnv(), nil
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:       GetEnv("SCORE_BACKEND", BackendFile),
			FilePath:      GetEnv("SCORE_FILE", "highscores.json"),
			URL:           GetEnv("SCORE_URL", "http://localhost:8080/api/highscores"),
			WatchURL:      GetEnv("SCORE_WATCH_URL", ""),
			SQLitePath:    GetEnv("SCORE_SQLITE", "highscores.db"),
			RedisAddr:     GetEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: GetEnv("REDIS_PASSWORD", ""),
			RedisDB:       GetEnvInt("REDIS_DB", 0),
			RedisKey:      GetEnv("REDIS_KEY", "sshtargets:highscores"),
			PostgresDSN:   GetEnv("POSTGRES_DSN", ""),
			Timeout:       GetEnvDuration("STORE_TIMEOUT", 5*time.Second),
		},
		SSH: SSHConfig{
			Host:        GetEnv("SSH_HOST", "::"),
			Port:        GetEnv("SSH_PORT", "2222"),
			HostKeyPath: GetEnv("SSH_HOST_KEY", ".ssh/host_key"),
		},
		Web: WebConfig{
			Host: GetEnv("WEB_HOST", "0.0.0.0"),
			Port: GetEnv("WEB_PORT", "8080"),
		},
		LogLevel: GetEnv("LOG_LEVEL", "info"),
	}
}

// NewLogger returns a logger writing to stderr at the configured level.
// An unknown level falls back to info.
func (c *Config) NewLogger(prefix string) *log.Logger {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          prefix,
		Level:           level,
		ReportTimestamp: true,
	})
}
