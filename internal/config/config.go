// Package config holds the service configuration. Everything is resolved
// once at startup and passed down explicitly; nothing reads the environment
// after Load returns.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full configuration of the render service.
type Config struct {
	// Port is the HTTP listen port.
	Port string
	// Env is the deployment environment (development, production).
	// Error responses include stack traces only outside production.
	Env string

	LogLevel  string
	LogFormat string

	// OutputDir is the durable directory for rendered MP4 files.
	OutputDir string
	// WorkDir is the scratch root; each render job gets its own
	// subdirectory that is removed when the job settles.
	WorkDir string

	// EngineCommand is the executable used to drive the Remotion CLI
	// (typically "npx"). EngineArgs are prepended to every invocation.
	EngineCommand string
	EngineArgs    []string

	// MaxConcurrentRenders bounds how many encode jobs run at once.
	// Encoding is CPU and memory heavy; unbounded concurrency falls over.
	MaxConcurrentRenders int64

	// HTTP server timeouts. WriteTimeout is the only wall-clock bound on a
	// render job; the pipeline itself enforces none.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Load reads configuration from the environment, with optional .env files.
func Load() Config {
	_ = godotenv.Load(".env", ".env.local")

	return Config{
		Port:      getenv("PORT", "3000"),
		Env:       getenv("APP_ENV", "development"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		OutputDir: getenv("OUTPUT_DIR", "./output"),
		WorkDir:   getenv("WORK_DIR", "./tmp-renders"),

		EngineCommand: getenv("ENGINE_COMMAND", "npx"),
		EngineArgs:    []string{"remotion"},

		MaxConcurrentRenders: getenvInt64("MAX_CONCURRENT_RENDERS", 2),

		ReadTimeout:  getenvDuration("HTTP_READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getenvDuration("HTTP_WRITE_TIMEOUT", 10*time.Minute),
		IdleTimeout:  getenvDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
	}
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// EnsureDirs creates the durable output and scratch directories.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.OutputDir, c.WorkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
