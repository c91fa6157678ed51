/*
Package config loads server settings.

SOURCES (later wins):
  1. Built-in defaults
  2. .env file in the working directory (optional, joho/godotenv)
  3. Environment variables
  4. Command-line flags

VARIABLES:
  PORT                  HTTP port (default 8080)
  DB_PATH               SQLite path, ":memory:" allowed (default gym.db)
  JWT_SECRET            HS256 secret for operator tokens. Empty = dev mode,
                        the X-Operator header is trusted instead.
  CORS_ALLOWED_ORIGINS  Comma-separated origins (default http://localhost:5173)
  GYM_TIMEZONE          IANA zone that defines "today" (default UTC)
*/
package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything cmd/server needs.
type Config struct {
	Port        int
	DBPath      string
	JWTSecret   string
	CORSOrigins []string
	Location    *time.Location
}

// DevMode reports whether operator tokens are not verified.
func (c *Config) DevMode() bool { return c.JWTSecret == "" }

// Load reads defaults, .env, the environment, then args.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[Config] ignoring .env: %v", err)
	}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	portFlag := fs.Int("port", port, "HTTP server port")
	dbFlag := fs.String("db", getEnv("DB_PATH", "gym.db"), "SQLite database path")
	tzFlag := fs.String("tz", getEnv("GYM_TIMEZONE", "UTC"), "Time zone that defines today")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(*tzFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid GYM_TIMEZONE %q: %w", *tzFlag, err)
	}

	cfg := &Config{
		Port:        *portFlag,
		DBPath:      *dbFlag,
		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		Location:    loc,
	}

	if cfg.DevMode() {
		log.Println("[WARN] JWT_SECRET is not set, trusting the X-Operator header (development only)")
	} else if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
