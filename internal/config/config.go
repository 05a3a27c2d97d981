// internal/config/config.go
//
// Environment-driven configuration. `.env` files are loaded first (if present)
// so development setups need no exported variables.
//
// Environment variables:
//   PORT=5175                     HTTP listen port
//   LOG_LEVEL=info                zerolog level
//   DB_PATH=./data/huerush.db     SQLite file for players and scores
//   JWT_SECRET=...                HS256 signing key
//   JWT_EXPIRES_DAYS=14           token lifetime
//   COOKIE_NAME=huerush_token     auth cookie name
//   CLIENT_ORIGIN=...             CORS origin for the browser client
//   APP_ENV=production            secure cookies when production
//   NATS_URL=                     round-over notifications (off when empty)
//   NATS_SUBJECT=huerush.round.over
//   SESSION_TTL_MINUTES=60        idle session eviction
//   HUERUSH_AUDIO=on              background loop in the terminal client
//   HUERUSH_LOG=huerush-tui.log   terminal client log file

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevJWTSecret is used when JWT_SECRET is unset.
const DevJWTSecret = "dev_secret_change_me"

// Config holds every tunable of the server and terminal client.
type Config struct {
	Port         string
	LogLevel     string
	DBPath       string
	JWTSecret    string
	JWTExpiry    time.Duration
	CookieName   string
	ClientOrigin string
	Production   bool
	NATSURL      string
	NATSSubject  string
	SessionTTL   time.Duration
	Audio        bool
	TUILogPath   string
}

// Load reads .env (ignored when missing) and the process environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the process environment only.
func FromEnv() Config {
	return Config{
		Port:         getEnv("PORT", "5175"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DBPath:       getEnv("DB_PATH", "./data/huerush.db"),
		JWTSecret:    getEnv("JWT_SECRET", DevJWTSecret),
		JWTExpiry:    time.Duration(envInt("JWT_EXPIRES_DAYS", 14)) * 24 * time.Hour,
		CookieName:   getEnv("COOKIE_NAME", "huerush_token"),
		ClientOrigin: getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		Production:   getEnv("APP_ENV", "development") == "production",
		NATSURL:      os.Getenv("NATS_URL"),
		NATSSubject:  getEnv("NATS_SUBJECT", "huerush.round.over"),
		SessionTTL:   time.Duration(envInt("SESSION_TTL_MINUTES", 60)) * time.Minute,
		Audio:        envBool("HUERUSH_AUDIO", true),
		TUILogPath:   getEnv("HUERUSH_LOG", "huerush-tui.log"),
	}
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(k string, def bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "on", "true", "yes":
		return true
	case "0", "off", "false", "no":
		return false
	}
	return def
}
