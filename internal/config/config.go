package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	MongoURI string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB  string `env:"MONGO_DB" envDefault:"bigbag"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"720h"`
	OTPTTL    time.Duration `env:"OTP_TTL" envDefault:"5m"`

	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`

	UploadDir     string `env:"UPLOAD_DIR" envDefault:"./uploads"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	MaxUploadMB   int64  `env:"MAX_UPLOAD_MB" envDefault:"100"`

	WelcomeRolls int `env:"WELCOME_ROLLS" envDefault:"3"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`
	AuthRateLimit  int     `env:"AUTH_RATE_LIMIT" envDefault:"10"`

	PushEnabled bool   `env:"PUSH_ENABLED" envDefault:"false"`
	ExpoPushURL string `env:"EXPO_PUSH_URL" envDefault:"https://exp.host/--/api/v2/push/send"`

	LeaderboardCacheTTL time.Duration `env:"LEADERBOARD_CACHE_TTL" envDefault:"60s"`
	ShareRetentionWeeks int           `env:"SHARE_RETENTION_WEEKS" envDefault:"26"`
}

// Load reads an optional .env file, parses the environment and validates
// the server settings.
func Load() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse is Load without validation, for tools that only need the storage
// settings.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWTTTL <= 0 || c.OTPTTL <= 0 || c.LeaderboardCacheTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL, OTP_TTL and LEADERBOARD_CACHE_TTL must be positive"))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 || c.AuthRateLimit <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	if c.WelcomeRolls < 0 {
		errs = append(errs, errors.New("WELCOME_ROLLS cannot be negative"))
	}
	if c.ShareRetentionWeeks <= 0 {
		errs = append(errs, errors.New("SHARE_RETENTION_WEEKS must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// PublicURL joins the public base URL with p.
func (c *Config) PublicURL(p string) string {
	return strings.TrimRight(c.PublicBaseURL, "/") + "/" + strings.TrimLeft(p, "/")
}
