package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "bigbag", cfg.MongoDB)
	assert.Equal(t, 720*time.Hour, cfg.JWTTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 3, cfg.WelcomeRolls)
	assert.Equal(t, 60*time.Second, cfg.LeaderboardCacheTTL)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("WELCOME_ROLLS", "0")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 0, cfg.WelcomeRolls)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestPublicURL(t *testing.T) {
	cfg := &Config{PublicBaseURL: "https://cdn.example/"}
	assert.Equal(t, "https://cdn.example/uploads/a.png", cfg.PublicURL("/uploads/a.png"))

	cfg.PublicBaseURL = ""
	assert.Equal(t, "/uploads/a.png", cfg.PublicURL("uploads/a.png"))
}

func TestParse_SkipsValidation(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "")
	t.Setenv("MONGO_DB", "bigbag_admin")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "bigbag_admin", cfg.MongoDB)
}
