package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, ":9100", cfg.Server.MetricsAddr)
	assert.NotEmpty(t, cfg.Storage.DBPath)
	assert.NotEmpty(t, cfg.Storage.ListingsFile)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("CORS_ORIGINS", "https://app.example.com,https://admin.example.com")
	t.Setenv("DB_PATH", "/tmp/ledger-test.db")

	cfg := LoadFromEnv("nonexistent.env")
	assert.Equal(t, ":9999", cfg.Server.HTTPAddr)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "/tmp/ledger-test.db", cfg.Storage.DBPath)
	// Untouched values keep defaults.
	assert.Equal(t, ":9100", cfg.Server.MetricsAddr)
}
