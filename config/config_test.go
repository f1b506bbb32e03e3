package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	LoadConfig()

	assert.Equal(t, "8080", AppConfig.AppPort)
	assert.Equal(t, "development", AppConfig.Env)
	assert.Equal(t, "http://127.0.0.1:8000/api/v1", AppConfig.APIBaseURL)
	assert.Equal(t, 15*time.Second, AppConfig.APITimeout())
	assert.Equal(t, 30*time.Minute, AppConfig.SelectionTTL())
	assert.False(t, AppConfig.JournalEnabled)
	assert.False(t, IsProduction())
}

func TestLoadConfigFromEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("API_BASE_URL", "https://partner.example/api/v1")
	t.Setenv("API_TIMEOUT_SECONDS", "3")
	t.Setenv("ENV", "production")

	LoadConfig()

	require.Equal(t, "https://partner.example/api/v1", AppConfig.APIBaseURL)
	assert.Equal(t, 3*time.Second, AppConfig.APITimeout())
	assert.True(t, IsProduction())
}

func TestDurationFallbacks(t *testing.T) {
	var c Config
	assert.Equal(t, 15*time.Second, c.APITimeout())
	assert.Equal(t, 30*time.Second, c.BreakerOpenTimeout())
	assert.Equal(t, 30*time.Minute, c.SelectionTTL())
}

func TestFacadeDefaultsAreLocalOnly(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	LoadConfig()

	assert.Equal(t, "127.0.0.1:8080", AppConfig.ListenAddr())
	assert.Empty(t, AppConfig.CORSAllowedOrigins)
	assert.Empty(t, AppConfig.TrustedProxies)
}

func TestFacadeOriginsFromEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("APP_HOST", "0.0.0.0")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,https://mitra.example")

	LoadConfig()

	assert.Equal(t, "0.0.0.0:8080", AppConfig.ListenAddr())
	assert.Equal(t, []string{"http://localhost:5173", "https://mitra.example"}, AppConfig.CORSAllowedOrigins)
}
