package config

import (
	"log"
	"net"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppHost           string `mapstructure:"APP_HOST"`
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Browser origins allowed to call the facade. Empty refuses every
	// cross-origin request.
	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	// Proxies whose X-Forwarded-For is trusted. Empty trusts none.
	TrustedProxies     []string `mapstructure:"TRUSTED_PROXIES"`

	// Partner API.
	APIBaseURL             string  `mapstructure:"API_BASE_URL"`
	APIToken               string  `mapstructure:"API_TOKEN"`
	APITimeoutSeconds      int     `mapstructure:"API_TIMEOUT_SECONDS"`
	OutboundRequestsPerSec float64 `mapstructure:"OUTBOUND_REQUESTS_PER_SEC"`
	OutboundBurst          int     `mapstructure:"OUTBOUND_BURST"`

	// Circuit breaker around the partner API.
	BreakerConsecutiveFailures int `mapstructure:"BREAKER_CONSECUTIVE_FAILURES"`
	BreakerOpenSeconds         int `mapstructure:"BREAKER_OPEN_SECONDS"`

	// Redis configuration.
	RedisEnabled        bool   `mapstructure:"REDIS_ENABLED"`
	RedisAddr           string `mapstructure:"REDIS_ADDR"`
	RedisPassword       string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB        int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB        int    `mapstructure:"REDIS_QUEUE_DB"`
	SelectionTTLMinutes int    `mapstructure:"SELECTION_TTL_MINUTES"`

	// Transaction journal.
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	DatabaseName   string `mapstructure:"DATABASE_NAME"`
	JournalEnabled bool   `mapstructure:"JOURNAL_ENABLED"`

	ReconcileWorkerEnabled bool `mapstructure:"RECONCILE_WORKER_ENABLED"`
}

var AppConfig Config

func setDefaults() {
	viper.SetDefault("APP_HOST", "127.0.0.1")
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", []string{})
	viper.SetDefault("TRUSTED_PROXIES", []string{})
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("API_BASE_URL", "http://127.0.0.1:8000/api/v1")
	viper.SetDefault("API_TOKEN", "")
	viper.SetDefault("API_TIMEOUT_SECONDS", 15)
	viper.SetDefault("OUTBOUND_REQUESTS_PER_SEC", 10.0)
	viper.SetDefault("OUTBOUND_BURST", 5)
	viper.SetDefault("BREAKER_CONSECUTIVE_FAILURES", 5)
	viper.SetDefault("BREAKER_OPEN_SECONDS", 30)
	viper.SetDefault("REDIS_ENABLED", false)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("SELECTION_TTL_MINUTES", 30)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "mitra")
	viper.SetDefault("JOURNAL_ENABLED", false)
	viper.SetDefault("RECONCILE_WORKER_ENABLED", false)
}

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// APITimeout is the per-request deadline applied by the transport.
func (c Config) APITimeout() time.Duration {
	if c.APITimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.APITimeoutSeconds) * time.Second
}

func (c Config) BreakerOpenTimeout() time.Duration {
	if c.BreakerOpenSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.BreakerOpenSeconds) * time.Second
}

func (c Config) SelectionTTL() time.Duration {
	if c.SelectionTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.SelectionTTLMinutes) * time.Minute
}

// ListenAddr is the facade's bind address. It defaults to loopback because the
// facade spends the signed-in mitra's balance.
func (c Config) ListenAddr() string {
	host, port := c.AppHost, c.AppPort
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "8080"
	}
	return net.JoinHostPort(host, port)
}
