package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	KeyBridge KeyBridgeConfig `mapstructure:"key_bridge"`
	Cron      CronConfig      `mapstructure:"cron"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	AdminToken string        `mapstructure:"admin_token"`
}

type RateLimitConfig struct {
	LoginMaxAttempts int           `mapstructure:"login_max_attempts"`
	LoginWindow      time.Duration `mapstructure:"login_window"`
	RedisAddr        string        `mapstructure:"redis_addr"`
	RedisPassword    string        `mapstructure:"redis_password"`
	RedisDB          int           `mapstructure:"redis_db"`
}

type LedgerConfig struct {
	InitialBalance    float64 `mapstructure:"initial_balance"`
	VerificationBonus float64 `mapstructure:"verification_bonus"`
}

// BridgeConfig covers both legs of the verification flow: the ledger's
// outbound call to the key bridge and the bridge's callback to the ledger.
// The same shared secret authenticates both directions.
type BridgeConfig struct {
	VerifyURL     string        `mapstructure:"verify_url"`
	LedgerWebhook string        `mapstructure:"ledger_webhook"`
	Secret        string        `mapstructure:"secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type KeyBridgeConfig struct {
	HTTPAddr    string `mapstructure:"http_addr"`
	KeyPoolSize int    `mapstructure:"key_pool_size"`
}

type CronConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	LimiterPrune string `mapstructure:"limiter_prune"`
	KeyPoolTopUp string `mapstructure:"key_pool_top_up"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("auth.jwt_secret", "change-me-in-production")
	v.SetDefault("auth.token_ttl", "30m")
	v.SetDefault("auth.admin_token", "admin-secure-token-change-in-production")
	v.SetDefault("rate_limit.login_max_attempts", 5)
	v.SetDefault("rate_limit.login_window", "5m")
	v.SetDefault("rate_limit.redis_addr", "")
	v.SetDefault("rate_limit.redis_db", 0)
	v.SetDefault("ledger.initial_balance", 1000)
	v.SetDefault("ledger.verification_bonus", 500)
	v.SetDefault("bridge.verify_url", "http://localhost:5001/webhook/verify")
	v.SetDefault("bridge.ledger_webhook", "http://localhost:8080/webhook/discord-verified")
	v.SetDefault("bridge.timeout", "10s")
	v.SetDefault("key_bridge.http_addr", ":5001")
	v.SetDefault("key_bridge.key_pool_size", 1000)
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.limiter_prune", "@every 5m")
	v.SetDefault("cron.key_pool_top_up", "@every 10m")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
