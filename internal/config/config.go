// Package config provides configuration management using viper.
// It supports loading from YAML files, an optional .env file and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Game      GameConfig      `mapstructure:"game"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token       string        `mapstructure:"token"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// MaxTxRetries bounds how many times a serialization failure is retried.
	MaxTxRetries int `mapstructure:"max_tx_retries"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// GameConfig holds the picture game configuration.
type GameConfig struct {
	PageSize     int            `mapstructure:"page_size"`
	WinSentences []string       `mapstructure:"win_sentences"`
	AutoSkip     AutoSkipConfig `mapstructure:"autoskip"`
}

// AutoSkipConfig controls the timeout sweeper. A zero Delay disables it.
type AutoSkipConfig struct {
	Delay    time.Duration `mapstructure:"delay"`
	Warn     time.Duration `mapstructure:"warn"`
	Interval time.Duration `mapstructure:"interval"`
}

// Enabled reports whether turns are auto-skipped.
func (a AutoSkipConfig) Enabled() bool {
	return a.Delay > 0
}

// RateLimitConfig holds per-user command ratelimiting.
type RateLimitConfig struct {
	Delay    time.Duration `mapstructure:"delay"`
	TimeSpan time.Duration `mapstructure:"time_span"`
	Limit    int           `mapstructure:"limit"`
}

// HTTPConfig holds the ops HTTP server configuration. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase
	// e.g., BOT_TOKEN, DATABASE_HOST, GAME_AUTOSKIP_DELAY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional, env vars can provide all config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.poll_timeout", "10s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "photorelay")
	v.SetDefault("database.name", "photorelay")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.max_tx_retries", 3)

	v.SetDefault("game.page_size", 10)
	v.SetDefault("game.win_sentences", []string{"Bravo {}, à vous la main."})
	v.SetDefault("game.autoskip.delay", "0s")
	v.SetDefault("game.autoskip.warn", "0s")
	v.SetDefault("game.autoskip.interval", "60s")

	v.SetDefault("ratelimit.delay", "0s")
	v.SetDefault("ratelimit.time_span", "0s")
	v.SetDefault("ratelimit.limit", 0)

	v.SetDefault("http.addr", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate checks cross-field constraints that defaults cannot express.
func (c *Config) Validate() error {
	if c.Game.PageSize <= 0 {
		return fmt.Errorf("game.page_size must be positive, got %d", c.Game.PageSize)
	}
	if c.Database.MaxTxRetries < 0 {
		return fmt.Errorf("database.max_tx_retries must not be negative, got %d", c.Database.MaxTxRetries)
	}
	skip := c.Game.AutoSkip
	if skip.Enabled() {
		if skip.Warn < 0 || skip.Warn >= skip.Delay {
			return fmt.Errorf("game.autoskip.warn (%s) must be within [0, delay=%s)", skip.Warn, skip.Delay)
		}
		if skip.Interval <= 0 {
			return fmt.Errorf("game.autoskip.interval must be positive, got %s", skip.Interval)
		}
	}
	if c.RateLimit.Limit > 0 && c.RateLimit.TimeSpan <= 0 {
		return fmt.Errorf("ratelimit.time_span must be positive when ratelimit.limit is set")
	}
	return nil
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
