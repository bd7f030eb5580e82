// Package config defines the top-level configuration for the replay
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by REVIVAL_* environment
// variables.
type Config struct {
	Simulation SimulationConfig `toml:"simulation"`
	Data       DataConfig       `toml:"data"`
	Strategy   StrategyConfig   `toml:"strategy"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// SimulationConfig holds the replay parameters: merge policy, fees, and
// the starting portfolio.
type SimulationConfig struct {
	Label         string  `toml:"label"`
	TimestepMode  string  `toml:"timestep_mode"`
	MakerFee      float64 `toml:"maker_fee"`
	TakerFee      float64 `toml:"taker_fee"`
	StartMoney    float64 `toml:"start_money"`
	StartQuantity float64 `toml:"start_quantity"`
	RandomSeed    int64   `toml:"random_seed"`
}

// DataConfig points at the historical data files to replay.
type DataConfig struct {
	TradesFile string `toml:"trades_file"`
	BooksFile  string `toml:"books_file"`
}

// StrategyConfig holds trading strategy parameters.
type StrategyConfig struct {
	Name   string         `toml:"name"`
	Size   float64        `toml:"size"`
	Params map[string]any `toml:"params"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled         bool     `toml:"enabled"`
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	RateLimitPerMin int      `toml:"rate_limit_per_min"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// A TOML file and REVIVAL_* environment variables override these.
func Defaults() Config {
	return Config{
		Simulation: SimulationConfig{
			Label:         "replay",
			TimestepMode:  "both",
			MakerFee:      0.001,
			TakerFee:      0.002,
			StartMoney:    10_000,
			StartQuantity: 0,
		},
		Strategy: StrategyConfig{
			Name:   "mean_reversion",
			Size:   1.0,
			Params: map[string]any{},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "revival",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "revival-runs",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitPerMin: 300,
		},
		Notify: NotifyConfig{
			Events: []string{"run_completed", "run_failed"},
		},
		Mode:     "replay",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"replay": true,
	"serve":  true,
	"full":   true,
}

// validTimestepModes enumerates the accepted merge policies.
var validTimestepModes = map[string]bool{
	"both":              true,
	"order_book_driven": true,
	"market_driven":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: replay, serve, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Simulation
	if !validTimestepModes[strings.ToLower(c.Simulation.TimestepMode)] {
		errs = append(errs, fmt.Sprintf("simulation: unknown timestep_mode %q (valid: both, order_book_driven, market_driven)", c.Simulation.TimestepMode))
	}
	if c.Simulation.MakerFee < 0 || c.Simulation.MakerFee >= 1 {
		errs = append(errs, fmt.Sprintf("simulation: maker_fee must be in [0,1), got %v", c.Simulation.MakerFee))
	}
	if c.Simulation.TakerFee < 0 || c.Simulation.TakerFee >= 1 {
		errs = append(errs, fmt.Sprintf("simulation: taker_fee must be in [0,1), got %v", c.Simulation.TakerFee))
	}
	if c.Simulation.StartMoney < 0 {
		errs = append(errs, "simulation: start_money must be >= 0")
	}
	if c.Simulation.StartQuantity < 0 {
		errs = append(errs, "simulation: start_quantity must be >= 0")
	}

	// Data — required whenever a replay will actually run.
	needsData := c.Mode == "replay" || c.Mode == "full"
	if needsData {
		if c.Data.TradesFile == "" {
			errs = append(errs, "data: trades_file must be set for mode "+c.Mode)
		}
		if c.Data.BooksFile == "" && strings.ToLower(c.Simulation.TimestepMode) != "market_driven" {
			errs = append(errs, "data: books_file must be set unless timestep_mode is market_driven")
		}
	}

	// Strategy
	if c.Strategy.Name == "" {
		errs = append(errs, "strategy: name must not be empty")
	}
	if c.Strategy.Size <= 0 {
		errs = append(errs, "strategy: size must be > 0")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint must not be empty")
	}
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
