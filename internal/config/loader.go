package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies REVIVAL_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known REVIVAL_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Simulation ──
	setStr(&cfg.Simulation.Label, "REVIVAL_SIMULATION_LABEL")
	setStr(&cfg.Simulation.TimestepMode, "REVIVAL_SIMULATION_TIMESTEP_MODE")
	setFloat64(&cfg.Simulation.MakerFee, "REVIVAL_SIMULATION_MAKER_FEE")
	setFloat64(&cfg.Simulation.TakerFee, "REVIVAL_SIMULATION_TAKER_FEE")
	setFloat64(&cfg.Simulation.StartMoney, "REVIVAL_SIMULATION_START_MONEY")
	setFloat64(&cfg.Simulation.StartQuantity, "REVIVAL_SIMULATION_START_QUANTITY")
	setInt64(&cfg.Simulation.RandomSeed, "REVIVAL_SIMULATION_RANDOM_SEED")

	// ── Data ──
	setStr(&cfg.Data.TradesFile, "REVIVAL_DATA_TRADES_FILE")
	setStr(&cfg.Data.BooksFile, "REVIVAL_DATA_BOOKS_FILE")

	// ── Strategy ──
	setStr(&cfg.Strategy.Name, "REVIVAL_STRATEGY_NAME")
	setFloat64(&cfg.Strategy.Size, "REVIVAL_STRATEGY_SIZE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "REVIVAL_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "REVIVAL_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "REVIVAL_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "REVIVAL_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "REVIVAL_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "REVIVAL_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "REVIVAL_POSTGRES_SSLMODE")
	setStr(&cfg.Postgres.SSLMode, "REVIVAL_POSTGRES_SSL_MODE") // compatibility alias
	setInt(&cfg.Postgres.PoolMaxConns, "REVIVAL_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "REVIVAL_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "REVIVAL_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "REVIVAL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REVIVAL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REVIVAL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "REVIVAL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "REVIVAL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "REVIVAL_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "REVIVAL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "REVIVAL_S3_REGION")
	setStr(&cfg.S3.Bucket, "REVIVAL_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "REVIVAL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "REVIVAL_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "REVIVAL_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "REVIVAL_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "REVIVAL_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "REVIVAL_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "REVIVAL_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "REVIVAL_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMin, "REVIVAL_SERVER_RATE_LIMIT_PER_MIN")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "REVIVAL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "REVIVAL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "REVIVAL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "REVIVAL_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "REVIVAL_MODE")
	setStr(&cfg.LogLevel, "REVIVAL_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
