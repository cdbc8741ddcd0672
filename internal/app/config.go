package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config stores runtime configuration. Environment variables are the
// primary source; an optional YAML file (CONFIG_PATH) fills anything the
// environment leaves unset.
type Config struct {
	AppEnv   string
	HTTPAddr string

	// DBDriver selects the store backend: "postgres", "sqlite" or
	// "memory" when no DSN is configured.
	DBDriver          string
	DBDSN             string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifeMins int

	BotToken     string
	SuperAdminID int64
	AdminIDs     []int64

	// WebhookURL switches update delivery from long polling to webhook.
	WebhookURL    string
	WebhookSecret string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DialogTTL     time.Duration

	WebhookRateLimitPerMin int
}

type fileConfig struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Bot struct {
		Token         string `yaml:"token"`
		SuperAdminID  int64  `yaml:"super_admin_id"`
		AdminIDs      string `yaml:"admin_ids"`
		WebhookURL    string `yaml:"webhook_url"`
		WebhookSecret string `yaml:"webhook_secret"`
	} `yaml:"bot"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
}

func LoadConfig() Config {
	var fc fileConfig
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(data, &fc)
		}
	}

	dsn := envOrDefault("DB_DSN", fc.Database.DSN)
	driver := envOrDefault("DB_DRIVER", fc.Database.Driver)
	if driver == "" {
		switch {
		case strings.HasPrefix(dsn, "postgres://"):
			driver = "postgres"
		case dsn != "":
			driver = "sqlite"
		default:
			driver = "memory"
		}
	}

	ttl := 30 * time.Minute
	if raw := envOrDefault("DIALOG_TTL", fc.Redis.TTL); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			ttl = d
		}
	}

	return Config{
		AppEnv:            envOrDefault("APP_ENV", "development"),
		HTTPAddr:          envOrDefault("HTTP_ADDR", firstNonEmpty(fc.Server.Addr, ":8080")),
		DBDriver:          driver,
		DBDSN:             dsn,
		DBMaxOpenConns:    intOrDefault("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    intOrDefault("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifeMins: intOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),

		BotToken:     envOrDefault("BOT_TOKEN", fc.Bot.Token),
		SuperAdminID: int64OrDefault("SUPER_ADMIN_ID", fc.Bot.SuperAdminID),
		AdminIDs:     parseIDList(envOrDefault("ADMIN_IDS", fc.Bot.AdminIDs)),

		WebhookURL:    envOrDefault("WEBHOOK_URL", fc.Bot.WebhookURL),
		WebhookSecret: envOrDefault("WEBHOOK_SECRET", fc.Bot.WebhookSecret),

		RedisAddr:     envOrDefault("REDIS_ADDR", fc.Redis.Addr),
		RedisPassword: envOrDefault("REDIS_PASSWORD", fc.Redis.Password),
		RedisDB:       intOrDefault("REDIS_DB", fc.Redis.DB),
		DialogTTL:     ttl,

		WebhookRateLimitPerMin: intOrDefault("WEBHOOK_RATE_LIMIT_PER_MINUTE", 300),
	}
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func stringsToInt(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}

func intOrDefault(key string, fallback int) int {
	v := stringsToInt(os.Getenv(key))
	if v <= 0 {
		return fallback
	}
	return v
}

func int64OrDefault(key string, fallback int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// parseIDList reads a comma-separated list of numeric user IDs, skipping
// anything unparseable.
func parseIDList(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
