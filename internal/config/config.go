package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration. It is built once in main and
// passed by pointer to every component that needs it.
type Config struct {
	App       AppConfig
	Log       LogConfig
	Database  DatabaseConfig
	Bot       BotConfig
	Twilio    TwilioConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Reminders ReminderConfig
}

// AppConfig holds process level settings
type AppConfig struct {
	Port           string `validate:"required"`
	Environment    string
	AdminAPISecret string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver         string `validate:"oneof=postgres sqlite"`
	DSN            string
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	UseMemoryStore bool
}

// BotConfig holds the conversation rules
type BotConfig struct {
	AdminPhone           string        `validate:"required"`
	BotPhone             string
	SessionTimeout       time.Duration `validate:"gt=0"`
	DeliveryCodeAttempts int           `validate:"gt=0"`
	NotifyTimeout        time.Duration `validate:"gt=0"`
	CatalogAdminOnly     bool
	DedupTTL             time.Duration `validate:"gt=0"`
}

// TwilioConfig holds WhatsApp gateway credentials
type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	WhatsAppFrom      string // Format: "whatsapp:+14155238886"
	DisableValidation bool
	PublicURL         string
}

// Configured reports whether outbound messages can be sent
func (t TwilioConfig) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.WhatsAppFrom != ""
}

// StorageConfig holds S3-compatible object storage settings for product images
type StorageConfig struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UsePathStyle  bool
	UseSSL        bool
	PublicBaseURL string
}

// Configured reports whether image uploads are possible
func (s StorageConfig) Configured() bool {
	return s.Bucket != "" && s.AccessKey != "" && s.SecretKey != ""
}

// RedisConfig holds the optional Redis used for webhook redelivery dedup
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ReminderConfig holds the delivery reminder sweep settings
type ReminderConfig struct {
	Threshold  time.Duration `validate:"gt=0"`
	Interval   time.Duration `validate:"gte=0"`
	CronSecret string
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// LoadDotEnv loads .env files for local development. Missing files are not
// an error.
func LoadDotEnv() bool {
	if err := godotenv.Load(".env"); err == nil {
		return true
	}
	return godotenv.Load("environments/.env.development") == nil
}

// Load reads configuration from the environment.
// Priority (highest to lowest):
// 1. Environment variables (e.g. ADMIN_PHONE, TWILIO_AUTH_TOKEN)
// 2. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Port:           v.GetString("port"),
			Environment:    v.GetString("environment"),
			AdminAPISecret: v.GetString("admin_api_secret"),
		},
		Log: LogConfig{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
		},
		Database: DatabaseConfig{
			Driver:         strings.ToLower(v.GetString("db_driver")),
			DSN:            v.GetString("db_dsn"),
			Host:           v.GetString("db_host"),
			Port:           v.GetInt("db_port"),
			User:           v.GetString("db_user"),
			Password:       v.GetString("db_pass"),
			Name:           v.GetString("db_name"),
			SSLMode:        v.GetString("db_sslmode"),
			UseMemoryStore: v.GetBool("use_memory_store"),
		},
		Bot: BotConfig{
			AdminPhone:           NormalizePhone(v.GetString("admin_phone")),
			BotPhone:             NormalizePhone(v.GetString("bot_phone")),
			SessionTimeout:       time.Duration(v.GetInt("session_timeout_minutes")) * time.Minute,
			DeliveryCodeAttempts: v.GetInt("delivery_code_attempts"),
			NotifyTimeout:        time.Duration(v.GetInt("notify_timeout_seconds")) * time.Second,
			CatalogAdminOnly:     v.GetBool("catalog_admin_only"),
			DedupTTL:             time.Duration(v.GetInt("dedup_ttl_minutes")) * time.Minute,
		},
		Twilio: TwilioConfig{
			AccountSID:        v.GetString("twilio_account_sid"),
			AuthToken:         v.GetString("twilio_auth_token"),
			WhatsAppFrom:      v.GetString("twilio_whatsapp_from"),
			DisableValidation: v.GetBool("disable_webhook_validation"),
			PublicURL:         strings.TrimRight(v.GetString("public_url"), "/"),
		},
		Storage: StorageConfig{
			Endpoint:      v.GetString("s3_endpoint"),
			Region:        v.GetString("s3_region"),
			Bucket:        v.GetString("s3_bucket"),
			AccessKey:     v.GetString("s3_access_key"),
			SecretKey:     v.GetString("s3_secret_key"),
			UsePathStyle:  v.GetBool("s3_use_path_style"),
			UseSSL:        v.GetBool("s3_use_ssl"),
			PublicBaseURL: strings.TrimRight(v.GetString("s3_public_base_url"), "/"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		Reminders: ReminderConfig{
			Threshold:  time.Duration(v.GetInt("reminder_threshold_minutes")) * time.Minute,
			Interval:   time.Duration(v.GetInt("reminder_interval_minutes")) * time.Minute,
			CronSecret: v.GetString("cron_secret"),
		},
	}

	// The order status endpoint shares the cron secret unless told otherwise
	if cfg.App.AdminAPISecret == "" {
		cfg.App.AdminAPISecret = cfg.Reminders.CronSecret
	}
	if cfg.Bot.BotPhone == "" {
		cfg.Bot.BotPhone = NormalizePhone(cfg.Twilio.WhatsAppFrom)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	v.SetDefault("db_driver", "postgres")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_name", "delivery")
	v.SetDefault("db_sslmode", "disable")

	v.SetDefault("session_timeout_minutes", 10)
	v.SetDefault("delivery_code_attempts", 10)
	v.SetDefault("notify_timeout_seconds", 10)
	v.SetDefault("dedup_ttl_minutes", 60)

	v.SetDefault("reminder_threshold_minutes", 30)
	v.SetDefault("reminder_interval_minutes", 0)

	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_use_path_style", true)
}

// NormalizePhone strips the WhatsApp channel prefix and any formatting,
// keeping a leading "+" and the digits.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "whatsapp:")
	var b strings.Builder
	for i, r := range raw {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out != "" && out[0] != '+' {
		out = "+" + out
	}
	return out
}
