package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings holds every tunable of the service. Keys map 1:1 onto upper-cased
// environment variables (server_port -> SERVER_PORT).
type Settings struct {
	Environment string `mapstructure:"environment"`
	ServerPort  string `mapstructure:"server_port"`
	GinMode     string `mapstructure:"gin_mode"`

	DBHost     string `mapstructure:"db_host"`
	DBPort     string `mapstructure:"db_port"`
	DBDatabase string `mapstructure:"db_database"`
	DBUsername string `mapstructure:"db_username"`
	DBPassword string `mapstructure:"db_password"`
	DebugSQL   bool   `mapstructure:"debug_sql"`

	// TablePrefix is the host shop's table prefix ($wpdb->prefix).
	TablePrefix string `mapstructure:"table_prefix"`

	BackfillBatchSize int    `mapstructure:"backfill_batch_size"`
	BackfillLockName  string `mapstructure:"backfill_lock_name"`
	BackfillNotifyTo  string `mapstructure:"backfill_notify_to"`

	JWTSecret     string        `mapstructure:"jwt_secret"`
	NonceSecret   string        `mapstructure:"nonce_secret"`
	NonceLifetime time.Duration `mapstructure:"nonce_lifetime"`
	WebhookSecret string        `mapstructure:"webhook_secret"`

	SMTPHost          string `mapstructure:"smtp_host"`
	SMTPPort          int    `mapstructure:"smtp_port"`
	SMTPUser          string `mapstructure:"smtp_user"`
	SMTPPass          string `mapstructure:"smtp_pass"`
	SMTPFrom          string `mapstructure:"smtp_from"` // e.g. "Shop Analytics <no-reply@shop.example>"
	SMTPSkipTLSVerify bool   `mapstructure:"smtp_skip_tls_verify"`

	RedisAddr    string `mapstructure:"redis_addr"`
	RedisChannel string `mapstructure:"redis_channel"`

	OtelEnabled bool   `mapstructure:"otel_enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// App is the settings loaded at startup.
var App = Defaults()

// Defaults returns the settings used when nothing is configured.
func Defaults() *Settings {
	return &Settings{
		Environment:       "development",
		ServerPort:        "8080",
		DBHost:            "127.0.0.1",
		DBPort:            "3306",
		TablePrefix:       "wp_",
		BackfillBatchSize: 50,
		BackfillLockName:  "atum_pl_analytics_backfill",
		NonceLifetime:     24 * time.Hour,
		SMTPPort:          587,
		RedisChannel:      "atum_pl_analytics_events",
		ServiceName:       "bom-analytics-helper",
	}
}

// Load reads an optional config.yaml (./configs or .) and overlays environment
// variables. The result is also stored in App.
func Load() (*Settings, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	d := Defaults()
	v.SetDefault("environment", d.Environment)
	v.SetDefault("server_port", d.ServerPort)
	v.SetDefault("gin_mode", "")
	v.SetDefault("db_host", d.DBHost)
	v.SetDefault("db_port", d.DBPort)
	v.SetDefault("db_database", "")
	v.SetDefault("db_username", "")
	v.SetDefault("db_password", "")
	v.SetDefault("debug_sql", false)
	v.SetDefault("table_prefix", d.TablePrefix)
	v.SetDefault("backfill_batch_size", d.BackfillBatchSize)
	v.SetDefault("backfill_lock_name", d.BackfillLockName)
	v.SetDefault("backfill_notify_to", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("nonce_secret", "")
	v.SetDefault("nonce_lifetime", d.NonceLifetime)
	v.SetDefault("webhook_secret", "")
	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", d.SMTPPort)
	v.SetDefault("smtp_user", "")
	v.SetDefault("smtp_pass", "")
	v.SetDefault("smtp_from", "")
	v.SetDefault("smtp_skip_tls_verify", false)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_channel", d.RedisChannel)
	v.SetDefault("otel_enabled", false)
	v.SetDefault("service_name", d.ServiceName)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Settings
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.BackfillBatchSize <= 0 {
		cfg.BackfillBatchSize = d.BackfillBatchSize
	}
	if cfg.SMTPPort <= 0 {
		cfg.SMTPPort = d.SMTPPort
	}
	if cfg.NonceSecret == "" {
		cfg.NonceSecret = cfg.JWTSecret
	}

	App = &cfg
	return &cfg, nil
}

// IsProduction reports whether ENVIRONMENT=production.
func (s *Settings) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(s.Environment), "production")
}

// NotifyRecipients splits BACKFILL_NOTIFY_TO on commas.
func (s *Settings) NotifyRecipients() []string {
	var out []string
	for _, part := range strings.Split(s.BackfillNotifyTo, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
