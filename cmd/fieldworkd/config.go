package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
)

// envPrefix namespaces environment overrides, e.g. FIELDWORK_STORE_DRIVER.
const envPrefix = "FIELDWORK"

// Config is the daemon configuration. It is read from fieldwork.yaml (or
// --config) and FIELDWORK_* environment variables, in that order of
// precedence from lowest to highest.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Store     StoreConfig     `mapstructure:"store"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Media     MediaConfig     `mapstructure:"media"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects the persistence backend: memory, redis, postgres or
// mongo.
type StoreConfig struct {
	Driver      string         `mapstructure:"driver"`
	AutoMigrate bool           `mapstructure:"auto_migrate"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
	Mongo       MongoConfig    `mapstructure:"mongo"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// GeneratorConfig selects the work-instruction generator: claude, remote
// or none.
type GeneratorConfig struct {
	Driver string       `mapstructure:"driver"`
	Claude ClaudeConfig `mapstructure:"claude"`
	Remote RemoteConfig `mapstructure:"remote"`
}

type ClaudeConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	MaxTokens int64  `mapstructure:"max_tokens"`
}

type RemoteConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

// NotifyConfig configures the outbound channels. Addresses containing "@"
// go to email, everything else to SMS. An unconfigured channel falls back
// to logging.
type NotifyConfig struct {
	SendGrid SendGridConfig `mapstructure:"sendgrid"`
	SMS      SMSConfig      `mapstructure:"sms"`
}

type SendGridConfig struct {
	APIKey   string `mapstructure:"api_key"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
	Subject  string `mapstructure:"subject"`
}

type SMSConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Token      string `mapstructure:"token"`
}

// MediaConfig selects where evidence is stored: memory or s3.
type MediaConfig struct {
	Driver string   `mapstructure:"driver"`
	S3     S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket          string        `mapstructure:"bucket"`
	Region          string        `mapstructure:"region"`
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	URLExpiry       time.Duration `mapstructure:"url_expiry"`
}

type EngineConfig struct {
	GenerationTimeout     time.Duration `mapstructure:"generation_timeout"`
	ActionTimeout         time.Duration `mapstructure:"action_timeout"`
	ReconcileAttempts     int           `mapstructure:"reconcile_attempts"`
	ReconcileInitialDelay time.Duration `mapstructure:"reconcile_initial_delay"`
	ReconcileMaxDelay     time.Duration `mapstructure:"reconcile_max_delay"`
	MutateAttempts        int           `mapstructure:"mutate_attempts"`
	SecondHalfDelay       time.Duration `mapstructure:"second_half_delay"`
	AdminRecipients       []string      `mapstructure:"admin_recipients"`
	MilestoneThresholds   []int         `mapstructure:"milestone_thresholds"`
	BroadcastConcurrency  int           `mapstructure:"broadcast_concurrency"`
	BroadcastRate         float64       `mapstructure:"broadcast_rate"`
}

type AuditConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Actions []string `mapstructure:"actions"`
}

// setDefaults registers every key so environment variables are picked up
// by Unmarshal even when the config file omits them.
func setDefaults(v *viper.Viper) {
	def := fieldwork.DefaultConfig()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.auto_migrate", true)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("store.mongo.database", "fieldwork")

	v.SetDefault("generator.driver", "none")
	v.SetDefault("generator.claude.api_key", "")
	v.SetDefault("generator.claude.base_url", "")
	v.SetDefault("generator.claude.model", "")
	v.SetDefault("generator.claude.max_tokens", 0)
	v.SetDefault("generator.remote.url", "")
	v.SetDefault("generator.remote.token", "")

	v.SetDefault("notify.sendgrid.api_key", "")
	v.SetDefault("notify.sendgrid.from", "")
	v.SetDefault("notify.sendgrid.from_name", "Garage Scholars")
	v.SetDefault("notify.sendgrid.subject", "Garage Scholars update")
	v.SetDefault("notify.sms.webhook_url", "")
	v.SetDefault("notify.sms.token", "")

	v.SetDefault("media.driver", "memory")
	v.SetDefault("media.s3.bucket", "")
	v.SetDefault("media.s3.region", "us-east-1")
	v.SetDefault("media.s3.endpoint", "")
	v.SetDefault("media.s3.access_key_id", "")
	v.SetDefault("media.s3.secret_access_key", "")
	v.SetDefault("media.s3.url_expiry", time.Hour)

	v.SetDefault("engine.generation_timeout", def.GenerationTimeout)
	v.SetDefault("engine.action_timeout", def.ActionTimeout)
	v.SetDefault("engine.reconcile_attempts", def.ReconcileAttempts)
	v.SetDefault("engine.reconcile_initial_delay", def.ReconcileInitialDelay)
	v.SetDefault("engine.reconcile_max_delay", def.ReconcileMaxDelay)
	v.SetDefault("engine.mutate_attempts", def.MutateAttempts)
	v.SetDefault("engine.second_half_delay", def.SecondHalfDelay)
	v.SetDefault("engine.admin_recipients", []string{})
	v.SetDefault("engine.milestone_thresholds", def.MilestoneThresholds)
	v.SetDefault("engine.broadcast_concurrency", def.BroadcastConcurrency)
	v.SetDefault("engine.broadcast_rate", def.BroadcastRate)

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.actions", []string{})
}

// loadConfig reads configuration into a Config. A missing config file is
// not an error when path is empty.
func loadConfig(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fieldwork")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/fieldwork")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks driver names and the settings each driver requires.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "redis":
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return errors.New("config: store.postgres.dsn is required")
		}
	case "mongo":
		if c.Store.Mongo.URI == "" || c.Store.Mongo.Database == "" {
			return errors.New("config: store.mongo.uri and store.mongo.database are required")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}

	switch c.Generator.Driver {
	case "none":
	case "claude":
		if c.Generator.Claude.APIKey == "" {
			return errors.New("config: generator.claude.api_key is required")
		}
	case "remote":
		if c.Generator.Remote.URL == "" {
			return errors.New("config: generator.remote.url is required")
		}
	default:
		return fmt.Errorf("config: unknown generator driver %q", c.Generator.Driver)
	}

	switch c.Media.Driver {
	case "memory":
	case "s3":
		if c.Media.S3.Bucket == "" {
			return errors.New("config: media.s3.bucket is required")
		}
	default:
		return fmt.Errorf("config: unknown media driver %q", c.Media.Driver)
	}
	return nil
}

// FieldworkConfig maps the engine section onto the coordinator config.
func (c *Config) FieldworkConfig() fieldwork.Config {
	e := c.Engine
	return fieldwork.Config{
		GenerationTimeout:     e.GenerationTimeout,
		ActionTimeout:         e.ActionTimeout,
		ReconcileAttempts:     e.ReconcileAttempts,
		ReconcileInitialDelay: e.ReconcileInitialDelay,
		ReconcileMaxDelay:     e.ReconcileMaxDelay,
		MutateAttempts:        e.MutateAttempts,
		SecondHalfDelay:       e.SecondHalfDelay,
		AdminRecipients:       e.AdminRecipients,
		MilestoneThresholds:   e.MilestoneThresholds,
		BroadcastConcurrency:  e.BroadcastConcurrency,
		BroadcastRate:         e.BroadcastRate,
	}
}
