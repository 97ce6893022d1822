// Package config loads process configuration from the environment so main
// stays lean. Aggregates never read configuration themselves; everything is
// passed in at wiring time.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full process configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Committee CommitteeConfig `mapstructure:"committee"`
}

// ServerConfig covers the ops HTTP server (health, metrics).
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or text
}

// PostgresConfig covers the aggregate stores. Empty URL means in-memory
// stores (dev and tests).
type PostgresConfig struct {
	URL         string `mapstructure:"url"`
	MaxConns    int32  `mapstructure:"max_conns"`
	MinConns    int32  `mapstructure:"min_conns"`
	AppName     string `mapstructure:"app_name"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// RedisConfig covers the workflow definition cache. Empty URL disables it.
type RedisConfig struct {
	URL           string        `mapstructure:"url"`
	PoolSize      int           `mapstructure:"pool_size"`
	MinIdleConns  int           `mapstructure:"min_idle_conns"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	DefinitionTTL time.Duration `mapstructure:"definition_ttl"`
}

// KafkaConfig covers audit event publishing. Empty brokers means events stay
// in the in-memory sink.
type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers"`
	AuditTopic string   `mapstructure:"audit_topic"`
}

// WorkersConfig tunes the background sweep loops.
type WorkersConfig struct {
	SLASweepInterval     time.Duration `mapstructure:"sla_sweep_interval"`
	ExpirySweepInterval  time.Duration `mapstructure:"expiry_sweep_interval"`
	DispatchInterval     time.Duration `mapstructure:"dispatch_interval"`
	MaxEscalationLevel   int           `mapstructure:"max_escalation_level"`
	NotificationAttempts int           `mapstructure:"notification_attempts"`
	NotificationBackoff  time.Duration `mapstructure:"notification_backoff"`
}

// CommitteeConfig holds default circulation thresholds for new reviews.
type CommitteeConfig struct {
	DefaultDeadlineHours int `mapstructure:"default_deadline_hours"`
}

// Load builds a Config from LOANFLOW_* environment variables with defaults
// suitable for local development.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LOANFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("postgres.url", "")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.app_name", "loanflow")
	v.SetDefault("postgres.auto_migrate", false)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.definition_ttl", 5*time.Minute)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.audit_topic", "loanflow.audit.v1")

	v.SetDefault("workers.sla_sweep_interval", time.Minute)
	v.SetDefault("workers.expiry_sweep_interval", time.Minute)
	v.SetDefault("workers.dispatch_interval", 30*time.Second)
	v.SetDefault("workers.max_escalation_level", 3)
	v.SetDefault("workers.notification_attempts", 5)
	v.SetDefault("workers.notification_backoff", 2*time.Second)

	v.SetDefault("committee.default_deadline_hours", 72)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
