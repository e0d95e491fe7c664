// Package config loads service configuration from an optional YAML file and
// ANONID_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "ANONID"

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Hashing     HashingConfig     `mapstructure:"hashing"`
	Window      WindowConfig      `mapstructure:"window"`
	Quota       QuotaConfig       `mapstructure:"quota"`
	Correlation CorrelationConfig `mapstructure:"correlation"`
	Audit       AuditConfig       `mapstructure:"audit"`
	Events      EventsConfig      `mapstructure:"events"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Postgres    PostgresConfig    `mapstructure:"postgres"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	TrustProxy      bool          `mapstructure:"trust_proxy"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type AuthConfig struct {
	JWTSigningKey string `mapstructure:"jwt_signing_key" validate:"required,min=32"`
	Issuer        string `mapstructure:"issuer"          validate:"required"`
	Audience      string `mapstructure:"audience"        validate:"required"`
	// AdminToken guards operator endpoints. Empty disables them.
	AdminToken string `mapstructure:"admin_token" validate:"omitempty,min=16"`
}

type HashingConfig struct {
	Secret string `mapstructure:"secret" validate:"required,min=32"`
}

type WindowConfig struct {
	Months   int    `mapstructure:"months"   validate:"oneof=1 2 3 4 6 12"`
	Location string `mapstructure:"location" validate:"required"`
}

type QuotaConfig struct {
	DailyLimit int    `mapstructure:"daily_limit" validate:"gt=0"`
	Location   string `mapstructure:"location"    validate:"required"`
}

type CorrelationConfig struct {
	Threshold  int           `mapstructure:"threshold"  validate:"gte=0,lte=100"`
	HalfLife   time.Duration `mapstructure:"half_life"  validate:"gt=0"`
	Saturation float64       `mapstructure:"saturation" validate:"gt=0"`
}

type AuditConfig struct {
	Capacity int `mapstructure:"capacity" validate:"gt=0"`
}

type EventsConfig struct {
	BufferSize    int           `mapstructure:"buffer_size"    validate:"gt=0"`
	BatchSize     int           `mapstructure:"batch_size"     validate:"gt=0"`
	FlushInterval time.Duration `mapstructure:"flush_interval" validate:"gt=0"`
	// SampleRate applies to INFO events only; other severities are always kept.
	SampleRate   float64 `mapstructure:"sample_rate"   validate:"gte=0,lte=1"`
	RedisStream  string  `mapstructure:"redis_stream"`
	StreamMaxLen int64   `mapstructure:"stream_max_len" validate:"gte=0"`
}

// RedisConfig selects the shared quota and correlation stores. Empty URL keeps
// both in memory.
type RedisConfig struct {
	URL          string        `mapstructure:"url"           validate:"omitempty,url"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	PoolSize     int           `mapstructure:"pool_size"     validate:"gte=0"`
	MinIdleConns int           `mapstructure:"min_idle_conns" validate:"gte=0"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

func (c RedisConfig) Enabled() bool { return c.URL != "" }

// PostgresConfig enables the audit archive when DSN is set.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"    validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ArchiveQueue    int           `mapstructure:"archive_queue"     validate:"gt=0"`
}

func (c PostgresConfig) Enabled() bool { return c.DSN != "" }

// KafkaConfig enables the security event stream when Brokers is set.
type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	Topic             string   `mapstructure:"topic"              validate:"required_with=Brokers"`
	Partitions        int32    `mapstructure:"partitions"         validate:"gte=0"`
	ReplicationFactor int16    `mapstructure:"replication_factor" validate:"gte=0"`
}

func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

type MaintenanceConfig struct {
	PruneSchedule string `mapstructure:"prune_schedule" validate:"required"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"  validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.addr", ":8080")
	vip.SetDefault("server.trust_proxy", false)
	vip.SetDefault("server.read_timeout", "10s")
	vip.SetDefault("server.write_timeout", "15s")
	vip.SetDefault("server.shutdown_timeout", "15s")

	vip.SetDefault("auth.jwt_signing_key", "")
	vip.SetDefault("auth.issuer", "anonid")
	vip.SetDefault("auth.audience", "anonid-api")
	vip.SetDefault("auth.admin_token", "")

	vip.SetDefault("hashing.secret", "")

	vip.SetDefault("window.months", 6)
	vip.SetDefault("window.location", "UTC")

	vip.SetDefault("quota.daily_limit", 100)
	vip.SetDefault("quota.location", "UTC")

	vip.SetDefault("correlation.threshold", 95)
	vip.SetDefault("correlation.half_life", "1h")
	vip.SetDefault("correlation.saturation", 10.0)

	vip.SetDefault("audit.capacity", 100)

	vip.SetDefault("events.buffer_size", 1024)
	vip.SetDefault("events.batch_size", 64)
	vip.SetDefault("events.flush_interval", "1s")
	vip.SetDefault("events.sample_rate", 1.0)
	vip.SetDefault("events.redis_stream", "")
	vip.SetDefault("events.stream_max_len", 10000)

	vip.SetDefault("redis.url", "")
	vip.SetDefault("redis.key_prefix", "anonid:")
	vip.SetDefault("redis.pool_size", 10)
	vip.SetDefault("redis.min_idle_conns", 2)
	vip.SetDefault("redis.dial_timeout", "5s")
	vip.SetDefault("redis.read_timeout", "1s")
	vip.SetDefault("redis.write_timeout", "1s")

	vip.SetDefault("postgres.dsn", "")
	vip.SetDefault("postgres.max_open_conns", 10)
	vip.SetDefault("postgres.max_idle_conns", 5)
	vip.SetDefault("postgres.conn_max_lifetime", "30m")
	vip.SetDefault("postgres.archive_queue", 1024)

	vip.SetDefault("kafka.brokers", []string{})
	vip.SetDefault("kafka.topic", "anonid.security-events")
	vip.SetDefault("kafka.partitions", 3)
	vip.SetDefault("kafka.replication_factor", 1)

	vip.SetDefault("maintenance.prune_schedule", "*/15 * * * *")

	vip.SetDefault("logging.level", "info")
	vip.SetDefault("logging.format", "json")
}

// Load reads path (or ./config.yaml, ./configs/config.yaml when empty),
// overlays ANONID_* environment variables and validates the result.
// ANONID_HASHING_SECRET overrides hashing.secret, and so on.
func Load(path string) (*Config, error) {
	vip := viper.New()
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("config")
		vip.AddConfigPath("./configs")
		vip.AddConfigPath(".")
	}

	vip.SetConfigType("yaml")
	vip.SetEnvPrefix(envPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vip.AutomaticEnv()
	setDefaults(vip)

	if err := vip.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints and the time zones.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if _, err := time.LoadLocation(c.Window.Location); err != nil {
		return fmt.Errorf("config validation failed: window.location: %w", err)
	}
	if _, err := time.LoadLocation(c.Quota.Location); err != nil {
		return fmt.Errorf("config validation failed: quota.location: %w", err)
	}
	return nil
}

// WindowLocation returns the zone used for window boundaries. Call after
// Validate.
func (c *Config) WindowLocation() *time.Location {
	loc, err := time.LoadLocation(c.Window.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}

// QuotaLocation returns the zone whose midnight resets the daily quota.
func (c *Config) QuotaLocation() *time.Location {
	loc, err := time.LoadLocation(c.Quota.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}
