package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// EnvPrefix namespaces environment overrides, e.g. BINGO_DATABASE_PASSWORD.
const EnvPrefix = "BINGO"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Mode     string `mapstructure:"mode"`
	WorkerID int64  `mapstructure:"worker_id"`
}

type DatabaseConfig struct {
	Driver             string `mapstructure:"driver"`
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	Name               string `mapstructure:"name"`
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMin int    `mapstructure:"conn_max_lifetime_minutes"`
	Isolation          string `mapstructure:"isolation"`
	AutoMigrate        bool   `mapstructure:"auto_migrate"`
	LogLevel           string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	GameSettled string `mapstructure:"game_settled"`
}

type BusinessConfig struct {
	GameTTLHours       int `mapstructure:"game_ttl_hours"`
	MaxRetryCount      int `mapstructure:"max_retry_count"`
	BcryptCost         int `mapstructure:"bcrypt_cost"`
	SettleLockSeconds  int `mapstructure:"settle_lock_seconds"`
	MinPasswordLength  int `mapstructure:"min_password_length"`
	MaxListLimit       int `mapstructure:"max_list_limit"`
	AuditIntervalSecs  int `mapstructure:"audit_interval_seconds"`
	ExpiryIntervalSecs int `mapstructure:"expiry_interval_seconds"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.worker_id", 1)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "bingo")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime_minutes", 60)
	v.SetDefault("database.isolation", "")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic.game_settled", "bingo.game.settled")

	v.SetDefault("business.game_ttl_hours", 24)
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.bcrypt_cost", bcrypt.DefaultCost)
	v.SetDefault("business.settle_lock_seconds", 10)
	v.SetDefault("business.min_password_length", 6)
	v.SetDefault("business.max_list_limit", 500)
	v.SetDefault("business.audit_interval_seconds", 300)
	v.SetDefault("business.expiry_interval_seconds", 60)

	v.SetDefault("log.level", "info")
}

// Load reads .env (if present), then the YAML file at path (if non-empty),
// then BINGO_* environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("config: unsupported database.driver %q", c.Database.Driver)
	}
	switch c.Database.Isolation {
	case "", "read_committed", "repeatable_read", "serializable":
	default:
		return fmt.Errorf("config: unsupported database.isolation %q", c.Database.Isolation)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	if c.Business.BcryptCost < bcrypt.MinCost || c.Business.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("config: business.bcrypt_cost must be within %d-%d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Business.MaxRetryCount <= 0 {
		return errors.New("config: business.max_retry_count must be positive")
	}
	if c.Business.GameTTLHours <= 0 {
		return errors.New("config: business.game_ttl_hours must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("config: kafka.brokers is empty")
	}
	return nil
}

// DSN is the driver-native connection string for gorm.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			d.Host, d.Port, d.User, d.Password, d.Name)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&clientFoundRows=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// MigrationURL is the URL form golang-migrate expects for the same database.
func (d DatabaseConfig) MigrationURL() string {
	if d.Driver == "postgres" {
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(d.User, d.Password),
			Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
			Path:     "/" + d.Name,
			RawQuery: "sslmode=disable",
		}
		return u.String()
	}
	return fmt.Sprintf("mysql://%s@tcp(%s:%d)/%s?multiStatements=true",
		url.UserPassword(d.User, d.Password).String(), d.Host, d.Port, d.Name)
}

func (d DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(d.ConnMaxLifetimeMin) * time.Minute
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (b BusinessConfig) GameTTL() time.Duration {
	return time.Duration(b.GameTTLHours) * time.Hour
}

func (b BusinessConfig) SettleLockTTL() time.Duration {
	return time.Duration(b.SettleLockSeconds) * time.Second
}

// Default returns the built-in defaults without touching the filesystem or
// the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}
