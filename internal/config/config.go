// Package config loads the server configuration from an optional YAML file
// and LEDGER_-prefixed environment variables, with sensible defaults for a
// standalone in-memory run.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Transfer TransferConfig `mapstructure:"transfer"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// StoreConfig selects the LedgerStore implementation: "memory", "sqlite"
// (Path) or "postgres" (DSN).
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig enables the Redis pair locker for multi-instance deployments.
// Disabled, the engine uses in-process locks.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type TransferConfig struct {
	CheckedOverdrafts bool `mapstructure:"checked_overdrafts"`
	LockWaitMillis    int  `mapstructure:"lock_wait_millis"`
}

// Load reads configuration from configPath (optional, "" skips the file),
// then applies LEDGER_* environment overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.path", "ledger.db")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "transfer_posted")
	v.SetDefault("transfer.checked_overdrafts", false)
	v.SetDefault("transfer.lock_wait_millis", 5000)

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
