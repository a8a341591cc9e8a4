package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Poller  PollerConfig  `mapstructure:"poller"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	MaxRecvMsgSize int    `mapstructure:"max_recv_msg_size"`
	// MaxTopics caps how many topics one server will serve. Zero means no cap.
	MaxTopics      int    `mapstructure:"max_topics"`
}

// StorageConfig contains storage-related configuration
type StorageConfig struct {
	Backend        string      `mapstructure:"backend"`
	ContentBackend string      `mapstructure:"content_backend"`
	IndexBackend   string      `mapstructure:"index_backend"`
	DataDir        string      `mapstructure:"data_dir"`
	GCInterval     int         `mapstructure:"gc_interval"`
	Redis          RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains the connection settings for the redis backend
type RedisConfig struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	DialTimeoutMs int    `mapstructure:"dial_timeout_ms"`
}

// QueueConfig holds the per-topic defaults shared by every delay queue.
type QueueConfig struct {
	DelaySeconds         int    `mapstructure:"delay_seconds"`
	BatchSize            int    `mapstructure:"batch_size"`
	GraceSeconds         int    `mapstructure:"grace_seconds"`
	PoolExtensionSeconds int    `mapstructure:"pool_extension_seconds"`
	RetryDelaySeconds    int    `mapstructure:"retry_delay_seconds"`
	KeyPrefix            string `mapstructure:"key_prefix"`
}

// PollerConfig controls the consumer loop
type PollerConfig struct {
	IntervalMs int `mapstructure:"interval_ms"`
	Workers    int `mapstructure:"workers"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var backends = map[string]bool{
	"memory":    true,
	"badger":    true,
	"redis":     true,
	"composite": true,
}

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/delayq")
	}

	setDefaults(v)

	v.SetEnvPrefix("DELAYQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 9000)
	v.SetDefault("server.max_recv_msg_size", 4<<20)
	v.SetDefault("server.max_topics", 1024)

	// Storage defaults
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.content_backend", "memory")
	v.SetDefault("storage.index_backend", "badger")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.gc_interval", 300)
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.dial_timeout_ms", 5000)

	// Queue defaults
	v.SetDefault("queue.delay_seconds", 30)
	v.SetDefault("queue.batch_size", 50)
	v.SetDefault("queue.grace_seconds", 360)
	v.SetDefault("queue.pool_extension_seconds", 30*60)
	v.SetDefault("queue.retry_delay_seconds", 30)
	v.SetDefault("queue.key_prefix", "queue_delay")

	// Poller defaults
	v.SetDefault("poller.interval_ms", 1000)
	v.SetDefault("poller.workers", 1)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	config.Storage.DataDir = filepath.Clean(config.Storage.DataDir)

	if !backends[config.Storage.Backend] {
		return fmt.Errorf("storage.backend %q is not supported", config.Storage.Backend)
	}
	if config.Storage.Backend == "composite" {
		for _, b := range []string{config.Storage.ContentBackend, config.Storage.IndexBackend} {
			if !backends[b] || b == "composite" {
				return fmt.Errorf("composite storage cannot use backend %q", b)
			}
		}
	}

	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if config.Server.MaxTopics < 0 {
		return fmt.Errorf("server.max_topics must not be negative")
	}

	if config.Queue.DelaySeconds < 0 {
		return fmt.Errorf("queue.delay_seconds must not be negative")
	}
	if config.Queue.BatchSize < 1 {
		return fmt.Errorf("queue.batch_size must be positive")
	}
	if config.Queue.GraceSeconds < 0 || config.Queue.PoolExtensionSeconds < 0 {
		return fmt.Errorf("queue grace and pool extension must not be negative")
	}
	if config.Queue.RetryDelaySeconds < 0 {
		return fmt.Errorf("queue.retry_delay_seconds must not be negative")
	}
	if config.Queue.KeyPrefix == "" {
		return fmt.Errorf("queue.key_prefix is required")
	}

	if config.Poller.IntervalMs < 1 {
		return fmt.Errorf("poller.interval_ms must be positive")
	}
	if config.Poller.Workers < 1 {
		config.Poller.Workers = 1
	}

	return nil
}

// GetDefaultConfig returns a default configuration
func GetDefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	_ = v.Unmarshal(&config)
	_ = validateConfig(&config)

	return &config
}
