package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Monitor   MonitorConfig   `mapstructure:"monitoring"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Redis     RedisConfig     `mapstructure:"redis"`
}

type SchedulerConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	PollingIntervalMs int    `mapstructure:"polling_interval_ms"`
	// PollingCron, when set, overrides PollingIntervalMs with a cron-style
	// re-arm schedule for the due-task scan cadence itself (not for
	// individual tasks, which have no cron concept - see internal/scheduler).
	PollingCron string `mapstructure:"polling_cron"`
}

func (c SchedulerConfig) PollingInterval() time.Duration {
	return time.Duration(c.PollingIntervalMs) * time.Millisecond
}

type WorkerConfig struct {
	Enabled              bool `mapstructure:"enabled"`
	HeartbeatIntervalMs  int  `mapstructure:"heartbeat_interval_ms"`
	HeartbeatTimeoutMs   int  `mapstructure:"heartbeat_timeout_ms"`
	ProcessingIntervalMs int  `mapstructure:"processing_interval_ms"`
}

func (c WorkerConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMs) * time.Millisecond
}

func (c WorkerConfig) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutMs) * time.Millisecond
}

func (c WorkerConfig) ProcessingInterval() time.Duration {
	return time.Duration(c.ProcessingIntervalMs) * time.Millisecond
}

type RetryConfig struct {
	DefaultMaxRetries int   `mapstructure:"default_max_retries"`
	BaseDelayMs       int64 `mapstructure:"base_delay_ms"`
	MaxDelayMs        int64 `mapstructure:"max_delay_ms"`
}

func (c RetryConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

func (c RetryConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}

type MonitorConfig struct {
	FailureDetectionIntervalMs int `mapstructure:"failure_detection_interval_ms"`
	HeartbeatRetentionHours    int `mapstructure:"heartbeat_retention_hours"`
	StuckExecutionMinutes      int `mapstructure:"stuck_execution_minutes"`
}

func (c MonitorConfig) FailureDetectionInterval() time.Duration {
	return time.Duration(c.FailureDetectionIntervalMs) * time.Millisecond
}

func (c MonitorConfig) HeartbeatRetention() time.Duration {
	return time.Duration(c.HeartbeatRetentionHours) * time.Hour
}

func (c MonitorConfig) StuckExecutionThreshold() time.Duration {
	return time.Duration(c.StuckExecutionMinutes) * time.Minute
}

type DatabaseConfig struct {
	Host                  string        `mapstructure:"host"`
	Port                  int           `mapstructure:"port"`
	Database              string        `mapstructure:"database"`
	User                  string        `mapstructure:"user"`
	Password              string        `mapstructure:"password"`
	MaxConnections        int           `mapstructure:"max_connections"`
	MaxIdleConnections    int           `mapstructure:"max_idle_connections"`
	ConnectionMaxLifetime time.Duration `mapstructure:"connection_max_lifetime"`
}

type ServerConfig struct {
	IP             string        `mapstructure:"ip"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.polling_interval_ms", 1000)
	viper.SetDefault("scheduler.polling_cron", "")

	viper.SetDefault("worker.enabled", true)
	viper.SetDefault("worker.heartbeat_interval_ms", 30000)
	viper.SetDefault("worker.heartbeat_timeout_ms", 60000)
	viper.SetDefault("worker.processing_interval_ms", 1000)

	viper.SetDefault("retry.default_max_retries", 3)
	viper.SetDefault("retry.base_delay_ms", 1000)
	viper.SetDefault("retry.max_delay_ms", 300000)

	viper.SetDefault("monitoring.failure_detection_interval_ms", 30000)
	viper.SetDefault("monitoring.heartbeat_retention_hours", 24)
	viper.SetDefault("monitoring.stuck_execution_minutes", 10)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.max_connections", 20)
	viper.SetDefault("database.max_idle_connections", 10)
	viper.SetDefault("database.connection_max_lifetime", "1h")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.max_header_bytes", 1048576)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
