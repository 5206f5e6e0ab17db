package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Store       StoreConfig       `yaml:"store"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Notify      NotifyConfig      `yaml:"notify"`
	Stats       StatsConfig       `yaml:"stats"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel maps the configured level name to a slog level
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StoreConfig selects and configures the record store backend
type StoreConfig struct {
	Backend  string         `yaml:"backend"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// SQLiteConfig holds the local database file settings
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// KafkaConfig holds Kafka connection configuration for score ingest
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	GroupID      string        `yaml:"group_id"`
	Enabled      bool          `yaml:"enabled"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// NotifyConfig selects where batch summaries are published
type NotifyConfig struct {
	// Sinks lists enabled publishers: kafka, pubsub. The websocket feed is always on when serving.
	Sinks         []string `yaml:"sinks"`
	KafkaTopic    string   `yaml:"kafka_topic"`
	PubSubProject string   `yaml:"pubsub_project"`
	PubSubTopic   string   `yaml:"pubsub_topic"`
}

// HasSink reports whether the named sink is enabled
func (c NotifyConfig) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return true
		}
	}
	return false
}

// StatsConfig holds global stats batch job configuration
type StatsConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
	PageSize int           `yaml:"page_size"`
}

// LeaderboardConfig holds ranking query defaults
type LeaderboardConfig struct {
	DefaultGameID string `yaml:"default_game_id"`
	DefaultLimit  int    `yaml:"default_limit"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendRedis, BackendPostgres, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	for _, s := range c.Notify.Sinks {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "kafka", "pubsub":
		default:
			return fmt.Errorf("unknown notify sink %q", s)
		}
	}
	if c.Notify.HasSink("pubsub") && (c.Notify.PubSubProject == "" || c.Notify.PubSubTopic == "") {
		return fmt.Errorf("pubsub sink requires pubsub_project and pubsub_topic")
	}
	return nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 5 * time.Second
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Store.Backend == "" {
		c.Store.Backend = BackendRedis
	}

	// Redis defaults
	if c.Store.Redis.Addr == "" {
		c.Store.Redis.Addr = "localhost:6379"
	}
	if c.Store.Redis.PoolSize == 0 {
		c.Store.Redis.PoolSize = 100
	}
	if c.Store.Redis.MinIdleConns == 0 {
		c.Store.Redis.MinIdleConns = 10
	}
	if c.Store.Redis.DialTimeout == 0 {
		c.Store.Redis.DialTimeout = 5 * time.Second
	}
	if c.Store.Redis.ReadTimeout == 0 {
		c.Store.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Store.Redis.WriteTimeout == 0 {
		c.Store.Redis.WriteTimeout = 3 * time.Second
	}

	// PostgreSQL defaults
	if c.Store.Postgres.Host == "" {
		c.Store.Postgres.Host = "localhost"
	}
	if c.Store.Postgres.Port == 0 {
		c.Store.Postgres.Port = 5432
	}
	if c.Store.Postgres.MaxConnections == 0 {
		c.Store.Postgres.MaxConnections = 50
	}
	if c.Store.Postgres.MinConnections == 0 {
		c.Store.Postgres.MinConnections = 5
	}
	if c.Store.Postgres.MaxConnLifetime == 0 {
		c.Store.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Store.Postgres.MaxConnIdleTime == 0 {
		c.Store.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	if c.Store.SQLite.Path == "" {
		c.Store.SQLite.Path = "leaderboard.db"
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "game-scores"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "leaderboard-consumer"
	}
	if c.Kafka.BatchSize == 0 {
		c.Kafka.BatchSize = 100
	}
	if c.Kafka.BatchTimeout == 0 {
		c.Kafka.BatchTimeout = 1 * time.Second
	}

	if c.Notify.KafkaTopic == "" {
		c.Notify.KafkaTopic = "leaderboard-stats"
	}

	// Stats job defaults
	if c.Stats.Interval == 0 {
		c.Stats.Interval = 1 * time.Hour
	}
	if c.Stats.Timeout == 0 {
		c.Stats.Timeout = 5 * time.Minute
	}
	if c.Stats.PageSize == 0 {
		c.Stats.PageSize = 1000
	}

	// Leaderboard defaults
	if c.Leaderboard.DefaultGameID == "" {
		c.Leaderboard.DefaultGameID = "game001"
	}
	if c.Leaderboard.DefaultLimit == 0 {
		c.Leaderboard.DefaultLimit = 100
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Stats.Enabled = true
	return cfg
}
