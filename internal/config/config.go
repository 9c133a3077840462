package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Redis      RedisConfig      `yaml:"redis"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Game       GameConfig       `yaml:"game"`
	Challenges ChallengesConfig `yaml:"challenges"`
	Auth       AuthConfig       `yaml:"auth"`
	Sync       SyncConfig       `yaml:"sync"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
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

// KafkaConfig holds the telemetry event pipeline configuration
type KafkaConfig struct {
	Brokers        []string      `yaml:"brokers"`
	Topic          string        `yaml:"topic"`
	Enabled        bool          `yaml:"enabled"`
	FlushFrequency time.Duration `yaml:"flush_frequency"`
	FlushMessages  int           `yaml:"flush_messages"`
}

// GameConfig holds the live game-loop tuning parameters
type GameConfig struct {
	SpawnInterval  time.Duration `yaml:"spawn_interval"`
	InitialStars   int           `yaml:"initial_stars"`
	SpecialChance  float64       `yaml:"special_chance"`
	SpecialValue   int           `yaml:"special_value"`
	WorldExtent    float64       `yaml:"world_extent"`
	MoveStep       float64       `yaml:"move_step"`
	PickupRadius   float64       `yaml:"pickup_radius"`
	TickInterval   time.Duration `yaml:"tick_interval"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	XPPerStar      int           `yaml:"xp_per_star"`
}

// ChallengesConfig holds daily challenge generation parameters
type ChallengesConfig struct {
	Count    int           `yaml:"count"`
	Duration time.Duration `yaml:"duration"`
}

// AuthConfig holds the token verification configuration
type AuthConfig struct {
	Required bool          `yaml:"required"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// SyncConfig holds the progression persistence worker configuration
type SyncConfig struct {
	Interval time.Duration `yaml:"interval"`
	Enabled  bool          `yaml:"enabled"`
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

	// Apply defaults
	cfg.applyDefaults()

	return &cfg, nil
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

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 100
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 10
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 50
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 5
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "skysquad-events"
	}
	if c.Kafka.FlushFrequency == 0 {
		c.Kafka.FlushFrequency = 100 * time.Millisecond
	}
	if c.Kafka.FlushMessages == 0 {
		c.Kafka.FlushMessages = 100
	}

	// Game defaults
	if c.Game.SpawnInterval == 0 {
		c.Game.SpawnInterval = 1 * time.Second
	}
	if c.Game.InitialStars == 0 {
		c.Game.InitialStars = 3
	}
	if c.Game.SpecialChance == 0 {
		c.Game.SpecialChance = 0.10
	}
	if c.Game.SpecialValue == 0 {
		c.Game.SpecialValue = 5
	}
	if c.Game.WorldExtent == 0 {
		c.Game.WorldExtent = 4.5
	}
	if c.Game.MoveStep == 0 {
		c.Game.MoveStep = 0.1
	}
	if c.Game.PickupRadius == 0 {
		c.Game.PickupRadius = 0.5
	}
	if c.Game.TickInterval == 0 {
		c.Game.TickInterval = 50 * time.Millisecond
	}
	if c.Game.CommandTimeout == 0 {
		c.Game.CommandTimeout = 50 * time.Millisecond
	}
	if c.Game.XPPerStar == 0 {
		c.Game.XPPerStar = 10
	}

	// Challenge defaults
	if c.Challenges.Count == 0 {
		c.Challenges.Count = 3
	}
	if c.Challenges.Duration == 0 {
		c.Challenges.Duration = 24 * time.Hour
	}

	// Auth defaults
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 7 * 24 * time.Hour
	}

	// Sync defaults
	if c.Sync.Interval == 0 {
		c.Sync.Interval = 30 * time.Second
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Sync.Enabled = true
	return cfg
}
