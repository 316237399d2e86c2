package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Poller   PollerConfig
	Sessions SessionsConfig
	Notify   NotifyConfig
	Redis    RedisConfig
	Queue    QueueConfig
	Tracing  TracingConfig
	Logging  LoggingConfig
	Sources  []SourceConfig
}

// SourceConfig describes one pollable source reachable through a bridge
// endpoint that serves now-playing snapshots as JSON.
type SourceConfig struct {
	Kind        string // box, speaker, streaming
	DeviceName  string
	DeviceModel string
	UserName    string // empty for single-user devices
	URL         string
}

// ServerConfig holds HTTP server configuration for the read-only API
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds event/session store configuration. SQLite is the
// default embeddable backend; postgres is available for shared deployments.
type DatabaseConfig struct {
	Type       string // sqlite, postgres
	SQLitePath string
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
}

// PollerConfig holds poll cycle configuration
type PollerConfig struct {
	Interval      time.Duration
	SourceTimeout time.Duration
}

// SessionsConfig holds session reconstruction configuration
type SessionsConfig struct {
	RebuildInterval time.Duration
	GapThreshold    time.Duration
	MinWatchTime    time.Duration
}

// NotifyConfig holds failure notification configuration
type NotifyConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
	StateBackend     string // file, redis
	StateFile        string
	SMTP             SMTPConfig
}

// SMTPConfig holds outbound email configuration. An empty From disables
// sending; the notifier then only logs what it would have sent.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Password string
	To       string
}

// RedisConfig holds Redis configuration for the redis state backend
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// QueueConfig holds message queue configuration for the optional
// accepted-event publisher
type QueueConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// TracingConfig holds distributed tracing configuration
type TracingConfig struct {
	Enabled        bool
	JaegerEndpoint string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "10s")

	// Database defaults
	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.sqlitePath", "playpulse.db")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "playpulse")
	viper.SetDefault("database.sslmode", "disable")

	// Poller defaults
	viper.SetDefault("poller.interval", "1m")
	viper.SetDefault("poller.sourceTimeout", "30s")

	// Session reconstruction defaults
	viper.SetDefault("sessions.rebuildInterval", "15m")
	viper.SetDefault("sessions.gapThreshold", "10m")
	viper.SetDefault("sessions.minWatchTime", "30s")

	// Notification defaults
	viper.SetDefault("notify.failureThreshold", 3)
	viper.SetDefault("notify.cooldown", "60m")
	viper.SetDefault("notify.stateBackend", "file")
	viper.SetDefault("notify.stateFile", ".failure_state.json")
	viper.SetDefault("notify.smtp.host", "smtp.gmail.com")
	viper.SetDefault("notify.smtp.port", 587)
	viper.SetDefault("notify.smtp.from", "")
	viper.SetDefault("notify.smtp.password", "")
	viper.SetDefault("notify.smtp.to", "")

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Queue defaults
	viper.SetDefault("queue.enabled", false)
	viper.SetDefault("queue.host", "localhost")
	viper.SetDefault("queue.port", 5672)
	viper.SetDefault("queue.user", "guest")
	viper.SetDefault("queue.password", "guest")
	viper.SetDefault("queue.vhost", "/")

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.jaegerEndpoint", "http://localhost:14268/api/traces")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}
