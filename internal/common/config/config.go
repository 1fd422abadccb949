package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Logging       LoggingConfig
	Redis         RedisConfig
	RateLimit     RateLimitConfig
	Presence      PresenceConfig
	Notifications NotificationsConfig
	Storage       StorageConfig
	Gif           GifConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	MetricsPort  int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// AuthConfig covers verification only. Tokens are issued by the external
// identity provider; this service just checks the signature and trusts
// the subject claim.
type AuthConfig struct {
	TokenSecret   string
	TokenIssuer   string
	TokenAudience string
}

type LoggingConfig struct {
	Level      string
	Format     string
	Output     string
	EnableFile bool
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int
}

type PresenceConfig struct {
	HeartbeatInterval time.Duration
	AwayThreshold     time.Duration
	OfflineThreshold  time.Duration
}

type NotificationsConfig struct {
	QueueSize    int
	Workers      int
	KafkaEnabled bool
	KafkaBrokers string
	KafkaTopic   string
}

type StorageConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PublicURL string
}

type GifConfig struct {
	APIKey  string
	BaseURL string
	Limit   int
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			MetricsPort:  getEnvInt("METRICS_PORT", 9100),
			ReadTimeout:  getEnvDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getEnvDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "relay"),
			MaxConns:        getEnvInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
		},
		Auth: AuthConfig{
			TokenSecret:   getEnv("AUTH_TOKEN_SECRET", "change-me-in-production"),
			TokenIssuer:   getEnv("AUTH_TOKEN_ISSUER", "relay-idp"),
			TokenAudience: getEnv("AUTH_TOKEN_AUDIENCE", "relay"),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			EnableFile: getEnvBool("LOG_ENABLE_FILE", false),
			FilePath:   getEnv("LOG_FILE_PATH", "/var/log/relay/app.log"),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  getEnvBool("REDIS_ENABLED", true),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMinute: getEnvInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 60),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 10),
		},
		Presence: PresenceConfig{
			HeartbeatInterval: getEnvDuration("PRESENCE_HEARTBEAT_INTERVAL", 30*time.Second),
			AwayThreshold:     getEnvDuration("PRESENCE_AWAY_THRESHOLD", 5*time.Minute),
			OfflineThreshold:  getEnvDuration("PRESENCE_OFFLINE_THRESHOLD", 10*time.Minute),
		},
		Notifications: NotificationsConfig{
			QueueSize:    getEnvInt("NOTIFY_QUEUE_SIZE", 1024),
			Workers:      getEnvInt("NOTIFY_WORKERS", 4),
			KafkaEnabled: getEnvBool("NOTIFY_KAFKA_ENABLED", false),
			KafkaBrokers: getEnv("NOTIFY_KAFKA_BROKERS", "localhost:9092"),
			KafkaTopic:   getEnv("NOTIFY_KAFKA_TOPIC", "relay.push"),
		},
		Storage: StorageConfig{
			Bucket:    getEnv("STORAGE_BUCKET", "relay-media"),
			Region:    getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:  getEnv("STORAGE_ENDPOINT", ""),
			AccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey: getEnv("STORAGE_SECRET_KEY", ""),
			PublicURL: getEnv("STORAGE_PUBLIC_URL", ""),
		},
		Gif: GifConfig{
			APIKey:  getEnv("GIF_API_KEY", ""),
			BaseURL: getEnv("GIF_BASE_URL", "https://api.giphy.com/v1/gifs"),
			Limit:   getEnvInt("GIF_SEARCH_LIMIT", 20),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}
