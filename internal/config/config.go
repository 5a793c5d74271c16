package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"eastask-go/pkg/logger"
)

type Config struct {
	HTTPPort        string
	Env             string
	CORSOrigins     []string
	MetricsEnabled  bool
	ShutdownTimeout time.Duration
	DB             DBConfig
	Redis          RedisConfig
	Supabase       SupabaseConfig
	Workspaces     WorkspacesConfig
	Invitations    InvitationsConfig
	Presence       PresenceConfig
}

type DBConfig struct {
	DSN             string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	TimeZone        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type RedisConfig struct {
	URL             string
	ActivityMaxLen  int64
	StreamBlockTime time.Duration
}

type SupabaseConfig struct {
	URL            string
	PublishableKey string
	AuthTimeout    time.Duration
	SkipAuth       bool
	MockUserID     string
	MockUserEmail  string
	MockUserName   string
	MockUserAvatar string
}

type WorkspacesConfig struct {
	CacheTTL time.Duration
}

type InvitationsConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

type PresenceConfig struct {
	Throttle   time.Duration
	StaleAfter time.Duration
}

func Load(log logger.Logger) (Config, error) {
	err := loadDotEnv(log)
	if err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		CORSOrigins:     getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		DB: DBConfig{
			DSN:             getEnv("DB_DSN", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "eastask"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			TimeZone:        getEnv("DB_TIMEZONE", "UTC"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:             getEnv("REDIS_URL", ""),
			ActivityMaxLen:  int64(getEnvInt("REDIS_ACTIVITY_MAXLEN", 1000)),
			StreamBlockTime: getEnvDuration("REDIS_STREAM_BLOCK", 25*time.Second),
		},
		Supabase: SupabaseConfig{
			URL:            getEnv("SUPABASE_URL", ""),
			PublishableKey: getEnv("SUPABASE_PUBLISHABLE_KEY", getEnv("VITE_SUPABASE_PUBLISHABLE_KEY", "")),
			AuthTimeout:    getEnvDuration("SUPABASE_AUTH_TIMEOUT", 5*time.Second),
			SkipAuth:       getEnvBool("AUTH_SKIP", false),
			MockUserID:     getEnv("AUTH_MOCK_USER_ID", "00000000-0000-0000-0000-000000000001"),
			MockUserEmail:  getEnv("AUTH_MOCK_USER_EMAIL", ""),
			MockUserName:   getEnv("AUTH_MOCK_USER_NAME", ""),
			MockUserAvatar: getEnv("AUTH_MOCK_USER_AVATAR_URL", ""),
		},
		Workspaces: WorkspacesConfig{
			CacheTTL: getEnvDuration("WORKSPACE_CACHE_TTL", time.Minute),
		},
		Invitations: InvitationsConfig{
			TTL:           getEnvDuration("INVITATION_TTL", 7*24*time.Hour),
			SweepInterval: getEnvDuration("INVITATION_SWEEP_INTERVAL", 10*time.Minute),
		},
		Presence: PresenceConfig{
			Throttle:   getEnvDuration("PRESENCE_THROTTLE", 5*time.Second),
			StaleAfter: getEnvDuration("PRESENCE_STALE_AFTER", 2*time.Minute),
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
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}

func (c DBConfig) GetDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.TimeZone
}
