package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Events    EventsConfig    `mapstructure:"events"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Photos    PhotosConfig    `mapstructure:"photos"`
}

type ServerConfig struct {
	Port         string   `mapstructure:"port"`
	GRPCPort     string   `mapstructure:"grpc_port"`
	ReadTimeout  int      `mapstructure:"read_timeout_seconds"`
	WriteTimeout int      `mapstructure:"write_timeout_seconds"`
	IdleTimeout  int      `mapstructure:"idle_timeout_seconds"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `mapstructure:"trust_proxy"`
}

type DatabaseConfig struct {
	// Driver is either "postgres" or "sqlite".
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	Host            string `mapstructure:"host"`
	Port            string `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time_seconds"`
}

type AuthConfig struct {
	Secret          string `mapstructure:"secret"`
	Algorithm       string `mapstructure:"algorithm"`
	TokenTTLMinutes int    `mapstructure:"token_ttl_minutes"`
	BcryptCost      int    `mapstructure:"bcrypt_cost"`
}

func (c AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

type RateLimitConfig struct {
	// AuthPerMinute limits login/register attempts per client IP.
	AuthPerMinute int `mapstructure:"auth_per_minute"`
	AuthBurst     int `mapstructure:"auth_burst"`
}

type EventsConfig struct {
	// Driver selects the student event publisher: "nats", "kafka" or "none".
	Driver string `mapstructure:"driver"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type PhotosConfig struct {
	Dir       string `mapstructure:"dir"`
	URLPrefix string `mapstructure:"url_prefix"`
	MaxBytes  int64  `mapstructure:"max_bytes"`
}

var defaultPaths = []string{
	"/configs",   // Kubernetes mount
	"./configs",  // repository root
	"../configs", // IDE from cmd/
}

var ErrMissingSecret = errors.New("auth.secret (JWT_SECRET) must be set")

func Load() (*Config, error) {
	// Get environment from ENV, default to "local"
	env := os.Getenv("ENV")
	if env == "" {
		env = "local"
	}
	return LoadFrom(env, defaultPaths...)
}

// LoadFrom reads config.<env>.yaml from the first matching path. The file is
// optional; environment variables always take precedence.
func LoadFrom(env string, paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.password", "DB_PASSWORD")
	_ = v.BindEnv("database.host", "DB_HOST")
	_ = v.BindEnv("database.dsn", "DB_DSN")
	_ = v.BindEnv("auth.secret", "JWT_SECRET")
	_ = v.BindEnv("server.port", "PORT")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if config.Env == "" {
		config.Env = env
	}

	if config.Auth.Secret == "" {
		return nil, ErrMissingSecret
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.grpc_port", "9090")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 15)
	v.SetDefault("server.idle_timeout_seconds", 60)
	v.SetDefault("server.trust_proxy", false)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "university")
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("auth.algorithm", "HS256")
	v.SetDefault("auth.token_ttl_minutes", 30)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("rate_limit.auth_per_minute", 30)
	v.SetDefault("rate_limit.auth_burst", 10)

	v.SetDefault("events.driver", "none")
	v.SetDefault("nats.subject", "university.students")
	v.SetDefault("kafka.topic", "university.students")

	v.SetDefault("photos.dir", "./data/photos")
	v.SetDefault("photos.url_prefix", "/static/photos")
	v.SetDefault("photos.max_bytes", 5<<20)
}
