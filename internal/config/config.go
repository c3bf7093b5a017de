package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Redis     RedisConfig     `mapstructure:"redis"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
	Proctor   ProctorConfig   `mapstructure:"proctor"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests" validate:"gte=0"`
	WindowMinutes int `mapstructure:"window_minutes" validate:"gte=0"`
}

type ServerConfig struct {
	Port string `mapstructure:"port" validate:"required,numeric"`
	Mode string `mapstructure:"mode" validate:"omitempty,oneof=debug release test"`
}

type DatabaseConfig struct {
	Host      string `mapstructure:"host" validate:"required"`
	Port      int    `mapstructure:"port" validate:"gt=0"`
	User      string `mapstructure:"user" validate:"required"`
	Password  string `mapstructure:"password"`
	DBName    string `mapstructure:"dbname" validate:"required"`
	Charset   string `mapstructure:"charset"`
	ParseTime bool   `mapstructure:"parsetime"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret" validate:"required"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint" validate:"required_if=Enabled true"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// RealtimeConfig 实时推送（WebSocket）相关配置
type RealtimeConfig struct {
	// Broker 为 "redis" 时跨实例广播，"local" 时仅在本进程内分发
	Broker          string        `mapstructure:"broker" validate:"oneof=redis local"`
	RedisChannel    string        `mapstructure:"redis_channel" validate:"required_if=Broker redis"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size" validate:"gt=0"`
	WriteBufferSize int           `mapstructure:"write_buffer_size" validate:"gt=0"`
	SendBuffer      int           `mapstructure:"send_buffer" validate:"gt=0"`
	WriteWait       time.Duration `mapstructure:"write_wait" validate:"gt=0"`
	PongWait        time.Duration `mapstructure:"pong_wait" validate:"gt=0"`
	MaxMessageSize  int64         `mapstructure:"max_message_size" validate:"gt=0"`
}

// ProctorConfig 监考与自动交卷相关配置
type ProctorConfig struct {
	SweepInterval         time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
	CredentialConcurrency int           `mapstructure:"credential_concurrency" validate:"gt=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("rate_limit.max_requests", 6000)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("realtime.broker", "redis")
	v.SetDefault("realtime.redis_channel", "proctor_fanout")
	v.SetDefault("realtime.read_buffer_size", 1024)
	v.SetDefault("realtime.write_buffer_size", 1024)
	v.SetDefault("realtime.send_buffer", 256)
	v.SetDefault("realtime.write_wait", 10*time.Second)
	v.SetDefault("realtime.pong_wait", 60*time.Second)
	v.SetDefault("realtime.max_message_size", 4096)
	v.SetDefault("proctor.sweep_interval", 15*time.Second)
	v.SetDefault("proctor.credential_concurrency", 16)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("PROCTOR")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验配置字段，release 模式下额外要求足够长度的 JWT Secret
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}

	return nil
}
