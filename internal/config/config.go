package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	API       APIConfig       `envPrefix:"API_"`
	Socket    SocketConfig    `envPrefix:"SOCKET_"`
	User      UserConfig      `envPrefix:"USER_"`
	Chat      ChatConfig      `envPrefix:"CHAT_"`
	AMQP      AMQPConfig      `envPrefix:"AMQP_"`
	Telemetry TelemetryConfig `envPrefix:"OTEL_"`
	Log       LogConfig       `envPrefix:"LOG_"`

	MetricsAddr string `env:"METRICS_ADDR"`
}

type APIConfig struct {
	BaseURL    string        `env:"BASE_URL,required" validate:"required,url"`
	Token      string        `env:"TOKEN"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"10s" validate:"gt=0"`
	RetryCount int           `env:"RETRY_COUNT" envDefault:"3" validate:"gte=0"`
}

type SocketConfig struct {
	URL          string        `env:"URL,required" validate:"required,url"`
	PingInterval time.Duration `env:"PING_INTERVAL" envDefault:"50s" validate:"gt=0"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"10s" validate:"gt=0"`
}

type UserConfig struct {
	ID   string `env:"ID,required" validate:"required"`
	Name string `env:"NAME,required" validate:"required"`
	Role string `env:"ROLE"`
}

type ChatConfig struct {
	PageLimit     int           `env:"PAGE_LIMIT" envDefault:"20" validate:"min=1,max=200"`
	TypingTimeout time.Duration `env:"TYPING_TIMEOUT" envDefault:"3s" validate:"gt=0"`
	// TypingRate caps outbound typing events per second.
	TypingRate float64 `env:"TYPING_RATE" envDefault:"1" validate:"gt=0"`
}

type AMQPConfig struct {
	URL       string `env:"URL"`
	Exchange  string `env:"EXCHANGE" envDefault:"chat.client"`
	Service   string `env:"SERVICE" envDefault:"chat-client"`
	Env       string `env:"ENVIRONMENT" envDefault:"local"`
	AuditKey  string `env:"AUDIT_ROUTING_KEY" envDefault:"audit.chat_client"`
	NotifyKey string `env:"NOTIFY_ROUTING_KEY" envDefault:"notifications.chat_client"`
}

type TelemetryConfig struct {
	Endpoint    string `env:"EXPORTER_ENDPOINT"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"chat-client"`
	Insecure    bool   `env:"EXPORTER_INSECURE" envDefault:"true"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	Format string `env:"FORMAT" envDefault:"json" validate:"oneof=json console"`
}

// Load reads an optional .env file, then parses and validates the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// MustLoad is Load for process entry points.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
