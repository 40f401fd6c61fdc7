// internal/pkg/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds everything both binaries need. Values come from an optional
// YAML file (CONFIG_PATH) with environment variables taking precedence, so a
// bare container can run on env vars alone.
type Config struct {
	Service struct {
		Name     string `yaml:"name"`
		LogLevel string `yaml:"logLevel"`
	} `yaml:"service"`

	HTTP struct {
		Port int `yaml:"port"`
	} `yaml:"http"`

	MySQL struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`

	Kafka struct {
		Brokers     []string `yaml:"brokers"`
		TopicPrefix string   `yaml:"topicPrefix"`
		EventTopic  string   `yaml:"eventTopic"`
	} `yaml:"kafka"`

	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`

	Jaeger struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"jaeger"`

	Worker struct {
		Concurrency int           `yaml:"concurrency"`
		RetryDelay  time.Duration `yaml:"retryDelay"`
	} `yaml:"worker"`

	Gateway struct {
		ChargeSuccessRate float64       `yaml:"chargeSuccessRate"`
		RefundSuccessRate float64       `yaml:"refundSuccessRate"`
		MinLatency        time.Duration `yaml:"minLatency"`
		MaxLatency        time.Duration `yaml:"maxLatency"`
	} `yaml:"gateway"`
}

// Load reads the YAML file at CONFIG_PATH (if any), applies defaults and env
// overrides, and returns the assembled config.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config file")
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Service.Name = "fulfillment"
	cfg.Service.LogLevel = "info"
	cfg.HTTP.Port = 8080
	cfg.MySQL.DSN = "root:root@tcp(localhost:3306)/fulfillment?charset=utf8mb4&parseTime=True&loc=UTC"
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Kafka.TopicPrefix = "tasks"
	cfg.Kafka.EventTopic = "fulfillment.events"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Worker.Concurrency = 4
	cfg.Worker.RetryDelay = 2 * time.Second
	cfg.Gateway.ChargeSuccessRate = 0.90
	cfg.Gateway.RefundSuccessRate = 0.95
	cfg.Gateway.MinLatency = time.Second
	cfg.Gateway.MaxLatency = 3 * time.Second
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SERVICE_NAME"); v != "" {
		cfg.Service.Name = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Service.LogLevel = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = p
		}
	}
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.MySQL.DSN = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("JAEGER_ENDPOINT"); v != "" {
		cfg.Jaeger.Endpoint = v
	}
}
