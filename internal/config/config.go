// Package config provides environment configuration management.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all environment configuration for the worker.
type Config struct {
	DatabaseURL      string        `env:"DATABASE_URL"`
	RedisURL         string        `env:"REDIS_URL"`
	AWSRegion        string        `env:"AWS_REGION"          envDefault:"us-east-1"`
	AWSEndpointURL   string        `env:"AWS_ENDPOINT_URL"`
	QueueURL         string        `env:"SQS_QUEUE_URL"`
	TopicARN         string        `env:"SNS_TOPIC_ARN"`
	Microservice     string        `env:"MICROSERVICE_NAME"   envDefault:"seller"`
	MaxMessages      int32         `env:"SQS_MAX_MESSAGES"    envDefault:"10"`
	WaitTime         time.Duration `env:"SQS_WAIT_TIME"       envDefault:"20s"`
	ErrorBackoff     time.Duration `env:"SQS_ERROR_BACKOFF"   envDefault:"5s"`
	DownstreamBase   string        `env:"DOWNSTREAM_BASE_URL"`
	ClientServiceURL string        `env:"CLIENT_SERVICE_URL"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT"     envDefault:"10s"`
	CognitoPoolID    string        `env:"COGNITO_USER_POOL_ID"`
	LogLevel         string        `env:"LOG_LEVEL"           envDefault:"info"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
