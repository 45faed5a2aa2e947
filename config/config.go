/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"
)

const (
	DEFAULT_PORT = "5050"

	BackendMemory = "memory"
	BackendRedis  = "redis"

	defaultSettlementDelayMs = 1500
	defaultSuccessRate       = 0.8
	defaultIdempotencyPrefix = "payflow:idempotency:"
	defaultLockPrefix        = "payflow:lock:"
	defaultSettlementQueue   = "payflow:settlement"
	defaultWebhookQueue      = "payflow:webhook"
	defaultMonitoringPort    = "5004"
	defaultMaxRetry          = 5
	defaultLockTTLMs         = 5000
	defaultLockWaitMs        = 3000
	defaultRateLimitCleanup  = 10800
	defaultCertStoragePath   = "./certmagic"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL             bool   `json:"ssl" envconfig:"PAYFLOW_SERVER_SSL"`
	Secure          bool   `json:"secure" envconfig:"PAYFLOW_SERVER_SECURE"`
	SecretKey       string `json:"secret_key" envconfig:"PAYFLOW_SERVER_SECRET_KEY"`
	Domain          string `json:"domain" envconfig:"PAYFLOW_SERVER_SSL_DOMAIN"`
	Email           string `json:"ssl_email" envconfig:"PAYFLOW_SERVER_SSL_EMAIL"`
	Port            string `json:"port" envconfig:"PAYFLOW_SERVER_PORT"`
	CertStoragePath string `json:"cert_storage_path" envconfig:"PAYFLOW_SERVER_CERT_STORAGE_PATH"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"PAYFLOW_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"PAYFLOW_REDIS_SKIP_TLS_VERIFY"`
}

type QueueConfig struct {
	Backend         string `json:"backend" envconfig:"PAYFLOW_QUEUE_BACKEND"`
	SettlementQueue string `json:"settlement_queue" envconfig:"PAYFLOW_QUEUE_SETTLEMENT"`
	WebhookQueue    string `json:"webhook_queue" envconfig:"PAYFLOW_QUEUE_WEBHOOK"`
	MonitoringPort  string `json:"monitoring_port" envconfig:"PAYFLOW_QUEUE_MONITORING_PORT"`
	MaxRetry        int    `json:"max_retry" envconfig:"PAYFLOW_QUEUE_MAX_RETRY"`
}

type SettlementConfig struct {
	DelayMs     int      `json:"delay_ms" envconfig:"PAYFLOW_SETTLEMENT_DELAY_MS"`
	SuccessRate *float64 `json:"success_rate" envconfig:"PAYFLOW_SETTLEMENT_SUCCESS_RATE"`
}

type IdempotencyConfig struct {
	Backend   string `json:"backend" envconfig:"PAYFLOW_IDEMPOTENCY_BACKEND"`
	KeyPrefix string `json:"key_prefix" envconfig:"PAYFLOW_IDEMPOTENCY_KEY_PREFIX"`
}

type LockConfig struct {
	Backend       string `json:"backend" envconfig:"PAYFLOW_LOCK_BACKEND"`
	KeyPrefix     string `json:"key_prefix" envconfig:"PAYFLOW_LOCK_KEY_PREFIX"`
	TTLMs         int    `json:"ttl_ms" envconfig:"PAYFLOW_LOCK_TTL_MS"`
	WaitTimeoutMs int    `json:"wait_timeout_ms" envconfig:"PAYFLOW_LOCK_WAIT_TIMEOUT_MS"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"PAYFLOW_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"PAYFLOW_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"PAYFLOW_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"PAYFLOW_SLACK_WEBHOOK_URL"`
}

type WebhookConfig struct {
	Url     string            `json:"url" envconfig:"PAYFLOW_WEBHOOK_URL"`
	Headers map[string]string `json:"headers"`
}

type Notification struct {
	Slack   SlackWebhook  `json:"slack"`
	Webhook WebhookConfig `json:"webhook"`
}

// OtelExporter mirrors the standard OTEL_EXPORTER_OTLP_* variables so they can
// live in the config file.
type OtelExporter struct {
	Protocol string `json:"protocol" envconfig:"PAYFLOW_OTEL_EXPORTER_PROTOCOL"`
	Endpoint string `json:"endpoint" envconfig:"PAYFLOW_OTEL_EXPORTER_ENDPOINT"`
	Headers  string `json:"headers" envconfig:"PAYFLOW_OTEL_EXPORTER_HEADERS"`
}

type Configuration struct {
	ProjectName     string            `json:"project_name" envconfig:"PAYFLOW_PROJECT_NAME"`
	EnableTelemetry bool              `json:"enable_telemetry" envconfig:"PAYFLOW_ENABLE_TELEMETRY"`
	PosthogKey      string            `json:"posthog_key" envconfig:"PAYFLOW_POSTHOG_KEY"`
	Server          ServerConfig      `json:"server"`
	Redis           RedisConfig       `json:"redis"`
	Queue           QueueConfig       `json:"queue"`
	Settlement      SettlementConfig  `json:"settlement"`
	Idempotency     IdempotencyConfig `json:"idempotency"`
	Lock            LockConfig        `json:"lock"`
	Notification    Notification      `json:"notification"`
	RateLimit       RateLimitConfig   `json:"rate_limit"`
	Otel            OtelExporter      `json:"otel"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&cnf); err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	if err := envconfig.Process("payflow", &cnf); err != nil {
		return err
	}

	if err := cnf.validateAndAddDefaults(); err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return nil
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded. Create a json file called payflow.json or set PAYFLOW_ env variables")
	}
	return c, nil
}

// SettlementDelay is the configured delay as a duration.
func (cnf *Configuration) SettlementDelay() time.Duration {
	return time.Duration(cnf.Settlement.DelayMs) * time.Millisecond
}

// UsesRedis reports whether any backend needs a Redis connection.
func (cnf *Configuration) UsesRedis() bool {
	return cnf.Queue.Backend == BackendRedis ||
		cnf.Idempotency.Backend == BackendRedis ||
		cnf.Lock.Backend == BackendRedis
}

func validBackend(name, value string) error {
	switch value {
	case BackendMemory, BackendRedis:
		return nil
	default:
		return fmt.Errorf("unknown %s backend %q, expected memory or redis", name, value)
	}
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "PayFlow"
	}

	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}
	if cnf.Server.CertStoragePath == "" {
		cnf.Server.CertStoragePath = defaultCertStoragePath
	}

	for name, backend := range map[string]*string{
		"queue":       &cnf.Queue.Backend,
		"idempotency": &cnf.Idempotency.Backend,
		"lock":        &cnf.Lock.Backend,
	} {
		*backend = strings.ToLower(strings.TrimSpace(*backend))
		if *backend == "" {
			*backend = BackendMemory
		}
		if err := validBackend(name, *backend); err != nil {
			return err
		}
	}

	if cnf.UsesRedis() && cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's required when a redis backend is selected.")
		return errors.New("redis DNS is required")
	}

	if cnf.Queue.SettlementQueue == "" {
		cnf.Queue.SettlementQueue = defaultSettlementQueue
	}
	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = defaultWebhookQueue
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = defaultMonitoringPort
	}
	if cnf.Queue.MaxRetry <= 0 {
		cnf.Queue.MaxRetry = defaultMaxRetry
	}

	if cnf.Settlement.DelayMs < 0 {
		return errors.New("settlement delay cannot be negative")
	}
	if cnf.Settlement.DelayMs == 0 {
		cnf.Settlement.DelayMs = defaultSettlementDelayMs
	}
	if cnf.Settlement.SuccessRate == nil {
		cnf.Settlement.SuccessRate = ptr.Float64(defaultSuccessRate)
	}
	if rate := *cnf.Settlement.SuccessRate; rate < 0 || rate > 1 {
		return fmt.Errorf("settlement success rate %v must be between 0 and 1", rate)
	}

	if cnf.Idempotency.KeyPrefix == "" {
		cnf.Idempotency.KeyPrefix = defaultIdempotencyPrefix
	}
	if cnf.Lock.KeyPrefix == "" {
		cnf.Lock.KeyPrefix = defaultLockPrefix
	}
	if cnf.Lock.TTLMs <= 0 {
		cnf.Lock.TTLMs = defaultLockTTLMs
	}
	if cnf.Lock.WaitTimeoutMs <= 0 {
		cnf.Lock.WaitTimeoutMs = defaultLockWaitMs
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		cnf.RateLimit.Burst = ptr.Int(2 * int(*cnf.RateLimit.RequestsPerSecond))
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", *cnf.RateLimit.Burst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		cnf.RateLimit.RequestsPerSecond = ptr.Float64(float64(*cnf.RateLimit.Burst) / 2)
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", *cnf.RateLimit.RequestsPerSecond)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		cnf.RateLimit.CleanupIntervalSec = ptr.Int(defaultRateLimitCleanup)
	}

	return nil
}

// SetOtelExporterEnvs exports the configured OTLP settings so the exporter
// picks them up. Values already set in the environment are left alone.
func SetOtelExporterEnvs() error {
	cnf, err := Fetch()
	if err != nil {
		return err
	}
	for env, value := range map[string]string{
		"OTEL_EXPORTER_OTLP_PROTOCOL": cnf.Otel.Protocol,
		"OTEL_EXPORTER_OTLP_ENDPOINT": cnf.Otel.Endpoint,
		"OTEL_EXPORTER_OTLP_HEADERS":  cnf.Otel.Headers,
	} {
		if value == "" || os.Getenv(env) != "" {
			continue
		}
		if err := os.Setenv(env, value); err != nil {
			return err
		}
	}
	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
