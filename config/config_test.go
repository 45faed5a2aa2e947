package config

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wacul/ptr"
)

func TestValidateAndAddDefaults(t *testing.T) {
	cnf := Configuration{}
	require.NoError(t, cnf.validateAndAddDefaults())

	assert.Equal(t, "PayFlow", cnf.ProjectName)
	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)
	assert.Equal(t, BackendMemory, cnf.Queue.Backend)
	assert.Equal(t, BackendMemory, cnf.Idempotency.Backend)
	assert.Equal(t, BackendMemory, cnf.Lock.Backend)
	assert.Equal(t, "payflow:settlement", cnf.Queue.SettlementQueue)
	assert.Equal(t, "payflow:webhook", cnf.Queue.WebhookQueue)
	assert.Equal(t, "payflow:idempotency:", cnf.Idempotency.KeyPrefix)
	assert.Equal(t, 1500*time.Millisecond, cnf.SettlementDelay())
	require.NotNil(t, cnf.Settlement.SuccessRate)
	assert.Equal(t, 0.8, *cnf.Settlement.SuccessRate)
	assert.Nil(t, cnf.RateLimit.RequestsPerSecond)
	assert.Nil(t, cnf.RateLimit.Burst)
	assert.False(t, cnf.UsesRedis())
}

func TestValidateAndAddDefaultsErrors(t *testing.T) {
	tests := []struct {
		name    string
		cnf     Configuration
		wantErr string
	}{
		{
			name:    "redis backend without dns",
			cnf:     Configuration{Idempotency: IdempotencyConfig{Backend: "redis"}},
			wantErr: "redis DNS is required",
		},
		{
			name:    "unknown backend",
			cnf:     Configuration{Queue: QueueConfig{Backend: "kafka"}},
			wantErr: `unknown queue backend "kafka", expected memory or redis`,
		},
		{
			name:    "success rate above one",
			cnf:     Configuration{Settlement: SettlementConfig{SuccessRate: ptr.Float64(1.5)}},
			wantErr: "settlement success rate 1.5 must be between 0 and 1",
		},
		{
			name:    "negative delay",
			cnf:     Configuration{Settlement: SettlementConfig{DelayMs: -1}},
			wantErr: "settlement delay cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cnf.validateAndAddDefaults()
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestValidateAndAddDefaultsKeepsZeroSuccessRate(t *testing.T) {
	cnf := Configuration{Settlement: SettlementConfig{SuccessRate: ptr.Float64(0)}}
	require.NoError(t, cnf.validateAndAddDefaults())
	assert.Equal(t, 0.0, *cnf.Settlement.SuccessRate)
}

func TestValidateAndAddDefaultsRedis(t *testing.T) {
	cnf := Configuration{
		Redis: RedisConfig{Dns: " localhost:6379 "},
		Queue: QueueConfig{Backend: " Redis "},
	}
	require.NoError(t, cnf.validateAndAddDefaults())
	assert.Equal(t, "localhost:6379", cnf.Redis.Dns)
	assert.Equal(t, BackendRedis, cnf.Queue.Backend)
	assert.True(t, cnf.UsesRedis())
}

func TestRateLimitDefaults(t *testing.T) {
	cnf := Configuration{RateLimit: RateLimitConfig{RequestsPerSecond: ptr.Float64(10)}}
	require.NoError(t, cnf.validateAndAddDefaults())
	assert.Equal(t, 20, *cnf.RateLimit.Burst)
	assert.Equal(t, 10800, *cnf.RateLimit.CleanupIntervalSec)

	cnf = Configuration{RateLimit: RateLimitConfig{Burst: ptr.Int(8)}}
	require.NoError(t, cnf.validateAndAddDefaults())
	assert.Equal(t, 4.0, *cnf.RateLimit.RequestsPerSecond)
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "payflow.json")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	sampleConfig := Configuration{
		ProjectName: "Temp Project",
		Settlement:  SettlementConfig{DelayMs: 250, SuccessRate: ptr.Float64(1)},
	}
	require.NoError(t, json.NewEncoder(tmpFile).Encode(sampleConfig))
	tmpFile.Close()

	t.Setenv("PAYFLOW_PROJECT_NAME", "Env Project")
	t.Setenv("PAYFLOW_SERVER_PORT", "6000")

	require.NoError(t, loadConfigFromFile(tmpFile.Name()))

	loadedConfig, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "Env Project", loadedConfig.ProjectName)
	assert.Equal(t, "6000", loadedConfig.Server.Port)
	assert.Equal(t, 250*time.Millisecond, loadedConfig.SettlementDelay())
	assert.Equal(t, 1.0, *loadedConfig.Settlement.SuccessRate)
}

func TestInitConfigWithoutFile(t *testing.T) {
	t.Setenv("PAYFLOW_SETTLEMENT_SUCCESS_RATE", "0.25")

	require.NoError(t, InitConfig("does-not-exist.json"))

	loadedConfig, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, 0.25, *loadedConfig.Settlement.SuccessRate)
	assert.Equal(t, DEFAULT_PORT, loadedConfig.Server.Port)
}

func TestInitConfigRejectsInvalidFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "payflow.json")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())
	_, err = tmpFile.WriteString("{not json")
	require.NoError(t, err)
	tmpFile.Close()

	assert.Error(t, InitConfig(tmpFile.Name()))
}

func TestSetOtelExporterEnvs(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "preset=1")

	MockConfig(&Configuration{
		Otel: OtelExporter{
			Protocol: "http/protobuf",
			Endpoint: "localhost:4318",
			Headers:  "api-key=12345",
		},
	})

	require.NoError(t, SetOtelExporterEnvs())
	assert.Equal(t, "http/protobuf", os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"))
	assert.Equal(t, "localhost:4318", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	assert.Equal(t, "preset=1", os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
}
