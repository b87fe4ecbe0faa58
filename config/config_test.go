package config_test

import (
	"testing"

	"github.com/aldrin-bus/aldrin/config"
	"github.com/stretchr/testify/assert"
)

func TestDefaultBrokerConfigValues(t *testing.T) {
	cfg := config.DefaultBrokerConfig()
	assert.Equal(t, "127.0.0.1:8980", cfg.ListenAddr)
	assert.Empty(t, cfg.AdminAddr)
	assert.Equal(t, uint32(16), cfg.DefaultChannelCapacity)
	assert.Equal(t, uint32(4), cfg.LowCapacityThreshold)
	assert.True(t, cfg.MetricsEnabled)
	assert.False(t, cfg.TracingEnabled)
}

func TestGetBrokerConfigDefaultsWithoutSet(t *testing.T) {
	config.ResetBrokerConfig()
	t.Cleanup(config.ResetBrokerConfig)

	got := config.GetBrokerConfig()
	assert.Equal(t, config.DefaultBrokerConfig(), got)
}

func TestSetAndResetBrokerConfig(t *testing.T) {
	t.Cleanup(config.ResetBrokerConfig)

	custom := config.DefaultBrokerConfig()
	custom.ListenAddr = "0.0.0.0:9999"
	config.SetBrokerConfig(custom)

	assert.Equal(t, "0.0.0.0:9999", config.GetBrokerConfig().ListenAddr)

	config.ResetBrokerConfig()
	assert.Equal(t, "127.0.0.1:8980", config.GetBrokerConfig().ListenAddr)
}

func TestSetAndResetClientConfig(t *testing.T) {
	t.Cleanup(config.ResetClientConfig)

	custom := config.DefaultClientConfig()
	custom.CallTimeoutMs = 1000
	config.SetClientConfig(custom)

	assert.Equal(t, 1000, config.GetClientConfig().CallTimeoutMs)

	config.ResetClientConfig()
	assert.Equal(t, 30000, config.GetClientConfig().CallTimeoutMs)
}
