// Package config holds runtime configuration for the broker and the
// client dispatcher. It carries only orchestration knobs (timeouts,
// capacities, listen addresses) — nothing about wire encoding, which is
// fixed by the protocol version the peers negotiate.
package config

import "sync"

// BrokerConfig controls the broker's connection handling and resource
// limits. Every field has a conservative default from DefaultBrokerConfig.
type BrokerConfig struct {
	// ListenAddr is the TCP address the broker accepts connections on.
	ListenAddr string `json:"listen_addr"`

	// AdminAddr is the gRPC admin service listen address. Empty disables it.
	AdminAddr string `json:"admin_addr"`

	// MaxConnections is a cap on concurrently connected clients (zero for
	// none). The broker does not read it: Accept admits every connection
	// that completes the handshake.
	MaxConnections int `json:"max_connections"`

	// HandshakeTimeoutMs is a handshake deadline. The broker does not
	// read it: Accept waits for the Connect message as long as its ctx
	// allows.
	HandshakeTimeoutMs int `json:"handshake_timeout_ms"`

	// DefaultChannelCapacity is a default receiver capacity. The broker
	// does not read it: a CreateChannel that claims the receiver uses the
	// request's own Capacity, zero included.
	DefaultChannelCapacity uint32 `json:"default_channel_capacity"`

	// LowCapacityThreshold records the channel low-water mark. The broker
	// does not read it: its refill threshold is the constant lowCapacity
	// (4) in broker/channel.go, at or below which it tops the sender back
	// up to the receiver's capacity.
	LowCapacityThreshold uint32 `json:"low_capacity_threshold"`

	// MetricsEnabled is a metrics switch. Nothing reads it: Prometheus
	// metrics are always recorded.
	MetricsEnabled bool `json:"metrics_enabled"`

	// TracingEnabled toggles OpenTelemetry span creation.
	TracingEnabled bool `json:"tracing_enabled"`

	// OTLPEndpoint is the collector address used when TracingEnabled is true.
	OTLPEndpoint string `json:"otlp_endpoint"`

	LogLevel string `json:"log_level"`
}

// DefaultBrokerConfig returns a BrokerConfig with default values.
func DefaultBrokerConfig() *BrokerConfig {
	return &BrokerConfig{
		ListenAddr:             "127.0.0.1:8980",
		AdminAddr:              "",
		MaxConnections:         0,
		HandshakeTimeoutMs:     5000,
		DefaultChannelCapacity: 16,
		LowCapacityThreshold:   4,
		MetricsEnabled:         true,
		TracingEnabled:         false,
		OTLPEndpoint:           "127.0.0.1:4317",
		LogLevel:               "INFO",
	}
}

// ClientConfig holds the client dispatcher's settings. The dispatcher
// does not reconnect.
type ClientConfig struct {
	// CallTimeoutMs is a call timeout. The dispatcher does not read it: a
	// call waits for its reply until its ctx is done or the connection
	// dies.
	CallTimeoutMs int `json:"call_timeout_ms"`

	// EventBufferSize is a per-subscription buffer size. The dispatcher
	// does not read it: event handlers are called directly from its read
	// loop, with no buffer in between.
	EventBufferSize int `json:"event_buffer_size"`

	// ChannelItemBufferSize is the default local buffer size for a
	// claimed channel receiver before backpressure is applied upstream.
	ChannelItemBufferSize int `json:"channel_item_buffer_size"`

	LogLevel string `json:"log_level"`
}

// DefaultClientConfig returns a ClientConfig with default values.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		CallTimeoutMs:         30000,
		EventBufferSize:       64,
		ChannelItemBufferSize: 16,
		LogLevel:              "INFO",
	}
}

var (
	globalBrokerConfig *BrokerConfig
	brokerConfigMu     sync.RWMutex

	globalClientConfig *ClientConfig
	clientConfigMu     sync.RWMutex
)

// GetBrokerConfig returns the injected broker configuration, or
// defaults if none has been set.
func GetBrokerConfig() *BrokerConfig {
	brokerConfigMu.RLock()
	defer brokerConfigMu.RUnlock()
	if globalBrokerConfig == nil {
		return DefaultBrokerConfig()
	}
	return globalBrokerConfig
}

// SetBrokerConfig installs cfg as the process-wide broker configuration.
func SetBrokerConfig(cfg *BrokerConfig) {
	brokerConfigMu.Lock()
	defer brokerConfigMu.Unlock()
	globalBrokerConfig = cfg
}

// ResetBrokerConfig clears the injected configuration so subsequent
// GetBrokerConfig calls return defaults again.
func ResetBrokerConfig() {
	brokerConfigMu.Lock()
	defer brokerConfigMu.Unlock()
	globalBrokerConfig = nil
}

// GetClientConfig returns the injected client configuration, or
// defaults if none has been set.
func GetClientConfig() *ClientConfig {
	clientConfigMu.RLock()
	defer clientConfigMu.RUnlock()
	if globalClientConfig == nil {
		return DefaultClientConfig()
	}
	return globalClientConfig
}

// SetClientConfig installs cfg as the process-wide client configuration.
func SetClientConfig(cfg *ClientConfig) {
	clientConfigMu.Lock()
	defer clientConfigMu.Unlock()
	globalClientConfig = cfg
}

// ResetClientConfig clears the injected configuration so subsequent
// GetClientConfig calls return defaults again.
func ResetClientConfig() {
	clientConfigMu.Lock()
	defer clientConfigMu.Unlock()
	globalClientConfig = nil
}
