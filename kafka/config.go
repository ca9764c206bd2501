// Package kafka provides Kafka producing and write-back consuming for symbol values.
package kafka

import (
	"crypto/tls"
	"strings"
	"time"

	appconfig "adslink/config"
)

// SASLMechanism represents the SASL authentication mechanism.
type SASLMechanism string

const (
	SASLNone        SASLMechanism = ""
	SASLPlain       SASLMechanism = "PLAIN"
	SASLSCRAMSHA256 SASLMechanism = "SCRAM-SHA-256"
	SASLSCRAMSHA512 SASLMechanism = "SCRAM-SHA-512"
)

// Config holds runtime configuration for a Kafka cluster connection.
type Config struct {
	Name          string
	Enabled       bool
	Brokers       []string
	UseTLS        bool
	TLSSkipVerify bool
	SASLMechanism SASLMechanism
	Username      string
	Password      string

	// Producer settings
	RequiredAcks     int // -1=all, 0=none, 1=leader only
	MaxRetries       int
	RetryBackoff     time.Duration
	AutoCreateTopics bool

	// Topic is the base topic for symbol publishing.
	Topic string

	// Writeback settings
	EnableWriteback bool
	ConsumerGroup   string
	WriteMaxAge     time.Duration
}

// DefaultConfig returns a Kafka configuration with sensible defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		Enabled:          false,
		Brokers:          []string{"localhost:9092"},
		RequiredAcks:     -1, // All replicas must acknowledge
		MaxRetries:       3,
		RetryBackoff:     100 * time.Millisecond,
		AutoCreateTopics: true,
	}
}

// FromAppConfig converts a persisted cluster configuration into a runtime
// Config. The base topic is derived from the instance namespace and the
// optional selector: dots separate segments, e.g. "plant-1.line-2.symbols".
func FromAppConfig(cfg *appconfig.KafkaConfig, namespace string) Config {
	out := DefaultConfig(cfg.Name)
	out.Enabled = cfg.Enabled
	if len(cfg.Brokers) > 0 {
		out.Brokers = cfg.Brokers
	}
	out.UseTLS = cfg.UseTLS
	out.TLSSkipVerify = cfg.TLSSkipVerify
	out.SASLMechanism = SASLMechanism(cfg.SASLMechanism)
	out.Username = cfg.Username
	out.Password = cfg.Password
	if cfg.RequiredAcks != 0 {
		out.RequiredAcks = cfg.RequiredAcks
	}
	if cfg.MaxRetries != 0 {
		out.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryBackoff != 0 {
		out.RetryBackoff = cfg.RetryBackoff
	}

	segments := []string{namespace}
	if cfg.Selector != "" {
		segments = append(segments, cfg.Selector)
	}
	segments = append(segments, "symbols")
	out.Topic = strings.Join(segments, ".")

	out.EnableWriteback = cfg.EnableWriteback
	out.ConsumerGroup = cfg.ConsumerGroup
	out.WriteMaxAge = cfg.WriteMaxAge
	return out
}

// BrokerList returns the broker addresses as a comma-separated string.
func (c *Config) BrokerList() string {
	return strings.Join(c.Brokers, ",")
}

// GetTLSConfig returns a TLS configuration if TLS is enabled.
func (c *Config) GetTLSConfig() *tls.Config {
	if !c.UseTLS {
		return nil
	}
	return &tls.Config{
		InsecureSkipVerify: c.TLSSkipVerify,
	}
}

// GetConsumerGroup returns the consumer group ID, defaulting to
// adslink-{name}-writers when unset.
func (c *Config) GetConsumerGroup() string {
	if c.ConsumerGroup != "" {
		return c.ConsumerGroup
	}
	return "adslink-" + c.Name + "-writers"
}

// GetWriteMaxAge returns the maximum age of write requests to process.
func (c *Config) GetWriteMaxAge() time.Duration {
	if c.WriteMaxAge > 0 {
		return c.WriteMaxAge
	}
	return 2 * time.Second
}

// HealthTopic returns the topic for target health messages.
func (c *Config) HealthTopic() string {
	return c.Topic + ".health"
}

// WriteTopic returns the topic consumed for write requests.
func (c *Config) WriteTopic() string {
	return c.Topic + ".writes"
}

// WriteResponseTopic returns the topic for write responses.
func (c *Config) WriteResponseTopic() string {
	return c.Topic + ".writes.responses"
}
