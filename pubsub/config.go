package pubsub

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the named options of a Client. It is resolved once in New.
type Config struct {
	MaxMessagesInQueue           int     `yaml:"max_messages_in_queue" json:"max_messages_in_queue"`
	MaxMessagesInProcessing      int     `yaml:"max_messages_in_processing" json:"max_messages_in_processing"`
	MaxMessagesToPoll            int     `yaml:"max_messages_to_poll" json:"max_messages_to_poll"`
	MaxRedeliveryMessages        int     `yaml:"max_redelivery_messages" json:"max_redelivery_messages"`
	MaxRedeliveryAttempts        int     `yaml:"max_redelivery_attempts" json:"max_redelivery_attempts"`
	MinDelayForRedeliverySeconds float64 `yaml:"min_delay_for_redelivery_seconds" json:"min_delay_for_redelivery_seconds"`
	MaxDelayForRedeliverySeconds float64 `yaml:"max_delay_for_redelivery_seconds" json:"max_delay_for_redelivery_seconds"`
	PublishTimeoutMs             int     `yaml:"publish_timeout_ms" json:"publish_timeout_ms"`
	QueuePollMs                  int     `yaml:"queue_poll_ms" json:"queue_poll_ms"`
	TerminationTimeoutMs         int     `yaml:"termination_timeout_ms" json:"termination_timeout_ms"`
}

func DefaultConfig() Config {
	return Config{
		MaxMessagesInQueue:           1000,
		MaxMessagesInProcessing:      100,
		MaxMessagesToPoll:            100,
		MaxRedeliveryMessages:        1000,
		MaxRedeliveryAttempts:        5,
		MinDelayForRedeliverySeconds: 1,
		MaxDelayForRedeliverySeconds: 5,
		PublishTimeoutMs:             1000,
		QueuePollMs:                  100,
		TerminationTimeoutMs:         5000,
	}
}

// ParseConfig reads a YAML document on top of DefaultConfig. Unknown keys are
// rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, ErrInvalidConfig.Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"max_messages_in_queue", c.MaxMessagesInQueue},
		{"max_messages_in_processing", c.MaxMessagesInProcessing},
		{"max_messages_to_poll", c.MaxMessagesToPoll},
		{"max_redelivery_messages", c.MaxRedeliveryMessages},
		{"publish_timeout_ms", c.PublishTimeoutMs},
		{"queue_poll_ms", c.QueuePollMs},
		{"termination_timeout_ms", c.TerminationTimeoutMs},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, p.name, p.value)
		}
	}
	if c.MaxRedeliveryAttempts < 0 {
		return fmt.Errorf("%w: max_redelivery_attempts must not be negative", ErrInvalidConfig)
	}
	if c.MinDelayForRedeliverySeconds < 0 {
		return fmt.Errorf("%w: min_delay_for_redelivery_seconds must not be negative", ErrInvalidConfig)
	}
	if c.MaxDelayForRedeliverySeconds < c.MinDelayForRedeliverySeconds {
		return fmt.Errorf("%w: max_delay_for_redelivery_seconds below min_delay_for_redelivery_seconds", ErrInvalidConfig)
	}
	return nil
}

func (c Config) minRedeliveryDelay() time.Duration {
	return time.Duration(c.MinDelayForRedeliverySeconds * float64(time.Second))
}

func (c Config) maxRedeliveryDelay() time.Duration {
	return time.Duration(c.MaxDelayForRedeliverySeconds * float64(time.Second))
}

func (c Config) publishTimeout() time.Duration {
	return time.Duration(c.PublishTimeoutMs) * time.Millisecond
}

func (c Config) queuePoll() time.Duration {
	return time.Duration(c.QueuePollMs) * time.Millisecond
}

func (c Config) terminationTimeout() time.Duration {
	return time.Duration(c.TerminationTimeoutMs) * time.Millisecond
}
