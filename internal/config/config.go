// Package config provides configuration types and loading for chronicled.
package config

import "time"

// Config is the root configuration struct.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Detection DetectionConfig `json:"detection"`
	Notify    NotifyConfig    `json:"notify"`
}

// PathsConfig groups filesystem path settings.
type PathsConfig struct {
	DBPath string `json:"dbPath" envconfig:"DB_PATH"`
}

// DetectionConfig groups the chain-detection knobs.
type DetectionConfig struct {
	// StaleAfterDays is the inactivity window for the staleness sweep.
	StaleAfterDays int `json:"staleAfterDays" envconfig:"STALE_AFTER_DAYS"`
	// InternalParties never appear in a chain's affected-party list.
	InternalParties []string `json:"internalParties"`
	// DefaultActionOwner is assumed to hold the ball when no owner is named.
	DefaultActionOwner string `json:"defaultActionOwner" envconfig:"DEFAULT_ACTION_OWNER"`
}

// StaleAfter returns the sweep window as a duration.
func (d DetectionConfig) StaleAfter() time.Duration {
	return time.Duration(d.StaleAfterDays) * 24 * time.Hour
}

// NotifyConfig groups the optional downstream integrations.
type NotifyConfig struct {
	Kafka KafkaConfig `json:"kafka"`
	Slack SlackConfig `json:"slack"`
}

// KafkaConfig configures the chain-update feed.
type KafkaConfig struct {
	Enabled bool   `json:"enabled" envconfig:"KAFKA_ENABLED"`
	Brokers string `json:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic   string `json:"topic" envconfig:"KAFKA_TOPIC"`
}

// SlackConfig configures the escalation notifier.
type SlackConfig struct {
	Enabled bool   `json:"enabled" envconfig:"SLACK_ENABLED"`
	Token   string `json:"token" envconfig:"SLACK_TOKEN"`
	Channel string `json:"channel" envconfig:"SLACK_CHANNEL"`
}
