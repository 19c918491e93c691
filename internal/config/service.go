package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServiceConfig holds service-level options that are fixed for the
// lifetime of the process: where to listen, which scan source to drive,
// and the optional MQTT bridge. Runtime-tunable pipeline parameters
// live in Config instead.
type ServiceConfig struct {
	Listen    string `yaml:"listen"`
	DBPath    string `yaml:"db_path"`
	Units     string `yaml:"units"`
	Interface string `yaml:"interface"`

	// Source selects the scan source: "airport", "nmcli", "serial",
	// "pcap", or "fixture".
	Source      string `yaml:"source"`
	FixturePath string `yaml:"fixture_path"`
	SerialPort  string `yaml:"serial_port"`
	SerialBaud  int    `yaml:"serial_baud"`

	MQTT MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig configures the optional presence publisher.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BrokerURL   string `yaml:"broker_url"`
	TopicPrefix string `yaml:"topic_prefix"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

// DefaultServiceConfig returns the service defaults used when no YAML
// file is given.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Listen:      ":8080",
		DBPath:      "presence.db",
		Units:       "m",
		Source:      "airport",
		SerialBaud:  115200,
		MQTT:        MQTTConfig{TopicPrefix: "presence"},
		FixturePath: "fixtures.txt",
	}
}

// LoadServiceConfig reads a YAML service config, applying defaults for
// omitted fields.
func LoadServiceConfig(path string) (*ServiceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read service config: %w", err)
	}

	cfg := DefaultServiceConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse service config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks service-level options.
func (c *ServiceConfig) Validate() error {
	switch c.Source {
	case "airport", "nmcli", "serial", "pcap", "fixture":
	default:
		return fmt.Errorf("unknown scan source %q", c.Source)
	}
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.MQTT.Enabled && c.MQTT.BrokerURL == "" {
		return fmt.Errorf("mqtt.broker_url is required when mqtt is enabled")
	}
	if c.Source == "serial" && c.SerialPort == "" {
		return fmt.Errorf("serial_port is required for the serial source")
	}
	return nil
}
