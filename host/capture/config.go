package capture

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"sensorstream/core"
	"sensorstream/host/serial"
)

// Duration is a time.Duration that reads from YAML as "10s", "2m".
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("capture.Duration: failed to parse: %w", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// ChannelConfig names a channel and tells the host how to read its frames.
type ChannelConfig struct {
	ID    uint8  `yaml:"id"`
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind"` // pcm16, float32 or uint16
	Count int    `yaml:"count"`
}

// Layout returns the frame layout described by the entry.
func (c ChannelConfig) Layout() (core.Layout, error) {
	kind, err := ParseSampleKind(c.Kind)
	if err != nil {
		return core.Layout{}, err
	}
	return core.Layout{Kind: kind, Count: c.Count}, nil
}

// StorageConfig selects the SQLite database frames are recorded to.
type StorageConfig struct {
	Path    string `yaml:"path"`
	Enabled bool   `yaml:"enabled"`
}

// MQTTConfig selects the broker frames are forwarded to. The URL path is
// the topic prefix, e.g. mqtt://localhost:1883/board1/.
type MQTTConfig struct {
	URL     string `yaml:"url"`
	QoS     byte   `yaml:"qos"`
	Enabled bool   `yaml:"enabled"`
}

// Config is the capture tool configuration.
type Config struct {
	Serial   serial.Config   `yaml:"serial"`
	Duration Duration        `yaml:"duration"`
	Channels []ChannelConfig `yaml:"channels"`
	Storage  StorageConfig   `yaml:"storage"`
	MQTT     MQTTConfig      `yaml:"mqtt"`
}

// DefaultConfig matches the default firmware build: 16 kHz audio in
// 1024-sample frames plus every polled sensor.
func DefaultConfig() *Config {
	return &Config{
		Serial: *serial.DefaultConfig("/dev/ttyACM0"),
		Channels: []ChannelConfig{
			{ID: uint8(core.ChannelAudio), Name: "audio", Kind: "pcm16", Count: 1024},
			{ID: uint8(core.ChannelIMU), Name: "imu", Kind: "float32", Count: core.AxisCount},
			{ID: uint8(core.ChannelPressure), Name: "pressure", Kind: "float32", Count: 2},
			{ID: uint8(core.ChannelRadar), Name: "radar", Kind: "uint16", Count: core.RadarFrameSamples},
			{ID: uint8(core.ChannelGyro), Name: "gyro", Kind: "float32", Count: core.AxisCount},
			{ID: uint8(core.ChannelMagnetometer), Name: "magnetometer", Kind: "float32", Count: core.AxisCount},
		},
		Storage: StorageConfig{Path: "capture.db"},
	}
}

// ParseConfig reads YAML over the defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return ParseConfig(data)
}

// Validate checks the channel table.
func (c *Config) Validate() error {
	seen := make(map[uint8]bool)
	for _, ch := range c.Channels {
		if seen[ch.ID] {
			return fmt.Errorf("channel %d listed twice", ch.ID)
		}
		seen[ch.ID] = true
		if ch.ID == 0x7F {
			return fmt.Errorf("channel %q uses the control channel id", ch.Name)
		}
		if _, err := ch.Layout(); err != nil {
			return fmt.Errorf("channel %q: %w", ch.Name, err)
		}
		if ch.Count <= 0 {
			return fmt.Errorf("channel %q: count must be positive", ch.Name)
		}
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos %d out of range", c.MQTT.QoS)
	}
	return nil
}

// Channel looks up the entry for id.
func (c *Config) Channel(id uint8) (ChannelConfig, bool) {
	for _, ch := range c.Channels {
		if ch.ID == id {
			return ch, true
		}
	}
	return ChannelConfig{}, false
}

// ChannelName returns the configured name of id, or "chN".
func (c *Config) ChannelName(id uint8) string {
	if ch, ok := c.Channel(id); ok && ch.Name != "" {
		return ch.Name
	}
	return fmt.Sprintf("ch%d", id)
}
