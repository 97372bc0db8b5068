package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Web     WebConfig     `mapstructure:"web"`
	Channel ChannelConfig `mapstructure:"channel"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig holds server identification
type ServerConfig struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

// WebConfig holds web dashboard configuration
type WebConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	AuthRequired bool   `mapstructure:"auth_required"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
}

// ChannelConfig describes one decoded channel: its DSP tuning and, when it
// carries MPT-1327 control signalling, the channel-number to frequency map
// GTC grants resolve against.
type ChannelConfig struct {
	// Name identifies the channel for telemetry and REQUEST_RESET
	// channel-name refresh.
	Name string `mapstructure:"name"`

	// ChannelType is "control" or "traffic". A "traffic" channel is one
	// carved out dynamically by a GTC grant; ChannelType here describes
	// the channel configured at startup, which is normally "control".
	ChannelType string `mapstructure:"channel_type"`

	ChannelBandwidthHz float64 `mapstructure:"channel_bandwidth_hz"`
	OutputSampleRateHz float64 `mapstructure:"output_sample_rate_hz"`

	Squelch SquelchConfig `mapstructure:"squelch"`

	// CallTimeoutSeconds is the call-hang timeout a STANDARD channel arms on
	// each MAINT message (a RESET always re-arms
	// mpt1327.DefaultCallTimeout). Zero uses mpt1327.DefaultCallTimeout.
	CallTimeoutSeconds int `mapstructure:"call_timeout_seconds"`

	// ChannelMap resolves an MPT-1327 channel number (as signaled in a GTC)
	// to its frequency in hertz. Only meaningful on a control channel.
	ChannelMap map[int]float64 `mapstructure:"channel_map"`
}

// CallTimeout returns the configured call-hang timeout, or fallback when
// unset.
func (c ChannelConfig) CallTimeout(fallback time.Duration) time.Duration {
	if c.CallTimeoutSeconds == 0 {
		return fallback
	}
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// SquelchConfig tunes the NBFM decoder's power-estimator squelch.
type SquelchConfig struct {
	Alpha       float64 `mapstructure:"alpha"`
	ThresholdDb float64 `mapstructure:"threshold_db"`
	Ramp        int     `mapstructure:"ramp"`
}

// MQTTConfig holds MQTT client configuration
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	QoS         byte   `mapstructure:"qos"`
	Retained    bool   `mapstructure:"retained"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig holds Prometheus metrics configuration
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/trunkcore")
	}

	viper.SetEnvPrefix("TRUNKCORE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is OK, use defaults
		} else if os.IsNotExist(err) {
			// File explicitly specified but doesn't exist - that's also OK
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.name", "trunkcore")
	viper.SetDefault("server.description", "MPT-1327 trunking receiver core")

	// Web defaults
	viper.SetDefault("web.enabled", true)
	viper.SetDefault("web.host", "0.0.0.0")
	viper.SetDefault("web.port", 8080)
	viper.SetDefault("web.auth_required", false)

	// MQTT defaults
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.topic_prefix", "trunkcore")
	viper.SetDefault("mqtt.client_id", "trunkcore")
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.retained", false)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.prometheus.enabled", true)
	viper.SetDefault("metrics.prometheus.port", 9090)
	viper.SetDefault("metrics.prometheus.path", "/metrics")
}
