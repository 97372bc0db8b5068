package config

import (
	"fmt"
	"strings"
)

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Web.Enabled {
		if cfg.Web.Port <= 0 || cfg.Web.Port > 65535 {
			return fmt.Errorf("web.port must be between 1 and 65535")
		}
	}

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
	}

	ch := cfg.Channel
	mode := strings.ToLower(ch.ChannelType)
	if mode != "" && mode != "control" && mode != "traffic" {
		return fmt.Errorf("channel: invalid channel_type %s (must be control or traffic)", ch.ChannelType)
	}

	if ch.ChannelBandwidthHz < 0 {
		return fmt.Errorf("channel: channel_bandwidth_hz must not be negative")
	}
	if ch.OutputSampleRateHz < 0 {
		return fmt.Errorf("channel: output_sample_rate_hz must not be negative")
	}
	if ch.ChannelBandwidthHz > 0 && ch.OutputSampleRateHz > 0 &&
		ch.OutputSampleRateHz < 2.0*ch.ChannelBandwidthHz {
		return fmt.Errorf("channel: output_sample_rate_hz must be at least twice channel_bandwidth_hz")
	}

	if ch.Squelch.Ramp < 0 {
		return fmt.Errorf("channel: squelch.ramp must not be negative")
	}

	if ch.CallTimeoutSeconds < 0 {
		return fmt.Errorf("channel: call_timeout_seconds must not be negative")
	}

	for num, freq := range ch.ChannelMap {
		if num <= 0 {
			return fmt.Errorf("channel: channel_map entries must have a positive channel number, got %d", num)
		}
		if freq <= 0 {
			return fmt.Errorf("channel: channel_map[%d] frequency must be positive", num)
		}
	}

	return nil
}
