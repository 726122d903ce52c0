// Package config loads the gateway configuration with viper and persists
// radio settings changed from the console.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brocaar/lorawan/band"

	"loragate/core"
)

// Config is the complete gateway configuration
type Config struct {
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Radio    RadioConfig    `mapstructure:"radio"`
	Serial   SerialConfig   `mapstructure:"serial"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	Watchdog WatchdogConfig `mapstructure:"watchdog"`
	Status   StatusConfig   `mapstructure:"status"`
	Logging  LoggingConfig  `mapstructure:"logging"`

	file string
}

// File returns the configuration file that was read, if any
func (c *Config) File() string {
	return c.file
}

// GatewayConfig holds the persisted gateway identity
type GatewayConfig struct {
	NodeID         string   `mapstructure:"node_id"`
	AppID          string   `mapstructure:"app_id"`
	JoinKey        string   `mapstructure:"join_key"`
	DisplayJoinKey bool     `mapstructure:"display_join_key"`
	Regions        []string `mapstructure:"regions"`
}

// RadioConfig holds the operator-adjustable radio settings
type RadioConfig struct {
	Region   int `mapstructure:"region"`
	Channel  int `mapstructure:"channel"`
	DataRate int `mapstructure:"data_rate"`
}

// SerialConfig describes the host link
type SerialConfig struct {
	Device      string        `mapstructure:"device"`
	Baud        int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// BridgeConfig sizes the bridge buffers
type BridgeConfig struct {
	IngressCapacity int `mapstructure:"ingress_capacity"`
	ReplySlots      int `mapstructure:"reply_slots"`
}

// WatchdogConfig controls the hardware watchdog
type WatchdogConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Suppress     bool          `mapstructure:"suppress"`
	OverridePath string        `mapstructure:"override_path"`
	Prescaler    uint8         `mapstructure:"prescaler"`
	Reload       uint16        `mapstructure:"reload"`
	TimebaseHz   uint32        `mapstructure:"timebase_hz"`
	Adjustment   uint32        `mapstructure:"adjustment"`
	Resolution   time.Duration `mapstructure:"resolution"`
}

// StatusConfig controls the HTTP status server
type StatusConfig struct {
	Listen string `mapstructure:"listen"`
}

// LoggingConfig selects log level and encoding
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Identity parses the configured gateway identity. An empty node id yields
// a zero identity, which marks the gateway as unconfigured.
func (c *Config) Identity() (core.Identity, error) {
	var id core.Identity
	if c.Gateway.NodeID == "" {
		return id, nil
	}

	if err := id.NodeID.UnmarshalText([]byte(trimHex(c.Gateway.NodeID))); err != nil {
		return id, fmt.Errorf("gateway.node_id: %w", err)
	}
	if c.Gateway.AppID != "" {
		if err := id.AppID.UnmarshalText([]byte(trimHex(c.Gateway.AppID))); err != nil {
			return id, fmt.Errorf("gateway.app_id: %w", err)
		}
	}
	if c.Gateway.JoinKey != "" {
		if err := id.JoinKey.UnmarshalText([]byte(trimHex(c.Gateway.JoinKey))); err != nil {
			return id, fmt.Errorf("gateway.join_key: %w", err)
		}
	}
	return id, nil
}

// Settings returns the radio settings as the gateway state expects them
func (c *Config) Settings() core.Settings {
	return core.Settings{
		Region:   c.Radio.Region,
		Channel:  c.Radio.Channel,
		DataRate: core.DataRate(c.Radio.DataRate),
	}
}

// RegionNames returns the configured band plans in index order
func (c *Config) RegionNames() []band.Name {
	if len(c.Gateway.Regions) == 0 {
		return core.DefaultRegions
	}
	names := make([]band.Name, len(c.Gateway.Regions))
	for i, r := range c.Gateway.Regions {
		names[i] = band.Name(r)
	}
	return names
}

// WatchdogTiming returns the hardware watchdog timing
func (c *Config) WatchdogTiming() core.WatchdogConfig {
	return core.WatchdogConfig{
		Prescaler:  c.Watchdog.Prescaler,
		Reload:     c.Watchdog.Reload,
		TimebaseHz: c.Watchdog.TimebaseHz,
		Adjustment: c.Watchdog.Adjustment,
	}
}

func trimHex(s string) string {
	return strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
}

func validate(cfg *Config) error {
	if cfg.Radio.DataRate < 0 || cfg.Radio.DataRate > int(core.MaxDataRate) {
		return fmt.Errorf("radio.data_rate must be from 0 to %d", core.MaxDataRate)
	}
	if cfg.Radio.Region < 0 || cfg.Radio.Region >= len(cfg.RegionNames()) {
		return fmt.Errorf("radio.region must be from 0 to %d", len(cfg.RegionNames())-1)
	}
	if cfg.Radio.Channel < 0 {
		return errors.New("radio.channel must not be negative")
	}
	if cfg.Serial.Baud <= 0 {
		return fmt.Errorf("invalid serial baud rate: %d", cfg.Serial.Baud)
	}
	if cfg.Bridge.IngressCapacity < 2 {
		return errors.New("bridge.ingress_capacity must be at least 2")
	}
	if cfg.Bridge.ReplySlots < 1 {
		return errors.New("bridge.reply_slots must be positive")
	}
	if cfg.Watchdog.Enabled {
		if err := cfg.WatchdogTiming().Validate(); err != nil {
			return err
		}
		if cfg.Watchdog.Resolution <= 0 {
			return errors.New("watchdog.resolution must be positive")
		}
	}
	switch cfg.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported logging format: %s", cfg.Logging.Format)
	}
	if _, err := cfg.Identity(); err != nil {
		return err
	}
	return nil
}
