package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"loragate/core"
	"loragate/protocol"
)

const (
	envPrefix = "LORAGATE"

	defaultBaud              = 115200
	defaultReadTimeout       = 100 * time.Millisecond
	defaultWatchdogTick      = 100 * time.Millisecond
	defaultStatusListen      = "127.0.0.1:9110"
	defaultConfigName        = "loragate"
	defaultSystemConfigDir   = "/etc/loragate"
	defaultEnvKeyReplacement = "_"
)

// Load reads the configuration. With an empty path the file is searched as
// loragate.yaml in the working directory and /etc/loragate, and a missing
// file leaves the defaults in place.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(defaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(defaultSystemConfigDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.file = v.ConfigFileUsed()

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", defaultEnvKeyReplacement))
	v.AutomaticEnv()

	return v
}

// setGatewayDefaults sets identity and radio defaults.
func setGatewayDefaults(v *viper.Viper) {
	v.SetDefault("gateway.node_id", "")
	v.SetDefault("gateway.app_id", "")
	v.SetDefault("gateway.join_key", "")
	v.SetDefault("gateway.display_join_key", false)
	v.SetDefault("gateway.regions", []string{})
	v.SetDefault("radio.region", 1)
	v.SetDefault("radio.channel", 0)
	v.SetDefault("radio.data_rate", int(core.DR0))
}

// setLinkDefaults sets serial and bridge defaults.
func setLinkDefaults(v *viper.Viper) {
	v.SetDefault("serial.device", "")
	v.SetDefault("serial.baud", defaultBaud)
	v.SetDefault("serial.read_timeout", defaultReadTimeout)
	v.SetDefault("bridge.ingress_capacity", protocol.IngressCapacity)
	v.SetDefault("bridge.reply_slots", protocol.ReplySlots)
}

// setOperationalDefaults sets watchdog, status and logging defaults.
func setOperationalDefaults(v *viper.Viper) {
	v.SetDefault("watchdog.enabled", true)
	v.SetDefault("watchdog.suppress", false)
	v.SetDefault("watchdog.override_path", "")
	v.SetDefault("watchdog.prescaler", core.DefaultWatchdogPrescaler)
	v.SetDefault("watchdog.reload", core.DefaultWatchdogReload)
	v.SetDefault("watchdog.timebase_hz", core.DefaultWatchdogTimebaseHz)
	v.SetDefault("watchdog.adjustment", core.DefaultWatchdogAdjustment)
	v.SetDefault("watchdog.resolution", defaultWatchdogTick)
	v.SetDefault("status.listen", defaultStatusListen)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

func setDefaults(v *viper.Viper) {
	setGatewayDefaults(v)
	setLinkDefaults(v)
	setOperationalDefaults(v)
}
