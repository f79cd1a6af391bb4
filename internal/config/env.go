package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VEHICLECARD_"

// LookupFunc reads an environment variable, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// envSetter applies one environment value to a configuration.
type envSetter func(cfg *Config, value string) error

// envMapping maps environment variables to the settings they override.
var envMapping = map[string]envSetter{
	EnvPrefix + "HASS_URL":      func(c *Config, v string) error { c.Hass.URL = v; return nil },
	EnvPrefix + "HASS_TOKEN":    func(c *Config, v string) error { c.Hass.Token = v; return nil },
	EnvPrefix + "LOG_LEVEL":     func(c *Config, v string) error { c.Logging.Level = strings.ToLower(v); return nil },
	EnvPrefix + "LOG_FORMAT":    func(c *Config, v string) error { c.Logging.Format = strings.ToLower(v); return nil },
	EnvPrefix + "METRICS_ADDR":  func(c *Config, v string) error { c.Metrics.Addr = v; return nil },
	EnvPrefix + "TEMPLATE_TTL":  func(c *Config, v string) error { return c.Templates.TTL.UnmarshalText([]byte(v)) },
	EnvPrefix + "TOUCH_CAPABLE": setTouchCapable,
}

func setTouchCapable(c *Config, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	c.Gesture.TouchCapable = b
	return nil
}

// EnvVars returns the recognized environment variable names, sorted.
func EnvVars() []string {
	names := make([]string, 0, len(envMapping))
	for name := range envMapping {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyEnv overrides cfg with every recognized variable lookup reports.
// Empty values are treated as set. A nil lookup uses os.LookupEnv.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, name := range EnvVars() {
		val, ok := lookup(name)
		if !ok {
			continue
		}
		if err := envMapping[name](cfg, val); err != nil {
			return fmt.Errorf("environment %s: %w", name, err)
		}
	}
	return nil
}
