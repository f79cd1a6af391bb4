package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/vehiclecard/internal/action"
	"github.com/dshills/vehiclecard/internal/gesture"
)

// Config is the complete card configuration.
type Config struct {
	Hass      HassConfig      `yaml:"hass" toml:"hass"`
	Card      CardConfig      `yaml:"card" toml:"card"`
	Gesture   GestureConfig   `yaml:"gesture" toml:"gesture"`
	Templates TemplatesConfig `yaml:"templates" toml:"templates"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// HassConfig locates the Home Assistant instance.
type HassConfig struct {
	URL   string `yaml:"url" toml:"url"`
	Token string `yaml:"token" toml:"token"`
}

// CardConfig describes what the card shows and how it reacts.
type CardConfig struct {
	Name   string `yaml:"name" toml:"name"`
	Entity string `yaml:"entity" toml:"entity"`

	// Action is the legacy card-level tap action. Normalize moves it onto
	// the first image.
	Action *action.Config `yaml:"action" toml:"action"`

	Images       []ImageConfig       `yaml:"images" toml:"images"`
	InfoRows     []InfoRowConfig     `yaml:"info_rows" toml:"info_rows"`
	ProgressBars []ProgressBarConfig `yaml:"progress_bars" toml:"progress_bars"`
	IconGroups   []IconGroupConfig   `yaml:"icon_groups" toml:"icon_groups"`
}

// ImageConfig is a vehicle image, optionally interactive.
type ImageConfig struct {
	Image              string `yaml:"image" toml:"image"`
	Entity             string `yaml:"entity" toml:"entity"`
	VisibilityTemplate string `yaml:"visibility_template" toml:"visibility_template"`

	TapAction       action.Config `yaml:"tap_action" toml:"tap_action"`
	DoubleTapAction action.Config `yaml:"double_tap_action" toml:"double_tap_action"`
	HoldAction      action.Config `yaml:"hold_action" toml:"hold_action"`
}

// InfoRowConfig is a labelled entity value. Without a template the row is
// always shown.
type InfoRowConfig struct {
	Name               string `yaml:"name" toml:"name"`
	Entity             string `yaml:"entity" toml:"entity"`
	Icon               string `yaml:"icon" toml:"icon"`
	VisibilityTemplate string `yaml:"visibility_template" toml:"visibility_template"`
}

// ProgressBarConfig is a bar filled from a numeric entity.
type ProgressBarConfig struct {
	Name          string  `yaml:"name" toml:"name"`
	Entity        string  `yaml:"entity" toml:"entity"`
	Max           float64 `yaml:"max" toml:"max"`
	Unit          string  `yaml:"unit" toml:"unit"`
	ColorTemplate string  `yaml:"color_template" toml:"color_template"`
}

// IconGroupConfig is a row of interactive icons.
type IconGroupConfig struct {
	Name         string       `yaml:"name" toml:"name"`
	Confirmation bool         `yaml:"confirmation" toml:"confirmation"`
	Items        []IconConfig `yaml:"items" toml:"items"`
}

// IconConfig is one interactive icon.
type IconConfig struct {
	Entity string `yaml:"entity" toml:"entity"`
	Name   string `yaml:"name" toml:"name"`
	Icon   string `yaml:"icon" toml:"icon"`

	IconTemplate       string `yaml:"icon_template" toml:"icon_template"`
	ColorTemplate      string `yaml:"color_template" toml:"color_template"`
	VisibilityTemplate string `yaml:"visibility_template" toml:"visibility_template"`

	// ShowState renders the entity state text under the icon.
	ShowState bool `yaml:"show_state" toml:"show_state"`

	TapAction       action.Config `yaml:"tap_action" toml:"tap_action"`
	DoubleTapAction action.Config `yaml:"double_tap_action" toml:"double_tap_action"`
	HoldAction      action.Config `yaml:"hold_action" toml:"hold_action"`
}

// GestureConfig overrides gesture thresholds.
type GestureConfig struct {
	Hold                 Duration `yaml:"hold" toml:"hold"`
	DoubleTap            Duration `yaml:"double_tap" toml:"double_tap"`
	TouchDedup           Duration `yaml:"touch_dedup" toml:"touch_dedup"`
	ConfirmExpiry        Duration `yaml:"confirm_expiry" toml:"confirm_expiry"`
	ConfirmListenerDelay Duration `yaml:"confirm_listener_delay" toml:"confirm_listener_delay"`
	TouchCapable         bool     `yaml:"touch_capable" toml:"touch_capable"`
}

// Timing converts the configuration to gesture thresholds.
func (g GestureConfig) Timing() gesture.Timing {
	return gesture.Timing{
		Hold:                 g.Hold.Std(),
		DoubleTap:            g.DoubleTap.Std(),
		TouchDedup:           g.TouchDedup.Std(),
		ConfirmExpiry:        g.ConfirmExpiry.Std(),
		ConfirmListenerDelay: g.ConfirmListenerDelay.Std(),
	}
}

// TemplatesConfig tunes template evaluation.
type TemplatesConfig struct {
	TTL Duration `yaml:"ttl" toml:"ttl"`
}

// LoggingConfig selects the log handler.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig configures the Prometheus endpoint. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// Default returns the built-in defaults.
func Default() *Config {
	t := gesture.DefaultTiming()
	return &Config{
		Gesture: GestureConfig{
			Hold:                 Duration(t.Hold),
			DoubleTap:            Duration(t.DoubleTap),
			TouchDedup:           Duration(t.TouchDedup),
			ConfirmExpiry:        Duration(t.ConfirmExpiry),
			ConfirmListenerDelay: Duration(t.ConfirmListenerDelay),
		},
		Templates: TemplatesConfig{TTL: Duration(time.Second)},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

// Duration is a time.Duration written as "500ms" or "2s". A bare number is
// read as milliseconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String returns the duration in time.Duration notation.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// UnmarshalYAML accepts both quoted and bare durations.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	v, err := parseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = v
	return nil
}

func parseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Duration(time.Duration(ms) * time.Millisecond), nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return Duration(v), nil
}
