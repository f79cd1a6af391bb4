package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/vehiclecard/internal/action"
)

// DefaultProgressMax is the bar maximum when none is configured.
const DefaultProgressMax = 100

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Normalize rewrites legacy and shorthand fields into their canonical form.
func Normalize(cfg *Config) {
	cfg.Hass.URL = strings.TrimSpace(cfg.Hass.URL)
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
	if cfg.Logging.Level == "warning" {
		cfg.Logging.Level = "warn"
	}

	if a := cfg.Card.Action; a != nil && len(cfg.Card.Images) > 0 {
		if cfg.Card.Images[0].TapAction.IsZero() {
			cfg.Card.Images[0].TapAction = *a
		}
		cfg.Card.Action = nil
	}

	for i := range cfg.Card.Images {
		if cfg.Card.Images[i].Entity == "" {
			cfg.Card.Images[i].Entity = cfg.Card.Entity
		}
	}
	for i := range cfg.Card.ProgressBars {
		if cfg.Card.ProgressBars[i].Max == 0 {
			cfg.Card.ProgressBars[i].Max = DefaultProgressMax
		}
	}
	for i := range cfg.Card.IconGroups {
		if cfg.Card.IconGroups[i].Name == "" {
			cfg.Card.IconGroups[i].Name = fmt.Sprintf("group_%d", i+1)
		}
	}
}

// Validate checks cfg and returns ValidationErrors listing every problem.
func Validate(cfg *Config) error {
	var errs ValidationErrors
	add := func(path, msg string, value any, code ValidationErrorCode) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: value, Code: code})
	}

	if cfg.Hass.URL == "" {
		add("hass.url", "is required", nil, ErrCodeRequiredMissing)
	}
	if cfg.Hass.Token == "" {
		add("hass.token", "is required", nil, ErrCodeRequiredMissing)
	}
	if !contains(logLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of "+strings.Join(logLevels, ", "), cfg.Logging.Level, ErrCodeInvalidEnum)
	}
	if !contains(logFormats, cfg.Logging.Format) {
		add("logging.format", "must be one of "+strings.Join(logFormats, ", "), cfg.Logging.Format, ErrCodeInvalidEnum)
	}

	durations := []struct {
		path string
		d    Duration
	}{
		{"gesture.hold", cfg.Gesture.Hold},
		{"gesture.double_tap", cfg.Gesture.DoubleTap},
		{"gesture.touch_dedup", cfg.Gesture.TouchDedup},
		{"gesture.confirm_expiry", cfg.Gesture.ConfirmExpiry},
		{"gesture.confirm_listener_delay", cfg.Gesture.ConfirmListenerDelay},
		{"templates.ttl", cfg.Templates.TTL},
	}
	for _, d := range durations {
		if d.d.Std() < time.Millisecond {
			add(d.path, `must be at least 1ms; write durations like "500ms"`, d.d.String(), ErrCodeOutOfRange)
		}
	}

	if cfg.Card.Action != nil {
		add("card.action", "requires at least one image", nil, ErrCodeRequiredMissing)
	}
	for i, bar := range cfg.Card.ProgressBars {
		if bar.Entity == "" {
			add(fmt.Sprintf("card.progress_bars[%d].entity", i), "is required", nil, ErrCodeRequiredMissing)
		}
		if bar.Max < 0 {
			add(fmt.Sprintf("card.progress_bars[%d].max", i), "must not be negative", bar.Max, ErrCodeOutOfRange)
		}
	}
	for i, row := range cfg.Card.InfoRows {
		if row.Entity == "" {
			add(fmt.Sprintf("card.info_rows[%d].entity", i), "is required", nil, ErrCodeRequiredMissing)
		}
	}

	groups := make(map[string]bool)
	for gi, g := range cfg.Card.IconGroups {
		path := fmt.Sprintf("card.icon_groups[%d]", gi)
		if groups[g.Name] {
			add(path+".name", "is used by another group", g.Name, ErrCodeDuplicate)
		}
		groups[g.Name] = true

		entities := make(map[string]bool)
		for ii, item := range g.Items {
			ipath := fmt.Sprintf("%s.items[%d].entity", path, ii)
			switch {
			case item.Entity == "":
				add(ipath, "is required", nil, ErrCodeRequiredMissing)
			case entities[item.Entity]:
				add(ipath, "appears twice in the group", item.Entity, ErrCodeDuplicate)
			}
			entities[item.Entity] = true
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Warnings reports problems that do not stop the card from running, such
// as actions that will fail when triggered.
func Warnings(cfg *Config) []*ValidationError {
	var out []*ValidationError
	check := func(path string, ac action.Config, entity string) {
		if ac.IsZero() {
			return
		}
		if _, err := action.Resolve(ac, entity); err != nil {
			out = append(out, &ValidationError{Path: path, Message: err.Error(), Code: ErrCodeInvalidAction})
		}
	}

	for i, img := range cfg.Card.Images {
		path := fmt.Sprintf("card.images[%d]", i)
		check(path+".tap_action", img.TapAction, img.Entity)
		check(path+".double_tap_action", img.DoubleTapAction, img.Entity)
		check(path+".hold_action", img.HoldAction, img.Entity)
	}
	for gi, g := range cfg.Card.IconGroups {
		for ii, item := range g.Items {
			path := fmt.Sprintf("card.icon_groups[%d].items[%d]", gi, ii)
			check(path+".tap_action", item.TapAction, item.Entity)
			check(path+".double_tap_action", item.DoubleTapAction, item.Entity)
			check(path+".hold_action", item.HoldAction, item.Entity)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
