package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Defaults substituted when a result cannot be used.
const (
	DefaultActive = false
	DefaultColor  = "var(--primary-text-color)"
	DefaultIcon   = "mdi:help-circle-outline"
)

// ErrUnparseable is wrapped by every ParseError.
var ErrUnparseable = errors.New("template: unparseable result")

// ParseError reports a raw result that a parser rejected.
type ParseError struct {
	Parser string
	Raw    any
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("template: %s parser rejected %#v", e.Parser, e.Raw)
}

func (e *ParseError) Unwrap() error {
	return ErrUnparseable
}

// Parser converts a raw backend result into a typed value.
type Parser[T any] func(key Key, raw any) (T, error)

var (
	activeTrue = map[string]bool{
		"true": true, "on": true, "yes": true, "active": true,
		"home": true, "1": true, "open": true, "unlocked": true,
	}
	activeFalse = map[string]bool{
		"": true, "false": true, "off": true, "no": true, "inactive": true,
		"not_home": true, "away": true, "0": true, "closed": true,
		"locked": true, "unavailable": true, "unknown": true, "none": true,
	}
)

// ParseActive interprets a result as an on/off state. Marker keys are always
// active.
func ParseActive(key Key, raw any) (bool, error) {
	if key.IsMarker() {
		return true, nil
	}

	switch v := raw.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int32:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case uint:
		return v != 0, nil
	case uint64:
		return v != 0, nil
	case float32:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case json.Number:
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return false, &ParseError{Parser: "active", Raw: raw}
		}
		return f != 0, nil
	case string:
		s := cases.Lower(language.Und).String(strings.TrimSpace(v))
		if activeTrue[s] {
			return true, nil
		}
		if activeFalse[s] {
			return false, nil
		}
	}
	return false, &ParseError{Parser: "active", Raw: raw}
}

var (
	hexColor  = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
	rgbColor  = regexp.MustCompile(`(?i)^rgb\(\s*\d{1,3}%?\s*,\s*\d{1,3}%?\s*,\s*\d{1,3}%?\s*\)$`)
	rgbaColor = regexp.MustCompile(`(?i)^rgba\(\s*\d{1,3}%?\s*,\s*\d{1,3}%?\s*,\s*\d{1,3}%?\s*,\s*(?:\d*\.?\d+%?)\s*\)$`)
	hslColor  = regexp.MustCompile(`(?i)^hsl\(\s*\d{1,3}(?:\.\d+)?(?:deg)?\s*,\s*\d{1,3}(?:\.\d+)?%\s*,\s*\d{1,3}(?:\.\d+)?%\s*\)$`)
	hslaColor = regexp.MustCompile(`(?i)^hsla\(\s*\d{1,3}(?:\.\d+)?(?:deg)?\s*,\s*\d{1,3}(?:\.\d+)?%\s*,\s*\d{1,3}(?:\.\d+)?%\s*,\s*(?:\d*\.?\d+%?)\s*\)$`)
	varColor  = regexp.MustCompile(`^var\(\s*--[a-zA-Z0-9_-]+\s*(?:,\s*[^()]+)?\)$`)

	colorPatterns = []*regexp.Regexp{hexColor, rgbColor, rgbaColor, hslColor, hslaColor, varColor}

	namedColors = map[string]bool{
		"red": true, "green": true, "blue": true, "yellow": true,
		"orange": true, "purple": true, "pink": true, "brown": true,
		"black": true, "white": true, "gray": true, "grey": true,
		"cyan": true, "magenta": true, "transparent": true, "currentcolor": true,
	}
)

// ParseColor accepts hex, rgb(a), hsl(a), CSS custom property references and
// a small set of named colors.
func ParseColor(_ Key, raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", &ParseError{Parser: "color", Raw: raw}
	}
	s = strings.TrimSpace(s)
	for _, re := range colorPatterns {
		if re.MatchString(s) {
			return s, nil
		}
	}
	if namedColors[strings.ToLower(s)] {
		return s, nil
	}
	return "", &ParseError{Parser: "color", Raw: raw}
}

var (
	knownIcon   = regexp.MustCompile(`^(?:mdi|hass|hassio|fas|far|fab|fal|fad|fapro|phu|si|hue|kuf):[a-z0-9]+(?:-[a-z0-9]+)*$`)
	genericIcon = regexp.MustCompile(`^[a-z0-9_-]+:[a-z0-9_-]+$`)
)

// ParseIcon accepts namespace:name icon identifiers.
func ParseIcon(_ Key, raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", &ParseError{Parser: "icon", Raw: raw}
	}
	s = strings.TrimSpace(s)
	if knownIcon.MatchString(s) || genericIcon.MatchString(s) {
		return s, nil
	}
	return "", &ParseError{Parser: "icon", Raw: raw}
}
