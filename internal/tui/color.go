package tui

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
)

// themeColors resolves theme variables to terminal colors. Unknown
// variables use the terminal default.
var themeColors = map[string]string{
	"primary-color":       "#03a9f4",
	"accent-color":        "#ff9800",
	"error-color":         "#db4437",
	"warning-color":       "#ffa600",
	"success-color":       "#43a047",
	"info-color":          "#039be5",
	"state-active-color":  "#fdd835",
	"disabled-text-color": "#6f6f6f",
}

var (
	rgbFunc = regexp.MustCompile(`^rgba?\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*(?:,\s*[\d.]+\s*)?\)$`)
	hslFunc = regexp.MustCompile(`^hsla?\(\s*([\d.]+)\s*,\s*([\d.]+)%\s*,\s*([\d.]+)%\s*(?:,\s*[\d.]+\s*)?\)$`)
	varFunc = regexp.MustCompile(`^var\(\s*--([a-z0-9-]+)\s*\)$`)
)

// Color converts a CSS color token to a terminal color. Tokens that have no
// terminal equivalent map to tcell.ColorDefault.
func Color(token string) tcell.Color {
	s := strings.ToLower(strings.TrimSpace(token))
	switch {
	case s == "", s == "transparent", s == "currentcolor":
		return tcell.ColorDefault

	case strings.HasPrefix(s, "#"):
		if c, ok := hexColor(s); ok {
			return fromColorful(c)
		}

	case rgbFunc.MatchString(s):
		m := rgbFunc.FindStringSubmatch(s)
		r, g, b := channel(m[1]), channel(m[2]), channel(m[3])
		return tcell.NewRGBColor(r, g, b)

	case hslFunc.MatchString(s):
		m := hslFunc.FindStringSubmatch(s)
		h, _ := strconv.ParseFloat(m[1], 64)
		sat, _ := strconv.ParseFloat(m[2], 64)
		l, _ := strconv.ParseFloat(m[3], 64)
		return fromColorful(colorful.Hsl(h, min(sat, 100)/100, min(l, 100)/100))

	case varFunc.MatchString(s):
		name := varFunc.FindStringSubmatch(s)[1]
		if hex, ok := themeColors[name]; ok {
			c, _ := colorful.Hex(hex)
			return fromColorful(c)
		}
		return tcell.ColorDefault

	default:
		if c := tcell.GetColor(s); c != tcell.ColorDefault {
			return c
		}
	}
	return tcell.ColorDefault
}

// hexColor parses #rgb, #rgba, #rrggbb and #rrggbbaa, ignoring alpha.
func hexColor(s string) (colorful.Color, bool) {
	hex := strings.TrimPrefix(s, "#")
	switch len(hex) {
	case 3, 4:
		var b strings.Builder
		for _, r := range hex[:3] {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		hex = b.String()
	case 6, 8:
		hex = hex[:6]
	default:
		return colorful.Color{}, false
	}
	c, err := colorful.Hex("#" + hex)
	return c, err == nil
}

func channel(s string) int32 {
	v, _ := strconv.Atoi(s)
	return int32(min(max(v, 0), 255))
}

func fromColorful(c colorful.Color) tcell.Color {
	r, g, b := c.Clamped().RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

var (
	gaugeLow  = colorful.Color{R: 0.86, G: 0.27, B: 0.22}
	gaugeHigh = colorful.Color{R: 0.26, G: 0.63, B: 0.28}
)

// GaugeColor blends from red at 0 to green at 1.
func GaugeColor(fraction float64) tcell.Color {
	return fromColorful(gaugeLow.BlendHcl(gaugeHigh, min(max(fraction, 0), 1)))
}
