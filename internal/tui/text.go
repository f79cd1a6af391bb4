package tui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"
)

// iconGlyphs maps icon names, without their namespace, to glyphs.
var iconGlyphs = map[string]string{
	"car":                 "🚗",
	"car-electric":        "🚘",
	"lock":                "🔒",
	"lock-open":           "🔓",
	"lock-open-variant":   "🔓",
	"battery":             "🔋",
	"battery-charging":    "🔌",
	"ev-station":          "⚡",
	"flash":               "⚡",
	"map-marker":          "📍",
	"thermometer":         "🌡",
	"fan":                 "🌀",
	"snowflake":           "❄",
	"fire":                "🔥",
	"lightbulb":           "💡",
	"door":                "🚪",
	"key":                 "🔑",
	"gas-station":         "⛽",
	"help-circle-outline": "?",
}

// Glyph returns a short terminal rendition of an icon identifier.
func Glyph(icon string) string {
	_, name, ok := strings.Cut(icon, ":")
	if !ok {
		name = icon
	}
	if g, ok := iconGlyphs[name]; ok {
		return g
	}
	if name == "" {
		return "?"
	}
	return strings.ToUpper(name[:1])
}

// Truncate shortens s to at most width terminal cells, ending in an
// ellipsis when something was cut.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if uniseg.StringWidth(s) <= width {
		return s
	}

	var b strings.Builder
	used := 0
	state := -1
	rest := s
	for len(rest) > 0 {
		var cluster string
		var w int
		cluster, rest, w, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if used+w > width-1 {
			break
		}
		b.WriteString(cluster)
		used += w
	}
	b.WriteString("…")
	return b.String()
}

// drawText writes s at x, y grapheme by grapheme without passing maxX and
// returns the column after the last cell written.
func drawText(scr tcell.Screen, x, y, maxX int, s string, style tcell.Style) int {
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		w := gr.Width()
		if x+w > maxX {
			break
		}
		runes := gr.Runes()
		scr.SetContent(x, y, runes[0], runes[1:], style)
		x += w
	}
	return x
}
