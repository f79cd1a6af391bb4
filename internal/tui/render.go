package tui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/vehiclecard/internal/card"
	"github.com/dshills/vehiclecard/internal/event/events"
	"github.com/dshills/vehiclecard/internal/gesture"
	"github.com/dshills/vehiclecard/internal/template"
)

// region is the screen area of one interactive target.
type region struct {
	key        gesture.Key
	x0, x1, y0 int
}

func (r region) contains(x, y int) bool {
	return y == r.y0 && x >= r.x0 && x < r.x1
}

const barWidth = 20

var (
	styleTitle  = tcell.StyleDefault.Bold(true)
	styleLabel  = tcell.StyleDefault.Dim(true)
	styleHelp   = tcell.StyleDefault.Dim(true).Italic(true)
	styleTarget = tcell.StyleDefault.Underline(true)
)

// drawView renders v and returns the regions of its interactive targets.
// focused is highlighted.
func drawView(scr tcell.Screen, v card.View, focused gesture.Key) []region {
	scr.Clear()
	width, height := scr.Size()
	var regions []region
	y := 0

	line := func() bool { return y < height-1 }

	drawText(scr, 1, y, width, Truncate(v.Name, width-2), styleTitle)
	y += 2

	for _, img := range v.Images {
		if !line() {
			break
		}
		style := tcell.StyleDefault
		if img.Interactive {
			style = styleTarget
		}
		if img.Key == focused {
			style = style.Reverse(true)
		}
		label := Glyph("mdi:car") + " " + Truncate(img.Image, width-6)
		end := drawText(scr, 1, y, width, label, style)
		if img.Interactive {
			regions = append(regions, region{key: img.Key, x0: 1, x1: end, y0: y})
		}
		y++
	}

	for _, row := range v.InfoRows {
		if !line() {
			break
		}
		x := 1
		if row.Icon != "" {
			x = drawText(scr, x, y, width, Glyph(row.Icon)+" ", tcell.StyleDefault)
		}
		x = drawText(scr, x, y, width, row.Name+": ", styleLabel)
		drawText(scr, x, y, width, Truncate(row.Value, width-x), tcell.StyleDefault)
		y++
	}

	for _, bar := range v.ProgressBars {
		if !line() {
			break
		}
		drawBar(scr, y, width, bar)
		y++
	}

	for _, g := range v.Groups {
		if len(g.Icons) == 0 || !line() {
			continue
		}
		y++
		drawText(scr, 1, y, width, g.Name, styleLabel)
		y++
		x := 1
		for _, icon := range g.Icons {
			style := tcell.StyleDefault.Foreground(Color(icon.Color))
			if icon.Active {
				style = style.Bold(true)
			}
			if icon.Armed {
				style = style.Blink(true).Reverse(true)
			}
			if icon.Key == focused {
				style = style.Underline(true)
			}
			label := Glyph(icon.Icon)
			if icon.Name != "" {
				label += " " + icon.Name
			}
			if icon.State != "" {
				label += " (" + icon.State + ")"
			}
			start := x
			x = drawText(scr, x, y, width, label, style)
			regions = append(regions, region{key: icon.Key, x0: start, x1: x, y0: y})
			x += 2
		}
		y++
	}

	if v.Notice != nil && height > 1 {
		style := tcell.StyleDefault.Reverse(true)
		switch v.Notice.Type {
		case events.ToastError:
			style = style.Foreground(tcell.ColorRed)
		case events.ToastWarning:
			style = style.Foreground(tcell.ColorYellow)
		}
		drawText(scr, 0, height-2, width, " "+Truncate(v.Notice.Message, width-2)+" ", style)
	}
	drawText(scr, 0, height-1, width, Truncate("tab focus · enter tap · d double · h hold · q quit", width), styleHelp)
	return regions
}

func drawBar(scr tcell.Screen, y, width int, bar card.ProgressBarView) {
	x := drawText(scr, 1, y, width, bar.Name+" ", styleLabel)
	color := Color(bar.Color)
	if bar.Color == template.DefaultColor {
		color = GaugeColor(bar.Fraction)
	}
	filled := int(bar.Fraction*barWidth + 0.5)
	cells := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	x = drawText(scr, x, y, width, cells, tcell.StyleDefault.Foreground(color))

	value := "?"
	if bar.Known {
		value = fmt.Sprintf("%g%s", bar.Value, bar.Unit)
	}
	drawText(scr, x+1, y, width, value, tcell.StyleDefault)
}
