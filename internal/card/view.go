package card

import (
	"strconv"
	"strings"

	"github.com/dshills/vehiclecard/internal/event/events"
	"github.com/dshills/vehiclecard/internal/gesture"
	"github.com/dshills/vehiclecard/internal/template"
)

// View is a snapshot of everything the card shows.
type View struct {
	Name         string
	Images       []ImageView
	InfoRows     []InfoRowView
	ProgressBars []ProgressBarView
	Groups       []GroupView

	// Notice is the current toast or confirmation prompt, if any.
	Notice *Notice
}

// ImageView is one visible image.
type ImageView struct {
	Key         gesture.Key
	Image       string
	Interactive bool
}

// InfoRowView is one visible info row.
type InfoRowView struct {
	Name  string
	Icon  string
	Value string
}

// ProgressBarView is one progress bar.
type ProgressBarView struct {
	Name     string
	Value    float64
	Max      float64
	Unit     string
	Color    string
	Fraction float64
	Known    bool
}

// GroupView is one icon group with its visible icons.
type GroupView struct {
	Name  string
	Icons []IconView
}

// IconView is one visible icon.
type IconView struct {
	Key   gesture.Key
	Name  string
	Icon  string
	Color string

	// Active reports whether the entity state reads as on.
	Active bool

	// State is the entity state text when the icon shows it.
	State string

	// Armed reports a pending confirmation.
	Armed bool
}

// Notice is a transient message.
type Notice struct {
	Message string
	Type    events.ToastType
}

func (c *Card) setNotice(n *notice) {
	c.mu.Lock()
	c.notice = n
	c.mu.Unlock()
	c.signalRender()
}

// View builds a snapshot from the latest template results and entity
// states. It never blocks on the backend.
func (c *Card) View() View {
	c.mu.Lock()
	cfg := c.cfg
	g := c.gestures
	attached := c.attached
	targets := c.targets
	n := c.notice
	c.mu.Unlock()

	v := View{Name: cfg.Card.Name}
	if n != nil && c.deps.Clock.Now().Before(n.until) {
		v.Notice = &Notice{Message: n.message, Type: n.kind}
	}

	for i, img := range cfg.Card.Images {
		if img.VisibilityTemplate != "" && !c.visible(template.TemplateKey(ImagesGroup, strconv.Itoa(i)), img.VisibilityTemplate) {
			continue
		}
		key := ImageKey(i)
		_, interactive := targets[key]
		v.Images = append(v.Images, ImageView{Key: key, Image: img.Image, Interactive: interactive})
	}

	for i, row := range cfg.Card.InfoRows {
		if row.VisibilityTemplate != "" && !c.visible(template.TemplateKey(InfoRowsGroup, strconv.Itoa(i)), row.VisibilityTemplate) {
			continue
		}
		value, _ := c.state(row.Entity)
		v.InfoRows = append(v.InfoRows, InfoRowView{Name: row.Name, Icon: row.Icon, Value: value})
	}

	for i, bar := range cfg.Card.ProgressBars {
		pv := ProgressBarView{Name: bar.Name, Max: bar.Max, Unit: bar.Unit, Color: template.DefaultColor}
		if bar.ColorTemplate != "" {
			pv.Color = resultOr(c.color, template.TemplateKey(ProgressBarsGroup, strconv.Itoa(i)), bar.ColorTemplate, template.DefaultColor)
		}
		if s, ok := c.state(bar.Entity); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				pv.Value, pv.Known = f, true
				if bar.Max > 0 {
					pv.Fraction = min(max(f/bar.Max, 0), 1)
				}
			}
		}
		v.ProgressBars = append(v.ProgressBars, pv)
	}

	for _, grp := range cfg.Card.IconGroups {
		gv := GroupView{Name: grp.Name}
		for _, item := range grp.Items {
			tk := template.TemplateKey(grp.Name, item.Entity)
			if item.VisibilityTemplate != "" && !c.visible(tk, item.VisibilityTemplate) {
				continue
			}
			key := IconKey(grp.Name, item.Entity)
			iv := IconView{Key: key, Name: item.Name, Icon: item.Icon, Color: template.DefaultColor}
			if iv.Icon == "" {
				iv.Icon = template.DefaultIcon
			}
			if item.IconTemplate != "" {
				iv.Icon = resultOr(c.icon, tk, item.IconTemplate, iv.Icon)
			}
			if item.ColorTemplate != "" {
				iv.Color = resultOr(c.color, tk, item.ColorTemplate, template.DefaultColor)
			}
			if s, ok := c.state(item.Entity); ok {
				iv.Active, _ = template.ParseActive(tk, s)
				if item.ShowState {
					iv.State = s
				}
			}
			if attached {
				iv.Armed = g.Armed(key.With(gesture.KindSingle))
			}
			gv.Icons = append(gv.Icons, iv)
		}
		v.Groups = append(v.Groups, gv)
	}
	return v
}

func (c *Card) visible(key template.Key, tmpl string) bool {
	return resultOr(c.active, key, tmpl, template.DefaultActive)
}

// resultOr returns the pushed value for key, else a fresh one-shot value
// for tmpl, else def.
func resultOr[T comparable](svc *template.Service[T], key template.Key, tmpl string, def T) T {
	if v, ok := svc.Result(key); ok {
		return v
	}
	if v, ok := svc.Result(template.EvalKey(tmpl)); ok {
		return v
	}
	return def
}

func (c *Card) state(entityID string) (string, bool) {
	if c.deps.States == nil || entityID == "" {
		return "", false
	}
	return c.deps.States.State(entityID)
}
