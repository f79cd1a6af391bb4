package card

import (
	"strconv"

	"github.com/dshills/vehiclecard/internal/action"
	"github.com/dshills/vehiclecard/internal/config"
	"github.com/dshills/vehiclecard/internal/gesture"
)

// Group names for elements that are not in a configured icon group.
const (
	ImagesGroup       = "images"
	InfoRowsGroup     = "info_rows"
	ProgressBarsGroup = "progress_bars"
)

// target is one interactive element and the actions its gestures run.
type target struct {
	entity string
	name   string
	tap    action.Config
	double action.Config
	hold   action.Config
}

func (t *target) bindings() gesture.Bindings {
	return gesture.Bindings{
		Single: !t.tap.IsZero(),
		Double: !t.double.IsZero(),
		Hold:   !t.hold.IsZero(),
	}
}

func (t *target) action(kind gesture.Kind) action.Config {
	switch kind {
	case gesture.KindDouble:
		return t.double
	case gesture.KindHold:
		return t.hold
	default:
		return t.tap
	}
}

// ImageKey returns the gesture key of the i-th image.
func ImageKey(i int) gesture.Key {
	return gesture.Target(ImagesGroup, strconv.Itoa(i))
}

// IconKey returns the gesture key of an icon in a group.
func IconKey(group, entity string) gesture.Key {
	return gesture.Target(group, entity)
}

// buildTargets lists every element with at least one gesture bound. Icons
// without a tap action open the entity's more-info dialog.
func buildTargets(cfg *config.Config) map[gesture.Key]*target {
	targets := make(map[gesture.Key]*target)
	for i, img := range cfg.Card.Images {
		t := &target{
			entity: img.Entity,
			tap:    img.TapAction,
			double: img.DoubleTapAction,
			hold:   img.HoldAction,
		}
		if t.bindings().Any() {
			targets[ImageKey(i)] = t
		}
	}
	for _, g := range cfg.Card.IconGroups {
		for _, item := range g.Items {
			t := &target{
				entity: item.Entity,
				name:   item.Name,
				tap:    item.TapAction,
				double: item.DoubleTapAction,
				hold:   item.HoldAction,
			}
			if t.tap.IsZero() {
				t.tap = action.Config{Action: action.NameMoreInfo}
			}
			targets[IconKey(g.Name, item.Entity)] = t
		}
	}
	return targets
}
