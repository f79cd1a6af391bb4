package gesture

import (
	"fmt"
	"time"
)

// Kind is a logical gesture.
type Kind uint8

const (
	// KindNone marks a target key rather than a gesture.
	KindNone Kind = iota
	// KindSingle is a single tap or click.
	KindSingle
	// KindDouble is two taps inside the double tap window.
	KindDouble
	// KindHold is a press held past the hold threshold.
	KindHold
)

// String returns a string representation of the gesture kind.
func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindDouble:
		return "double"
	case KindHold:
		return "hold"
	default:
		return "none"
	}
}

// Channel is the input channel an event arrived on.
type Channel uint8

const (
	// ChannelPointer carries mouse and pen events.
	ChannelPointer Channel = iota
	// ChannelTouch carries touch events.
	ChannelTouch
)

// String returns a string representation of the channel.
func (c Channel) String() string {
	if c == ChannelTouch {
		return "touch"
	}
	return "pointer"
}

// Phase is the stage of a press.
type Phase uint8

const (
	// PhaseDown starts a press.
	PhaseDown Phase = iota
	// PhaseUp ends a press on the target.
	PhaseUp
	// PhaseLeave reports the pointer leaving the target while pressed.
	PhaseLeave
	// PhaseCancel reports the runtime abandoning the press.
	PhaseCancel
)

// String returns a string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseDown:
		return "down"
	case PhaseUp:
		return "up"
	case PhaseLeave:
		return "leave"
	case PhaseCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Key identifies a target, or a gesture on a target. Keys are compared
// structurally.
type Key struct {
	Group  string
	Entity string
	Kind   Kind
}

// Target returns the key of an interactive element.
func Target(group, entity string) Key {
	return Key{Group: group, Entity: entity}
}

// Target strips the gesture kind from k.
func (k Key) Target() Key {
	k.Kind = KindNone
	return k
}

// With returns k with its kind replaced.
func (k Key) With(kind Kind) Key {
	k.Kind = kind
	return k
}

func (k Key) String() string {
	if k.Kind == KindNone {
		return fmt.Sprintf("%s/%s", k.Group, k.Entity)
	}
	return fmt.Sprintf("%s/%s#%s", k.Group, k.Entity, k.Kind)
}

// Event is one raw input event on a target.
type Event struct {
	// Target is the element the event occurred on.
	Target Key

	// Channel is the input channel.
	Channel Channel

	// Phase is the press stage.
	Phase Phase

	// PointerType is the runtime's pointer type for pointer events
	// ("mouse", "pen" or "touch").
	PointerType string

	// Time is when the event occurred. Zero means now.
	Time time.Time
}

// Bindings lists the gestures configured for a target.
type Bindings struct {
	Single bool
	Double bool
	Hold   bool
}

// Any reports whether at least one gesture is bound.
func (b Bindings) Any() bool {
	return b.Single || b.Double || b.Hold
}

// Timing holds the gesture thresholds.
type Timing struct {
	Hold                 time.Duration
	DoubleTap            time.Duration
	TouchDedup           time.Duration
	ConfirmExpiry        time.Duration
	ConfirmListenerDelay time.Duration
}

// DefaultTiming returns the standard thresholds.
func DefaultTiming() Timing {
	return Timing{
		Hold:                 500 * time.Millisecond,
		DoubleTap:            300 * time.Millisecond,
		TouchDedup:           100 * time.Millisecond,
		ConfirmExpiry:        5000 * time.Millisecond,
		ConfirmListenerDelay: 50 * time.Millisecond,
	}
}

// withDefaults fills zero fields from DefaultTiming.
func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.Hold <= 0 {
		t.Hold = d.Hold
	}
	if t.DoubleTap <= 0 {
		t.DoubleTap = d.DoubleTap
	}
	if t.TouchDedup <= 0 {
		t.TouchDedup = d.TouchDedup
	}
	if t.ConfirmExpiry <= 0 {
		t.ConfirmExpiry = d.ConfirmExpiry
	}
	if t.ConfirmListenerDelay <= 0 {
		t.ConfirmListenerDelay = d.ConfirmListenerDelay
	}
	return t
}
