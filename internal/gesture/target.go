package gesture

import (
	"time"

	"github.com/dshills/vehiclecard/internal/clock"
)

// targetState tracks the press and tap window of one bound target.
type targetState struct {
	bindings Bindings

	// Press state
	pressed           bool
	holdFired         bool
	pointerSuppressed bool

	// Hold timer; holdSeq identifies the live timer.
	hold    clock.Timer
	holdSeq uint64

	// Double tap window; pendingSingle is set while a single tap waits for
	// the window to close.
	window        clock.Timer
	windowSeq     uint64
	pendingSingle bool

	// Last touch release, for pointer dedup.
	lastTouchEnd time.Time
}

// newTargetState creates state for a target with the given bindings.
func newTargetState(b Bindings) *targetState {
	return &targetState{bindings: b}
}

// stopHold cancels a pending hold timer.
func (s *targetState) stopHold() {
	if s.hold != nil {
		s.hold.Stop()
	}
	s.hold = nil
	s.holdSeq = 0
}

// stopWindow closes the double tap window, dropping any pending single.
func (s *targetState) stopWindow() {
	if s.window != nil {
		s.window.Stop()
	}
	s.window = nil
	s.windowSeq = 0
	s.pendingSingle = false
}

// windowOpen reports whether a first tap is waiting for its second.
func (s *targetState) windowOpen() bool {
	return s.window != nil
}

// touchedWithin reports whether a touch release happened no more than d
// before at. Releases stamped after at count as recent.
func (s *targetState) touchedWithin(at time.Time, d time.Duration) bool {
	if s.lastTouchEnd.IsZero() {
		return false
	}
	return at.Sub(s.lastTouchEnd) <= d
}

// reset stops every timer and clears press state.
func (s *targetState) reset() {
	s.stopHold()
	s.stopWindow()
	s.pressed = false
	s.holdFired = false
	s.pointerSuppressed = false
}
