package gesture

import (
	"time"

	"github.com/dshills/vehiclecard/internal/clock"
)

// arm is a pending confirmation for one target.
type arm struct {
	armedAt time.Time
	seq     uint64

	expiry clock.Timer
	listen clock.Timer

	// listening is set once outside clicks may disarm. The arming click
	// itself arrives before the listener delay elapses.
	listening bool
}

func (a *arm) stop() {
	if a.expiry != nil {
		a.expiry.Stop()
	}
	if a.listen != nil {
		a.listen.Stop()
	}
}

// confirmSingleLocked runs a single tap through confirmation. It fires when
// the target is already armed and arms it otherwise.
func (d *Disambiguator) confirmSingleLocked(target Key, out *effects) {
	key := target.With(KindSingle)
	now := d.clock.Now()

	if a, ok := d.arms[key]; ok && now.Sub(a.armedAt) < d.timing.ConfirmExpiry {
		d.disarmLocked(key)
		d.logger.Debug("confirmation accepted", "key", key.String())
		out.fire(key)
		return
	}

	d.disarmLocked(key)
	d.seq++
	seq := d.seq
	a := &arm{armedAt: now, seq: seq}
	a.expiry = d.clock.AfterFunc(d.timing.ConfirmExpiry, func() { d.armExpired(key, seq) })
	a.listen = d.clock.AfterFunc(d.timing.ConfirmListenerDelay, func() { d.armListening(key, seq) })
	d.arms[key] = a

	d.metrics.ConfirmationArmed()
	d.logger.Debug("confirmation armed", "key", key.String())
	out.prompts = append(out.prompts, key)
}

func (d *Disambiguator) disarmLocked(key Key) {
	if a, ok := d.arms[key]; ok {
		a.stop()
		delete(d.arms, key)
	}
}

func (d *Disambiguator) armExpired(key Key, seq uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.arms[key]; ok && a.seq == seq {
		a.stop()
		delete(d.arms, key)
		d.logger.Debug("confirmation expired", "key", key.String())
	}
}

func (d *Disambiguator) armListening(key Key, seq uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.arms[key]; ok && a.seq == seq {
		a.listen = nil
		a.listening = true
	}
}

// DocumentClick reports a click anywhere in the document. Every listening
// arm whose target differs from clicked is disarmed. Pass the zero Key for
// clicks outside any target.
func (d *Disambiguator) DocumentClick(clicked Key) {
	clicked = clicked.Target()

	d.mu.Lock()
	defer d.mu.Unlock()
	for key, a := range d.arms {
		if a.listening && key.Target() != clicked {
			a.stop()
			delete(d.arms, key)
			d.logger.Debug("confirmation cancelled by outside click", "key", key.String())
		}
	}
}

// Armed reports whether key is armed and waiting for a confirming tap. A
// target key is treated as its single tap key.
func (d *Disambiguator) Armed(key Key) bool {
	if key.Kind == KindNone {
		key = key.With(KindSingle)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.arms[key]
	return ok && d.clock.Now().Sub(a.armedAt) < d.timing.ConfirmExpiry
}
