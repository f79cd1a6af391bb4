package gesture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfirmationFirstTapArms(t *testing.T) {
	d, _, rec := setup(t, Bindings{Single: true})
	d.SetConfirmation("buttons", true)

	tap(d, lockButton, ChannelPointer)

	assert.Equal(t, 0, rec.total())
	assert.True(t, d.Armed(lockButton))
	assert.Equal(t, []Key{lockButton.With(KindSingle)}, rec.prompts)
}

func TestConfirmationSecondTapFiresOnceAndDisarms(t *testing.T) {
	d, clk, rec := setup(t, Bindings{Single: true})
	d.SetConfirmation("buttons", true)

	tap(d, lockButton, ChannelPointer)
	clk.Advance(4 * time.Second)
	tap(d, lockButton, ChannelPointer)

	assert.Equal(t, 1, rec.count(KindSingle))
	assert.False(t, d.Armed(lockButton))

	clk.Advance(10 * time.Second)
	assert.Equal(t, 1, rec.total())
}

func TestConfirmationExpires(t *testing.T) {
	d, clk, rec := setup(t, Bindings{Single: true})
	d.SetConfirmation("buttons", true)

	tap(d, lockButton, ChannelPointer)
	clk.Advance(5001 * time.Millisecond)
	assert.False(t, d.Armed(lockButton))

	tap(d, lockButton, ChannelPointer)
	assert.Equal(t, 0, rec.total(), "tap after expiry re-arms")
	assert.True(t, d.Armed(lockButton))
	assert.Len(t, rec.prompts, 2)
}

func TestConfirmationWithDoubleTapBinding(t *testing.T) {
	d, clk, rec := setup(t, Bindings{Single: true, Double: true})
	d.SetConfirmation("buttons", true)

	tap(d, lockButton, ChannelPointer)
	clk.Advance(300 * time.Millisecond)
	assert.True(t, d.Armed(lockButton))

	tap(d, lockButton, ChannelPointer)
	tap(d, lockButton, ChannelPointer)
	assert.Equal(t, 1, rec.count(KindDouble), "double taps bypass confirmation")
	assert.True(t, d.Armed(lockButton))

	clk.Advance(time.Second)
	tap(d, lockButton, ChannelPointer)
	clk.Advance(300 * time.Millisecond)
	assert.Equal(t, 1, rec.count(KindSingle))
	assert.False(t, d.Armed(lockButton))
}

func TestOutsideClickDisarms(t *testing.T) {
	d, clk, rec := setup(t, Bindings{Single: true})
	d.SetConfirmation("buttons", true)

	tap(d, lockButton, ChannelPointer)
	d.DocumentClick(lockButton)
	d.DocumentClick(Key{})
	assert.True(t, d.Armed(lockButton), "listener is not active during the arming click")

	clk.Advance(50 * time.Millisecond)
	d.DocumentClick(lockButton)
	assert.True(t, d.Armed(lockButton), "clicks on the target keep the arm")

	d.DocumentClick(Target("buttons", "climate.cabin"))
	assert.False(t, d.Armed(lockButton))

	tap(d, lockButton, ChannelPointer)
	assert.Equal(t, 0, rec.total())
}

func TestDisablingConfirmationDropsArms(t *testing.T) {
	d, _, rec := setup(t, Bindings{Single: true})
	d.SetConfirmation("buttons", true)

	tap(d, lockButton, ChannelPointer)
	d.SetConfirmation("buttons", false)
	assert.False(t, d.Armed(lockButton))

	tap(d, lockButton, ChannelPointer)
	assert.Equal(t, 1, rec.count(KindSingle))
}

func TestConfirmationIsPerGroup(t *testing.T) {
	d, _, rec := setup(t, Bindings{Single: true})
	other := Target("images", "lock.doors")
	d.Bind(other, Bindings{Single: true})
	d.SetConfirmation("buttons", true)

	tap(d, other, ChannelPointer)
	assert.Equal(t, 1, rec.count(KindSingle))
	assert.False(t, d.Armed(lockButton))
}
