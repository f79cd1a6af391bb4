package tui

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/vehiclecard/internal/card"
	"github.com/dshills/vehiclecard/internal/gesture"
)

// Host is the card as seen by the terminal front end.
type Host interface {
	View() card.View
	Renders() <-chan struct{}
	HandleInput(ev gesture.Event)
	DocumentClick(clicked gesture.Key)
	Invalidate(reason string)
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithHoldDuration sets how long a keyboard hold keeps the target pressed.
func WithHoldDuration(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.hold = d
		}
	}
}

// App runs a card on a terminal screen.
type App struct {
	host   Host
	screen tcell.Screen
	logger *slog.Logger
	hold   time.Duration

	mu      sync.Mutex
	regions []region
	focus   int
	focused gesture.Key
	down    bool
	pressed *gesture.Key
}

// New creates an App drawing host on screen. The screen is initialized by
// Run.
func New(host Host, screen tcell.Screen, opts ...Option) *App {
	a := &App{
		host:   host,
		screen: screen,
		logger: slog.New(slog.DiscardHandler),
		hold:   gesture.DefaultTiming().Hold + 100*time.Millisecond,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewTerminal creates an App on the process terminal.
func NewTerminal(host Host, opts ...Option) (*App, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return New(host, screen, opts...), nil
}

// Run draws the card and processes input until ctx is done or the user
// quits.
func (a *App) Run(ctx context.Context) error {
	if err := a.screen.Init(); err != nil {
		return err
	}
	defer a.screen.Fini()
	a.screen.EnableMouse()
	a.screen.HideCursor()

	evs := make(chan tcell.Event, 16)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case evs <- ev:
			case <-done:
				return
			}
		}
	}()

	a.draw()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.host.Renders():
			a.draw()
		case ev := <-evs:
			if quit := a.handleEvent(ev); quit {
				return nil
			}
		}
	}
}

func (a *App) draw() {
	v := a.host.View()
	a.mu.Lock()
	focused := a.focused
	a.mu.Unlock()

	regions := drawView(a.screen, v, focused)
	a.screen.Show()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.regions = regions
	if len(regions) == 0 {
		a.focus = 0
		a.focused = gesture.Key{}
		return
	}
	a.focus = min(a.focus, len(regions)-1)
	a.focused = regions[a.focus].key
}

// handleEvent applies one terminal event and reports whether to quit.
func (a *App) handleEvent(ev tcell.Event) bool {
	switch e := ev.(type) {
	case *tcell.EventKey:
		return a.handleKey(e)
	case *tcell.EventMouse:
		a.handleMouse(e)
	case *tcell.EventResize:
		a.screen.Sync()
		a.draw()
	}
	return false
}

func (a *App) handleKey(e *tcell.EventKey) bool {
	switch e.Key() {
	case tcell.KeyCtrlC, tcell.KeyEscape:
		return true
	case tcell.KeyTab, tcell.KeyRight, tcell.KeyDown:
		a.moveFocus(1)
	case tcell.KeyBacktab, tcell.KeyLeft, tcell.KeyUp:
		a.moveFocus(-1)
	case tcell.KeyEnter:
		a.tapFocused(1)
	case tcell.KeyRune:
		switch e.Rune() {
		case 'q':
			return true
		case ' ':
			a.tapFocused(1)
		case 'd':
			a.tapFocused(2)
		case 'h':
			a.holdFocused()
		case 'r':
			a.host.Invalidate("refresh")
		}
	}
	return false
}

func (a *App) moveFocus(delta int) {
	a.mu.Lock()
	if n := len(a.regions); n > 0 {
		a.focus = (a.focus + delta + n) % n
		a.focused = a.regions[a.focus].key
	}
	a.mu.Unlock()
	a.draw()
}

func (a *App) focusedKey() (gesture.Key, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.focused, len(a.regions) > 0
}

func (a *App) tapFocused(n int) {
	key, ok := a.focusedKey()
	if !ok {
		return
	}
	for range n {
		a.host.DocumentClick(key)
		a.press(key, gesture.PhaseDown)
		a.press(key, gesture.PhaseUp)
	}
}

func (a *App) holdFocused() {
	key, ok := a.focusedKey()
	if !ok {
		return
	}
	a.host.DocumentClick(key)
	a.press(key, gesture.PhaseDown)
	time.AfterFunc(a.hold, func() { a.press(key, gesture.PhaseUp) })
}

func (a *App) press(key gesture.Key, phase gesture.Phase) {
	a.host.HandleInput(gesture.Event{
		Target:      key,
		Channel:     gesture.ChannelPointer,
		Phase:       phase,
		PointerType: "keyboard",
	})
}

// hit returns the target under x, y.
func (a *App) hit(x, y int) (gesture.Key, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.regions {
		if r.contains(x, y) {
			return r.key, true
		}
	}
	return gesture.Key{}, false
}

// handleMouse maps primary button transitions to pointer events. Moving
// off the pressed target while the button is down leaves it.
func (a *App) handleMouse(e *tcell.EventMouse) {
	x, y := e.Position()
	key, onTarget := a.hit(x, y)
	buttonDown := e.Buttons()&tcell.Button1 != 0

	a.mu.Lock()
	wasDown := a.down
	pressed := a.pressed
	a.down = buttonDown
	switch {
	case buttonDown && !wasDown && onTarget:
		a.pressed = &key
	case buttonDown && wasDown && pressed != nil && *pressed != key:
		a.pressed = nil
	case !buttonDown:
		a.pressed = nil
	}
	a.mu.Unlock()

	ev := gesture.Event{Channel: gesture.ChannelPointer, PointerType: "mouse", Time: e.When()}
	switch {
	case buttonDown && !wasDown:
		a.host.DocumentClick(key)
		if onTarget {
			ev.Target, ev.Phase = key, gesture.PhaseDown
			a.host.HandleInput(ev)
		}
	case buttonDown && wasDown && pressed != nil && *pressed != key:
		ev.Target, ev.Phase = *pressed, gesture.PhaseLeave
		a.host.HandleInput(ev)
	case !buttonDown && wasDown && pressed != nil:
		ev.Target, ev.Phase = *pressed, gesture.PhaseUp
		a.host.HandleInput(ev)
	}
}
