// Package card hosts a vehicle status card.
//
// A Card owns everything that lives for one attachment of the card: the
// three template services (visibility, color, icon), the gesture
// disambiguator, its event bus handlers and the action dispatcher that
// interactive targets fire into. Attach builds and subscribes them, Detach
// tears them down, and Reload swaps the configuration in between.
//
//	c := card.New(cfg, card.Deps{Backend: client, Caller: client, States: store, Bus: bus})
//	if err := c.Attach(ctx); err != nil {
//		return err
//	}
//	defer c.Detach()
//
//	for range c.Renders() {
//		draw(c.View())
//	}
//
// Input arrives as gesture events through HandleInput. A click anywhere on
// the surface is reported through DocumentClick so armed confirmations can
// be dismissed.
package card
