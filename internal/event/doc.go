// Package event provides the synchronous event bus the card uses to publish
// user-facing notifications (more-info dialogs, navigation, URL opens,
// location maps, toasts) and render requests.
//
// Publishers never depend on subscribers: the action dispatcher publishes
// events.MoreInfo, and whichever frontend is attached (terminal UI, tests,
// headless logger) decides what to do with it.
//
// # Topics
//
// Events carry a hierarchical topic (see package topic). Subscriptions may
// use wildcard patterns:
//
//	bus.SubscribeFunc("ui.*", func(ctx context.Context, e any) error { ... })
//
// # Delivery
//
// Delivery is synchronous in the publisher's goroutine, in subscription
// order. Handler errors are joined and returned to the publisher; handler
// panics are recovered and reported as *PanicError so a misbehaving
// subscriber can never break the publishing path.
//
// # Typed events
//
//	evt := event.NewEvent(events.TopicToast, events.Toast{Message: "saved"}, "action")
//	err := bus.Publish(ctx, evt)
package event
