// Package events defines the typed payloads and topics published on the card
// event bus.
//
//	evt := event.NewEvent(events.TopicMoreInfo, events.MoreInfo{EntityID: "lock.car_doors"}, "action")
//	_ = bus.Publish(ctx, evt)
package events
