// Package hass is a minimal Home Assistant websocket API client.
//
// A Client authenticates with a long-lived access token and multiplexes
// commands over one connection. Each command carries an id; results are
// routed back to the waiting caller and subscription events to the
// registered callback. Frames are routed with gjson without decoding them
// into structs.
//
// The client implements the template and action backends used by the card:
// RenderTemplate and SubscribeTemplate for template evaluation, CallService
// for actions. StateStore keeps a live copy of entity states for actions
// that depend on them.
package hass
