// Package topic provides hierarchical topic names and wildcard matching for
// the card event bus.
//
// Topics use dot notation:
//
//	ui.more_info
//	ui.toast
//	card.render
//
// Two wildcards are supported in subscription patterns:
//
//   - "*" matches exactly one segment
//   - "**" matches zero or more segments
//
// So "ui.*" receives every user-facing notification and "**" receives
// everything.
package topic
