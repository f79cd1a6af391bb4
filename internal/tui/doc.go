// Package tui draws a card in a terminal and turns mouse and keyboard
// input into gesture events.
//
// Mouse presses become pointer events with pointer type "mouse". The
// keyboard moves focus between interactive targets and synthesizes the
// press sequences of a tap (enter or space), a double tap (d) and a hold
// (h).
package tui
