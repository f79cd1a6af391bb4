// Package gesture turns raw pointer and touch events on interactive card
// elements into logical gestures.
//
// A Disambiguator tracks every bound target independently. For each target
// it decides, based on which of single, double and hold are bound, whether a
// release is a single tap, the first half of a double tap, or the tail of a
// hold that already fired. At most one gesture is produced per physical
// interaction.
//
// Timing follows the usual touch conventions:
//
//	Hold                 500ms  continuous press before a hold fires
//	DoubleTap            300ms  window for the second tap
//	TouchDedup           100ms  pointer events ignored after a touch release
//	ConfirmExpiry       5000ms  lifetime of a confirmation arm
//	ConfirmListenerDelay  50ms  delay before outside clicks disarm
//
// Groups may opt in to confirmation. In a confirming group the first single
// tap only arms the target and shows a prompt; a second tap while armed
// fires. Clicks anywhere else disarm.
//
// All timers run on an injected clock.Clock so tests can drive them with
// clock.Fake.
package gesture
