// Package action resolves configured tap, double tap and hold actions into
// descriptors and executes them.
//
// Every configuration source (icon buttons, images and the legacy
// card-level action field) is decoded into one Config and resolved by
// Resolve. A Dispatcher then carries out the resulting Descriptor: service
// calls go to a ServiceCaller, frontend effects (more-info dialogs,
// navigation, URLs, maps and toasts) are published on the event bus.
//
// Invalid configuration never panics. It is reported to the user with an
// error toast, logged, and returned wrapped in ErrInvalidAction.
package action
