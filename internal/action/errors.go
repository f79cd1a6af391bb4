package action

import "errors"

// Action errors.
var (
	// ErrInvalidAction indicates a configuration that cannot be executed.
	ErrInvalidAction = errors.New("action: invalid action")

	// ErrUnknownAction indicates an action name that is not recognized.
	ErrUnknownAction = errors.New("action: unknown action")

	// ErrMissingEntity indicates an entity action without an entity.
	ErrMissingEntity = errors.New("action: missing entity")

	// ErrNoCaller indicates a service call without a connected backend.
	ErrNoCaller = errors.New("action: no service caller")
)

// ConfigError describes why a configuration was rejected. It matches
// ErrInvalidAction with errors.Is.
type ConfigError struct {
	Action string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "action: invalid " + e.Action + " action: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidAction, e.Err}
	}
	return []error{ErrInvalidAction}
}

func invalid(action, reason string, err error) error {
	return &ConfigError{Action: action, Reason: reason, Err: err}
}
