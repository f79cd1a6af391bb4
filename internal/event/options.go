package event

import "log/slog"

// BusOption configures a Bus.
type BusOption func(*busConfig)

type busConfig struct {
	logger       *slog.Logger
	panicHandler PanicHandler
}

func defaultBusConfig() busConfig {
	return busConfig{
		logger: slog.New(slog.DiscardHandler),
	}
}

// WithLogger sets the logger used to report handler failures.
func WithLogger(logger *slog.Logger) BusOption {
	return func(c *busConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPanicHandler sets a callback for recovered handler panics.
func WithPanicHandler(h PanicHandler) BusOption {
	return func(c *busConfig) {
		c.panicHandler = h
	}
}

// SubscriptionOption configures a single subscription.
type SubscriptionOption func(*subscription)

// Once cancels the subscription after its first delivery.
func Once() SubscriptionOption {
	return func(s *subscription) {
		s.once = true
	}
}
