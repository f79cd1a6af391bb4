// Package metrics exposes Prometheus collectors for the card runtime.
//
// A Collector is created against an explicit registerer so that tests and
// multiple card instances never collide on the global default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vehiclecard"

// Collector owns every metric vector used by the card.
type Collector struct {
	cacheLookups     *prometheus.CounterVec
	pushes           *prometheus.CounterVec
	parseFallbacks   *prometheus.CounterVec
	evalFailures     *prometheus.CounterVec
	subscriptions    *prometheus.GaugeVec
	gesturesFired    *prometheus.CounterVec
	actionsExecuted  *prometheus.CounterVec
	confirmationArms prometheus.Counter
}

// New registers the card collectors on reg. A nil reg creates a private
// registry.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Collector{
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "template",
				Name:      "cache_lookups_total",
				Help:      "Template cache lookups by service and outcome",
			},
			[]string{"service", "outcome"},
		),
		pushes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "template",
				Name:      "pushes_total",
				Help:      "Template results pushed by the backend",
			},
			[]string{"service"},
		),
		parseFallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "template",
				Name:      "parse_fallbacks_total",
				Help:      "Template results that could not be parsed and fell back to the default",
			},
			[]string{"service"},
		),
		evalFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "template",
				Name:      "evaluation_failures_total",
				Help:      "One-shot evaluations and subscriptions that failed at the backend",
			},
			[]string{"service"},
		),
		subscriptions: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "template",
				Name:      "subscriptions",
				Help:      "Live template push subscriptions",
			},
			[]string{"service"},
		),
		gesturesFired: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gesture",
				Name:      "fired_total",
				Help:      "Resolved gestures by kind",
			},
			[]string{"kind"},
		),
		actionsExecuted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "action",
				Name:      "executed_total",
				Help:      "Dispatched actions by action type and status",
			},
			[]string{"action", "status"},
		),
		confirmationArms: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gesture",
				Name:      "confirmation_arms_total",
				Help:      "Confirmation prompts shown",
			},
		),
	}
}

// Template returns the metrics sink for one template service instance.
func (c *Collector) Template(service string) *Template {
	return &Template{c: c, service: service}
}

// GestureFired records a resolved gesture.
func (c *Collector) GestureFired(kind string) {
	c.gesturesFired.WithLabelValues(kind).Inc()
}

// ConfirmationArmed records a confirmation prompt.
func (c *Collector) ConfirmationArmed() {
	c.confirmationArms.Inc()
}

// ActionExecuted records a dispatched action.
func (c *Collector) ActionExecuted(action string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	c.actionsExecuted.WithLabelValues(action, status).Inc()
}

// Template is the per-service view of the collector. It satisfies both the
// cache and template service metrics interfaces.
type Template struct {
	c       *Collector
	service string
}

func (t *Template) Hit()    { t.c.cacheLookups.WithLabelValues(t.service, "hit").Inc() }
func (t *Template) Miss()   { t.c.cacheLookups.WithLabelValues(t.service, "miss").Inc() }
func (t *Template) Expire() { t.c.cacheLookups.WithLabelValues(t.service, "expired").Inc() }

// Push records a backend push.
func (t *Template) Push() { t.c.pushes.WithLabelValues(t.service).Inc() }

// ParseFallback records a payload replaced by the default value.
func (t *Template) ParseFallback() { t.c.parseFallbacks.WithLabelValues(t.service).Inc() }

// EvaluationFailed records a backend failure.
func (t *Template) EvaluationFailed() { t.c.evalFailures.WithLabelValues(t.service).Inc() }

// SubscriptionsChanged adjusts the live subscription gauge.
func (t *Template) SubscriptionsChanged(delta int) {
	t.c.subscriptions.WithLabelValues(t.service).Add(float64(delta))
}
