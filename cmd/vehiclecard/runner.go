package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/vehiclecard/internal/card"
	"github.com/dshills/vehiclecard/internal/config"
	"github.com/dshills/vehiclecard/internal/event"
	"github.com/dshills/vehiclecard/internal/event/events"
	"github.com/dshills/vehiclecard/internal/hass"
	"github.com/dshills/vehiclecard/internal/metrics"
	"github.com/dshills/vehiclecard/internal/tui"
)

// errQuit is returned when the user quits the terminal UI.
var errQuit = errors.New("quit")

const (
	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

// runner wires the card to Home Assistant, the terminal and the metrics
// endpoint for one process.
type runner struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	headless   bool

	bus    *event.Bus
	store  *hass.StateStore
	card   *card.Card
	client *hass.Client
}

func (r *runner) run(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.New(reg)

	r.bus = event.NewBus(event.WithLogger(r.logger))
	defer r.bus.Close()

	client, err := hass.Dial(ctx, r.cfg.Hass.URL, r.cfg.Hass.Token, hass.WithLogger(r.logger))
	if err != nil {
		return fmt.Errorf("connecting to Home Assistant: %w", err)
	}
	r.client = client
	defer func() { _ = r.client.Close() }()
	r.logger.Info("connected to Home Assistant", "version", client.Version())

	r.store = hass.NewStateStore(func(hass.State) {
		if r.card != nil {
			r.card.Invalidate("state changed")
		}
	})
	r.card, err = card.New(r.cfg, card.Deps{
		Backend: client,
		Caller:  client,
		States:  r.store,
		Bus:     r.bus,
		Logger:  r.logger,
		Metrics: collector,
	})
	if err != nil {
		return err
	}
	if _, err := r.store.Sync(ctx, client); err != nil {
		r.logger.Warn("entity states unavailable", "error", err)
	}
	if err := r.card.Attach(ctx); err != nil {
		return err
	}
	defer r.card.Detach()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.maintainConnection(gctx) })
	g.Go(func() error { return r.watchConfig(gctx) })
	if addr := r.cfg.Metrics.Addr; addr != "" {
		g.Go(func() error { return serveMetrics(gctx, addr, reg, r.logger) })
	}
	if r.headless {
		g.Go(func() error { return r.logEvents(gctx) })
	} else {
		g.Go(func() error { return r.runUI(gctx) })
	}
	return g.Wait()
}

func (r *runner) runUI(ctx context.Context) error {
	app, err := tui.NewTerminal(r.card,
		tui.WithLogger(r.logger),
		tui.WithHoldDuration(r.cfg.Gesture.Hold.Std()+100*time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("creating terminal: %w", err)
	}
	if err := app.Run(ctx); err != nil {
		return err
	}
	return errQuit
}

// logEvents logs every user-facing notification until ctx is done.
func (r *runner) logEvents(ctx context.Context) error {
	sub, err := r.bus.SubscribeFunc("ui.**", func(_ context.Context, e any) error {
		tp, ok := e.(event.TopicProvider)
		if !ok {
			return nil
		}
		attrs := []any{"topic", string(tp.EventTopic())}
		if mp, ok := e.(event.MetadataProvider); ok {
			md := mp.EventMetadata()
			attrs = append(attrs, "id", md.ID, "source", md.Source)
			if md.CorrelationID != "" {
				attrs = append(attrs, "correlation", md.CorrelationID)
			}
		}
		r.logger.Info("card event", append(attrs, "event", fmt.Sprintf("%+v", e))...)
		return nil
	})
	if err != nil {
		return err
	}
	defer func() { _ = r.bus.Unsubscribe(sub) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.card.Renders():
			v := r.card.View()
			r.logger.Debug("card updated", "images", len(v.Images), "info_rows", len(v.InfoRows), "groups", len(v.Groups))
		}
	}
}

// watchConfig reloads the card whenever the configuration file changes.
// An invalid file keeps the running configuration.
func (r *runner) watchConfig(ctx context.Context) error {
	return config.Watch(ctx, r.configPath, func(cfg *config.Config, err error) {
		if err != nil {
			r.toast(ctx, "Configuration not reloaded: "+err.Error(), events.ToastWarning)
			return
		}
		if err := r.card.Reload(ctx, cfg); err != nil {
			r.logger.Error("card reload failed", "error", err)
			return
		}
		for _, w := range config.Warnings(cfg) {
			r.logger.Warn("action will fail when triggered", "path", w.Path, "reason", w.Message)
		}
		r.toast(ctx, "Configuration reloaded", events.ToastInfo)
	}, config.WithWatchLogger(r.logger))
}

// maintainConnection redials after the connection drops, backing off
// between attempts, and moves the card and state store to the new client.
func (r *runner) maintainConnection(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.client.Done():
		}
		r.logger.Warn("connection to Home Assistant lost", "error", r.client.Err())
		r.toast(ctx, "Connection to Home Assistant lost", events.ToastWarning)

		delay := reconnectMin
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			client, err := hass.Dial(ctx, r.cfg.Hass.URL, r.cfg.Hass.Token, hass.WithLogger(r.logger))
			if err == nil {
				_ = r.client.Close()
				r.client = client
				break
			}
			if errors.Is(err, hass.ErrAuthFailed) {
				return err
			}
			r.logger.Warn("reconnect failed", "error", err, "retry_in", delay)
			delay = min(delay*2, reconnectMax)
		}

		r.card.SetBackend(ctx, r.client)
		if _, err := r.store.Sync(ctx, r.client); err != nil {
			r.logger.Warn("entity states unavailable", "error", err)
		}
		r.logger.Info("reconnected to Home Assistant")
		r.toast(ctx, "Reconnected", events.ToastSuccess)
	}
}

func (r *runner) toast(ctx context.Context, msg string, kind events.ToastType) {
	_ = r.bus.Publish(ctx, event.NewEvent(events.TopicToast, events.Toast{Message: msg, Type: kind, Duration: 5 * time.Second}, "vehiclecard"))
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
