package card

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/vehiclecard/internal/config"
	"github.com/dshills/vehiclecard/internal/event"
	"github.com/dshills/vehiclecard/internal/event/events"
	"github.com/dshills/vehiclecard/internal/template"
)

// subscribeLimit bounds concurrent template subscription requests.
const subscribeLimit = 8

// templateBinding ties a configured template to the key its value is
// stored under.
type templateBinding struct {
	key      template.Key
	template string
}

// bindings lists the templates of one configuration by service.
type bindings struct {
	active []templateBinding
	color  []templateBinding
	icon   []templateBinding
}

func (b *bindings) len() int {
	return len(b.active) + len(b.color) + len(b.icon)
}

// stateTemplate renders an entity's state. Subscribing to it under a marker
// key turns state changes into redraws.
func stateTemplate(entityID string) string {
	return fmt.Sprintf("{{ states(%q) }}", entityID)
}

func collectBindings(cfg *config.Config) *bindings {
	b := &bindings{}
	for i, img := range cfg.Card.Images {
		if img.VisibilityTemplate != "" {
			b.active = append(b.active, templateBinding{template.TemplateKey(ImagesGroup, strconv.Itoa(i)), img.VisibilityTemplate})
		}
	}
	for i, row := range cfg.Card.InfoRows {
		if row.VisibilityTemplate != "" {
			b.active = append(b.active, templateBinding{template.TemplateKey(InfoRowsGroup, strconv.Itoa(i)), row.VisibilityTemplate})
		}
		if row.Entity != "" {
			b.active = append(b.active, templateBinding{template.InfoEntityKey(InfoRowsGroup, row.Entity), stateTemplate(row.Entity)})
		}
	}
	for i, bar := range cfg.Card.ProgressBars {
		if bar.ColorTemplate != "" {
			b.color = append(b.color, templateBinding{template.TemplateKey(ProgressBarsGroup, strconv.Itoa(i)), bar.ColorTemplate})
		}
		if bar.Entity != "" {
			b.active = append(b.active, templateBinding{template.InfoEntityKey(ProgressBarsGroup, bar.Entity), stateTemplate(bar.Entity)})
		}
	}
	for _, g := range cfg.Card.IconGroups {
		for _, item := range g.Items {
			key := template.TemplateKey(g.Name, item.Entity)
			if item.VisibilityTemplate != "" {
				b.active = append(b.active, templateBinding{key, item.VisibilityTemplate})
			}
			if item.ColorTemplate != "" {
				b.color = append(b.color, templateBinding{key, item.ColorTemplate})
			}
			if item.IconTemplate != "" {
				b.icon = append(b.icon, templateBinding{key, item.IconTemplate})
			}
			if item.ShowState {
				b.active = append(b.active, templateBinding{template.StateTextKey(g.Name, item.Entity), stateTemplate(item.Entity)})
			}
		}
	}
	return b
}

// subscribeTemplates subscribes every binding. A key whose subscription
// fails is evaluated once instead so it shows a value until the cache
// entry expires.
func (c *Card) subscribeTemplates(ctx context.Context, b *bindings) {
	var g errgroup.Group
	g.SetLimit(subscribeLimit)
	subscribeAll(ctx, &g, c, c.active, b.active)
	subscribeAll(ctx, &g, c, c.color, b.color)
	subscribeAll(ctx, &g, c, c.icon, b.icon)
	_ = g.Wait()
}

func subscribeAll[T comparable](ctx context.Context, g *errgroup.Group, c *Card, svc *template.Service[T], list []templateBinding) {
	for _, tb := range list {
		g.Go(func() error {
			reason := svc.Name() + " " + tb.key.String()
			err := svc.Subscribe(ctx, tb.template, tb.key, func() { c.requestRender(reason) })
			if err != nil {
				svc.EvaluateOnce(ctx, tb.template)
				c.requestRender(reason)
			}
			return nil
		})
	}
}

// notice is a transient message shown on the card.
type notice struct {
	message string
	kind    events.ToastType
	until   time.Time
}

// subscriptionManager owns the card's event bus handlers for one
// attachment.
type subscriptionManager struct {
	mu            sync.Mutex
	subscriptions []event.Subscription
	card          *Card
}

func newSubscriptionManager(c *Card) *subscriptionManager {
	return &subscriptionManager{card: c}
}

// setupSubscriptions registers all bus handlers.
func (sm *subscriptionManager) setupSubscriptions() error {
	bus := sm.card.deps.Bus

	// Render requests -> render channel
	sub, err := bus.SubscribeFunc(events.TopicRender, sm.handleRender)
	if err != nil {
		return err
	}
	sm.addSubscription(sub)

	// Toasts -> card notice
	sub, err = bus.SubscribeFunc(events.TopicToast, event.Typed(sm.handleToast))
	if err != nil {
		return err
	}
	sm.addSubscription(sub)

	// Confirmation prompts -> card notice
	sub, err = bus.SubscribeFunc(events.TopicConfirmPrompt, event.Typed(sm.handlePrompt))
	if err != nil {
		return err
	}
	sm.addSubscription(sub)

	return nil
}

func (sm *subscriptionManager) addSubscription(sub event.Subscription) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.subscriptions = append(sm.subscriptions, sub)
}

// cleanup unsubscribes all managed subscriptions. Safe to call multiple
// times.
func (sm *subscriptionManager) cleanup() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for _, sub := range sm.subscriptions {
		_ = sm.card.deps.Bus.Unsubscribe(sub)
	}
	sm.subscriptions = nil
}

func (sm *subscriptionManager) handleRender(context.Context, any) error {
	sm.card.signalRender()
	return nil
}

func (sm *subscriptionManager) handleToast(_ context.Context, e event.Event[events.Toast]) error {
	c := sm.card
	d := e.Payload.Duration
	if d <= 0 {
		d = 5 * time.Second
	}
	c.setNotice(&notice{
		message: e.Payload.Message,
		kind:    e.Payload.Type,
		until:   c.deps.Clock.Now().Add(d),
	})
	return nil
}

func (sm *subscriptionManager) handlePrompt(_ context.Context, e event.Event[events.ConfirmPrompt]) error {
	c := sm.card
	c.setNotice(&notice{
		message: e.Payload.Message,
		kind:    events.ToastInfo,
		until:   c.deps.Clock.Now().Add(e.Payload.Expires),
	})
	return nil
}
