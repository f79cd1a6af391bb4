package hass

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/dshills/vehiclecard/internal/template"
)

func renderCommand(tpl string) map[string]any {
	return map[string]any{
		"type":          "render_template",
		"template":      tpl,
		"report_errors": true,
	}
}

func templateError(ev gjson.Result) error {
	if msg := ev.Get("error"); msg.Exists() {
		return fmt.Errorf("%w: %s", ErrTemplateError, msg.String())
	}
	return nil
}

// RenderTemplate renders tpl once and returns its typed result (string,
// bool, float64, nil, or decoded JSON).
func (c *Client) RenderTemplate(ctx context.Context, tpl string) (any, error) {
	first := make(chan gjson.Result, 1)
	id, err := c.Subscribe(ctx, renderCommand(tpl), func(ev gjson.Result) {
		select {
		case first <- ev:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	defer func() {
		if err := c.Unsubscribe(context.WithoutCancel(ctx), id); err != nil {
			c.logger.Debug("render_template unsubscribe failed", "id", id, "error", err)
		}
	}()

	select {
	case ev := <-first:
		if err := templateError(ev); err != nil {
			return nil, err
		}
		return ev.Get("result").Value(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

// SubscribeTemplate starts a render_template subscription and calls onPush
// with every rendered result. The returned handle resolves once the server
// acknowledges the subscription; its release unsubscribes.
func (c *Client) SubscribeTemplate(ctx context.Context, tpl string, onPush func(raw any)) (template.Handle, error) {
	id, ch, err := c.send(renderCommand(tpl), func(ev gjson.Result) {
		if err := templateError(ev); err != nil {
			c.logger.Warn("template subscription error", "template", tpl, "error", err)
			return
		}
		onPush(ev.Get("result").Value())
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe template: %w", err)
	}

	handle := template.NewPendingHandle()
	go func() {
		if _, err := c.await(context.WithoutCancel(ctx), id, ch); err != nil {
			c.forget(id)
			handle.Complete(nil, err)
			return
		}
		handle.Complete(func() error {
			uctx, cancel := context.WithTimeout(context.Background(), DefaultWriteTimeout)
			defer cancel()
			return c.Unsubscribe(uctx, id)
		}, nil)
	}()
	return handle, nil
}

var _ template.Backend = (*Client)(nil)
