package template

import (
	"context"
	"fmt"
	"sync"
)

// ReleaseFunc tears down a push subscription.
type ReleaseFunc func() error

// Handle is the release handle of one push subscription. The release
// function may be available immediately (HandleFunc) or only once the
// backend acknowledged the subscription (*PendingHandle).
type Handle interface {
	// Resolve returns the release function, waiting for it if necessary.
	// A nil ReleaseFunc with a nil error means there is nothing to release.
	Resolve(ctx context.Context) (ReleaseFunc, error)
}

// HandleFunc is a directly invocable Handle.
type HandleFunc func() error

// Resolve implements Handle.
func (f HandleFunc) Resolve(context.Context) (ReleaseFunc, error) {
	if f == nil {
		return nil, nil
	}
	return ReleaseFunc(f), nil
}

// PendingHandle is a Handle whose release function arrives later.
type PendingHandle struct {
	once    sync.Once
	done    chan struct{}
	release ReleaseFunc
	err     error
}

// NewPendingHandle creates an unresolved handle.
func NewPendingHandle() *PendingHandle {
	return &PendingHandle{done: make(chan struct{})}
}

// Complete resolves the handle. Only the first call has an effect.
func (p *PendingHandle) Complete(release ReleaseFunc, err error) {
	p.once.Do(func() {
		p.release = release
		p.err = err
		close(p.done)
	})
}

// Done is closed once the handle is resolved.
func (p *PendingHandle) Done() <-chan struct{} {
	return p.done
}

// Resolve implements Handle.
func (p *PendingHandle) Resolve(ctx context.Context) (ReleaseFunc, error) {
	select {
	case <-p.done:
		return p.release, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// settle resolves h and invokes its release function. Panics are recovered
// and reported as errors. When h is still pending after ctx expires, the
// release is deferred until the handle resolves so the subscription cannot
// leak.
func settle(ctx context.Context, h Handle) (err error) {
	if h == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("template: release panicked: %v", r)
		}
	}()

	release, err := h.Resolve(ctx)
	if err != nil {
		if p, ok := h.(*PendingHandle); ok && ctx.Err() != nil {
			go releaseWhenResolved(p)
		}
		return err
	}
	if release == nil {
		return nil
	}
	return release()
}

func releaseWhenResolved(p *PendingHandle) {
	<-p.done
	_ = settle(context.Background(), p)
}
