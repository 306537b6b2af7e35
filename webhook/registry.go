package webhook

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-whatsapp/core"
	"github.com/goliatone/go-whatsapp/updates"
)

// Handler processes one typed update. Returning ErrStopDispatch aborts the
// handlers registered after it in the same category; any other error is
// logged and the remaining handlers still run.
type Handler func(ctx context.Context, update updates.Update) error

// RawHandler receives every delivery untouched, regardless of
// classification outcome.
type RawHandler func(ctx context.Context, notification *core.Notification) error

// Filter decides whether a registered handler should see an update. A
// rejected update skips the handler without counting as a run.
type Filter func(update updates.Update) bool

type Registration struct {
	Name    string
	Handler Handler
	Filter  Filter
}

type RawRegistration struct {
	Name    string
	Handler RawHandler
}

type RegisterOption func(*registerOptions)

type registerOptions struct {
	name   string
	filter Filter
}

func WithName(name string) RegisterOption {
	return func(o *registerOptions) {
		trimmed := strings.TrimSpace(name)
		if trimmed != "" {
			o.name = trimmed
		}
	}
}

func WithFilter(filter Filter) RegisterOption {
	return func(o *registerOptions) {
		o.filter = filter
	}
}

// Registry maps handler categories to ordered handler lists. Registration
// is append-only for the process lifetime; lookups take a snapshot so
// dispatch tolerates concurrent appends.
type Registry struct {
	mu       sync.RWMutex
	handlers map[updates.Kind][]Registration
	raw      []RawRegistration
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: map[updates.Kind][]Registration{},
	}
}

func (r *Registry) Register(kind updates.Kind, handler Handler, opts ...RegisterOption) error {
	if r == nil {
		return webhookInternal("webhook: registry is nil", nil)
	}
	if handler == nil {
		return webhookBadInput("webhook: handler is nil", nil)
	}
	if kind == updates.KindNone {
		return webhookBadInput("webhook: cannot register a handler for the none category", nil)
	}
	if _, ok := updates.ConstructorFor(kind); !ok {
		return webhookBadInput(
			fmt.Sprintf("webhook: unsupported handler category %q", kind),
			map[string]any{"kind": string(kind)},
		)
	}
	options := registerOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	name := options.name
	if name == "" {
		name = fmt.Sprintf("%s#%d", kind, len(r.handlers[kind]))
	}
	r.handlers[kind] = append(r.handlers[kind], Registration{
		Name:    name,
		Handler: handler,
		Filter:  options.filter,
	})
	return nil
}

func (r *Registry) RegisterRaw(handler RawHandler, opts ...RegisterOption) error {
	if r == nil {
		return webhookInternal("webhook: registry is nil", nil)
	}
	if handler == nil {
		return webhookBadInput("webhook: raw handler is nil", nil)
	}
	options := registerOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	name := options.name
	if name == "" {
		name = fmt.Sprintf("raw#%d", len(r.raw))
	}
	r.raw = append(r.raw, RawRegistration{Name: name, Handler: handler})
	return nil
}

// Lookup returns the registered handlers for a category in registration
// order. Unknown categories yield an empty slice, never an error.
func (r *Registry) Lookup(kind updates.Kind) []Registration {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Registration(nil), r.handlers[kind]...)
}

func (r *Registry) RawHandlers() []RawRegistration {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]RawRegistration(nil), r.raw...)
}
