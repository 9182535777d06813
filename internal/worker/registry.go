package worker

import (
	"context"
	"sort"

	"github.com/yakoovad/finflow/internal/events"
)

// Handler runs the job bound to one event name.
type Handler func(ctx context.Context, ev events.Event) error

type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds h to name, replacing any previous handler.
func (r *Registry) Register(name string, h Handler) *Registry {
	r.handlers[name] = h
	return r
}

func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
