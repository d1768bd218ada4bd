package hook

import (
	"context"
	"log/slog"

	"github.com/parallax-data/bastion/ace"
)

// Named entry types pair a hook with the listener name for logging.

type objectTypeChangedEntry struct {
	name string
	hook ObjectTypeChanged
}
type objectDeletedEntry struct {
	name string
	hook ObjectDeleted
}
type permissionsUpdatedEntry struct {
	name string
	hook PermissionsUpdated
}

// Registry holds registered listeners and dispatches events. It type-caches
// listeners at registration time so emit calls iterate only over listeners
// implementing the relevant hook. Delivery is asynchronous and best effort:
// listener errors are logged, never propagated, and never retried.
type Registry struct {
	listeners []Listener
	logger    *slog.Logger

	objectTypeChanged  []objectTypeChangedEntry
	objectDeleted      []objectDeletedEntry
	permissionsUpdated []permissionsUpdatedEntry
}

// NewRegistry creates a listener registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a listener and type-asserts it into all applicable hook
// caches. Listeners are notified in registration order.
func (r *Registry) Register(l Listener) {
	r.listeners = append(r.listeners, l)
	name := l.Name()

	if h, ok := l.(ObjectTypeChanged); ok {
		r.objectTypeChanged = append(r.objectTypeChanged, objectTypeChangedEntry{name, h})
	}
	if h, ok := l.(ObjectDeleted); ok {
		r.objectDeleted = append(r.objectDeleted, objectDeletedEntry{name, h})
	}
	if h, ok := l.(PermissionsUpdated); ok {
		r.permissionsUpdated = append(r.permissionsUpdated, permissionsUpdatedEntry{name, h})
	}
}

// Listeners returns all registered listeners.
func (r *Registry) Listeners() []Listener { return r.listeners }

// EmitObjectTypeChanged notifies listeners that implement ObjectTypeChanged.
// Returns immediately; delivery happens on a detached goroutine.
func (r *Registry) EmitObjectTypeChanged(ctx context.Context, key ace.AclKey, t ace.ObjectType) {
	if len(r.objectTypeChanged) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		for _, e := range r.objectTypeChanged {
			if err := e.hook.OnObjectTypeChanged(ctx, key, t); err != nil {
				r.logHookError("OnObjectTypeChanged", e.name, err)
			}
		}
	}()
}

// EmitObjectDeleted notifies listeners that implement ObjectDeleted.
func (r *Registry) EmitObjectDeleted(ctx context.Context, key ace.AclKey) {
	if len(r.objectDeleted) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		for _, e := range r.objectDeleted {
			if err := e.hook.OnObjectDeleted(ctx, key); err != nil {
				r.logHookError("OnObjectDeleted", e.name, err)
			}
		}
	}()
}

// EmitPermissionsUpdated notifies listeners that implement PermissionsUpdated.
func (r *Registry) EmitPermissionsUpdated(ctx context.Context, k ace.Key) {
	if len(r.permissionsUpdated) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		for _, e := range r.permissionsUpdated {
			if err := e.hook.OnPermissionsUpdated(ctx, k); err != nil {
				r.logHookError("OnPermissionsUpdated", e.name, err)
			}
		}
	}()
}

// logHookError logs a warning when a listener returns an error. Errors from
// listeners must not block the pipeline.
func (r *Registry) logHookError(hook, listenerName string, err error) {
	r.logger.Warn("hook listener error",
		slog.String("hook", hook),
		slog.String("listener", listenerName),
		slog.String("error", err.Error()),
	)
}
