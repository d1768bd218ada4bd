package bastion

import (
	"log/slog"

	"github.com/parallax-data/bastion/hook"
	"github.com/parallax-data/bastion/store"
)

// Option is a functional option for the Engine.
type Option func(*Engine)

// WithStore sets the composite store.
func WithStore(s store.Store) Option { return func(e *Engine) { e.store = s } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithConfig sets the engine configuration.
func WithConfig(c Config) Option { return func(e *Engine) { e.config = c } }

// WithListener registers an event listener with the engine's hook registry.
func WithListener(l hook.Listener) Option {
	return func(e *Engine) {
		if e.hooks == nil {
			e.hooks = hook.NewRegistry(e.logger)
		}
		e.hooks.Register(l)
	}
}
