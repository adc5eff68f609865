package worker

import "github.com/okian/regatta/pkg/logger"

// Option configures an InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker's name.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
			w.logger = logger.Get().Named(name)
		}
	}
}

// WithLogger sets the worker's logger.
func WithLogger(lg logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if lg != nil {
			w.logger = lg
		}
	}
}
