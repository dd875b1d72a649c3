package winners

import (
	"github.com/okian/spms/internal/domain/draw"
	"github.com/okian/spms/pkg/logger"
)

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithSource sets the random source for winner and prize draws.
func WithSource(src draw.Source) Option {
	return func(r *Resolver) {
		if src != nil {
			r.src = src
		}
	}
}

// WithLogger sets a custom logger for the resolver.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}
