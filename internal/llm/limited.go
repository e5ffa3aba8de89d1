package llm

import (
	"context"

	"github.com/ppiankov/speakerpipe/internal/worker"
)

// Limited throttles a provider through a limiter keyed by provider name.
type Limited struct {
	Provider
	limiter *worker.Limiter
}

// WithLimiter wraps p so every Complete first waits on l. A nil limiter
// returns p unchanged.
func WithLimiter(p Provider, l *worker.Limiter) Provider {
	if l == nil {
		return p
	}
	return &Limited{Provider: p, limiter: l}
}

// Complete waits for a token then delegates.
func (l *Limited) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := l.limiter.Wait(ctx, l.Name()); err != nil {
		return nil, err
	}
	return l.Provider.Complete(ctx, req)
}
