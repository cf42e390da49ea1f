package payment

import (
	"context"
	"fmt"

	"github.com/fjod/go_store/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
)

// BreakerProcessor stops calling the processor after repeated failures.
type BreakerProcessor struct {
	next Processor
	cb   *gobreaker.CircuitBreaker[*Session]
}

func NewBreakerProcessor(next Processor, settings circuitbreaker.Settings) *BreakerProcessor {
	return &BreakerProcessor{
		next: next,
		cb:   circuitbreaker.New[*Session](settings),
	}
}

func (b *BreakerProcessor) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	s, err := b.cb.Execute(func() (*Session, error) {
		return b.next.CreateCheckoutSession(ctx, req)
	})
	if circuitbreaker.IsOpen(err) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s, err
}
