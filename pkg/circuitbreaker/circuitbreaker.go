package circuitbreaker

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

type Settings struct {
	Name string
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// HalfOpenRequests caps the probes allowed while half-open.
	HalfOpenRequests uint32
}

func DefaultSettings(name string) Settings {
	return Settings{
		Name:             name,
		MaxFailures:      5,
		OpenTimeout:      30 * time.Second,
		HalfOpenRequests: 1,
	}
}

func New[T any](s Settings) *gobreaker.CircuitBreaker[T] {
	maxFailures := s.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.HalfOpenRequests,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
}

// IsOpen reports whether err was produced by a breaker rejecting the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
