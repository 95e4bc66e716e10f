package gateway

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/publish"
)

// BreakerConfig tunes the per-platform circuit breaker.
type BreakerConfig struct {
	// ConsecutiveFailures opens the circuit. Zero disables the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the circuit stays open before a trial publish.
	OpenTimeout time.Duration
}

// DefaultBreakerConfig opens a platform after three consecutive transient
// failures and retries it after ten minutes.
var DefaultBreakerConfig = BreakerConfig{ConsecutiveFailures: 3, OpenTimeout: 10 * time.Minute}

func newBreaker(platform campaign.Platform, cfg BreakerConfig) *gobreaker.CircuitBreaker[publish.Result] {
	if cfg.ConsecutiveFailures == 0 {
		return nil
	}
	return gobreaker.NewCircuitBreaker[publish.Result](gobreaker.Settings{
		Name:        string(platform),
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("platform", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Platform circuit breaker state change")
		},
	})
}

// countsAsOutage reports whether a failed result reflects platform health.
// Caller mistakes such as too many items or missing media do not trip the breaker.
func countsAsOutage(r publish.Result) bool {
	if r.Success || r.Error == nil {
		return false
	}
	switch r.Error.Kind {
	case publish.KindNetworkFailure, publish.KindProcessingTimeout:
		return true
	}
	return false
}

// throughBreaker runs call under cb. An open circuit yields an Unavailable
// result without calling the platform.
func throughBreaker(cb *gobreaker.CircuitBreaker[publish.Result], platform campaign.Platform, call func() publish.Result) publish.Result {
	if cb == nil {
		return call()
	}
	result, err := cb.Execute(func() (publish.Result, error) {
		r := call()
		if countsAsOutage(r) {
			return r, r.Error
		}
		return r, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		log.Warn().Str("platform", string(platform)).Msg("Platform circuit open, skipping")
		return publish.Failed(platform, publish.Wrap(publish.KindUnavailable, err, string(platform)+" temporarily disabled after repeated failures"))
	}
	return result
}
