package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/metrics"
)

// BreakerSettings configures the circuit breaker around the catalog.
type BreakerSettings struct {
	Name             string
	MaxRequests      uint32        // Requests allowed while half-open
	Interval         time.Duration // Count reset period while closed
	Timeout          time.Duration // Open period before probing again
	FailureThreshold uint32        // Consecutive failures that open the circuit
}

// DefaultBreakerSettings returns the production breaker configuration
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:             "catalog-api",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// CircuitBreakerClient wraps a catalog client so that repeated failures fail fast
// with ErrCircuitOpen instead of waiting on the network.
type CircuitBreakerClient struct {
	client domain.CatalogClient
	cb     *gobreaker.CircuitBreaker[any]
	name   string
	logger *slog.Logger
}

// NewCircuitBreakerClient wraps client with a circuit breaker
func NewCircuitBreakerClient(client domain.CatalogClient, settings BreakerSettings, logger *slog.Logger) *CircuitBreakerClient {
	if logger == nil {
		logger = slog.Default()
	}
	name := settings.Name
	if name == "" {
		name = "catalog-api"
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		// An unknown id or a cancelled call says nothing about catalog health
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, domain.ErrNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &CircuitBreakerClient{
		client: client,
		cb:     cb,
		name:   name,
		logger: logger,
	}
}

// execute runs fn through the breaker. Rejections are reported as ErrCircuitOpen.
func (c *CircuitBreakerClient) execute(fn func() (any, error)) (any, error) {
	result, err := c.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(c.name, "rejected").Inc()
			c.logger.Warn("circuit breaker rejected request", "name", c.name)
			return nil, fmt.Errorf("%w: %w", domain.ErrCircuitOpen, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "failure").Inc()
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(c.name, "success").Inc()
	return result, nil
}

// castResult type-asserts a breaker result
func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// State returns the breaker state as text
func (c *CircuitBreakerClient) State() string {
	return c.cb.State().String()
}

func (c *CircuitBreakerClient) FetchPage(ctx context.Context, page int) (domain.Page, error) {
	return castResult[domain.Page](c.execute(func() (any, error) {
		p, err := c.client.FetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		return p, nil
	}))
}

func (c *CircuitBreakerClient) FetchByID(ctx context.Context, id int) (domain.Movie, error) {
	return castResult[domain.Movie](c.execute(func() (any, error) {
		m, err := c.client.FetchByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return m, nil
	}))
}
