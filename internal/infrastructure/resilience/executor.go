// Package resilience wraps I/O in a retry-with-timeout combinator guarded by
// per-operation circuit breakers.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
	// Cooldown asks for the longer rate-limit wait before the next attempt.
	Cooldown bool
}

type ErrorClassifier func(err error) ErrorClassification

// ErrAttemptTimeout marks an attempt that outlived its per-attempt deadline.
var ErrAttemptTimeout = errors.New("attempt timed out")

type Executor struct {
	cfg    Config
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:      cfg.normalize(),
		logger:   logger,
		sleep:    sleepContext,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Execute runs fn until it succeeds, the classifier declares the error
// permanent, or the attempt ceiling is reached. Every attempt gets its own
// timeout; a timed-out attempt is retried like any transient failure.
func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classifier == nil {
		classifier = TransientClassifier
	}

	if !e.cfg.BreakerEnabled {
		return e.executeWithRetry(ctx, op, fn, classifier)
	}

	breaker := e.circuitBreaker(op, classifier)
	_, err := breaker.Execute(func() (any, error) {
		return nil, e.executeWithRetry(ctx, op, fn, classifier)
	})
	return err
}

func (e *Executor) executeWithRetry(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	maxAttempts := e.cfg.MaxAttempts
	delay := e.cfg.Delay

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := e.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		lastErr = err

		class := classifier(err)
		if errors.Is(err, ErrAttemptTimeout) {
			class.Retryable = true
		}
		if !class.Retryable || attempt == maxAttempts {
			return err
		}

		wait := delay
		if wait > e.cfg.MaxDelay {
			wait = e.cfg.MaxDelay
		}
		if class.Cooldown {
			wait = e.cfg.Cooldown
		}
		e.logger.Warn("retry_attempt",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"cooldown", class.Cooldown,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)

		if err := e.sleep(ctx, wait); err != nil {
			return lastErr
		}

		delay = time.Duration(float64(delay) * e.cfg.Multiplier)
		if delay > e.cfg.MaxDelay {
			delay = e.cfg.MaxDelay
		}
	}

	return lastErr
}

func (e *Executor) attempt(ctx context.Context, fn func(context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.AttemptTimeout)
	defer cancel()

	err := fn(attemptCtx)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", ErrAttemptTimeout, e.cfg.AttemptTimeout, err)
	}
	return err
}

func (e *Executor) circuitBreaker(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			e.logger.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)
	e.breakers[operation] = breaker
	return breaker
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// TransientClassifier retries everything except caller cancellation.
func TransientClassifier(err error) ErrorClassification {
	if errors.Is(err, context.Canceled) {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return ErrorClassification{Retryable: true, RecordFailure: true}
}

// NoRetryClassifier fails fast; used for fallback chains where the next
// provider is the retry.
func NoRetryClassifier(err error) ErrorClassification {
	return ErrorClassification{Retryable: false, RecordFailure: !errors.Is(err, context.Canceled)}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
