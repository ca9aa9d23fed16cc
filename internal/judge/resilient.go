package judge

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/felixgeelhaar/fortify/retry"
)

// ResilientJudge wraps a judge with resilience patterns from fortify.
// The external judging service sits on the session's hot path, so a
// flapping judge must not take theory recording down with it.
type ResilientJudge struct {
	judge          Judge
	fallback       Judge
	circuitBreaker circuitbreaker.CircuitBreaker[float64]
	retrier        retry.Retry[float64]
	bulkhead       bulkhead.Bulkhead[float64]
	rateLimit      ratelimit.RateLimiter
	logger         *slog.Logger
	name           string
}

// ResilientConfig holds configuration for the resilient judge wrapper.
type ResilientConfig struct {
	// EnableCircuitBreaker enables the circuit breaker.
	EnableCircuitBreaker bool

	// EnableRetry enables retry with backoff.
	EnableRetry bool

	// EnableBulkhead enables concurrency limiting.
	EnableBulkhead bool

	// EnableRateLimit enables rate limiting.
	EnableRateLimit bool

	// MaxConcurrent for the bulkhead (default: 5).
	MaxConcurrent int

	// RatePerSecond for rate limiting (default: 10).
	RatePerSecond int

	// Fallback grades the answer when the primary judge is unavailable.
	Fallback Judge

	// Logger for resilience events.
	Logger *slog.Logger
}

// DefaultResilientConfig returns sensible defaults for judge resilience.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		EnableCircuitBreaker: true,
		EnableRetry:          true,
		EnableBulkhead:       true,
		EnableRateLimit:      true,
		MaxConcurrent:        5,
		RatePerSecond:        10,
		Fallback:             NewKeywordJudge(),
	}
}

// NewResilientJudge wraps a judge with resilience patterns using fortify.
func NewResilientJudge(judge Judge, cfg ResilientConfig) *ResilientJudge {
	rj := &ResilientJudge{
		judge:    judge,
		fallback: cfg.Fallback,
		logger:   cfg.Logger,
		name:     judge.Name(),
	}

	if cfg.EnableCircuitBreaker {
		rj.circuitBreaker = circuitbreaker.New[float64](circuitbreaker.Config{
			MaxRequests: 2,
			Interval:    10 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				if rj.logger != nil {
					rj.logger.Warn("judge circuit breaker state change",
						"judge", judge.Name(),
						"from", from.String(),
						"to", to.String())
				}
			},
		})
	}

	if cfg.EnableRetry {
		rj.retrier = retry.New[float64](retry.Config{
			MaxAttempts:   3,
			InitialDelay:  time.Second,
			MaxDelay:      15 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable: func(err error) bool {
				return isRetryableHTTPError(err)
			},
		})
	}

	if cfg.EnableBulkhead {
		maxConcurrent := cfg.MaxConcurrent
		if maxConcurrent <= 0 {
			maxConcurrent = 5
		}
		rj.bulkhead = bulkhead.New[float64](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
			MaxQueue:      maxConcurrent * 2,
			QueueTimeout:  30 * time.Second,
		})
	}

	if cfg.EnableRateLimit {
		rate := cfg.RatePerSecond
		if rate <= 0 {
			rate = 10
		}
		rj.rateLimit = ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    rate * 3,
			Interval: time.Second,
		})
	}

	return rj
}

func (j *ResilientJudge) Name() string {
	return j.name
}

// GradeAnswer grades through the full resilience stack. When the
// primary judge stays unavailable and a fallback is configured, the
// fallback grades instead of failing the theory recording.
func (j *ResilientJudge) GradeAnswer(ctx context.Context, req AnswerRequest) (float64, error) {
	grade, err := j.grade(ctx, req)
	if err != nil && j.fallback != nil {
		if j.logger != nil {
			j.logger.Warn("primary judge unavailable, using fallback",
				"judge", j.name,
				"fallback", j.fallback.Name(),
				"question_id", req.QuestionID,
				"error", err)
		}
		return j.fallback.GradeAnswer(ctx, req)
	}
	return grade, err
}

func (j *ResilientJudge) grade(ctx context.Context, req AnswerRequest) (float64, error) {
	if j.rateLimit != nil {
		if !j.rateLimit.Allow(ctx, j.name) {
			return 0, fmt.Errorf("rate limit exceeded for judge %s", j.name)
		}
	}

	operation := func(ctx context.Context) (float64, error) {
		return j.judge.GradeAnswer(ctx, req)
	}

	if j.bulkhead != nil {
		operation = func(ctx context.Context) (float64, error) {
			return j.bulkhead.Execute(ctx, func(ctx context.Context) (float64, error) {
				return j.judge.GradeAnswer(ctx, req)
			})
		}
	}

	if j.circuitBreaker != nil && j.retrier != nil {
		return j.circuitBreaker.Execute(ctx, func(ctx context.Context) (float64, error) {
			return j.retrier.Do(ctx, operation)
		})
	}
	if j.circuitBreaker != nil {
		return j.circuitBreaker.Execute(ctx, operation)
	}
	if j.retrier != nil {
		return j.retrier.Do(ctx, operation)
	}
	return operation(ctx)
}

// Close releases resources held by the resilient judge.
func (j *ResilientJudge) Close() error {
	if j.rateLimit != nil {
		return j.rateLimit.Close()
	}
	return nil
}

// isRetryableHTTPError checks if an error is retryable based on HTTP semantics.
func isRetryableHTTPError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	retryable := []string{
		fmt.Sprintf("status %d", http.StatusTooManyRequests),
		fmt.Sprintf("status %d", http.StatusInternalServerError),
		fmt.Sprintf("status %d", http.StatusBadGateway),
		fmt.Sprintf("status %d", http.StatusServiceUnavailable),
		fmt.Sprintf("status %d", http.StatusGatewayTimeout),
	}
	for _, pattern := range retryable {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
