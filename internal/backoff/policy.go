package backoff

import (
	"errors"
	"sync"
	"time"
)

// ErrRetriesExhausted is returned when the maximum number of retries has been reached.
var ErrRetriesExhausted = errors.New("retries exhausted")

type (
	// RetryPolicy computes the interval to wait before the next retry,
	// or an error if no more retries should be attempted.
	RetryPolicy interface {
		ComputeNextInterval(retryCount int, elapsedTime time.Duration, err error) (time.Duration, error)
	}

	// Retrier manages the state of retry operations.
	Retrier interface {
		// Next computes the next retry interval and updates internal state.
		Next(err error) (time.Duration, error)
		// Reset resets the retrier to its initial state.
		Reset()
	}
)

var defaultMaxInterval = 60 * time.Second

// LinearBackoffPolicy increases the interval linearly: the n-th retry
// waits InitialInterval + n*Increment, capped at MaxInterval.
type LinearBackoffPolicy struct {
	InitialInterval time.Duration
	Increment       time.Duration
	MaxInterval     time.Duration
	// MaxRetries is the maximum number of retries allowed. 0 means unlimited.
	MaxRetries int
}

// NewLinearBackoffPolicy creates a LinearBackoffPolicy whose increment
// equals the initial interval, so waits grow as 1x, 2x, 3x the base delay.
func NewLinearBackoffPolicy(initialInterval time.Duration, maxRetries int) *LinearBackoffPolicy {
	return &LinearBackoffPolicy{
		InitialInterval: initialInterval,
		Increment:       initialInterval,
		MaxInterval:     defaultMaxInterval,
		MaxRetries:      maxRetries,
	}
}

// ComputeNextInterval computes the next retry interval using linear backoff.
func (p *LinearBackoffPolicy) ComputeNextInterval(retryCount int, _ time.Duration, _ error) (time.Duration, error) {
	if p.MaxRetries > 0 && retryCount >= p.MaxRetries {
		return 0, ErrRetriesExhausted
	}
	return min(p.InitialInterval+time.Duration(retryCount)*p.Increment, p.MaxInterval), nil
}

// ConstantBackoffPolicy waits a fixed interval between retries.
type ConstantBackoffPolicy struct {
	Interval   time.Duration
	MaxRetries int
}

// ComputeNextInterval returns a constant interval for each retry.
func (p *ConstantBackoffPolicy) ComputeNextInterval(retryCount int, _ time.Duration, _ error) (time.Duration, error) {
	if p.MaxRetries > 0 && retryCount >= p.MaxRetries {
		return 0, ErrRetriesExhausted
	}
	return p.Interval, nil
}

// NewRetrier creates a new Retrier instance with the specified retry policy.
func NewRetrier(retryPolicy RetryPolicy) Retrier {
	return &retrierImpl{retryPolicy: retryPolicy}
}

type retrierImpl struct {
	retryPolicy RetryPolicy
	retryCount  int
	startTime   time.Time
	mu          sync.Mutex
}

// Next computes the next retry interval and updates internal state.
func (r *retrierImpl) Next(err error) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.startTime.IsZero() {
		r.startTime = time.Now()
	}

	interval, computeErr := r.retryPolicy.ComputeNextInterval(r.retryCount, time.Since(r.startTime), err)
	if computeErr != nil {
		return 0, computeErr
	}

	r.retryCount++
	return interval, nil
}

// Reset resets the retrier to its initial state.
func (r *retrierImpl) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryCount = 0
	r.startTime = time.Time{}
}
