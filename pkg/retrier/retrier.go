// Package retrier provides exponential backoff with jitter, both as a retry loop (Retrier)
// and as a stateful delay source for long-lived reconnect loops (Backoff).
package retrier

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultInitialInterval = 1 * time.Second
	defaultMaxInterval     = 30 * time.Second
	defaultMultiplier      = 2.0
	defaultMaxRetries      = 5
	defaultJitter          = 0.1
)

type schedule struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	multiplier      float64
	maxRetries      int
	jitter          float64
	retryIf         func(error) bool
}

// Option configures backoff parameters for both Retrier and Backoff.
type Option func(*schedule)

// WithInitialInterval sets the first delay.
func WithInitialInterval(d time.Duration) Option {
	return func(s *schedule) { s.initialInterval = d }
}

// WithMaxInterval caps the delay.
func WithMaxInterval(d time.Duration) Option {
	return func(s *schedule) { s.maxInterval = d }
}

// WithMultiplier sets the growth factor between delays.
func WithMultiplier(m float64) Option {
	return func(s *schedule) { s.multiplier = m }
}

// WithMaxRetries limits Retrier.Do to n retries after the first attempt.
func WithMaxRetries(n int) Option {
	return func(s *schedule) { s.maxRetries = n }
}

// WithJitter sets the jitter factor (0.0 to 1.0).
func WithJitter(j float64) Option {
	return func(s *schedule) { s.jitter = j }
}

// WithRetryIf stops Retrier.Do early when fn returns false for an error.
func WithRetryIf(fn func(error) bool) Option {
	return func(s *schedule) { s.retryIf = fn }
}

func newSchedule(opts []Option) schedule {
	s := schedule{
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		multiplier:      defaultMultiplier,
		maxRetries:      defaultMaxRetries,
		jitter:          defaultJitter,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s schedule) jittered(interval time.Duration) time.Duration {
	j := (rand.Float64()*2 - 1) * s.jitter * float64(interval)
	d := time.Duration(float64(interval) + j)
	if d < 0 {
		return 0
	}
	return d
}

func (s schedule) grow(interval time.Duration) time.Duration {
	next := time.Duration(float64(interval) * s.multiplier)
	if next > s.maxInterval {
		return s.maxInterval
	}
	return next
}

// Retrier retries a function a bounded number of times.
type Retrier struct {
	s schedule
}

// New creates a Retrier with default values and optional overrides.
func New(opts ...Option) *Retrier {
	return &Retrier{s: newSchedule(opts)}
}

// Do executes fn until it succeeds, retries are exhausted, ctx is done or retryIf rejects the error.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	interval := r.s.initialInterval

	for attempt := 0; attempt <= r.s.maxRetries; attempt++ {
		if attempt > 0 {
			if r.s.retryIf != nil && !r.s.retryIf(err) {
				return err
			}
			if werr := sleep(ctx, r.s.jittered(interval)); werr != nil {
				return werr
			}
			interval = r.s.grow(interval)
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
	}

	return err
}

// DoWithData executes the given function with retries and returns a value.
func DoWithData[T any](r *Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}

// Backoff hands out growing delays for an unbounded reconnect loop. Not safe for concurrent use.
type Backoff struct {
	s       schedule
	current time.Duration
}

// NewBackoff creates a Backoff; WithMaxRetries and WithRetryIf are ignored.
func NewBackoff(opts ...Option) *Backoff {
	s := newSchedule(opts)
	return &Backoff{s: s, current: s.initialInterval}
}

// Next returns the delay before the next attempt and advances the schedule.
func (b *Backoff) Next() time.Duration {
	d := b.s.jittered(b.current)
	b.current = b.s.grow(b.current)
	return d
}

// Reset restarts the schedule, typically after a successful connection.
func (b *Backoff) Reset() {
	b.current = b.s.initialInterval
}

// Wait sleeps for Next() or until ctx is done.
func (b *Backoff) Wait(ctx context.Context) error {
	return sleep(ctx, b.Next())
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
