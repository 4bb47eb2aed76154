package pricer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vadiminshakov/cryptosim/internal/domain"
	"github.com/vadiminshakov/cryptosim/pkg/retrier"
)

const (
	defaultPollInterval    = 5 * time.Second
	defaultBreakerFailures = 3
	defaultBreakerTimeout  = 30 * time.Second
)

// Poller periodically fetches prices from a pull Source and ingests them.
// Fetches are rate limited, retried, and guarded by a circuit breaker.
type Poller struct {
	source    Source
	sink      Sink
	interval  time.Duration
	limiter   *rate.Limiter
	retrier   *retrier.Retrier
	breaker   *gobreaker.CircuitBreaker
	recorder  statusRecorder
	logger    *zap.Logger
	connected atomic.Bool

	breakerFailures uint32
	breakerTimeout  time.Duration
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithPollRecorder attaches upstream metrics.
func WithPollRecorder(r statusRecorder) PollerOption {
	return func(p *Poller) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithRetrier overrides the per-poll retry policy.
func WithRetrier(r *retrier.Retrier) PollerOption {
	return func(p *Poller) {
		p.retrier = r
	}
}

// WithLimiter overrides the request limiter.
func WithLimiter(l *rate.Limiter) PollerOption {
	return func(p *Poller) {
		p.limiter = l
	}
}

// WithBreaker sets how many consecutive failed polls open the breaker and how long it stays open.
func WithBreaker(failures uint32, openFor time.Duration) PollerOption {
	return func(p *Poller) {
		p.breakerFailures = failures
		p.breakerTimeout = openFor
	}
}

// NewPoller creates a Poller for source feeding sink every interval.
func NewPoller(source Source, sink Sink, interval time.Duration, logger *zap.Logger, opts ...PollerOption) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	p := &Poller{
		source:          source,
		sink:            sink,
		interval:        interval,
		limiter:         rate.NewLimiter(rate.Every(interval/2), 1),
		retrier:         retrier.New(retrier.WithMaxRetries(2), retrier.WithInitialInterval(interval/10)),
		recorder:        nopRecorder{},
		logger:          logger.With(zap.String("source", source.Name())),
		breakerFailures: defaultBreakerFailures,
		breakerTimeout:  defaultBreakerTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        source.Name(),
		MaxRequests: 1,
		Timeout:     p.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= p.breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn("price source breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return p
}

func (p *Poller) Name() string { return p.source.Name() }

// Connected reports whether the last poll succeeded.
func (p *Poller) Connected() bool { return p.connected.Load() }

// Run polls until ctx is done. Poll failures are logged and never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("starting price poller", zap.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("price poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			p.setConnected(false)
			p.logger.Info("price poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Poll performs one guarded fetch and ingests the result.
func (p *Poller) Poll(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	res, err := p.breaker.Execute(func() (interface{}, error) {
		return retrier.DoWithData(p.retrier, ctx, p.source.Fetch)
	})
	if err != nil {
		p.setConnected(false)
		p.recorder.UpstreamFailed(p.source.Name())
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.NewError(domain.KindTransportUnavailable, "%s price source unavailable: %v", p.source.Name(), err)
		}
		return errors.Wrapf(err, "poll %s", p.source.Name())
	}

	p.setConnected(true)
	applied := 0
	for _, t := range res.([]Tick) {
		if p.sink.Ingest(t.Asset, t.Price, t.ObservedAt) {
			applied++
		}
	}
	p.logger.Debug("price poll done", zap.Int("applied", applied))
	return nil
}

func (p *Poller) setConnected(up bool) {
	if p.connected.Swap(up) != up {
		p.recorder.UpstreamConnected(p.source.Name(), up)
	}
}
