// Package pricefeed keeps the latest known price per asset and broadcasts every accepted update.
package pricefeed

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/cryptosim/internal/domain"
	"github.com/vadiminshakov/cryptosim/internal/events"
)

type ingestRecorder interface {
	QuoteIngested(outcome string)
	SubscriberAttached(delta int)
}

type nopRecorder struct{}

func (nopRecorder) QuoteIngested(string)   {}
func (nopRecorder) SubscriberAttached(int) {}

// Feed is the authoritative latest-quote table.
type Feed struct {
	mu          sync.RWMutex
	quotes      map[string]domain.PriceQuote
	quote       string
	broadcaster *events.QuoteBroadcaster
	recorder    ingestRecorder
	logger      *zap.Logger
}

// Option configures a Feed.
type Option func(*Feed)

// WithRecorder attaches ingestion metrics.
func WithRecorder(r ingestRecorder) Option {
	return func(f *Feed) {
		if r != nil {
			f.recorder = r
		}
	}
}

// WithQuoteCurrency sets the currency used to strip pair suffixes from symbols (default USD).
func WithQuoteCurrency(quote string) Option {
	return func(f *Feed) {
		f.quote = quote
	}
}

// New creates an empty feed publishing through broadcaster.
func New(broadcaster *events.QuoteBroadcaster, logger *zap.Logger, opts ...Option) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	if broadcaster == nil {
		broadcaster = events.NewQuoteBroadcaster(0, nil)
	}
	f := &Feed{
		quotes:      make(map[string]domain.PriceQuote),
		quote:       domain.DefaultQuoteCurrency,
		broadcaster: broadcaster,
		recorder:    nopRecorder{},
		logger:      logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Ingest records price as the latest quote for asset.
// Updates older than the stored quote, negative or out-of-range prices and empty symbols are dropped; it reports
// whether the quote was applied. Subscribers see accepted quotes in ingestion order.
func (f *Feed) Ingest(asset string, price decimal.Decimal, ts time.Time) bool {
	asset = domain.NormalizeAsset(asset, f.quote)
	if asset == "" || price.IsNegative() || !domain.InBounds(price) {
		f.recorder.QuoteIngested("invalid")
		f.logger.Debug("invalid quote dropped", zap.String("asset", asset), zap.String("price", price.String()))
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if cur, ok := f.quotes[asset]; ok && ts.Before(cur.ObservedAt) {
		f.recorder.QuoteIngested("stale")
		f.logger.Debug("stale quote dropped",
			zap.String("asset", asset),
			zap.Time("ts", ts),
			zap.Time("current_ts", cur.ObservedAt))
		return false
	}

	q := domain.PriceQuote{Asset: asset, Price: price, ObservedAt: ts}
	f.quotes[asset] = q
	f.recorder.QuoteIngested("applied")
	f.broadcaster.Publish(q)
	return true
}

// Latest returns the most recent quote for asset; ok is false when none was ever observed.
func (f *Feed) Latest(asset string) (domain.PriceQuote, bool) {
	asset = domain.NormalizeAsset(asset, f.quote)

	f.mu.RLock()
	defer f.mu.RUnlock()

	q, ok := f.quotes[asset]
	return q, ok
}

// LatestAll returns a point-in-time copy of all quotes.
func (f *Feed) LatestAll() map[string]domain.PriceQuote {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]domain.PriceQuote, len(f.quotes))
	for k, v := range f.quotes {
		out[k] = v
	}
	return out
}

// Subscribe attaches a new subscriber to the quote stream. Callers must Close it.
func (f *Feed) Subscribe() *Subscription {
	f.recorder.SubscriberAttached(1)
	return &Subscription{Subscription: f.broadcaster.Subscribe(), recorder: f.recorder}
}

// Subscription wraps the broadcaster subscription to keep subscriber gauges accurate.
type Subscription struct {
	*events.Subscription
	recorder ingestRecorder
	once     sync.Once
}

// Close detaches the subscriber.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.Subscription.Close()
		s.recorder.SubscriberAttached(-1)
	})
}
