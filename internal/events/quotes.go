package events

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/vadiminshakov/cryptosim/internal/domain"
)

// Subscription is one subscriber's view of the quote stream.
// Quotes arrive on C in publish order; when the buffer is full the oldest buffered quote is dropped.
type Subscription struct {
	id      string
	ch      chan domain.PriceQuote
	mu      sync.Mutex
	dropped atomic.Uint64
	owner   *QuoteBroadcaster
}

// ID returns the subscriber id.
func (s *Subscription) ID() string { return s.id }

// C returns the receive side of the subscriber buffer. It is closed on Close.
func (s *Subscription) C() <-chan domain.PriceQuote { return s.ch }

// Dropped returns how many quotes were discarded for this subscriber.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close detaches the subscription and releases its buffer. Safe to call more than once.
func (s *Subscription) Close() {
	s.owner.unsubscribe(s)
}

// offer enqueues q, evicting the oldest queued quote while the buffer is full.
func (s *Subscription) offer(q domain.PriceQuote) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := false
	for {
		select {
		case s.ch <- q:
			return dropped
		default:
		}
		select {
		case <-s.ch:
			s.dropped.Add(1)
			dropped = true
		default:
		}
	}
}

// DropObserver is notified when a subscriber loses a quote.
type DropObserver interface {
	SubscriberDropped()
}

// QuoteBroadcaster fans out quotes to all subscribers via bounded buffers.
// Publish never blocks on a slow reader.
type QuoteBroadcaster struct {
	mu       sync.RWMutex
	subs     map[*Subscription]struct{}
	buffer   int
	observer DropObserver
}

// NewQuoteBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewQuoteBroadcaster(buffer int, observer DropObserver) *QuoteBroadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &QuoteBroadcaster{
		subs:     make(map[*Subscription]struct{}),
		buffer:   buffer,
		observer: observer,
	}
}

// Publish sends the quote to all subscribers.
func (b *QuoteBroadcaster) Publish(q domain.PriceQuote) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if sub.offer(q) && b.observer != nil {
			b.observer.SubscriberDropped()
		}
	}
}

// Subscribe registers a new subscriber.
func (b *QuoteBroadcaster) Subscribe() *Subscription {
	sub := &Subscription{
		id:    uuid.NewString(),
		ch:    make(chan domain.PriceQuote, b.buffer),
		owner: b,
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Subscribers returns the number of attached subscribers.
func (b *QuoteBroadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *QuoteBroadcaster) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
	b.mu.Unlock()
}
