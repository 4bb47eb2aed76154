package events

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/cryptosim/internal/domain"
)

type countingObserver struct{ n int }

func (c *countingObserver) SubscriberDropped() { c.n++ }

func quote(asset string, price int64) domain.PriceQuote {
	return domain.PriceQuote{Asset: asset, Price: decimal.NewFromInt(price), ObservedAt: time.Unix(price, 0)}
}

func TestQuoteBroadcasterDeliversToAllSubscribers(t *testing.T) {
	b := NewQuoteBroadcaster(4, nil)
	first := b.Subscribe()
	second := b.Subscribe()
	defer first.Close()
	defer second.Close()

	b.Publish(quote("BTC", 1))
	b.Publish(quote("BTC", 2))

	for _, sub := range []*Subscription{first, second} {
		q := <-sub.C()
		assert.True(t, q.Price.Equal(decimal.NewFromInt(1)))
		q = <-sub.C()
		assert.True(t, q.Price.Equal(decimal.NewFromInt(2)))
	}
	assert.NotEqual(t, first.ID(), second.ID())
}

func TestQuoteBroadcasterDropsOldestForSlowSubscriber(t *testing.T) {
	obs := &countingObserver{}
	b := NewQuoteBroadcaster(2, obs)
	slow := b.Subscribe()
	fast := b.Subscribe()
	defer slow.Close()
	defer fast.Close()

	for i := int64(1); i <= 5; i++ {
		b.Publish(quote("ETH", i))
		<-fast.C()
	}

	require.Len(t, slow.C(), 2)
	q := <-slow.C()
	assert.True(t, q.Price.Equal(decimal.NewFromInt(4)))
	q = <-slow.C()
	assert.True(t, q.Price.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, uint64(3), slow.Dropped())
	assert.Equal(t, uint64(0), fast.Dropped())
	assert.Equal(t, 3, obs.n)
}

func TestQuoteBroadcasterCloseReleasesSubscriber(t *testing.T) {
	b := NewQuoteBroadcaster(1, nil)
	sub := b.Subscribe()
	assert.Equal(t, 1, b.Subscribers())

	sub.Close()
	sub.Close()

	_, open := <-sub.C()
	assert.False(t, open)
	assert.Equal(t, 0, b.Subscribers())

	// publishing after close must not panic
	b.Publish(quote("BTC", 1))
}
