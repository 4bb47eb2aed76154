package pricer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vadiminshakov/cryptosim/internal/domain"
	"github.com/vadiminshakov/cryptosim/pkg/retrier"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	err   error
	ticks []Tick
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(context.Context) ([]Tick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.ticks, nil
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type upstreamStub struct {
	mu       sync.Mutex
	failures int
	states   []bool
}

func (u *upstreamStub) UpstreamConnected(_ string, up bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.states = append(u.states, up)
}

func (u *upstreamStub) UpstreamFailed(string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failures++
}

func testPoller(src Source, sink Sink, opts ...PollerOption) *Poller {
	base := []PollerOption{
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		WithRetrier(retrier.New(retrier.WithMaxRetries(0))),
	}
	return NewPoller(src, sink, time.Hour, zap.NewNop(), append(base, opts...)...)
}

func TestPollerIngestsTicks(t *testing.T) {
	src := &fakeSource{ticks: []Tick{
		{Asset: "BTC", Price: decimal.NewFromInt(50000), ObservedAt: time.Now()},
		{Asset: "ETH", Price: decimal.NewFromInt(3000), ObservedAt: time.Now()},
	}}
	sink := newRecordingSink()
	rec := &upstreamStub{}
	p := testPoller(src, sink, WithPollRecorder(rec))

	require.NoError(t, p.Poll(context.Background()))

	price, ok := sink.get("ETH")
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(3000)))
	assert.True(t, p.Connected())
	assert.Equal(t, []bool{true}, rec.states)
}

func TestPollerBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	src := &fakeSource{err: errors.New("502 bad gateway")}
	rec := &upstreamStub{}
	p := testPoller(src, newRecordingSink(), WithPollRecorder(rec), WithBreaker(2, time.Hour))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := p.Poll(ctx)
		require.Error(t, err)
		assert.NotEqual(t, domain.KindTransportUnavailable, domain.KindOf(err))
	}

	err := p.Poll(ctx)
	require.Error(t, err)
	assert.Equal(t, domain.KindTransportUnavailable, domain.KindOf(err))
	assert.Equal(t, 2, src.callCount(), "open breaker must not call the source")
	assert.Equal(t, 3, rec.failures)
	assert.False(t, p.Connected())
}

func TestPollerBreakerRecovers(t *testing.T) {
	src := &fakeSource{err: errors.New("timeout"), ticks: []Tick{{Asset: "SOL", Price: decimal.NewFromInt(150)}}}
	p := testPoller(src, newRecordingSink(), WithBreaker(1, 20*time.Millisecond))
	ctx := context.Background()

	require.Error(t, p.Poll(ctx))
	require.Error(t, p.Poll(ctx))

	src.setErr(nil)
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, p.Poll(ctx))
	assert.True(t, p.Connected())
}

func TestPollerRunStopsOnCancel(t *testing.T) {
	src := &fakeSource{ticks: []Tick{{Asset: "BTC", Price: decimal.NewFromInt(1)}}}
	p := testPoller(src, newRecordingSink())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return src.callCount() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
