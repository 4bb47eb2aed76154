package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/cryptosim/internal/domain"
	"github.com/vadiminshakov/cryptosim/internal/events"
	"github.com/vadiminshakov/cryptosim/internal/services/ledger"
	"github.com/vadiminshakov/cryptosim/internal/services/pricefeed"
	"github.com/vadiminshakov/cryptosim/internal/services/trader"
	"github.com/vadiminshakov/cryptosim/internal/services/valuation"
)

func newGateway(t *testing.T) (*Gateway, *pricefeed.Feed) {
	t.Helper()
	feed := pricefeed.New(events.NewQuoteBroadcaster(8, nil), zap.NewNop())
	l, err := ledger.New(decimal.NewFromInt(10000), zap.NewNop())
	require.NoError(t, err)
	return New(feed, l, trader.NewExecutor(feed, l, zap.NewNop()), valuation.NewService(l, feed)), feed
}

func TestGatewayTradesAndReads(t *testing.T) {
	g, feed := newGateway(t)
	sub := g.SubscribePrices()
	defer sub.Close()

	feed.Ingest("BTC", decimal.NewFromInt(50000), time.Now())
	q := <-sub.C()
	assert.Equal(t, "BTC", q.Asset)

	tx, err := g.Buy(context.Background(), "btc", decimal.RequireFromString("0.1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tx.ID)

	assert.True(t, g.Balance().Equal(decimal.NewFromInt(5000)))
	require.Len(t, g.Holdings(), 1)
	require.Len(t, g.HoldingValues(), 1)
	assert.True(t, g.Portfolio().Total.Equal(decimal.NewFromInt(10000)))
	assert.Len(t, g.Transactions(), 1)
	assert.Contains(t, g.ProfitLoss(), "BTC")
	assert.Contains(t, g.Prices(), "BTC")

	_, err = g.Sell(context.Background(), "ETH", decimal.NewFromInt(1))
	assert.Equal(t, domain.KindUnknownAsset, domain.KindOf(err))

	restored, err := g.Reset()
	require.NoError(t, err)
	assert.True(t, restored.Equal(decimal.NewFromInt(10000)))
	assert.Empty(t, g.Transactions())
	assert.Contains(t, g.Prices(), "BTC", "reset keeps prices")
}
