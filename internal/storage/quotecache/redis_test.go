package quotecache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/cryptosim/internal/domain"
)

type sinkStub struct {
	got map[string]decimal.Decimal
}

func (s *sinkStub) Ingest(asset string, price decimal.Decimal, _ time.Time) bool {
	s.got[asset] = price
	return true
}

func testQuote() domain.PriceQuote {
	return domain.PriceQuote{
		Asset:      "BTC",
		Price:      decimal.RequireFromString("50000.5"),
		ObservedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestMirrorStore(t *testing.T) {
	db, mock := redismock.NewClientMock()
	m := NewMirror(db, "", "", zap.NewNop())

	q := testQuote()
	payload, err := json.Marshal(q)
	require.NoError(t, err)

	mock.ExpectSet("cryptosim:latest:BTC", string(payload), defaultTTL).SetVal("OK")
	mock.ExpectPublish("cryptosim:prices", string(payload)).SetVal(1)

	require.NoError(t, m.Store(context.Background(), q))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMirrorStoreError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	m := NewMirror(db, "p:", "c", zap.NewNop())

	q := testQuote()
	payload, err := json.Marshal(q)
	require.NoError(t, err)
	mock.ExpectSet("p:BTC", string(payload), defaultTTL).SetErr(errors.New("connection refused"))

	assert.Error(t, m.Store(context.Background(), q))
}

func TestMirrorWarm(t *testing.T) {
	db, mock := redismock.NewClientMock()
	m := NewMirror(db, "", "", zap.NewNop())

	payload, err := json.Marshal(testQuote())
	require.NoError(t, err)
	mock.ExpectGet("cryptosim:latest:BTC").SetVal(string(payload))
	mock.ExpectGet("cryptosim:latest:ETH").RedisNil()

	sink := &sinkStub{got: map[string]decimal.Decimal{}}
	n, err := m.Warm(context.Background(), []string{"BTC", "ETH"}, sink)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, sink.got["BTC"].Equal(decimal.RequireFromString("50000.5")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMirrorFollowStopsWhenChannelCloses(t *testing.T) {
	db, mock := redismock.NewClientMock()
	m := NewMirror(db, "", "", zap.NewNop())

	q := testQuote()
	payload, err := json.Marshal(q)
	require.NoError(t, err)
	mock.ExpectSet("cryptosim:latest:BTC", string(payload), defaultTTL).SetVal("OK")
	mock.ExpectPublish("cryptosim:prices", string(payload)).SetVal(1)

	quotes := make(chan domain.PriceQuote, 1)
	quotes <- q
	close(quotes)

	require.NoError(t, m.Follow(context.Background(), quotes))
	assert.NoError(t, mock.ExpectationsWereMet())
}
