package txlog

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/cryptosim/internal/domain"
)

func tradeEvent(id uint64, kind domain.TradeType) domain.LedgerEvent {
	ts := time.Date(2024, 3, 1, 12, 0, int(id), 0, time.UTC)
	return domain.LedgerEvent{
		Kind: domain.LedgerEventTrade,
		Transaction: &domain.Transaction{
			ID:        id,
			Asset:     "BTC",
			Quantity:  decimal.RequireFromString("0.1"),
			UnitPrice: decimal.NewFromInt(50000),
			Total:     decimal.NewFromInt(5000),
			Type:      kind,
			Timestamp: ts,
		},
		Timestamp: ts,
	}
}

func TestWALStoreReplaysInOrderAfterReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewWALStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Append(domain.LedgerEvent{
		Kind:      domain.LedgerEventGenesis,
		Balance:   decimal.NewFromInt(25000),
		Timestamp: time.Now().UTC(),
	}))
	require.NoError(t, store.Append(tradeEvent(1, domain.TradeTypeBuy)))
	require.NoError(t, store.Append(domain.LedgerEvent{
		Kind:      domain.LedgerEventReset,
		Balance:   decimal.NewFromInt(10000),
		NextID:    2,
		Timestamp: time.Now().UTC(),
	}))
	require.NoError(t, store.Append(tradeEvent(2, domain.TradeTypeSell)))
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	var got []domain.LedgerEvent
	require.NoError(t, reopened.Replay(func(e domain.LedgerEvent) error {
		got = append(got, e)
		return nil
	}))

	require.Len(t, got, 4)
	assert.Equal(t, domain.LedgerEventGenesis, got[0].Kind)
	assert.True(t, got[0].Balance.Equal(decimal.NewFromInt(25000)))
	assert.Equal(t, domain.LedgerEventTrade, got[1].Kind)
	assert.Equal(t, uint64(1), got[1].Transaction.ID)
	assert.True(t, got[1].Transaction.Quantity.Equal(decimal.RequireFromString("0.1")))
	assert.Equal(t, domain.LedgerEventReset, got[2].Kind)
	assert.Equal(t, uint64(2), got[2].NextID)
	assert.True(t, got[2].Balance.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, domain.TradeTypeSell, got[3].Transaction.Type)
}

func TestWALStoreRejectsMalformedEvents(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	assert.Error(t, store.Append(domain.LedgerEvent{Kind: domain.LedgerEventTrade}))
	assert.Error(t, store.Append(domain.LedgerEvent{Kind: "other"}))
}

func TestNilWALStore(t *testing.T) {
	var s *WALStore
	assert.Error(t, s.Append(tradeEvent(1, domain.TradeTypeBuy)))
	assert.Error(t, s.Replay(func(domain.LedgerEvent) error { return nil }))
}
