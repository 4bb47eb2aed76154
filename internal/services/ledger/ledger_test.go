package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/cryptosim/internal/domain"
)

type memJournal struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
	fail   bool
}

func (j *memJournal) Append(e domain.LedgerEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fail {
		return errors.New("disk full")
	}
	if e.Transaction != nil {
		tx := *e.Transaction
		e.Transaction = &tx
	}
	j.events = append(j.events, e)
	return nil
}

func (j *memJournal) Replay(fn func(domain.LedgerEvent) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, e := range j.events {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newLedger(t *testing.T, initial string, opts ...Option) *Ledger {
	t.Helper()
	l, err := New(dec(initial), zap.NewNop(), opts...)
	require.NoError(t, err)
	return l
}

func assertSameSnapshot(t *testing.T, want, got Snapshot) {
	t.Helper()
	assert.True(t, want.Balance.Equal(got.Balance), "balance %s != %s", want.Balance, got.Balance)
	require.Len(t, got.Holdings, len(want.Holdings))
	for asset, qty := range want.Holdings {
		assert.True(t, qty.Equal(got.Holdings[asset]), "%s: %s != %s", asset, qty, got.Holdings[asset])
	}
}

func buy(asset, qty, price string) domain.Delta {
	return domain.NewTradeDelta(domain.TradeTypeBuy, asset, dec(qty), dec(price))
}

func sell(asset, qty, price string) domain.Delta {
	return domain.NewTradeDelta(domain.TradeTypeSell, asset, dec(qty), dec(price))
}

func TestLedgerAppendAndApply(t *testing.T) {
	l := newLedger(t, "10000")

	tx, err := l.AppendAndApply(buy("BTC", "0.1", "50000"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tx.ID)
	assert.True(t, tx.Total.Equal(dec("5000")))
	assert.True(t, tx.Quantity.Equal(dec("0.1")))
	assert.Equal(t, domain.TradeTypeBuy, tx.Type)

	snap := l.Snapshot()
	assert.True(t, snap.Balance.Equal(dec("5000")))
	assert.True(t, snap.Holdings["BTC"].Equal(dec("0.1")))

	tx, err = l.AppendAndApply(sell("BTC", "0.1", "60000"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), tx.ID)

	snap = l.Snapshot()
	assert.True(t, snap.Balance.Equal(dec("11000")))
	_, held := snap.Holdings["BTC"]
	assert.False(t, held, "zero holdings are pruned")
	assert.Len(t, l.History(), 2)
}

func TestLedgerRejections(t *testing.T) {
	tests := []struct {
		name  string
		setup []domain.Delta
		delta domain.Delta
		kind  domain.ErrorKind
		msg   string
	}{
		{
			name:  "insufficient funds",
			delta: buy("BTC", "1", "150"),
			kind:  domain.KindInsufficientFunds,
			msg:   "Insufficient funds. Your balance is $100",
		},
		{
			name:  "sell without holding",
			delta: sell("ETH", "1", "10"),
			kind:  domain.KindInsufficientHoldings,
			msg:   "Insufficient holdings of ETH",
		},
		{
			name:  "sell more than held",
			setup: []domain.Delta{buy("ETH", "1", "10")},
			delta: sell("ETH", "1.5", "10"),
			kind:  domain.KindInsufficientHoldings,
		},
		{
			name:  "zero quantity",
			delta: buy("ETH", "0", "10"),
			kind:  domain.KindInvalidQuantity,
		},
		{
			name:  "quantity exponent below range",
			delta: buy("ETH", "1e-2147483647", "10"),
			kind:  domain.KindInvalidQuantity,
		},
		{
			name:  "quantity exponent above range",
			delta: sell("ETH", "1e400", "10"),
			kind:  domain.KindInvalidQuantity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t, "100")
			for _, d := range tt.setup {
				_, err := l.AppendAndApply(d)
				require.NoError(t, err)
			}
			before := l.Snapshot()
			historyLen := len(l.History())

			_, err := l.AppendAndApply(tt.delta)
			require.Error(t, err)
			assert.Equal(t, tt.kind, domain.KindOf(err))
			if tt.msg != "" {
				assert.Equal(t, tt.msg, err.Error())
			}
			assert.Equal(t, before, l.Snapshot())
			assert.Len(t, l.History(), historyLen)
		})
	}
}

func TestLedgerRejectsInconsistentDelta(t *testing.T) {
	l := newLedger(t, "100")
	d := buy("BTC", "1", "10")
	d.BalanceChange = dec("10")

	_, err := l.AppendAndApply(d)
	assert.Error(t, err)
	assert.True(t, l.Balance().Equal(dec("100")))
}

func TestLedgerConcurrentBuysNeverOverdraw(t *testing.T) {
	l := newLedger(t, "100")

	var wg sync.WaitGroup
	results := make(chan error, 2)
	start := make(chan struct{})
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := l.AppendAndApply(buy("BTC", "1", "60"))
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var ok, funds int
	for err := range results {
		if err == nil {
			ok++
		} else if errors.Is(err, domain.ErrInsufficientFunds) {
			funds++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, funds)
	assert.True(t, l.Balance().Equal(dec("40")))
	assert.Len(t, l.History(), 1)
}

func TestLedgerConservationUnderConcurrency(t *testing.T) {
	l := newLedger(t, "1000")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				if (i+j)%3 == 0 {
					_, _ = l.AppendAndApply(sell("SOL", "0.5", "7.25"))
				} else {
					_, _ = l.AppendAndApply(buy("SOL", "0.3", "7.5"))
				}
			}
		}(i)
	}
	wg.Wait()

	balance := dec("1000")
	qty := decimal.Zero
	lastID := uint64(0)
	for _, tx := range l.History() {
		assert.Greater(t, tx.ID, lastID)
		lastID = tx.ID
		if tx.Type == domain.TradeTypeBuy {
			balance = balance.Sub(tx.Total)
			qty = qty.Add(tx.Quantity)
		} else {
			balance = balance.Add(tx.Total)
			qty = qty.Sub(tx.Quantity)
		}
		assert.False(t, balance.IsNegative())
		assert.False(t, qty.IsNegative())
	}
	snap := l.Snapshot()
	assert.True(t, snap.Balance.Equal(balance), "balance %s != replayed %s", snap.Balance, balance)
	assert.True(t, snap.Holdings["SOL"].Equal(qty), "holding %s != replayed %s", snap.Holdings["SOL"], qty)
}

func TestLedgerResetKeepsIDsIncreasing(t *testing.T) {
	l := newLedger(t, "10000")

	_, err := l.AppendAndApply(buy("BTC", "0.1", "50000"))
	require.NoError(t, err)
	_, err = l.AppendAndApply(buy("ETH", "1", "3000"))
	require.NoError(t, err)

	require.NoError(t, l.Reset())
	require.NoError(t, l.Reset())

	snap := l.Snapshot()
	assert.True(t, snap.Balance.Equal(dec("10000")))
	assert.Empty(t, snap.Holdings)
	assert.Empty(t, l.History())

	tx, err := l.AppendAndApply(buy("BTC", "0.1", "50000"))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), tx.ID)
}

func TestLedgerRestoresFromJournal(t *testing.T) {
	tests := []struct {
		name       string
		configured string
	}{
		{name: "same initial balance", configured: "10000"},
		{name: "changed initial balance", configured: "500"},
		{name: "zero initial balance", configured: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			journal := &memJournal{}
			clock := func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

			l := newLedger(t, "10000", WithJournal(journal), WithClock(clock))
			_, err := l.AppendAndApply(buy("BTC", "0.1", "50000"))
			require.NoError(t, err)
			require.NoError(t, l.Reset())
			_, err = l.AppendAndApply(buy("ETH", "2", "3000"))
			require.NoError(t, err)
			_, err = l.AppendAndApply(sell("ETH", "0.5", "3100"))
			require.NoError(t, err)

			restored := newLedger(t, tt.configured, WithJournal(journal), WithClock(clock))

			assertSameSnapshot(t, l.Snapshot(), restored.Snapshot())
			assert.Equal(t, l.History(), restored.History())
			assert.True(t, restored.InitialBalance().Equal(dec("10000")))
			assert.Len(t, journal.events, 5)

			tx, err := restored.AppendAndApply(buy("ETH", "0.1", "3000"))
			require.NoError(t, err)
			assert.Equal(t, uint64(4), tx.ID)

			require.NoError(t, restored.Reset())
			assert.True(t, restored.Balance().Equal(dec("10000")))
		})
	}
}

func TestLedgerJournalsGenesisOnce(t *testing.T) {
	journal := &memJournal{}
	newLedger(t, "250", WithJournal(journal))
	newLedger(t, "250", WithJournal(journal))

	require.Len(t, journal.events, 1)
	assert.Equal(t, domain.LedgerEventGenesis, journal.events[0].Kind)
	assert.True(t, journal.events[0].Balance.Equal(dec("250")))
}

func TestLedgerFailsWhenGenesisCannotBeJournaled(t *testing.T) {
	_, err := New(dec("100"), zap.NewNop(), WithJournal(&memJournal{fail: true}))
	assert.Error(t, err)
}

func TestLedgerJournalFailureLeavesStateUnchanged(t *testing.T) {
	journal := &memJournal{}
	l := newLedger(t, "10000", WithJournal(journal))
	_, err := l.AppendAndApply(buy("BTC", "0.1", "50000"))
	require.NoError(t, err)

	journal.fail = true
	before := l.Snapshot()

	_, err = l.AppendAndApply(buy("BTC", "0.1", "50000"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransportUnavailable))
	assert.Equal(t, before, l.Snapshot())
	assert.Len(t, l.History(), 1)

	err = l.Reset()
	require.Error(t, err)
	assert.Equal(t, before, l.Snapshot())

	journal.fail = false
	tx, err := l.AppendAndApply(buy("BTC", "0.1", "50000"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), tx.ID)
}

func TestLedgerRejectsCorruptJournal(t *testing.T) {
	genesis := domain.LedgerEvent{Kind: domain.LedgerEventGenesis, Balance: dec("100")}
	trade := domain.LedgerEvent{
		Kind: domain.LedgerEventTrade,
		Transaction: &domain.Transaction{
			ID: 1, Asset: "BTC", Quantity: dec("1"), UnitPrice: dec("50000"), Total: dec("50000"),
			Type: domain.TradeTypeBuy,
		},
	}
	unbounded := domain.LedgerEvent{
		Kind: domain.LedgerEventTrade,
		Transaction: &domain.Transaction{
			ID: 1, Asset: "BTC", Quantity: dec("1e-2147483647"), UnitPrice: dec("1"), Total: dec("1e-2147483647"),
			Type: domain.TradeTypeBuy,
		},
	}

	tests := []struct {
		name   string
		events []domain.LedgerEvent
	}{
		{name: "overdrawn trade", events: []domain.LedgerEvent{genesis, trade}},
		{name: "missing genesis", events: []domain.LedgerEvent{{Kind: domain.LedgerEventReset, Balance: dec("100"), NextID: 1}}},
		{name: "duplicate genesis", events: []domain.LedgerEvent{genesis, genesis}},
		{name: "negative genesis", events: []domain.LedgerEvent{{Kind: domain.LedgerEventGenesis, Balance: dec("-1")}}},
		{name: "unbounded quantity", events: []domain.LedgerEvent{genesis, unbounded}},
		{name: "unknown kind", events: []domain.LedgerEvent{genesis, {Kind: "other"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(dec("100"), zap.NewNop(), WithJournal(&memJournal{events: tt.events}))
			assert.Error(t, err)
		})
	}
}

func TestNewRejectsNegativeBalance(t *testing.T) {
	_, err := New(dec("-1"), nil)
	assert.Error(t, err)
}
