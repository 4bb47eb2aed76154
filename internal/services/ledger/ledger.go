// Package ledger owns the account balance, holdings and the append-only transaction log.
// Every mutation goes through one critical section: check, journal, apply.
package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/cryptosim/internal/domain"
)

// Journal durably records ledger events. Append must not return before the event is persisted.
type Journal interface {
	Append(event domain.LedgerEvent) error
	Replay(fn func(domain.LedgerEvent) error) error
}

// Snapshot consistent point-in-time view of balance and holdings.
type Snapshot struct {
	Balance  decimal.Decimal
	Holdings map[string]decimal.Decimal
}

// Ledger is the single authority over balance, holdings and history.
type Ledger struct {
	mu       sync.RWMutex
	initial  decimal.Decimal
	balance  decimal.Decimal
	holdings map[string]decimal.Decimal
	history  []domain.Transaction
	nextID   uint64
	journal  Journal
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithJournal makes every mutation durable and replays the journal on construction.
func WithJournal(j Journal) Option {
	return func(l *Ledger) {
		l.journal = j
	}
}

// WithClock overrides the transaction timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New creates a ledger holding initialBalance in cash and nothing else.
// When a journal is configured its events are replayed before New returns.
func New(initialBalance decimal.Decimal, logger *zap.Logger, opts ...Option) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if initialBalance.IsNegative() {
		return nil, errors.Errorf("initial balance must not be negative, got %s", initialBalance)
	}

	l := &Ledger{
		initial:  initialBalance,
		balance:  initialBalance,
		holdings: make(map[string]decimal.Decimal),
		nextID:   1,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.journal != nil {
		if err := l.restore(); err != nil {
			return nil, errors.Wrap(err, "restore ledger from journal")
		}
	}

	logger.Info("ledger init",
		zap.String("balance", l.balance.String()),
		zap.Int("holdings", len(l.holdings)),
		zap.Int("transactions", len(l.history)),
		zap.Uint64("next_id", l.nextID))
	return l, nil
}

// restore rebuilds state from the journal. The genesis record, not the configured balance,
// decides the starting balance. An empty journal gets a genesis record for the configured balance.
func (l *Ledger) restore() error {
	var started bool
	err := l.journal.Replay(func(event domain.LedgerEvent) error {
		if !started && event.Kind != domain.LedgerEventGenesis {
			return errors.Errorf("journal starts with a %q record instead of genesis", event.Kind)
		}

		switch event.Kind {
		case domain.LedgerEventGenesis:
			if started {
				return errors.New("duplicate genesis record")
			}
			if event.Balance.IsNegative() || !domain.TotalInBounds(event.Balance) {
				return errors.Errorf("invalid genesis balance %s", event.Balance)
			}
			if !event.Balance.Equal(l.initial) {
				l.logger.Warn("configured initial balance differs from journal, keeping journaled balance",
					zap.String("configured", l.initial.String()),
					zap.String("journaled", event.Balance.String()))
			}
			started = true
			l.initial = event.Balance
			l.clear(event.Balance)
		case domain.LedgerEventTrade:
			if event.Transaction == nil {
				return errors.New("trade event without transaction")
			}
			tx := *event.Transaction
			if tx.ID < l.nextID {
				return errors.Errorf("transaction id %d is not increasing (next %d)", tx.ID, l.nextID)
			}
			delta := deltaOf(tx)
			if err := validateDelta(delta); err != nil {
				return errors.Wrapf(err, "replay transaction %d", tx.ID)
			}
			balance, qty, err := l.check(delta)
			if err != nil {
				return errors.Wrapf(err, "replay transaction %d", tx.ID)
			}
			l.commit(tx, balance, qty)
		case domain.LedgerEventReset:
			l.clear(event.Balance)
			if event.NextID > l.nextID {
				l.nextID = event.NextID
			}
		default:
			return errors.Errorf("unknown ledger event kind %q", event.Kind)
		}
		return nil
	})
	if err != nil || started {
		return err
	}

	genesis := domain.LedgerEvent{Kind: domain.LedgerEventGenesis, Balance: l.initial, Timestamp: l.now()}
	return errors.Wrap(l.journal.Append(genesis), "journal genesis record")
}

// AppendAndApply validates delta against current state and, when it keeps balance and the holding
// non-negative, journals and applies it as one transaction. Nothing changes on error.
func (l *Ledger) AppendAndApply(delta domain.Delta) (domain.Transaction, error) {
	if err := validateDelta(delta); err != nil {
		return domain.Transaction{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, qty, err := l.check(delta)
	if err != nil {
		return domain.Transaction{}, err
	}

	tx := domain.Transaction{
		ID:        l.nextID,
		Asset:     delta.Asset,
		Quantity:  delta.QuantityChange.Abs(),
		UnitPrice: delta.UnitPrice,
		Total:     delta.BalanceChange.Abs(),
		Type:      delta.Type,
		Timestamp: l.now(),
	}

	if l.journal != nil {
		event := domain.LedgerEvent{Kind: domain.LedgerEventTrade, Transaction: &tx, Timestamp: tx.Timestamp}
		if err := l.journal.Append(event); err != nil {
			l.logger.Error("journal append failed", zap.Uint64("id", tx.ID), zap.Error(err))
			return domain.Transaction{}, domain.NewError(domain.KindTransportUnavailable,
				"ledger journal unavailable: %v", err)
		}
	}

	l.commit(tx, balance, qty)
	l.logger.Debug("transaction applied",
		zap.Uint64("id", tx.ID),
		zap.String("type", string(tx.Type)),
		zap.String("asset", tx.Asset),
		zap.String("quantity", tx.Quantity.String()),
		zap.String("total", tx.Total.String()),
		zap.String("balance", l.balance.String()))
	return tx, nil
}

// check returns the post-delta balance and holding quantity or a domain error.
func (l *Ledger) check(delta domain.Delta) (decimal.Decimal, decimal.Decimal, error) {
	balance := l.balance.Add(delta.BalanceChange)
	if balance.IsNegative() {
		return decimal.Zero, decimal.Zero, domain.NewError(domain.KindInsufficientFunds,
			"Insufficient funds. Your balance is $%s", l.balance.String())
	}
	qty := l.holdings[delta.Asset].Add(delta.QuantityChange)
	if qty.IsNegative() {
		return decimal.Zero, decimal.Zero, domain.NewError(domain.KindInsufficientHoldings,
			"Insufficient holdings of %s", delta.Asset)
	}
	return balance, qty, nil
}

func (l *Ledger) commit(tx domain.Transaction, balance, qty decimal.Decimal) {
	l.balance = balance
	if qty.IsZero() {
		delete(l.holdings, tx.Asset)
	} else {
		l.holdings[tx.Asset] = qty
	}
	l.history = append(l.history, tx)
	l.nextID = tx.ID + 1
}

func (l *Ledger) clear(balance decimal.Decimal) {
	l.balance = balance
	l.holdings = make(map[string]decimal.Decimal)
	l.history = nil
}

// Snapshot returns balance and holdings read under one lock. Zero holdings are never present.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	holdings := make(map[string]decimal.Decimal, len(l.holdings))
	for k, v := range l.holdings {
		holdings[k] = v
	}
	return Snapshot{Balance: l.balance, Holdings: holdings}
}

// Balance returns the current cash balance.
func (l *Ledger) Balance() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance
}

// Holdings returns holdings sorted by asset.
func (l *Ledger) Holdings() []domain.Holding {
	snap := l.Snapshot()
	out := make([]domain.Holding, 0, len(snap.Holdings))
	for asset, qty := range snap.Holdings {
		out = append(out, domain.Holding{Asset: asset, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}

// History returns all transactions since the last reset, oldest first.
func (l *Ledger) History() []domain.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Transaction, len(l.history))
	copy(out, l.history)
	return out
}

// InitialBalance returns the balance restored by Reset.
func (l *Ledger) InitialBalance() decimal.Decimal {
	return l.initial
}

// Reset restores the initial balance and clears holdings and history.
// Transaction ids keep increasing afterwards.
func (l *Ledger) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.journal != nil {
		event := domain.LedgerEvent{
			Kind:      domain.LedgerEventReset,
			Balance:   l.initial,
			NextID:    l.nextID,
			Timestamp: l.now(),
		}
		if err := l.journal.Append(event); err != nil {
			l.logger.Error("journal reset failed", zap.Error(err))
			return domain.NewError(domain.KindTransportUnavailable, "ledger journal unavailable: %v", err)
		}
	}

	l.clear(l.initial)
	l.logger.Info("ledger reset", zap.String("balance", l.initial.String()), zap.Uint64("next_id", l.nextID))
	return nil
}

func validateDelta(d domain.Delta) error {
	if d.Asset == "" {
		return domain.NewError(domain.KindUnknownAsset, "asset is required")
	}
	if d.UnitPrice.IsNegative() {
		return errors.Errorf("negative unit price %s", d.UnitPrice)
	}
	if d.QuantityChange.IsZero() {
		return domain.NewError(domain.KindInvalidQuantity, "Amount must be greater than 0")
	}
	if !domain.InBounds(d.QuantityChange) {
		return domain.NewError(domain.KindInvalidQuantity, "Amount %s is out of range", d.QuantityChange)
	}
	if !domain.InBounds(d.UnitPrice) || !domain.TotalInBounds(d.BalanceChange) {
		return errors.Errorf("price %s or total %s out of range", d.UnitPrice, d.BalanceChange)
	}
	switch d.Type {
	case domain.TradeTypeBuy:
		if d.QuantityChange.IsNegative() || d.BalanceChange.IsPositive() {
			return errors.Errorf("buy delta must debit cash and credit %s", d.Asset)
		}
	case domain.TradeTypeSell:
		if d.QuantityChange.IsPositive() || d.BalanceChange.IsNegative() {
			return errors.Errorf("sell delta must credit cash and debit %s", d.Asset)
		}
	default:
		return errors.Errorf("unknown trade type %q", d.Type)
	}
	return nil
}

func deltaOf(tx domain.Transaction) domain.Delta {
	d := domain.Delta{Type: tx.Type, Asset: tx.Asset, UnitPrice: tx.UnitPrice}
	if tx.Type == domain.TradeTypeBuy {
		d.BalanceChange = tx.Total.Neg()
		d.QuantityChange = tx.Quantity
	} else {
		d.BalanceChange = tx.Total
		d.QuantityChange = tx.Quantity.Neg()
	}
	return d
}
