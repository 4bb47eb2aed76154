package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEventKind discriminates journal records.
type LedgerEventKind string

const (
	// LedgerEventGenesis is the first record of every journal and carries the starting balance.
	LedgerEventGenesis LedgerEventKind = "genesis"
	LedgerEventTrade   LedgerEventKind = "trade"
	LedgerEventReset   LedgerEventKind = "reset"
)

// LedgerEvent is one durable journal record. Replaying all events in order rebuilds the ledger.
type LedgerEvent struct {
	Kind        LedgerEventKind `json:"kind"`
	Transaction *Transaction    `json:"transaction,omitempty"`
	// Balance the account starts from (genesis) or is restored to (reset).
	Balance decimal.Decimal `json:"balance,omitempty"`
	// NextID first transaction id available after a reset.
	NextID    uint64    `json:"next_id,omitempty"`
	Timestamp time.Time `json:"ts"`
}
