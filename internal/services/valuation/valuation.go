// Package valuation derives read-only portfolio views from the ledger and the latest quotes.
package valuation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/cryptosim/internal/domain"
	"github.com/vadiminshakov/cryptosim/internal/services/ledger"
)

type quoteReader interface {
	Latest(asset string) (domain.PriceQuote, bool)
}

type ledgerReader interface {
	Snapshot() ledger.Snapshot
	History() []domain.Transaction
}

// HoldingValue is a holding joined with its latest quote.
type HoldingValue struct {
	Asset    string
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Value    decimal.Decimal
	// Priced is false when no quote was ever observed; Value is then zero.
	Priced bool
}

// Portfolio summarizes cash and market value.
type Portfolio struct {
	Balance       decimal.Decimal
	HoldingsValue decimal.Decimal
	Total         decimal.Decimal
}

// Service computes valuations on demand; it keeps no state of its own.
type Service struct {
	ledger ledgerReader
	quotes quoteReader
}

// NewService creates a valuation service.
func NewService(l ledgerReader, quotes quoteReader) *Service {
	return &Service{ledger: l, quotes: quotes}
}

// Holdings values every holding at its latest price, sorted by asset.
func (s *Service) Holdings() []HoldingValue {
	return s.value(s.ledger.Snapshot())
}

func (s *Service) value(snap ledger.Snapshot) []HoldingValue {
	out := make([]HoldingValue, 0, len(snap.Holdings))
	for asset, qty := range snap.Holdings {
		hv := HoldingValue{Asset: asset, Quantity: qty}
		if q, ok := s.quotes.Latest(asset); ok {
			hv.Price = q.Price
			hv.Value = qty.Mul(q.Price)
			hv.Priced = true
		}
		out = append(out, hv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}

// Portfolio returns balance plus the market value of all holdings, from one ledger snapshot.
// Holdings without a quote contribute zero.
func (s *Service) Portfolio() Portfolio {
	snap := s.ledger.Snapshot()
	holdings := decimal.Zero
	for _, hv := range s.value(snap) {
		holdings = holdings.Add(hv.Value)
	}
	return Portfolio{
		Balance:       snap.Balance,
		HoldingsValue: holdings,
		Total:         snap.Balance.Add(holdings),
	}
}

// PortfolioValue returns the total of Portfolio.
func (s *Service) PortfolioValue() decimal.Decimal {
	return s.Portfolio().Total
}

// ProfitLoss returns realized plus unrealized profit per asset ever bought since the last reset.
// The cost basis is the weighted average of buys; unrealized profit is zero without a quote.
func (s *Service) ProfitLoss() map[string]decimal.Decimal {
	bases := make(map[string]*domain.CostBasis)
	for _, tx := range s.ledger.History() {
		cb, ok := bases[tx.Asset]
		if !ok {
			if tx.Type != domain.TradeTypeBuy {
				continue
			}
			cb = &domain.CostBasis{}
			bases[tx.Asset] = cb
		}
		cb.Apply(tx)
	}

	out := make(map[string]decimal.Decimal, len(bases))
	for asset, cb := range bases {
		pl := cb.Realized
		if q, ok := s.quotes.Latest(asset); ok {
			pl = pl.Add(cb.Unrealized(q.Price))
		}
		out[asset] = pl
	}
	return out
}
