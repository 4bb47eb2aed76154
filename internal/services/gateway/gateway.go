// Package gateway is the transport-agnostic surface clients use to read state, trade and stream prices.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/cryptosim/internal/domain"
	"github.com/vadiminshakov/cryptosim/internal/services/pricefeed"
	"github.com/vadiminshakov/cryptosim/internal/services/valuation"
)

type feed interface {
	Latest(asset string) (domain.PriceQuote, bool)
	LatestAll() map[string]domain.PriceQuote
	Subscribe() *pricefeed.Subscription
}

type account interface {
	Balance() decimal.Decimal
	Holdings() []domain.Holding
	History() []domain.Transaction
	InitialBalance() decimal.Decimal
	Reset() error
}

type executor interface {
	Buy(ctx context.Context, asset string, quantity decimal.Decimal) (domain.Transaction, error)
	Sell(ctx context.Context, asset string, quantity decimal.Decimal) (domain.Transaction, error)
}

type valuer interface {
	Holdings() []valuation.HoldingValue
	Portfolio() valuation.Portfolio
	ProfitLoss() map[string]decimal.Decimal
}

// Gateway forwards every call to the component that owns the data. It keeps no state.
type Gateway struct {
	feed     feed
	account  account
	executor executor
	valuer   valuer
}

// New creates a Gateway.
func New(f feed, a account, e executor, v valuer) *Gateway {
	return &Gateway{feed: f, account: a, executor: e, valuer: v}
}

func (g *Gateway) Balance() decimal.Decimal { return g.account.Balance() }

func (g *Gateway) Holdings() []domain.Holding { return g.account.Holdings() }

func (g *Gateway) HoldingValues() []valuation.HoldingValue { return g.valuer.Holdings() }

func (g *Gateway) Portfolio() valuation.Portfolio { return g.valuer.Portfolio() }

func (g *Gateway) Transactions() []domain.Transaction { return g.account.History() }

func (g *Gateway) ProfitLoss() map[string]decimal.Decimal { return g.valuer.ProfitLoss() }

func (g *Gateway) Prices() map[string]domain.PriceQuote { return g.feed.LatestAll() }

// Price returns the latest quote for one asset.
func (g *Gateway) Price(asset string) (domain.PriceQuote, bool) { return g.feed.Latest(asset) }

// SubscribePrices attaches a push subscriber. The caller must Close the subscription.
func (g *Gateway) SubscribePrices() *pricefeed.Subscription { return g.feed.Subscribe() }

func (g *Gateway) Buy(ctx context.Context, asset string, quantity decimal.Decimal) (domain.Transaction, error) {
	return g.executor.Buy(ctx, asset, quantity)
}

func (g *Gateway) Sell(ctx context.Context, asset string, quantity decimal.Decimal) (domain.Transaction, error) {
	return g.executor.Sell(ctx, asset, quantity)
}

// Reset restores the starting account and returns the restored balance.
func (g *Gateway) Reset() (decimal.Decimal, error) {
	if err := g.account.Reset(); err != nil {
		return decimal.Zero, err
	}
	return g.account.InitialBalance(), nil
}
