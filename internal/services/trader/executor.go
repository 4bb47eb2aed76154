package trader

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/cryptosim/internal/domain"
)

// QuoteReader provides the latest known price of an asset.
type QuoteReader interface {
	Latest(asset string) (domain.PriceQuote, bool)
}

// Ledger applies validated deltas atomically.
type Ledger interface {
	AppendAndApply(delta domain.Delta) (domain.Transaction, error)
}

type orderRecorder interface {
	OrderProcessed(tradeType, result string)
}

// Executor fills market orders in full at the latest known price, or not at all.
type Executor struct {
	quotes   QuoteReader
	ledger   Ledger
	quote    string
	recorder orderRecorder
	logger   *zap.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithRecorder attaches order metrics.
func WithRecorder(r orderRecorder) Option {
	return func(e *Executor) {
		e.recorder = r
	}
}

// WithQuoteCurrency sets the currency stripped from "SYM/<quote>" order symbols (default USD).
func WithQuoteCurrency(quote string) Option {
	return func(e *Executor) {
		e.quote = quote
	}
}

// NewExecutor creates an Executor reading prices from quotes and mutating ledger.
func NewExecutor(quotes QuoteReader, ledger Ledger, logger *zap.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		quotes: quotes,
		ledger: ledger,
		quote:  domain.DefaultQuoteCurrency,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Buy purchases quantity of asset.
func (e *Executor) Buy(ctx context.Context, asset string, quantity decimal.Decimal) (domain.Transaction, error) {
	return e.Execute(ctx, domain.TradeTypeBuy, asset, quantity)
}

// Sell sells quantity of asset.
func (e *Executor) Sell(ctx context.Context, asset string, quantity decimal.Decimal) (domain.Transaction, error) {
	return e.Execute(ctx, domain.TradeTypeSell, asset, quantity)
}

// Execute validates the order, prices it at the latest quote and submits it to the ledger.
// Balance and holding checks belong to the ledger; their errors are returned unchanged.
// ctx is only consulted before the order is submitted.
func (e *Executor) Execute(ctx context.Context, kind domain.TradeType, asset string, quantity decimal.Decimal) (domain.Transaction, error) {
	tx, err := e.execute(ctx, kind, asset, quantity)
	e.record(kind, err)
	return tx, err
}

func (e *Executor) execute(ctx context.Context, kind domain.TradeType, asset string, quantity decimal.Decimal) (domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Transaction{}, err
	}
	if err := domain.ValidateQuantity(quantity); err != nil {
		return domain.Transaction{}, err
	}

	asset = domain.NormalizeAsset(asset, e.quote)
	q, ok := e.quotes.Latest(asset)
	if !ok {
		return domain.Transaction{}, domain.NewError(domain.KindUnknownAsset, "Cryptocurrency not found: %s", asset)
	}

	delta := domain.NewTradeDelta(kind, q.Asset, quantity, q.Price)
	tx, err := e.ledger.AppendAndApply(delta)
	if err != nil {
		e.logger.Info("order rejected",
			zap.String("type", string(kind)),
			zap.String("asset", q.Asset),
			zap.String("quantity", quantity.String()),
			zap.String("price", q.Price.String()),
			zap.Error(err))
		return domain.Transaction{}, err
	}

	e.logger.Info("order executed",
		zap.Uint64("id", tx.ID),
		zap.String("type", string(tx.Type)),
		zap.String("asset", tx.Asset),
		zap.String("quantity", tx.Quantity.String()),
		zap.String("price", tx.UnitPrice.String()),
		zap.String("total", tx.Total.String()))
	return tx, nil
}

func (e *Executor) record(kind domain.TradeType, err error) {
	if e.recorder == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(domain.KindOf(err))
		if result == "" {
			result = "error"
		}
	}
	e.recorder.OrderProcessed(string(kind), result)
}
