package pricer

import (
	"context"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// BinanceSource polls the public Binance ticker price endpoint.
type BinanceSource struct {
	client  *binance.Client
	symbols map[string]string
	now     func() time.Time
}

// NewBinanceSource prices assets against quote (e.g. BTC + USDT -> BTCUSDT).
func NewBinanceSource(client *binance.Client, assets []string, quote string) *BinanceSource {
	quote = strings.ToUpper(quote)
	return &BinanceSource{
		client: client,
		symbols: symbolIndex(assets, func(a string) string {
			return strings.ToUpper(a) + quote
		}),
		now: time.Now,
	}
}

func (s *BinanceSource) Name() string { return "binance" }

// Fetch returns prices for every configured asset Binance knows about.
func (s *BinanceSource) Fetch(ctx context.Context) ([]Tick, error) {
	prices, err := s.client.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "binance list prices")
	}

	ts := s.now()
	ticks := make([]Tick, 0, len(s.symbols))
	for _, p := range prices {
		asset, ok := s.symbols[p.Symbol]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, errors.Wrapf(err, "binance price for %s", p.Symbol)
		}
		ticks = append(ticks, Tick{Asset: asset, Price: price, ObservedAt: ts})
	}
	if len(ticks) == 0 {
		return nil, errors.New("binance API returned no prices for configured symbols")
	}
	return ticks, nil
}
