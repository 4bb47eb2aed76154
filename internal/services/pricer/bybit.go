package pricer

import (
	"context"
	"strings"
	"time"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// BybitSource polls Bybit v5 spot tickers, one request per asset.
type BybitSource struct {
	client  *bybit.Client
	symbols map[string]string
	now     func() time.Time
}

// NewBybitSource prices assets against quote (e.g. BTC + USDT -> BTCUSDT).
func NewBybitSource(client *bybit.Client, assets []string, quote string) *BybitSource {
	quote = strings.ToUpper(quote)
	return &BybitSource{
		client: client,
		symbols: symbolIndex(assets, func(a string) string {
			return strings.ToUpper(a) + quote
		}),
		now: time.Now,
	}
}

func (s *BybitSource) Name() string { return "bybit" }

// Fetch returns prices for the configured assets; a failed symbol is skipped unless all fail.
func (s *BybitSource) Fetch(ctx context.Context) ([]Tick, error) {
	var lastErr error
	ticks := make([]Tick, 0, len(s.symbols))
	for sym, asset := range s.symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		symbol := bybit.SymbolV5(sym)
		result, err := s.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
			Category: bybit.CategoryV5Spot,
			Symbol:   &symbol,
		})
		if err != nil {
			lastErr = errors.Wrapf(err, "bybit tickers %s", sym)
			continue
		}
		if result.Result.Spot == nil || len(result.Result.Spot.List) == 0 {
			lastErr = errors.Errorf("bybit API returned empty prices for %s", sym)
			continue
		}
		price, err := decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
		if err != nil {
			lastErr = errors.Wrapf(err, "bybit price for %s", sym)
			continue
		}
		ticks = append(ticks, Tick{Asset: asset, Price: price, ObservedAt: s.now()})
	}
	if len(ticks) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return ticks, nil
}
