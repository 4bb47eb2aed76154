// Package pricer connects upstream market data sources to the price feed.
// Push sources (Kraken websocket) and pull sources (Binance, Bybit REST) share the Sink contract.
package pricer

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Sink receives observed prices. It is implemented by pricefeed.Feed.
type Sink interface {
	Ingest(asset string, price decimal.Decimal, ts time.Time) bool
}

// Tick is one price observation returned by a pull source.
type Tick struct {
	Asset      string
	Price      decimal.Decimal
	ObservedAt time.Time
}

// Source fetches the current prices of the configured assets.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Tick, error)
}

// Runner is a long-lived upstream connection that feeds a Sink until ctx is done.
type Runner interface {
	Name() string
	Run(ctx context.Context) error
	Connected() bool
}

type statusRecorder interface {
	UpstreamConnected(source string, up bool)
	UpstreamFailed(source string)
}

type nopRecorder struct{}

func (nopRecorder) UpstreamConnected(string, bool) {}
func (nopRecorder) UpstreamFailed(string)          {}

func symbolIndex(assets []string, format func(asset string) string) map[string]string {
	idx := make(map[string]string, len(assets))
	for _, a := range assets {
		idx[format(a)] = a
	}
	return idx
}
