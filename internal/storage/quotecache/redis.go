// Package quotecache mirrors the price feed into Redis so other processes can read the latest
// quotes, and warms the feed from that mirror on startup.
package quotecache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/cryptosim/internal/domain"
)

const (
	defaultKeyPrefix = "cryptosim:latest:"
	defaultChannel   = "cryptosim:prices"
	defaultTTL       = 10 * time.Minute
)

// Sink receives warmed quotes.
type Sink interface {
	Ingest(asset string, price decimal.Decimal, ts time.Time) bool
}

// Mirror writes quotes to Redis as "latest" keys and publishes them on a channel.
type Mirror struct {
	client    *redis.Client
	keyPrefix string
	channel   string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewMirror creates a Mirror; empty prefix or channel fall back to defaults.
func NewMirror(client *redis.Client, keyPrefix, channel string, logger *zap.Logger) *Mirror {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	if channel == "" {
		channel = defaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{
		client:    client,
		keyPrefix: keyPrefix,
		channel:   channel,
		ttl:       defaultTTL,
		logger:    logger,
	}
}

func (m *Mirror) key(asset string) string {
	return fmt.Sprintf("%s%s", m.keyPrefix, asset)
}

// Store writes q as the latest quote and publishes it.
func (m *Mirror) Store(ctx context.Context, q domain.PriceQuote) error {
	payload, err := json.Marshal(q)
	if err != nil {
		return errors.Wrap(err, "marshal quote")
	}
	if err := m.client.Set(ctx, m.key(q.Asset), string(payload), m.ttl).Err(); err != nil {
		return errors.Wrapf(err, "set latest quote %s", q.Asset)
	}
	if err := m.client.Publish(ctx, m.channel, string(payload)).Err(); err != nil {
		return errors.Wrapf(err, "publish quote %s", q.Asset)
	}
	return nil
}

// Latest reads the mirrored quote of asset; ok is false when Redis has none.
func (m *Mirror) Latest(ctx context.Context, asset string) (domain.PriceQuote, bool, error) {
	raw, err := m.client.Get(ctx, m.key(asset)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PriceQuote{}, false, nil
		}
		return domain.PriceQuote{}, false, errors.Wrapf(err, "get latest quote %s", asset)
	}
	var q domain.PriceQuote
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return domain.PriceQuote{}, false, errors.Wrapf(err, "decode latest quote %s", asset)
	}
	return q, true, nil
}

// Warm ingests mirrored quotes of assets into sink and returns how many were applied.
// The sink drops anything older than what it already holds.
func (m *Mirror) Warm(ctx context.Context, assets []string, sink Sink) (int, error) {
	applied := 0
	for _, asset := range assets {
		q, ok, err := m.Latest(ctx, asset)
		if err != nil {
			return applied, err
		}
		if ok && sink.Ingest(q.Asset, q.Price, q.ObservedAt) {
			applied++
		}
	}
	return applied, nil
}

// Follow stores every quote received on quotes until it is closed or ctx is done.
// Redis errors are logged and do not stop the loop.
func (m *Mirror) Follow(ctx context.Context, quotes <-chan domain.PriceQuote) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case q, ok := <-quotes:
			if !ok {
				return nil
			}
			if err := m.Store(ctx, q); err != nil && ctx.Err() == nil {
				m.logger.Warn("mirror quote to redis", zap.String("asset", q.Asset), zap.Error(err))
			}
		}
	}
}
