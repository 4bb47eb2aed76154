package pricer

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/cryptosim/internal/domain"
	"github.com/vadiminshakov/cryptosim/pkg/retrier"
)

const (
	// DefaultKrakenURL is the Kraken spot websocket v2 endpoint.
	DefaultKrakenURL = "wss://ws.kraken.com/v2"

	krakenReadTimeout  = 60 * time.Second
	krakenWriteTimeout = 10 * time.Second
)

type krakenSubscribe struct {
	Method string                `json:"method"`
	Params krakenSubscribeParams `json:"params"`
}

type krakenSubscribeParams struct {
	Channel string   `json:"channel"`
	Symbol  []string `json:"symbol"`
}

type krakenMessage struct {
	Channel string         `json:"channel"`
	Type    string         `json:"type"`
	Data    []krakenTicker `json:"data"`
	Method  string         `json:"method"`
	Success *bool          `json:"success"`
	Error   string         `json:"error"`
}

type krakenTicker struct {
	Symbol string          `json:"symbol"`
	Last   decimal.Decimal `json:"last"`
}

// KrakenStream subscribes to the Kraken v2 ticker channel and ingests every last-trade price.
// Disconnects are retried forever with exponential backoff; the sink keeps its last quotes meanwhile.
type KrakenStream struct {
	url       string
	pairs     []string
	sink      Sink
	dialer    *websocket.Dialer
	backoff   []retrier.Option
	recorder  statusRecorder
	logger    *zap.Logger
	now       func() time.Time
	connected atomic.Bool
}

// KrakenOption configures a KrakenStream.
type KrakenOption func(*KrakenStream)

// WithKrakenRecorder attaches upstream metrics.
func WithKrakenRecorder(r statusRecorder) KrakenOption {
	return func(k *KrakenStream) {
		if r != nil {
			k.recorder = r
		}
	}
}

// WithReconnectBackoff overrides the reconnect delay schedule.
func WithReconnectBackoff(opts ...retrier.Option) KrakenOption {
	return func(k *KrakenStream) {
		k.backoff = opts
	}
}

// NewKrakenStream creates a stream for assets quoted in quote ("BTC" + "USD" -> "BTC/USD").
func NewKrakenStream(url string, assets []string, quote string, sink Sink, logger *zap.Logger, opts ...KrakenOption) *KrakenStream {
	if url == "" {
		url = DefaultKrakenURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pairs := make([]string, 0, len(assets))
	for _, a := range assets {
		pairs = append(pairs, domain.PairSymbol(a, quote))
	}
	k := &KrakenStream{
		url:   url,
		pairs: pairs,
		sink:  sink,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
		backoff: []retrier.Option{
			retrier.WithInitialInterval(time.Second),
			retrier.WithMaxInterval(time.Minute),
		},
		recorder: nopRecorder{},
		logger:   logger.With(zap.String("source", "kraken")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *KrakenStream) Name() string { return "kraken" }

// Connected reports whether a subscribed session is currently open.
func (k *KrakenStream) Connected() bool { return k.connected.Load() }

// Run keeps a session open until ctx is done.
func (k *KrakenStream) Run(ctx context.Context) error {
	backoff := retrier.NewBackoff(k.backoff...)
	for {
		err := k.session(ctx, backoff)
		k.setConnected(false)
		if ctx.Err() != nil {
			k.logger.Info("kraken stream stopped")
			return nil
		}
		k.recorder.UpstreamFailed(k.Name())
		delay := backoff.Next()
		k.logger.Warn("kraken stream disconnected, reconnecting",
			zap.Error(err),
			zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			k.logger.Info("kraken stream stopped")
			return nil
		case <-timer.C:
		}
	}
}

func (k *KrakenStream) session(ctx context.Context, backoff *retrier.Backoff) error {
	conn, _, err := k.dialer.DialContext(ctx, k.url, nil)
	if err != nil {
		return errors.Wrap(err, "dial kraken")
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	sub := krakenSubscribe{
		Method: "subscribe",
		Params: krakenSubscribeParams{Channel: "ticker", Symbol: k.pairs},
	}
	_ = conn.SetWriteDeadline(time.Now().Add(krakenWriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		return errors.Wrap(err, "send kraken subscribe")
	}

	k.logger.Info("kraken stream connected", zap.Strings("pairs", k.pairs))
	k.setConnected(true)
	backoff.Reset()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(krakenReadTimeout))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read kraken message")
		}
		k.handle(payload)
	}
}

func (k *KrakenStream) handle(payload []byte) {
	var msg krakenMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		k.logger.Debug("skip undecodable kraken message", zap.Error(err))
		return
	}

	if msg.Method == "subscribe" && msg.Success != nil && !*msg.Success {
		k.logger.Warn("kraken subscription rejected", zap.String("error", msg.Error))
		return
	}
	if msg.Channel != "ticker" {
		return
	}

	ts := k.now()
	for _, t := range msg.Data {
		if t.Symbol == "" {
			continue
		}
		k.sink.Ingest(t.Symbol, t.Last, ts)
	}
}

func (k *KrakenStream) setConnected(up bool) {
	if k.connected.Swap(up) != up {
		k.recorder.UpstreamConnected(k.Name(), up)
	}
}
