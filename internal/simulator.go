package internal

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/cryptosim/config"
	"github.com/vadiminshakov/cryptosim/internal/events"
	"github.com/vadiminshakov/cryptosim/internal/metrics"
	"github.com/vadiminshakov/cryptosim/internal/services/gateway"
	"github.com/vadiminshakov/cryptosim/internal/services/ledger"
	"github.com/vadiminshakov/cryptosim/internal/services/pricefeed"
	"github.com/vadiminshakov/cryptosim/internal/services/pricer"
	"github.com/vadiminshakov/cryptosim/internal/services/trader"
	"github.com/vadiminshakov/cryptosim/internal/services/valuation"
	"github.com/vadiminshakov/cryptosim/internal/storage/quotecache"
	"github.com/vadiminshakov/cryptosim/internal/storage/txlog"
	"github.com/vadiminshakov/cryptosim/internal/web"
)

// Simulator wires the price feed, the ledger and the HTTP surface of one simulated exchange.
type Simulator struct {
	Config config.Config

	logger  *zap.Logger
	metrics *metrics.Registry
	feed    *pricefeed.Feed
	ledger  *ledger.Ledger
	gateway *gateway.Gateway
	server  *web.Server
	source  pricer.Runner
	journal *txlog.WALStore
	redis   *redis.Client
	mirror  *quotecache.Mirror
}

// NewSimulator builds every component described by conf. Nothing runs until Run is called.
func NewSimulator(conf config.Config, logger *zap.Logger) (*Simulator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Simulator{Config: conf, logger: logger, metrics: metrics.NewRegistry()}

	broadcaster := events.NewQuoteBroadcaster(conf.SubscriberBuffer, s.metrics)
	s.feed = pricefeed.New(broadcaster, logger.Named("feed"),
		pricefeed.WithRecorder(s.metrics),
		pricefeed.WithQuoteCurrency(conf.Feed.Quote))

	var ledgerOpts []ledger.Option
	if conf.DataDir != "" {
		journal, err := txlog.NewWALStore(conf.DataDir)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open ledger journal")
		}
		s.journal = journal
		ledgerOpts = append(ledgerOpts, ledger.WithJournal(journal))
	}

	l, err := ledger.New(conf.InitialBalance, logger.Named("ledger"), ledgerOpts...)
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "failed to restore ledger")
	}
	s.ledger = l

	executor := trader.NewExecutor(s.feed, l, logger.Named("executor"),
		trader.WithRecorder(s.metrics),
		trader.WithQuoteCurrency(conf.Feed.Quote))
	s.gateway = gateway.New(s.feed, l, executor, valuation.NewService(l, s.feed))

	source, err := newSource(conf.Feed, s.feed, s.metrics, logger.Named("source"))
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "failed to create price source")
	}
	s.source = source

	if conf.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
		s.mirror = quotecache.NewMirror(s.redis, conf.Redis.Prefix, conf.Redis.Channel, logger.Named("quotecache"))
	}

	serverOpts := []web.Option{
		web.WithMetrics(s.metrics),
		web.WithOrderRateLimit(conf.OrdersPerSecond),
	}
	if source != nil {
		serverOpts = append(serverOpts, web.WithFeedStatus(source))
	}
	s.server = web.NewServer(conf.ListenAddr, s.gateway, logger.Named("http"), serverOpts...)

	return s, nil
}

// Gateway returns the client surface.
func (s *Simulator) Gateway() *gateway.Gateway { return s.gateway }

// Feed returns the price feed, e.g. to inject quotes when no upstream source is configured.
func (s *Simulator) Feed() *pricefeed.Feed { return s.feed }

// Handler returns the HTTP handler without starting a listener.
func (s *Simulator) Handler() http.Handler { return s.server.Handler() }

// Run serves HTTP and keeps the upstream source and the Redis mirror running until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if s.mirror != nil {
		warmed, err := s.mirror.Warm(ctx, s.Config.Feed.Symbols, s.feed)
		if err != nil {
			s.logger.Warn("failed to warm prices from redis", zap.Error(err))
		} else {
			s.logger.Info("warmed prices from redis", zap.Int("quotes", warmed))
		}

		sub := s.feed.Subscribe()
		g.Go(func() error {
			defer sub.Close()
			if err := s.mirror.Follow(ctx, sub.C()); err != nil && ctx.Err() == nil {
				return errors.Wrap(err, "redis mirror stopped")
			}
			return nil
		})
	}

	if s.source != nil {
		g.Go(func() error {
			return s.source.Run(ctx)
		})
	} else {
		s.logger.Warn("no upstream price source configured, prices only change through the mirror")
	}

	g.Go(func() error {
		return s.server.Start(ctx)
	})

	s.logger.Info("simulator started",
		zap.String("addr", s.Config.ListenAddr),
		zap.String("source", s.Config.Feed.Source),
		zap.Strings("symbols", s.Config.Feed.Symbols),
		zap.String("initial_balance", s.Config.InitialBalance.String()))

	return g.Wait()
}

// Close releases the journal and the Redis connection.
func (s *Simulator) Close() error {
	var err error
	if s.journal != nil {
		err = multierr.Append(err, errors.Wrap(s.journal.Close(), "close journal"))
	}
	if s.redis != nil {
		err = multierr.Append(err, errors.Wrap(s.redis.Close(), "close redis"))
	}
	return err
}
