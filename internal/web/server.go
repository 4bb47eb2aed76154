package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vadiminshakov/cryptosim/internal/domain"
	"github.com/vadiminshakov/cryptosim/internal/metrics"
	"github.com/vadiminshakov/cryptosim/internal/services/pricefeed"
	"github.com/vadiminshakov/cryptosim/internal/services/valuation"
)

const (
	heartbeatInterval = 30 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Gateway is the application surface served over HTTP.
type Gateway interface {
	Balance() decimal.Decimal
	Holdings() []domain.Holding
	HoldingValues() []valuation.HoldingValue
	Portfolio() valuation.Portfolio
	Transactions() []domain.Transaction
	ProfitLoss() map[string]decimal.Decimal
	Prices() map[string]domain.PriceQuote
	Price(asset string) (domain.PriceQuote, bool)
	SubscribePrices() *pricefeed.Subscription
	Buy(ctx context.Context, asset string, quantity decimal.Decimal) (domain.Transaction, error)
	Sell(ctx context.Context, asset string, quantity decimal.Decimal) (domain.Transaction, error)
	Reset() (decimal.Decimal, error)
}

// FeedStatus reports the upstream price source state for health checks.
type FeedStatus interface {
	Name() string
	Connected() bool
}

// Server exposes the REST API, the price streams, health and metrics endpoints.
type Server struct {
	Addr string

	gw         Gateway
	feedStatus FeedStatus
	metrics    *metrics.Registry
	orderLimit *rate.Limiter
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	heartbeat  time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves /metrics and records request latency.
func WithMetrics(m *metrics.Registry) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithFeedStatus reports the upstream source in /healthz.
func WithFeedStatus(fs FeedStatus) Option {
	return func(s *Server) {
		s.feedStatus = fs
	}
}

// WithOrderRateLimit caps buy and sell requests per second across all clients.
func WithOrderRateLimit(perSecond float64) Option {
	return func(s *Server) {
		if perSecond > 0 {
			s.orderLimit = rate.NewLimiter(rate.Limit(perSecond), int(perSecond)+1)
		}
	}
}

// WithHeartbeat overrides the stream keep-alive interval.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		s.heartbeat = d
	}
}

// NewServer creates a new web server instance.
func NewServer(addr string, gw Gateway, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		Addr:      addr,
		gw:        gw,
		logger:    logger,
		heartbeat: heartbeatInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/balance", s.handleBalance).Methods(http.MethodGet)
	api.HandleFunc("/holdings", s.handleHoldings).Methods(http.MethodGet)
	api.HandleFunc("/holdings/valuation", s.handleHoldingValues).Methods(http.MethodGet)
	api.HandleFunc("/portfolio", s.handlePortfolio).Methods(http.MethodGet)
	api.HandleFunc("/prices", s.handlePrices).Methods(http.MethodGet)
	api.HandleFunc("/prices/stream", s.handlePriceStream).Methods(http.MethodGet)
	api.HandleFunc("/prices/ws", s.handlePriceSocket).Methods(http.MethodGet)
	api.HandleFunc("/prices/{asset}", s.handlePrice).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.handleTransactions).Methods(http.MethodGet)
	api.HandleFunc("/profit-loss", s.handleProfitLoss).Methods(http.MethodGet)
	api.HandleFunc("/buy", s.handleOrder(domain.TradeTypeBuy)).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/sell", s.handleOrder(domain.TradeTypeSell)).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost, http.MethodOptions)

	return r
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.feedStatus != nil {
		resp.Feed = &feedHealth{Source: s.feedStatus.Name(), Connected: s.feedStatus.Connected()}
		if !resp.Feed.Connected {
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
