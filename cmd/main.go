// Command cryptosim runs a simulated cryptocurrency exchange: live prices from Kraken, Binance or
// Bybit, a paper trading account and an HTTP API with price streaming.
//
// Usage:
//
//	cryptosim --config config.yaml
//	cryptosim --setup (interactive wizard, writes config.gen.yaml)
//	cryptosim (uses CLI arguments)
//
// Optional environment variables (REST sources only need them for authenticated endpoints):
//
//	BINANCE_API_KEY, BINANCE_API_SECRET
//	BYBIT_API_KEY, BYBIT_API_SECRET
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vadiminshakov/cryptosim/config"
	"github.com/vadiminshakov/cryptosim/internal"
	"github.com/vadiminshakov/cryptosim/internal/setup"
)

func main() {
	conf, opts, err := config.Get(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	if opts.Setup {
		path := opts.ConfigPath
		if path == "" {
			path = setup.DefaultConfigFile
		}
		conf, err = setup.RunTUI(path)
		if err != nil {
			log.Fatal(err)
		}
	}

	logger, err := newLogger(conf.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	sim, err := internal.NewSimulator(conf, logger)
	if err != nil {
		logger.Fatal("failed to create simulator", zap.Error(err))
	}
	defer func() {
		if err := sim.Close(); err != nil {
			logger.Error("failed to close simulator", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sim.Run(ctx); err != nil {
		logger.Error("simulator stopped", zap.Error(err))
		return
	}
	logger.Info("simulator stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
