package internal

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/vadiminshakov/cryptosim/config"
	"github.com/vadiminshakov/cryptosim/internal/clients"
	"github.com/vadiminshakov/cryptosim/internal/metrics"
	"github.com/vadiminshakov/cryptosim/internal/services/pricer"
)

const breakerFailures = 5

// newSource builds the upstream price connection selected in conf.
// It returns a nil Runner for the "none" source.
func newSource(conf config.FeedConfig, sink pricer.Sink, m *metrics.Registry, logger *zap.Logger) (pricer.Runner, error) {
	switch conf.Source {
	case config.SourceKraken:
		url := conf.URL
		if url == "" {
			url = pricer.DefaultKrakenURL
		}
		return pricer.NewKrakenStream(url, conf.Symbols, conf.Quote, sink, logger,
			pricer.WithKrakenRecorder(m)), nil
	case config.SourceBinance:
		client := clients.NewBinanceClient(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET"))
		if conf.URL != "" {
			client.BaseURL = conf.URL
		}
		source := pricer.NewBinanceSource(client, conf.Symbols, conf.Quote)
		return newPoller(source, conf, sink, m, logger), nil
	case config.SourceBybit:
		client := clients.NewBybitClient(os.Getenv("BYBIT_API_KEY"), os.Getenv("BYBIT_API_SECRET"))
		source := pricer.NewBybitSource(client, conf.Symbols, conf.Quote)
		return newPoller(source, conf, sink, m, logger), nil
	case config.SourceNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported feed source: %s", conf.Source)
	}
}

func newPoller(source pricer.Source, conf config.FeedConfig, sink pricer.Sink, m *metrics.Registry, logger *zap.Logger) *pricer.Poller {
	return pricer.NewPoller(source, sink, conf.PollInterval, logger,
		pricer.WithPollRecorder(m),
		pricer.WithBreaker(breakerFailures, 6*conf.PollInterval))
}
