package config

import (
	"flag"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Options are the process-level switches that do not belong in Config.
type Options struct {
	ConfigPath string
	Setup      bool
}

// Get builds the configuration from args: a YAML file when -config is given, else the flags.
func Get(args []string) (Config, Options, error) {
	fs := flag.NewFlagSet("cryptosim", flag.ContinueOnError)

	configPath := fs.String("config", "", "path to yaml config")
	setup := fs.Bool("setup", false, "run the interactive setup wizard and write a yaml config")
	addr := fs.String("addr", defaultListenAddr, "http listen address")
	balance := fs.String("balance", defaultInitialBalance, "initial cash balance, example: 10000")
	dataDir := fs.String("datadir", defaultDataDir, "ledger journal directory, empty keeps the ledger in memory")
	source := fs.String("source", SourceKraken, "price source: kraken, binance, bybit or none")
	feedURL := fs.String("feedurl", "", "override the price source url")
	symbols := fs.String("symbols", strings.Join(DefaultSymbols, ","), "comma separated assets to track")
	quote := fs.String("quote", "", "quote currency (default USD for kraken, USDT for binance/bybit)")
	poll := fs.Duration("pollinterval", defaultPollInterval, "poll interval for REST price sources")
	buffer := fs.Int("subbuffer", defaultSubscriberBuffer, "per-subscriber price buffer")
	logLevel := fs.String("loglevel", defaultLogLevel, "log level: debug, info, warn, error")
	orderRate := fs.Float64("orderrate", defaultOrdersPerSecond, "max buy and sell requests per second")
	redisAddr := fs.String("redis", "", "redis address for the quote mirror, empty disables it")

	if err := fs.Parse(args); err != nil {
		return Config{}, Options{}, err
	}

	opts := Options{ConfigPath: *configPath, Setup: *setup}
	if opts.Setup {
		return Config{}, opts, nil
	}
	if opts.ConfigPath != "" {
		conf, err := Load(opts.ConfigPath)
		return conf, opts, err
	}

	initial, err := decimal.NewFromString(*balance)
	if err != nil {
		return Config{}, opts, fmt.Errorf("invalid --balance provided, --balance=%s", *balance)
	}

	conf := Config{
		ListenAddr:       *addr,
		InitialBalance:   initial,
		DataDir:          *dataDir,
		SubscriberBuffer: *buffer,
		LogLevel:         *logLevel,
		OrdersPerSecond:  *orderRate,
		Feed: FeedConfig{
			Source:       *source,
			URL:          *feedURL,
			Symbols:      splitSymbols(*symbols),
			Quote:        *quote,
			PollInterval: *poll,
		},
		Redis: RedisConfig{Addr: *redisAddr},
	}
	conf.applyDefaults()
	return conf, opts, conf.Validate()
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
