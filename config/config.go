package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Feed sources.
const (
	SourceKraken  = "kraken"
	SourceBinance = "binance"
	SourceBybit   = "bybit"
	SourceNone    = "none"
)

// DefaultSymbols are the assets subscribed to when none are configured.
var DefaultSymbols = []string{
	"BTC", "ETH", "BNB", "XRP", "ADA", "DOGE", "SOL", "DOT", "MATIC", "LTC",
	"SHIB", "AVAX", "UNI", "XLM", "BCH", "ALGO", "VET", "ICP", "MANA", "AXS",
}

const (
	defaultListenAddr       = ":8080"
	defaultInitialBalance   = "10000"
	defaultDataDir          = "./wal/ledger"
	defaultSubscriberBuffer = 256
	defaultPollInterval     = 5 * time.Second
	defaultLogLevel         = "info"
	defaultOrdersPerSecond  = 20
)

// Config is the runtime configuration of the simulator.
// An empty DataDir keeps the ledger in memory only.
type Config struct {
	ListenAddr       string
	InitialBalance   decimal.Decimal
	DataDir          string
	SubscriberBuffer int
	LogLevel         string
	OrdersPerSecond  float64
	Feed             FeedConfig
	Redis            RedisConfig
}

// FeedConfig selects the upstream price source.
type FeedConfig struct {
	Source       string
	URL          string
	Symbols      []string
	Quote        string
	PollInterval time.Duration
}

// RedisConfig enables the optional quote mirror when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Channel  string
}

// ConfigTmp is the YAML representation of Config. Decimals are kept as strings.
type ConfigTmp struct {
	ListenAddr       string   `yaml:"listen_addr"`
	InitialBalance   string   `yaml:"initial_balance"`
	DataDir          *string  `yaml:"data_dir,omitempty"`
	SubscriberBuffer int      `yaml:"subscriber_buffer,omitempty"`
	LogLevel         string   `yaml:"log_level,omitempty"`
	OrdersPerSecond  float64  `yaml:"orders_per_second,omitempty"`
	Feed             FeedTmp  `yaml:"feed"`
	Redis            RedisTmp `yaml:"redis,omitempty"`
}

// FeedTmp is the YAML representation of FeedConfig.
type FeedTmp struct {
	Source       string        `yaml:"source"`
	URL          string        `yaml:"url,omitempty"`
	Symbols      []string      `yaml:"symbols,omitempty"`
	Quote        string        `yaml:"quote,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
}

// RedisTmp is the YAML representation of RedisConfig.
type RedisTmp struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	Channel  string `yaml:"channel,omitempty"`
}

// Load reads a YAML config file.
func Load(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}
	return tmp.ToConfig()
}

// ToConfig validates the YAML form and fills defaults.
func (c ConfigTmp) ToConfig() (Config, error) {
	balanceStr := c.InitialBalance
	if balanceStr == "" {
		balanceStr = defaultInitialBalance
	}
	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'initial_balance' param in yaml config (correct format is 10000), error: %w", err)
	}

	conf := Config{
		ListenAddr:       c.ListenAddr,
		InitialBalance:   balance,
		DataDir:          defaultDataDir,
		SubscriberBuffer: c.SubscriberBuffer,
		LogLevel:         c.LogLevel,
		OrdersPerSecond:  c.OrdersPerSecond,
		Feed: FeedConfig{
			Source:       c.Feed.Source,
			URL:          c.Feed.URL,
			Symbols:      c.Feed.Symbols,
			Quote:        c.Feed.Quote,
			PollInterval: c.Feed.PollInterval,
		},
		Redis: RedisConfig(c.Redis),
	}
	if c.DataDir != nil {
		conf.DataDir = *c.DataDir
	}
	conf.applyDefaults()
	return conf, conf.Validate()
}

// ToTmp converts c back to its YAML form.
func (c Config) ToTmp() ConfigTmp {
	dataDir := c.DataDir
	return ConfigTmp{
		ListenAddr:       c.ListenAddr,
		InitialBalance:   c.InitialBalance.String(),
		DataDir:          &dataDir,
		SubscriberBuffer: c.SubscriberBuffer,
		LogLevel:         c.LogLevel,
		OrdersPerSecond:  c.OrdersPerSecond,
		Feed: FeedTmp{
			Source:       c.Feed.Source,
			URL:          c.Feed.URL,
			Symbols:      c.Feed.Symbols,
			Quote:        c.Feed.Quote,
			PollInterval: c.Feed.PollInterval,
		},
		Redis: RedisTmp(c.Redis),
	}
}

// Save writes c as YAML to path.
func (c Config) Save(path string) error {
	out, err := yaml.Marshal(c.ToTmp())
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	return os.WriteFile(path, out, 0o644)
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = defaultSubscriberBuffer
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.OrdersPerSecond <= 0 {
		c.OrdersPerSecond = defaultOrdersPerSecond
	}
	c.Feed.Source = strings.ToLower(strings.TrimSpace(c.Feed.Source))
	if c.Feed.Source == "" {
		c.Feed.Source = SourceKraken
	}
	if len(c.Feed.Symbols) == 0 {
		c.Feed.Symbols = append([]string(nil), DefaultSymbols...)
	}
	for i, s := range c.Feed.Symbols {
		c.Feed.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	if c.Feed.Quote == "" {
		if c.Feed.Source == SourceKraken || c.Feed.Source == SourceNone {
			c.Feed.Quote = "USD"
		} else {
			c.Feed.Quote = "USDT"
		}
	}
	c.Feed.Quote = strings.ToUpper(c.Feed.Quote)
	if c.Feed.PollInterval <= 0 {
		c.Feed.PollInterval = defaultPollInterval
	}
}

// Validate checks invariants the rest of the program relies on.
func (c Config) Validate() error {
	if c.InitialBalance.IsNegative() {
		return fmt.Errorf("initial balance must not be negative, got %s", c.InitialBalance.String())
	}
	switch c.Feed.Source {
	case SourceKraken, SourceBinance, SourceBybit, SourceNone:
	default:
		return fmt.Errorf("unsupported feed source: %s", c.Feed.Source)
	}
	return nil
}
