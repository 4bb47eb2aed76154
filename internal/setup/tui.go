package setup

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/cryptosim/config"
)

// DefaultConfigFile is where the wizard writes its result.
const DefaultConfigFile = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// answers holds the raw wizard input before it is turned into a Config.
type answers struct {
	balance      string
	source       string
	symbols      string
	pollInterval string
	addr         string
	dataDir      string
	redisAddr    string
}

func screen(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("CRYPTOSIM CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard, writes the result to path and returns it.
func RunTUI(path string) (config.Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}
	a := answers{
		balance:      "10000",
		source:       config.SourceKraken,
		symbols:      strings.Join(config.DefaultSymbols, ","),
		pollInterval: "5s",
		addr:         ":8080",
		dataDir:      "./wal/ledger",
	}
	var confirm bool

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("CRYPTOSIM CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Paper trading against live prices.\n"))

	fmt.Println(stepStyle.Render("STEP 1: ACCOUNT"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Initial balance (USD)").
				Value(&a.balance).
				Validate(validateBalance),
		),
	).Run()
	if err != nil {
		return config.Config{}, err
	}

	screen("STEP 2: PRICE SOURCE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where do prices come from?").
				Options(
					huh.NewOption("Kraken websocket (streaming)", config.SourceKraken),
					huh.NewOption("Binance REST (polling)", config.SourceBinance),
					huh.NewOption("Bybit REST (polling)", config.SourceBybit),
					huh.NewOption("None (redis mirror only)", config.SourceNone),
				).
				Value(&a.source),
			huh.NewInput().
				Title("Assets").
				Description("Comma separated symbols (e.g. BTC,ETH,SOL)").
				Value(&a.symbols).
				Validate(validateSymbols),
		),
	).Run()
	if err != nil {
		return config.Config{}, err
	}

	if a.source == config.SourceBinance || a.source == config.SourceBybit {
		screen("STEP 3: POLLING")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Poll interval").
					Description("Duration string (e.g. 2s, 5s, 1m)").
					Value(&a.pollInterval).
					Validate(validateInterval),
			),
		).Run()
		if err != nil {
			return config.Config{}, err
		}
	}

	screen("STEP 4: SERVER AND STORAGE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("HTTP listen address").
				Value(&a.addr),
			huh.NewInput().
				Title("Ledger journal directory").
				Description("Leave empty to keep the account in memory only").
				Value(&a.dataDir),
			huh.NewInput().
				Title("Redis address").
				Description("Optional quote mirror (e.g. localhost:6379)").
				Value(&a.redisAddr),
		),
	).Run()
	if err != nil {
		return config.Config{}, err
	}

	conf, err := a.config()
	if err != nil {
		return config.Config{}, err
	}

	screen("FINAL CONFIRMATION")
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary(conf)))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return config.Config{}, err
	}
	if !confirm {
		return config.Config{}, fmt.Errorf("setup cancelled by user")
	}

	if err := conf.Save(path); err != nil {
		return config.Config{}, fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting simulator...", path)))
	time.Sleep(1500 * time.Millisecond)
	return conf, nil
}

// config converts the answers through the same path a YAML file takes.
func (a answers) config() (config.Config, error) {
	interval, err := time.ParseDuration(a.pollInterval)
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid poll interval: %w", err)
	}
	dataDir := strings.TrimSpace(a.dataDir)
	tmp := config.ConfigTmp{
		ListenAddr:     strings.TrimSpace(a.addr),
		InitialBalance: strings.TrimSpace(a.balance),
		DataDir:        &dataDir,
		Feed: config.FeedTmp{
			Source:       a.source,
			Symbols:      splitSymbols(a.symbols),
			PollInterval: interval,
		},
		Redis: config.RedisTmp{Addr: strings.TrimSpace(a.redisAddr)},
	}
	return tmp.ToConfig()
}

func summary(c config.Config) string {
	dataDir := c.DataDir
	if dataDir == "" {
		dataDir = "(memory)"
	}
	redis := c.Redis.Addr
	if redis == "" {
		redis = "(disabled)"
	}
	return fmt.Sprintf(
		"Balance: $%s\nSource: %s\nAssets: %s\nListen: %s\nJournal: %s\nRedis: %s\n",
		c.InitialBalance.String(), c.Feed.Source, strings.Join(c.Feed.Symbols, ","), c.ListenAddr, dataDir, redis,
	)
}

func validateBalance(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateSymbols(s string) error {
	if len(splitSymbols(s)) == 0 {
		return fmt.Errorf("at least one asset is required")
	}
	return nil
}

func validateInterval(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}
