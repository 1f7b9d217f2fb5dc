package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	General GeneralConfig `toml:"general"`
	Trade   TradeConfig   `toml:"trade"`
	Catalog CatalogConfig `toml:"catalog"`
	Wallet  WalletConfig  `toml:"wallet"`
	Server  ServerConfig  `toml:"server"`
}

type GeneralConfig struct {
	LogLevel   string `toml:"log_level"`
	ListenAddr string `toml:"listen_addr"`
}

type TradeConfig struct {
	MaxAmount float64 `toml:"max_amount"`
	Currency  string  `toml:"currency"`
}

type CatalogConfig struct {
	Source          string              `toml:"source"` // "static" or "manifold"
	SeedPath        string              `toml:"seed_path"`
	RefreshInterval Duration            `toml:"refresh_interval"`
	ManifoldLimit   int64               `toml:"manifold_limit"`
	Categories      map[string][]string `toml:"categories"` // category -> question keywords
}

type WalletConfig struct {
	Backend           string       `toml:"backend"` // "simulated" or "manifold"
	DefaultBalance    float64      `toml:"default_balance"`
	Latency           Duration     `toml:"latency"`
	RequestTimeout    Duration     `toml:"request_timeout"`
	RequestsPerSecond float64      `toml:"requests_per_second"`
	Faults            FaultsConfig `toml:"faults"`
}

// FaultsConfig forces the simulated wallet to fail. Kinds use the trade error
// kind names ("network_timeout", "rate_limited", "rejected_by_signer", ...).
// Empty means no fault.
type FaultsConfig struct {
	BalanceError string `toml:"balance_error"`
	SubmitError  string `toml:"submit_error"`
}

type ServerConfig struct {
	DialogTTL     Duration `toml:"dialog_ttl"`
	SweepInterval Duration `toml:"sweep_interval"`
}

// Duration wraps time.Duration for TOML unmarshaling.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Load reads the TOML file at path over the defaults, then applies
// FORESIGHT_* environment overrides (a .env file is honoured if present).
// An empty path skips the file and uses defaults only.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:   "info",
			ListenAddr: ":8080",
		},
		Trade: TradeConfig{
			MaxAmount: 10,
			Currency:  "SOL",
		},
		Catalog: CatalogConfig{
			Source:          "static",
			RefreshInterval: Duration{10 * time.Minute},
			ManifoldLimit:   100,
			Categories: map[string][]string{
				"crypto":        {"bitcoin", "btc", "ethereum", "eth", "solana", "crypto"},
				"politics":      {"election", "president", "senate", "congress", "vote"},
				"tech":          {"openai", "artificial intelligence", "gpt", "apple", "google", "iphone"},
				"sports":        {"nba", "nfl", "world cup", "championship", "win the"},
				"entertainment": {"movie", "oscar", "album", "box office", "grammy"},
			},
		},
		Wallet: WalletConfig{
			Backend:           "simulated",
			DefaultBalance:    25,
			Latency:           Duration{time.Second},
			RequestTimeout:    Duration{15 * time.Second},
			RequestsPerSecond: 2,
		},
		Server: ServerConfig{
			DialogTTL:     Duration{30 * time.Minute},
			SweepInterval: Duration{time.Minute},
		},
	}
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.Trade.MaxAmount <= 0 {
		return fmt.Errorf("trade.max_amount must be positive, got %v", c.Trade.MaxAmount)
	}
	switch c.Catalog.Source {
	case "static", "manifold":
	default:
		return fmt.Errorf("invalid catalog.source: %q (must be static or manifold)", c.Catalog.Source)
	}
	switch c.Wallet.Backend {
	case "simulated", "manifold":
	default:
		return fmt.Errorf("invalid wallet.backend: %q (must be simulated or manifold)", c.Wallet.Backend)
	}
	if c.Wallet.DefaultBalance < 0 {
		return fmt.Errorf("wallet.default_balance must not be negative")
	}
	if c.Catalog.RefreshInterval.Duration <= 0 || c.Server.SweepInterval.Duration <= 0 {
		return fmt.Errorf("catalog.refresh_interval and server.sweep_interval must be positive")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.General.LogLevel, "FORESIGHT_LOG_LEVEL")
	setStr(&cfg.General.ListenAddr, "FORESIGHT_LISTEN_ADDR")
	setStr(&cfg.Catalog.Source, "FORESIGHT_CATALOG_SOURCE")
	setStr(&cfg.Catalog.SeedPath, "FORESIGHT_CATALOG_SEED_PATH")
	setStr(&cfg.Wallet.Backend, "FORESIGHT_WALLET_BACKEND")
	setFloat(&cfg.Wallet.DefaultBalance, "FORESIGHT_WALLET_DEFAULT_BALANCE")
	setFloat(&cfg.Trade.MaxAmount, "FORESIGHT_TRADE_MAX_AMOUNT")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
