package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonnyspicer/mango"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"foresight/internal/config"
	"foresight/internal/db"
	"foresight/internal/market"
	"foresight/internal/quote"
	"foresight/internal/scheduler"
	"foresight/internal/server"
	"foresight/internal/trade"
	"foresight/internal/wallet"
)

// walletBackend both reports balances and places orders.
type walletBackend interface {
	trade.BalanceSource
	trade.Sink
}

func main() {
	// Parse CLI flags.
	configPath := flag.String("config", os.Getenv("FORESIGHT_CONFIG_PATH"), "Path to the TOML config file (defaults only when empty)")
	quoteArg := flag.String("quote", "", "Print a quote for <market>:<side>:<amount> and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.General.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("foresight starting", "catalog", cfg.Catalog.Source, "wallet", cfg.Wallet.Backend)

	// The catalog is an in-memory index rebuilt from the source on each refresh.
	database, err := db.OpenMemory()
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	store := market.NewStore(database)

	var mc *mango.Client
	manifold := func() *mango.Client {
		if mc == nil {
			mc = mango.DefaultClientInstance()
			slog.Info("manifold client initialized")
		}
		return mc
	}

	source, err := buildSource(cfg.Catalog, manifold)
	if err != nil {
		slog.Error("failed to build catalog source", "error", err)
		os.Exit(1)
	}

	backend, err := buildWallet(cfg, manifold)
	if err != nil {
		slog.Error("failed to build wallet", "error", err)
		os.Exit(1)
	}

	registry := server.NewRegistry()
	sched := scheduler.New(source, store, registry, cfg.Catalog, cfg.Server)

	// Graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := sched.Refresh(ctx); err != nil {
		slog.Error("initial catalog load failed", "error", err)
		os.Exit(1)
	}

	if *quoteArg != "" {
		if err := printQuote(ctx, store, *quoteArg, cfg.Trade.Currency); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	limits := trade.Limits{
		MaxAmount: decimal.NewFromFloat(cfg.Trade.MaxAmount),
		Currency:  cfg.Trade.Currency,
	}
	handler := server.NewHandler(store, registry, backend, backend, limits, slog.Default())
	srv := server.New(cfg.General.ListenAddr, handler, slog.Default())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("foresight stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("foresight stopped")
}

func buildSource(cfg config.CatalogConfig, manifold func() *mango.Client) (market.Source, error) {
	switch cfg.Source {
	case "manifold":
		return market.NewManifoldSource(manifold(), cfg.ManifoldLimit, cfg.Categories), nil
	default:
		if cfg.SeedPath == "" {
			return market.NewStaticSource(market.DefaultMarkets()), nil
		}
		markets, err := market.LoadSeed(cfg.SeedPath)
		if err != nil {
			return nil, err
		}
		return market.NewStaticSource(markets), nil
	}
}

func buildWallet(cfg *config.Config, manifold func() *mango.Client) (walletBackend, error) {
	switch cfg.Wallet.Backend {
	case "manifold":
		return wallet.NewManifold(manifold(), cfg.Wallet.RequestTimeout.Duration, cfg.Wallet.RequestsPerSecond), nil
	default:
		sim := wallet.NewSimulated(
			decimal.NewFromFloat(cfg.Wallet.DefaultBalance),
			decimal.NewFromFloat(cfg.Trade.MaxAmount),
			cfg.Wallet.Latency.Duration,
		)
		hook, err := wallet.FaultsFromConfig(cfg.Wallet.Faults)
		if err != nil {
			return nil, err
		}
		if hook != nil {
			sim.SetFaultHook(hook)
		}
		return sim, nil
	}
}

// printQuote handles -quote market:side:amount.
func printQuote(ctx context.Context, store *market.Store, arg, currency string) error {
	req, err := parseQuoteArg(arg)
	if err != nil {
		return err
	}
	m, err := store.Get(ctx, req.marketID)
	if err != nil {
		return err
	}
	price, err := m.Price(req.side)
	if err != nil {
		return errors.New(trade.NewError(trade.KindInvalidMarket, err).Describe(currency))
	}
	q := quote.FromText(req.amount, price)
	fmt.Printf("%s\n  %s @ %d¢  amount %s %s\n  shares %s  potential return %s %s\n",
		m.Question, req.side.Outcome(), price, req.amount, currency,
		q.Shares.StringFixed(2), q.PotentialReturn.StringFixed(2), currency)
	return nil
}

type quoteRequest struct {
	marketID string
	side     market.Side
	amount   string
}

// parseQuoteArg splits <market>:<side>:<amount>.
func parseQuoteArg(arg string) (quoteRequest, error) {
	parts := strings.SplitN(arg, ":", 3)
	if len(parts) != 3 || strings.TrimSpace(parts[0]) == "" {
		return quoteRequest{}, fmt.Errorf("quote must look like <market>:<side>:<amount>, got %q", arg)
	}
	side, err := market.ParseSide(parts[1])
	if err != nil {
		return quoteRequest{}, err
	}
	return quoteRequest{marketID: strings.TrimSpace(parts[0]), side: side, amount: parts[2]}, nil
}
