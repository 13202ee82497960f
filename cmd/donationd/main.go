// Package main provides the donationd daemon - a donation wallet service.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jords94/churchcryptodonations-sub000/internal/chain"
	"github.com/jords94/churchcryptodonations-sub000/internal/config"
	"github.com/jords94/churchcryptodonations-sub000/internal/history"
	"github.com/jords94/churchcryptodonations-sub000/internal/monitor"
	"github.com/jords94/churchcryptodonations-sub000/internal/provider"
	"github.com/jords94/churchcryptodonations-sub000/internal/rpc"
	"github.com/jords94/churchcryptodonations-sub000/internal/storage"
	"github.com/jords94/churchcryptodonations-sub000/internal/wallet"
	"github.com/jords94/churchcryptodonations-sub000/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	// Parse flags
	var (
		dataDir     = flag.String("data-dir", "~/.donationd", "Data directory")
		configFile  = flag.String("config", "", "Config file path (default: <data-dir>/config.yaml)")
		apiAddr     = flag.String("api", "", "JSON-RPC API address, overrides config")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	// Set up logging (initial, may be overridden by config)
	log := logging.New(&logging.Config{
		Level:      "info",
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("donationd %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	// Track which flags were given explicitly so defaults don't clobber
	// values set in the config file.
	flagsSet := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { flagsSet[f.Name] = true })

	// Load or create config file
	var cfg *config.Config
	var err error

	if *configFile != "" {
		cfg, err = config.LoadConfigFile(*configFile)
	} else {
		cfg, err = config.LoadConfig(*dataDir)
	}
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	// Apply CLI overrides (explicit CLI flags take precedence over config file)
	if flagsSet["data-dir"] || cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = *dataDir
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	listenAddr := cfg.RPC.ListenAddr
	if *apiAddr != "" {
		listenAddr = *apiAddr
	}

	// Update logging with config level
	log = logging.New(&logging.Config{
		Level:      cfg.Logging.Level,
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)

	configPath := config.ConfigPath(cfg.Storage.DataDir)
	if *configFile != "" {
		configPath = *configFile
	}
	log.Info("Config loaded", "path", configPath)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	dataPath := expandPath(cfg.Storage.DataDir)
	store, err := storage.New(&storage.Config{
		DataDir: dataPath,
	})
	if err != nil {
		log.Fatal("Failed to initialize storage", "error", err)
	}
	defer store.Close()
	log.Info("Storage initialized", "path", dataPath)

	// Initialize wallet service
	walletService := wallet.NewService(log)
	log.Info("Wallet service initialized")

	// Initialize blockchain providers
	timeout := cfg.Providers.RequestTimeout

	mempool := provider.NewMempoolProvider(cfg.Providers.MempoolURL, timeout)
	blockbook := provider.NewBlockbookProvider(cfg.Providers.BlockbookURL, timeout)

	ethBalance, err := provider.NewEthProvider(cfg.Providers.EthRPCURL)
	if err != nil {
		log.Fatal("Failed to initialize Ethereum RPC provider", "error", err)
	}

	usdtParams, err := chain.Stablecoin.Params()
	if err != nil {
		log.Fatal("Unknown stablecoin parameters", "error", err)
	}
	tokenBalance, err := provider.NewTokenProvider(cfg.Providers.EthRPCURL, usdtParams.TokenContract)
	if err != nil {
		log.Fatal("Failed to initialize token provider", "error", err)
	}

	ethHistory := provider.NewEtherscanProvider(cfg.Providers.EtherscanURL, cfg.Providers.EtherscanAPIKey, timeout)
	usdtHistory := provider.NewEtherscanTokenProvider(cfg.Providers.EtherscanURL, cfg.Providers.EtherscanAPIKey, usdtParams.TokenContract, timeout)

	priceFeed := provider.NewCoinGeckoProvider(cfg.Providers.PriceFeedURL, timeout)

	balanceProviders := map[chain.Chain][]provider.BalanceProvider{
		chain.Bitcoin:    {mempool, blockbook},
		chain.Ethereum:   {ethBalance},
		chain.Stablecoin: {tokenBalance},
	}
	txProviders := map[chain.Chain][]provider.TxProvider{
		chain.Bitcoin:    {mempool, blockbook},
		chain.Ethereum:   {ethHistory},
		chain.Stablecoin: {usdtHistory},
	}
	log.Info("Providers initialized",
		"btc", []string{mempool.Name(), blockbook.Name()},
		"eth", ethBalance.Name(),
		"usdt", tokenBalance.Name())

	// Create RPC server first: its WebSocket hub is the notifier for the
	// monitor and history services.
	rpcServer := rpc.NewServer(rpc.Config{
		Store:   store,
		Wallet:  walletService,
		Version: version,
	})

	balanceMonitor := monitor.New(monitor.Config{
		Store:      store,
		Providers:  balanceProviders,
		Price:      priceFeed,
		Notifier:   rpcServer.WSHub(),
		BatchDelay: cfg.Monitor.BatchDelay,
		Logger:     log,
	})
	rpcServer.SetMonitor(balanceMonitor)

	historyService := history.New(history.Config{
		Store:     store,
		Providers: txProviders,
		Price:     priceFeed,
		Notifier:  rpcServer.WSHub(),
		Logger:    log,
	})
	rpcServer.SetHistory(historyService)

	if err := rpcServer.Start(listenAddr); err != nil {
		log.Fatal("Failed to start RPC server", "error", err)
	}

	printBanner(log, cfg, listenAddr, dataPath)

	// Periodic balance refresh for all active wallets
	go func() {
		ticker := time.NewTicker(cfg.Monitor.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				summary, err := balanceMonitor.UpdateAllBalances(ctx)
				if err != nil {
					log.Error("Balance refresh pass failed", "error", err)
					continue
				}
				log.Info("Balance refresh pass complete",
					"updated", summary.Updated, "failed", summary.Failed)
			}
		}
	}()

	// Periodic sweep of expired transaction cache rows
	go func() {
		ticker := time.NewTicker(cfg.Monitor.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := store.SweepExpired()
				if err != nil {
					log.Error("Cache sweep failed", "error", err)
					continue
				}
				if removed > 0 {
					log.Info("Cache sweep complete", "removed", removed)
				}
			}
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	log.Info("Shutting down...")

	cancel()

	if err := rpcServer.Stop(); err != nil {
		log.Error("Error stopping RPC server", "error", err)
	}

	log.Info("Goodbye!")
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}

func printBanner(log *logging.Logger, cfg *config.Config, apiAddr, dataPath string) {
	log.Info("")
	log.Info("=================================================")
	log.Info("  Donation Wallet Daemon")
	log.Infof("  Version: %s", version)
	log.Info("=================================================")
	log.Info("")
	log.Infof("  API: http://%s", apiAddr)
	log.Infof("  WS:  ws://%s/ws", apiAddr)
	log.Info("")
	chains := chain.All()
	symbols := make([]string, len(chains))
	for i, c := range chains {
		symbols[i] = string(c)
	}
	log.Infof("  Chains: %v", symbols)
	log.Infof("  Refresh: every %s", cfg.Monitor.RefreshInterval)
	log.Infof("  Data dir: %s", dataPath)
	log.Info("")
	log.Info("=================================================")
	log.Info("")
}
