// Package app wires configuration, clients, storage and services into the
// core shared by cmd/folium-server and cmd/folium.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/folium/internal/clients/eodhd"
	"github.com/bobmcallan/folium/internal/clients/yahoo"
	"github.com/bobmcallan/folium/internal/common"
	"github.com/bobmcallan/folium/internal/interfaces"
	"github.com/bobmcallan/folium/internal/services/holdings"
	"github.com/bobmcallan/folium/internal/services/quote"
	"github.com/bobmcallan/folium/internal/services/valuation"
	"github.com/bobmcallan/folium/internal/storage/badger"
)

// App holds all initialized services, clients and storage.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Store       interfaces.HoldingStore
	Gateway     interfaces.QuoteGateway
	Valuation   interfaces.ValuationEngine
	Holdings    interfaces.HoldingService
	StartupTime time.Time

	schedulerCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks the config file: the given path, FOLIUM_CONFIG,
// folium.toml next to the binary, then config/folium.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("FOLIUM_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "folium.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/folium.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration and initializes the application.
// configPath may be empty, in which case ResolveConfigPath applies.
func NewApp(configPath string) (*App, error) {
	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)
	return NewAppWithConfig(config, logger)
}

// NewAppWithConfig initializes clients, storage and services from a loaded config.
func NewAppWithConfig(config *common.Config, logger *common.Logger) (*App, error) {
	startupStart := time.Now()

	store, err := badger.NewStore(logger, config.Storage.Holdings.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	holdingStore := badger.NewHoldingStorage(store, logger)

	gateway := quote.NewService(buildSources(config, logger), logger)

	engine := valuation.NewEngine(gateway, logger,
		valuation.WithMaxConcurrency(config.Valuation.MaxConcurrency),
	)

	a := &App{
		Config:      config,
		Logger:      logger,
		Store:       holdingStore,
		Gateway:     gateway,
		Valuation:   engine,
		Holdings:    holdings.NewService(holdingStore, gateway, logger),
		StartupTime: startupStart,
	}

	logger.Info().
		Str("provider", config.Market.Provider).
		Str("reference", config.ReferenceCurrency).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// buildSources creates the market data clients. Yahoo always serves live
// quotes and search; the configured provider serves history and rates.
func buildSources(config *common.Config, logger *common.Logger) quote.Sources {
	yc := config.Clients.Yahoo
	yahooClient := yahoo.NewClient(
		yahoo.WithBaseURL(yc.QueryURL),
		yahoo.WithLogger(logger),
		yahoo.WithRateLimit(yc.RateLimit),
		yahoo.WithTimeout(yc.GetTimeout()),
	)

	src := quote.Sources{
		Primary:   yahooClient,
		Secondary: yahooClient.ChartQuotes(),
		History:   yahooClient,
		Rates:     yahooClient,
		Search:    yahooClient,
	}

	if config.Market.Provider == common.ProviderEODHD {
		ec := config.Clients.EODHD
		eodhdClient := eodhd.NewClient(ec.APIKey,
			eodhd.WithBaseURL(ec.BaseURL),
			eodhd.WithLogger(logger),
			eodhd.WithRateLimit(ec.RateLimit),
			eodhd.WithTimeout(ec.GetTimeout()),
		)
		src.History = eodhdClient
		src.Rates = eodhdClient
	}

	return src
}

// ResolveReference returns the reference currency for a request: the user
// context override when valid, else the configured one.
func (a *App) ResolveReference(ctx context.Context) string {
	return common.ResolveReferenceCurrency(ctx, a.Config.ReferenceCurrency)
}

// StartPriceScheduler launches background re-pricing of the default user's
// holdings when market.refresh_interval is set.
func (a *App) StartPriceScheduler() {
	interval := a.Config.Market.GetRefreshInterval()
	if interval <= 0 {
		return
	}
	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	a.schedulerCancel = schedulerCancel
	go startPriceScheduler(schedulerCtx, a.Holdings, common.DefaultUserID, a.Logger, interval)
}

// Close releases all resources held by the App.
// Shutdown order: cancel scheduler, close storage.
func (a *App) Close() {
	if a.schedulerCancel != nil {
		a.schedulerCancel()
		a.schedulerCancel = nil
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close holdings store")
		}
		a.Store = nil
	}
}
