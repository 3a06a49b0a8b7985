// Package common provides shared utilities for Folium
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bobmcallan/folium/internal/models"
)

// Market data providers selectable for history and exchange rates.
const (
	ProviderYahoo = "yahoo"
	ProviderEODHD = "eodhd"
)

// Config holds all configuration for Folium
type Config struct {
	Environment       string          `toml:"environment"`
	ReferenceCurrency string          `toml:"reference_currency"` // Currency all aggregates are reported in (default "EUR")
	Server            ServerConfig    `toml:"server"`
	Storage           StorageConfig   `toml:"storage"`
	Clients           ClientsConfig   `toml:"clients"`
	Market            MarketConfig    `toml:"market"`
	Valuation         ValuationConfig `toml:"valuation"`
	Logging           LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds the holdings store location.
type StorageConfig struct {
	Holdings AreaConfig `toml:"holdings"` // BadgerHold directory
}

// AreaConfig holds path configuration for a storage area.
type AreaConfig struct {
	Path string `toml:"path"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Yahoo YahooConfig `toml:"yahoo"`
	EODHD EODHDConfig `toml:"eodhd"`
}

// YahooConfig holds Yahoo Finance API configuration
type YahooConfig struct {
	QueryURL  string `toml:"query_url"`  // quote, chart and search host
	RateLimit int    `toml:"rate_limit"` // requests per second
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *YahooConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// MarketConfig selects which client serves history and exchange rates.
// Live quotes and search always come from Yahoo.
type MarketConfig struct {
	Provider        string `toml:"provider"`         // "yahoo" or "eodhd"
	RefreshInterval string `toml:"refresh_interval"` // background re-pricing of the default user's holdings; empty disables
}

// GetRefreshInterval parses the refresh interval. Zero means disabled.
func (c *MarketConfig) GetRefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// ValuationConfig tunes the valuation engine
type ValuationConfig struct {
	MaxConcurrency int    `toml:"max_concurrency"` // parallel upstream lookups per pass
	DefaultWindow  string `toml:"default_window"`  // 1M, 6M, 1Y, YTD or MAX
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Format   string   `toml:"format"`  // "text" or "json" for console output
	Outputs  []string `toml:"outputs"` // "console", "file"
	FilePath string   `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment:       "development",
		ReferenceCurrency: models.DefaultCurrency,
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Holdings: AreaConfig{Path: "data/holdings"},
		},
		Clients: ClientsConfig{
			Yahoo: YahooConfig{
				QueryURL:  "https://query1.finance.yahoo.com",
				RateLimit: 5,
				Timeout:   "15s",
			},
			EODHD: EODHDConfig{
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 10,
				Timeout:   "30s",
			},
		},
		Market: MarketConfig{
			Provider: ProviderYahoo,
		},
		Valuation: ValuationConfig{
			MaxConcurrency: 8,
			DefaultWindow:  string(models.Window6M),
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Outputs:  []string{"console"},
			FilePath: "./logs/folium.log",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	validateReferenceCurrency(config)
	validateMarketProvider(config)
	validateValuation(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FOLIUM_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("FOLIUM_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("FOLIUM_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("FOLIUM_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("FOLIUM_DATA_PATH"); path != "" {
		config.Storage.Holdings.Path = filepath.Join(path, "holdings")
	}

	if rc := os.Getenv("FOLIUM_REFERENCE_CURRENCY"); rc != "" {
		config.ReferenceCurrency = rc
	}

	if p := os.Getenv("FOLIUM_MARKET_PROVIDER"); p != "" {
		config.Market.Provider = p
	}

	for _, name := range []string{"EODHD_API_KEY", "FOLIUM_EODHD_API_KEY"} {
		if v := os.Getenv(name); v != "" {
			config.Clients.EODHD.APIKey = v
			break
		}
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// validateReferenceCurrency upper-cases the reference currency, defaulting to EUR
// when it is not a 3-letter code.
func validateReferenceCurrency(config *Config) {
	rc := models.NormalizeCurrency(config.ReferenceCurrency)
	if !models.IsCurrencyCode(rc) {
		rc = models.DefaultCurrency
	}
	config.ReferenceCurrency = rc
}

// validateMarketProvider falls back to Yahoo for unknown providers, and for
// EODHD when no API key is configured.
func validateMarketProvider(config *Config) {
	p := strings.ToLower(strings.TrimSpace(config.Market.Provider))
	if p != ProviderEODHD || config.Clients.EODHD.APIKey == "" {
		p = ProviderYahoo
	}
	config.Market.Provider = p
}

func validateValuation(config *Config) {
	if config.Valuation.MaxConcurrency <= 0 {
		config.Valuation.MaxConcurrency = 8
	}
	w, err := models.ParseWindow(config.Valuation.DefaultWindow)
	if err != nil {
		w = models.Window6M
	}
	config.Valuation.DefaultWindow = string(w)
}
