package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/thenexusengine/tne_hubvisor/internal/config"
	"github.com/thenexusengine/tne_hubvisor/internal/exchange"
	"github.com/thenexusengine/tne_hubvisor/internal/usersync"
)

// ServerConfig holds all server configuration
type ServerConfig struct {
	// Server
	Port        string
	Timeout     time.Duration
	MaxBodySize int64

	// Hubvisor endpoints, empty for production
	AuctionEndpoint string
	SyncEndpoint    string

	// TestMode flags outgoing auctions as test traffic until Redis says otherwise
	TestMode bool

	// Redis-backed runtime settings
	RedisURL        string
	SettingsRefresh time.Duration

	// User syncs handed back to pages
	IframeSyncs bool
	PixelSyncs  bool

	DefaultCurrency string
}

// ParseConfig parses configuration from args with environment variable fallbacks
func ParseConfig(args []string) (*ServerConfig, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	port := fs.String("port", getEnvOrDefault("PORT", "8000"), "Server port")
	timeout := fs.Duration("timeout", getEnvDurationOrDefault("AUCTION_TIMEOUT", config.DefaultAuctionTimeout), "Auction timeout when the request has no tmax")
	auctionURL := fs.String("auction-url", os.Getenv("HUBVISOR_AUCTION_URL"), "Hubvisor auction endpoint override")
	syncURL := fs.String("sync-url", os.Getenv("HUBVISOR_SYNC_URL"), "Hubvisor sync endpoint override")
	testMode := fs.Bool("test", getEnvBoolOrDefault("HUBVISOR_TEST", false), "Flag auctions as test traffic")
	redisURL := fs.String("redis-url", os.Getenv("REDIS_URL"), "Redis URL for runtime settings")
	refresh := fs.Duration("settings-refresh", getEnvDurationOrDefault("SETTINGS_REFRESH", config.DefaultSettingsRefresh), "Runtime settings refresh period")
	iframe := fs.Bool("iframe-syncs", getEnvBoolOrDefault("IFRAME_SYNCS", false), "Return iframe user syncs")
	pixel := fs.Bool("pixel-syncs", getEnvBoolOrDefault("PIXEL_SYNCS", true), "Return pixel user syncs")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &ServerConfig{
		Port:            *port,
		Timeout:         *timeout,
		MaxBodySize:     config.DefaultMaxBodySize,
		AuctionEndpoint: *auctionURL,
		SyncEndpoint:    *syncURL,
		TestMode:        *testMode,
		RedisURL:        *redisURL,
		SettingsRefresh: *refresh,
		IframeSyncs:     *iframe,
		PixelSyncs:      *pixel,
		DefaultCurrency: config.DefaultCurrency,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with
func (c *ServerConfig) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.SettingsRefresh <= 0 {
		return fmt.Errorf("settings refresh must be positive, got %v", c.SettingsRefresh)
	}
	return nil
}

// ToExchangeConfig converts ServerConfig to exchange.Config
func (c *ServerConfig) ToExchangeConfig() *exchange.Config {
	return &exchange.Config{
		DefaultTimeout:  c.Timeout,
		DefaultCurrency: c.DefaultCurrency,
		SyncOptions: usersync.Options{
			IframeEnabled: c.IframeSyncs,
			PixelEnabled:  c.PixelSyncs,
		},
	}
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBoolOrDefault returns the environment variable as bool or a default
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvDurationOrDefault returns the environment variable as a duration or a default
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}
