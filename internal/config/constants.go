// Package config provides shared configuration constants and runtime settings
package config

import "time"

// Hubvisor endpoints
const (
	// HubvisorSyncEndpoint returns the cookie-sync pixels for a set of placements
	HubvisorSyncEndpoint = "https://relay.hubvisor.io/v1/sync/pbjs"

	// HubvisorAuctionEndpoint accepts the OpenRTB auction request
	HubvisorAuctionEndpoint = "https://relay.hubvisor.io/v1/auction/pbjs"

	// HubvisorPlayerURL is the outstream player script installing the HbvPlayer global
	HubvisorPlayerURL = "https://cdn.hubvisor.io/wrapper/common/player.js"
)

// Hubvisor bidder identity
const (
	HubvisorBidderCode = "hubvisor"

	// HubvisorGVLVendorID is Hubvisor's IAB Global Vendor List ID
	HubvisorGVLVendorID = 1112

	// HubvisorAdapterVersion is reported in bidder info
	HubvisorAdapterVersion = "0.0.1"
)

// Bid defaults applied by the ORTB converter
const (
	// DefaultBidTTL is the bid time-to-live in seconds when the bid has no exp
	DefaultBidTTL = 30

	// DefaultCurrency is assumed when a response omits cur
	DefaultCurrency = "USD"
)

// Server timeout defaults
const (
	ServerReadTimeout  = 5 * time.Second
	ServerWriteTimeout = 10 * time.Second
	ServerIdleTimeout  = 120 * time.Second

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 30 * time.Second
)

// Auction defaults
const (
	// DefaultAuctionTimeout bounds the sync and auction calls together
	DefaultAuctionTimeout = 1000 * time.Millisecond

	// DefaultMaxBodySize is the maximum inbound request body (1MB)
	DefaultMaxBodySize = 1024 * 1024
)

// Runtime settings defaults
const (
	// SettingsRedisKey is the hash holding runtime settings
	SettingsRedisKey = "hubvisor:settings"

	// SettingsTestField is the hash field toggling test mode
	SettingsTestField = "test"

	// DefaultSettingsRefresh is how often settings are reloaded from Redis
	DefaultSettingsRefresh = 30 * time.Second

	// settingsRefreshTimeout bounds a single reload
	settingsRefreshTimeout = 5 * time.Second
)
