package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/thenexusengine/tne_hubvisor/internal/adapters"
	_ "github.com/thenexusengine/tne_hubvisor/internal/adapters/hubvisor"
	"github.com/thenexusengine/tne_hubvisor/internal/config"
	"github.com/thenexusengine/tne_hubvisor/internal/endpoints"
	"github.com/thenexusengine/tne_hubvisor/internal/exchange"
	"github.com/thenexusengine/tne_hubvisor/internal/metrics"
	"github.com/thenexusengine/tne_hubvisor/internal/middleware"
	"github.com/thenexusengine/tne_hubvisor/pkg/logger"
	"github.com/thenexusengine/tne_hubvisor/pkg/redis"
)

// Server represents the bidder host
type Server struct {
	config      *ServerConfig
	httpServer  *http.Server
	metrics     *metrics.Metrics
	exchange    *exchange.Exchange
	settings    *config.Settings
	redisClient *redis.Client
	stopRefresh context.CancelFunc
}

// NewServer creates a new server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	s := &Server{
		config:   cfg,
		settings: config.Global,
	}

	if err := s.initialize(); err != nil {
		return nil, err
	}

	return s, nil
}

// initialize sets up all server components
func (s *Server) initialize() error {
	log := logger.Log

	log.Info().
		Str("port", s.config.Port).
		Dur("timeout", s.config.Timeout).
		Bool("test", s.config.TestMode).
		Msg("Initializing Hubvisor bidder host")

	s.metrics = metrics.NewMetrics("hubvisor")
	s.settings.SetTestMode(s.config.TestMode)

	// Redis failures are non-fatal, settings keep the flag value
	if err := s.initRedis(); err != nil {
		log.Warn().Err(err).Msg("Redis initialization failed, runtime settings disabled")
	}

	if err := s.initExchange(); err != nil {
		return err
	}

	s.initHandlers()
	return nil
}

// initRedis connects to Redis and starts the settings refresh
func (s *Server) initRedis() error {
	log := logger.Log

	if s.config.RedisURL == "" {
		log.Info().Msg("REDIS_URL not set, runtime settings disabled")
		return nil
	}

	client, err := redis.New(s.config.RedisURL)
	if err != nil {
		return err
	}
	s.redisClient = client

	ctx, cancel := context.WithCancel(context.Background())
	s.stopRefresh = cancel
	s.settings.WithRedis(client, s.config.SettingsRefresh).Start(ctx)

	log.Info().
		Dur("refresh", s.config.SettingsRefresh).
		Bool("test", s.settings.TestMode()).
		Msg("Runtime settings loaded from Redis")
	return nil
}

// initExchange builds the hubvisor adapter and the exchange running it
func (s *Server) initExchange() error {
	adapter, info, err := adapters.DefaultRegistry.Build(config.HubvisorBidderCode, adapters.AdapterConfig{
		Endpoint:         s.config.AuctionEndpoint,
		UserSyncEndpoint: s.config.SyncEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to build %s adapter: %w", config.HubvisorBidderCode, err)
	}

	s.exchange = exchange.New(config.HubvisorBidderCode, adapter, s.config.ToExchangeConfig())
	s.exchange.SetMetrics(s.metrics)

	logger.Log.Info().
		Str("bidder", config.HubvisorBidderCode).
		Str("version", info.Version).
		Int("gvl_vendor_id", info.GVLVendorID).
		Strs("registered", adapters.DefaultRegistry.List()).
		Msg("Bidder adapter ready")
	return nil
}

// initHandlers initializes HTTP handlers and builds the handler chain
func (s *Server) initHandlers() {
	biddersHandler := endpoints.NewInfoBiddersHandler(adapters.DefaultRegistry)

	mux := http.NewServeMux()
	mux.Handle("/openrtb2/auction", endpoints.NewAuctionHandler(s.exchange, s.config.Timeout))
	mux.Handle("/status", endpoints.NewStatusHandler())
	mux.Handle("/health/ready", readyHandler(s.redisClient))
	mux.Handle("GET /info/bidders", biddersHandler)
	mux.Handle("GET /info/bidders/{bidder}", biddersHandler)
	mux.Handle("/metrics", s.metrics.Handler())

	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.buildHandler(mux),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}
}

// buildHandler builds the middleware chain:
// CORS -> Logging -> Size Limit -> Metrics -> Handler
func (s *Server) buildHandler(mux *http.ServeMux) http.Handler {
	handler := http.Handler(mux)
	handler = s.metrics.Middleware(handler)
	handler = middleware.SizeLimit(middleware.SizeLimitConfig{MaxBodySize: s.config.MaxBodySize})(handler)
	handler = middleware.Logging(handler)
	handler = middleware.CORS(handler)
	return handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	logger.Log.Info().Str("addr", s.httpServer.Addr).Msg("Server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown performs graceful shutdown
func (s *Server) Shutdown(ctx context.Context) error {
	log := logger.Log
	log.Info().Msg("Starting graceful shutdown")

	if s.stopRefresh != nil {
		s.stopRefresh()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing Redis client")
		}
	}

	log.Info().Msg("Server stopped gracefully")
	return nil
}

// readyHandler returns a readiness check with dependency verification
func readyHandler(redisClient *redis.Client) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := make(map[string]interface{})
		ready := true

		if redisClient == nil {
			checks["redis"] = map[string]interface{}{"status": "disabled"}
		} else if err := redisClient.Ping(ctx); err != nil {
			checks["redis"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
			ready = false
		} else {
			checks["redis"] = map[string]interface{}{"status": "healthy"}
		}

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"ready":     ready,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"checks":    checks,
		}); err != nil {
			logger.Log.Error().Err(err).Msg("failed to encode readiness response")
		}
	})
}
