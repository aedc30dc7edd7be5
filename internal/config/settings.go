package config

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thenexusengine/tne_hubvisor/pkg/logger"
)

// HashReader is the subset of the Redis client used to load settings
type HashReader interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Settings holds process-wide runtime flags. It is safe for concurrent use.
type Settings struct {
	test atomic.Bool

	source        HashReader
	refreshPeriod time.Duration
	stopOnce      sync.Once
	stopChan      chan struct{}
}

// Global is the process-wide settings instance read by adapters built
// from the registry
var Global = NewSettings(false)

// NewSettings creates settings with the given initial test mode
func NewSettings(test bool) *Settings {
	s := &Settings{stopChan: make(chan struct{})}
	s.test.Store(test)
	return s
}

// TestMode reports whether outgoing auction requests are flagged as test traffic
func (s *Settings) TestMode() bool {
	return s.test.Load()
}

// SetTestMode toggles test mode
func (s *Settings) SetTestMode(test bool) {
	s.test.Store(test)
}

// WithRedis makes Refresh and Start read settings from source
func (s *Settings) WithRedis(source HashReader, refreshPeriod time.Duration) *Settings {
	if refreshPeriod <= 0 {
		refreshPeriod = DefaultSettingsRefresh
	}
	s.source = source
	s.refreshPeriod = refreshPeriod
	return s
}

// Refresh loads settings from Redis. Fields absent from the hash keep their value.
func (s *Settings) Refresh(ctx context.Context) error {
	if s.source == nil {
		return nil
	}

	values, err := s.source.HGetAll(ctx, SettingsRedisKey)
	if err != nil {
		return fmt.Errorf("failed to load settings from redis: %w", err)
	}

	if raw, ok := values[SettingsTestField]; ok {
		test, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", SettingsTestField, raw, err)
		}
		if test != s.TestMode() {
			logger.Log.Info().Bool("test", test).Msg("test mode changed")
		}
		s.SetTestMode(test)
	}

	return nil
}

// Start performs an initial load then refreshes in the background until ctx
// is done or Stop is called. A failed initial load is logged, not returned,
// so the server can start with flag defaults while Redis is down.
func (s *Settings) Start(ctx context.Context) {
	if s.source == nil {
		return
	}

	if err := s.refreshOnce(ctx); err != nil {
		logger.Log.Warn().Err(err).Msg("initial settings load failed")
	}

	go s.refreshLoop(ctx)
}

// Stop stops the background refresh
func (s *Settings) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *Settings) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.refreshPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.refreshOnce(ctx); err != nil {
				logger.Log.Warn().Err(err).Msg("failed to refresh settings")
			}
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Settings) refreshOnce(ctx context.Context) error {
	refreshCtx, cancel := context.WithTimeout(ctx, settingsRefreshTimeout)
	defer cancel()
	return s.Refresh(refreshCtx)
}
