package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/thenexusengine/tne_hubvisor/internal/config"
	"github.com/thenexusengine/tne_hubvisor/internal/openrtb"
	"github.com/thenexusengine/tne_hubvisor/pkg/logger"
)

func init() {
	logger.Init(logger.Config{
		Level:      "error",
		Format:     "json",
		TimeFormat: time.RFC3339,
	})
}

func testConfig() *ServerConfig {
	return &ServerConfig{
		Port:            "8080",
		Timeout:         time.Second,
		MaxBodySize:     config.DefaultMaxBodySize,
		SettingsRefresh: time.Minute,
		PixelSyncs:      true,
		DefaultCurrency: "USD",
	}
}

func newTestServer(t *testing.T, cfg *ServerConfig) *Server {
	t.Helper()
	server, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	t.Cleanup(func() {
		if server.stopRefresh != nil {
			server.stopRefresh()
		}
		config.Global.SetTestMode(false)
	})
	return server
}

func TestNewServer_MinimalConfig(t *testing.T) {
	server := newTestServer(t, testConfig())

	if server.httpServer == nil || server.httpServer.Addr != ":8080" {
		t.Error("Expected HTTP server to be initialized")
	}
	if server.metrics == nil {
		t.Error("Expected metrics to be initialized")
	}
	if server.exchange == nil {
		t.Error("Expected exchange to be initialized")
	}
	if server.redisClient != nil {
		t.Error("Expected no Redis client without REDIS_URL")
	}
}

func TestNewServer_TestModeFlag(t *testing.T) {
	cfg := testConfig()
	cfg.TestMode = true
	newTestServer(t, cfg)

	if !config.Global.TestMode() {
		t.Error("Expected test mode from configuration")
	}
}

func TestNewServer_InvalidEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.AuctionEndpoint = "not a url"

	if _, err := NewServer(cfg); err == nil {
		t.Error("Expected an error for an invalid endpoint")
	}
}

func TestNewServer_WithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()
	mr.HSet(config.SettingsRedisKey, config.SettingsTestField, "true")

	cfg := testConfig()
	cfg.RedisURL = "redis://" + mr.Addr()
	server := newTestServer(t, cfg)

	if server.redisClient == nil {
		t.Fatal("Expected Redis client")
	}
	if !config.Global.TestMode() {
		t.Error("Expected test mode loaded from Redis")
	}

	rec := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected ready, got %d: %s", rec.Code, rec.Body.String())
	}

	mr.Close()
	rec = httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected not ready after Redis is gone, got %d", rec.Code)
	}
}

func TestServer_Routes(t *testing.T) {
	server := newTestServer(t, testConfig())
	handler := server.httpServer.Handler

	tests := []struct {
		method   string
		path     string
		expected int
		contains string
	}{
		{http.MethodGet, "/status", http.StatusOK, `"status":"ok"`},
		{http.MethodGet, "/health/ready", http.StatusOK, `"disabled"`},
		{http.MethodGet, "/info/bidders", http.StatusOK, "hubvisor"},
		{http.MethodGet, "/info/bidders/hubvisor", http.StatusOK, `"gvlVendorID":1112`},
		{http.MethodGet, "/openrtb2/auction", http.StatusMethodNotAllowed, "Method not allowed"},
		{http.MethodGet, "/metrics", http.StatusOK, "hubvisor_http_requests_total"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("Expected %q in %s", tt.contains, rec.Body.String())
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("Expected a request ID header")
			}
		})
	}
}

func TestServer_AuctionEndToEnd(t *testing.T) {
	var auctionPayload map[string]interface{}
	hubvisor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sync":
			if r.URL.Query().Get("placement_ids") != "p1" {
				t.Errorf("Unexpected sync query %s", r.URL.RawQuery)
			}
			w.Write([]byte(`{"bidders":[{"type":"image","url":"https://sync.test/px"}]}`))
		case "/auction":
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, &auctionPayload)
			w.Write([]byte(`{"id":"a1","seatbid":[{"bid":[{"id":"b1","impid":"1","price":1.5,"adm":"<div/>","w":300,"h":250,"mtype":1}]}]}`))
		}
	}))
	defer hubvisor.Close()

	cfg := testConfig()
	cfg.TestMode = true
	cfg.AuctionEndpoint = hubvisor.URL + "/auction"
	cfg.SyncEndpoint = hubvisor.URL + "/sync"
	server := newTestServer(t, cfg)

	body := `{"id":"a1","imp":[{"id":"1","banner":{"format":[{"w":300,"h":250}]},"ext":{"bidder":{"placementId":"p1"}}}],"site":{"page":"https://pub.test"}}`
	rec := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/openrtb2/auction", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if auctionPayload["test"] != float64(1) {
		t.Errorf("Expected test flag on the outgoing auction, got %v", auctionPayload["test"])
	}

	var resp openrtb.BidResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Bad response: %v", err)
	}
	if len(resp.SeatBid) != 1 || resp.SeatBid[0].Seat != "hubvisor" || resp.SeatBid[0].Bid[0].Price != 1.5 {
		t.Errorf("Unexpected response %+v", resp)
	}
	if !strings.Contains(string(resp.Ext), "https://sync.test/px") {
		t.Errorf("Expected user sync in ext, got %s", resp.Ext)
	}
}

func TestServer_Shutdown(t *testing.T) {
	server := newTestServer(t, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Errorf("Unexpected shutdown error: %v", err)
	}
}
