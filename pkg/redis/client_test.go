package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, string) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, "redis://" + mr.Addr()
}

func TestNew_Success(t *testing.T) {
	_, redisURL := setupTestRedis(t)

	client, err := New(redisURL)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNew_BadURLs(t *testing.T) {
	for _, url := range []string{"", "not-a-valid-redis-url"} {
		client, err := New(url)
		if err == nil {
			t.Errorf("Expected error for URL %q", url)
		}
		if client != nil {
			t.Errorf("Expected nil client for URL %q", url)
		}
	}
}

func TestNewWithConfig_NilConfig(t *testing.T) {
	_, redisURL := setupTestRedis(t)

	client, err := NewWithConfig(redisURL, nil)
	if err != nil {
		t.Fatalf("Expected nil config to fall back to defaults: %v", err)
	}
	defer client.Close()
}

func TestNew_UnreachableServerIsNotFatal(t *testing.T) {
	mr, redisURL := setupTestRedis(t)
	mr.Close()

	cfg := DefaultClientConfig()
	cfg.DialTimeout = 100 * time.Millisecond

	client, err := NewWithConfig(redisURL, cfg)
	if err != nil {
		t.Fatalf("Expected client despite unreachable server, got %v", err)
	}
	defer client.Close()

	if err := client.Ping(context.Background()); err == nil {
		t.Error("Expected ping to fail against a closed server")
	}
}

func TestClient_HashOperations(t *testing.T) {
	mr, redisURL := setupTestRedis(t)
	mr.HSet("hubvisor:settings", "test", "true")

	client, err := New(redisURL)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()
	ctx := context.Background()

	value, err := client.HGet(ctx, "hubvisor:settings", "test")
	if err != nil || value != "true" {
		t.Errorf("Expected 'true', got %q (err %v)", value, err)
	}

	missing, err := client.HGet(ctx, "hubvisor:settings", "missing")
	if err != nil || missing != "" {
		t.Errorf("Expected empty value and no error for missing field, got %q (err %v)", missing, err)
	}

	if err := client.HSet(ctx, "hubvisor:settings", "ttl", 30); err != nil {
		t.Fatalf("HSet failed: %v", err)
	}

	all, err := client.HGetAll(ctx, "hubvisor:settings")
	if err != nil {
		t.Fatalf("HGetAll failed: %v", err)
	}
	if len(all) != 2 || all["ttl"] != "30" {
		t.Errorf("Unexpected hash contents: %v", all)
	}

	empty, err := client.HGetAll(ctx, "hubvisor:nothing")
	if err != nil || len(empty) != 0 {
		t.Errorf("Expected empty map for missing key, got %v (err %v)", empty, err)
	}
}
