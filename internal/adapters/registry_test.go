package adapters

import (
	"errors"
	"reflect"
	"testing"

	"github.com/thenexusengine/tne_hubvisor/internal/openrtb"
)

type nopAdapter struct {
	endpoint string
}

func (a *nopAdapter) MakeRequests(*openrtb.BidRequest, *ExtraRequestInfo) ([]*RequestData, []error) {
	return nil, nil
}

func (a *nopAdapter) MakeBids(*openrtb.BidRequest, *RequestData, *ResponseData) (*BidderResponse, []error) {
	return nil, nil
}

func nopBuilder(cfg AdapterConfig) (Adapter, error) {
	return &nopAdapter{endpoint: cfg.Endpoint}, nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("b", nopBuilder, BidderInfo{Enabled: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register("a", nopBuilder, BidderInfo{Enabled: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := r.Register("a", nopBuilder, BidderInfo{}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
	if err := r.Register("", nopBuilder, BidderInfo{}); err == nil {
		t.Error("expected empty code to fail")
	}
	if err := r.Register("c", nil, BidderInfo{}); err == nil {
		t.Error("expected nil builder to fail")
	}

	if got := r.List(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("expected sorted [a b], got %v", got)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("expected missing bidder not to be found")
	}
}

func TestRegistry_Build(t *testing.T) {
	r := NewRegistry()
	r.Register("on", nopBuilder, BidderInfo{Enabled: true, GVLVendorID: 7})
	r.Register("off", nopBuilder, BidderInfo{Enabled: false})
	r.Register("broken", func(AdapterConfig) (Adapter, error) {
		return nil, errors.New("bad endpoint")
	}, BidderInfo{Enabled: true})

	adapter, info, err := r.Build("on", AdapterConfig{Endpoint: "https://example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adapter.(*nopAdapter).endpoint != "https://example.com" {
		t.Error("expected config to reach the builder")
	}
	if info.GVLVendorID != 7 {
		t.Errorf("expected info to be returned, got %+v", info)
	}

	tests := []struct {
		name string
		code string
		cfg  AdapterConfig
	}{
		{"unknown", "missing", AdapterConfig{}},
		{"disabled in info", "off", AdapterConfig{}},
		{"disabled by config", "on", AdapterConfig{Disabled: true}},
		{"builder error", "broken", AdapterConfig{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := r.Build(tt.code, tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}
