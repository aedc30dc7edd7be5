package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/thenexusengine/tne_hubvisor/internal/config"
)

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"vast url", []string{"-vast-url", "https://ads.test/vast.xml"}, false},
		{"vast file", []string{"-vast", "ad.xml"}, false},
		{"no creative", nil, true},
		{"both creatives", []string{"-vast", "ad.xml", "-vast-url", "https://ads.test/vast.xml"}, true},
		{"empty ad unit", []string{"-vast", "ad.xml", "-ad-unit", ""}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseOptions(tt.args)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseOptions(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
		})
	}
}

func TestParseOptions_Defaults(t *testing.T) {
	o, err := parseOptions([]string{"-vast-url", "https://ads.test/vast.xml", "-max-width", "500", "-ratio", "1.5"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if o.PlayerURL != config.HubvisorPlayerURL || o.AdUnitCode != "video" || !o.Container {
		t.Errorf("Unexpected defaults %+v", o)
	}
	if o.Params.MaxWidth != 500 || o.Params.TargetRatio != 1.5 {
		t.Errorf("Unexpected params %+v", o.Params)
	}
}

func TestPreviewBid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ad.xml")
	if err := os.WriteFile(path, []byte("<VAST/>"), 0o600); err != nil {
		t.Fatal(err)
	}

	o, err := parseOptions([]string{"-vast", path, "-ad-unit", "slot-1", "-selector", ".player"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	tb, err := previewBid(o)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	ob := tb.OutstreamBid()
	if ob.VastXML != "<VAST/>" || ob.VastURL != "" || ob.AdUnitCode != "slot-1" || ob.Width != 640 {
		t.Errorf("Unexpected outstream bid %+v", ob)
	}
	if tb.Renderer == nil || tb.Renderer.ID != ob.ID || tb.Renderer.Config.Selector != ".player" {
		t.Errorf("Unexpected renderer %+v", tb.Renderer)
	}
	if tb.Renderer.Loaded() {
		t.Error("Expected the renderer to wait for the player script")
	}

	o.VastFile = filepath.Join(t.TempDir(), "missing.xml")
	if _, err := previewBid(o); err == nil {
		t.Error("Expected an error for a missing VAST file")
	}
}

func TestContainerScript(t *testing.T) {
	script, err := containerScript(`slot"1`, "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(script, `getElementById("slot\"1")`) || !strings.Contains(script, "appendChild") {
		t.Errorf("Unexpected script %s", script)
	}

	script, _ = containerScript("slot", "#player")
	if script != `document.querySelector("#player") !== null` {
		t.Errorf("Unexpected selector script %s", script)
	}
}
