package outstream_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/thenexusengine/tne_hubvisor/internal/outstream"
	"github.com/thenexusengine/tne_hubvisor/internal/outstream/outstreamtest"
)

func TestRenderer_New(t *testing.T) {
	cfg := outstream.Config{MaxWidth: 640, TargetRatio: 1.5, Selector: "#slot"}
	r := outstream.New("bid-1", "https://cdn.example/player.js", cfg)

	if r.ID != "bid-1" || r.URL != "https://cdn.example/player.js" {
		t.Errorf("Unexpected identity %q %q", r.ID, r.URL)
	}
	if r.Loaded() {
		t.Error("Expected new renderer not to be loaded")
	}
	if r.Config != cfg {
		t.Errorf("Expected config %+v, got %+v", cfg, r.Config)
	}
}

func TestRenderer_PushQueuesUntilLoaded(t *testing.T) {
	r := outstream.New("bid-1", "", outstream.Config{})

	var order []int
	r.Push(func() { order = append(order, 1) })
	r.Push(func() { order = append(order, 2) })

	if len(order) != 0 {
		t.Fatalf("Expected queued commands not to run, ran %v", order)
	}

	r.MarkLoaded()
	if !reflect.DeepEqual(order, []int{1, 2}) {
		t.Errorf("Expected [1 2], got %v", order)
	}

	r.Push(func() { order = append(order, 3) })
	if !reflect.DeepEqual(order, []int{1, 2, 3}) {
		t.Errorf("Expected immediate run after load, got %v", order)
	}

	r.MarkLoaded()
	if len(order) != 3 {
		t.Errorf("Expected second MarkLoaded to be a no-op, got %v", order)
	}
}

func TestRenderer_Render(t *testing.T) {
	r := outstream.New("bid-1", "", outstream.Config{})
	page := outstreamtest.NewPage()

	if err := r.Render(page, outstream.Bid{}); !errors.Is(err, outstream.ErrNoRender) {
		t.Fatalf("Expected ErrNoRender, got %v", err)
	}

	var got outstream.Bid
	r.SetRender(func(rr *outstream.Renderer, p outstream.Page, bid outstream.Bid) {
		if rr != r {
			t.Error("Expected callback to receive its renderer")
		}
		got = bid
	})

	bid := outstream.Bid{ID: "bid-1", AdUnitCode: "slot"}
	if err := r.Render(page, bid); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != bid {
		t.Errorf("Expected %+v, got %+v", bid, got)
	}
}

func TestContainer_Resolve(t *testing.T) {
	page := outstreamtest.NewPage("#slot")
	slot, _ := page.QuerySelector("#slot")

	tests := []struct {
		name      string
		container outstream.Container
		wantErr   bool
	}{
		{"element", outstream.ElementContainer{Element: slot}, false},
		{"nil element", outstream.ElementContainer{}, true},
		{"selector found", outstream.SelectorContainer("#slot"), false},
		{"selector missing", outstream.SelectorContainer("#other"), true},
		{"func found", outstream.SelectorFunc(func(p outstream.Page) outstream.Element {
			el, _ := p.QuerySelector("#slot")
			return el
		}), false},
		{"func missing", outstream.SelectorFunc(func(outstream.Page) outstream.Element { return nil }), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, err := tt.container.Resolve(page)
			if tt.wantErr {
				if !errors.Is(err, outstream.ErrContainerNotFound) {
					t.Errorf("Expected ErrContainerNotFound, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if el != slot {
				t.Errorf("Expected slot element, got %v", el)
			}
		})
	}
}

func TestPlay(t *testing.T) {
	opts := outstream.PlayOptions{VastXML: "<VAST/>", Expand: outstream.ExpandNoLazyLoad}

	t.Run("plays into resolved container", func(t *testing.T) {
		page := outstreamtest.NewPage("#slot")
		if err := outstream.Play(page, outstream.SelectorContainer("#slot"), opts); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		plays := page.Plays()
		if len(plays) != 1 {
			t.Fatalf("Expected 1 play, got %d", len(plays))
		}
		if plays[0].Options.VastXML != "<VAST/>" {
			t.Errorf("Unexpected options %+v", plays[0].Options)
		}
	})

	t.Run("missing player", func(t *testing.T) {
		page := outstreamtest.NewPage("#slot")
		page.NoPlayer = true
		err := outstream.Play(page, outstream.SelectorContainer("#slot"), opts)
		if !errors.Is(err, outstream.ErrPlayerMissing) {
			t.Errorf("Expected ErrPlayerMissing, got %v", err)
		}
	})

	t.Run("missing container", func(t *testing.T) {
		page := outstreamtest.NewPage()
		err := outstream.Play(page, outstream.SelectorContainer("#slot"), opts)
		if !errors.Is(err, outstream.ErrContainerNotFound) {
			t.Errorf("Expected ErrContainerNotFound, got %v", err)
		}
		if len(page.Plays()) != 0 {
			t.Error("Expected nothing played")
		}
	})
}
