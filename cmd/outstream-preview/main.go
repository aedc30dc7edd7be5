// Package main plays a Hubvisor outstream video bid in a Chrome tab over the
// DevTools protocol, the way the adapter's renderer plays it on a publisher page
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thenexusengine/tne_hubvisor/internal/adapters"
	"github.com/thenexusengine/tne_hubvisor/internal/adapters/hubvisor"
	"github.com/thenexusengine/tne_hubvisor/internal/config"
	"github.com/thenexusengine/tne_hubvisor/internal/openrtb"
	"github.com/thenexusengine/tne_hubvisor/internal/outstream/devtools"
	"github.com/thenexusengine/tne_hubvisor/pkg/logger"
)

// options are the preview settings
type options struct {
	DevtoolsURL string
	PageURL     string
	PlayerURL   string
	AdUnitCode  string
	VastFile    string
	VastURL     string
	Width       int
	Height      int
	Params      hubvisor.VideoParams
	Container   bool
	Wait        time.Duration
}

func parseOptions(args []string) (*options, error) {
	fs := flag.NewFlagSet("outstream-preview", flag.ContinueOnError)

	o := &options{}
	fs.StringVar(&o.DevtoolsURL, "devtools", "http://127.0.0.1:9222", "Chrome DevTools HTTP endpoint")
	fs.StringVar(&o.PageURL, "page", "", "Page to open before rendering (current tab when empty)")
	fs.StringVar(&o.PlayerURL, "player", config.HubvisorPlayerURL, "Player script URL")
	fs.StringVar(&o.AdUnitCode, "ad-unit", "video", "Ad unit code, used as the container id")
	fs.StringVar(&o.VastFile, "vast", "", "File with inline VAST XML")
	fs.StringVar(&o.VastURL, "vast-url", "", "URL serving the VAST XML")
	fs.IntVar(&o.Width, "width", 640, "Creative width")
	fs.IntVar(&o.Height, "height", 360, "Creative height")
	fs.IntVar(&o.Params.MaxWidth, "max-width", 0, "Player max width")
	fs.Float64Var(&o.Params.TargetRatio, "ratio", 0, "Player target ratio")
	fs.StringVar(&o.Params.Selector, "selector", "", "Container CSS selector overriding the ad unit id")
	fs.BoolVar(&o.Container, "create-container", true, "Append a container div for the ad unit when the page has none")
	fs.DurationVar(&o.Wait, "wait", 30*time.Second, "How long to keep listening for player events")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if (o.VastFile == "") == (o.VastURL == "") {
		return nil, errors.New("exactly one of -vast or -vast-url is required")
	}
	if o.AdUnitCode == "" {
		return nil, errors.New("-ad-unit must not be empty")
	}
	return o, nil
}

// previewBid builds the video bid the renderer plays
func previewBid(o *options) (*adapters.TypedBid, error) {
	bid := &openrtb.Bid{
		ID:    "preview-" + o.AdUnitCode,
		ImpID: o.AdUnitCode,
		W:     o.Width,
		H:     o.Height,
		NURL:  o.VastURL,
		MType: openrtb.MarkupVideo,
	}
	if o.VastFile != "" {
		vast, err := os.ReadFile(o.VastFile)
		if err != nil {
			return nil, fmt.Errorf("reading VAST: %w", err)
		}
		bid.AdM = string(vast)
	}

	params := o.Params
	return &adapters.TypedBid{
		Bid:        bid,
		BidType:    adapters.BidTypeVideo,
		AdUnitCode: o.AdUnitCode,
		TTL:        config.DefaultBidTTL,
		NetRevenue: true,
		Renderer:   hubvisor.NewOutstreamRenderer(bid.ID, o.PlayerURL, &params),
	}, nil
}

// containerScript appends <div id=adUnit> unless selector or the id already matches
func containerScript(adUnitCode, selector string) (string, error) {
	id, err := json.Marshal(adUnitCode)
	if err != nil {
		return "", err
	}
	if selector != "" {
		sel, err := json.Marshal(selector)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(`document.querySelector(%s) !== null`, sel), nil
	}
	return fmt.Sprintf(`(function() {
  if (document.getElementById(%[1]s)) { return true; }
  var d = document.createElement("div");
  d.id = %[1]s;
  document.body.appendChild(d);
  return true;
})()`, id), nil
}

func run(ctx context.Context, o *options) error {
	log := logger.Outstream()

	tb, err := previewBid(o)
	if err != nil {
		return err
	}

	session, err := devtools.Dial(ctx, o.DevtoolsURL)
	if err != nil {
		return err
	}
	defer session.Close()

	if o.PageURL != "" {
		if err := session.Navigate(ctx, o.PageURL); err != nil {
			return fmt.Errorf("navigating: %w", err)
		}
	}

	page := devtools.NewPage(session)
	if err := session.Listen(ctx, page); err != nil {
		return fmt.Errorf("installing event binding: %w", err)
	}

	if o.Container {
		script, err := containerScript(o.AdUnitCode, o.Params.Selector)
		if err != nil {
			return err
		}
		if _, err := session.Evaluate(ctx, script); err != nil {
			return fmt.Errorf("preparing container: %w", err)
		}
	}

	renderer := tb.Renderer
	if err := renderer.Render(page, tb.OutstreamBid()); err != nil {
		return err
	}

	log.Info().Str("player", renderer.URL).Msg("loading player script")
	if err := page.LoadScript(ctx, renderer.URL); err != nil {
		return fmt.Errorf("loading player: %w", err)
	}
	renderer.MarkLoaded()

	log.Info().Dur("wait", o.Wait).Msg("listening for player events")
	select {
	case <-ctx.Done():
	case <-time.After(o.Wait):
	}
	return nil
}

func main() {
	logger.Init(logger.DefaultConfig())

	o, err := parseOptions(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Log.Fatal().Err(err).Msg("Invalid options")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o); err != nil {
		logger.Log.Fatal().Err(err).Msg("Preview failed")
	}
}
