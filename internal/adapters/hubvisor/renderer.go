package hubvisor

import (
	"github.com/thenexusengine/tne_hubvisor/internal/outstream"
	"github.com/thenexusengine/tne_hubvisor/pkg/logger"
)

// NewOutstreamRenderer builds the renderer for a video bid. The player script
// at playerURL is expected to install window.HbvPlayer.
func NewOutstreamRenderer(bidID, playerURL string, params *VideoParams) *outstream.Renderer {
	var cfg outstream.Config
	if params != nil {
		cfg = outstream.Config{
			MaxWidth:    params.MaxWidth,
			TargetRatio: params.TargetRatio,
			Selector:    params.Selector,
		}
	}

	r := outstream.New(bidID, playerURL, cfg)
	r.SetRender(render)
	return r
}

// render queues playback until the player script is loaded
func render(r *outstream.Renderer, page outstream.Page, bid outstream.Bid) {
	cfg := r.Config

	r.Push(func() {
		container := outstream.SelectorContainer(containerSelector(page, cfg, bid.AdUnitCode))
		err := outstream.Play(page, container, outstream.PlayOptions{
			VastXML:      bid.VastXML,
			VastURL:      bid.VastURL,
			TargetWidth:  bid.Width,
			TargetHeight: bid.Height,
			MaxWidth:     cfg.MaxWidth,
			TargetRatio:  cfg.TargetRatio,
			Expand:       outstream.ExpandNoLazyLoad,
			OnEvent: func(event string) {
				onPlayerEvent(bid.AdUnitCode, event)
			},
		})
		if err != nil {
			logger.Outstream().Error().
				Err(err).
				Str("bid_id", bid.ID).
				Str("ad_unit", bid.AdUnitCode).
				Msg("outstream playback aborted")
		}
	})
}

// containerSelector prefers the configured selector, then the ad-unit code as
// an element id
func containerSelector(page outstream.Page, cfg outstream.Config, adUnitCode string) string {
	if cfg.Selector != "" {
		return cfg.Selector
	}
	if escaped, ok := page.EscapeCSS(adUnitCode); ok {
		return "#" + escaped
	}
	return "#" + adUnitCode
}

func onPlayerEvent(adUnitCode, event string) {
	log := logger.Outstream()

	switch event {
	case outstream.EventImpression:
		log.Info().Str("ad_unit", adUnitCode).Msg("video impression")
	case outstream.EventError:
		log.Warn().Str("ad_unit", adUnitCode).Msg("error while playing video")
	}
}
