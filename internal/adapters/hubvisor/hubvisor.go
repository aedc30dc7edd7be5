// Package hubvisor implements the Hubvisor bidder adapter. Every auction makes
// two calls: a cookie-sync GET whose answer feeds UserSyncs, and the OpenRTB
// auction POST. Outstream video bids get a renderer bound to the Hubvisor player.
package hubvisor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/thenexusengine/tne_hubvisor/internal/adapters"
	"github.com/thenexusengine/tne_hubvisor/internal/adapters/ortb"
	"github.com/thenexusengine/tne_hubvisor/internal/config"
	"github.com/thenexusengine/tne_hubvisor/internal/openrtb"
	"github.com/thenexusengine/tne_hubvisor/internal/usersync"
	"github.com/thenexusengine/tne_hubvisor/pkg/logger"
)

const (
	bidderCode = config.HubvisorBidderCode

	// rendererName is reported in bid meta for outstream bids
	rendererName = "hubvisor"
)

// Adapter implements the Hubvisor bidder
type Adapter struct {
	auctionEndpoint string
	syncEndpoint    string
	playerURL       string
	settings        *config.Settings
	converter       *ortb.Converter
}

// auctionContext travels on the auction RequestData so MakeBids sees the
// request it answers. Nothing here is shared between auctions.
type auctionContext struct {
	request     *ortb.Request
	videoParams VideoParamsByBidID
}

// New creates a Hubvisor adapter. Empty endpoints mean the production ones;
// nil settings mean config.Global.
func New(auctionEndpoint, syncEndpoint string, settings *config.Settings) *Adapter {
	if auctionEndpoint == "" {
		auctionEndpoint = config.HubvisorAuctionEndpoint
	}
	if syncEndpoint == "" {
		syncEndpoint = config.HubvisorSyncEndpoint
	}
	if settings == nil {
		settings = config.Global
	}

	a := &Adapter{
		auctionEndpoint: auctionEndpoint,
		syncEndpoint:    syncEndpoint,
		playerURL:       config.HubvisorPlayerURL,
		settings:        settings,
	}
	a.converter = ortb.NewConverter(
		ortb.Context{
			NetRevenue: true,
			TTL:        config.DefaultBidTTL,
			Currency:   config.DefaultCurrency,
		},
		ortb.WithImpHook(buildImp),
		ortb.WithRequestHook(a.buildRequest),
	)
	return a
}

// Builder builds the adapter from runtime configuration
func Builder(cfg adapters.AdapterConfig) (adapters.Adapter, error) {
	for _, endpoint := range []string{cfg.Endpoint, cfg.UserSyncEndpoint} {
		if endpoint == "" {
			continue
		}
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
		}
	}
	return New(cfg.Endpoint, cfg.UserSyncEndpoint, config.Global), nil
}

// IsBidRequestValid accepts every imp. Bad params surface in the auction response.
func (a *Adapter) IsBidRequestValid(*openrtb.Imp) bool {
	return true
}

// MakeRequests returns the sync request followed by the auction request
func (a *Adapter) MakeRequests(request *openrtb.BidRequest, extraInfo *adapters.ExtraRequestInfo) ([]*adapters.RequestData, []error) {
	if request == nil {
		return nil, []error{adapters.NewBadInputError(bidderCode, "nil bid request")}
	}

	var privacy adapters.GlobalPrivacy
	if extraInfo != nil {
		privacy = extraInfo.GlobalPrivacy
	}

	placementIDs := make([]string, 0, len(request.Imp))
	video := make(VideoParamsByBidID)
	for i := range request.Imp {
		imp := &request.Imp[i]
		if p, ok := placementID(imp); ok {
			placementIDs = append(placementIDs, p.id)
		}
		if imp.Video != nil {
			video[imp.ID] = videoParams(imp)
		}
	}

	syncReq := newSyncRequest(placementIDs, privacy)
	syncURI, err := withQuery(a.syncEndpoint, syncReq.Query())
	if err != nil {
		return nil, []error{adapters.NewBadInputError(bidderCode, err.Error())}
	}

	auctionReq, err := a.converter.ToORTB(request, extraInfo)
	if err != nil {
		return nil, []error{adapters.NewMarshalError(bidderCode, err)}
	}
	body, err := json.Marshal(auctionReq)
	if err != nil {
		return nil, []error{adapters.NewMarshalError(bidderCode, err)}
	}

	syncHeaders := http.Header{}
	syncHeaders.Set("Accept", "application/json")

	auctionHeaders := http.Header{}
	auctionHeaders.Set("Content-Type", "application/json;charset=utf-8")
	auctionHeaders.Set("Accept", "application/json")

	logger.Log.Debug().
		Str("bidder", bidderCode).
		Str("request_id", request.ID).
		Int("imps", len(request.Imp)).
		Int("placements", len(placementIDs)).
		Int("video_imps", len(video)).
		Msg("built hubvisor requests")

	return []*adapters.RequestData{
		{
			Method:  http.MethodGet,
			URI:     syncURI,
			Headers: syncHeaders,
			Aux:     syncReq,
		},
		{
			Method:  http.MethodPost,
			URI:     a.auctionEndpoint,
			Body:    body,
			Headers: auctionHeaders,
			Aux:     &auctionContext{request: auctionReq, videoParams: video},
		},
	}, nil
}

// MakeBids parses the auction response. The sync response carries no bids.
func (a *Adapter) MakeBids(request *openrtb.BidRequest, requestData *adapters.RequestData, responseData *adapters.ResponseData) (*adapters.BidderResponse, []error) {
	if requestData == nil || responseData == nil {
		return nil, nil
	}
	auction, ok := requestData.Aux.(*auctionContext)
	if !ok {
		return nil, nil
	}

	if adapters.IsResponseStatusCodeNoContent(responseData) {
		return nil, nil
	}
	if err := adapters.CheckResponseStatusCodeForErrors(bidderCode, responseData); err != nil {
		return nil, []error{err}
	}

	converted, err := a.converter.FromORTB(auction.request, responseData.Body)
	if err != nil {
		return nil, []error{adapters.NewParseError(bidderCode, err)}
	}

	response := &adapters.BidderResponse{
		Currency:   converted.Currency,
		ResponseID: converted.ID,
		Bids:       converted.Bids,
	}

	for _, bid := range response.Bids {
		if bid.BidType != adapters.BidTypeVideo {
			continue
		}
		params, _ := auction.videoParams.take(bid.Bid.ImpID)
		bid.Renderer = NewOutstreamRenderer(bid.Bid.ID, a.playerURL, params)
		if bid.BidMeta != nil {
			bid.BidMeta.RendererName = rendererName
			bid.BidMeta.RendererVersion = config.HubvisorAdapterVersion
			bid.BidMeta.RendererURL = a.playerURL
		}
	}

	return response, nil
}

// buildRequest relocates the publisher under site and sets the test flag.
// Without a host publisher, an existing site.publisher is left as is.
func (a *Adapter) buildRequest(req *ortb.Request, _ *adapters.ExtraRequestInfo) error {
	if req.Site != nil && req.Publisher != nil {
		req.Site.Publisher = req.Publisher
	}
	req.Publisher = nil

	if a.settings.TestMode() {
		req.Test = 1
	} else {
		req.Test = 0
	}
	return nil
}

// buildImp moves the placement id into ext.hubvisor.placementId
func buildImp(imp *openrtb.Imp) error {
	p, ok := placementID(imp)
	ext, err := vendorImpExt(imp.Ext, p, ok)
	if err != nil {
		return fmt.Errorf("imp %s: %w", imp.ID, err)
	}
	imp.Ext = ext
	return nil
}

// UserSyncs reads the sync directives from the sync response. Anything but
// exactly the sync and auction responses yields nil.
func (a *Adapter) UserSyncs(responses []*adapters.ResponseData) []usersync.Sync {
	if len(responses) != 2 || responses[0] == nil {
		return nil
	}
	return parseSyncResponse(responses[0].Body)
}

func withQuery(endpoint string, query url.Values) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range query {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Info returns bidder information
func Info() adapters.BidderInfo {
	return adapters.BidderInfo{
		Enabled:     true,
		Version:     config.HubvisorAdapterVersion,
		GVLVendorID: config.HubvisorGVLVendorID,
		Endpoint:    config.HubvisorAuctionEndpoint,
		Capabilities: &adapters.CapabilitiesInfo{
			Site: &adapters.PlatformInfo{
				MediaTypes: []adapters.BidType{
					adapters.BidTypeBanner,
					adapters.BidTypeVideo,
				},
			},
		},
		Syncer: &adapters.SyncerInfo{
			Supports: []usersync.SyncType{usersync.SyncTypeImage, usersync.SyncTypeIframe},
		},
	}
}

func init() {
	if err := adapters.RegisterAdapter(bidderCode, Builder, Info()); err != nil {
		panic(fmt.Sprintf("failed to register %s adapter: %v", bidderCode, err))
	}
}
