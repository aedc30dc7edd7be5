// Package endpoints provides HTTP endpoint handlers
package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/thenexusengine/tne_hubvisor/internal/adapters"
	"github.com/thenexusengine/tne_hubvisor/internal/exchange"
	"github.com/thenexusengine/tne_hubvisor/internal/openrtb"
	"github.com/thenexusengine/tne_hubvisor/pkg/logger"
)

// maxRequestBodySize limits request body reads (1MB)
const maxRequestBodySize = 1024 * 1024

// Auctioneer runs auctions. *exchange.Exchange implements it.
type Auctioneer interface {
	RunAuction(ctx context.Context, req *exchange.AuctionRequest) (*exchange.AuctionResponse, error)
}

// AuctionHandler handles /openrtb2/auction requests
type AuctionHandler struct {
	exchange Auctioneer
	timeout  time.Duration
}

// NewAuctionHandler creates a new auction handler. timeout applies when the
// request carries no tmax.
func NewAuctionHandler(ex Auctioneer, timeout time.Duration) *AuctionHandler {
	return &AuctionHandler{exchange: ex, timeout: timeout}
}

// ServeHTTP handles the auction request
func (h *AuctionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	log := logger.FromContext(r.Context())

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var bidRequest openrtb.BidRequest
	if err := json.Unmarshal(body, &bidRequest); err != nil {
		log.Warn().Err(err).Msg("Invalid JSON in bid request")
		writeError(w, "Invalid JSON in request body", http.StatusBadRequest)
		return
	}

	auctionReq := &exchange.AuctionRequest{BidRequest: &bidRequest}
	if bidRequest.TMax == 0 {
		auctionReq.Timeout = h.timeout
	}

	ctx := logger.WithAuctionID(r.Context(), bidRequest.ID)
	auctionStart := time.Now()
	result, err := h.exchange.RunAuction(ctx, auctionReq)
	auctionDuration := time.Since(auctionStart)

	if err != nil {
		var verr *exchange.RequestValidationError
		if errors.As(err, &verr) {
			writeError(w, verr.Error(), http.StatusBadRequest)
			return
		}
		log.Error().
			Err(err).
			Str("auction_id", bidRequest.ID).
			Int("imp_count", len(bidRequest.Imp)).
			Dur("duration_ms", auctionDuration).
			Msg("Auction failed")
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	renderers := 0
	for _, bid := range result.Bids {
		if bid.Renderer != nil {
			renderers++
		}
	}

	log.Info().
		Str("auction_id", bidRequest.ID).
		Int("imp_count", len(bidRequest.Imp)).
		Int("bid_count", len(result.Bids)).
		Int("renderers", renderers).
		Int("user_syncs", len(result.UserSyncs)).
		Int("errors", len(result.Errors)).
		Bool("timed_out", result.TimedOut).
		Dur("duration_ms", auctionDuration).
		Msg("Auction completed")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result.BidResponse); err != nil {
		log.Error().Err(err).Str("auction_id", bidRequest.ID).Msg("failed to encode auction response")
	}
}

// writeError writes an error response
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		logger.HTTP().Error().Err(err).Str("message", message).Msg("failed to encode error response")
	}
}

// StatusHandler handles /status requests
type StatusHandler struct{}

// NewStatusHandler creates a new status handler
func NewStatusHandler() *StatusHandler {
	return &StatusHandler{}
}

// ServeHTTP handles status requests
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		logger.HTTP().Error().Err(err).Msg("failed to encode status response")
	}
}

// BidderLister lists registered bidders
type BidderLister interface {
	List() []string
	Get(bidderCode string) (adapters.AdapterWithInfo, bool)
}

// InfoBiddersHandler handles /info/bidders and /info/bidders/{code}
type InfoBiddersHandler struct {
	registry BidderLister
}

// NewInfoBiddersHandler creates a handler reading registry at request time
func NewInfoBiddersHandler(registry BidderLister) *InfoBiddersHandler {
	return &InfoBiddersHandler{registry: registry}
}

// bidderInfoResponse is the public view of adapters.BidderInfo
type bidderInfoResponse struct {
	Enabled     bool     `json:"enabled"`
	Version     string   `json:"version,omitempty"`
	GVLVendorID int      `json:"gvlVendorID,omitempty"`
	Endpoint    string   `json:"endpoint,omitempty"`
	SiteMedia   []string `json:"siteMediaTypes,omitempty"`
	UserSyncs   []string `json:"userSyncs,omitempty"`
}

// ServeHTTP handles info/bidders requests
func (h *InfoBiddersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("bidder")
	if code == "" {
		writeJSON(w, h.registry.List())
		return
	}

	entry, ok := h.registry.Get(code)
	if !ok {
		writeError(w, "unknown bidder: "+code, http.StatusNotFound)
		return
	}

	info := entry.Info
	resp := bidderInfoResponse{
		Enabled:     info.Enabled,
		Version:     info.Version,
		GVLVendorID: info.GVLVendorID,
		Endpoint:    info.Endpoint,
	}
	if info.Capabilities != nil && info.Capabilities.Site != nil {
		for _, mt := range info.Capabilities.Site.MediaTypes {
			resp.SiteMedia = append(resp.SiteMedia, string(mt))
		}
	}
	if info.Syncer != nil {
		for _, st := range info.Syncer.Supports {
			resp.UserSyncs = append(resp.UserSyncs, string(st))
		}
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.HTTP().Error().Err(err).Msg("failed to encode response")
	}
}
