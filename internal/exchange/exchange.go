// Package exchange runs auctions against a single bidder adapter and turns
// its bids into an OpenRTB response for the page
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/thenexusengine/tne_hubvisor/internal/adapters"
	"github.com/thenexusengine/tne_hubvisor/internal/openrtb"
	"github.com/thenexusengine/tne_hubvisor/internal/usersync"
	"github.com/thenexusengine/tne_hubvisor/pkg/logger"
)

// MetricsRecorder receives auction metrics. *metrics.Metrics implements it.
type MetricsRecorder interface {
	RecordAuction(status string, duration time.Duration)
	RecordBid(bidder, mediaType string, cpm float64)
	RecordBidderRequest(bidder, call string, latency time.Duration, hasError, timedOut bool)
	RecordBidderError(bidder, kind string)
	RecordRenderer(bidder string)
	RecordUserSync(bidder, syncType string)
	RecordConsentSignal(signalType string, hasConsent bool)
}

// Auction statuses reported to MetricsRecorder
const (
	StatusSuccess = "success"
	StatusNoBid   = "no_bid"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// maxAllowedTMax caps request tmax (ms)
const maxAllowedTMax = 10000

// Config holds exchange configuration
type Config struct {
	DefaultTimeout  time.Duration
	DefaultCurrency string
	// SyncOptions filters the user syncs returned to the page
	SyncOptions usersync.Options
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultTimeout:  1000 * time.Millisecond,
		DefaultCurrency: "USD",
		SyncOptions:     usersync.DefaultOptions(),
	}
}

// Exchange orchestrates auctions for one bidder
type Exchange struct {
	bidderCode string
	adapter    adapters.Adapter
	httpClient adapters.HTTPClient
	config     *Config
	metrics    MetricsRecorder
}

// New creates an exchange for adapter registered under bidderCode
func New(bidderCode string, adapter adapters.Adapter, config *Config) *Exchange {
	if config == nil {
		config = DefaultConfig()
	}
	if config.DefaultCurrency == "" {
		config.DefaultCurrency = "USD"
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = DefaultConfig().DefaultTimeout
	}

	return &Exchange{
		bidderCode: bidderCode,
		adapter:    adapter,
		httpClient: adapters.NewHTTPClient(config.DefaultTimeout),
		config:     config,
	}
}

// SetMetrics sets the metrics recorder
func (e *Exchange) SetMetrics(m MetricsRecorder) {
	e.metrics = m
}

// SetHTTPClient replaces the client used to reach the bidder
func (e *Exchange) SetHTTPClient(c adapters.HTTPClient) {
	e.httpClient = c
}

// AuctionRequest contains auction parameters
type AuctionRequest struct {
	BidRequest *openrtb.BidRequest
	Timeout    time.Duration
	// Publisher overrides the publisher taken from site or app
	Publisher *openrtb.Publisher
}

// AuctionResponse contains auction results
type AuctionResponse struct {
	BidResponse *openrtb.BidResponse
	// Bids are the adapter's bids in host shape, renderers attached
	Bids      []*adapters.TypedBid
	UserSyncs []usersync.Sync
	Errors    []error
	Latency   time.Duration
	TimedOut  bool
}

// RequestValidationError represents a bid request validation failure
type RequestValidationError struct {
	Field  string
	Reason string
}

func (e *RequestValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s - %s", e.Field, e.Reason)
}

// ValidateRequest performs OpenRTB 2.x request validation
func ValidateRequest(req *openrtb.BidRequest) *RequestValidationError {
	if req == nil {
		return &RequestValidationError{Field: "request", Reason: "nil request"}
	}
	if req.ID == "" {
		return &RequestValidationError{Field: "id", Reason: "missing required field"}
	}
	if len(req.Imp) == 0 {
		return &RequestValidationError{Field: "imp", Reason: "at least one impression is required"}
	}

	impIDs := make(map[string]struct{}, len(req.Imp))
	for i, imp := range req.Imp {
		if imp.ID == "" {
			return &RequestValidationError{
				Field:  fmt.Sprintf("imp[%d].id", i),
				Reason: "impression ID is required",
			}
		}
		if _, exists := impIDs[imp.ID]; exists {
			return &RequestValidationError{
				Field:  fmt.Sprintf("imp[%d].id", i),
				Reason: fmt.Sprintf("duplicate impression ID: %s", imp.ID),
			}
		}
		impIDs[imp.ID] = struct{}{}
	}

	if req.Site != nil && req.App != nil {
		return &RequestValidationError{
			Field:  "site/app",
			Reason: "request cannot contain both site and app objects",
		}
	}

	if req.TMax < 0 {
		return &RequestValidationError{
			Field:  "tmax",
			Reason: fmt.Sprintf("tmax cannot be negative: %d", req.TMax),
		}
	}

	return nil
}

// RunAuction executes one auction against the bidder
func (e *Exchange) RunAuction(ctx context.Context, req *AuctionRequest) (*AuctionResponse, error) {
	start := time.Now()

	if req == nil {
		return nil, &RequestValidationError{Field: "request", Reason: "nil auction request"}
	}
	if verr := ValidateRequest(req.BidRequest); verr != nil {
		e.recordAuction(StatusError, start)
		return nil, verr
	}

	bidReq := e.screenImps(req.BidRequest)
	if len(bidReq.Imp) == 0 {
		e.recordAuction(StatusNoBid, start)
		return &AuctionResponse{
			BidResponse: e.buildEmptyResponse(req.BidRequest, openrtb.NoBidInvalidRequest),
			Latency:     time.Since(start),
		}, nil
	}

	timeout := e.timeout(req)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	extraInfo := e.extraInfo(bidReq, req.Publisher)
	result := e.callBidder(ctx, bidReq, extraInfo, timeout)
	result.Latency = time.Since(start)

	if len(result.Bids) == 0 {
		nbr := openrtb.NoBidUnknown
		status := StatusNoBid
		if result.TimedOut {
			nbr = openrtb.NoBidTimeout
			status = StatusTimeout
		}
		result.BidResponse = e.buildEmptyResponse(bidReq, nbr)
		e.attachExt(result.BidResponse, result)
		e.recordAuction(status, start)
		return result, nil
	}

	result.BidResponse = e.buildResponse(bidReq, result)
	e.recordAuction(StatusSuccess, start)
	return result, nil
}

func (e *Exchange) timeout(req *AuctionRequest) time.Duration {
	timeout := req.Timeout
	if timeout <= 0 && req.BidRequest.TMax > 0 {
		tmax := req.BidRequest.TMax
		if tmax > maxAllowedTMax {
			tmax = maxAllowedTMax
		}
		timeout = time.Duration(tmax) * time.Millisecond
	}
	if timeout <= 0 {
		timeout = e.config.DefaultTimeout
	}
	return timeout
}

// screenImps drops imps the adapter rejects. The request is copied when
// anything is dropped.
func (e *Exchange) screenImps(req *openrtb.BidRequest) *openrtb.BidRequest {
	validator, ok := e.adapter.(adapters.BidRequestValidator)
	if !ok {
		return req
	}

	imps := make([]openrtb.Imp, 0, len(req.Imp))
	for i := range req.Imp {
		if validator.IsBidRequestValid(&req.Imp[i]) {
			imps = append(imps, req.Imp[i])
		} else {
			logger.Auction(req.ID).Debug().
				Str("bidder", e.bidderCode).
				Str("imp_id", req.Imp[i].ID).
				Msg("imp rejected by bidder")
		}
	}
	if len(imps) == len(req.Imp) {
		return req
	}

	screened := *req
	screened.Imp = imps
	return &screened
}

// extraInfo collects the consent signals the adapter needs from the request
func (e *Exchange) extraInfo(req *openrtb.BidRequest, publisher *openrtb.Publisher) *adapters.ExtraRequestInfo {
	info := &adapters.ExtraRequestInfo{BidderCoreName: e.bidderCode}

	if req.Regs != nil {
		if req.Regs.GDPR != nil && *req.Regs.GDPR == 1 {
			info.GlobalPrivacy.GDPR = true
		}
		info.GlobalPrivacy.CCPA = req.Regs.USPrivacy
	}
	if req.User != nil {
		info.GlobalPrivacy.GDPRConsent = req.User.Consent
	}

	switch {
	case publisher != nil:
		info.Publisher = publisher
	case req.Site != nil && req.Site.Publisher != nil:
		info.Publisher = req.Site.Publisher
	case req.App != nil && req.App.Publisher != nil:
		info.Publisher = req.App.Publisher
	}

	if e.metrics != nil {
		if info.GlobalPrivacy.GDPR {
			e.metrics.RecordConsentSignal("gdpr", info.GlobalPrivacy.GDPRConsent != "")
		}
		if info.GlobalPrivacy.CCPA != "" {
			e.metrics.RecordConsentSignal("ccpa", true)
		}
	}

	return info
}

// callBidder builds the adapter's requests, sends them concurrently and
// parses every response. Responses keep the order of the requests.
func (e *Exchange) callBidder(ctx context.Context, req *openrtb.BidRequest, extraInfo *adapters.ExtraRequestInfo, timeout time.Duration) *AuctionResponse {
	start := time.Now()
	result := &AuctionResponse{}

	requests, errs := e.adapter.MakeRequests(req, extraInfo)
	result.Errors = append(result.Errors, errs...)
	e.recordErrors(errs)

	select {
	case <-ctx.Done():
		logger.Bidder(e.bidderCode).Debug().
			Dur("elapsed", time.Since(start)).
			Msg("bidder timed out after MakeRequests")
		result.Errors = append(result.Errors, ctx.Err())
		result.TimedOut = true
		return result
	default:
	}

	if len(requests) == 0 {
		return result
	}

	responses := make([]*adapters.ResponseData, len(requests))
	callErrs := make([]error, len(requests))
	var wg sync.WaitGroup
	for i, reqData := range requests {
		wg.Add(1)
		go func(i int, reqData *adapters.RequestData) {
			defer wg.Done()
			responses[i], callErrs[i] = e.send(ctx, reqData, timeout)
		}(i, reqData)
	}
	wg.Wait()

	for i, err := range callErrs {
		if err == nil {
			continue
		}
		result.Errors = append(result.Errors, err)
		if isTimeout(err) {
			result.TimedOut = true
		}
		responses[i] = nil
	}

	for i, resp := range responses {
		if resp == nil {
			continue
		}

		bidderResp, errs := e.adapter.MakeBids(req, requests[i], resp)
		result.Errors = append(result.Errors, errs...)
		e.recordErrors(errs)
		if bidderResp == nil {
			continue
		}

		// An empty currency means USD
		responseCurrency := bidderResp.Currency
		if responseCurrency == "" {
			responseCurrency = "USD"
		}
		if responseCurrency != e.config.DefaultCurrency {
			result.Errors = append(result.Errors, fmt.Errorf(
				"currency mismatch from %s: expected %s, got %s (bids rejected)",
				e.bidderCode, e.config.DefaultCurrency, responseCurrency,
			))
			continue
		}

		result.Bids = append(result.Bids, e.validBids(req, bidderResp.Bids, result)...)
	}

	if syncer, ok := e.adapter.(adapters.UserSyncer); ok {
		syncs := e.config.SyncOptions.Apply(e.bidderCode, syncer.UserSyncs(responses))
		for _, s := range syncs {
			if e.metrics != nil {
				e.metrics.RecordUserSync(e.bidderCode, string(s.Type))
			}
		}
		result.UserSyncs = syncs
	}

	return result
}

// send performs one call to the bidder
func (e *Exchange) send(ctx context.Context, reqData *adapters.RequestData, timeout time.Duration) (*adapters.ResponseData, error) {
	start := time.Now()
	resp, err := e.httpClient.Do(ctx, reqData, timeout)
	latency := time.Since(start)

	timedOut := err != nil && isTimeout(err)
	hasError := err != nil
	if resp != nil && resp.StatusCode >= 400 {
		hasError = true
	}
	if e.metrics != nil {
		e.metrics.RecordBidderRequest(e.bidderCode, strings.ToLower(reqData.Method), latency, hasError, timedOut)
	}

	if err != nil {
		logger.Bidder(e.bidderCode).Debug().
			Str("method", reqData.Method).
			Str("uri", reqData.URI).
			Dur("elapsed", latency).
			Bool("timeout", timedOut).
			Err(err).
			Msg("bidder HTTP request failed")
		return nil, err
	}
	return resp, nil
}

// validBids drops bids that do not belong to the request
func (e *Exchange) validBids(req *openrtb.BidRequest, bids []*adapters.TypedBid, result *AuctionResponse) []*adapters.TypedBid {
	impIDs := make(map[string]struct{}, len(req.Imp))
	for _, imp := range req.Imp {
		impIDs[imp.ID] = struct{}{}
	}

	valid := make([]*adapters.TypedBid, 0, len(bids))
	for _, tb := range bids {
		if tb == nil || tb.Bid == nil {
			continue
		}
		if _, ok := impIDs[tb.Bid.ImpID]; !ok {
			result.Errors = append(result.Errors, fmt.Errorf("bid %s from %s references unknown imp %q", tb.Bid.ID, e.bidderCode, tb.Bid.ImpID))
			continue
		}
		if tb.Bid.Price <= 0 {
			result.Errors = append(result.Errors, fmt.Errorf("bid %s from %s has non-positive price %v", tb.Bid.ID, e.bidderCode, tb.Bid.Price))
			continue
		}
		valid = append(valid, tb)

		if e.metrics != nil {
			e.metrics.RecordBid(e.bidderCode, string(tb.BidType), tb.Bid.Price)
			if tb.Renderer != nil {
				e.metrics.RecordRenderer(e.bidderCode)
			}
		}
	}
	return valid
}

func (e *Exchange) recordErrors(errs []error) {
	if e.metrics == nil {
		return
	}
	for _, err := range errs {
		kind := "unknown"
		var bidderErr *adapters.BidderError
		if errors.As(err, &bidderErr) {
			kind = strings.ToLower(string(bidderErr.Code))
		}
		e.metrics.RecordBidderError(e.bidderCode, kind)
	}
}

func (e *Exchange) recordAuction(status string, start time.Time) {
	if e.metrics != nil {
		e.metrics.RecordAuction(status, time.Since(start))
	}
}

// errorCode maps an error to the Prebid Server error code reported in ext.errors
func errorCode(err error) int {
	if isTimeout(err) {
		return 1
	}
	var bidderErr *adapters.BidderError
	if errors.As(err, &bidderErr) {
		switch bidderErr.Code {
		case adapters.ErrorCodeBadInput, adapters.ErrorCodeBadRequest:
			return 2
		case adapters.ErrorCodeBadStatus, adapters.ErrorCodeParse:
			return 3
		}
	}
	return 999
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// buildEmptyResponse creates an empty bid response with optional NBR code
func (e *Exchange) buildEmptyResponse(req *openrtb.BidRequest, nbr openrtb.NoBidReason) *openrtb.BidResponse {
	return &openrtb.BidResponse{
		ID:      req.ID,
		SeatBid: []openrtb.SeatBid{},
		Cur:     e.config.DefaultCurrency,
		NBR:     int(nbr),
	}
}

// buildResponse creates the page response with one seat for the bidder
func (e *Exchange) buildResponse(req *openrtb.BidRequest, result *AuctionResponse) *openrtb.BidResponse {
	seat := openrtb.SeatBid{
		Seat: e.bidderCode,
		Bid:  make([]openrtb.Bid, 0, len(result.Bids)),
	}

	for _, tb := range result.Bids {
		bid := *tb.Bid
		if ext, err := json.Marshal(e.buildBidExtension(tb)); err == nil {
			bid.Ext = ext
		} else {
			logger.Auction(req.ID).Warn().Err(err).Str("bid_id", bid.ID).Msg("failed to marshal bid extension")
		}
		if bid.Exp == 0 {
			bid.Exp = tb.TTL
		}
		seat.Bid = append(seat.Bid, bid)
	}

	resp := &openrtb.BidResponse{
		ID:      req.ID,
		SeatBid: []openrtb.SeatBid{seat},
		Cur:     e.config.DefaultCurrency,
	}
	e.attachExt(resp, result)
	return resp
}

// attachExt sets response timing, errors and user syncs on resp.ext
func (e *Exchange) attachExt(resp *openrtb.BidResponse, result *AuctionResponse) {
	ext := openrtb.BidResponseExt{
		ResponseTimeMillis: map[string]int{e.bidderCode: int(result.Latency.Milliseconds())},
	}

	if len(result.Errors) > 0 {
		msgs := make([]openrtb.ExtBidderMessage, 0, len(result.Errors))
		for _, err := range result.Errors {
			msgs = append(msgs, openrtb.ExtBidderMessage{Code: errorCode(err), Message: err.Error()})
		}
		ext.Errors = map[string][]openrtb.ExtBidderMessage{e.bidderCode: msgs}
	}

	for _, s := range result.UserSyncs {
		ext.UserSyncs = append(ext.UserSyncs, openrtb.ExtUserSync{Type: string(s.Type), URL: s.URL})
	}

	data, err := json.Marshal(ext)
	if err != nil {
		logger.Auction(resp.ID).Warn().Err(err).Msg("failed to marshal response extension")
		return
	}
	resp.Ext = data
}

// buildBidExtension creates the Prebid extension for a bid, including
// targeting keys and the outstream renderer when one is attached
func (e *Exchange) buildBidExtension(tb *adapters.TypedBid) *openrtb.BidExt {
	prebid := &openrtb.ExtBidPrebid{
		Type: string(tb.BidType),
		Meta: tb.BidMeta,
		Targeting: map[string]string{
			"hb_pb":     formatPriceBucket(tb.Bid.Price),
			"hb_bidder": e.bidderCode,
			"hb_adid":   tb.Bid.ID,
			"hb_format": string(tb.BidType),
		},
	}
	prebid.Targeting["hb_pb_"+e.bidderCode] = prebid.Targeting["hb_pb"]
	if tb.Bid.W > 0 && tb.Bid.H > 0 {
		prebid.Targeting["hb_size"] = fmt.Sprintf("%dx%d", tb.Bid.W, tb.Bid.H)
	}

	if r := tb.Renderer; r != nil {
		renderer := &openrtb.ExtBidRenderer{ID: r.ID, URL: r.URL, TTL: tb.TTL}
		if cfg, err := json.Marshal(r.Config); err == nil && string(cfg) != "{}" {
			renderer.Config = cfg
		}
		prebid.Renderer = renderer
	}

	return &openrtb.BidExt{Prebid: prebid}
}

// Prebid medium price granularity: $0.10 buckets up to $20
const (
	priceBucketIncrement = 0.10
	priceBucketMax       = 20.0
)

// formatPriceBucket formats a price using the Prebid medium granularity.
// The epsilon keeps prices such as 0.30 from flooring into the bucket below.
func formatPriceBucket(price float64) string {
	if price <= 0 {
		return "0.00"
	}
	if price > priceBucketMax {
		price = priceBucketMax
	}

	bucket := math.Floor(price/priceBucketIncrement+1e-9) * priceBucketIncrement
	return fmt.Sprintf("%.2f", bucket)
}
