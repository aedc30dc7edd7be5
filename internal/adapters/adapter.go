// Package adapters provides the bidder adapter framework
package adapters

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/thenexusengine/tne_hubvisor/internal/openrtb"
	"github.com/thenexusengine/tne_hubvisor/internal/outstream"
	"github.com/thenexusengine/tne_hubvisor/internal/usersync"
	"github.com/thenexusengine/tne_hubvisor/pkg/logger"
)

// maxResponseSize limits bidder response size
const maxResponseSize = 1024 * 1024 // 1MB

// Adapter defines the interface for bidder adapters
type Adapter interface {
	// MakeRequests builds HTTP requests for the bidder
	MakeRequests(request *openrtb.BidRequest, extraInfo *ExtraRequestInfo) ([]*RequestData, []error)

	// MakeBids parses the response to requestData into bids
	MakeBids(request *openrtb.BidRequest, requestData *RequestData, responseData *ResponseData) (*BidderResponse, []error)
}

// BidRequestValidator is implemented by adapters that screen imps before MakeRequests
type BidRequestValidator interface {
	IsBidRequestValid(imp *openrtb.Imp) bool
}

// UserSyncer is implemented by adapters that derive user syncs from their
// responses. responses are in the order MakeRequests returned the requests;
// a failed request leaves a nil entry.
type UserSyncer interface {
	UserSyncs(responses []*ResponseData) []usersync.Sync
}

// ExtraRequestInfo contains additional info for request building
type ExtraRequestInfo struct {
	BidderCoreName string
	GlobalPrivacy  GlobalPrivacy
	// Publisher is the account the auction is run for, when known
	Publisher *openrtb.Publisher
}

// GlobalPrivacy contains privacy settings
type GlobalPrivacy struct {
	GDPR        bool
	GDPRConsent string
	CCPA        string
}

// RequestData represents an HTTP request to a bidder
type RequestData struct {
	Method  string
	URI     string
	Body    []byte
	Headers http.Header

	// Aux is adapter-private data handed back to MakeBids with the response.
	// It is never sent over the wire.
	Aux interface{}
}

// ResponseData represents an HTTP response from a bidder
type ResponseData struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// BidderResponse contains parsed bids from a bidder
type BidderResponse struct {
	Bids       []*TypedBid
	Currency   string
	ResponseID string
}

// TypedBid is a bid in the host's bid shape
type TypedBid struct {
	Bid        *openrtb.Bid
	BidType    BidType
	BidMeta    *openrtb.ExtBidPrebidMeta
	AdUnitCode string
	TTL        int
	NetRevenue bool
	// Renderer is set for outstream video bids that need a client-side player
	Renderer *outstream.Renderer
}

// OutstreamBid returns what a renderer needs from the bid. Markup is inline
// VAST; a bid without markup plays the VAST served at its nurl.
func (tb *TypedBid) OutstreamBid() outstream.Bid {
	ob := outstream.Bid{AdUnitCode: tb.AdUnitCode}
	if tb.Bid == nil {
		return ob
	}
	ob.ID = tb.Bid.ID
	ob.Width = tb.Bid.W
	ob.Height = tb.Bid.H
	if tb.Bid.AdM != "" {
		ob.VastXML = tb.Bid.AdM
	} else {
		ob.VastURL = tb.Bid.NURL
	}
	return ob
}

// BidType represents the type of bid
type BidType string

const (
	BidTypeBanner BidType = "banner"
	BidTypeVideo  BidType = "video"
	BidTypeAudio  BidType = "audio"
	BidTypeNative BidType = "native"
)

// BidderInfo contains bidder configuration
type BidderInfo struct {
	Enabled      bool
	Version      string
	Maintainer   *MaintainerInfo
	Capabilities *CapabilitiesInfo
	GVLVendorID  int
	Syncer       *SyncerInfo
	Endpoint     string
}

// MaintainerInfo contains maintainer info
type MaintainerInfo struct {
	Email string
}

// CapabilitiesInfo contains bidder capabilities
type CapabilitiesInfo struct {
	App  *PlatformInfo
	Site *PlatformInfo
}

// PlatformInfo contains platform capabilities
type PlatformInfo struct {
	MediaTypes []BidType
}

// SyncerInfo contains user sync configuration
type SyncerInfo struct {
	Supports []usersync.SyncType
}

// AdapterConfig holds runtime adapter configuration. Empty endpoints mean
// the adapter's defaults.
type AdapterConfig struct {
	Endpoint         string
	UserSyncEndpoint string
	Disabled         bool
}

// HTTPClient defines the interface for HTTP requests
type HTTPClient interface {
	Do(ctx context.Context, req *RequestData, timeout time.Duration) (*ResponseData, error)
}

// DefaultHTTPClient implements HTTPClient
type DefaultHTTPClient struct {
	client *http.Client
}

// NewHTTPClient creates a new HTTP client with connection pooling
func NewHTTPClient(timeout time.Duration) *DefaultHTTPClient {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig: &tls.Config{
			ClientSessionCache: tls.NewLRUClientSessionCache(100),
			MinVersion:         tls.VersionTLS12,
		},
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}

	return &DefaultHTTPClient{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Do executes an HTTP request. The effective timeout is the shorter of
// timeout and the parent context deadline.
func (c *DefaultHTTPClient) Do(ctx context.Context, req *RequestData, timeout time.Duration) (*ResponseData, error) {
	if timeout > 0 {
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining < timeout {
				timeout = remaining
			}
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URI, body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header[k] = v
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		if ctx.Err() != nil {
			logger.Log.Debug().Err(err).Str("uri", req.URI).Msg("read error during context cancellation (masked by timeout)")
			return nil, ctx.Err()
		}
		if !errors.Is(err, io.EOF) {
			return nil, err
		}
	}
	if len(data) > maxResponseSize {
		return nil, fmt.Errorf("response too large: exceeded %d bytes", maxResponseSize)
	}

	return &ResponseData{
		StatusCode: resp.StatusCode,
		Body:       data,
		Headers:    resp.Header,
	}, nil
}
