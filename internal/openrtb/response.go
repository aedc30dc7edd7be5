package openrtb

import "encoding/json"

// BidResponse represents an OpenRTB 2.5/2.6 bid response
type BidResponse struct {
	ID      string          `json:"id"`
	SeatBid []SeatBid       `json:"seatbid,omitempty"`
	BidID   string          `json:"bidid,omitempty"`
	Cur     string          `json:"cur,omitempty"`
	NBR     int             `json:"nbr,omitempty"`
	Ext     json.RawMessage `json:"ext,omitempty"`
}

// SeatBid represents a seat bid
type SeatBid struct {
	Bid  []Bid           `json:"bid"`
	Seat string          `json:"seat,omitempty"`
	Ext  json.RawMessage `json:"ext,omitempty"`
}

// Bid represents a bid
type Bid struct {
	ID      string          `json:"id"`
	ImpID   string          `json:"impid"`
	Price   float64         `json:"price"`
	NURL    string          `json:"nurl,omitempty"`
	BURL    string          `json:"burl,omitempty"`
	AdM     string          `json:"adm,omitempty"`
	AdID    string          `json:"adid,omitempty"`
	ADomain []string        `json:"adomain,omitempty"`
	CID     string          `json:"cid,omitempty"`
	CRID    string          `json:"crid,omitempty"`
	Cat     []string        `json:"cat,omitempty"`
	DealID  string          `json:"dealid,omitempty"`
	W       int             `json:"w,omitempty"`
	H       int             `json:"h,omitempty"`
	Exp     int             `json:"exp,omitempty"`
	MType   MarkupType      `json:"mtype,omitempty"`
	Ext     json.RawMessage `json:"ext,omitempty"`
}

// MarkupType is the OpenRTB 2.6 creative markup type
type MarkupType int

const (
	MarkupBanner MarkupType = 1
	MarkupVideo  MarkupType = 2
	MarkupAudio  MarkupType = 3
	MarkupNative MarkupType = 4
)

// NoBidReason represents no-bid reason codes per OpenRTB 2.5 Section 5.24
type NoBidReason int

const (
	NoBidUnknown        NoBidReason = 0
	NoBidTechnicalError NoBidReason = 1
	NoBidInvalidRequest NoBidReason = 2

	// NoBidTimeout is exchange specific
	NoBidTimeout NoBidReason = 501
)

// BidResponseExt carries host extensions on the outgoing response
type BidResponseExt struct {
	ResponseTimeMillis map[string]int                `json:"responsetimemillis,omitempty"`
	Errors             map[string][]ExtBidderMessage `json:"errors,omitempty"`
	UserSyncs          []ExtUserSync                 `json:"usersyncs,omitempty"`
}

// ExtBidderMessage represents a bidder message
type ExtBidderMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ExtUserSync is a pixel or iframe the page should load to sync user ids
type ExtUserSync struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// BidExt represents bid extension
type BidExt struct {
	Prebid *ExtBidPrebid `json:"prebid,omitempty"`
}

// ExtBidPrebid represents prebid bid extension
type ExtBidPrebid struct {
	Type      string            `json:"type,omitempty"`
	Targeting map[string]string `json:"targeting,omitempty"`
	Meta      *ExtBidPrebidMeta `json:"meta,omitempty"`
	Renderer  *ExtBidRenderer   `json:"renderer,omitempty"`
}

// ExtBidPrebidMeta represents bid metadata
type ExtBidPrebidMeta struct {
	AdvertiserDomains []string `json:"advertiserDomains,omitempty"`
	MediaType         string   `json:"mediaType,omitempty"`
	NetworkName       string   `json:"networkName,omitempty"`
	RendererName      string   `json:"rendererName,omitempty"`
	RendererVersion   string   `json:"rendererVersion,omitempty"`
	RendererURL       string   `json:"rendererUrl,omitempty"`
}

// ExtBidRenderer is the client-side renderer description for outstream bids
type ExtBidRenderer struct {
	ID     string          `json:"id"`
	URL    string          `json:"url"`
	TTL    int             `json:"ttl,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}
