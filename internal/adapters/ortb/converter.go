// Package ortb converts between host auction requests and OpenRTB bid
// requests/responses on behalf of bidder adapters. Adapters customise the
// output through request and imp hooks.
package ortb

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/thenexusengine/tne_hubvisor/internal/adapters"
	"github.com/thenexusengine/tne_hubvisor/internal/openrtb"
)

// ErrNilRequest is returned by ToORTB when there is nothing to convert
var ErrNilRequest = errors.New("ortb: nil bid request")

// Context holds the defaults applied to every converted bid
type Context struct {
	NetRevenue bool
	TTL        int
	Currency   string
}

// Request is an outgoing OpenRTB request. Publisher is the host publisher,
// placed at the top level because the converter does not know whether the
// vendor expects it under site or app. Request hooks move it where it belongs.
// Test is always serialized, 0 included.
type Request struct {
	openrtb.BidRequest
	Publisher *openrtb.Publisher `json:"publisher,omitempty"`
	Test      int                `json:"test"`
}

// Response is the result of FromORTB
type Response struct {
	ID       string
	Currency string
	Bids     []*adapters.TypedBid
}

// RequestHook adjusts the converted request after every imp was built
type RequestHook func(req *Request, extraInfo *adapters.ExtraRequestInfo) error

// ImpHook adjusts one converted imp
type ImpHook func(imp *openrtb.Imp) error

// Option configures a Converter
type Option func(*Converter)

// WithRequestHook sets the request hook
func WithRequestHook(h RequestHook) Option {
	return func(c *Converter) { c.requestHook = h }
}

// WithImpHook sets the imp hook
func WithImpHook(h ImpHook) Option {
	return func(c *Converter) { c.impHook = h }
}

// Converter translates requests and responses for one adapter
type Converter struct {
	ctx         Context
	requestHook RequestHook
	impHook     ImpHook
}

// NewConverter creates a converter
func NewConverter(ctx Context, opts ...Option) *Converter {
	if ctx.Currency == "" {
		ctx.Currency = "USD"
	}
	c := &Converter{ctx: ctx}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Context returns the converter defaults
func (c *Converter) Context() Context {
	return c.ctx
}

// ToORTB builds the outgoing request. The host request is never mutated.
func (c *Converter) ToORTB(request *openrtb.BidRequest, extraInfo *adapters.ExtraRequestInfo) (*Request, error) {
	if request == nil {
		return nil, ErrNilRequest
	}

	out := &Request{BidRequest: *request, Test: request.Test}
	out.Imp = make([]openrtb.Imp, len(request.Imp))
	for i := range request.Imp {
		out.Imp[i] = request.Imp[i]
		out.Imp[i].Ext = cloneRaw(request.Imp[i].Ext)
	}
	if request.Site != nil {
		site := *request.Site
		out.Site = &site
	}
	if request.App != nil {
		app := *request.App
		out.App = &app
	}

	if extraInfo != nil {
		applyPrivacy(out, extraInfo.GlobalPrivacy)
		if extraInfo.Publisher != nil {
			pub := *extraInfo.Publisher
			out.Publisher = &pub
		}
	}

	if c.impHook != nil {
		for i := range out.Imp {
			if err := c.impHook(&out.Imp[i]); err != nil {
				return nil, err
			}
		}
	}

	if c.requestHook != nil {
		if err := c.requestHook(out, extraInfo); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func applyPrivacy(out *Request, privacy adapters.GlobalPrivacy) {
	if privacy.GDPR || privacy.CCPA != "" {
		regs := openrtb.Regs{}
		if out.Regs != nil {
			regs = *out.Regs
		}
		if privacy.GDPR {
			applies := 1
			regs.GDPR = &applies
		}
		if privacy.CCPA != "" {
			regs.USPrivacy = privacy.CCPA
		}
		out.Regs = &regs
	}

	if privacy.GDPRConsent != "" {
		user := openrtb.User{}
		if out.User != nil {
			user = *out.User
		}
		user.Consent = privacy.GDPRConsent
		out.User = &user
	}
}

// FromORTB converts a bid response body into host bids. A body that is not a
// JSON object yields an empty response.
func (c *Converter) FromORTB(request *Request, body []byte) (*Response, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return &Response{Currency: c.ctx.Currency}, nil
	}

	var bidResp openrtb.BidResponse
	if err := json.Unmarshal(trimmed, &bidResp); err != nil {
		return nil, err
	}

	resp := &Response{
		ID:       bidResp.ID,
		Currency: bidResp.Cur,
	}
	if resp.Currency == "" {
		resp.Currency = c.ctx.Currency
	}

	var impMap map[string]*openrtb.Imp
	if request != nil {
		impMap = adapters.BuildImpMap(request.Imp)
	}

	for i := range bidResp.SeatBid {
		sb := &bidResp.SeatBid[i]
		for j := range sb.Bid {
			bid := &sb.Bid[j]
			bidType := adapters.GetBidTypeFromMap(bid, impMap)

			ttl := c.ctx.TTL
			if bid.Exp > 0 {
				ttl = bid.Exp
			}

			adUnitCode := bid.ImpID
			if imp, ok := impMap[bid.ImpID]; ok && imp.TagID != "" {
				adUnitCode = imp.TagID
			}

			resp.Bids = append(resp.Bids, &adapters.TypedBid{
				Bid:     bid,
				BidType: bidType,
				BidMeta: &openrtb.ExtBidPrebidMeta{
					AdvertiserDomains: bid.ADomain,
					MediaType:         string(bidType),
				},
				AdUnitCode: adUnitCode,
				TTL:        ttl,
				NetRevenue: c.ctx.NetRevenue,
			})
		}
	}

	return resp, nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}
