package hubvisor

import (
	"encoding/json"

	"github.com/buger/jsonparser"
	"github.com/tidwall/sjson"

	"github.com/thenexusengine/tne_hubvisor/internal/openrtb"
)

// VideoParams are the outstream options a publisher sets on a video ad unit
// under imp.ext.bidder.video
type VideoParams struct {
	MaxWidth    int     `json:"maxWidth,omitempty"`
	TargetRatio float64 `json:"targetRatio,omitempty"`
	Selector    string  `json:"selector,omitempty"`
}

// VideoParamsByBidID associates the video imps of one auction request with
// their params. A nil entry means the imp is video but set no params.
type VideoParamsByBidID map[string]*VideoParams

// take returns the params recorded for bidID and removes the entry
func (m VideoParamsByBidID) take(bidID string) (*VideoParams, bool) {
	params, ok := m[bidID]
	if ok {
		delete(m, bidID)
	}
	return params, ok
}

// placement is a placement id as found in the bidder params. raw keeps the
// JSON encoding so numeric ids are forwarded as numbers.
type placement struct {
	id  string
	raw []byte
}

// placementID reads imp.ext.bidder.placementId. Ids may be strings or numbers.
func placementID(imp *openrtb.Imp) (placement, bool) {
	value, dataType, _, err := jsonparser.Get(imp.Ext, "bidder", "placementId")
	if err != nil {
		return placement{}, false
	}

	switch dataType {
	case jsonparser.String:
		id, err := jsonparser.ParseString(value)
		if err != nil || id == "" {
			return placement{}, false
		}
		quoted, err := json.Marshal(id)
		if err != nil {
			return placement{}, false
		}
		return placement{id: id, raw: quoted}, true
	case jsonparser.Number:
		if n, err := jsonparser.ParseFloat(value); err != nil || n == 0 {
			return placement{}, false
		}
		return placement{id: string(value), raw: value}, true
	}
	return placement{}, false
}

// videoParams reads imp.ext.bidder.video. Missing or mistyped fields are left
// zero.
func videoParams(imp *openrtb.Imp) *VideoParams {
	video, dataType, _, err := jsonparser.Get(imp.Ext, "bidder", "video")
	if err != nil || dataType != jsonparser.Object {
		return nil
	}

	params := &VideoParams{}
	if v, err := jsonparser.GetInt(video, "maxWidth"); err == nil {
		params.MaxWidth = int(v)
	}
	if v, err := jsonparser.GetFloat(video, "targetRatio"); err == nil {
		params.TargetRatio = v
	}
	if v, err := jsonparser.GetString(video, "selector"); err == nil {
		params.Selector = v
	}
	return params
}

// vendorImpExt replaces the host bidder params in ext with the vendor
// extension ext.hubvisor.placementId
func vendorImpExt(ext json.RawMessage, p placement, ok bool) (json.RawMessage, error) {
	if len(ext) == 0 {
		ext = json.RawMessage(`{}`)
	}

	out, err := sjson.DeleteBytes(ext, "bidder")
	if err != nil {
		return nil, err
	}
	if !ok {
		return out, nil
	}
	return sjson.SetRawBytes(out, "hubvisor.placementId", p.raw)
}
