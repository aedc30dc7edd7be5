package hubvisor

import (
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/thenexusengine/tne_hubvisor/internal/adapters"
	"github.com/thenexusengine/tne_hubvisor/internal/usersync"
)

// SyncRequest is the payload of the cookie-sync call
type SyncRequest struct {
	GDPR         bool   `json:"gdpr"`
	GDPRConsent  string `json:"gdpr_consent,omitempty"`
	PlacementIDs string `json:"placement_ids"`
}

func newSyncRequest(placementIDs []string, privacy adapters.GlobalPrivacy) SyncRequest {
	return SyncRequest{
		GDPR:         privacy.GDPR,
		GDPRConsent:  privacy.GDPRConsent,
		PlacementIDs: strings.Join(placementIDs, ","),
	}
}

// Query encodes the request as sync endpoint query parameters
func (r SyncRequest) Query() url.Values {
	q := url.Values{}
	if r.GDPR {
		q.Set("gdpr", "1")
	} else {
		q.Set("gdpr", "0")
	}
	if r.GDPRConsent != "" {
		q.Set("gdpr_consent", r.GDPRConsent)
	}
	q.Set("placement_ids", r.PlacementIDs)
	return q
}

// syncTypes normalizes the vendor sync types
var syncTypes = map[string]usersync.SyncType{
	"image":    usersync.SyncTypeImage,
	"redirect": usersync.SyncTypeImage,
	"iframe":   usersync.SyncTypeIframe,
}

// parseSyncResponse reads {"bidders":[{"type":..,"url":..}]}. Entries with an
// unknown type or no url are dropped. A body without a bidders list yields nil.
func parseSyncResponse(body []byte) []usersync.Sync {
	if !gjson.ValidBytes(body) {
		return nil
	}
	bidders := gjson.GetBytes(body, "bidders")
	if !bidders.IsArray() {
		return nil
	}

	syncs := []usersync.Sync{}
	bidders.ForEach(func(_, entry gjson.Result) bool {
		syncType, ok := syncTypes[entry.Get("type").String()]
		if !ok {
			return true
		}
		u := entry.Get("url")
		if u.Type != gjson.String || u.Str == "" {
			return true
		}
		syncs = append(syncs, usersync.Sync{Type: syncType, URL: u.Str})
		return true
	})
	return syncs
}
