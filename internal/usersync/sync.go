// Package usersync provides user ID synchronization types shared by the
// host and bidder adapters
package usersync

import "strings"

// SyncType represents the type of user sync a page performs
type SyncType string

const (
	// SyncTypeImage loads a tracking pixel
	SyncTypeImage SyncType = "image"
	// SyncTypeIframe loads an iframe
	SyncTypeIframe SyncType = "iframe"
	// SyncTypeRedirect is a vendor alias for an image pixel that redirects
	SyncTypeRedirect SyncType = "redirect"
)

// Sync is a directive for the page to load a vendor pixel or iframe
type Sync struct {
	Type SyncType `json:"type"`
	URL  string   `json:"url"`
}

// FilterSettings mirrors the Prebid userSync.filterSettings shape
type FilterSettings struct {
	Iframe *FilterConfig `json:"iframe,omitempty"`
	Image  *FilterConfig `json:"image,omitempty"`
}

// FilterConfig is a filter for a sync type
type FilterConfig struct {
	Bidders []string `json:"bidders,omitempty"`
	Filter  string   `json:"filter,omitempty"` // "include" or "exclude"
}

// Options controls which syncs the host hands to the page
type Options struct {
	IframeEnabled  bool
	PixelEnabled   bool
	FilterSettings *FilterSettings
}

// DefaultOptions allows pixels only, as Prebid does out of the box
func DefaultOptions() Options {
	return Options{PixelEnabled: true}
}

// Apply returns the syncs of bidder allowed by the options, preserving order
func (o Options) Apply(bidder string, syncs []Sync) []Sync {
	if len(syncs) == 0 {
		return nil
	}

	allowed := make([]Sync, 0, len(syncs))
	for _, s := range syncs {
		if o.allows(bidder, s.Type) {
			allowed = append(allowed, s)
		}
	}
	return allowed
}

func (o Options) allows(bidder string, syncType SyncType) bool {
	switch syncType {
	case SyncTypeIframe:
		if !o.IframeEnabled {
			return false
		}
		if o.FilterSettings != nil {
			return includesBidder(o.FilterSettings.Iframe, bidder)
		}
		return true
	case SyncTypeImage, SyncTypeRedirect:
		if !o.PixelEnabled {
			return false
		}
		if o.FilterSettings != nil {
			return includesBidder(o.FilterSettings.Image, bidder)
		}
		return true
	default:
		return false
	}
}

// includesBidder checks a bidder against a filter config. "*" matches every bidder.
func includesBidder(config *FilterConfig, bidder string) bool {
	if config == nil || len(config.Bidders) == 0 {
		return true
	}

	listed := containsBidder(config.Bidders, bidder)
	switch config.Filter {
	case "include":
		return listed
	case "exclude":
		return !listed
	}
	return true
}

func containsBidder(list []string, bidder string) bool {
	for _, b := range list {
		if b == "*" || strings.EqualFold(b, bidder) {
			return true
		}
	}
	return false
}
