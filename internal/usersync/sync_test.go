package usersync

import (
	"reflect"
	"testing"
)

var mixedSyncs = []Sync{
	{Type: SyncTypeImage, URL: "https://a.example/pixel"},
	{Type: SyncTypeIframe, URL: "https://b.example/frame"},
	{Type: SyncTypeImage, URL: "https://c.example/pixel"},
}

func TestOptions_Apply(t *testing.T) {
	tests := []struct {
		name     string
		options  Options
		expected []Sync
	}{
		{
			name:     "default allows pixels only",
			options:  DefaultOptions(),
			expected: []Sync{mixedSyncs[0], mixedSyncs[2]},
		},
		{
			name:     "everything enabled keeps order",
			options:  Options{IframeEnabled: true, PixelEnabled: true},
			expected: mixedSyncs,
		},
		{
			name:     "iframe only",
			options:  Options{IframeEnabled: true},
			expected: []Sync{mixedSyncs[1]},
		},
		{
			name:     "nothing enabled",
			options:  Options{},
			expected: []Sync{},
		},
		{
			name: "iframe include list without bidder",
			options: Options{
				IframeEnabled: true,
				PixelEnabled:  true,
				FilterSettings: &FilterSettings{
					Iframe: &FilterConfig{Bidders: []string{"appnexus"}, Filter: "include"},
				},
			},
			expected: []Sync{mixedSyncs[0], mixedSyncs[2]},
		},
		{
			name: "image excluded by wildcard",
			options: Options{
				IframeEnabled: true,
				PixelEnabled:  true,
				FilterSettings: &FilterSettings{
					Image: &FilterConfig{Bidders: []string{"*"}, Filter: "exclude"},
				},
			},
			expected: []Sync{mixedSyncs[1]},
		},
		{
			name: "case insensitive include",
			options: Options{
				IframeEnabled: true,
				FilterSettings: &FilterSettings{
					Iframe: &FilterConfig{Bidders: []string{"HUBVISOR"}, Filter: "include"},
				},
			},
			expected: []Sync{mixedSyncs[1]},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.options.Apply("hubvisor", mixedSyncs)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestOptions_ApplyEmpty(t *testing.T) {
	if got := DefaultOptions().Apply("hubvisor", nil); got != nil {
		t.Errorf("Expected nil for no syncs, got %v", got)
	}
}
