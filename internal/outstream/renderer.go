// Package outstream renders outstream video bids through a player script
// installed on the page
package outstream

import (
	"errors"
	"sync"
)

// ErrNoRender is returned by Render when no render callback was set
var ErrNoRender = errors.New("outstream: renderer has no render callback")

// Config is the sizing and placement snapshot a renderer was built with.
// Zero values mean the player defaults.
type Config struct {
	MaxWidth    int     `json:"maxWidth,omitempty"`
	TargetRatio float64 `json:"targetRatio,omitempty"`
	Selector    string  `json:"selector,omitempty"`
}

// Bid is the part of a winning bid a render callback needs
type Bid struct {
	ID         string
	AdUnitCode string
	VastXML    string
	VastURL    string
	Width      int
	Height     int
}

// RenderFunc plays bid on page
type RenderFunc func(r *Renderer, page Page, bid Bid)

// Renderer is a lazily loaded client-side renderer for one bid. Commands
// pushed before the player script has loaded are queued and run in order
// once MarkLoaded is called.
type Renderer struct {
	ID     string
	URL    string
	Config Config

	mu     sync.Mutex
	loaded bool
	queue  []func()
	render RenderFunc
}

// New returns a renderer that has not loaded its script yet
func New(id, url string, cfg Config) *Renderer {
	return &Renderer{
		ID:     id,
		URL:    url,
		Config: cfg,
	}
}

// Loaded reports whether the script has been marked as loaded
func (r *Renderer) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded
}

// Push runs fn now if the script is loaded, otherwise queues it
func (r *Renderer) Push(fn func()) {
	r.mu.Lock()
	if !r.loaded {
		r.queue = append(r.queue, fn)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	fn()
}

// MarkLoaded flags the script as loaded and drains the queue. Later calls are no-ops.
func (r *Renderer) MarkLoaded() {
	r.mu.Lock()
	if r.loaded {
		r.mu.Unlock()
		return
	}
	r.loaded = true
	queued := r.queue
	r.queue = nil
	r.mu.Unlock()

	for _, fn := range queued {
		fn()
	}
}

// SetRender binds the render callback
func (r *Renderer) SetRender(fn RenderFunc) {
	r.mu.Lock()
	r.render = fn
	r.mu.Unlock()
}

// Render invokes the render callback for bid on page
func (r *Renderer) Render(page Page, bid Bid) error {
	r.mu.Lock()
	fn := r.render
	r.mu.Unlock()

	if fn == nil {
		return ErrNoRender
	}
	fn(r, page, bid)
	return nil
}
