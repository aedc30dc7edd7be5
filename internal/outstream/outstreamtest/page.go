// Package outstreamtest provides an in-memory page for renderer tests
package outstreamtest

import (
	"errors"
	"sync"

	"github.com/thenexusengine/tne_hubvisor/internal/outstream"
)

// Element is an element of a fake page
type Element struct {
	Selector string
}

// Play is a recorded PlayOutstream call
type Play struct {
	Container outstream.Element
	Options   outstream.PlayOptions
}

// Page is a fake outstream.Page. Elements are registered by selector.
type Page struct {
	// NoCSS disables EscapeCSS
	NoCSS bool
	// NoPlayer hides the player
	NoPlayer bool
	// PlayErr is returned from PlayOutstream
	PlayErr error

	mu       sync.Mutex
	elements map[string]*Element
	plays    []Play
}

// NewPage returns a page with a player and elements for the given selectors
func NewPage(selectors ...string) *Page {
	p := &Page{elements: make(map[string]*Element)}
	for _, s := range selectors {
		p.elements[s] = &Element{Selector: s}
	}
	return p
}

// QuerySelector implements outstream.Page
func (p *Page) QuerySelector(selector string) (outstream.Element, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[selector]
	if !ok {
		return nil, false
	}
	return el, true
}

// EscapeCSS implements outstream.Page. Only the characters used by the
// tests are escaped.
func (p *Page) EscapeCSS(ident string) (string, bool) {
	if p.NoCSS {
		return "", false
	}
	out := make([]byte, 0, len(ident))
	for i := 0; i < len(ident); i++ {
		switch c := ident[i]; c {
		case '.', ':', '/', ' ', '#', '[', ']':
			out = append(out, '\\', c)
		default:
			out = append(out, c)
		}
	}
	return string(out), true
}

// Player implements outstream.Page
func (p *Page) Player() (outstream.Player, bool) {
	if p.NoPlayer {
		return nil, false
	}
	return player{p}, true
}

// Plays returns the recorded PlayOutstream calls
func (p *Page) Plays() []Play {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Play(nil), p.plays...)
}

type player struct {
	page *Page
}

var errForeignElement = errors.New("outstreamtest: element not from this page")

func (pl player) PlayOutstream(container outstream.Element, options outstream.PlayOptions) error {
	if _, ok := container.(*Element); !ok {
		return errForeignElement
	}
	if pl.page.PlayErr != nil {
		return pl.page.PlayErr
	}
	pl.page.mu.Lock()
	pl.page.plays = append(pl.page.plays, Play{Container: container, Options: options})
	pl.page.mu.Unlock()
	return nil
}
