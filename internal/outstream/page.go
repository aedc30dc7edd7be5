package outstream

import (
	"errors"
	"fmt"
)

// ExpandNoLazyLoad asks the player to expand as soon as it is mounted
const ExpandNoLazyLoad = "no-lazy-load"

// Player events
const (
	EventImpression = "impression"
	EventError      = "error"
)

var (
	// ErrPlayerMissing is returned when the page has no player installed
	ErrPlayerMissing = errors.New("outstream: player not loaded")
	// ErrContainerNotFound is returned when a container resolves to no element
	ErrContainerNotFound = errors.New("outstream: player container not found")
)

// Element is an opaque handle to a page element. Only the Page that produced
// an Element knows how to use it.
type Element interface{}

// Page is the document a renderer plays into
type Page interface {
	// QuerySelector returns the first element matching selector
	QuerySelector(selector string) (Element, bool)
	// EscapeCSS escapes ident for use in a selector. ok is false when the
	// page has no escaping facility.
	EscapeCSS(ident string) (escaped string, ok bool)
	// Player returns the globally installed player, if any
	Player() (Player, bool)
}

// Player is the outstream entry point of the vendor player script
type Player interface {
	PlayOutstream(container Element, options PlayOptions) error
}

// PlayOptions is the options object handed to the player
type PlayOptions struct {
	VastXML      string  `json:"vastXml,omitempty"`
	VastURL      string  `json:"vastUrl,omitempty"`
	TargetWidth  int     `json:"targetWidth,omitempty"`
	TargetHeight int     `json:"targetHeight,omitempty"`
	MaxWidth     int     `json:"maxWidth,omitempty"`
	TargetRatio  float64 `json:"targetRatio,omitempty"`
	Expand       string  `json:"expand,omitempty"`

	OnEvent func(event string) `json:"-"`
}

// Container is where the player mounts: an element, a selector, or a
// function resolving an element
type Container interface {
	Resolve(page Page) (Element, error)
}

// ElementContainer is an already resolved element
type ElementContainer struct {
	Element Element
}

// Resolve returns the element
func (c ElementContainer) Resolve(Page) (Element, error) {
	if c.Element == nil {
		return nil, ErrContainerNotFound
	}
	return c.Element, nil
}

// SelectorContainer is a CSS selector looked up on the page
type SelectorContainer string

// Resolve queries the page for the selector
func (c SelectorContainer) Resolve(page Page) (Element, error) {
	el, ok := page.QuerySelector(string(c))
	if !ok || el == nil {
		return nil, fmt.Errorf("%w for selector %s", ErrContainerNotFound, string(c))
	}
	return el, nil
}

// SelectorFunc resolves the container lazily. Returning nil means not found.
type SelectorFunc func(page Page) Element

// Resolve calls the function
func (f SelectorFunc) Resolve(page Page) (Element, error) {
	el := f(page)
	if el == nil {
		return nil, fmt.Errorf("%w for selector function", ErrContainerNotFound)
	}
	return el, nil
}

// Play resolves container and starts playback on the page player.
// Nothing is played when either the container or the player is missing.
func Play(page Page, container Container, options PlayOptions) error {
	el, err := container.Resolve(page)
	if err != nil {
		return err
	}

	player, ok := page.Player()
	if !ok || player == nil {
		return ErrPlayerMissing
	}

	return player.PlayOutstream(el, options)
}
