// Package devtools implements outstream.Page on top of a browser tab driven
// through the Chrome DevTools Protocol
package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thenexusengine/tne_hubvisor/internal/outstream"
	"github.com/thenexusengine/tne_hubvisor/pkg/logger"
)

// EventBinding is the page binding player events are reported through
const EventBinding = "hbvOutstreamEvent"

const defaultEvalTimeout = 5 * time.Second

var errForeignElement = errors.New("devtools: element does not belong to this page")

// Evaluator runs a JavaScript expression in the tab and returns its value as JSON
type Evaluator interface {
	Evaluate(ctx context.Context, expression string) (json.RawMessage, error)
}

// Page is an outstream.Page backed by a remote tab
type Page struct {
	eval    Evaluator
	timeout time.Duration

	mu      sync.Mutex
	onEvent func(string)
}

// NewPage wraps eval
func NewPage(eval Evaluator) *Page {
	return &Page{eval: eval, timeout: defaultEvalTimeout}
}

// element refers to a DOM node by the expression that finds it
type element struct {
	expr string
}

func (p *Page) evaluate(expr string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.eval.Evaluate(ctx, expr)
}

func (p *Page) evaluateBool(expr string) bool {
	raw, err := p.evaluate(expr)
	if err != nil {
		logger.Outstream().Debug().Err(err).Msg("devtools evaluation failed")
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}

// QuerySelector implements outstream.Page
func (p *Page) QuerySelector(selector string) (outstream.Element, bool) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return nil, false
	}
	expr := fmt.Sprintf("document.querySelector(%s)", quoted)
	if !p.evaluateBool(expr + " !== null") {
		return nil, false
	}
	return &element{expr: expr}, true
}

// EscapeCSS implements outstream.Page using the tab's CSS.escape
func (p *Page) EscapeCSS(ident string) (string, bool) {
	quoted, err := json.Marshal(ident)
	if err != nil {
		return "", false
	}
	raw, err := p.evaluate(fmt.Sprintf("(window.CSS && typeof CSS.escape === \"function\") ? CSS.escape(%s) : null", quoted))
	if err != nil {
		return "", false
	}
	var escaped *string
	if err := json.Unmarshal(raw, &escaped); err != nil || escaped == nil {
		return "", false
	}
	return *escaped, true
}

// Player implements outstream.Page. The player is present once the vendor
// script has installed window.HbvPlayer.
func (p *Page) Player() (outstream.Player, bool) {
	if !p.evaluateBool("typeof window.HbvPlayer === \"object\" && window.HbvPlayer !== null && typeof window.HbvPlayer.playOutstream === \"function\"") {
		return nil, false
	}
	return player{page: p}, true
}

// LoadScript appends a script tag for url and waits for it to load
func (p *Page) LoadScript(ctx context.Context, url string) error {
	quoted, err := json.Marshal(url)
	if err != nil {
		return err
	}
	expr := fmt.Sprintf(`new Promise(function(resolve, reject) {
  var s = document.createElement("script");
  s.src = %s;
  s.onload = function() { resolve(true); };
  s.onerror = function() { reject(new Error("failed to load " + s.src)); };
  document.head.appendChild(s);
})`, quoted)
	_, err = p.eval.Evaluate(ctx, expr)
	return err
}

// DispatchEvent forwards a player event to the handler of the last playback
func (p *Page) DispatchEvent(event string) {
	p.mu.Lock()
	fn := p.onEvent
	p.mu.Unlock()
	if fn != nil {
		fn(event)
	}
}

type player struct {
	page *Page
}

func (pl player) PlayOutstream(container outstream.Element, options outstream.PlayOptions) error {
	el, ok := container.(*element)
	if !ok {
		return errForeignElement
	}

	opts, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("devtools: encoding play options: %w", err)
	}

	pl.page.mu.Lock()
	pl.page.onEvent = options.OnEvent
	pl.page.mu.Unlock()

	expr := fmt.Sprintf(`(function() {
  var container = %s;
  if (!container) { throw new Error("player container detached"); }
  var options = %s;
  options.onEvent = function(event) {
    if (typeof window.%s === "function") { window.%s(String(event)); }
  };
  window.HbvPlayer.playOutstream(container, options);
  return true;
})()`, el.expr, opts, EventBinding, EventBinding)

	if _, err := pl.page.evaluate(expr); err != nil {
		return fmt.Errorf("devtools: playOutstream: %w", err)
	}
	return nil
}
