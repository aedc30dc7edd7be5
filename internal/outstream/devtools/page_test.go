package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/thenexusengine/tne_hubvisor/internal/outstream"
)

// fakeEvaluator answers expressions by substring match
type fakeEvaluator struct {
	mu      sync.Mutex
	answers map[string]string
	err     error
	seen    []string
}

func (f *fakeEvaluator) Evaluate(_ context.Context, expression string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, expression)
	if f.err != nil {
		return nil, f.err
	}
	for needle, answer := range f.answers {
		if strings.Contains(expression, needle) {
			return json.RawMessage(answer), nil
		}
	}
	return json.RawMessage("null"), nil
}

func (f *fakeEvaluator) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.seen) == 0 {
		return ""
	}
	return f.seen[len(f.seen)-1]
}

func TestPage_QuerySelector(t *testing.T) {
	eval := &fakeEvaluator{answers: map[string]string{
		`document.querySelector("#slot") !== null`: "true",
	}}
	page := NewPage(eval)

	el, ok := page.QuerySelector("#slot")
	if !ok {
		t.Fatal("Expected #slot to be found")
	}
	if got := el.(*element).expr; got != `document.querySelector("#slot")` {
		t.Errorf("Unexpected element expression %s", got)
	}

	if _, ok := page.QuerySelector("#missing"); ok {
		t.Error("Expected #missing not to be found")
	}
}

func TestPage_QuerySelectorQuotesSelector(t *testing.T) {
	eval := &fakeEvaluator{}
	page := NewPage(eval)

	page.QuerySelector(`div[data-x="a"]`)
	if got := eval.last(); !strings.Contains(got, `document.querySelector("div[data-x=\"a\"]")`) {
		t.Errorf("Expected JSON quoted selector, got %s", got)
	}
}

func TestPage_EscapeCSS(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		expected string
		ok       bool
	}{
		{"escaped", `"a\\.b"`, `a\.b`, true},
		{"no facility", "null", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := NewPage(&fakeEvaluator{answers: map[string]string{"CSS.escape": tt.answer}})
			got, ok := page.EscapeCSS("a.b")
			if ok != tt.ok || got != tt.expected {
				t.Errorf("Expected (%q, %v), got (%q, %v)", tt.expected, tt.ok, got, ok)
			}
		})
	}
}

func TestPage_EvaluationErrors(t *testing.T) {
	page := NewPage(&fakeEvaluator{err: errors.New("connection closed")})

	if _, ok := page.QuerySelector("#slot"); ok {
		t.Error("Expected QuerySelector to fail")
	}
	if _, ok := page.EscapeCSS("slot"); ok {
		t.Error("Expected EscapeCSS to fail")
	}
	if _, ok := page.Player(); ok {
		t.Error("Expected no player")
	}
}

func TestPlayer_PlayOutstream(t *testing.T) {
	eval := &fakeEvaluator{answers: map[string]string{
		"window.HbvPlayer.playOutstream === \"function\"": "true",
		`!== null`: "true",
	}}
	page := NewPage(eval)

	el, _ := page.QuerySelector("#slot")
	p, ok := page.Player()
	if !ok {
		t.Fatal("Expected player")
	}

	var events []string
	err := p.PlayOutstream(el, outstream.PlayOptions{
		VastXML:     "<VAST/>",
		TargetWidth: 640,
		Expand:      outstream.ExpandNoLazyLoad,
		OnEvent:     func(e string) { events = append(events, e) },
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expr := eval.last()
	for _, want := range []string{
		`document.querySelector("#slot")`,
		`"vastXml":"\u003cVAST/\u003e"`,
		`"targetWidth":640`,
		`"expand":"no-lazy-load"`,
		"window." + EventBinding,
	} {
		if !strings.Contains(expr, want) {
			t.Errorf("Expected expression to contain %s:\n%s", want, expr)
		}
	}

	page.DispatchEvent(outstream.EventImpression)
	if len(events) != 1 || events[0] != outstream.EventImpression {
		t.Errorf("Expected impression event to be forwarded, got %v", events)
	}
}

func TestPlayer_ForeignElement(t *testing.T) {
	page := NewPage(&fakeEvaluator{})
	err := player{page: page}.PlayOutstream(struct{}{}, outstream.PlayOptions{})
	if !errors.Is(err, errForeignElement) {
		t.Errorf("Expected errForeignElement, got %v", err)
	}
}

func TestPage_LoadScript(t *testing.T) {
	eval := &fakeEvaluator{answers: map[string]string{"createElement": "true"}}
	page := NewPage(eval)

	if err := page.LoadScript(context.Background(), "https://cdn.example/player.js"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(eval.last(), `s.src = "https://cdn.example/player.js"`) {
		t.Errorf("Expected script src in expression, got %s", eval.last())
	}
}
