package devtools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/mafredri/cdp/rpcc"

	"github.com/thenexusengine/tne_hubvisor/pkg/logger"
)

// Session is a CDP connection to one page target
type Session struct {
	conn   *rpcc.Conn
	client *cdp.Client
}

// Dial connects to the first page target of the browser at devtoolsURL
// (for example http://127.0.0.1:9222), opening a new tab if there is none
func Dial(ctx context.Context, devtoolsURL string) (*Session, error) {
	dt := devtool.New(devtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing targets: %w", err)
	}

	var sel *devtool.Target
	for i := range targets {
		if targets[i].Type == devtool.Page {
			sel = targets[i]
			break
		}
	}
	if sel == nil {
		if sel, err = dt.Create(ctx); err != nil {
			return nil, fmt.Errorf("creating target: %w", err)
		}
	}

	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", sel.WebSocketDebuggerURL, err)
	}

	logger.Outstream().Debug().Str("target", sel.URL).Msg("attached to devtools target")
	return &Session{conn: conn, client: cdp.NewClient(conn)}, nil
}

// Navigate loads url in the tab
func (s *Session) Navigate(ctx context.Context, url string) error {
	_, err := s.client.Page.Navigate(ctx, page.NewNavigateArgs(url))
	return err
}

// Evaluate implements Evaluator. Promises are awaited.
func (s *Session) Evaluate(ctx context.Context, expression string) (json.RawMessage, error) {
	args := runtime.NewEvaluateArgs(expression).
		SetReturnByValue(true).
		SetAwaitPromise(true)

	reply, err := s.client.Runtime.Evaluate(ctx, args)
	if err != nil {
		return nil, err
	}
	if reply.ExceptionDetails != nil {
		return nil, fmt.Errorf("evaluation threw: %s", reply.ExceptionDetails.Text)
	}
	return reply.Result.Value, nil
}

// Listen installs the event binding and forwards player events to p until
// ctx is done
func (s *Session) Listen(ctx context.Context, p *Page) error {
	if err := s.client.Runtime.Enable(ctx); err != nil {
		return err
	}
	if err := s.client.Runtime.AddBinding(ctx, runtime.NewAddBindingArgs(EventBinding)); err != nil {
		return err
	}

	calls, err := s.client.Runtime.BindingCalled(ctx)
	if err != nil {
		return err
	}

	go func() {
		defer calls.Close()
		for {
			ev, err := calls.Recv()
			if err != nil {
				return
			}
			if ev.Name == EventBinding {
				p.DispatchEvent(ev.Payload)
			}
		}
	}()
	return nil
}

// Close closes the connection
func (s *Session) Close() error {
	return s.conn.Close()
}
