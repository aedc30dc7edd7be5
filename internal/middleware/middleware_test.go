package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/thenexusengine/tne_hubvisor/pkg/logger"
)

func TestLogging_RequestID(t *testing.T) {
	var buf bytes.Buffer
	original := logger.Log
	logger.Log = zerolog.New(&buf)
	defer func() { logger.Log = original }()

	var seen string
	handler := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := logger.FromContext(r.Context())
		l.Info().Msg("inside")
		seen = w.Header().Get(RequestIDHeader)
		w.WriteHeader(http.StatusBadRequest)
	}))

	t.Run("generated", func(t *testing.T) {
		buf.Reset()
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

		id := rec.Header().Get(RequestIDHeader)
		if len(id) != 36 || id != seen {
			t.Errorf("Expected a uuid request ID, got %q", id)
		}
		if strings.Count(buf.String(), `"request_id":"`+id+`"`) != 2 {
			t.Errorf("Expected request ID on both log lines, got %s", buf.String())
		}
		if !strings.Contains(buf.String(), `"level":"warn"`) {
			t.Errorf("Expected a warn line for 400, got %s", buf.String())
		}
	})

	t.Run("propagated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		req.Header.Set(RequestIDHeader, "abc")
		handler.ServeHTTP(rec, req)

		if rec.Header().Get(RequestIDHeader) != "abc" {
			t.Errorf("Expected incoming request ID, got %q", rec.Header().Get(RequestIDHeader))
		}
	})
}

func TestSizeLimit(t *testing.T) {
	handler := SizeLimit(SizeLimitConfig{MaxBodySize: 10, MaxURLLength: 30})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name     string
		target   string
		body     io.Reader
		chunked  bool
		expected int
	}{
		{"small", "/a", strings.NewReader("12345"), false, http.StatusOK},
		{"long url", "/" + strings.Repeat("a", 40), nil, false, http.StatusRequestURITooLong},
		{"large body", "/a", strings.NewReader(strings.Repeat("x", 20)), false, http.StatusRequestEntityTooLarge},
		{"large body without length", "/a", strings.NewReader(strings.Repeat("x", 20)), true, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.target, tt.body)
			if tt.chunked {
				req.ContentLength = -1
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	called := false
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/openrtb2/auction", nil)
	req.Header.Set("Origin", "https://pub.test")
	handler.ServeHTTP(rec, req)

	if called {
		t.Error("Expected preflight to be answered by the middleware")
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://pub.test" || rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Errorf("Unexpected CORS headers %v", rec.Header())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/openrtb2/auction", nil))
	if !called {
		t.Error("Expected non-preflight requests to pass through")
	}
}
