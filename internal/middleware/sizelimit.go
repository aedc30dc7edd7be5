package middleware

import (
	"net/http"
)

// defaultMaxURLLength bounds request URLs (8KB)
const defaultMaxURLLength = 8192

// SizeLimitConfig holds request size limit configuration
type SizeLimitConfig struct {
	MaxBodySize  int64
	MaxURLLength int
}

// SizeLimit rejects oversized URLs and bodies. Bodies without a
// Content-Length are cut off at MaxBodySize while being read.
func SizeLimit(cfg SizeLimitConfig) func(http.Handler) http.Handler {
	if cfg.MaxURLLength <= 0 {
		cfg.MaxURLLength = defaultMaxURLLength
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(r.URL.String()) > cfg.MaxURLLength {
				http.Error(w, `{"error":"URL too long"}`, http.StatusRequestURITooLong)
				return
			}
			if cfg.MaxBodySize <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > cfg.MaxBodySize {
				http.Error(w, `{"error":"request body too large"}`, http.StatusRequestEntityTooLarge)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxBodySize)
			}
			next.ServeHTTP(w, r)
		})
	}
}
