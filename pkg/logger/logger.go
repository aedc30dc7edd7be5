// Package logger provides structured logging for the Hubvisor bidder service
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ServiceName is attached to every log line
const ServiceName = "hubvisor"

type contextKey string

const (
	// RequestIDKey is the context key for the inbound request ID
	RequestIDKey contextKey = "request_id"
	// AuctionIDKey is the context key for the auction ID
	AuctionIDKey contextKey = "auction_id"
)

// Log is the process-wide logger
var Log zerolog.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", ServiceName).Logger()

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	TimeFormat string
	// File, when set, also writes JSON logs to a rotated file
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// DefaultConfig returns the logger configuration with environment overrides applied
func DefaultConfig() Config {
	return Config{
		Level:      getEnv("LOG_LEVEL", "info"),
		Format:     getEnv("LOG_FORMAT", "json"),
		TimeFormat: time.RFC3339,
		File:       os.Getenv("LOG_FILE"),
		MaxSizeMB:  100,
		MaxBackups: 3,
	}
}

// Init configures the global logger
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	var out io.Writer = os.Stdout
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: cfg.TimeFormat}
	}

	if cfg.File != "" {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		})
	}

	Log = zerolog.New(out).With().Timestamp().Str("service", ServiceName).Logger()
}

// WithRequestID stores a request ID in the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithAuctionID stores an auction ID in the context
func WithAuctionID(ctx context.Context, auctionID string) context.Context {
	return context.WithValue(ctx, AuctionIDKey, auctionID)
}

// FromContext returns a logger carrying the IDs found in ctx
func FromContext(ctx context.Context) *zerolog.Logger {
	l := Log.With()
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		l = l.Str("request_id", id)
	}
	if id, ok := ctx.Value(AuctionIDKey).(string); ok && id != "" {
		l = l.Str("auction_id", id)
	}
	logger := l.Logger()
	return &logger
}

// Auction returns a logger for a single auction
func Auction(auctionID string) *zerolog.Logger {
	l := Log.With().Str("auction_id", auctionID).Logger()
	return &l
}

// Bidder returns a logger for a bidder adapter
func Bidder(bidderCode string) *zerolog.Logger {
	l := Log.With().Str("bidder", bidderCode).Logger()
	return &l
}

// HTTP returns a logger for the HTTP layer
func HTTP() *zerolog.Logger {
	l := Log.With().Str("component", "http").Logger()
	return &l
}

// Outstream returns a logger for the outstream video renderer
func Outstream() *zerolog.Logger {
	l := Log.With().Str("component", "outstream").Logger()
	return &l
}

// RequestLogger logs within the scope of one inbound request
type RequestLogger struct {
	logger zerolog.Logger
	start  time.Time
}

// NewRequestLogger creates a RequestLogger tagged with requestID
func NewRequestLogger(requestID string) *RequestLogger {
	return &RequestLogger{
		logger: Log.With().Str("request_id", requestID).Logger(),
		start:  time.Now(),
	}
}

// WithField returns a copy of the logger with an extra field
func (r *RequestLogger) WithField(key string, value interface{}) *RequestLogger {
	return &RequestLogger{
		logger: r.logger.With().Interface(key, value).Logger(),
		start:  r.start,
	}
}

// Info logs at info level
func (r *RequestLogger) Info(msg string) {
	r.logger.Info().Msg(msg)
}

// Warn logs at warn level
func (r *RequestLogger) Warn(msg string) {
	r.logger.Warn().Msg(msg)
}

// Error logs at error level with the given error
func (r *RequestLogger) Error(msg string, err error) {
	r.logger.Error().Err(err).Msg(msg)
}

// Duration returns the time elapsed since the logger was created
func (r *RequestLogger) Duration() time.Duration {
	return time.Since(r.start)
}

// LogComplete logs request completion with status and duration
func (r *RequestLogger) LogComplete(status int) {
	r.logger.Info().
		Int("status", status).
		Float64("duration_ms", float64(r.Duration().Microseconds())/1000).
		Msg("request completed")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
