// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides structured request logging, a panic-safe recovery
// handler, and a request ID injector:
//
//   - RequestID() ensures every request carries a stable correlation ID
//     (propagated via X-Request-ID and stored in the Gin context).
//   - Logger() emits structured access logs with request/response metadata
//     (latency, status, sizes), attaches a request-scoped zerolog.Logger,
//     selects log level by outcome (info/warn/error), skips probe paths, and
//     masks credential-bearing headers.
//   - Recovery() converts panics into JSON 500 responses while preserving the
//     correlation ID and emitting a stack trace to logs; the stack reaches
//     the response body only outside production.
//   - LoggerFrom() retrieves the request-scoped logger to enrich logs within
//     handlers and services.
//
// Ordering: RequestID() first, then Logger(), then Recovery(), so panics and
// errors are logged with the correlation ID attached.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
	// maskedValue replaces sensitive header values in logs.
	maskedValue = "[REDACTED]"
)

// CtxKeyUserID is the Gin context key under which the auth gate stores the
// verified subject id. The writer (auth middleware) and the readers (handlers,
// access logger) all reference this one definition.
const CtxKeyUserID = "userID"

// RequestID attaches (or propagates) a correlation identifier per request.
//
// Behavior:
//   - If the incoming request has X-Request-ID (header lookup is
//     case-insensitive), that value is reused. Otherwise a new UUIDv4 is
//     generated.
//   - The ID is written back to the response header (X-Request-ID) and stored
//     in the Gin context under the "requestID" key.
//
// Place this first in the chain so every downstream stage and the error
// responder can rely on the ID. This stage never rejects a request.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// LoggerOptions tunes the access logger.
type LoggerOptions struct {
	// SkipPaths lists URL paths logged at no level at all (operational
	// probes poll frequently and would drown real traffic).
	SkipPaths []string
	// MaskHeaders lists request headers whose values must never reach logs
	// (credentials, webhook signatures). Presence is still recorded.
	MaskHeaders []string
}

// Logger writes a structured access log for each request and response.
//
// Records method, path (route when available), remote IP, UA, correlation ID,
// subject ID (when authenticated), request size, response status, latency,
// and bytes written. Masked headers are logged as "[REDACTED]" when present.
// A request-scoped zerolog.Logger is stored in the Gin context (key "logger")
// so downstream code can emit enriched logs tied to the request.
//
// Level selection: error() for 5xx or collected Gin errors, warn() for 4xx,
// info() otherwise.
func Logger(opts LoggerOptions) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		path := c.FullPath()
		if path == "" {
			// Fallback when route not matched / 404.
			path = c.Request.URL.Path
		}

		lctx := log.With().
			Str("request_id", asString(rid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Int64("bytes_in", c.Request.ContentLength)
		for _, h := range opts.MaskHeaders {
			if c.GetHeader(h) != "" {
				lctx = lctx.Str("header_"+h, maskedValue)
			}
		}
		l := lctx.Logger()

		// Make it available to handlers/services.
		c.Set("logger", &l)

		c.Next()

		if _, quiet := skip[c.Request.URL.Path]; quiet {
			return
		}

		latency := time.Since(start)
		status := c.Writer.Status()

		ev := l.With().
			Str("user_id", asString(mustGet(c, CtxKeyUserID))).
			Int("status", status).
			Dur("latency", latency).
			Int("bytes_out", c.Writer.Size()).
			Logger()

		switch {
		// If Gin collected errors, prefer error level.
		case len(c.Errors) > 0:
			ev.Error().Str("errors", c.Errors.String()).Msg("request")
		case status >= 500:
			ev.Error().Msg("request")
		case status >= 400:
			ev.Warn().Msg("request")
		default:
			ev.Info().Msg("request")
		}
	}
}

// Recovery intercepts panics, logs a stack trace, and returns a JSON 500 in
// the standard error envelope. When includeStack is true (non-production
// builds), the stack is included in the response body for debugging; in
// production it stays in the logs.
//
// Place this after Logger() so the panic is captured with structured context.
func Recovery(includeStack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid, _ := c.Get(requestIDKey)
				stack := debug.Stack()
				log.Error().
					Interface("panic", rec).
					Bytes("stack", stack).
					Str("request_id", asString(rid)).
					Msg("panic recovered")

				// Only write if nothing has been written yet.
				if !c.Writer.Written() {
					body := gin.H{
						"error":      "Internal Server Error",
						"statusCode": http.StatusInternalServerError,
						"requestId":  asString(rid),
						"code":       "internal_error",
					}
					if includeStack {
						body["stack"] = string(stack)
					}
					c.Header(requestIDHeader, asString(rid))
					c.AbortWithStatusJSON(http.StatusInternalServerError, body)
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped zerolog.Logger.
//
// If a logger was not previously attached by Logger(), a fallback logger is
// returned (without request-scoped fields). Callers can safely use the result
// without nil checks.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("logger"); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// RequestIDFrom returns the correlation identifier attached by RequestID().
func RequestIDFrom(c *gin.Context) string {
	v, _ := c.Get(requestIDKey)
	return asString(v)
}

// asString converts an arbitrary interface to a string, returning an empty
// string when the value is not a string. Used for context values.
func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// mustGet fetches a context value without the presence bool.
func mustGet(c *gin.Context, key string) interface{} {
	v, _ := c.Get(key)
	return v
}
