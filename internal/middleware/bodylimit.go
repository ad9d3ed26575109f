package middleware

import (
	"io"
	"net/http"

	"github.com/vyrodovalexey/avhookgw/internal/observability"
)

// ErrBodyTooLarge is the JSON body returned for oversized requests.
// It carries the same error code as the forwarder's body-read
// rejection so declared and chunked over-limit bodies look identical
// to the caller.
const ErrBodyTooLarge = `{"error":"invalid_body","message":"request body exceeds the configured size limit"}`

// BodyLimit returns a middleware that limits the request body size.
// Requests whose Content-Length already exceeds the limit are rejected
// up front; chunked bodies are capped while being read, which surfaces
// downstream as a body read error.
func BodyLimit(maxSize int64, logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxSize {
				logger.Warn("request body too large",
					observability.Int64("content_length", r.ContentLength),
					observability.Int64("max_size", maxSize),
					observability.String("path", r.URL.Path),
				)

				w.Header().Set(HeaderContentType, ContentTypeJSON)
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, ErrBodyTooLarge)
				return
			}

			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			}

			next.ServeHTTP(w, r)
		})
	}
}
