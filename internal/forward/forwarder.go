package forward

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vyrodovalexey/avhookgw/internal/allowlist"
	"github.com/vyrodovalexey/avhookgw/internal/history"
	"github.com/vyrodovalexey/avhookgw/internal/observability"
	"github.com/vyrodovalexey/avhookgw/internal/routes"
)

// hopHeaders are headers meaningful only for a single network hop.
// They are stripped from both the outbound request and the relayed
// response. Content-Length, Host and Expect are included because the
// outbound transport owns them for the downstream hop.
var hopHeaders = map[string]struct{}{
	"connection":          {},
	"keep-alive":          {},
	"proxy-authenticate":  {},
	"proxy-authorization": {},
	"te":                  {},
	"trailer":             {},
	"trailers":            {},
	"transfer-encoding":   {},
	"upgrade":             {},
	"content-length":      {},
	"host":                {},
	"expect":              {},
}

// bodylessMethods carry no request body downstream.
var bodylessMethods = map[string]struct{}{
	http.MethodGet:  {},
	http.MethodHead: {},
}

// Forwarder relays inbound requests to the destination resolved from
// the route table and records every downstream attempt in the history
// ledger.
type Forwarder struct {
	routes   *routes.Store
	allow    *allowlist.Set
	ledger   *history.Ledger
	logger   observability.Logger
	metrics  *observability.Metrics
	client   *http.Client
	timeout  time.Duration
	clientIP func(*http.Request) string
}

// Option is a functional option for configuring the forwarder.
type Option func(*Forwarder)

// WithLogger sets the logger for the forwarder.
func WithLogger(logger observability.Logger) Option {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithMetrics sets the metrics for the forwarder.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(f *Forwarder) {
		f.metrics = metrics
	}
}

// WithTransport sets the outbound transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(f *Forwarder) {
		f.client.Transport = transport
	}
}

// WithUpstreamTimeout bounds the whole downstream call. Zero leaves
// only the transport defaults in effect.
func WithUpstreamTimeout(timeout time.Duration) Option {
	return func(f *Forwarder) {
		f.timeout = timeout
	}
}

// WithClientIPFunc sets the function used to extract the caller's IP.
func WithClientIPFunc(fn func(*http.Request) string) Option {
	return func(f *Forwarder) {
		f.clientIP = fn
	}
}

// New creates a forwarder. Redirects from the destination are never
// followed: the caller, not the gateway, decides what to do with them.
func New(store *routes.Store, allow *allowlist.Set, ledger *history.Ledger, opts ...Option) *Forwarder {
	f := &Forwarder{
		routes: store,
		allow:  allow,
		ledger: ledger,
		logger: observability.NopLogger(),
		client: &http.Client{
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		clientIP: remoteIP,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Handler returns an http.Handler serving /forward/{key} and
// /forward/{key}/{tail...} for any method.
func (f *Forwarder) Handler(prefix string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.EscapedPath(), prefix)
		rest = strings.TrimPrefix(rest, "/")
		if rest == "" {
			writeError(w, http.StatusNotFound, reasonUnknownKey, "missing route key")
			return
		}

		key := rest
		tail := ""
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			key = rest[:idx]
			tail = rest[idx+1:]
		}

		if decoded, err := url.PathUnescape(key); err == nil {
			key = decoded
		}

		f.Forward(w, r, key, tail)
	})
}

// Forward relays one request for the given route key. tail is the
// escaped path beyond the key, without a leading slash.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, key, tail string) {
	logger := f.logger.WithContext(r.Context())

	dest, ok := f.routes.Get(key)
	if !ok {
		logger.Debug("unknown route key",
			observability.String("key", key),
		)
		f.recordRejection(key, reasonUnknownKey)
		writeError(w, http.StatusNotFound, reasonUnknownKey, ErrUnknownKey.Error()+" "+strconv.Quote(key))
		return
	}

	if !f.allow.IsAllowed(dest) {
		logger.Warn("destination rejected by allowlist",
			observability.String("key", key),
			observability.String("destination", dest),
		)
		f.recordRejection(key, reasonDestinationNotAllowed)
		writeError(w, http.StatusBadRequest, reasonDestinationNotAllowed, ErrDestinationNotAllowed.Error())
		return
	}

	targetURL, err := buildTargetURL(dest, tail, r.URL.RawQuery)
	if err != nil {
		logger.Error("invalid destination URL",
			observability.String("key", key),
			observability.String("destination", dest),
			observability.Error(err),
		)
		f.recordRejection(key, reasonDestinationNotAllowed)
		writeError(w, http.StatusBadRequest, reasonDestinationNotAllowed, "destination URL is invalid")
		return
	}

	// The raw body is buffered up front so the exact bytes the caller
	// sent reach the destination: webhook payloads are often signed
	// over them.
	var body []byte
	if _, bodyless := bodylessMethods[r.Method]; !bodyless && r.Body != nil {
		body, err = io.ReadAll(r.Body)
		if err != nil {
			logger.Warn("failed to read request body",
				observability.String("key", key),
				observability.Error(err),
			)
			f.recordRejection(key, reasonInvalidBody)
			writeError(w, http.StatusBadRequest, reasonInvalidBody, ErrInvalidBody.Error())
			return
		}
	}

	ctx := r.Context()
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	entry := &history.Entry{
		Key:          key,
		Method:       r.Method,
		TailPath:     decodedTail(tail),
		RawQuery:     r.URL.RawQuery,
		Query:        r.URL.Query(),
		RequestBytes: int64(len(body)),
		ClientIP:     f.clientIP(r),
	}

	outbound, err := f.buildOutboundRequest(ctx, r, targetURL, body)
	if err != nil {
		logger.Error("failed to build outbound request",
			observability.String("key", key),
			observability.String("target", targetURL),
			observability.Error(err),
		)
		f.recordRejection(key, reasonDestinationNotAllowed)
		writeError(w, http.StatusBadRequest, reasonDestinationNotAllowed, "destination URL is invalid")
		return
	}

	if f.metrics != nil {
		f.metrics.ForwardStarted()
		defer f.metrics.ForwardFinished()
	}

	start := time.Now()
	resp, err := f.client.Do(outbound)
	if err != nil {
		entry.Status = http.StatusBadGateway
		entry.DurationMs = time.Since(start).Milliseconds()
		entry.Error = err.Error()
		f.finish(entry, start)

		logger.Error("downstream request failed",
			observability.String("key", key),
			observability.String("target", targetURL),
			observability.Error(err),
		)
		writeError(w, http.StatusBadGateway, reasonBadGateway, "failed to reach destination")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	written, copyErr := flushingCopy(w, resp.Body)

	entry.Status = resp.StatusCode
	entry.DurationMs = time.Since(start).Milliseconds()
	entry.ResponseBytes = written
	if copyErr != nil {
		// The status line is already on the wire; all that is left is
		// to record the partial transfer.
		entry.Error = copyErr.Error()
		logger.Warn("response stream interrupted",
			observability.String("key", key),
			observability.Int64("bytes_written", written),
			observability.Error(copyErr),
		)
	}
	f.finish(entry, start)

	logger.Info("forwarded request",
		observability.String("key", key),
		observability.String("method", r.Method),
		observability.String("target", targetURL),
		observability.Int("status", resp.StatusCode),
		observability.Int64("request_bytes", entry.RequestBytes),
		observability.Int64("response_bytes", written),
		observability.Duration("duration", time.Since(start)),
	)
}

// finish records the history entry and forwarding metrics for one
// downstream attempt. The ledger write is best effort and the recent
// push must succeed even when the caller has disconnected, so the
// entry is recorded against context.Background.
func (f *Forwarder) finish(entry *history.Entry, start time.Time) {
	f.ledger.Append(context.Background(), entry)

	if f.metrics != nil {
		f.metrics.RecordForward(
			entry.Key,
			strconv.Itoa(entry.Status),
			time.Since(start).Seconds(),
			entry.RequestBytes,
			entry.ResponseBytes,
		)
	}
}

// recordRejection counts a pre-attempt rejection. Rejections do not
// produce history entries: no downstream attempt was made.
func (f *Forwarder) recordRejection(key, reason string) {
	if f.metrics != nil {
		f.metrics.RecordRejection(key, reason)
	}
}

// buildOutboundRequest constructs the downstream request: same method,
// copied headers minus the hop-by-hop set, X-Forwarded-* appended, and
// the exact raw body bytes.
func (f *Forwarder) buildOutboundRequest(
	ctx context.Context,
	r *http.Request,
	targetURL string,
	body []byte,
) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	outbound, err := http.NewRequestWithContext(ctx, r.Method, targetURL, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		outbound.ContentLength = int64(len(body))
	}

	for name, values := range r.Header {
		if _, hop := hopHeaders[strings.ToLower(name)]; hop {
			continue
		}
		outbound.Header.Set(name, strings.Join(values, ", "))
	}

	// The immediate peer is appended to any inbound chain, matching
	// httputil.ReverseProxy. The history entry's ClientIP goes through
	// the trusted-proxy extractor instead.
	peer := remoteIP(r)
	if prior := outbound.Header.Get("X-Forwarded-For"); prior != "" {
		peer = prior + ", " + peer
	}
	outbound.Header.Set("X-Forwarded-For", peer)
	outbound.Header.Set("X-Forwarded-Proto", schemeOf(r))
	outbound.Header.Set("X-Forwarded-Host", r.Host)

	return outbound, nil
}

// buildTargetURL combines the destination with the tail path and the
// inbound query string.
func buildTargetURL(dest, tail, inboundQuery string) (string, error) {
	target, err := url.Parse(dest)
	if err != nil {
		return "", err
	}

	path := target.EscapedPath()
	if tail != "" {
		path = joinPath(path, tail)
	}

	var sb strings.Builder
	sb.WriteString(target.Scheme)
	sb.WriteString("://")
	if target.User != nil {
		sb.WriteString(target.User.String())
		sb.WriteString("@")
	}
	sb.WriteString(target.Host)
	sb.WriteString(path)
	if q := mergeRawQuery(target.RawQuery, inboundQuery); q != "" {
		sb.WriteString("?")
		sb.WriteString(q)
	}

	return sb.String(), nil
}

// copyResponseHeaders copies every response header except the
// hop-by-hop set, preserving multiple values.
func copyResponseHeaders(dst, src http.Header) {
	for name, values := range src {
		if _, hop := hopHeaders[strings.ToLower(name)]; hop {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

// flushingCopy streams src to dst chunk by chunk, flushing after each
// write so large or slow responses reach the caller without being
// buffered whole.
func flushingCopy(dst http.ResponseWriter, src io.Reader) (int64, error) {
	flusher, _ := dst.(http.Flusher)
	buf := make([]byte, 32*1024)

	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			wn, writeErr := dst.Write(buf[:n])
			written += int64(wn)
			if writeErr != nil {
				return written, writeErr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// decodedTail returns the tail path with percent escapes decoded, for
// history records.
func decodedTail(tail string) string {
	if decoded, err := url.PathUnescape(tail); err == nil {
		return decoded
	}
	return tail
}

// schemeOf reports the scheme the caller used.
func schemeOf(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// remoteIP strips the port from RemoteAddr.
func remoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
