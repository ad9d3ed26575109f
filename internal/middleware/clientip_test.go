package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIPExtractor_Extract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		xff        string
		want       string
	}{
		{
			name:       "no trusted proxies uses remote addr",
			remoteAddr: "203.0.113.7:51234",
			xff:        "10.0.0.1",
			want:       "203.0.113.7",
		},
		{
			name:       "untrusted remote ignores forwarded header",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "203.0.113.7:51234",
			xff:        "198.51.100.1",
			want:       "203.0.113.7",
		},
		{
			name:       "trusted proxy takes forwarded client",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.0.0.5:51234",
			xff:        "198.51.100.1",
			want:       "198.51.100.1",
		},
		{
			name:       "walks past trusted hops right to left",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.0.0.5:51234",
			xff:        "198.51.100.1, 10.0.0.2, 10.0.0.3",
			want:       "198.51.100.1",
		},
		{
			name:       "all hops trusted falls back to remote",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.0.0.5:51234",
			xff:        "10.0.0.1, 10.0.0.2",
			want:       "10.0.0.5",
		},
		{
			name:       "single ip proxy entry",
			trusted:    []string{"10.0.0.5"},
			remoteAddr: "10.0.0.5:51234",
			xff:        "198.51.100.1",
			want:       "198.51.100.1",
		},
		{
			name:       "ipv6 remote addr",
			trusted:    []string{"::1/128"},
			remoteAddr: "[::1]:51234",
			xff:        "198.51.100.1",
			want:       "198.51.100.1",
		},
		{
			name:       "empty forwarded header falls back",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.0.0.5:51234",
			want:       "10.0.0.5",
		},
		{
			name:       "invalid cidr entries are skipped",
			trusted:    []string{"not-a-cidr"},
			remoteAddr: "203.0.113.7:51234",
			xff:        "198.51.100.1",
			want:       "203.0.113.7",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			extractor := NewClientIPExtractor(tt.trusted)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set(HeaderXForwardedFor, tt.xff)
			}

			assert.Equal(t, tt.want, extractor.Extract(req))
		})
	}
}
