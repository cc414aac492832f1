// Package fetcher speaks raw HTTP/1.1 over TCP or TLS and follows redirects.
package fetcher

import (
	"strings"
	"time"

	"github.com/go2web/go2web/internal/urlutil"
)

// Header is one response header field as it appeared on the wire.
type Header struct {
	Name  string
	Value string
}

// RawResponse is a parsed HTTP response. It is not modified after parsing.
type RawResponse struct {
	// Status line, e.g. "HTTP/1.1 200 OK"
	StatusLine string

	// HTTP status code
	StatusCode int

	// Header fields in wire order, duplicates kept
	Headers []Header

	// Body decoded as UTF-8
	Body string
}

// Header returns the value of the first header field named name (case-insensitive).
func (r *RawResponse) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// HeaderBlock renders the status line and header fields as received.
func (r *RawResponse) HeaderBlock() string {
	var sb strings.Builder
	sb.WriteString(r.StatusLine)
	for _, h := range r.Headers {
		sb.WriteString("\r\n")
		sb.WriteString(h.Name)
		sb.WriteString(": ")
		sb.WriteString(h.Value)
	}
	return sb.String()
}

// ContentType returns the media type without parameters.
func (r *RawResponse) ContentType() string {
	ct, _ := r.Header("Content-Type")
	if idx := strings.Index(ct, ";"); idx != -1 {
		ct = ct[:idx]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// IsJSON returns true if the content type is JSON.
func (r *RawResponse) IsJSON() bool {
	return strings.Contains(r.ContentType(), "application/json")
}

// IsRedirect returns true if the response was a redirect (3xx).
func (r *RawResponse) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

// RedirectHop represents a single redirect in the chain.
type RedirectHop struct {
	From       urlutil.Target
	StatusCode int
	Location   string
	To         urlutil.Target
}

// Result is the outcome of a fetch.
type Result struct {
	// Original requested URL
	RequestURL string

	// Target parsed from RequestURL; its identity is the cache key
	Target urlutil.Target

	// Target that produced the final response
	Final urlutil.Target

	// Final response
	Response *RawResponse

	// Redirects followed, in order
	RedirectChain []RedirectHop

	// Whether the response came from the cache
	FromCache bool

	// Total time spent
	ResponseTime time.Duration
}

// RedirectCount returns the number of redirects.
func (r *Result) RedirectCount() int {
	return len(r.RedirectChain)
}
