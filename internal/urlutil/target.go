// Package urlutil decomposes fetch URLs into connection targets.
package urlutil

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Well-known ports.
const (
	HTTPPort  = 80
	HTTPSPort = 443
)

// Target is a decomposed fetch URL.
type Target struct {
	Scheme string
	Host   string
	Port   int
	Path   string
}

// Parse splits rawURL into scheme, host, port and path.
//
// Parse never fails. A missing scheme means "http", a missing path means "/"
// and a missing port means 443 whatever the scheme is. Input that cannot be
// decomposed sensibly yields a Target that fails later, when dialed.
func Parse(rawURL string) Target {
	t := Target{Scheme: "http", Path: "/"}

	rest := rawURL
	if idx := strings.Index(rest, "://"); idx != -1 {
		t.Scheme = rest[:idx]
		rest = rest[idx+3:]
	}

	hostPort := rest
	if idx := strings.Index(rest, "/"); idx != -1 {
		hostPort = rest[:idx]
		t.Path = rest[idx:]
	}

	t.Host, t.Port = splitHostPort(hostPort)
	return t
}

// splitHostPort splits at the last colon. An unparsable port becomes 0.
func splitHostPort(hostPort string) (string, int) {
	idx := strings.LastIndex(hostPort, ":")
	if idx == -1 {
		return hostPort, HTTPSPort
	}
	port, err := strconv.Atoi(hostPort[idx+1:])
	if err != nil {
		port = 0
	}
	return hostPort[:idx], port
}

// Identity returns the fetch identity "host:port/path". The scheme is not part of it.
func (t Target) Identity() string {
	return fmt.Sprintf("%s:%d%s", t.Host, t.Port, t.Path)
}

// String renders the target as an absolute URL.
func (t Target) String() string {
	return fmt.Sprintf("%s://%s:%d%s", t.Scheme, t.Host, t.Port, t.Path)
}

// IsSecure reports whether the target port is the TLS port.
func (t Target) IsSecure() bool {
	return t.Port == HTTPSPort
}

// Redirected returns the target with its port replaced by the default port of
// its scheme. Redirect targets never keep an explicit port.
func (t Target) Redirected() Target {
	if t.Scheme == "https" {
		t.Port = HTTPSPort
	} else {
		t.Port = HTTPPort
	}
	return t
}

// ResolveURL resolves a possibly relative URL against a base URL.
func ResolveURL(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}

	resolved := baseURL.ResolveReference(refURL)
	return resolved.String(), nil
}

// IsAbsoluteURL checks if a URL is absolute.
func IsAbsoluteURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.IsAbs()
}
