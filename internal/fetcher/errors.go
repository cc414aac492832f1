package fetcher

import (
	"errors"
	"fmt"
	"net"
)

// ConnectionError reports a failure to reach the peer: DNS resolution,
// refused or timed out connections, TLS handshake and socket I/O failures.
type ConnectionError struct {
	Host string
	Port int
	Op   string // dial, tls, write, read
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s:%d: %s", e.Op, e.Host, e.Port, describeNetError(e.Err))
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline expiry.
func (e *ConnectionError) Timeout() bool {
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// MalformedResponseError reports a byte stream that is not an HTTP response.
type MalformedResponseError struct {
	Reason string
	Size   int // bytes received
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response (%d bytes): %s", e.Size, e.Reason)
}

// TooManyRedirectsError reports a redirect chain that reached the hop limit.
type TooManyRedirectsError struct {
	Max      int
	LastPath string
}

func (e *TooManyRedirectsError) Error() string {
	return fmt.Sprintf("stopped after %d redirects, last attempted path: %s", e.Max, e.LastPath)
}

// describeNetError names the common network failure classes.
func describeNetError(err error) string {
	if err == nil {
		return "unknown error"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("DNS error: %v", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("timeout: %v", err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Sprintf("connection failed: %v", err)
	}

	return err.Error()
}
