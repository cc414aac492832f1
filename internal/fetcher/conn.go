package fetcher

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/go2web/go2web/internal/config"
	"github.com/go2web/go2web/internal/urlutil"
)

// Opener opens a byte-stream transport to a host and port.
type Opener interface {
	Open(ctx context.Context, host string, port int) (net.Conn, error)
}

// Dialer opens TCP connections and wraps them in TLS when the port is 443.
type Dialer struct {
	// TCP connect timeout (0 = none)
	ConnectTimeout time.Duration

	// Accept any certificate and server name. This is the default because the
	// tool favours reaching misconfigured servers over authenticating them.
	InsecureSkipVerify bool
}

var _ Opener = (*Dialer)(nil)

// NewDialer creates a dialer from configuration.
func NewDialer(cfg *config.Config) *Dialer {
	if cfg.InsecureSkipVerify {
		log.Warn().Msg("TLS certificate verification is disabled (insecureSkipVerify)")
	}
	return &Dialer{
		ConnectTimeout:     cfg.ConnectTimeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
}

// Open connects to host:port. Port 443 gets a TLS session.
func (d *Dialer) Open(ctx context.Context, host string, port int) (net.Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	return d.dial(ctx, addr, port == urlutil.HTTPSPort, host, port)
}

func (d *Dialer) dial(ctx context.Context, addr string, secure bool, host string, port int) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: d.ConnectTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Host: host, Port: port, Op: "dial", Err: err}
	}
	if !secure {
		return conn, nil
	}

	tlsConn := tls.Client(conn, &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: d.InsecureSkipVerify,
	})

	hsCtx := ctx
	if d.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		hsCtx, cancel = context.WithTimeout(ctx, d.ConnectTimeout)
		defer cancel()
	}
	if err := tlsConn.HandshakeContext(hsCtx); err != nil {
		conn.Close()
		return nil, &ConnectionError{Host: host, Port: port, Op: "tls", Err: err}
	}

	log.Trace().
		Str("host", host).
		Str("version", tlsVersionString(tlsConn.ConnectionState().Version)).
		Msg("TLS session established")
	return tlsConn, nil
}

func tlsVersionString(version uint16) string {
	switch version {
	case tls.VersionTLS10:
		return "TLS 1.0"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	default:
		return "unknown"
	}
}
