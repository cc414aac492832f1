package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/go2web/go2web/internal/cache"
	"github.com/go2web/go2web/internal/config"
	"github.com/go2web/go2web/internal/urlutil"
)

// ResponseCache stores final responses by fetch identity.
type ResponseCache interface {
	Get(identity string) (cache.Entry, bool, error)
	Put(identity string, ent cache.Entry) error
}

var _ ResponseCache = (*cache.Store)(nil)

// Fetcher fetches URLs, following redirects and consulting a cache.
type Fetcher struct {
	opener       Opener
	cache        ResponseCache
	engine       Engine
	maxRedirects int
	readTimeout  time.Duration
	limiter      *rate.Limiter
}

// NewFetcher creates a fetcher. A nil cache disables caching.
func NewFetcher(cfg *config.Config, opener Opener, rc ResponseCache) *Fetcher {
	f := &Fetcher{
		opener: opener,
		cache:  rc,
		engine: Engine{
			UserAgent:       cfg.UserAgent,
			MaxResponseSize: cfg.MaxResponseSize,
		},
		maxRedirects: cfg.MaxRedirects,
		readTimeout:  cfg.ReadTimeout,
	}
	if cfg.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return f
}

// Fetch parses rawURL and fetches it.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	res, err := f.FetchTarget(ctx, urlutil.Parse(rawURL))
	if res != nil {
		res.RequestURL = rawURL
	}
	return res, err
}

// FetchTarget fetches target. A cached response for its identity is returned
// without network activity. Otherwise redirects are followed until a final
// response, which is cached under the identity of target.
func (f *Fetcher) FetchTarget(ctx context.Context, target urlutil.Target) (*Result, error) {
	start := time.Now()
	identity := target.Identity()

	result := &Result{
		RequestURL:    target.String(),
		Target:        target,
		Final:         target,
		RedirectChain: make([]RedirectHop, 0),
	}

	if f.cache != nil {
		ent, ok, err := f.cache.Get(identity)
		if err != nil {
			return nil, err
		}
		if ok {
			log.Info().Str("identity", identity).Msg("Retrieved response from cache")
			result.Response = fromEntry(ent)
			result.FromCache = true
			result.ResponseTime = time.Since(start)
			return result, nil
		}
	}

	current := target
	for {
		if len(result.RedirectChain) >= f.maxRedirects {
			return nil, &TooManyRedirectsError{Max: f.maxRedirects, LastPath: current.Path}
		}

		resp, err := f.roundTrip(ctx, current)
		if err != nil {
			return nil, err
		}
		result.Response = resp
		result.Final = current

		if !resp.IsRedirect() {
			break
		}
		location, ok := resp.Header("Location")
		if !ok {
			log.Debug().Int("status", resp.StatusCode).Msg("Redirect without Location, treating as final")
			break
		}

		next := resolveLocation(current, location)
		log.Debug().
			Int("status", resp.StatusCode).
			Str("location", location).
			Str("target", next.String()).
			Msg("Redirecting")

		result.RedirectChain = append(result.RedirectChain, RedirectHop{
			From:       current,
			StatusCode: resp.StatusCode,
			Location:   location,
			To:         next,
		})
		current = next
	}

	if f.cache != nil {
		if err := f.cache.Put(identity, toEntry(result.Response)); err != nil {
			return nil, err
		}
	}

	result.ResponseTime = time.Since(start)
	return result, nil
}

// roundTrip performs one request/response exchange with target.
func (f *Fetcher) roundTrip(ctx context.Context, target urlutil.Target) (*RawResponse, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	log.Debug().Str("target", target.String()).Msg("Requesting")

	conn, err := f.opener.Open(ctx, target.Host, target.Port)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	stop := closeOnCancel(ctx, conn)
	defer stop()

	if f.readTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(f.readTimeout)); err != nil {
			return nil, &ConnectionError{Host: target.Host, Port: target.Port, Op: "read", Err: err}
		}
	}

	resp, err := f.engine.Exchange(conn, target.Host, target.Path)
	if err != nil {
		var connErr *ConnectionError
		if errors.As(err, &connErr) {
			connErr.Port = target.Port
			if ctxErr := ctx.Err(); ctxErr != nil {
				connErr.Err = fmt.Errorf("%w (%v)", ctxErr, connErr.Err)
			}
		}
		return nil, err
	}

	log.Debug().Int("status", resp.StatusCode).Msg("Response received")
	return resp, nil
}

// closeOnCancel closes conn when ctx is done, unblocking pending reads.
func closeOnCancel(ctx context.Context, conn net.Conn) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// resolveLocation turns a Location header into the next target. Absolute
// locations go through urlutil.Parse; scheme-relative and path-only locations
// inherit the current scheme and host. The port is always the scheme default.
func resolveLocation(current urlutil.Target, location string) urlutil.Target {
	var next urlutil.Target
	switch {
	case strings.HasPrefix(location, "//"):
		next = urlutil.Parse(current.Scheme + ":" + location)
	case strings.HasPrefix(location, "/"):
		next = urlutil.Target{Scheme: current.Scheme, Host: current.Host, Path: location}
	default:
		next = urlutil.Parse(location)
	}
	return next.Redirected()
}

func toEntry(r *RawResponse) cache.Entry {
	headers := make([]cache.Header, len(r.Headers))
	for i, h := range r.Headers {
		headers[i] = cache.Header{Name: h.Name, Value: h.Value}
	}
	return cache.Entry{
		StatusLine: r.StatusLine,
		StatusCode: r.StatusCode,
		Headers:    headers,
		Body:       r.Body,
		StoredAt:   time.Now().UTC(),
	}
}

func fromEntry(ent cache.Entry) *RawResponse {
	headers := make([]Header, len(ent.Headers))
	for i, h := range ent.Headers {
		headers[i] = Header{Name: h.Name, Value: h.Value}
	}
	return &RawResponse{
		StatusLine: ent.StatusLine,
		StatusCode: ent.StatusCode,
		Headers:    headers,
		Body:       ent.Body,
	}
}
