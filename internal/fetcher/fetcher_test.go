package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/go2web/go2web/internal/cache"
	"github.com/go2web/go2web/internal/config"
	"github.com/go2web/go2web/internal/testutil"
	"github.com/go2web/go2web/internal/urlutil"
)

type fixture struct {
	origin  *testutil.ScriptedOrigin
	backend *cache.MemoryBackend
	store   *cache.Store
	fetcher *Fetcher
}

func newFixture(t *testing.T, maxRedirects int) *fixture {
	t.Helper()
	origin, err := testutil.NewScriptedOrigin()
	testutil.MustNotFail(t, err)
	t.Cleanup(origin.Close)

	cfg := config.DefaultConfig()
	cfg.MaxRedirects = maxRedirects
	cfg.ReadTimeout = 5 * time.Second

	backend := cache.NewMemoryBackend()
	store := cache.NewStore(backend)
	return &fixture{
		origin:  origin,
		backend: backend,
		store:   store,
		fetcher: NewFetcher(cfg, origin, store),
	}
}

func TestFetchPlainPage(t *testing.T) {
	fx := newFixture(t, 10)
	fx.origin.Page("/", "text/html", "<p>hello</p>")

	res, err := fx.fetcher.Fetch(context.Background(), fx.origin.URL("/"))
	testutil.MustNotFail(t, err)

	testutil.Assert(t, res.Response.StatusCode).Equals(200)
	testutil.Assert(t, res.Response.Body).Equals("<p>hello</p>")
	testutil.Assert(t, res.FromCache).IsFalse()
	testutil.Assert(t, res.RedirectCount()).Equals(0)
	testutil.Assert(t, fx.origin.Requests()).HasLength(1)
	testutil.Assert(t, fx.origin.Requests()[0]).Contains("Host: 127.0.0.1\r\n")
}

func TestFetchFollowsRedirectChain(t *testing.T) {
	fx := newFixture(t, 10)
	fx.origin.Redirect("/start", 301, "/step")
	fx.origin.Redirect("/step", 302, "/final")
	fx.origin.Page("/final", "text/plain", "done")

	start := fx.origin.URL("/start")
	res, err := fx.fetcher.Fetch(context.Background(), start)
	testutil.MustNotFail(t, err)

	testutil.Assert(t, res.Response.Body).Equals("done")
	testutil.Assert(t, res.RedirectCount()).Equals(2)
	testutil.Assert(t, fx.origin.TotalHits()).Named("N redirects, N+1 exchanges").Equals(3)
	testutil.Assert(t, fx.origin.Dials()).Equals([]string{
		fmt.Sprintf("127.0.0.1:%d", fx.origin.Port()),
		"127.0.0.1:80",
		"127.0.0.1:80",
	})
	testutil.Assert(t, res.Final.Path).Equals("/final")
	testutil.Assert(t, res.RedirectChain[0].Location).Equals("/step")
	testutil.Assert(t, res.RedirectChain[1].StatusCode).Equals(302)

	testutil.Assert(t, fx.backend.Writes()).Named("one cache write").Equals(1)
	n, _ := fx.store.Len()
	testutil.Assert(t, n).Named("only the final response is cached").Equals(1)

	ent, ok, err := fx.store.Get(urlutil.Parse(start).Identity())
	testutil.MustNotFail(t, err)
	testutil.Assert(t, ok).Named("cached under the original identity").IsTrue()
	testutil.Assert(t, ent.Body).Equals("done")

	_, ok, _ = fx.store.Get("127.0.0.1:80/final")
	testutil.Assert(t, ok).IsFalse()
}

func TestFetchTooManyRedirects(t *testing.T) {
	const maxHops = 3
	fx := newFixture(t, maxHops)
	for i := 0; i < 10; i++ {
		fx.origin.Redirect(fmt.Sprintf("/r%d", i), 302, fmt.Sprintf("/r%d", i+1))
	}

	res, err := fx.fetcher.Fetch(context.Background(), fx.origin.URL("/r0"))
	testutil.Assert(t, res).IsNil()

	var tooMany *TooManyRedirectsError
	testutil.AssertError(t, err).HasError().IsKind(&tooMany)
	testutil.Assert(t, tooMany.Max).Equals(maxHops)
	testutil.Assert(t, tooMany.LastPath).Equals("/r3")
	testutil.Assert(t, fx.origin.TotalHits()).Equals(maxHops)
	testutil.Assert(t, fx.backend.Writes()).Named("no cache write").Equals(0)
}

func TestFetchRedirectBelowLimit(t *testing.T) {
	fx := newFixture(t, 3)
	fx.origin.Redirect("/r0", 302, "/r1")
	fx.origin.Redirect("/r1", 302, "/r2")
	fx.origin.Page("/r2", "text/plain", "ok")

	res, err := fx.fetcher.Fetch(context.Background(), fx.origin.URL("/r0"))
	testutil.MustNotFail(t, err)
	testutil.Assert(t, res.Response.Body).Equals("ok")
}

func TestFetchRedirectWithoutLocationIsFinal(t *testing.T) {
	fx := newFixture(t, 10)
	fx.origin.Reply("/", "HTTP/1.1 302 Found\r\nContent-Length: 5\r\n\r\nmoved")

	res, err := fx.fetcher.Fetch(context.Background(), fx.origin.URL("/"))
	testutil.MustNotFail(t, err)

	testutil.Assert(t, res.Response.StatusCode).Equals(302)
	testutil.Assert(t, res.Response.Body).Equals("moved")
	testutil.Assert(t, res.RedirectCount()).Equals(0)
	testutil.Assert(t, fx.backend.Writes()).Equals(1)
}

func TestFetchAbsoluteRedirectUsesSchemePort(t *testing.T) {
	fx := newFixture(t, 10)
	fx.origin.Redirect("/start", 301, "https://example.org/x")
	fx.origin.Redirect("/x", 301, "http://example.net:8080/y")
	fx.origin.Page("/y", "text/plain", "landed")

	res, err := fx.fetcher.Fetch(context.Background(), fx.origin.URL("/start"))
	testutil.MustNotFail(t, err)

	dials := fx.origin.Dials()
	testutil.Assert(t, dials).HasLength(3)
	testutil.Assert(t, dials[1]).Equals("example.org:443")
	testutil.Assert(t, dials[2]).Named("explicit port replaced").Equals("example.net:80")
	testutil.Assert(t, fx.origin.Requests()[1]).Contains("GET /x HTTP/1.1\r\nHost: example.org\r\n")
	testutil.Assert(t, res.Final).Equals(urlutil.Target{Scheme: "http", Host: "example.net", Port: 80, Path: "/y"})
}

func TestFetchSecondCallIsCacheHit(t *testing.T) {
	fx := newFixture(t, 10)
	fx.origin.Reply("/page", "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\nX-A: 1\r\nX-A: 2\r\n\r\n<b>body</b>")

	url := fx.origin.URL("/page")
	first, err := fx.fetcher.Fetch(context.Background(), url)
	testutil.MustNotFail(t, err)
	hits := fx.origin.TotalHits()

	second, err := fx.fetcher.Fetch(context.Background(), url)
	testutil.MustNotFail(t, err)

	testutil.Assert(t, second.FromCache).IsTrue()
	testutil.Assert(t, fx.origin.TotalHits()).Named("no network on cache hit").Equals(hits)
	testutil.Assert(t, second.Response).Equals(first.Response)
}

func TestFetchMalformedResponse(t *testing.T) {
	fx := newFixture(t, 10)
	fx.origin.Reply("/", "this is not http")

	_, err := fx.fetcher.Fetch(context.Background(), fx.origin.URL("/"))
	var malformed *MalformedResponseError
	testutil.AssertError(t, err).HasError().IsKind(&malformed)
	testutil.Assert(t, fx.backend.Writes()).Equals(0)
}

func TestFetchWithoutCache(t *testing.T) {
	origin, err := testutil.NewScriptedOrigin()
	testutil.MustNotFail(t, err)
	defer origin.Close()
	origin.Page("/", "application/json", `{"ok":true}`)

	f := NewFetcher(config.DefaultConfig(), origin, nil)
	for i := 0; i < 2; i++ {
		res, err := f.Fetch(context.Background(), origin.URL("/"))
		testutil.MustNotFail(t, err)
		testutil.Assert(t, res.FromCache).IsFalse()
	}
	testutil.Assert(t, origin.TotalHits()).Equals(2)
}

func TestFetchRateLimitedHops(t *testing.T) {
	origin, err := testutil.NewScriptedOrigin()
	testutil.MustNotFail(t, err)
	defer origin.Close()
	origin.Redirect("/a", 302, "/b")
	origin.Page("/b", "text/plain", "b")

	cfg := config.DefaultConfig()
	cfg.RequestsPerSecond = 10

	started := time.Now()
	_, err = NewFetcher(cfg, origin, nil).Fetch(context.Background(), origin.URL("/a"))
	testutil.MustNotFail(t, err)
	testutil.Assert(t, time.Since(started) >= 80*time.Millisecond).Named("second hop waits").IsTrue()
}

func TestFetchCanceledContext(t *testing.T) {
	fx := newFixture(t, 10)
	fx.origin.Page("/", "text/plain", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.fetcher.Fetch(ctx, fx.origin.URL("/"))
	testutil.AssertError(t, err).HasError()
}

func TestResolveLocation(t *testing.T) {
	current := urlutil.Target{Scheme: "https", Host: "a.example", Port: 8443, Path: "/old"}

	tests := []struct {
		location string
		want     urlutil.Target
	}{
		{"/new?x=1", urlutil.Target{Scheme: "https", Host: "a.example", Port: 443, Path: "/new?x=1"}},
		{"//b.example/p", urlutil.Target{Scheme: "https", Host: "b.example", Port: 443, Path: "/p"}},
		{"http://c.example:81/q", urlutil.Target{Scheme: "http", Host: "c.example", Port: 80, Path: "/q"}},
		{"c.example/q", urlutil.Target{Scheme: "http", Host: "c.example", Port: 80, Path: "/q"}},
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			testutil.Assert(t, resolveLocation(current, tt.location)).Equals(tt.want)
		})
	}
}

func TestDialerConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	testutil.MustNotFail(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	d := &Dialer{ConnectTimeout: time.Second}
	_, err = d.Open(context.Background(), "127.0.0.1", port)

	var connErr *ConnectionError
	testutil.AssertError(t, err).HasError().IsKind(&connErr)
	testutil.Assert(t, connErr.Op).Equals("dial")
	testutil.Assert(t, connErr.Port).Equals(port)
}

func TestFetchReadTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	testutil.MustNotFail(t, err)
	defer ln.Close()

	held := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			held <- conn
		}
	}()
	defer func() {
		select {
		case conn := <-held:
			conn.Close()
		default:
		}
	}()

	cfg := config.DefaultConfig()
	cfg.ReadTimeout = 100 * time.Millisecond
	f := NewFetcher(cfg, NewDialer(cfg), nil)

	_, err = f.Fetch(context.Background(), "http://"+ln.Addr().String()+"/")

	var connErr *ConnectionError
	testutil.AssertError(t, err).HasError().IsKind(&connErr)
	testutil.Assert(t, connErr.Op).Equals("read")
	testutil.Assert(t, connErr.Timeout()).IsTrue()
}

func TestDialerTLS(t *testing.T) {
	srv := testutil.NewRouterOrigin(true, func(r chi.Router) {
		r.Get("/api", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"secure":true}`))
		})
	})
	defer srv.Close()
	addr := srv.Listener.Addr().String()

	t.Run("insecure accepts self-signed", func(t *testing.T) {
		d := &Dialer{ConnectTimeout: 5 * time.Second, InsecureSkipVerify: true}
		conn, err := d.dial(context.Background(), addr, true, "localhost", 443)
		testutil.MustNotFail(t, err)
		defer conn.Close()

		resp, err := Engine{UserAgent: "go2web-test"}.Exchange(conn, "localhost", "/api")
		testutil.MustNotFail(t, err)
		testutil.Assert(t, resp.StatusCode).Equals(200)
		testutil.Assert(t, resp.IsJSON()).IsTrue()
		testutil.Assert(t, strings.TrimSpace(resp.Body)).Equals(`{"secure":true}`)
	})

	t.Run("verification rejects self-signed", func(t *testing.T) {
		d := &Dialer{ConnectTimeout: 5 * time.Second}
		_, err := d.dial(context.Background(), addr, true, "localhost", 443)

		var connErr *ConnectionError
		testutil.AssertError(t, err).HasError().IsKind(&connErr)
		testutil.Assert(t, connErr.Op).Equals("tls")
	})
}
