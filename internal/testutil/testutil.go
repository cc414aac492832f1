// Package testutil provides test origins and assertion helpers for go2web.
package testutil

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

const notFound = "HTTP/1.1 404 Not Found\r\nContent-Type: text/plain\r\n\r\nnot found"

// ScriptedOrigin is a raw TCP server that answers each request path with a
// canned byte stream and then closes the connection. It can also act as a
// connection opener that routes every (host, port) pair to itself.
type ScriptedOrigin struct {
	ln net.Listener
	wg sync.WaitGroup

	mu       sync.Mutex
	replies  map[string]string
	hits     map[string]int
	requests []string
	dials    []string
}

// NewScriptedOrigin starts a scripted origin on a loopback port.
func NewScriptedOrigin() (*ScriptedOrigin, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	o := &ScriptedOrigin{
		ln:      ln,
		replies: make(map[string]string),
		hits:    make(map[string]int),
	}

	o.wg.Add(1)
	go o.serve()
	return o, nil
}

func (o *ScriptedOrigin) serve() {
	defer o.wg.Done()
	for {
		conn, err := o.ln.Accept()
		if err != nil {
			return
		}
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.handle(conn)
		}()
	}
}

func (o *ScriptedOrigin) handle(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	var head strings.Builder
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		head.WriteString(line)
		if line == "\r\n" {
			break
		}
	}

	path := "/"
	if parts := strings.Split(head.String(), " "); len(parts) > 1 {
		path = parts[1]
	}

	o.mu.Lock()
	o.hits[path]++
	o.requests = append(o.requests, head.String())
	reply, ok := o.replies[path]
	o.mu.Unlock()

	if !ok {
		reply = notFound
	}
	_, _ = conn.Write([]byte(reply))
}

// Reply sets the raw bytes written for a path.
func (o *ScriptedOrigin) Reply(path, raw string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.replies[path] = raw
}

// Page answers path with a 200 response of the given content type.
func (o *ScriptedOrigin) Page(path, contentType, body string) {
	o.Reply(path, fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n%s",
		contentType, len(body), body))
}

// Redirect answers path with a redirect status pointing at location.
func (o *ScriptedOrigin) Redirect(path string, status int, location string) {
	o.Reply(path, fmt.Sprintf("HTTP/1.1 %d %s\r\nLocation: %s\r\nContent-Length: 0\r\n\r\n",
		status, http.StatusText(status), location))
}

// Open dials the origin whatever host and port are asked for and records the pair.
func (o *ScriptedOrigin) Open(ctx context.Context, host string, port int) (net.Conn, error) {
	o.mu.Lock()
	o.dials = append(o.dials, fmt.Sprintf("%s:%d", host, port))
	o.mu.Unlock()

	var d net.Dialer
	return d.DialContext(ctx, "tcp", o.ln.Addr().String())
}

// Host returns the loopback host the origin listens on.
func (o *ScriptedOrigin) Host() string {
	return o.ln.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the port the origin listens on.
func (o *ScriptedOrigin) Port() int {
	return o.ln.Addr().(*net.TCPAddr).Port
}

// URL returns an absolute http URL for path on this origin.
func (o *ScriptedOrigin) URL(path string) string {
	return fmt.Sprintf("http://%s%s", o.ln.Addr().String(), path)
}

// Hits returns the request count for a path.
func (o *ScriptedOrigin) Hits(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

// TotalHits returns the number of requests served.
func (o *ScriptedOrigin) TotalHits() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.requests)
}

// Requests returns the raw request heads received so far.
func (o *ScriptedOrigin) Requests() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.requests))
	copy(out, o.requests)
	return out
}

// Dials returns the host:port pairs passed to Open.
func (o *ScriptedOrigin) Dials() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.dials))
	copy(out, o.dials)
	return out
}

// Close stops the origin and waits for in-flight connections.
func (o *ScriptedOrigin) Close() {
	o.ln.Close()
	o.wg.Wait()
}

// NewRouterOrigin starts an httptest server whose routes are set up on a chi router.
func NewRouterOrigin(secure bool, routes func(r chi.Router)) *httptest.Server {
	r := chi.NewRouter()
	routes(r)
	if secure {
		return httptest.NewTLSServer(r)
	}
	return httptest.NewServer(r)
}

// HTMLBuilder helps build test HTML content.
type HTMLBuilder struct {
	title      string
	paragraphs []string
	scripts    []string
	results    []Link
	bodyExtra  string
}

// Link represents a link for testing.
type Link struct {
	Href string
	Text string
}

// NewHTMLBuilder creates a new HTML builder.
func NewHTMLBuilder() *HTMLBuilder {
	return &HTMLBuilder{}
}

// Title sets the page title.
func (b *HTMLBuilder) Title(title string) *HTMLBuilder {
	b.title = title
	return b
}

// Paragraph adds a paragraph to the body.
func (b *HTMLBuilder) Paragraph(text string) *HTMLBuilder {
	b.paragraphs = append(b.paragraphs, text)
	return b
}

// Script adds an inline script to the body.
func (b *HTMLBuilder) Script(code string) *HTMLBuilder {
	b.scripts = append(b.scripts, code)
	return b
}

// SearchResult adds a result block shaped like a search engine result page.
func (b *HTMLBuilder) SearchResult(href, text string) *HTMLBuilder {
	b.results = append(b.results, Link{Href: href, Text: text})
	return b
}

// Body appends raw markup at the end of the body.
func (b *HTMLBuilder) Body(content string) *HTMLBuilder {
	b.bodyExtra = content
	return b
}

// Build generates the HTML.
func (b *HTMLBuilder) Build() string {
	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	if b.title != "" {
		sb.WriteString(fmt.Sprintf("  <title>%s</title>\n", b.title))
	}
	sb.WriteString("</head>\n<body>\n")

	for _, p := range b.paragraphs {
		sb.WriteString(fmt.Sprintf("  <p>%s</p>\n", p))
	}
	for _, code := range b.scripts {
		sb.WriteString(fmt.Sprintf("  <script>%s</script>\n", code))
	}
	for _, r := range b.results {
		sb.WriteString(fmt.Sprintf("  <div class=\"egMi0 kCrYT\"><a href=\"%s\"><span>%s</span></a></div>\n", r.Href, r.Text))
	}
	if b.bodyExtra != "" {
		sb.WriteString(b.bodyExtra)
		sb.WriteString("\n")
	}

	sb.WriteString("</body>\n</html>")
	return sb.String()
}
