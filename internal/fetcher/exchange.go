package fetcher

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

const readChunkSize = 2048

var headerDelimiter = []byte("\r\n\r\n")

// Engine performs one request/response cycle on an open transport.
type Engine struct {
	UserAgent string

	// Maximum response size in bytes (0 = unlimited). Longer streams are truncated.
	MaxResponseSize int64
}

// Exchange writes a GET request for path and reads the response until the
// peer closes the stream.
func (e Engine) Exchange(rw io.ReadWriter, host, path string) (*RawResponse, error) {
	if _, err := io.WriteString(rw, e.buildRequest(host, path)); err != nil {
		return nil, &ConnectionError{Host: host, Op: "write", Err: err}
	}

	raw, err := e.readAll(rw)
	if err != nil {
		return nil, &ConnectionError{Host: host, Op: "read", Err: err}
	}

	return ParseResponse(raw)
}

// buildRequest frames the request. Connection: close lets the reader rely on
// end-of-stream instead of Content-Length or chunked framing.
func (e Engine) buildRequest(host, path string) string {
	var sb strings.Builder
	sb.WriteString("GET ")
	sb.WriteString(path)
	sb.WriteString(" HTTP/1.1\r\n")
	sb.WriteString("Host: " + host + "\r\n")
	sb.WriteString("User-Agent: " + e.UserAgent + "\r\n")
	sb.WriteString("Connection: close\r\n")
	sb.WriteString("\r\n")
	return sb.String()
}

func (e Engine) readAll(r io.Reader) ([]byte, error) {
	if e.MaxResponseSize > 0 {
		r = io.LimitReader(r, e.MaxResponseSize)
	}

	var buf bytes.Buffer
	chunk := make([]byte, readChunkSize)
	for {
		n, err := r.Read(chunk)
		buf.Write(chunk[:n])
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}
		// Servers often drop TLS connections without close_notify.
		if errors.Is(err, io.ErrUnexpectedEOF) && buf.Len() > 0 {
			return buf.Bytes(), nil
		}
		return nil, err
	}
}

// ParseResponse splits a complete response byte stream into status code,
// header fields and body.
func ParseResponse(raw []byte) (*RawResponse, error) {
	idx := bytes.Index(raw, headerDelimiter)
	if idx == -1 {
		return nil, &MalformedResponseError{Reason: "no blank line after headers", Size: len(raw)}
	}

	lines := strings.Split(decodeText(raw[:idx]), "\r\n")
	statusLine := lines[0]

	fields := strings.Split(statusLine, " ")
	if len(fields) < 2 {
		return nil, &MalformedResponseError{Reason: fmt.Sprintf("bad status line %q", statusLine), Size: len(raw)}
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, &MalformedResponseError{Reason: fmt.Sprintf("bad status code %q", fields[1]), Size: len(raw)}
	}

	headers := make([]Header, 0, len(lines)-1)
	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		headers = append(headers, Header{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
		})
	}

	return &RawResponse{
		StatusLine: statusLine,
		StatusCode: code,
		Headers:    headers,
		Body:       decodeText(raw[idx+len(headerDelimiter):]),
	}, nil
}

// decodeText decodes UTF-8, replacing every undecodable byte with U+FFFD.
func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}
