// Package storage persists cached responses in SQLite.
package storage

import "time"

// StoredResponse is one row of the responses table.
type StoredResponse struct {
	Fingerprint string    `json:"fingerprint"`
	StatusLine  string    `json:"status_line"`
	StatusCode  int       `json:"status_code"`
	HeadersJSON string    `json:"headers_json"` // JSON array of {name, value}
	Body        string    `json:"body"`
	StoredAt    time.Time `json:"stored_at"`
}
