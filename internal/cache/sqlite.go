package cache

import (
	"encoding/json"
	"fmt"

	"github.com/go2web/go2web/internal/storage"
)

// SQLiteBackend stores the record in a SQLite responses table.
type SQLiteBackend struct {
	db *storage.Database
}

var _ Backend = (*SQLiteBackend)(nil)

// NewSQLiteBackend opens (and creates if needed) the database at path.
func NewSQLiteBackend(driver storage.Driver, path string) (*SQLiteBackend, error) {
	db, err := storage.NewDatabase(driver, path)
	if err != nil {
		return nil, err
	}
	if err := db.Initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteBackend{db: db}, nil
}

func (s *SQLiteBackend) ReadAll() (map[string]Entry, error) {
	rows, err := s.db.LoadResponses()
	if err != nil {
		return nil, fmt.Errorf("failed to load responses: %w", err)
	}

	entries := make(map[string]Entry, len(rows))
	for _, r := range rows {
		var headers []Header
		if err := json.Unmarshal([]byte(r.HeadersJSON), &headers); err != nil {
			return nil, fmt.Errorf("bad headers for %s: %w", r.Fingerprint, err)
		}
		entries[r.Fingerprint] = Entry{
			StatusLine: r.StatusLine,
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       r.Body,
			StoredAt:   r.StoredAt,
		}
	}
	return entries, nil
}

func (s *SQLiteBackend) WriteAll(entries map[string]Entry) error {
	rows := make([]*storage.StoredResponse, 0, len(entries))
	for fp, ent := range entries {
		headers, err := json.Marshal(ent.Headers)
		if err != nil {
			return fmt.Errorf("failed to marshal headers: %w", err)
		}
		rows = append(rows, &storage.StoredResponse{
			Fingerprint: fp,
			StatusLine:  ent.StatusLine,
			StatusCode:  ent.StatusCode,
			HeadersJSON: string(headers),
			Body:        ent.Body,
			StoredAt:    ent.StoredAt,
		})
	}
	return s.db.ReplaceResponses(rows)
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
