package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var entryPrefix = []byte("e:")

// LevelDBBackend stores gob-encoded entries in a LevelDB directory.
type LevelDBBackend struct {
	db *leveldb.DB
}

var _ Backend = (*LevelDBBackend)(nil)

// NewLevelDBBackend opens (and creates if needed) the database directory at path.
func NewLevelDBBackend(path string) (*LevelDBBackend, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}
	return &LevelDBBackend{db: db}, nil
}

func (l *LevelDBBackend) ReadAll() (map[string]Entry, error) {
	it := l.db.NewIterator(util.BytesPrefix(entryPrefix), nil)
	defer it.Release()

	entries := make(map[string]Entry)
	for it.Next() {
		var ent Entry
		if err := decodeGob(it.Value(), &ent); err != nil {
			return nil, fmt.Errorf("bad entry %s: %w", it.Key(), err)
		}
		entries[string(bytes.TrimPrefix(it.Key(), entryPrefix))] = ent
	}
	return entries, it.Error()
}

// WriteAll replaces every stored key in a single batch.
func (l *LevelDBBackend) WriteAll(entries map[string]Entry) error {
	batch := new(leveldb.Batch)

	it := l.db.NewIterator(util.BytesPrefix(entryPrefix), nil)
	for it.Next() {
		fp := string(bytes.TrimPrefix(it.Key(), entryPrefix))
		if _, keep := entries[fp]; !keep {
			batch.Delete(append([]byte(nil), it.Key()...))
		}
	}
	it.Release()
	if err := it.Error(); err != nil {
		return err
	}

	for fp, ent := range entries {
		b, err := encodeGob(ent)
		if err != nil {
			return fmt.Errorf("failed to encode entry: %w", err)
		}
		batch.Put(append(append([]byte(nil), entryPrefix...), fp...), b)
	}

	return l.db.Write(batch, nil)
}

func (l *LevelDBBackend) Close() error {
	return l.db.Close()
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
