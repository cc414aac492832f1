package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/go2web/go2web/internal/config"
	"github.com/go2web/go2web/internal/storage"
	"github.com/go2web/go2web/internal/testutil"
)

func sampleEntry(body string) Entry {
	return Entry{
		StatusLine: "HTTP/1.1 200 OK",
		StatusCode: 200,
		Headers: []Header{
			{Name: "Content-Type", Value: "text/html; charset=utf-8"},
			{Name: "Set-Cookie", Value: "a=1"},
			{Name: "Set-Cookie", Value: "b=2"},
		},
		Body:     body,
		StoredAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func assertSameEntry(t *testing.T, got, want Entry) {
	t.Helper()
	testutil.Assert(t, got.StatusLine).Named("status line").Equals(want.StatusLine)
	testutil.Assert(t, got.StatusCode).Named("status code").Equals(want.StatusCode)
	testutil.Assert(t, got.Headers).Named("headers").Equals(want.Headers)
	testutil.Assert(t, got.Body).Named("body").Equals(want.Body)
	testutil.Assert(t, got.StoredAt.Equal(want.StoredAt)).Named("stored at").IsTrue()
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("example.com:443/")
	testutil.Assert(t, a).HasLength(64)
	testutil.Assert(t, a).Equals(Fingerprint("example.com:443/"))
	testutil.Assert(t, a == Fingerprint("example.com:80/")).IsFalse()
}

func TestStoreGetMiss(t *testing.T) {
	s := NewStore(NewMemoryBackend())

	_, ok, err := s.Get("example.com:443/")
	testutil.MustNotFail(t, err)
	testutil.Assert(t, ok).IsFalse()
}

func TestStorePutIsIdempotent(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewStore(backend)
	ent := sampleEntry("<p>hi</p>")

	testutil.MustNotFail(t, s.Put("example.com:443/", ent))
	testutil.MustNotFail(t, s.Put("example.com:443/", ent))

	n, err := s.Len()
	testutil.MustNotFail(t, err)
	testutil.Assert(t, n).Equals(1)
	testutil.Assert(t, backend.Writes()).Named("every put flushes").Equals(2)

	got, ok, err := s.Get("example.com:443/")
	testutil.MustNotFail(t, err)
	testutil.Assert(t, ok).IsTrue()
	assertSameEntry(t, got, ent)
}

func TestStoreLoadsLazily(t *testing.T) {
	backend := NewMemoryBackend()
	ent := sampleEntry("cached")
	testutil.MustNotFail(t, backend.WriteAll(map[string]Entry{Fingerprint("h:80/x"): ent}))

	s := NewStore(backend)
	got, ok, err := s.Get("h:80/x")
	testutil.MustNotFail(t, err)
	testutil.Assert(t, ok).IsTrue()
	assertSameEntry(t, got, ent)

	// Load after lazy load does not re-read.
	testutil.MustNotFail(t, backend.WriteAll(map[string]Entry{}))
	testutil.MustNotFail(t, s.Load())
	_, ok, _ = s.Get("h:80/x")
	testutil.Assert(t, ok).IsTrue()
}

func TestStoreClear(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewStore(backend)
	testutil.MustNotFail(t, s.Put("a:80/", sampleEntry("a")))
	testutil.MustNotFail(t, s.Put("b:80/", sampleEntry("b")))

	testutil.MustNotFail(t, s.Clear())

	n, err := s.Len()
	testutil.MustNotFail(t, err)
	testutil.Assert(t, n).Equals(0)

	stored, err := backend.ReadAll()
	testutil.MustNotFail(t, err)
	testutil.Assert(t, stored).IsEmpty()
}

func TestBackendsRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(dir string) config.CacheConfig
	}{
		{"json", func(dir string) config.CacheConfig {
			return config.CacheConfig{Backend: config.CacheJSON, Path: filepath.Join(dir, "nested", "cache.json")}
		}},
		{"sqlite3", func(dir string) config.CacheConfig {
			return config.CacheConfig{Backend: config.CacheSQLite3, Path: filepath.Join(dir, "cache.db")}
		}},
		{"sqlite", func(dir string) config.CacheConfig {
			return config.CacheConfig{Backend: config.CacheSQLitePure, Path: filepath.Join(dir, "cache.db")}
		}},
		{"leveldb", func(dir string) config.CacheConfig {
			return config.CacheConfig{Backend: config.CacheLevelDB, Path: filepath.Join(dir, "cache.ldb")}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg(t.TempDir())
			first := sampleEntry("<html><body>first</body></html>")
			second := sampleEntry("second � body")
			second.StatusLine = "HTTP/1.1 404 Not Found"
			second.StatusCode = 404

			s, err := Open(cfg)
			testutil.MustNotFail(t, err)
			testutil.MustNotFail(t, s.Put("example.com:443/", first))
			testutil.MustNotFail(t, s.Put("example.com:443/missing", second))
			testutil.MustNotFail(t, s.Close())

			reopened, err := Open(cfg)
			testutil.MustNotFail(t, err)
			defer reopened.Close()

			n, err := reopened.Len()
			testutil.MustNotFail(t, err)
			testutil.Assert(t, n).Equals(2)

			got, ok, err := reopened.Get("example.com:443/")
			testutil.MustNotFail(t, err)
			testutil.Assert(t, ok).IsTrue()
			assertSameEntry(t, got, first)

			got, ok, err = reopened.Get("example.com:443/missing")
			testutil.MustNotFail(t, err)
			testutil.Assert(t, ok).IsTrue()
			assertSameEntry(t, got, second)

			// Clearing rewrites the durable record too.
			testutil.MustNotFail(t, reopened.Clear())
			stored, err := reopened.backend.ReadAll()
			testutil.MustNotFail(t, err)
			testutil.Assert(t, stored).IsEmpty()
		})
	}
}

func TestNewBackendUnknown(t *testing.T) {
	_, err := NewBackend(config.CacheConfig{Backend: "redis"})
	testutil.AssertError(t, err).HasError().ContainsMessage("unsupported cache backend")
}

func TestJSONBackendMissingFile(t *testing.T) {
	b := NewJSONBackend(filepath.Join(t.TempDir(), "absent.json"))
	entries, err := b.ReadAll()
	testutil.MustNotFail(t, err)
	testutil.Assert(t, entries).IsEmpty()
}

func TestSQLiteBackendDrivers(t *testing.T) {
	for _, driver := range []storage.Driver{storage.DriverCgo, storage.DriverPure} {
		t.Run(string(driver), func(t *testing.T) {
			b, err := NewSQLiteBackend(driver, filepath.Join(t.TempDir(), "c.db"))
			testutil.MustNotFail(t, err)
			defer b.Close()

			entries, err := b.ReadAll()
			testutil.MustNotFail(t, err)
			testutil.Assert(t, entries).IsEmpty()
		})
	}
}
