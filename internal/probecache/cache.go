// Package probecache memoizes ffprobe results in a badger key/value store.
// Entries are keyed by absolute path, size and modification time, so an
// edited file is probed again while unchanged masters and batch folders
// are scanned without spawning ffprobe.
package probecache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/logging"
	"github.com/backmassage/framevault/internal/probe"
)

// DefaultTTL bounds how long a cached probe is trusted.
const DefaultTTL = 30 * 24 * time.Hour

// Cache wraps a probe.Source with a badger-backed memo.
type Cache struct {
	db  *badger.DB
	src probe.Source
	log *logging.Logger
	ttl time.Duration
}

// Open opens (or creates) the cache in dir. An empty dir keeps the cache in
// memory for the lifetime of the process.
func Open(dir string, src probe.Source, log *logging.Logger) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{log.With("probecache")})
	if dir == "" {
		opts = opts.WithInMemory(true)
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create probe cache dir: %w", err)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open probe cache: %w", err)
	}
	return &Cache{db: db, src: src, log: log, ttl: DefaultTTL}, nil
}

// Close flushes and closes the store.
func (c *Cache) Close() error { return c.db.Close() }

// Probe returns the cached result for path when the file is unchanged,
// otherwise probes through the wrapped source and stores the result.
// Cache failures never fail the probe; they are logged and bypassed.
func (c *Cache) Probe(ctx context.Context, path string) (*probe.ProbeResult, error) {
	key, err := cacheKey(path)
	if err != nil {
		return c.src.Probe(ctx, path)
	}

	if pr, ok := c.lookup(key); ok {
		c.log.Debug("probe cache hit: %s", filepath.Base(path))
		return pr, nil
	}

	pr, err := c.src.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := c.store(key, pr); err != nil {
		c.log.Warn("probe cache write failed for %s: %v", filepath.Base(path), err)
	}
	return pr, nil
}

func (c *Cache) lookup(key []byte) (*probe.ProbeResult, bool) {
	var pr probe.ProbeResult
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &pr)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.log.Warn("probe cache read failed: %v", err)
		}
		return nil, false
	}
	return &pr, true
}

func (c *Cache) store(key []byte, pr *probe.ProbeResult) error {
	val, err := json.Marshal(pr)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, val).WithTTL(c.ttl))
	})
}

// cacheKey identifies one version of a file on disk.
func cacheKey(path string) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "probe:%s|%d|%d", abs, fi.Size(), fi.ModTime().UnixNano()), nil
}

// badgerLogger routes badger's internal logging through ours. Badger is
// chatty at info level, so only warnings and errors surface by default.
type badgerLogger struct{ l *logging.Logger }

func (b badgerLogger) Errorf(f string, a ...any)   { b.l.Error(strings.TrimSpace(f), a...) }
func (b badgerLogger) Warningf(f string, a ...any) { b.l.Warn(strings.TrimSpace(f), a...) }
func (b badgerLogger) Infof(f string, a ...any)    { b.l.Debug(strings.TrimSpace(f), a...) }
func (b badgerLogger) Debugf(f string, a ...any)   { b.l.Debug(strings.TrimSpace(f), a...) }
