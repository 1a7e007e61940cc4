package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// PebbleStore implements Store using PebbleDB, so cached reports survive
// restarts of the service.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		MemTableSize:          16 << 20,
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 12,
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func encodeEntry(e Entry) ([]byte, error) { return json.Marshal(e) }

func decodeEntry(val []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (p *PebbleStore) Put(key string, e Entry) error {
	b, err := encodeEntry(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	// Losing the tail of the WAL only loses cache entries.
	if err := p.db.Set([]byte(key), b, pebble.NoSync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}

func (p *PebbleStore) Get(key string) (Entry, bool) {
	v, closer, err := p.db.Get([]byte(key))
	if err != nil {
		return Entry{}, false
	}
	defer closer.Close()
	e, err := decodeEntry(v)
	if err != nil {
		return Entry{}, false
	}
	return e, true
}

func (p *PebbleStore) Range(fn func(key string, e Entry) error) error {
	it, err := p.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		k := string(it.Key())
		e, err := decodeEntry(it.Value())
		if err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
		if err := fn(k, e); err != nil {
			return err
		}
	}
	return nil
}

func (p *PebbleStore) Len() int {
	n := 0
	_ = p.Range(func(string, Entry) error { n++; return nil })
	return n
}

// Delete removes key; a missing key is not an error.
func (p *PebbleStore) Delete(key string) error {
	err := p.db.Delete([]byte(key), pebble.NoSync)
	if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("pebble delete: %w", err)
	}
	return nil
}
