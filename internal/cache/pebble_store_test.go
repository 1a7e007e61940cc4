package cache

import (
	"testing"
	"time"
)

func TestPebbleStore_PutGetRange(t *testing.T) {
	dir := t.TempDir()
	st, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	at := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	if err := st.Put("a", entry("ra", at)); err != nil {
		t.Fatalf("put a: %v", err)
	}
	if err := st.Put("b", entry("rb", at)); err != nil {
		t.Fatalf("put b: %v", err)
	}

	got, ok := st.Get("a")
	if !ok || got.Payload.ID != "ra" || !got.StoredAt.Equal(at) {
		t.Fatalf("bad a: %+v ok=%v", got, ok)
	}
	if _, ok := st.Get("missing"); ok {
		t.Fatalf("missing key reported present")
	}

	var keys []string
	if err := st.Range(func(k string, _ Entry) error { keys = append(keys, k); return nil }); err != nil {
		t.Fatalf("range err: %v", err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("range keys = %v", keys)
	}

	if err := st.Delete("a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if st.Len() != 1 {
		t.Fatalf("len=%d want 1", st.Len())
	}
}

func TestPebbleStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	st, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	if err := st.Put("k", entry("r", time.Now())); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	st, err = NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	if e, ok := st.Get("k"); !ok || e.Payload.ID != "r" {
		t.Fatalf("entry lost across reopen: %+v ok=%v", e, ok)
	}
}
