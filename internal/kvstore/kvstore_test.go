package kvstore

import (
	"bytes"
	"path/filepath"
	"testing"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kv.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBytesRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	want := []byte{0x01, 0x02, 0x03}
	if err := s.PutBytes(NamespaceIdentity, KeyPrivKey, want); err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	got, err := s.GetBytes(NamespaceIdentity, KeyPrivKey)
	if err != nil {
		t.Fatalf("GetBytes: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x want %x", got, want)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := setupTestStore(t)
	if _, err := s.GetBytes(NamespaceSettings, "nope"); err != ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPutOverwrites(t *testing.T) {
	s := setupTestStore(t)
	s.PutString(NamespaceSettings, "brightness", "5")
	s.PutString(NamespaceSettings, "brightness", "9")
	got, ok := s.GetString(NamespaceSettings, "brightness")
	if !ok || got != "9" {
		t.Fatalf("got (%q, %v), want (\"9\", true)", got, ok)
	}
}

func TestIntBoolRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	if err := s.PutInt(NamespaceSettings, "ttl", 42); err != nil {
		t.Fatalf("PutInt: %v", err)
	}
	if v, ok := s.GetInt(NamespaceSettings, "ttl"); !ok || v != 42 {
		t.Fatalf("got (%d, %v), want (42, true)", v, ok)
	}

	if err := s.PutBool(NamespaceSettings, "path_check", true); err != nil {
		t.Fatalf("PutBool: %v", err)
	}
	if v, ok := s.GetBool(NamespaceSettings, "path_check"); !ok || !v {
		t.Fatalf("got (%v, %v), want (true, true)", v, ok)
	}
}

func TestClearNamespace(t *testing.T) {
	s := setupTestStore(t)
	s.PutString(NamespaceChannels, "name0", "#Public")
	s.PutString(NamespaceChannels, "name1", "#friends")
	if err := s.Clear(NamespaceChannels); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	keys, err := s.Keys(NamespaceChannels)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected empty namespace after Clear, got %v", keys)
	}
}

func TestNamespacesAreIndependent(t *testing.T) {
	s := setupTestStore(t)
	s.PutString(NamespaceIdentity, "shared", "a")
	s.PutString(NamespaceSettings, "shared", "b")
	a, _ := s.GetString(NamespaceIdentity, "shared")
	b, _ := s.GetString(NamespaceSettings, "shared")
	if a != "a" || b != "b" {
		t.Fatalf("namespace collision: identity=%q settings=%q", a, b)
	}
}
