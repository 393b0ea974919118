// Package kvstore implements the namespaced durable key-value store (C8):
// identity material and user settings persisted across reboots.
package kvstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	namespace TEXT NOT NULL,
	key       TEXT NOT NULL,
	value     BLOB NOT NULL,
	PRIMARY KEY (namespace, key)
);
`

// Well-known namespaces and keys (spec §4.8, §6 persisted state).
const (
	NamespaceIdentity = "identity"
	NamespaceChannels = "channels"
	NamespaceSettings = "settings"

	KeyPrivKey  = "privkey"
	KeyPubKey   = "pubkey"
	KeyNodeName = "nodename"
)

// ErrNotFound is returned by GetBytes when a key is absent. The typed
// GetString/GetInt/GetBool accessors report the same condition, and a
// stored value that cannot be interpreted as the requested type, with
// ok=false; per spec §4.8, corrupt or partial values behave as "missing".
var ErrNotFound = errors.New("kvstore: not found")

// Store is a namespaced durable key-value store backed by SQLite.
type Store struct {
	conn *sql.DB
}

// Open opens (creating if necessary) the key-value store file at path and
// runs its schema migration. WAL mode matches the durability/concurrency
// profile this store needs under a single writer (the main tick loop).
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("kvstore: opening %s: %w", path, err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kvstore: migrating schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.conn.Close()
}

// PutBytes atomically writes bytes under namespace/key.
func (s *Store) PutBytes(namespace, key string, value []byte) error {
	_, err := s.conn.Exec(
		`INSERT INTO kv (namespace, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value`,
		namespace, key, value,
	)
	if err != nil {
		return fmt.Errorf("kvstore: put %s/%s: %w", namespace, key, err)
	}
	return nil
}

// GetBytes reads the raw bytes under namespace/key.
func (s *Store) GetBytes(namespace, key string) ([]byte, error) {
	var value []byte
	err := s.conn.QueryRow(
		`SELECT value FROM kv WHERE namespace = ? AND key = ?`, namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kvstore: get %s/%s: %w", namespace, key, err)
	}
	return value, nil
}

// PutString stores a UTF-8 string value.
func (s *Store) PutString(namespace, key, value string) error {
	return s.PutBytes(namespace, key, []byte(value))
}

// GetString reads a string value, or ("", false) if absent or unreadable.
func (s *Store) GetString(namespace, key string) (string, bool) {
	b, err := s.GetBytes(namespace, key)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// PutInt stores a signed 64-bit integer.
func (s *Store) PutInt(namespace, key string, value int64) error {
	return s.PutString(namespace, key, strconv.FormatInt(value, 10))
}

// GetInt reads a signed 64-bit integer, or (0, false) if absent or not a
// valid integer.
func (s *Store) GetInt(namespace, key string) (int64, bool) {
	str, ok := s.GetString(namespace, key)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// PutBool stores a boolean.
func (s *Store) PutBool(namespace, key string, value bool) error {
	if value {
		return s.PutString(namespace, key, "1")
	}
	return s.PutString(namespace, key, "0")
}

// GetBool reads a boolean stored by PutBool, or (false, false) if absent
// or not "1"/"0".
func (s *Store) GetBool(namespace, key string) (bool, bool) {
	str, ok := s.GetString(namespace, key)
	if !ok {
		return false, false
	}
	switch str {
	case "1":
		return true, true
	case "0":
		return false, true
	default:
		return false, false
	}
}

// Clear deletes every key in namespace.
func (s *Store) Clear(namespace string) error {
	if _, err := s.conn.Exec(`DELETE FROM kv WHERE namespace = ?`, namespace); err != nil {
		return fmt.Errorf("kvstore: clearing namespace %s: %w", namespace, err)
	}
	return nil
}

// Keys lists every key currently present in namespace, for dump/debug
// tooling (cmd/meshcore-kvtool).
func (s *Store) Keys(namespace string) ([]string, error) {
	rows, err := s.conn.Query(`SELECT key FROM kv WHERE namespace = ? ORDER BY key`, namespace)
	if err != nil {
		return nil, fmt.Errorf("kvstore: listing namespace %s: %w", namespace, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("kvstore: scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
