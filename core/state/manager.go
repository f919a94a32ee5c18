package state

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"ipchain/storage"
)

// Manager persists settlement state over a key-value database using RLP
// encoding and keccak-hashed keys. Writes land in an in-memory overlay with a
// journal of previous values, so callers can take a snapshot before a
// multi-step operation and revert every write if any step fails. Commit
// flushes the overlay to the database.
type Manager struct {
	db      storage.Database
	cache   map[string][]byte
	journal []journalEntry
}

type journalEntry struct {
	key     string
	prev    []byte
	existed bool
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:    db,
		cache: make(map[string][]byte),
	}
}

var (
	accountPrefix      = []byte("acct:")
	sharePrefix        = []byte("shares:")
	assetPrefix        = []byte("asset:")
	ownerPrefix        = []byte("owner:")
	listingPrefix      = []byte("listing:")
	listingIndexPrefix = []byte("listing-index:")
	settlementPrefix   = []byte("settlements:")
)

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func prefixedKey(prefix []byte, parts ...[]byte) []byte {
	buf := append([]byte(nil), prefix...)
	for _, part := range parts {
		buf = append(buf, part...)
	}
	return buf
}

func (m *Manager) read(key []byte) ([]byte, error) {
	hashed := string(kvKey(key))
	if value, ok := m.cache[hashed]; ok {
		return value, nil
	}
	return m.db.Get([]byte(hashed))
}

func (m *Manager) write(key []byte, value []byte) error {
	hashed := string(kvKey(key))
	prev, existed := m.cache[hashed]
	m.journal = append(m.journal, journalEntry{key: hashed, prev: prev, existed: existed})
	m.cache[hashed] = value
	return nil
}

// Snapshot returns a revision marker for the current journal position.
func (m *Manager) Snapshot() int {
	return len(m.journal)
}

// RevertToSnapshot discards every write recorded after the revision marker.
func (m *Manager) RevertToSnapshot(revision int) {
	if revision < 0 || revision > len(m.journal) {
		return
	}
	for i := len(m.journal) - 1; i >= revision; i-- {
		entry := m.journal[i]
		if entry.existed {
			m.cache[entry.key] = entry.prev
		} else {
			delete(m.cache, entry.key)
		}
	}
	m.journal = m.journal[:revision]
}

// Commit flushes the overlay to the database and resets the journal.
func (m *Manager) Commit() error {
	for key, value := range m.cache {
		if err := m.db.Put([]byte(key), value); err != nil {
			return err
		}
	}
	m.cache = make(map[string][]byte)
	m.journal = m.journal[:0]
	return nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.write(key, encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the
// key existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.read(key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}
