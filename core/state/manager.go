package state

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"gemfarm/storage"
)

// Manager reads and writes ledger records on top of a key-value database.
// Writes are staged in memory until Commit so a failed operation can be
// discarded without touching the database.
type Manager struct {
	db      storage.Database
	pending map[string][]byte
	deleted map[string]struct{}
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:      db,
		pending: make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) get(key []byte) ([]byte, error) {
	id := string(key)
	if _, ok := m.deleted[id]; ok {
		return nil, nil
	}
	if value, ok := m.pending[id]; ok {
		return value, nil
	}
	value, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return value, err
}

func (m *Manager) put(key, value []byte) {
	id := string(key)
	delete(m.deleted, id)
	m.pending[id] = append([]byte(nil), value...)
}

func (m *Manager) remove(key []byte) {
	id := string(key)
	delete(m.pending, id)
	m.deleted[id] = struct{}{}
}

// Dirty reports the number of staged writes and deletions.
func (m *Manager) Dirty() int {
	return len(m.pending) + len(m.deleted)
}

// Commit writes every staged change to the database in a single batch.
func (m *Manager) Commit() error {
	if m.Dirty() == 0 {
		return nil
	}
	keys := make([]string, 0, m.Dirty())
	for key := range m.pending {
		keys = append(keys, key)
	}
	for key := range m.deleted {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	batch := storage.NewBatch()
	for _, key := range keys {
		if value, ok := m.pending[key]; ok {
			batch.Put([]byte(key), value)
			continue
		}
		batch.Delete([]byte(key))
	}
	if err := m.db.Write(batch); err != nil {
		return err
	}
	m.Discard()
	return nil
}

// Discard drops every staged change.
func (m *Manager) Discard() {
	m.pending = make(map[string][]byte)
	m.deleted = make(map[string]struct{})
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
	m.put(kvKey(key), encoded)
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
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

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.remove(kvKey(key))
	return nil
}

func (m *Manager) loadList(key []byte) ([][]byte, error) {
	data, err := m.get(kvKey(key))
	if err != nil {
		return nil, err
	}
	var list [][]byte
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (m *Manager) storeList(key []byte, list [][]byte) error {
	if len(list) == 0 {
		m.remove(kvKey(key))
		return nil
	}
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	m.put(kvKey(key), encoded)
	return nil
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	list, err := m.loadList(key)
	if err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.storeList(key, list)
}

// KVRemove drops value from the list stored under key.
func (m *Manager) KVRemove(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	list, err := m.loadList(key)
	if err != nil {
		return err
	}
	kept := list[:0]
	for _, existing := range list {
		if !bytes.Equal(existing, value) {
			kept = append(kept, existing)
		}
	}
	return m.storeList(key, kept)
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice to avoid nil
// surprises for callers.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}
