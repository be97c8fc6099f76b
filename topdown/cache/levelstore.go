package cache

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

var (
	lowerKey = []byte("bound:lower")
	upperKey = []byte("bound:upper")
)

// LevelStore is a Store backed by LevelDB, the persistent mirror that must
// remain bit-identical to an in-memory Sequential cache of the same value
// type. Keys are big-endian encoded so LevelDB's natural ordering matches
// height ordering.
type LevelStore[V any] struct {
	db     *leveldb.DB
	prefix []byte
}

// NewLevelStore wraps an already-open LevelDB handle, namespacing all keys
// under prefix so multiple stores can share one database.
func NewLevelStore[V any](db *leveldb.DB, prefix string) *LevelStore[V] {
	return &LevelStore[V]{db: db, prefix: []byte(prefix)}
}

func (s *LevelStore[V]) valueKey(k uint64) []byte {
	buf := make([]byte, len(s.prefix)+1+8)
	n := copy(buf, s.prefix)
	buf[n] = 'v'
	binary.BigEndian.PutUint64(buf[n+1:], k)
	return buf
}

func (s *LevelStore[V]) boundKey(suffix []byte) []byte {
	return append(append([]byte{}, s.prefix...), suffix...)
}

func (s *LevelStore[V]) readBound(suffix []byte) (uint64, bool, error) {
	val, err := s.db.Get(s.boundKey(suffix), nil)
	if err == leveldb.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("cache store: read bound: %w", err)
	}
	return binary.BigEndian.Uint64(val), true, nil
}

func (s *LevelStore[V]) writeBound(suffix []byte, v uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return s.db.Put(s.boundKey(suffix), buf, nil)
}

// Append inserts v at k, enforcing the same sequential contract as Sequential.
func (s *LevelStore[V]) Append(k uint64, v V) error {
	_, upperOK, err := s.readBound(upperKey)
	if err != nil {
		return err
	}
	if upperOK {
		upper, _, err := s.readBound(upperKey)
		if err != nil {
			return err
		}
		if k != upper+1 {
			return &NonSequentialInsertError{Expected: upper + 1, Got: k}
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache store: marshal value: %w", err)
	}
	batch := new(leveldb.Batch)
	batch.Put(s.valueKey(k), data)
	if !upperOK {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, k)
		batch.Put(s.boundKey(lowerKey), buf)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, k)
	batch.Put(s.boundKey(upperKey), buf)
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("cache store: write append: %w", err)
	}
	return nil
}

// GetValue returns the value at k, if present.
func (s *LevelStore[V]) GetValue(k uint64) (V, bool, error) {
	var zero V
	data, err := s.db.Get(s.valueKey(k), nil)
	if err == leveldb.ErrNotFound {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("cache store: get value: %w", err)
	}
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false, fmt.Errorf("cache store: unmarshal value: %w", err)
	}
	return v, true, nil
}

// LowerBound returns the lowest present key, if any.
func (s *LevelStore[V]) LowerBound() (uint64, bool, error) {
	return s.readBound(lowerKey)
}

// UpperBound returns the highest present key, if any.
func (s *LevelStore[V]) UpperBound() (uint64, bool, error) {
	return s.readBound(upperKey)
}

// RemoveKeyBelow raises the lower bound to k, evicting all keys < k.
func (s *LevelStore[V]) RemoveKeyBelow(k uint64) error {
	lower, ok, err := s.readBound(lowerKey)
	if err != nil {
		return err
	}
	if !ok || k <= lower {
		return nil
	}
	upper, ok, err := s.readBound(upperKey)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if k > upper {
		return s.DeleteAll()
	}
	batch := new(leveldb.Batch)
	for h := lower; h < k; h++ {
		batch.Delete(s.valueKey(h))
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, k)
	batch.Put(s.boundKey(lowerKey), buf)
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("cache store: write eviction: %w", err)
	}
	return nil
}

// DeleteAll clears the store back to its initial empty state.
func (s *LevelStore[V]) DeleteAll() error {
	lower, ok, err := s.readBound(lowerKey)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	upper, _, err := s.readBound(upperKey)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	for h := lower; h <= upper; h++ {
		batch.Delete(s.valueKey(h))
	}
	batch.Delete(s.boundKey(lowerKey))
	batch.Delete(s.boundKey(upperKey))
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("cache store: write delete-all: %w", err)
	}
	return nil
}

// Size returns the number of present keys.
func (s *LevelStore[V]) Size() (int, error) {
	lower, ok, err := s.readBound(lowerKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	upper, _, err := s.readBound(upperKey)
	if err != nil {
		return 0, err
	}
	return int(upper-lower) + 1, nil
}

