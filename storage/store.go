// Package storage provides persistent storage for engine state:
// validators, trust edges, published lists and terminal round outcomes.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/MKWorldWide/gamedin-consensus/types"
)

var (
	// ErrNotFound is returned when a key is not found.
	ErrNotFound = errors.New("key not found")

	// ErrClosed is returned when the store is closed.
	ErrClosed = errors.New("store is closed")
)

// Key prefixes for different record types.
var (
	prefixValidator = []byte("v") // v + id -> Validator
	prefixList      = []byte("l") // l + content hash -> UniqueList
	prefixRound     = []byte("r") // r + big-endian round id -> RoundOutcome
	prefixTrust     = []byte("t") // t + len(from) + from + to -> TrustEdge
	prefixMeta      = []byte("m") // m + name -> metadata
)

// TrustEdge is the persisted form of a directed trust relationship.
type TrustEdge struct {
	From types.ValidatorID `json:"from"`
	To   types.ValidatorID `json:"to"`
}

// Store provides persistent storage backed by leveldb.
type Store struct {
	mu     sync.RWMutex
	db     *leveldb.DB
	closed bool
	path   string
}

// StoreConfig configures the store.
type StoreConfig struct {
	Path        string
	WriteBuffer int // leveldb write buffer size in MB
	CacheSize   int // leveldb block cache size in MB
}

// DefaultStoreConfig returns a default configuration.
func DefaultStoreConfig(path string) StoreConfig {
	return StoreConfig{
		Path:        path,
		WriteBuffer: 16,
		CacheSize:   64,
	}
}

// NewStore opens (or creates) a persistent store.
func NewStore(config StoreConfig) (*Store, error) {
	opts := &opt.Options{
		WriteBuffer:        config.WriteBuffer * opt.MiB,
		BlockCacheCapacity: config.CacheSize * opt.MiB,
	}

	db, err := leveldb.OpenFile(config.Path, opts)
	if err != nil {
		return nil, err
	}

	return &Store{db: db, path: config.Path}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func validatorKey(id types.ValidatorID) []byte {
	return append(append([]byte{}, prefixValidator...), []byte(id)...)
}

func listKey(id types.Hash) []byte {
	return append(append([]byte{}, prefixList...), id[:]...)
}

func roundKey(id types.RoundID) []byte {
	key := make([]byte, 1+8)
	copy(key, prefixRound)
	binary.BigEndian.PutUint64(key[1:], uint64(id))
	return key
}

// trustKey length-prefixes the truster id so (from,to) pairs map to
// unique keys regardless of id contents.
func trustKey(from, to types.ValidatorID) []byte {
	key := make([]byte, 0, 1+binary.MaxVarintLen64+len(from)+len(to))
	key = append(key, prefixTrust...)
	key = binary.AppendUvarint(key, uint64(len(from)))
	key = append(key, []byte(from)...)
	key = append(key, []byte(to)...)
	return key
}

func metaKey(name string) []byte {
	return append(append([]byte{}, prefixMeta...), []byte(name)...)
}

func (s *Store) put(key []byte, value interface{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.db.Put(key, raw, nil)
}

func (s *Store) get(key []byte, out interface{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	raw, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (s *Store) delete(key []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	return s.db.Delete(key, nil)
}

// SaveValidator persists a validator record.
func (s *Store) SaveValidator(v *types.Validator) error {
	return s.put(validatorKey(v.ID), v)
}

// GetValidator retrieves a validator record.
func (s *Store) GetValidator(id types.ValidatorID) (*types.Validator, error) {
	var v types.Validator
	if err := s.get(validatorKey(id), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// LoadValidators returns all persisted validator records.
func (s *Store) LoadValidators() ([]*types.Validator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	var out []*types.Validator
	iter := s.db.NewIterator(util.BytesPrefix(prefixValidator), nil)
	defer iter.Release()
	for iter.Next() {
		var v types.Validator
		if err := json.Unmarshal(iter.Value(), &v); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, iter.Error()
}

// SaveList persists a published list.
func (s *Store) SaveList(l *types.UniqueList) error {
	return s.put(listKey(l.ID), l)
}

// GetList retrieves a published list by content id.
func (s *Store) GetList(id types.Hash) (*types.UniqueList, error) {
	var l types.UniqueList
	if err := s.get(listKey(id), &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// LoadLists returns all persisted lists.
func (s *Store) LoadLists() ([]*types.UniqueList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	var out []*types.UniqueList
	iter := s.db.NewIterator(util.BytesPrefix(prefixList), nil)
	defer iter.Release()
	for iter.Next() {
		var l types.UniqueList
		if err := json.Unmarshal(iter.Value(), &l); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, iter.Error()
}

// SaveRoundOutcome persists a terminal round outcome.
func (s *Store) SaveRoundOutcome(o *types.RoundOutcome) error {
	return s.put(roundKey(o.ID), o)
}

// GetRoundOutcome retrieves a terminal round outcome.
func (s *Store) GetRoundOutcome(id types.RoundID) (*types.RoundOutcome, error) {
	var o types.RoundOutcome
	if err := s.get(roundKey(id), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// SaveTrustEdge persists a directed trust edge.
func (s *Store) SaveTrustEdge(from, to types.ValidatorID) error {
	return s.put(trustKey(from, to), &TrustEdge{From: from, To: to})
}

// DeleteTrustEdge removes a directed trust edge. Deleting a missing
// edge is a no-op.
func (s *Store) DeleteTrustEdge(from, to types.ValidatorID) error {
	return s.delete(trustKey(from, to))
}

// LoadTrustEdges returns all persisted trust edges.
func (s *Store) LoadTrustEdges() ([]TrustEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	var out []TrustEdge
	iter := s.db.NewIterator(util.BytesPrefix(prefixTrust), nil)
	defer iter.Release()
	for iter.Next() {
		var e TrustEdge
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, iter.Error()
}

// SaveLastRoundID persists the highest assigned round id so restarts
// never reuse one.
func (s *Store) SaveLastRoundID(id types.RoundID) error {
	return s.put(metaKey("lastRound"), uint64(id))
}

// LastRoundID returns the highest assigned round id.
func (s *Store) LastRoundID() (types.RoundID, error) {
	var raw uint64
	if err := s.get(metaKey("lastRound"), &raw); err != nil {
		return 0, err
	}
	return types.RoundID(raw), nil
}
