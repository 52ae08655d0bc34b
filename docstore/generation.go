package docstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"go.etcd.io/bbolt"
)

// ErrRollbackDetected is returned when a document on disk is older than the
// newest generation the cache has seen for it.
var ErrRollbackDetected = errors.New("rollback detected: document generation is older than cached generation")

// GenerationCache tracks the highest save generation seen per document to
// detect an older file being restored in place of a newer one.
type GenerationCache interface {
	MaxGeneration(docID string) uint64
	SetMaxGeneration(docID string, generation uint64) error
}

// MemoryGenerationCache is an in-memory implementation suitable for tests.
type MemoryGenerationCache struct {
	mu          sync.RWMutex
	generations map[string]uint64
}

// NewMemoryGenerationCache returns an in-memory cache suitable for testing and single-process use.
func NewMemoryGenerationCache() *MemoryGenerationCache {
	return &MemoryGenerationCache{
		generations: make(map[string]uint64),
	}
}

func (c *MemoryGenerationCache) MaxGeneration(docID string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[docID]
}

func (c *MemoryGenerationCache) SetMaxGeneration(docID string, generation uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation < c.generations[docID] {
		return ErrRollbackDetected
	}
	c.generations[docID] = generation
	return nil
}

var generationBucket = []byte("__generations")

// BoltGenerationCache persists generations in a dedicated BBolt bucket.
// Reads come from an in-memory map; writes go to BBolt first and then
// update the map.
type BoltGenerationCache struct {
	db     *bbolt.DB
	ownsDB bool
	mu     sync.RWMutex
	cache  map[string]uint64
}

// NewBoltGenerationCache returns a persistent cache backed by db, so
// rollback protection survives restarts.
func NewBoltGenerationCache(db *bbolt.DB) (*BoltGenerationCache, error) {
	c := &BoltGenerationCache{
		db:    db,
		cache: make(map[string]uint64),
	}
	err := db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(generationBucket)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			if len(v) == 8 {
				c.cache[string(k)] = binary.BigEndian.Uint64(v)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("loading generation cache: %w", err)
	}
	return c, nil
}

// NewBoltGenerationCacheFromFile opens a BBolt database at path and returns
// a cache that owns it. Call Close when done.
func NewBoltGenerationCacheFromFile(path string, options *bbolt.Options) (*BoltGenerationCache, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	c, err := NewBoltGenerationCache(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c.ownsDB = true
	return c, nil
}

// Close closes the database if the cache opened it.
func (c *BoltGenerationCache) Close() error {
	if !c.ownsDB {
		return nil
	}
	return c.db.Close()
}

func (c *BoltGenerationCache) MaxGeneration(docID string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache[docID]
}

func (c *BoltGenerationCache) SetMaxGeneration(docID string, generation uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation < c.cache[docID] {
		return ErrRollbackDetected
	}

	err := c.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(generationBucket)
		if err != nil {
			return err
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], generation)
		return b.Put([]byte(docID), buf[:])
	})
	if err != nil {
		return err
	}

	c.cache[docID] = generation
	return nil
}
