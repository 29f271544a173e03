// Package bolt implements the ability to read and write blocks to a single
// bbolt database file.
package bolt

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	bolt "go.etcd.io/bbolt"
)

// blocksBucket is the bucket holding blocks keyed by big endian index.
var blocksBucket = []byte("blocks")

// Bolt represents the serialization implementation for reading and storing
// blocks in a bbolt database. This implements the database.Storage interface.
type Bolt struct {
	db *bolt.DB
}

// New opens or creates the database file at the specified path.
func New(dbPath string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(blocksBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Bolt{db: db}, nil
}

// Close closes the database file.
func (b *Bolt) Close() error {
	return b.db.Close()
}

// Write takes the specified block and stores it under its index.
func (b *Bolt) Write(blockData database.BlockData) error {
	if blockData.Block.Index == 0 {
		return errors.New("genesis block is not stored")
	}

	data, err := json.Marshal(blockData)
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(blocksBucket).Put(key(blockData.Block.Index), data)
	})
}

// GetBlock locates and returns the contents of the specified block by index.
func (b *Bolt) GetBlock(num uint64) (database.BlockData, error) {
	var blockData database.BlockData

	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(blocksBucket).Get(key(num))
		if data == nil {
			return database.ErrNotFound
		}

		return json.Unmarshal(data, &blockData)
	})
	if err != nil {
		return database.BlockData{}, err
	}

	return blockData, nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with block index 1.
func (b *Bolt) ForEach() database.Iterator {
	return &boltIterator{storage: b}
}

// Reset will clear out the blockchain in the database.
func (b *Bolt) Reset() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(blocksBucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}

		_, err := tx.CreateBucket(blocksBucket)
		return err
	})
}

// key encodes the index so the keys sort in chain order.
func key(num uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, num)
	return k
}

// =============================================================================

// boltIterator represents the iteration implementation for walking
// through and reading blocks in the database. This implements the
// database Iterator interface.
type boltIterator struct {
	storage *Bolt
	current uint64
	eoc     bool
}

// Next retrieves the next block from the database.
func (bi *boltIterator) Next() (database.BlockData, error) {
	if bi.eoc {
		return database.BlockData{}, errors.New("end of chain")
	}

	bi.current++
	blockData, err := bi.storage.GetBlock(bi.current)
	if errors.Is(err, database.ErrNotFound) {
		bi.eoc = true
	}

	return blockData, err
}

// Done returns the end of chain value.
func (bi *boltIterator) Done() bool {
	return bi.eoc
}
