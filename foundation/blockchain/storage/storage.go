// Package storage selects one of the block storage implementations by name.
package storage

import (
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/storage/bolt"
	"github.com/ardanlabs/powchain/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/powchain/foundation/blockchain/storage/memory"
)

// Set of storage kinds that can be opened.
const (
	KindDisk   = "disk"
	KindBolt   = "bolt"
	KindMemory = "memory"
)

// Open constructs the storage of the specified kind. The path is ignored
// for memory storage.
func Open(kind string, dbPath string) (database.Storage, error) {
	switch kind {
	case KindDisk:
		d, err := disk.New(dbPath)
		if err != nil {
			return nil, err
		}
		return d, nil

	case KindBolt:
		b, err := bolt.New(dbPath)
		if err != nil {
			return nil, err
		}
		return b, nil

	case KindMemory:
		m, err := memory.New()
		if err != nil {
			return nil, err
		}
		return m, nil
	}

	return nil, fmt.Errorf("unknown storage %q, expecting %s, %s or %s", kind, KindDisk, KindBolt, KindMemory)
}
