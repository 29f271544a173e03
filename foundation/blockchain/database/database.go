// Package database maintains the blocks of the chain and the proof of work
// rules for accepting them. It also defines the storage contract used to
// persist blocks outside of memory.
package database

// EventHandler defines a function that is called when events
// occur in the processing of blocks.
type EventHandler func(v string, args ...any)

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain. The
// genesis block is never stored, it is synthesized from the seed.
type Storage interface {
	Write(blockData BlockData) error
	GetBlock(num uint64) (BlockData, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// =============================================================================

// DatabaseIterator converts stored blocks into blocks while iterating.
type DatabaseIterator struct {
	iterator Iterator
}

// NewIterator wraps the storage iterator.
func NewIterator(storage Storage) *DatabaseIterator {
	return &DatabaseIterator{iterator: storage.ForEach()}
}

// Next retrieves the next block from storage.
func (di *DatabaseIterator) Next() (Block, error) {
	blockData, err := di.iterator.Next()
	if err != nil {
		return Block{}, err
	}

	return ToBlock(blockData)
}

// Done returns the end of chain value.
func (di *DatabaseIterator) Done() bool {
	return di.iterator.Done()
}
