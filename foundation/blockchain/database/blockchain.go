package database

import (
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/difficulty"
)

// Option represents a setting for constructing a Blockchain.
type Option func(bc *Blockchain)

// WithGenesisDifficulty sets the difficulty carried by the genesis block,
// which determines the width of the genesis hash.
func WithGenesisDifficulty(d difficulty.Difficulty) Option {
	return func(bc *Blockchain) {
		bc.genesisDifficulty = d
	}
}

// WithEvHandler sets a handler to receive events about inserts.
func WithEvHandler(ev EventHandler) Option {
	return func(bc *Blockchain) {
		if ev != nil {
			bc.evHandler = ev
		}
	}
}

// =============================================================================

// Blockchain owns an ordered, append only sequence of blocks. Insert is the
// only way to grow the chain and it is the single point of serialization for
// concurrent producers.
type Blockchain struct {
	mu     sync.RWMutex
	chain  []Block
	hashes []Digest

	genesisDifficulty difficulty.Difficulty
	evHandler         EventHandler
}

// Genesis constructs the genesis block for the specified seed. The genesis
// block has an all zero previous hash and no proof of work obligation.
func Genesis(seed string, d difficulty.Difficulty) Block {
	return Block{
		Index:      0,
		PrevHash:   make(Digest, digestWidth(d)),
		Difficulty: d,
		Data:       []byte(seed),
	}
}

// NewBlockchain constructs a chain holding only the genesis block derived
// from the seed message.
func NewBlockchain(seed string, opts ...Option) *Blockchain {
	bc := Blockchain{
		genesisDifficulty: difficulty.Default,
		evHandler:         func(string, ...any) {},
	}

	for _, opt := range opts {
		opt(&bc)
	}

	genesis := Genesis(seed, bc.genesisDifficulty)
	bc.chain = []Block{genesis}
	bc.hashes = []Digest{genesis.Hash()}

	bc.evHandler("database: NewBlockchain: genesis: hash[%s]", bc.hashes[0])

	return &bc
}

// Insert validates the block against the current tip and appends it to the
// chain. The checks are performed in order: index, linkage and puzzle. On
// any failure a *RejectedError is returned and the chain is unchanged.
func (bc *Blockchain) Insert(block Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	bc.evHandler("database: Insert: validate: blk[%d]", block.Index)

	hash, err := bc.validate(block)
	if err != nil {
		bc.evHandler("database: Insert: REJECTED: %s", err)
		return err
	}

	// The chain takes exclusive ownership of its own copy.
	bc.chain = append(bc.chain, block.Clone())
	bc.hashes = append(bc.hashes, hash)

	bc.evHandler("database: Insert: ACCEPTED: blk[%d]: hash[%s]", block.Index, hash)

	return nil
}

// validate checks the block can be the next block in the chain and returns
// its hash. The caller must hold the lock.
func (bc *Blockchain) validate(block Block) (Digest, error) {
	next := uint64(len(bc.chain))
	if block.Index != next {
		return nil, newRejected(block.Index, ErrBadIndex, nil, "got %d, exp %d", block.Index, next)
	}

	tipHash := bc.hashes[len(bc.hashes)-1]
	if !block.PrevHash.Equal(tipHash) {
		return nil, newRejected(block.Index, ErrBadLinkage, nil, "got %s, exp %s", block.PrevHash, tipHash)
	}

	if err := block.Difficulty.Validate(); err != nil {
		return nil, newRejected(block.Index, ErrFailedPuzzle, err, "difficulty%s", block.Difficulty)
	}

	// The nonce is never trusted, the hash is recomputed here.
	hash := block.Hash()
	if !block.Difficulty.MeetsTarget(hash) {
		return nil, newRejected(block.Index, ErrFailedPuzzle, nil, "hash %s doesn't have %d leading zero bits", hash, block.Difficulty.EffectiveTargetBits())
	}

	return hash, nil
}

// Verify walks the entire chain and checks every block is correctly
// numbered, linked to its parent and solved.
func (bc *Blockchain) Verify() error {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	for i := 1; i < len(bc.chain); i++ {
		block := bc.chain[i]

		if block.Index != uint64(i) {
			return newRejected(block.Index, ErrBadIndex, nil, "got %d, exp %d", block.Index, i)
		}

		parentHash := bc.chain[i-1].Hash()
		if !block.PrevHash.Equal(parentHash) {
			return newRejected(block.Index, ErrBadLinkage, nil, "got %s, exp %s", block.PrevHash, parentHash)
		}

		if !block.Solved() {
			return newRejected(block.Index, ErrFailedPuzzle, block.Difficulty.Validate(), "difficulty%s", block.Difficulty)
		}
	}

	return nil
}

// =============================================================================

// Len returns the number of blocks in the chain, including genesis.
func (bc *Blockchain) Len() int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	return len(bc.chain)
}

// Tip returns a copy of the last block in the chain.
func (bc *Blockchain) Tip() Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	return bc.chain[len(bc.chain)-1].Clone()
}

// TipHash returns the hash of the last block in the chain.
func (bc *Blockchain) TipHash() Digest {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	return append(Digest(nil), bc.hashes[len(bc.hashes)-1]...)
}

// Genesis returns a copy of the genesis block.
func (bc *Blockchain) Genesis() Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	return bc.chain[0].Clone()
}

// Block returns a copy of the block at the specified index.
func (bc *Blockchain) Block(index uint64) (Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if index >= uint64(len(bc.chain)) {
		return Block{}, ErrNotFound
	}

	return bc.chain[index].Clone(), nil
}

// Range returns copies of the blocks from the specified index to the
// specified index inclusive. The range is clipped to the chain.
func (bc *Blockchain) Range(from uint64, to uint64) []Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	last := uint64(len(bc.chain) - 1)
	if to > last {
		to = last
	}

	if from > to {
		return nil
	}

	blocks := make([]Block, 0, to-from+1)
	for i := from; i <= to; i++ {
		blocks = append(blocks, bc.chain[i].Clone())
	}

	return blocks
}

// Blocks returns a copy of every block in the chain.
func (bc *Blockchain) Blocks() []Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	blocks := make([]Block, len(bc.chain))
	for i, block := range bc.chain {
		blocks[i] = block.Clone()
	}

	return blocks
}
