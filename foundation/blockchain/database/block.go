package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/difficulty"
)

// ErrMiningExhausted is returned when every nonce in the difficulty's nonce
// space was tried without solving the puzzle.
var ErrMiningExhausted = errors.New("nonce space exhausted")

// cancelCheck is the number of attempts between checks of the context and
// progress events while mining.
const cancelCheck = 1 << 16

// =============================================================================

// Block represents a single entry in the chain. The difficulty travels with
// the block so each block carries its own puzzle.
type Block struct {
	Index      uint64                `json:"index"`     // Position in the chain, genesis is 0.
	PrevHash   Digest                `json:"prev_hash"` // Hash of the previous block at construction.
	Difficulty difficulty.Difficulty `json:"difficulty"`
	Data       []byte                `json:"data"`      // Opaque payload.
	Nonce      uint64                `json:"nonce"`     // Value identified to solve the puzzle.
	MineTime   time.Duration         `json:"mine_time"` // Wall clock time spent mining, not hashed.
}

// NewBlock constructs a block that is ready to be mined.
func NewBlock(index uint64, prevHash Digest, diff difficulty.Difficulty, data []byte) Block {
	return Block{
		Index:      index,
		PrevHash:   append(Digest(nil), prevHash...),
		Difficulty: diff,
		Data:       append([]byte(nil), data...),
	}
}

// Hash returns the digest of the block's index, previous hash, difficulty,
// data and nonce.
func (b Block) Hash() Digest {
	return newHasher(b).sum(b.Nonce)
}

// Solved reports whether the block's hash meets its own difficulty.
func (b Block) Solved() bool {
	return b.Difficulty.MeetsTarget(b.Hash())
}

// Clone returns a deep copy of the block.
func (b Block) Clone() Block {
	b.PrevHash = append(Digest(nil), b.PrevHash...)
	b.Data = append([]byte(nil), b.Data...)
	return b
}

// Mine searches the nonce space from zero until the block's hash meets its
// difficulty. The call is synchronous and can't be cancelled.
func (b *Block) Mine() (Digest, error) {
	return b.MineContext(context.Background(), nil)
}

// MineContext performs the same search as Mine, checking the context every
// so often so a host can abandon work that is no longer useful. Pointer
// semantics are being used since a nonce is being discovered.
func (b *Block) MineContext(ctx context.Context, ev EventHandler) (Digest, error) {
	if ev == nil {
		ev = func(string, ...any) {}
	}

	if err := b.Difficulty.Validate(); err != nil {
		return nil, err
	}

	ev("database: Mine: MINING: started: blk[%d]: difficulty%s: target[%d bits]", b.Index, b.Difficulty, b.Difficulty.EffectiveTargetBits())
	defer ev("database: Mine: MINING: completed: blk[%d]", b.Index)

	start := time.Now()
	h := newHasher(*b)
	space := b.Difficulty.NonceSpace()

	var attempts uint64
	for nonce := uint64(0); ; nonce++ {
		attempts++
		if attempts%cancelCheck == 0 {
			if err := ctx.Err(); err != nil {
				ev("database: Mine: MINING: CANCELLED: blk[%d]: attempts[%d]", b.Index, attempts)
				return nil, err
			}
			ev("database: Mine: MINING: blk[%d]: attempts[%d]", b.Index, attempts)
		}

		digest := h.sum(nonce)
		if b.Difficulty.MeetsTarget(digest) {
			b.Nonce = nonce
			b.MineTime = time.Since(start)

			ev("database: Mine: MINING: SOLVED: blk[%d]: hash[%s]: nonce[%d]: attempts[%d]: duration[%v]", b.Index, digest, nonce, attempts, b.MineTime)
			return digest, nil
		}

		if nonce == space {
			break
		}
	}

	ev("database: Mine: MINING: EXHAUSTED: blk[%d]: attempts[%d]", b.Index, attempts)

	return nil, fmt.Errorf("blk[%d] difficulty%s: %w", b.Index, b.Difficulty, ErrMiningExhausted)
}

// =============================================================================

// BlockData represents what is written to storage. The hash is kept with
// the block so a reader can detect a block that was altered on disk.
type BlockData struct {
	Hash  Digest `json:"hash"`
	Block Block  `json:"block"`
}

// NewBlockData constructs the value to serialize to storage.
func NewBlockData(block Block) BlockData {
	return BlockData{
		Hash:  block.Hash(),
		Block: block.Clone(),
	}
}

// ToBlock converts a BlockData into a Block, checking the stored hash still
// matches the block contents.
func ToBlock(blockData BlockData) (Block, error) {
	hash := blockData.Block.Hash()
	if !hash.Equal(blockData.Hash) {
		return Block{}, fmt.Errorf("blk[%d] stored hash doesn't match contents, got %s, exp %s", blockData.Block.Index, hash, blockData.Hash)
	}

	return blockData.Block.Clone(), nil
}
