package state

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/difficulty"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool"
)

// Status represents a summary of the chain.
type Status struct {
	Seed       string                `json:"seed"`
	Length     int                   `json:"length"`
	TipIndex   uint64                `json:"tip_index"`
	TipHash    database.Digest       `json:"tip_hash"`
	Pending    int                   `json:"pending"`
	Difficulty difficulty.Difficulty `json:"difficulty"`
	MaxLevel   uint                  `json:"max_level"`
}

// RetrieveStatus returns a summary of the chain.
func (s *State) RetrieveStatus() Status {
	tip := s.chain.Tip()

	return Status{
		Seed:       s.seed,
		Length:     s.chain.Len(),
		TipIndex:   tip.Index,
		TipHash:    tip.Hash(),
		Pending:    s.mempool.Count(),
		Difficulty: s.platform,
		MaxLevel:   s.maxLevel,
	}
}

// RetrieveGenesis returns a copy of the genesis block.
func (s *State) RetrieveGenesis() database.Block {
	return s.chain.Genesis()
}

// RetrieveLatestBlock returns a copy the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.chain.Tip()
}

// RetrieveBlock returns a copy of the block at the specified index.
func (s *State) RetrieveBlock(index uint64) (database.Block, error) {
	return s.chain.Block(index)
}

// QueryBlocksByNumber returns the set of blocks based on block numbers. This
// function reads the blockchain from memory.
func (s *State) QueryBlocksByNumber(from uint64, to uint64) []database.Block {
	return s.chain.Range(from, to)
}

// RetrieveMempool returns a copy of the mempool in mining order.
func (s *State) RetrieveMempool() []mempool.Entry {
	return s.mempool.PickBest(-1)
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// Verify checks every block in the chain against the chain rules.
func (s *State) Verify() error {
	return s.chain.Verify()
}
