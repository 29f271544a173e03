package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/difficulty"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool"
	"github.com/google/uuid"
)

// ErrNoPending is returned when a block is requested to be mined
// and there is nothing in the mempool.
var ErrNoPending = errors.New("no pending data in mempool")

// ErrPlatformMismatch is returned when a submitted block carries puzzle
// parameters other than the ones this node runs with.
var ErrPlatformMismatch = errors.New("difficulty doesn't match the platform")

// =============================================================================

// MineBlock constructs the next block for the payload, performs the proof
// of work and inserts the block. A level of 0 lets the node pick the level.
// If another block reaches the chain first the insert is rejected.
func (s *State) MineBlock(ctx context.Context, data []byte, level uint) (database.Block, error) {
	block, err := s.mineBlock(ctx, data, level)
	if err != nil {
		return database.Block{}, err
	}

	// The worker may be mining against the tip this block just replaced.
	done := s.Worker.SignalCancelMining()
	defer func() {
		s.evHandler("state: MineBlock: signal mining to terminate")
		done()
	}()

	return block, nil
}

// mineBlock performs the work for MineBlock without signaling the worker,
// so the worker can use it for its own mining operation.
func (s *State) mineBlock(ctx context.Context, data []byte, level uint) (database.Block, error) {
	level, err := s.resolveLevel(level)
	if err != nil {
		return database.Block{}, err
	}

	tip := s.chain.Tip()
	block := database.NewBlock(tip.Index+1, tip.Hash(), s.platform.WithLevel(level), data)

	s.evHandler("state: MineBlock: MINING: perform POW: blk[%d]: level[%d]", block.Index, level)

	// Attempt to solve the POW puzzle. This can be cancelled.
	if _, err := block.MineContext(ctx, s.evHandler); err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineBlock: MINING: insert block")

	if err := s.insertBlock(block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// MineNextEntry mines the next payload from the mempool into a block.
func (s *State) MineNextEntry(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNextEntry: MINING: check mempool count")

	entry, ok := s.mempool.PickNext()
	if !ok {
		return database.Block{}, ErrNoPending
	}

	block, err := s.mineBlock(ctx, entry.Data, entry.Level)
	switch {
	case err == nil:
		s.mempool.Delete(entry.ID)

	case ctx.Err() != nil, database.IsRejected(err):
		// Leave the entry so it can be mined again against the new tip.

	default:
		s.evHandler("state: MineNextEntry: MINING: dropping entry[%s]: %s", entry.ID, err)
		s.mempool.Delete(entry.ID)
	}

	return block, err
}

// SubmitBlock takes a block that was mined outside of this node, validates
// it and if that passes, adds the block to the local chain.
func (s *State) SubmitBlock(block database.Block) error {
	s.evHandler("state: SubmitBlock: started: blk[%d]: prevBlk[%s]: newBlk[%s]", block.Index, block.PrevHash, block.Hash())
	defer s.evHandler("state: SubmitBlock: completed: blk[%d]", block.Index)

	if err := s.checkPlatform(block.Difficulty); err != nil {
		return err
	}

	if err := s.insertBlock(block); err != nil {
		return err
	}

	// If the worker is mining it is working against a stale tip and needs
	// to stop. The worker can't start again until done is called.
	done := s.Worker.SignalCancelMining()
	defer func() {
		s.evHandler("state: SubmitBlock: signal mining to terminate")
		done()
	}()

	return nil
}

// SubmitData adds a payload to the mempool and signals the worker.
func (s *State) SubmitData(data []byte, level uint) (mempool.Entry, error) {
	if level != 0 {
		if _, err := s.resolveLevel(level); err != nil {
			return mempool.Entry{}, err
		}
	}

	entry := mempool.Entry{
		ID:       uuid.NewString(),
		Data:     data,
		Level:    level,
		Received: time.Now().UTC(),
	}

	n, err := s.mempool.Upsert(entry)
	if err != nil {
		return mempool.Entry{}, err
	}

	s.evHandler("state: SubmitData: entry[%s]: pending[%d]", entry.ID, n)

	s.Worker.SignalStartMining()

	return entry, nil
}

// =============================================================================

// checkPlatform makes sure a block mined elsewhere was solved against this
// node's puzzle parameters at a level the node accepts.
func (s *State) checkPlatform(d difficulty.Difficulty) error {
	if d.WithLevel(s.platform.Level) != s.platform {
		return fmt.Errorf("%w: got %s, exp %s", ErrPlatformMismatch, d, s.platform.WithLevel(d.Level))
	}

	if d.Level == 0 || d.Level > s.maxLevel {
		return fmt.Errorf("%w: level %d is outside the range 1 to %d", ErrInvalidLevel, d.Level, s.maxLevel)
	}

	return nil
}

// insertBlock adds the block to the chain and then to storage. The lock
// keeps storage in the same order as the chain.
func (s *State) insertBlock(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.chain.Insert(block); err != nil {
		return err
	}

	s.evHandler("state: insertBlock: write to storage: blk[%d]", block.Index)

	// The block is part of the chain at this point, a storage failure only
	// means it won't survive a restart.
	if err := s.storage.Write(database.NewBlockData(block)); err != nil {
		s.evHandler("state: insertBlock: WARNING: blk[%d] not written to storage: %s", block.Index, err)
	}

	// Send an event about this new block.
	s.blockEvent(block)

	return nil
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockJSON, err := json.Marshal(block)
	if err != nil {
		blockJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: {"hash":%q,"block":%s}`, block.Hash(), string(blockJSON))
}

// randomLevel returns a level in the range [1, max].
func randomLevel(max uint) uint {
	return uint(rand.Intn(int(max))) + 1
}
