// Package state is the core API for the blockchain and implements all the
// business rules and processing around the chain, storage and mempool.
package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/difficulty"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool"
)

// ErrInvalidLevel is returned when a requested difficulty level is outside
// the range configured for the node.
var ErrInvalidLevel = errors.New("invalid difficulty level")

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler = database.EventHandler

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining pending payloads.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining() (done func())
}

// nopWorker is used until a worker registers itself with the state.
type nopWorker struct{}

func (nopWorker) Shutdown()                  {}
func (nopWorker) SignalStartMining()         {}
func (nopWorker) SignalCancelMining() func() { return func() {} }

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Seed           string
	Storage        database.Storage
	Difficulty     difficulty.Difficulty // Platform constants, Level is the default level.
	MaxLevel       uint
	RandomLevel    bool
	SelectStrategy string
	EvHandler      EventHandler
}

// State manages the blockchain database.
type State struct {
	mu sync.Mutex

	seed        string
	platform    difficulty.Difficulty
	maxLevel    uint
	randomLevel bool
	evHandler   EventHandler

	chain   *database.Blockchain
	storage database.Storage
	mempool *mempool.Mempool

	Worker Worker
}

// New constructs a new blockchain for data management. Every block found
// in storage is replayed through the chain's insert rules.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.Storage == nil {
		return nil, errors.New("storage is required")
	}

	platform := cfg.Difficulty
	if platform.Level == 0 {
		platform.Level = 1
	}

	maxLevel := cfg.MaxLevel
	if maxLevel == 0 {
		maxLevel = platform.Level
	}

	// The hardest level the node accepts must be solvable.
	if err := platform.WithLevel(maxLevel).Validate(); err != nil {
		return nil, err
	}

	// Construct the chain with the genesis block derived from the seed.
	chain := database.NewBlockchain(cfg.Seed,
		database.WithGenesisDifficulty(platform.WithLevel(1)),
		database.WithEvHandler(ev),
	)

	// Load all existing blocks from storage into memory for processing. Each
	// block must be accepted by the chain as if it was just mined.
	iter := database.NewIterator(cfg.Storage)
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return nil, fmt.Errorf("reading block %d from storage: %w", chain.Len(), err)
		}

		if err := chain.Insert(block); err != nil {
			return nil, fmt.Errorf("replaying block from storage: %w", err)
		}
	}

	// Construct a mempool with the specified sort strategy.
	strategy := cfg.SelectStrategy
	if strategy == "" {
		strategy = mempool.StrategyFIFO
	}

	mp, err := mempool.NewWithStrategy(strategy)
	if err != nil {
		return nil, err
	}

	state := State{
		seed:        cfg.Seed,
		platform:    platform,
		maxLevel:    maxLevel,
		randomLevel: cfg.RandomLevel,
		evHandler:   ev,

		chain:   chain,
		storage: cfg.Storage,
		mempool: mp,

		Worker: nopWorker{},
	}

	ev("state: New: loaded: blocks[%d]: tip[%s]", chain.Len(), chain.TipHash())

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Make sure the database file is properly closed.
	defer func() {
		s.storage.Close()
	}()

	// Stop all blockchain writing activity.
	s.Worker.Shutdown()

	return nil
}

// resolveLevel validates a requested level, with 0 meaning the node picks.
func (s *State) resolveLevel(level uint) (uint, error) {
	if level == 0 {
		if s.randomLevel {
			return randomLevel(s.maxLevel), nil
		}
		return s.platform.Level, nil
	}

	if level > s.maxLevel {
		return 0, fmt.Errorf("%w: level %d is above the maximum of %d", ErrInvalidLevel, level, s.maxLevel)
	}

	return level, nil
}
