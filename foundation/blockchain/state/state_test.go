package state_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/difficulty"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/blockchain/storage/bolt"
	"github.com/ardanlabs/powchain/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/powchain/foundation/blockchain/storage/memory"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func ifErrFailNow(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Error(err)
		t.FailNow()
	}
}

func newState(t *testing.T, seed string, strg database.Storage) *state.State {
	t.Helper()

	st, err := state.New(state.Config{
		Seed:        seed,
		Storage:     strg,
		Difficulty:  difficulty.Default,
		MaxLevel:    4,
		RandomLevel: true,
		EvHandler:   func(v string, args ...any) { t.Logf(v, args...) },
	})
	ifErrFailNow(t, err)

	return st
}

// =============================================================================

func Test_ReplayStorage(t *testing.T) {
	type table struct {
		name string
		open func(t *testing.T) database.Storage
	}

	mem, err := memory.New()
	ifErrFailNow(t, err)

	diskPath := t.TempDir()
	boltPath := filepath.Join(t.TempDir(), "blocks.db")

	tt := []table{
		{
			name: "memory",
			open: func(t *testing.T) database.Storage { return mem },
		},
		{
			name: "disk",
			open: func(t *testing.T) database.Storage {
				d, err := disk.New(diskPath)
				ifErrFailNow(t, err)
				return d
			},
		},
		{
			name: "bolt",
			open: func(t *testing.T) database.Storage {
				b, err := bolt.New(boltPath)
				ifErrFailNow(t, err)
				return b
			},
		},
	}

	t.Log("Given the need to rebuild the chain from storage.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				st := newState(t, "seed", tst.open(t))

				for i := 0; i < 5; i++ {
					_, err := st.MineBlock(context.Background(), []byte(fmt.Sprintf("data %d", i)), 0)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to mine block %d: %v", failed, testID, i+1, err)
					}
				}
				t.Logf("\t%s\tTest %d:\tShould be able to mine 5 blocks.", success, testID)

				tip := st.RetrieveLatestBlock()
				ifErrFailNow(t, st.Shutdown())

				st = newState(t, "seed", tst.open(t))
				defer st.Shutdown()

				status := st.RetrieveStatus()
				if status.Length != 6 {
					t.Fatalf("\t%s\tTest %d:\tShould reload 6 blocks, got %d.", failed, testID, status.Length)
				}
				t.Logf("\t%s\tTest %d:\tShould reload 6 blocks.", success, testID)

				if !status.TipHash.Equal(tip.Hash()) {
					t.Fatalf("\t%s\tTest %d:\tShould reload the same tip.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould reload the same tip.", success, testID)

				if err := st.Verify(); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould verify the reloaded chain: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould verify the reloaded chain.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_ReplayWrongSeed(t *testing.T) {
	t.Log("Given the need to refuse storage written for a different seed.")
	{
		mem, err := memory.New()
		ifErrFailNow(t, err)

		st := newState(t, "seed", mem)
		_, err = st.MineBlock(context.Background(), []byte("data"), 1)
		ifErrFailNow(t, err)

		_, err = state.New(state.Config{Seed: "other", Storage: mem, Difficulty: difficulty.Default})
		if !errors.Is(err, database.ErrBadLinkage) {
			t.Fatalf("\t%s\tShould fail with a bad linkage: %v", failed, err)
		}
		t.Logf("\t%s\tShould fail with a bad linkage.", success)
	}
}

func Test_SubmitBlock(t *testing.T) {
	t.Log("Given the need to accept blocks mined elsewhere.")
	{
		mem, err := memory.New()
		ifErrFailNow(t, err)

		st := newState(t, "seed", mem)
		defer st.Shutdown()

		genesis := st.RetrieveGenesis()
		block := database.NewBlock(1, genesis.Hash(), difficulty.Default.WithLevel(2), []byte("external"))
		_, err = block.Mine()
		ifErrFailNow(t, err)

		if err := st.SubmitBlock(block); err != nil {
			t.Fatalf("\t%s\tShould accept the block: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept the block.", success)

		if _, err := mem.GetBlock(1); err != nil {
			t.Fatalf("\t%s\tShould write the block to storage: %v", failed, err)
		}
		t.Logf("\t%s\tShould write the block to storage.", success)

		if err := st.SubmitBlock(block); !errors.Is(err, database.ErrBadIndex) {
			t.Fatalf("\t%s\tShould reject the block a second time: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject the block a second time.", success)

		if _, err := mem.GetBlock(2); err == nil {
			t.Fatalf("\t%s\tShould not write a rejected block to storage.", failed)
		}
		t.Logf("\t%s\tShould not write a rejected block to storage.", success)
	}
}

func Test_Levels(t *testing.T) {
	t.Log("Given the need to bound the requested difficulty level.")
	{
		mem, err := memory.New()
		ifErrFailNow(t, err)

		st := newState(t, "seed", mem)
		defer st.Shutdown()

		if _, err := st.MineBlock(context.Background(), []byte("x"), 5); !errors.Is(err, state.ErrInvalidLevel) {
			t.Fatalf("\t%s\tShould reject a level above the maximum: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a level above the maximum.", success)

		if _, err := st.SubmitData([]byte("x"), 9); !errors.Is(err, state.ErrInvalidLevel) {
			t.Fatalf("\t%s\tShould reject pending data above the maximum: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject pending data above the maximum.", success)

		block, err := st.MineBlock(context.Background(), []byte("x"), 4)
		ifErrFailNow(t, err)
		if block.Difficulty.Level != 4 {
			t.Fatalf("\t%s\tShould mine at the requested level, got %d.", failed, block.Difficulty.Level)
		}
		t.Logf("\t%s\tShould mine at the requested level.", success)
	}
}

func Test_MineNextEntry(t *testing.T) {
	t.Log("Given the need to mine pending data without a worker.")
	{
		mem, err := memory.New()
		ifErrFailNow(t, err)

		st := newState(t, "seed", mem)
		defer st.Shutdown()

		if _, err := st.MineNextEntry(context.Background()); !errors.Is(err, state.ErrNoPending) {
			t.Fatalf("\t%s\tShould report an empty mempool: %v", failed, err)
		}
		t.Logf("\t%s\tShould report an empty mempool.", success)

		entry, err := st.SubmitData([]byte("pending"), 2)
		ifErrFailNow(t, err)

		block, err := st.MineNextEntry(context.Background())
		ifErrFailNow(t, err)

		if string(block.Data) != "pending" || block.Difficulty.Level != entry.Level {
			t.Fatalf("\t%s\tShould mine the pending entry: %+v", failed, block)
		}
		t.Logf("\t%s\tShould mine the pending entry.", success)

		if st.QueryMempoolLength() != 0 {
			t.Fatalf("\t%s\tShould remove the entry from the mempool.", failed)
		}
		t.Logf("\t%s\tShould remove the entry from the mempool.", success)
	}
}

func Test_SubmitPlatform(t *testing.T) {
	type table struct {
		name   string
		diff   difficulty.Difficulty
		reason error
	}

	tt := []table{
		{name: "hash-width", diff: difficulty.New(8, 8, 1, 1, 32), reason: state.ErrPlatformMismatch},
		{name: "base-bits", diff: difficulty.New(16, 4, 1, 1, 32), reason: state.ErrPlatformMismatch},
		{name: "step", diff: difficulty.New(16, 8, 2, 1, 32), reason: state.ErrPlatformMismatch},
		{name: "nonce-width", diff: difficulty.New(16, 8, 1, 1, 24), reason: state.ErrPlatformMismatch},
		{name: "level-above-max", diff: difficulty.Default.WithLevel(5), reason: state.ErrInvalidLevel},
	}

	t.Log("Given the need to only accept blocks solved against the node's puzzle.")
	{
		mem, err := memory.New()
		ifErrFailNow(t, err)

		st := newState(t, "seed", mem)
		defer st.Shutdown()

		genesis := st.RetrieveGenesis()

		for testID, tst := range tt {
			f := func(t *testing.T) {
				block := database.NewBlock(1, genesis.Hash(), tst.diff, []byte("foreign"))
				if tst.diff.Validate() == nil {
					_, err := block.Mine()
					ifErrFailNow(t, err)
				}

				if err := st.SubmitBlock(block); !errors.Is(err, tst.reason) {
					t.Logf("\t\tTest %d:\tgot: %v", testID, err)
					t.Logf("\t\tTest %d:\texp: %v", testID, tst.reason)
					t.Fatalf("\t%s\tTest %d:\tShould reject the block for the right reason.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould reject the block for the right reason.", success, testID)

				if st.RetrieveStatus().Length != 1 {
					t.Fatalf("\t%s\tTest %d:\tShould leave the chain at the genesis block.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould leave the chain at the genesis block.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}

// countWorker records the signals the state sends to its worker.
type countWorker struct {
	starts  int
	cancels int
}

func (w *countWorker) Shutdown()          {}
func (w *countWorker) SignalStartMining() { w.starts++ }
func (w *countWorker) SignalCancelMining() func() {
	w.cancels++
	return func() {}
}

func Test_MineSignalsWorker(t *testing.T) {
	t.Log("Given the need to stop the worker when the tip moves underneath it.")
	{
		mem, err := memory.New()
		ifErrFailNow(t, err)

		st := newState(t, "seed", mem)
		defer st.Shutdown()

		w := countWorker{}
		st.Worker = &w

		_, err = st.MineBlock(context.Background(), []byte("direct"), 1)
		ifErrFailNow(t, err)

		if w.cancels != 1 {
			t.Fatalf("\t%s\tShould signal the worker to cancel after mining a block, got %d.", failed, w.cancels)
		}
		t.Logf("\t%s\tShould signal the worker to cancel after mining a block.", success)

		_, err = st.MineBlock(context.Background(), []byte("too hard"), 9)
		if !errors.Is(err, state.ErrInvalidLevel) {
			t.Fatalf("\t%s\tShould reject the level above the maximum: %v", failed, err)
		}
		if w.cancels != 1 {
			t.Fatalf("\t%s\tShould not signal the worker when nothing was mined, got %d.", failed, w.cancels)
		}
		t.Logf("\t%s\tShould not signal the worker when nothing was mined.", success)

		_, err = st.SubmitData([]byte("pending"), 1)
		ifErrFailNow(t, err)

		_, err = st.MineNextEntry(context.Background())
		ifErrFailNow(t, err)

		if w.starts != 1 || w.cancels != 1 {
			t.Fatalf("\t%s\tShould not cancel the worker's own mining, got starts[%d] cancels[%d].", failed, w.starts, w.cancels)
		}
		t.Logf("\t%s\tShould not cancel the worker's own mining.", success)
	}
}
