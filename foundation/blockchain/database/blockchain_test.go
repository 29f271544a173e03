package database_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/difficulty"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// mineNext constructs and mines the next block for the chain.
func mineNext(t *testing.T, bc *database.Blockchain, level uint, data string) database.Block {
	t.Helper()

	tip := bc.Tip()
	block := database.NewBlock(tip.Index+1, tip.Hash(), difficulty.New(16, 8, 1, level, 32), []byte(data))
	if _, err := block.Mine(); err != nil {
		t.Fatalf("\t%s\tShould be able to mine block %d: %v", failed, block.Index, err)
	}

	return block
}

// checkInvariants validates every block in the chain by hand.
func checkInvariants(t *testing.T, bc *database.Blockchain) {
	t.Helper()

	blocks := bc.Blocks()
	for i := 1; i < len(blocks); i++ {
		if blocks[i].Index != uint64(i) {
			t.Fatalf("\t%s\tShould have index %d, got %d.", failed, i, blocks[i].Index)
		}
		if !blocks[i].PrevHash.Equal(blocks[i-1].Hash()) {
			t.Fatalf("\t%s\tShould link block %d to its parent.", failed, i)
		}
		if !blocks[i].Difficulty.MeetsTarget(blocks[i].Hash()) {
			t.Fatalf("\t%s\tShould have block %d meet its target.", failed, i)
		}
	}

	if err := bc.Verify(); err != nil {
		t.Fatalf("\t%s\tShould verify the chain: %v", failed, err)
	}
}

// =============================================================================

func Test_Genesis(t *testing.T) {
	t.Log("Given the need to start a chain from a seed.")
	{
		for testID, seed := range []string{"seed", "", "another seed message"} {
			t.Logf("\tTest %d:\tWhen handling seed %q.", testID, seed)
			{
				bc := database.NewBlockchain(seed)

				if bc.Len() != 1 {
					t.Fatalf("\t%s\tTest %d:\tShould have a length of 1, got %d.", failed, testID, bc.Len())
				}
				t.Logf("\t%s\tTest %d:\tShould have a length of 1.", success, testID)

				genesis := bc.Genesis()
				if genesis.Index != 0 || string(genesis.Data) != seed {
					t.Fatalf("\t%s\tTest %d:\tShould derive genesis from the seed.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould derive genesis from the seed.", success, testID)

				if !genesis.PrevHash.Equal(make(database.Digest, 16)) {
					t.Fatalf("\t%s\tTest %d:\tShould have a zero previous hash, got %s.", failed, testID, genesis.PrevHash)
				}
				t.Logf("\t%s\tTest %d:\tShould have a zero previous hash.", success, testID)

				if err := bc.Verify(); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould verify without a puzzle check on genesis: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould verify without a puzzle check on genesis.", success, testID)
			}
		}
	}
}

func Test_InsertMined(t *testing.T) {
	t.Log("Given the need to insert a mined block.")
	{
		bc := database.NewBlockchain("seed")
		genesis, _ := bc.Block(0)

		block := database.NewBlock(1, genesis.Hash(), difficulty.New(16, 8, 1, 8, 32), []byte("x"))
		hash, err := block.Mine()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine the block: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to mine the block.", success)

		if !hash.Equal(block.Hash()) {
			t.Fatalf("\t%s\tShould get back the hash of the mined block.", failed)
		}
		t.Logf("\t%s\tShould get back the hash of the mined block.", success)

		if err := bc.Insert(block); err != nil {
			t.Fatalf("\t%s\tShould be able to insert the block: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to insert the block.", success)

		if bc.Len() != 2 {
			t.Fatalf("\t%s\tShould have a length of 2, got %d.", failed, bc.Len())
		}
		t.Logf("\t%s\tShould have a length of 2.", success)

		err = bc.Insert(block)
		if !errors.Is(err, database.ErrBadIndex) {
			t.Fatalf("\t%s\tShould reject the same block twice with a bad index: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject the same block twice with a bad index.", success)

		if bc.Len() != 2 {
			t.Fatalf("\t%s\tShould leave the length at 2, got %d.", failed, bc.Len())
		}
		t.Logf("\t%s\tShould leave the length at 2.", success)
	}
}

func Test_InsertMany(t *testing.T) {
	t.Log("Given the need to grow a chain with random difficulty levels.")
	{
		bc := database.NewBlockchain("seed")
		rnd := rand.New(rand.NewSource(1))

		for i := 1; i <= 50; i++ {
			level := uint(rnd.Intn(8) + 1)
			block := mineNext(t, bc, level, fmt.Sprintf("block %d", i))

			if err := bc.Insert(block); err != nil {
				t.Fatalf("\t%s\tShould be able to insert block %d: %v", failed, i, err)
			}
		}
		t.Logf("\t%s\tShould be able to insert 50 blocks.", success)

		if bc.Len() != 51 {
			t.Fatalf("\t%s\tShould have a length of 51, got %d.", failed, bc.Len())
		}
		t.Logf("\t%s\tShould have a length of 51.", success)

		checkInvariants(t, bc)
		t.Logf("\t%s\tShould hold every invariant for every block.", success)
	}
}

func Test_Rejections(t *testing.T) {
	bc := database.NewBlockchain("seed")
	if err := bc.Insert(mineNext(t, bc, 1, "one")); err != nil {
		t.Fatalf("Should be able to insert the first block: %v", err)
	}
	tip := bc.Tip()

	unmined := database.NewBlock(2, tip.Hash(), difficulty.Default.WithLevel(8), []byte("x"))
	for unmined.Solved() {
		unmined.Nonce++
	}

	staleLink := database.NewBlock(2, bc.Genesis().Hash(), difficulty.Default, []byte("x"))
	if _, err := staleLink.Mine(); err != nil {
		t.Fatalf("Should be able to mine the stale block: %v", err)
	}

	gap := database.NewBlock(3, tip.Hash(), difficulty.Default, []byte("x"))
	if _, err := gap.Mine(); err != nil {
		t.Fatalf("Should be able to mine the gap block: %v", err)
	}

	badConfig := database.NewBlock(2, tip.Hash(), difficulty.New(1, 8, 1, 2, 32), []byte("x"))

	// Neither block is mined. Their targets wrap in uint arithmetic.
	overflowBase := database.NewBlock(2, tip.Hash(), difficulty.New(16, math.MaxUint, 1, 2, 32), []byte("no work"))
	overflowLevel := database.NewBlock(2, tip.Hash(), difficulty.New(16, 8, 2, math.MaxUint/2+2, 32), []byte("no work"))

	type table struct {
		name   string
		block  database.Block
		reason error
	}

	tt := []table{
		{name: "unmined", block: unmined, reason: database.ErrFailedPuzzle},
		{name: "stale-link", block: staleLink, reason: database.ErrBadLinkage},
		{name: "gap", block: gap, reason: database.ErrBadIndex},
		{name: "overwrite", block: bc.Genesis(), reason: database.ErrBadIndex},
		{name: "bad-config", block: badConfig, reason: database.ErrFailedPuzzle},
		{name: "overflow-base", block: overflowBase, reason: database.ErrFailedPuzzle},
		{name: "overflow-level", block: overflowLevel, reason: database.ErrFailedPuzzle},
	}

	t.Log("Given the need to reject invalid blocks without changing the chain.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				err := bc.Insert(tst.block)
				if !errors.Is(err, tst.reason) {
					t.Logf("\t\tTest %d:\tgot: %v", testID, err)
					t.Logf("\t\tTest %d:\texp: %v", testID, tst.reason)
					t.Fatalf("\t%s\tTest %d:\tShould reject the block for the right reason.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould reject the block for the right reason.", success, testID)

				if re := database.GetRejected(err); re == nil || re.Index != tst.block.Index {
					t.Fatalf("\t%s\tTest %d:\tShould get back a rejected error for the block.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould get back a rejected error for the block.", success, testID)

				if bc.Len() != 2 {
					t.Fatalf("\t%s\tTest %d:\tShould leave the length at 2, got %d.", failed, testID, bc.Len())
				}
				t.Logf("\t%s\tTest %d:\tShould leave the length at 2.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}

	t.Log("Given the need to surface the configuration problem behind a rejection.")
	{
		for _, block := range []database.Block{badConfig, overflowBase, overflowLevel} {
			var ce *difficulty.ConfigError
			if !errors.As(bc.Insert(block), &ce) {
				t.Fatalf("\t%s\tShould find the config error for %s.", failed, block.Difficulty)
			}
			t.Logf("\t%s\tShould find the config error for %s.", success, block.Difficulty)
		}

		if bc.Len() != 2 {
			t.Fatalf("\t%s\tShould leave the length at 2, got %d.", failed, bc.Len())
		}
		t.Logf("\t%s\tShould leave the length at 2.", success)
	}
}

func Test_RacingInserts(t *testing.T) {
	t.Log("Given the need to serialize competing blocks for the same index.")
	{
		bc := database.NewBlockchain("seed")
		genesis := bc.Genesis()

		const producers = 8
		blocks := make([]database.Block, producers)
		for i := range blocks {
			blocks[i] = database.NewBlock(1, genesis.Hash(), difficulty.Default, []byte(fmt.Sprintf("producer %d", i)))
			if _, err := blocks[i].Mine(); err != nil {
				t.Fatalf("\t%s\tShould be able to mine block for producer %d: %v", failed, i, err)
			}
		}

		errs := make([]error, producers)
		var wg sync.WaitGroup
		wg.Add(producers)
		for i := range blocks {
			go func(i int) {
				defer wg.Done()
				errs[i] = bc.Insert(blocks[i])
			}(i)
		}
		wg.Wait()

		var accepted int
		for _, err := range errs {
			switch {
			case err == nil:
				accepted++
			case !errors.Is(err, database.ErrBadIndex):
				t.Fatalf("\t%s\tShould only lose with a bad index: %v", failed, err)
			}
		}

		if accepted != 1 {
			t.Fatalf("\t%s\tShould accept exactly one block, got %d.", failed, accepted)
		}
		t.Logf("\t%s\tShould accept exactly one block.", success)

		if bc.Len() != 2 {
			t.Fatalf("\t%s\tShould have a length of 2, got %d.", failed, bc.Len())
		}
		t.Logf("\t%s\tShould have a length of 2.", success)
	}
}

func Test_Ownership(t *testing.T) {
	t.Log("Given the need to protect accepted blocks from outside mutation.")
	{
		bc := database.NewBlockchain("seed")
		block := mineNext(t, bc, 1, "owned")
		if err := bc.Insert(block); err != nil {
			t.Fatalf("\t%s\tShould be able to insert the block: %v", failed, err)
		}

		block.Data[0] = 'X'
		got, _ := bc.Block(1)
		got.Data[1] = 'X'

		if err := bc.Verify(); err != nil {
			t.Fatalf("\t%s\tShould not be affected by changes to copies: %v", failed, err)
		}
		t.Logf("\t%s\tShould not be affected by changes to copies.", success)

		if _, err := bc.Block(2); !errors.Is(err, database.ErrNotFound) {
			t.Fatalf("\t%s\tShould not find a block past the tip: %v", failed, err)
		}
		t.Logf("\t%s\tShould not find a block past the tip.", success)
	}
}

func Test_Range(t *testing.T) {
	bc := database.NewBlockchain("seed")
	for i := 1; i <= 5; i++ {
		if err := bc.Insert(mineNext(t, bc, 1, fmt.Sprintf("%d", i))); err != nil {
			t.Fatalf("Should be able to insert block %d: %v", i, err)
		}
	}

	type table struct {
		name     string
		from, to uint64
		exp      int
	}

	tt := []table{
		{name: "all", from: 0, to: 5, exp: 6},
		{name: "clipped", from: 3, to: 100, exp: 3},
		{name: "single", from: 2, to: 2, exp: 1},
		{name: "empty", from: 7, to: 9, exp: 0},
	}

	t.Log("Given the need to read a range of blocks.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				blocks := bc.Range(tst.from, tst.to)
				if len(blocks) != tst.exp {
					t.Fatalf("\t%s\tTest %d:\tShould get %d blocks, got %d.", failed, testID, tst.exp, len(blocks))
				}
				if tst.exp > 0 && blocks[0].Index != tst.from {
					t.Fatalf("\t%s\tTest %d:\tShould start at block %d, got %d.", failed, testID, tst.from, blocks[0].Index)
				}
				t.Logf("\t%s\tTest %d:\tShould get back the right blocks.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_MineCancel(t *testing.T) {
	t.Log("Given the need to abandon a mining operation.")
	{
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		block := database.NewBlock(1, make(database.Digest, 32), difficulty.New(32, 60, 1, 1, 64), []byte("hard"))
		_, err := block.MineContext(ctx, nil)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("\t%s\tShould stop with a cancelled context: %v", failed, err)
		}
		t.Logf("\t%s\tShould stop with a cancelled context.", success)

		if block.Nonce != 0 {
			t.Fatalf("\t%s\tShould leave the nonce alone, got %d.", failed, block.Nonce)
		}
		t.Logf("\t%s\tShould leave the nonce alone.", success)
	}
}
