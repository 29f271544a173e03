package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

var (
	count  int
	level  uint
	random bool
	prefix string
)

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Mine blocks into a local chain.",
	Run:   mineRun,
}

func init() {
	rootCmd.AddCommand(mineCmd)
	addChainFlags(mineCmd, "memory")
	mineCmd.Flags().IntVarP(&count, "count", "n", 10, "Number of blocks to mine.")
	mineCmd.Flags().UintVarP(&level, "level", "l", 1, "Difficulty level for every block.")
	mineCmd.Flags().BoolVarP(&random, "random", "r", false, "Pick a random level in [1, max-level] for every block.")
	mineCmd.Flags().StringVarP(&prefix, "data", "d", "block", "Payload prefix, the block number is appended.")
}

func mineRun(cmd *cobra.Command, args []string) {
	if err := mineBlocks(cmd); err != nil {
		log.Fatal(err)
	}
}

// mineBlocks mines count blocks into the configured chain and verifies the
// chain once they are written.
func mineBlocks(cmd *cobra.Command) error {
	st, err := openState(cmd, random)
	if err != nil {
		return err
	}
	defer st.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	blockLevel := level
	if random {
		blockLevel = 0
	}

	start := time.Now()
	for i := 0; i < count; i++ {
		tip := st.RetrieveLatestBlock()
		data := fmt.Sprintf("%s %d", prefix, tip.Index+1)

		block, err := st.MineBlock(ctx, []byte(data), blockLevel)
		if err != nil {
			return fmt.Errorf("mining block %d: %w", tip.Index+1, err)
		}
		printBlock(block)
	}

	if err := st.Verify(); err != nil {
		return err
	}

	status := st.RetrieveStatus()
	fmt.Printf("mined %d blocks in %v, chain length %d, tip %s\n", count, time.Since(start).Round(time.Millisecond), status.Length, status.TipHash)

	return nil
}
