package cmd

import (
	"log"

	"github.com/ardanlabs/powchain/foundation/client"
	"github.com/spf13/cobra"
)

var (
	from    uint64
	to      string
	payload  string
	addLevel uint
	mineNow  bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status of a node's chain.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := timeout()
		defer cancel()

		status, err := client.New(url).Status(ctx)
		if err != nil {
			log.Fatal(err)
		}

		if err := printJSON(status); err != nil {
			log.Fatal(err)
		}
	},
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Send a payload to a node to be mined.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := timeout()
		defer cancel()

		c := client.New(url)

		if mineNow {
			block, err := c.Mine(ctx, payload, addLevel)
			if err != nil {
				log.Fatal(err)
			}
			printBlock(block)
			return
		}

		entry, err := c.AddData(ctx, payload, addLevel)
		if err != nil {
			log.Fatal(err)
		}

		if err := printJSON(entry); err != nil {
			log.Fatal(err)
		}
	},
}

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Print a range of blocks from a node.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := timeout()
		defer cancel()

		blocks, err := client.New(url).Blocks(ctx, from, to)
		if err != nil {
			log.Fatal(err)
		}

		for _, block := range blocks {
			printBlock(block)
		}
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Print the payloads waiting to be mined on a node.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := timeout()
		defer cancel()

		pending, err := client.New(url).Pending(ctx)
		if err != nil {
			log.Fatal(err)
		}

		if err := printJSON(pending); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	addURLFlag(statusCmd)

	rootCmd.AddCommand(addCmd)
	addURLFlag(addCmd)
	addCmd.Flags().StringVarP(&payload, "data", "d", "", "Payload to mine.")
	addCmd.Flags().UintVarP(&addLevel, "level", "l", 0, "Difficulty level, 0 lets the node pick.")
	addCmd.Flags().BoolVar(&mineNow, "wait", false, "Mine the payload now and wait for the block.")

	rootCmd.AddCommand(pendingCmd)
	addURLFlag(pendingCmd)

	rootCmd.AddCommand(blocksCmd)
	addURLFlag(blocksCmd)
	blocksCmd.Flags().Uint64VarP(&from, "from", "f", 0, "First block index.")
	blocksCmd.Flags().StringVarP(&to, "to", "t", "latest", "Last block index or latest.")
}
