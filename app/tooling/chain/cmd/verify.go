package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Replay a local chain from storage and verify every block.",
	Run:   verifyRun,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	addChainFlags(verifyCmd, "disk")
}

func verifyRun(cmd *cobra.Command, args []string) {
	if err := verifyChain(cmd); err != nil {
		log.Fatal(err)
	}
}

// verifyChain replays the configured storage and verifies the chain.
func verifyChain(cmd *cobra.Command) error {

	// Every stored block is inserted through the chain rules on open.
	st, err := openState(cmd, false)
	if err != nil {
		return err
	}
	defer st.Shutdown()

	if err := st.Verify(); err != nil {
		return err
	}

	status := st.RetrieveStatus()
	fmt.Printf("chain is valid: length[%d] tip[%s]\n", status.Length, status.TipHash)

	return nil
}
