// Package cmd contains the chain tooling commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/difficulty"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/blockchain/storage"
	"github.com/ardanlabs/powchain/foundation/logger"
	"github.com/spf13/cobra"
)

var (
	url     string
	verbose bool
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log chain events.")
}

var rootCmd = &cobra.Command{
	Use:   "chain",
	Short: "Mine, verify and inspect proof of work chains",
}

// Execute runs the command specified on the command line.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// =============================================================================

// addURLFlag binds the node url flag to a remote command.
func addURLFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
}

// addChainFlags adds the flags needed to open a local chain. The flags are
// read back per command in openState since the defaults differ by command.
func addChainFlags(cmd *cobra.Command, defaultKind string) {
	cmd.Flags().StringP("seed", "s", "powchain", "Seed for the genesis block.")
	cmd.Flags().String("storage", defaultKind, "Storage kind: disk, bolt or memory.")
	cmd.Flags().StringP("path", "p", "zblock/blocks", "Path to the storage.")
	cmd.Flags().Uint("hash-width", difficulty.Default.HashWidth, "Number of digest bytes examined by the puzzle.")
	cmd.Flags().Uint("base-bits", difficulty.Default.BaseTargetBits, "Leading zero bits required at level 1.")
	cmd.Flags().Uint("step", difficulty.Default.Step, "Additional zero bits per level.")
	cmd.Flags().Uint("nonce-width", difficulty.Default.NonceWidth, "Bit-width of the nonce search space.")
	cmd.Flags().UintP("max-level", "m", 8, "Highest difficulty level accepted.")
}

// chainConfig is the set of values read from the chain flags.
type chainConfig struct {
	seed           string
	storageKind    string
	dbPath         string
	hashWidth      uint
	baseTargetBits uint
	step           uint
	nonceWidth     uint
	maxLevel       uint
}

func readChainFlags(cmd *cobra.Command) (chainConfig, error) {
	var cfg chainConfig
	var err error

	flags := cmd.Flags()
	strs := []struct {
		name string
		dst  *string
	}{
		{"seed", &cfg.seed},
		{"storage", &cfg.storageKind},
		{"path", &cfg.dbPath},
	}
	for _, f := range strs {
		if *f.dst, err = flags.GetString(f.name); err != nil {
			return chainConfig{}, err
		}
	}

	uints := []struct {
		name string
		dst  *uint
	}{
		{"hash-width", &cfg.hashWidth},
		{"base-bits", &cfg.baseTargetBits},
		{"step", &cfg.step},
		{"nonce-width", &cfg.nonceWidth},
		{"max-level", &cfg.maxLevel},
	}
	for _, f := range uints {
		if *f.dst, err = flags.GetUint(f.name); err != nil {
			return chainConfig{}, err
		}
	}

	return cfg, nil
}

// openState opens the configured storage and replays it into a state.
func openState(cmd *cobra.Command, randomLevel bool) (*state.State, error) {
	cfg, err := readChainFlags(cmd)
	if err != nil {
		return nil, err
	}

	strg, err := storage.Open(cfg.storageKind, cfg.dbPath)
	if err != nil {
		return nil, err
	}

	ev := func(string, ...any) {}
	if verbose {
		log, err := logger.New("CHAIN")
		if err != nil {
			strg.Close()
			return nil, err
		}
		ev = logger.EvHandler(log, "00000000-0000-0000-0000-000000000000")
	}

	st, err := state.New(state.Config{
		Seed:        cfg.seed,
		Storage:     strg,
		Difficulty:  difficulty.New(cfg.hashWidth, cfg.baseTargetBits, cfg.step, 1, cfg.nonceWidth),
		MaxLevel:    cfg.maxLevel,
		RandomLevel: randomLevel,
		EvHandler:   ev,
	})
	if err != nil {
		strg.Close()
		return nil, err
	}

	return st, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(data))
	return nil
}

func printBlock(block database.Block) {
	fmt.Printf("blk[%d] level[%d] bits[%d] nonce[%d] hash[%s] prev[%s] time[%v] data[%q]\n",
		block.Index,
		block.Difficulty.Level,
		block.Difficulty.EffectiveTargetBits(),
		block.Nonce,
		block.Hash(),
		block.PrevHash,
		block.MineTime.Round(time.Microsecond),
		block.Data,
	)
}

func timeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Minute)
}
