package cmd

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module/forest"
	bstorage "github.com/finalitylabs/blocksync/storage/badger"
)

var flagDatadir string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "print the finalized chain and the blocks pending finalization in a data directory",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&flagDatadir, "datadir", "", "directory of the badger database")
	_ = statusCmd.MarkFlagRequired("datadir")
}

func runStatus(*cobra.Command, []string) error {
	db, err := badger.Open(badger.DefaultOptions(flagDatadir).WithLogger(nil).WithReadOnly(true))
	if err != nil {
		return fmt.Errorf("could not open database at %s: %w", flagDatadir, err)
	}
	defer db.Close()

	bootstrapped, err := bstorage.IsBootstrapped(db)
	if err != nil {
		return err
	}
	if !bootstrapped {
		log.Warn().Str("datadir", flagDatadir).Msg("database holds no chain")
		return nil
	}

	state, err := bstorage.NewChainState(log.Logger, db)
	if err != nil {
		return fmt.Errorf("could not load chain state: %w", err)
	}
	top, err := state.TopFinalized()
	if err != nil {
		return fmt.Errorf("could not read top finalized block: %w", err)
	}
	best, err := state.BestBlock()
	if err != nil {
		return fmt.Errorf("could not read best block: %w", err)
	}

	conf := syncConfig(viper.GetViper())
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid sync configuration: %w", err)
	}
	f, tooMany, err := forest.New(state, conf.MaxDepth)
	if err != nil {
		return fmt.Errorf("could not rebuild forest: %w", err)
	}

	session := chain.NewSessionBoundaryInfo(conf.SessionPeriod).SessionID(top.ID().Number)
	log.Info().
		Str("top_finalized", top.ID().String()).
		Uint32("session", uint32(session)).
		Str("best_block", best.ID().String()).
		Int("pending_blocks", f.Size()).
		Str("highest_justified", f.HighestJustified().String()).
		Bool("import_limit_reached", tooMany).
		Msg("chain status")
	return nil
}
