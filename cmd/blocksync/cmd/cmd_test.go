package cmd

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finalitylabs/blocksync/engine/common/synchronization"
	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/utils/unittest"
)

func TestSyncFlagsFromEnvironment(t *testing.T) {
	t.Setenv("BLOCKSYNC_SESSION_PERIOD", "7")
	t.Setenv("BLOCKSYNC_REQUEST_DELAY", "1s")
	t.Setenv("BLOCKSYNC_REQUEST_JITTER", "5")
	t.Setenv("BLOCKSYNC_MAX_MESSAGE_SIZE", "4096")
	initConfig()

	conf := syncConfig(viper.GetViper())
	assert.Equal(t, uint32(7), conf.SessionPeriod)
	assert.Equal(t, "1s", viper.GetString(flagRequestDelay))

	engineConf := synchronization.DefaultConfig()
	for _, apply := range engineOptions(viper.GetViper()) {
		apply(engineConf)
	}
	assert.Equal(t, time.Second, engineConf.RequestDelay)
	assert.Equal(t, uint64(5), engineConf.RequestJitter)
	assert.Equal(t, 4096, engineConf.MaxMessageSize)
	assert.NoError(t, engineConf.Validate())
}

// Must run before TestStatus, cobra keeps --datadir marked as set between
// executions.
func TestStatusRequiresDatadir(t *testing.T) {
	flagDatadir = ""
	rootCmd.SetArgs([]string{"status"})
	require.Error(t, rootCmd.Execute())
}

func TestStatus(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		db := unittest.BadgerDB(t, dir)
		committee := unittest.CommitteeFixture(t, 4)
		state := unittest.ChainStateFixture(t, db, committee.Genesis)
		blocks := committee.Extend(committee.Genesis.Header, 6)
		unittest.ImportAll(t, state, blocks)
		require.NoError(t, state.Finalize(chain.NewJustification(committee.Justify(blocks[2].Header))))
		require.NoError(t, db.Close())

		rootCmd.SetArgs([]string{"status", "--datadir", dir, "--session-period", "3", "--max-depth", "10"})
		require.NoError(t, rootCmd.Execute())
	})
}

func TestSimulate(t *testing.T) {
	if testing.Short() {
		t.Skip("runs several engines")
	}
	rootCmd.SetArgs([]string{
		"simulate",
		"--nodes", "3",
		"--blocks", "15",
		"--session-period", "4",
		"--max-depth", "12",
		"--block-time", "5ms",
		"--broadcast-period", "50ms",
		"--broadcast-cooldown", "10ms",
		"--request-delay", "20ms",
		"--request-max-delay", "200ms",
		"--request-rate", "1000",
		"--max-message-size", "2048",
		"--timeout", "20s",
	})
	require.NoError(t, rootCmd.Execute())
}
