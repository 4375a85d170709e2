package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "BLOCKSYNC"

var rootCmd = &cobra.Command{
	Use:   "blocksync",
	Short: "inspect and simulate block synchronization",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger()
	},
	SilenceUsage: true,
}

var RootCmd = rootCmd

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	InitializeSyncFlags(rootCmd.PersistentFlags())
	_ = viper.BindPFlags(rootCmd.PersistentFlags())

	cobra.OnInitialize(initConfig)
}

// initConfig lets every flag be set through the environment, for example
// --session-period through BLOCKSYNC_SESSION_PERIOD.
func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func initLogger() error {
	level, err := zerolog.ParseLevel(viper.GetString(flagLogLevel))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()
	return nil
}
