package cmd

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/finalitylabs/blocksync/engine/common/synchronization"
	"github.com/finalitylabs/blocksync/module/forest"
	synccore "github.com/finalitylabs/blocksync/module/synchronization"
)

const (
	// All constant strings are used for CLI flag names and corresponding keys for config values.
	flagLogLevel          = "log-level"
	flagSessionPeriod     = "session-period"
	flagMaxDepth          = "max-depth"
	flagBroadcastPeriod   = "broadcast-period"
	flagBroadcastCooldown = "broadcast-cooldown"
	flagRequestDelay      = "request-delay"
	flagRequestMaxDelay   = "request-max-delay"
	flagRequestJitter     = "request-jitter"
	flagRequestRate       = "request-rate"
	flagRequestBurst      = "request-burst"
	flagMaxMessageSize    = "max-message-size"
)

// InitializeSyncFlags defines the flags shared by all commands on the given
// flag set, with defaults taken from the default configurations.
func InitializeSyncFlags(flags *pflag.FlagSet) {
	core := synccore.DefaultConfig()
	engine := synchronization.DefaultConfig()

	flags.String(flagLogLevel, "info", "log level (trace, debug, info, warn, error)")
	flags.Uint32(flagSessionPeriod, core.SessionPeriod, "number of blocks in a session")
	flags.Uint32(flagMaxDepth, forest.DefaultMaxDepth, "how far above the top finalized block blocks are tracked")
	flags.Duration(flagBroadcastPeriod, engine.BroadcastPeriod, "interval between state broadcasts")
	flags.Duration(flagBroadcastCooldown, engine.BroadcastCooldown, "minimal interval between two state broadcasts")
	flags.Duration(flagRequestDelay, engine.RequestDelay, "base delay between two requests for the same block")
	flags.Duration(flagRequestMaxDelay, engine.RequestMaxDelay, "maximal delay between two requests for the same block")
	flags.Uint64(flagRequestJitter, engine.RequestJitter, "random deviation of request delays, in percent")
	flags.Float64(flagRequestRate, float64(engine.RequestRateLimit), "requests served per second and peer")
	flags.Int(flagRequestBurst, engine.RequestBurst, "requests of a single peer served at once")
	flags.Int(flagMaxMessageSize, engine.MaxMessageSize, "maximal encoded size of a sync message, in bytes")
}

// syncConfig reads the handler configuration.
func syncConfig(conf *viper.Viper) synccore.Config {
	return synccore.Config{
		SessionPeriod: conf.GetUint32(flagSessionPeriod),
		MaxDepth:      conf.GetUint32(flagMaxDepth),
	}
}

// engineOptions reads the engine configuration.
func engineOptions(conf *viper.Viper) []synchronization.OptionFunc {
	return []synchronization.OptionFunc{
		synchronization.WithBroadcastPeriod(conf.GetDuration(flagBroadcastPeriod)),
		synchronization.WithBroadcastCooldown(conf.GetDuration(flagBroadcastCooldown)),
		synchronization.WithRequestDelay(conf.GetDuration(flagRequestDelay)),
		synchronization.WithRequestMaxDelay(conf.GetDuration(flagRequestMaxDelay)),
		synchronization.WithRequestJitter(conf.GetUint64(flagRequestJitter)),
		synchronization.WithRequestRateLimit(rate.Limit(conf.GetFloat64(flagRequestRate)), conf.GetInt(flagRequestBurst)),
		synchronization.WithMaxMessageSize(conf.GetInt(flagMaxMessageSize)),
	}
}
