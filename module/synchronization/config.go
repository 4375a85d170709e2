package synchronization

import (
	"fmt"

	"github.com/finalitylabs/blocksync/module/forest"
)

const DefaultSessionPeriod = 900

// Config holds the parameters of the sync protocol.
type Config struct {
	SessionPeriod uint32 // number of blocks in a session, the last block of every session is justified
	MaxDepth      uint32 // how far above the top finalized block we track blocks
}

func DefaultConfig() Config {
	return Config{
		SessionPeriod: DefaultSessionPeriod,
		MaxDepth:      forest.DefaultMaxDepth,
	}
}

// Validate checks that a full session fits into the forest, otherwise a node
// could never reach the justified block at the end of the session.
func (c Config) Validate() error {
	if c.SessionPeriod == 0 {
		return fmt.Errorf("session period must be positive")
	}
	if c.MaxDepth < c.SessionPeriod {
		return fmt.Errorf("max depth %d is smaller than the session period %d", c.MaxDepth, c.SessionPeriod)
	}
	return nil
}
