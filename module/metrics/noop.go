package metrics

import (
	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module"
)

type NoopCollector struct{}

var _ module.SyncMetrics = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) MessageReceived(msgType string)               {}
func (nc *NoopCollector) MessageSent(msgType string)                   {}
func (nc *NoopCollector) MessageDropped(msgType string, reason string) {}
func (nc *NoopCollector) FinalizedHeight(number chain.BlockNumber)     {}
func (nc *NoopCollector) HighestJustified(number chain.BlockNumber)    {}
func (nc *NoopCollector) ForestSize(size int)                          {}
func (nc *NoopCollector) RequestSent(attempt int)                      {}
func (nc *NoopCollector) EquivocationDetected()                        {}
