package synchronization

import (
	"errors"
	"fmt"

	"github.com/ef-ds/deque"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/module/forest"
)

// missedImports tracks blocks that were imported into storage while the
// forest could not accept them, either because they were too far above the
// root or because their parents were not imported in the forest yet. Once
// finalization moved far enough the forest is replayed from storage.
type missedImports struct {
	pending       bool
	highestMissed chain.BlockNumber
	lastSync      chain.BlockNumber
	// minimal finalization progress between replays
	interval chain.BlockNumber
}

func newMissedImports(maxDepth uint32) *missedImports {
	return &missedImports{
		interval: chain.BlockNumber(maxDepth / 4 * 3),
	}
}

func (m *missedImports) update(missed chain.BlockNumber, chainStatus module.ChainStatus) error {
	if m.pending {
		if missed > m.highestMissed {
			m.highestMissed = missed
		}
		return nil
	}
	top, err := chainStatus.TopFinalized()
	if err != nil {
		return fmt.Errorf("could not retrieve top finalized: %w", err)
	}
	m.pending = true
	m.highestMissed = missed
	m.lastSync = top.ID().Number
	return nil
}

// trySync replays imported blocks from storage into the forest, breadth
// first from the top finalized block.
func (m *missedImports) trySync(chainStatus module.ChainStatus, f *forest.Forest) error {
	if !m.pending {
		return nil
	}
	top, err := chainStatus.TopFinalized()
	if err != nil {
		return fmt.Errorf("could not retrieve top finalized: %w", err)
	}
	topID := top.ID()
	if topID.Number-m.lastSync <= m.interval {
		return nil
	}

	queue := deque.New()
	err = pushChildren(queue, chainStatus, topID)
	if err != nil {
		return err
	}
	for queue.Len() > 0 {
		item, _ := queue.PopFront()
		header := item.(chain.Header)
		if header.Number > m.highestMissed {
			break
		}
		err = f.UpdateBody(header)
		if errors.Is(err, forest.ErrTooNew) {
			m.lastSync = topID.Number
			return nil
		}
		if forest.IsOutOfOrderError(err) {
			// pruned forks and their descendants
			continue
		}
		if err != nil {
			return fmt.Errorf("could not replay import of %s: %w", header.ID(), err)
		}
		err = pushChildren(queue, chainStatus, header.ID())
		if err != nil {
			return err
		}
	}
	m.pending = false
	return nil
}

func pushChildren(queue *deque.Deque, chainStatus module.ChainStatus, id chain.BlockID) error {
	children, err := chainStatus.Children(id)
	if err != nil {
		return fmt.Errorf("could not retrieve children of %s: %w", id, err)
	}
	for _, child := range children {
		queue.PushBack(child)
	}
	return nil
}
