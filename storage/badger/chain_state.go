package badger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v2"
	"github.com/ef-ds/deque"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/storage"
	"github.com/finalitylabs/blocksync/storage/badger/operation"
	"github.com/finalitylabs/blocksync/utils/logging"
)

const DefaultHeaderCacheSize = 4096

// ErrNotDescendant is returned when finalizing a block that does not extend
// the finalized chain.
var ErrNotDescendant = errors.New("block does not descend from the top finalized block")

// ChainState is the persistent chain on top of a badger database. It stores
// imported blocks and the finalized chain, and emits an event for every
// import and finalization.
type ChainState struct {
	log     zerolog.Logger
	db      *badger.DB
	headers *lru.Cache[chain.BlockID, chain.Header]

	// finalization and imports are serialized
	writeLock sync.Mutex

	eventsLock sync.Mutex
	events     *deque.Deque
	notifier   module.Notifier
}

var (
	_ module.ChainStatus   = (*ChainState)(nil)
	_ module.Finalizer     = (*ChainState)(nil)
	_ module.BlockImporter = (*ChainState)(nil)
	_ module.ChainEvents   = (*ChainState)(nil)
)

// Bootstrap stores the genesis block as the finalized root of the chain.
func Bootstrap(db *badger.DB, genesis chain.Block) error {
	if genesis.Header.Number != 0 {
		return fmt.Errorf("genesis block has number %d", genesis.Header.Number)
	}
	id := genesis.ID()
	justification := chain.UnverifiedJustification{Header: genesis.Header}
	return operation.RetryOnConflict(db.Update, func(tx *badger.Txn) error {
		err := operation.InsertHeader(id, &genesis.Header)(tx)
		if err != nil {
			return fmt.Errorf("could not insert genesis header: %w", err)
		}
		err = operation.InsertPayload(id, genesis.Payload)(tx)
		if err != nil {
			return fmt.Errorf("could not insert genesis payload: %w", err)
		}
		err = operation.InsertJustification(id, &justification)(tx)
		if err != nil {
			return fmt.Errorf("could not insert genesis justification: %w", err)
		}
		err = operation.IndexFinalizedHeight(0, id)(tx)
		if err != nil {
			return fmt.Errorf("could not index genesis: %w", err)
		}
		err = operation.InsertTopFinalized(id)(tx)
		if err != nil {
			return fmt.Errorf("could not insert top finalized: %w", err)
		}
		return operation.UpdateBestBlock(id)(tx)
	})
}

// IsBootstrapped returns whether the database holds a chain.
func IsBootstrapped(db *badger.DB) (bool, error) {
	var top chain.BlockID
	err := db.View(operation.RetrieveTopFinalized(&top))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not retrieve top finalized: %w", err)
	}
	return true, nil
}

func NewChainState(log zerolog.Logger, db *badger.DB) (*ChainState, error) {
	bootstrapped, err := IsBootstrapped(db)
	if err != nil {
		return nil, err
	}
	if !bootstrapped {
		return nil, fmt.Errorf("chain state is not bootstrapped")
	}
	headers, err := lru.New[chain.BlockID, chain.Header](DefaultHeaderCacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not create header cache: %w", err)
	}
	return &ChainState{
		log:      log.With().Str("component", "chain_state").Logger(),
		db:       db,
		headers:  headers,
		events:   deque.New(),
		notifier: module.NewNotifier(),
	}, nil
}

func (c *ChainState) Header(id chain.BlockID) (chain.Header, error) {
	if header, ok := c.headers.Get(id); ok {
		return header, nil
	}
	var header chain.Header
	err := c.db.View(operation.RetrieveHeader(id, &header))
	if err != nil {
		return chain.Header{}, err
	}
	c.headers.Add(id, header)
	return header, nil
}

func (c *ChainState) justification(id chain.BlockID) (chain.Justification, error) {
	var unverified chain.UnverifiedJustification
	err := c.db.View(operation.RetrieveJustification(id, &unverified))
	if err != nil {
		return chain.Justification{}, err
	}
	// only verified justifications are ever stored
	return chain.NewJustification(unverified), nil
}

func (c *ChainState) TopFinalized() (chain.Justification, error) {
	var id chain.BlockID
	err := c.db.View(operation.RetrieveTopFinalized(&id))
	if err != nil {
		return chain.Justification{}, fmt.Errorf("could not retrieve top finalized id: %w", err)
	}
	justification, err := c.justification(id)
	if err != nil {
		return chain.Justification{}, fmt.Errorf("could not retrieve justification of %s: %w", id, err)
	}
	return justification, nil
}

func (c *ChainState) FinalizedAt(number chain.BlockNumber) (module.FinalizationStatus, error) {
	var id chain.BlockID
	err := c.db.View(operation.LookupFinalizedHeight(number, &id))
	if errors.Is(err, storage.ErrNotFound) {
		return module.FinalizationStatus{Kind: module.NotFinalized}, nil
	}
	if err != nil {
		return module.FinalizationStatus{}, fmt.Errorf("could not look up finalized height %d: %w", number, err)
	}

	justification, err := c.justification(id)
	if err == nil {
		return module.FinalizationStatus{Kind: module.FinalizedWithJustification, Justification: justification}, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return module.FinalizationStatus{}, fmt.Errorf("could not retrieve justification of %s: %w", id, err)
	}
	header, err := c.Header(id)
	if err != nil {
		return module.FinalizationStatus{}, fmt.Errorf("could not retrieve finalized header %s: %w", id, err)
	}
	return module.FinalizationStatus{Kind: module.FinalizedByDescendant, Header: header}, nil
}

func (c *ChainState) StatusOf(id chain.BlockID) (module.BlockStatus, error) {
	header, err := c.Header(id)
	if errors.Is(err, storage.ErrNotFound) {
		return module.BlockStatus{Kind: module.BlockStatusUnknown}, nil
	}
	if err != nil {
		return module.BlockStatus{}, fmt.Errorf("could not retrieve header %s: %w", id, err)
	}
	justification, err := c.justification(id)
	if errors.Is(err, storage.ErrNotFound) {
		return module.BlockStatus{Kind: module.BlockStatusPresent, Header: header}, nil
	}
	if err != nil {
		return module.BlockStatus{}, fmt.Errorf("could not retrieve justification of %s: %w", id, err)
	}
	return module.BlockStatus{Kind: module.BlockStatusJustified, Header: header, Justification: justification}, nil
}

func (c *ChainState) Block(id chain.BlockID) (*chain.Block, error) {
	header, err := c.Header(id)
	if err != nil {
		return nil, err
	}
	var payload []byte
	err = c.db.View(operation.RetrievePayload(id, &payload))
	if err != nil {
		return nil, err
	}
	return &chain.Block{Header: header, Payload: payload}, nil
}

func (c *ChainState) Children(id chain.BlockID) ([]chain.Header, error) {
	var childIDs []chain.BlockID
	err := c.db.View(operation.LookupChildren(id, &childIDs))
	if err != nil {
		return nil, fmt.Errorf("could not look up children of %s: %w", id, err)
	}
	children := make([]chain.Header, 0, len(childIDs))
	for _, childID := range childIDs {
		header, err := c.Header(childID)
		if err != nil {
			return nil, fmt.Errorf("could not retrieve child %s: %w", childID, err)
		}
		children = append(children, header)
	}
	return children, nil
}

func (c *ChainState) BestBlock() (chain.Header, error) {
	var id chain.BlockID
	err := c.db.View(operation.RetrieveBestBlock(&id))
	if err != nil {
		return chain.Header{}, fmt.Errorf("could not retrieve best block id: %w", err)
	}
	return c.Header(id)
}

// ImportBlock stores the block if its parent is stored already. Failures are
// only logged, the caller learns about successful imports through events.
func (c *ChainState) ImportBlock(block chain.Block) {
	id := block.ID()
	log := c.log.With().
		Hex("block_id", logging.ID(id)).
		Uint32("block_number", uint32(id.Number)).
		Logger()

	imported, err := c.importBlock(block)
	if err != nil {
		log.Warn().Err(err).Msg("could not import block")
		return
	}
	if !imported {
		log.Debug().Msg("block already imported")
		return
	}
	log.Debug().Msg("block imported")
	c.push(module.ChainEvent{Kind: module.BlockImported, Header: block.Header})
}

func (c *ChainState) importBlock(block chain.Block) (bool, error) {
	if !block.Valid() {
		return false, fmt.Errorf("payload does not match header")
	}
	parentID, ok := block.Header.ParentID()
	if !ok {
		return false, fmt.Errorf("block has no parent")
	}
	id := block.ID()

	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	top, err := c.TopFinalized()
	if err != nil {
		return false, err
	}
	if id.Number <= top.ID().Number {
		return false, fmt.Errorf("block is not above top finalized %s", top.ID())
	}
	best, err := c.BestBlock()
	if err != nil {
		return false, err
	}

	imported := true
	err = operation.RetryOnConflict(c.db.Update, func(tx *badger.Txn) error {
		var exists bool
		err := operation.HeaderExists(id, &exists)(tx)
		if err != nil {
			return err
		}
		if exists {
			imported = false
			return nil
		}
		err = operation.HeaderExists(parentID, &exists)(tx)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("parent %s: %w", parentID, storage.ErrNotFound)
		}
		err = operation.InsertHeader(id, &block.Header)(tx)
		if err != nil {
			return fmt.Errorf("could not insert header: %w", err)
		}
		err = operation.InsertPayload(id, block.Payload)(tx)
		if err != nil {
			return fmt.Errorf("could not insert payload: %w", err)
		}
		err = operation.SkipDuplicates(operation.IndexChild(parentID, id))(tx)
		if err != nil {
			return fmt.Errorf("could not index child: %w", err)
		}
		if id.Number > best.Number {
			return operation.UpdateBestBlock(id)(tx)
		}
		return nil
	})
	return imported, err
}

// Finalize finalizes the justified block and all its ancestors above the
// current top finalized block. Finalizing a block that is finalized already
// is a no-op.
func (c *ChainState) Finalize(justification chain.Justification) error {
	id := justification.ID()

	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	top, err := c.TopFinalized()
	if err != nil {
		return err
	}
	topID := top.ID()
	if id.Number <= topID.Number {
		var finalized chain.BlockID
		err = c.db.View(operation.LookupFinalizedHeight(id.Number, &finalized))
		if err != nil {
			return fmt.Errorf("could not look up finalized height %d: %w", id.Number, err)
		}
		if finalized != id {
			return fmt.Errorf("block %s conflicts with finalized %s: %w", id, finalized, ErrNotDescendant)
		}
		return nil
	}

	header, err := c.Header(id)
	if err != nil {
		return fmt.Errorf("could not retrieve header of %s: %w", id, err)
	}
	ancestors := []chain.BlockID{id}
	current := header
	for {
		parentID, ok := current.ParentID()
		if !ok {
			return fmt.Errorf("block %s: %w", id, ErrNotDescendant)
		}
		if parentID.Number == topID.Number {
			if parentID != topID {
				return fmt.Errorf("block %s: %w", id, ErrNotDescendant)
			}
			break
		}
		ancestors = append(ancestors, parentID)
		current, err = c.Header(parentID)
		if err != nil {
			return fmt.Errorf("could not retrieve ancestor %s: %w", parentID, err)
		}
	}

	unverified := justification.IntoUnverified()
	err = operation.RetryOnConflict(c.db.Update, func(tx *badger.Txn) error {
		for _, ancestor := range ancestors {
			err := operation.IndexFinalizedHeight(ancestor.Number, ancestor)(tx)
			if err != nil {
				return fmt.Errorf("could not index finalized %s: %w", ancestor, err)
			}
		}
		err := operation.InsertJustification(id, &unverified)(tx)
		if err != nil {
			return fmt.Errorf("could not insert justification: %w", err)
		}
		return operation.UpdateTopFinalized(id)(tx)
	})
	if err != nil {
		return fmt.Errorf("could not finalize %s: %w", id, err)
	}

	logging.Block(c.log.Debug(), id).Int("finalized_blocks", len(ancestors)).Msg("blocks finalized")
	c.push(module.ChainEvent{Kind: module.BlockFinalized, Header: header})
	return nil
}

func (c *ChainState) push(event module.ChainEvent) {
	c.eventsLock.Lock()
	c.events.PushBack(event)
	c.eventsLock.Unlock()
	c.notifier.Notify()
}

func (c *ChainState) Notifier() <-chan struct{} {
	return c.notifier.Channel()
}

func (c *ChainState) Pop() (module.ChainEvent, bool) {
	c.eventsLock.Lock()
	defer c.eventsLock.Unlock()
	item, ok := c.events.PopFront()
	if !ok {
		return module.ChainEvent{}, false
	}
	return item.(module.ChainEvent), true
}
