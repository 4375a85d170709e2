package cmd

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/finalitylabs/blocksync/engine/common/synchronization"
	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/module/irrecoverable"
	"github.com/finalitylabs/blocksync/module/metrics"
	synccore "github.com/finalitylabs/blocksync/module/synchronization"
	"github.com/finalitylabs/blocksync/module/util"
	"github.com/finalitylabs/blocksync/module/verification"
	"github.com/finalitylabs/blocksync/network/codec/cbor"
	"github.com/finalitylabs/blocksync/network/stub"
	bstorage "github.com/finalitylabs/blocksync/storage/badger"
)

var (
	flagNodes         uint
	flagBlocks        uint
	flagCommitteeSize uint
	flagBlockTime     time.Duration
	flagTimeout       time.Duration
	flagMetricsPort   uint
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "run several sync engines in process and let them follow a single block producer",
	RunE:  runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().UintVar(&flagNodes, "nodes", 3, "number of nodes")
	simulateCmd.Flags().UintVar(&flagBlocks, "blocks", 100, "number of blocks produced by the first node")
	simulateCmd.Flags().UintVar(&flagCommitteeSize, "committee", 4, "number of authorities signing justifications")
	simulateCmd.Flags().DurationVar(&flagBlockTime, "block-time", 20*time.Millisecond, "interval between produced blocks")
	simulateCmd.Flags().DurationVar(&flagTimeout, "timeout", time.Minute, "how long to wait for all nodes to finalize the last block")
	simulateCmd.Flags().UintVar(&flagMetricsPort, "metrics-port", 0, "port to serve prometheus metrics on, 0 disables the server")
}

type simNode struct {
	peer   chain.PeerID
	db     *badger.DB
	state  *bstorage.ChainState
	net    *stub.Network
	engine *synchronization.Engine
}

type simulation struct {
	log      zerolog.Logger
	keys     []ed25519.PrivateKey
	genesis  chain.Block
	hub      *stub.Hub
	registry *prometheus.Registry
	nodes    []*simNode
}

func runSimulate(*cobra.Command, []string) (err error) {
	if flagNodes == 0 || flagCommitteeSize == 0 {
		return fmt.Errorf("simulation needs at least one node and one authority")
	}
	if flagBlockTime <= 0 {
		return fmt.Errorf("block time must be positive")
	}
	conf := syncConfig(viper.GetViper())
	err = conf.Validate()
	if err != nil {
		return fmt.Errorf("invalid sync configuration: %w", err)
	}

	// every run gets its own chain, so databases of different runs never mix
	runID := uuid.New().String()
	sim := &simulation{
		log:      log.With().Str("command", "simulate").Str("run", runID).Logger(),
		genesis:  chain.Genesis("simulation " + runID),
		hub:      stub.NewNetworkHub(),
		registry: prometheus.NewRegistry(),
	}
	for i := uint(0); i < flagCommitteeSize; i++ {
		_, key, genErr := ed25519.GenerateKey(nil)
		if genErr != nil {
			return fmt.Errorf("could not generate authority key: %w", genErr)
		}
		sim.keys = append(sim.keys, key)
	}

	ctx, cancel := context.WithCancel(context.Background())
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)

	defer func() {
		cancel()
		if shutdownErr := sim.shutdown(); shutdownErr != nil {
			err = multierror.Append(err, shutdownErr)
		}
	}()

	err = sim.startNodes(signalerCtx, conf)
	if err != nil {
		return err
	}
	err = util.WaitClosed(ctx, util.AllReady(sim.engines()...))
	if err != nil {
		return fmt.Errorf("engines did not start: %w", err)
	}

	if flagMetricsPort > 0 {
		server := metrics.NewServer(sim.log, flagMetricsPort, sim.registry)
		<-server.Ready()
		defer func() { <-server.Done() }()
	}

	last, err := sim.produce(ctx, errChan, conf)
	if err != nil {
		return err
	}
	err = sim.awaitFinalized(ctx, errChan, last)
	if err != nil {
		return err
	}
	sim.log.Info().
		Str("top_finalized", last.String()).
		Int("nodes", len(sim.nodes)).
		Msg("all nodes finalized the last block")

	return nil
}

func (s *simulation) engines() []module.ReadyDoneAware {
	engines := make([]module.ReadyDoneAware, 0, len(s.nodes))
	for _, node := range s.nodes {
		engines = append(engines, node.engine)
	}
	return engines
}

func (s *simulation) publicKeys() []ed25519.PublicKey {
	pks := make([]ed25519.PublicKey, 0, len(s.keys))
	for _, key := range s.keys {
		pks = append(pks, key.Public().(ed25519.PublicKey))
	}
	return pks
}

// startNodes sets up and starts all nodes concurrently. Nodes that started
// are kept even if others failed, so shutdown stops them.
func (s *simulation) startNodes(ctx irrecoverable.SignalerContext, conf synccore.Config) error {
	nodes := make([]*simNode, flagNodes)
	group := new(errgroup.Group)
	for i := range nodes {
		i := i
		group.Go(func() error {
			node, err := s.startNode(ctx, chain.PeerID(fmt.Sprintf("node-%d", i)), conf)
			nodes[i] = node
			return err
		})
	}
	err := group.Wait()

	for _, node := range nodes {
		if node != nil {
			s.nodes = append(s.nodes, node)
		}
	}
	return err
}

func (s *simulation) startNode(ctx irrecoverable.SignalerContext, peer chain.PeerID, conf synccore.Config) (*simNode, error) {
	nodeLog := s.log.With().Str("node", peer.String()).Logger()

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	node := &simNode{peer: peer, db: db}

	err = bstorage.Bootstrap(db, s.genesis)
	if err != nil {
		return nil, multierror.Append(fmt.Errorf("could not bootstrap %s: %w", peer, err), db.Close())
	}
	node.state, err = bstorage.NewChainState(nodeLog, db)
	if err != nil {
		return nil, multierror.Append(err, db.Close())
	}

	verifier, err := verification.NewVerifier(nodeLog, s.publicKeys(), s.genesis.ID())
	if err != nil {
		return nil, multierror.Append(err, db.Close())
	}
	collector := metrics.NewSyncCollector(s.registry, prometheus.Labels{"node": peer.String()})
	handler, err := synccore.NewHandler(nodeLog, node.state, verifier, node.state, node.state, collector, conf)
	if err != nil {
		return nil, multierror.Append(err, db.Close())
	}

	node.net = stub.NewNetwork(nodeLog, s.hub, peer, cbor.NewCodec(cbor.WithMaxMessageSize(viper.GetInt(flagMaxMessageSize))))
	node.engine, err = synchronization.New(nodeLog, collector, node.net, node.state, handler, engineOptions(viper.GetViper())...)
	if err != nil {
		node.net.Stop()
		return nil, multierror.Append(err, db.Close())
	}

	node.engine.Start(ctx)
	return node, nil
}

// produce builds the chain on the first node. The last block of every
// session and the very last block get a justification from the committee.
func (s *simulation) produce(ctx context.Context, errChan <-chan error, conf synccore.Config) (chain.BlockID, error) {
	producer := s.nodes[0]
	sessions := chain.NewSessionBoundaryInfo(conf.SessionPeriod)
	signers := make(map[chain.AuthorityIndex]ed25519.PrivateKey, len(s.keys))
	for i, key := range s.keys {
		signers[chain.AuthorityIndex(i)] = key
	}

	parent := s.genesis.Header
	ticker := time.NewTicker(flagBlockTime)
	defer ticker.Stop()

	for slot := uint64(1); slot <= uint64(flagBlocks); slot++ {
		select {
		case <-ctx.Done():
			return chain.BlockID{}, ctx.Err()
		case err := <-errChan:
			return chain.BlockID{}, fmt.Errorf("engine failed: %w", err)
		case <-ticker.C:
		}

		author := chain.AuthorityIndex(slot % uint64(len(s.keys)))
		block := chain.NewBlock(parent, author, slot, []byte(fmt.Sprintf("block %d", slot)))
		verification.SealHeader(s.keys[author], &block.Header)
		producer.engine.SubmitOwnBlock(block)
		parent = block.Header

		number := block.Header.Number
		if number == sessions.LastBlockOfSession(sessions.SessionID(number)) || slot == uint64(flagBlocks) {
			producer.engine.SubmitJustification(verification.SignJustification(signers, block.Header))
			s.log.Debug().Uint32("number", uint32(number)).Msg("justified produced block")
		}
	}
	return parent.ID(), nil
}

func (s *simulation) awaitFinalized(ctx context.Context, errChan <-chan error, target chain.BlockID) error {
	deadline := time.NewTimer(flagTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			return fmt.Errorf("engine failed: %w", err)
		case <-deadline.C:
			return fmt.Errorf("nodes did not finalize %s within %s", target, flagTimeout)
		case <-poll.C:
		}

		done := true
		for _, node := range s.nodes {
			top, err := node.state.TopFinalized()
			if err != nil {
				return fmt.Errorf("could not read top finalized of %s: %w", node.peer, err)
			}
			if top.ID() != target {
				done = false
				s.log.Debug().
					Str("node", node.peer.String()).
					Uint32("top_finalized", uint32(top.ID().Number)).
					Msg("node behind")
			}
		}
		if done {
			return nil
		}
	}
}

// shutdown waits for all engines to stop, then closes the nodes
// concurrently. The caller cancels the context beforehand.
func (s *simulation) shutdown() error {
	<-util.AllDone(s.engines()...)

	errs := make([]error, len(s.nodes))
	group := new(errgroup.Group)
	for i, node := range s.nodes {
		i, node := i, node
		group.Go(func() error {
			node.net.Stop()
			if err := node.db.Close(); err != nil {
				errs[i] = fmt.Errorf("could not close database of %s: %w", node.peer, err)
			}
			return nil
		})
	}
	_ = group.Wait()

	var result *multierror.Error
	for _, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
