package node

import (
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/evergraph/evergraph/src/config"
	"github.com/evergraph/evergraph/src/graph"
	"github.com/evergraph/evergraph/src/net"
	"github.com/evergraph/evergraph/src/peers"
	"github.com/evergraph/evergraph/src/version"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrNotSynced is returned to clients that submit content before the node has
// caught up with its peers.
var ErrNotSynced = errors.New("node not synced")

// Node defines an evergraph node
type Node struct {
	state

	conf   *config.Config
	logger *logrus.Entry

	self *peers.Peer

	graph *graph.Graph

	peers *peers.PeerSet

	// appVersions maps peer ids to the app version they declared in their
	// last handshake. It drives the legacy timestamp scaling on relay.
	appVersions  map[uint32]int
	versionsLock sync.Mutex

	trans net.Transport
	netCh <-chan net.RPC

	pubsub   *PubSub
	submitCh chan []byte

	pruner *Pruner

	sigintCh   chan os.Signal
	shutdownCh chan struct{}

	controlTimer *ControlTimer

	start        time.Time
	syncRequests int
	syncErrors   int
}

// NewNode is a factory method that returns a Node instance
func NewNode(conf *config.Config,
	self *peers.Peer,
	peerSet *peers.PeerSet,
	store graph.Store,
	trans net.Transport,
	pubsub *PubSub,
) *Node {
	//Prepare sigintCh to relay SIGINT system calls
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGINT)

	logger := conf.Logger().WithField("this_id", self.ID())

	node := Node{
		conf:   conf,
		logger: logger,
		self:   self,
		graph: graph.NewGraph(store,
			pubsub.Publish,
			conf.OrphanLimit,
			conf.OrphanTTL,
			logger),
		peers:        peerSet,
		appVersions:  make(map[uint32]int),
		trans:        trans,
		netCh:        trans.Consumer(),
		pubsub:       pubsub,
		submitCh:     pubsub.SubmitCh(),
		sigintCh:     sigintCh,
		shutdownCh:   make(chan struct{}),
		controlTimer: NewRandomControlTimer(),
	}

	node.pruner = NewPruner(node.graph, conf, logger)

	return &node
}

// Init intialises the node. It either reloads the graph from an existing
// database, or seeds a fresh graph with the genesis event. A node with no
// peers is trivially synced and goes straight to Running.
func (n *Node) Init() error {
	if n.conf.Bootstrap {
		n.logger.Debug("Bootstrap")
		if err := n.graph.Bootstrap(); err != nil {
			return err
		}
	}

	if n.graph.EventCount() == 0 {
		genesis := graph.NewGenesisEvent()
		if _, err := n.graph.InsertEvents(genesis); err != nil {
			return err
		}
		n.logger.WithField("genesis", genesis.Hex()).Debug("Seeded genesis event")
	}

	if n.otherPeers().Len() == 0 {
		n.logger.Debug("No peers => Running")
		n.setState(Running)
	} else {
		n.logger.Debug("Catching up with peers => Syncing")
		n.setState(Syncing)
	}

	return nil
}

// RunAsync calls Run as a separate thread
func (n *Node) RunAsync(gossip bool) {
	n.logger.WithField("gossip", gossip).Debug("runasync")

	go n.Run(gossip)
}

// Run invokes the main loop of the node
func (n *Node) Run(gossip bool) {
	n.start = time.Now()

	//The ControlTimer allows the background routines to control the heartbeat
	//timer when the node is in the Running state.
	go n.controlTimer.Run(n.conf.HeartbeatTimeout)

	//The pruner periodically removes the oldest layers, when enabled.
	go n.pruner.Run()

	//Execute some background work regardless of the state of the node.
	go n.doBackgroundWork()

	//Execute Node State Machine
	for {
		//Run different routines depending on node state
		state := n.getState()

		n.logger.WithField("state", state.String()).Debug("Run loop")

		switch state {
		case Syncing:
			n.catchUp()
		case Running:
			n.running(gossip)
		case Shutdown:
			return
		}
	}
}

func (n *Node) resetTimer() {
	if !n.controlTimer.set {
		n.controlTimer.resetCh <- n.conf.HeartbeatTimeout
	}
}

func (n *Node) doBackgroundWork() {
	for {
		select {
		case rpc := <-n.netCh:
			n.goFunc(func() {
				n.logger.Debug("Processing RPC")
				n.processRPC(rpc)
				n.resetTimer()
			})
		case t := <-n.submitCh:
			n.logger.Debug("Adding Content")
			n.addContent(t)
			n.resetTimer()
		case <-n.shutdownCh:
			return
		case <-n.sigintCh:
			n.logger.Debug("Reacting to SIGINT - Shutdown")
			n.Shutdown()
			os.Exit(0)
		}
	}
}

// running processes incoming RPC requests and periodically initiates an
// anti-entropy round with a random peer.
func (n *Node) running(gossip bool) {
	n.logger.Debug("RUNNING")

	for {
		select {
		case <-n.controlTimer.tickCh:
			if gossip {
				peer := n.otherPeers().NextPeer()
				if peer != nil {
					n.logger.Debug("Time to gossip!")
					n.goFunc(func() { n.gossip(peer) })
				}
			}
			n.resetTimer()
		case <-n.shutdownCh:
			return
		}
	}
}

// gossip performs a pull operation with the selected peer: it sends the local
// frontier and inserts whatever the peer has beyond it. New local events are
// pushed eagerly as they are created, so the periodic rounds only repair what
// the pushes missed.
func (n *Node) gossip(peer *peers.Peer) error {
	start := time.Now()
	resp, err := n.requestFetchEvents(peer.NetAddr, n.graph.FrontierSnapshot())
	elapsed := time.Since(start)
	n.logger.WithField("duration", elapsed.Nanoseconds()).Debug("requestFetchEvents()")

	if err != nil {
		n.logger.WithField("error", err).Error("requestFetchEvents()")
		n.syncErrors++
		return err
	}

	n.logger.WithFields(logrus.Fields{
		"from_id": resp.FromID,
		"events":  len(resp.Events),
	}).Debug("FetchEventsResponse")

	n.syncRequests++

	if _, err := n.graph.InsertEvents(resp.Events...); err != nil {
		n.logger.WithField("error", err).Error("Inserting fetched events")
		return err
	}

	n.logStats()

	return nil
}

// addContent wraps raw content in a new event on top of the current frontier,
// commits it, and pushes it to all peers.
func (n *Node) addContent(content []byte) {
	if n.getState() != Running {
		n.logger.WithField("state", n.getState().String()).
			Error("Rejecting submission, node not synced")
		return
	}

	event := graph.NewEvent(content, n.graph)

	if _, err := n.graph.InsertEvents(event); err != nil {
		n.logger.WithField("error", err).Error("Inserting local event")
		return
	}

	n.logger.WithField("event", event.Hex()).Debug("Created local event")

	n.goFunc(func() { n.pushToPeers([]*graph.Event{event}) })
}

// pushToPeers relays events to every other peer, applying the legacy
// timestamp scale to peers with an older app version. A scaled relay is a new
// identity, so the original ids are preserved only between up-to-date peers.
func (n *Node) pushToPeers(events []*graph.Event) {
	for _, peer := range n.otherPeers().Peers {
		resp, err := n.requestPushEvents(peer, events)
		if err != nil {
			n.logger.WithFields(logrus.Fields{
				"peer":  peer.NetAddr,
				"error": err,
			}).Error("requestPushEvents()")
			continue
		}

		n.logger.WithFields(logrus.Fields{
			"from_id": resp.FromID,
			"success": resp.Success,
		}).Debug("PushEventsResponse")
	}
}

// eventsForPeer returns the events to relay to a peer, scaling timestamps
// down when the peer's app version predates the millisecond convention.
func (n *Node) eventsForPeer(peer *peers.Peer, events []*graph.Event) []*graph.Event {
	appVersion, ok := n.peerAppVersion(peer.ID())
	if !ok || appVersion >= version.MillisTimestampAppVersion {
		return events
	}

	scaled := make([]*graph.Event, len(events))
	for i, event := range events {
		scaled[i] = event.ScaledCopy(n.conf.LegacyTimestampDivisor)
	}

	n.logger.WithFields(logrus.Fields{
		"peer":        peer.NetAddr,
		"app_version": appVersion,
		"divisor":     n.conf.LegacyTimestampDivisor,
	}).Debug("Scaling timestamps for legacy peer")

	return scaled
}

func (n *Node) peerAppVersion(id uint32) (int, bool) {
	n.versionsLock.Lock()
	defer n.versionsLock.Unlock()

	v, ok := n.appVersions[id]
	return v, ok
}

func (n *Node) setPeerAppVersion(id uint32, appVersion int) {
	n.versionsLock.Lock()
	defer n.versionsLock.Unlock()

	n.appVersions[id] = appVersion
}

func (n *Node) otherPeers() *peers.PeerSet {
	return n.peers.WithoutAddr(n.trans.AdvertiseAddr())
}

// ID returns the node's id, derived from its advertised network address.
func (n *Node) ID() uint32 {
	return n.self.ID()
}

// GetPeers returns the node's peer list.
func (n *Node) GetPeers() []*peers.Peer {
	return n.peers.Peers
}

// GetEvent returns an event by id.
func (n *Node) GetEvent(id string) (*graph.Event, error) {
	return n.graph.Store.GetEvent(id)
}

// Tips returns the current frontier as a flat list of event ids.
func (n *Node) Tips() []string {
	return n.graph.Tips()
}

// Frontier returns the layer => tips mapping of the current frontier.
func (n *Node) Frontier() map[int][]string {
	return n.graph.FrontierSnapshot()
}

// Submit hands raw content to the node for wrapping and gossip. It returns
// ErrNotSynced while the node is still catching up.
func (n *Node) Submit(content []byte) error {
	if n.getState() != Running {
		return ErrNotSynced
	}

	n.submitCh <- content

	return nil
}

// Shutdown shuts down the node
func (n *Node) Shutdown() {
	if n.getState() != Shutdown {
		n.logger.Debug("Shutdown")

		//Exit any non-shutdown state immediately
		n.setState(Shutdown)

		//Stop and wait for concurrent operations
		close(n.shutdownCh)

		n.waitRoutines()

		n.controlTimer.Shutdown()

		n.pruner.Shutdown()

		//transport and store should only be closed once all concurrent
		//operations are finished otherwise they will panic trying to use
		//closed objects
		n.trans.Close()

		n.graph.Store.Close()
	}
}

// GetStats returns stats
func (n *Node) GetStats() map[string]string {
	timeElapsed := time.Since(n.start)

	eventCount := n.graph.EventCount()
	eventsPerSecond := float64(eventCount) / timeElapsed.Seconds()

	lastLayer := -1
	if l, ok := n.graph.LastTipLayer(); ok {
		lastLayer = l
	}

	s := map[string]string{
		"state":             n.getState().String(),
		"moniker":           n.self.Moniker,
		"num_peers":         strconv.Itoa(n.otherPeers().Len()),
		"events":            strconv.Itoa(eventCount),
		"events_per_second": strconv.FormatFloat(eventsPerSecond, 'f', 2, 64),
		"orphans":           strconv.Itoa(n.graph.OrphanCount()),
		"tips":              strconv.Itoa(len(n.graph.Tips())),
		"last_layer":        strconv.Itoa(lastLayer),
		"sync_requests":     strconv.Itoa(n.syncRequests),
		"sync_errors":       strconv.Itoa(n.syncErrors),
	}

	return s
}

func (n *Node) logStats() {
	stats := n.GetStats()

	n.logger.WithFields(logrus.Fields{
		"events":     stats["events"],
		"orphans":    stats["orphans"],
		"tips":       stats["tips"],
		"last_layer": stats["last_layer"],
		"peers":      stats["num_peers"],
	}).Debug("Stats")
}
