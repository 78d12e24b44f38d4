package evergraph

import (
	"os"

	"github.com/evergraph/evergraph/src/config"
	"github.com/evergraph/evergraph/src/graph"
	"github.com/evergraph/evergraph/src/net"
	"github.com/evergraph/evergraph/src/node"
	"github.com/evergraph/evergraph/src/peers"
	"github.com/evergraph/evergraph/src/service"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Evergraph is a wrapper around the Node that exposes a simple interface to
// instantiate, run, and shut down an Evergraph node.
type Evergraph struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Store     graph.Store
	Peers     *peers.PeerSet
	PubSub    *node.PubSub
	Service   *service.Service

	logger *logrus.Entry
}

// NewEvergraph is a factory method that returns an uninitialised Evergraph
// object with a reference to the provided configuration.
func NewEvergraph(config *config.Config) *Evergraph {
	engine := &Evergraph{
		Config: config,
		logger: config.Logger(),
	}

	return engine
}

// initPeers loads the peer list from peers.json in the data directory. A
// missing file is not an error; the node then runs standalone until peers are
// configured.
func (e *Evergraph) initPeers() error {
	peersFile := e.Config.PeersFile()

	if _, err := os.Stat(peersFile); err != nil {
		e.logger.WithField("file", peersFile).Debug("No peers file, running standalone")
		e.Peers = peers.NewPeerSet([]*peers.Peer{})
		return nil
	}

	peerStore := peers.NewJSONPeerSet(peersFile)

	participants, err := peerStore.PeerSet()
	if err != nil {
		return errors.Wrap(err, "reading peers.json")
	}

	e.Peers = participants

	return nil
}

func (e *Evergraph) initStore() error {
	if !e.Config.Store {
		e.Store = graph.NewInmemStore()

		e.logger.Debug("Created new in-mem store")
	} else {
		var err error

		e.logger.WithField("path", e.Config.DatabaseDir).Debug("Attempting to load or create database")

		e.Store, err = graph.LoadOrCreateBadgerStore(e.Config.DatabaseDir)
		if err != nil {
			return errors.Wrap(err, "opening badger store")
		}

		if e.Store.NeedBootstrap() {
			e.logger.Debug("Loaded badger store from existing database")
			e.Config.Bootstrap = true
		} else {
			e.logger.Debug("Created new badger store from fresh database")
		}
	}

	return nil
}

func (e *Evergraph) initTransport() error {
	transport, err := net.NewTCPTransport(
		e.Config.BindAddr,
		e.Config.AdvertiseAddr,
		e.Config.MaxPool,
		e.Config.TCPTimeout,
		e.logger,
	)

	if err != nil {
		return errors.Wrap(err, "binding transport")
	}

	e.Transport = transport

	return nil
}

func (e *Evergraph) initNode() error {
	advertiseAddr := e.Transport.AdvertiseAddr()

	// The node's identity is its advertised address. Reuse the peers.json
	// entry when there is one so the moniker matches what other nodes see.
	self, ok := e.Peers.ByAddr[advertiseAddr]
	if !ok {
		self = peers.NewPeer(advertiseAddr, e.Config.Moniker)
	}

	e.logger.WithFields(logrus.Fields{
		"id":      self.ID(),
		"addr":    advertiseAddr,
		"peers":   e.Peers.Len(),
		"moniker": self.Moniker,
	}).Debug("PARTICIPANTS")

	e.PubSub = node.NewPubSub(e.logger)

	e.Node = node.NewNode(
		e.Config,
		self,
		e.Peers,
		e.Store,
		e.Transport,
		e.PubSub,
	)

	if err := e.Node.Init(); err != nil {
		return errors.Wrap(err, "initializing node")
	}

	return nil
}

func (e *Evergraph) initService() error {
	if !e.Config.NoService {
		e.Service = service.NewService(e.Config.ServiceAddr, e.Node, e.logger)
	}
	return nil
}

// Init initialises the Evergraph engine based on its configuration.
func (e *Evergraph) Init() error {
	if err := e.initPeers(); err != nil {
		return err
	}

	if err := e.initStore(); err != nil {
		return err
	}

	if err := e.initTransport(); err != nil {
		return err
	}

	if err := e.initNode(); err != nil {
		return err
	}

	if err := e.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts the transport, the service, and the node's main loop. This is a
// blocking call.
func (e *Evergraph) Run() {
	go e.Transport.Listen()

	if e.Service != nil {
		go e.Service.Serve()
	}

	e.Node.Run(true)
}
