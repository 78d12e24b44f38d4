package node

import (
	"fmt"
	"time"

	"github.com/evergraph/evergraph/src/graph"
	"github.com/evergraph/evergraph/src/net"
	"github.com/evergraph/evergraph/src/peers"
	"github.com/evergraph/evergraph/src/version"
	"github.com/sirupsen/logrus"
)

func (n *Node) requestHandshake(target string) (net.HandshakeResponse, error) {
	args := net.HandshakeRequest{
		FromID:          n.ID(),
		ProtocolVersion: version.ProtocolVersion,
		AppVersion:      version.AppVersion,
	}

	var out net.HandshakeResponse

	err := n.trans.Handshake(target, &args, &out)
	if err == nil {
		n.setPeerAppVersion(out.FromID, out.AppVersion)
	}

	return out, err
}

func (n *Node) requestFetchEvents(target string, frontier map[int][]string) (net.FetchEventsResponse, error) {
	args := net.FetchEventsRequest{
		FromID:   n.ID(),
		Frontier: frontier,
	}

	var out net.FetchEventsResponse

	err := n.trans.FetchEvents(target, &args, &out)

	return out, err
}

// requestPushEvents performs the handshake first if the peer's app version is
// not known yet, then relays the events with timestamps scaled as required.
func (n *Node) requestPushEvents(peer *peers.Peer, events []*graph.Event) (net.PushEventsResponse, error) {
	var out net.PushEventsResponse

	if _, ok := n.peerAppVersion(peer.ID()); !ok {
		if _, err := n.requestHandshake(peer.NetAddr); err != nil {
			return out, err
		}
	}

	args := net.PushEventsRequest{
		FromID: n.ID(),
		Events: n.eventsForPeer(peer, events),
	}

	err := n.trans.PushEvents(peer.NetAddr, &args, &out)

	return out, err
}

func (n *Node) processRPC(rpc net.RPC) {
	switch cmd := rpc.Command.(type) {
	case *net.HandshakeRequest:
		n.processHandshakeRequest(rpc, cmd)
	case *net.PushEventsRequest:
		n.processPushEventsRequest(rpc, cmd)
	case *net.FetchEventsRequest:
		n.processFetchEventsRequest(rpc, cmd)
	case *net.SendEventRequest:
		n.processSendEventRequest(rpc, cmd)
	default:
		n.logger.WithField("cmd", rpc.Command).Error("Unexpected RPC command")
		rpc.Respond(nil, fmt.Errorf("unexpected command"))
	}
}

func (n *Node) processHandshakeRequest(rpc net.RPC, cmd *net.HandshakeRequest) {
	n.logger.WithFields(logrus.Fields{
		"from_id":          cmd.FromID,
		"protocol_version": cmd.ProtocolVersion,
		"app_version":      cmd.AppVersion,
	}).Debug("process HandshakeRequest")

	// A version mismatch never refuses the connection; the declared versions
	// only select compatibility adjustments on later exchanges.
	n.setPeerAppVersion(cmd.FromID, cmd.AppVersion)

	resp := &net.HandshakeResponse{
		FromID:          n.ID(),
		ProtocolVersion: version.ProtocolVersion,
		AppVersion:      version.AppVersion,
	}

	rpc.Respond(resp, nil)
}

func (n *Node) processPushEventsRequest(rpc net.RPC, cmd *net.PushEventsRequest) {
	n.logger.WithFields(logrus.Fields{
		"from_id": cmd.FromID,
		"events":  len(cmd.Events),
	}).Debug("process PushEventsRequest")

	resp := &net.PushEventsResponse{
		FromID: n.ID(),
	}

	var respErr error

	start := time.Now()
	_, err := n.graph.InsertEvents(cmd.Events...)
	elapsed := time.Since(start)

	n.logger.WithField("duration", elapsed.Nanoseconds()).Debug("InsertEvents()")

	if err != nil {
		n.logger.WithField("error", err).Error("Inserting pushed events")
		respErr = err
	} else {
		resp.Success = true
	}

	rpc.Respond(resp, respErr)
}

func (n *Node) processFetchEventsRequest(rpc net.RPC, cmd *net.FetchEventsRequest) {
	n.logger.WithFields(logrus.Fields{
		"from_id":  cmd.FromID,
		"frontier": cmd.Frontier,
	}).Debug("process FetchEventsRequest")

	resp := &net.FetchEventsResponse{
		FromID: n.ID(),
	}

	var respErr error

	start := time.Now()
	events, err := n.graph.SuccessorsOf(cmd.Frontier)
	elapsed := time.Since(start)

	n.logger.WithField("duration", elapsed.Nanoseconds()).Debug("SuccessorsOf()")

	if err != nil {
		n.logger.WithField("error", err).Error("Computing successor events")
		respErr = err
	} else {
		resp.Events = events
	}

	n.logger.WithField("events", len(resp.Events)).Debug("Responding to FetchEventsRequest")

	rpc.Respond(resp, respErr)
}

// processSendEventRequest wraps client content in a new event on top of the
// local frontier and relays it. It is refused until the node is synced, so a
// client can never author an event against a stale frontier.
func (n *Node) processSendEventRequest(rpc net.RPC, cmd *net.SendEventRequest) {
	n.logger.WithFields(logrus.Fields{
		"timestamp": cmd.Timestamp,
		"content":   len(cmd.Content),
	}).Debug("process SendEventRequest")

	resp := &net.SendEventResponse{
		FromID: n.ID(),
	}

	if n.getState() != Running {
		rpc.Respond(resp, ErrNotSynced)
		return
	}

	timestamp := cmd.Timestamp
	if timestamp == 0 {
		timestamp = time.Now().UnixMilli()
	}

	event := graph.NewEventAt(timestamp, cmd.Content, n.graph)

	if _, err := n.graph.InsertEvents(event); err != nil {
		n.logger.WithField("error", err).Error("Inserting client event")
		rpc.Respond(resp, err)
		return
	}

	resp.ID = event.Hex()

	n.goFunc(func() { n.pushToPeers([]*graph.Event{event}) })

	rpc.Respond(resp, nil)
}
