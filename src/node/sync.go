package node

import (
	"time"

	"github.com/sirupsen/logrus"
)

// catchUp enacts the Syncing state: it pulls everything beyond the local
// frontier from a random peer, retrying a bounded number of times before
// giving up and shutting the node down. Only a successful round moves the
// node to Running.
func (n *Node) catchUp() {
	n.logger.Debug("SYNCING")

	otherPeers := n.otherPeers()
	if otherPeers.Len() == 0 {
		n.setState(Running)
		return
	}

	var lastErr error

	for attempt := 1; attempt <= n.conf.SyncRetries; attempt++ {
		if n.getState() == Shutdown {
			return
		}

		peer := otherPeers.NextPeer()

		err := n.syncFrom(peer.NetAddr)
		if err == nil {
			n.logger.WithField("attempt", attempt).Debug("Catch-up complete => Running")
			n.setState(Running)
			return
		}

		lastErr = err
		n.syncErrors++

		n.logger.WithFields(logrus.Fields{
			"peer":    peer.NetAddr,
			"attempt": attempt,
			"error":   err,
		}).Error("Catch-up attempt failed")

		// No need to back off before the fatal shutdown.
		if attempt < n.conf.SyncRetries {
			time.Sleep(n.conf.SyncRetryDelay)
		}
	}

	n.logger.WithFields(logrus.Fields{
		"retries": n.conf.SyncRetries,
		"error":   lastErr,
	}).Error("Could not catch up with any peer. Shutting down.")

	n.Shutdown()
}

// syncFrom performs one full catch-up round with a peer: handshake, then
// fetch and insert everything the peer has beyond the local frontier.
func (n *Node) syncFrom(target string) error {
	hresp, err := n.requestHandshake(target)
	if err != nil {
		n.logger.WithField("error", err).Error("requestHandshake()")
		return err
	}

	n.logger.WithFields(logrus.Fields{
		"from_id":          hresp.FromID,
		"protocol_version": hresp.ProtocolVersion,
		"app_version":      hresp.AppVersion,
	}).Debug("HandshakeResponse")

	start := time.Now()
	resp, err := n.requestFetchEvents(target, n.graph.FrontierSnapshot())
	elapsed := time.Since(start)
	n.logger.WithField("duration", elapsed.Nanoseconds()).Debug("requestFetchEvents()")

	if err != nil {
		n.logger.WithField("error", err).Error("requestFetchEvents()")
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
