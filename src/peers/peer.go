package peers

import (
	"github.com/evergraph/evergraph/src/common"
)

// Peer is a participant in the gossip network. Peers are identified by their
// network address; the numeric ID is derived from it.
type Peer struct {
	NetAddr string
	Moniker string

	id uint32
}

// NewPeer instantiates a new Peer.
func NewPeer(netAddr, moniker string) *Peer {
	peer := &Peer{
		NetAddr: netAddr,
		Moniker: moniker,
	}

	return peer
}

// ID returns the numerical ID of the peer, which is computed from its network
// address.
func (p *Peer) ID() uint32 {
	if p.id == 0 {
		p.id = common.Hash32([]byte(p.NetAddr))
	}

	return p.id
}
