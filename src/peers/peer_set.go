package peers

import (
	"math/rand"
)

// PeerSet is an immutable set of Peers, with indexes for fast retrieval.
type PeerSet struct {
	Peers  []*Peer
	ByID   map[uint32]*Peer
	ByAddr map[string]*Peer
}

// NewPeerSet creates a PeerSet from a list of Peers.
func NewPeerSet(peers []*Peer) *PeerSet {
	peerSet := &PeerSet{
		Peers:  peers,
		ByID:   make(map[uint32]*Peer),
		ByAddr: make(map[string]*Peer),
	}

	for _, peer := range peers {
		peerSet.ByID[peer.ID()] = peer
		peerSet.ByAddr[peer.NetAddr] = peer
	}

	return peerSet
}

// Len returns the number of peers in the set.
func (ps *PeerSet) Len() int {
	return len(ps.Peers)
}

// WithoutAddr returns a new PeerSet that excludes the peer with the given
// network address.
func (ps *PeerSet) WithoutAddr(addr string) *PeerSet {
	others := make([]*Peer, 0, len(ps.Peers))
	for _, p := range ps.Peers {
		if p.NetAddr != addr {
			others = append(others, p)
		}
	}
	return NewPeerSet(others)
}

// NextPeer returns a randomly selected peer. It returns nil if the set is
// empty.
func (ps *PeerSet) NextPeer() *Peer {
	if len(ps.Peers) == 0 {
		return nil
	}
	return ps.Peers[rand.Intn(len(ps.Peers))]
}
